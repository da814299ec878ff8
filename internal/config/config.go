package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds runtime configuration loaded from environment variables.
type Config struct {
	Port   string
	AppEnv string

	DBDriver    string
	DBPath      string
	DatabaseURL string
	SeedPath    string
	SeedOnStart bool

	KMLDir           string
	KMLCacheCapacity int

	MarkerRadiusMeters   float64
	GPSAccuracyThreshold float64
	WalkingSpeedKmh      float64
	NavRefreshInterval   time.Duration

	RoutingProvider  string
	ORSAPIKey        string
	ORSProfile       string
	GoogleMapsAPIKey string

	SyncBackend        string
	RedisURL           string
	FirestoreProjectID string
	FirestoreCredsFile string

	SentryDSN string
}

// Load reads an optional .env file and the environment into a validated Config.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment without touching .env.
func FromEnv() (Config, error) {
	cfg := Config{
		Port:               getEnv("PORT", "8080"),
		AppEnv:             getEnv("APP_ENV", "development"),
		DBDriver:           strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DBPath:             getEnv("DB_PATH", "data/app.db"),
		DatabaseURL:        strings.TrimSpace(os.Getenv("DATABASE_URL")),
		SeedPath:           getEnv("SEED_PATH", "data/seeds/stops.json"),
		KMLDir:             getEnv("KML_DIR", "data/kml"),
		ORSAPIKey:          strings.TrimSpace(os.Getenv("ORS_API_KEY")),
		ORSProfile:         getEnv("ORS_PROFILE", "driving-car"),
		GoogleMapsAPIKey:   strings.TrimSpace(os.Getenv("GOOGLE_MAPS_API_KEY")),
		SyncBackend:        strings.ToLower(getEnv("SYNC_BACKEND", "none")),
		RedisURL:           strings.TrimSpace(os.Getenv("REDIS_URL")),
		FirestoreProjectID: strings.TrimSpace(os.Getenv("FIRESTORE_PROJECT_ID")),
		FirestoreCredsFile: strings.TrimSpace(os.Getenv("FIRESTORE_CREDS_FILE")),
		SentryDSN:          strings.TrimSpace(os.Getenv("SENTRY_DSN")),
	}

	defaultRouting := "none"
	if cfg.ORSAPIKey != "" {
		defaultRouting = "ors"
	}
	cfg.RoutingProvider = strings.ToLower(getEnv("ROUTING_PROVIDER", defaultRouting))

	var err error
	if cfg.SeedOnStart, err = getEnvBool("SEED_ON_START", true); err != nil {
		return Config{}, err
	}
	if cfg.KMLCacheCapacity, err = getEnvInt("KML_CACHE_CAPACITY", 0); err != nil {
		return Config{}, err
	}
	if cfg.MarkerRadiusMeters, err = getEnvFloat("MARKER_RADIUS_METERS", 200); err != nil {
		return Config{}, err
	}
	if cfg.GPSAccuracyThreshold, err = getEnvFloat("GPS_ACCURACY_THRESHOLD", 50); err != nil {
		return Config{}, err
	}
	if cfg.WalkingSpeedKmh, err = getEnvFloat("WALKING_SPEED_KMH", 5); err != nil {
		return Config{}, err
	}
	if cfg.NavRefreshInterval, err = getEnvDuration("NAV_REFRESH_INTERVAL", time.Second); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate ensures enumerated settings are known and thresholds are usable.
func (c Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}

	switch c.DBDriver {
	case "sqlite":
		if c.DBPath == "" {
			return errors.New("DB_PATH is required for the sqlite driver")
		}
	case "pgx":
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the pgx driver")
		}
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite or pgx, got %q", c.DBDriver)
	}

	switch c.RoutingProvider {
	case "none":
	case "ors":
		if c.ORSAPIKey == "" {
			return errors.New("ORS_API_KEY is required when ROUTING_PROVIDER=ors")
		}
	case "google":
		if c.GoogleMapsAPIKey == "" {
			return errors.New("GOOGLE_MAPS_API_KEY is required when ROUTING_PROVIDER=google")
		}
	default:
		return fmt.Errorf("ROUTING_PROVIDER must be ors, google or none, got %q", c.RoutingProvider)
	}

	switch c.SyncBackend {
	case "none":
	case "redis":
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required when SYNC_BACKEND=redis")
		}
	case "firestore":
		if c.FirestoreProjectID == "" {
			return errors.New("FIRESTORE_PROJECT_ID is required when SYNC_BACKEND=firestore")
		}
	default:
		return fmt.Errorf("SYNC_BACKEND must be redis, firestore or none, got %q", c.SyncBackend)
	}

	if c.MarkerRadiusMeters <= 0 {
		return errors.New("MARKER_RADIUS_METERS must be positive")
	}
	if c.GPSAccuracyThreshold <= 0 {
		return errors.New("GPS_ACCURACY_THRESHOLD must be positive")
	}
	if c.WalkingSpeedKmh <= 0 {
		return errors.New("WALKING_SPEED_KMH must be positive")
	}
	if c.NavRefreshInterval <= 0 {
		return errors.New("NAV_REFRESH_INTERVAL must be positive")
	}
	if c.KMLCacheCapacity < 0 {
		return errors.New("KML_CACHE_CAPACITY must not be negative")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return f, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}
