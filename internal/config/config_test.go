package config

import (
	"strings"
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "DB_DRIVER", "ORS_API_KEY", "ROUTING_PROVIDER", "SYNC_BACKEND", "KML_CACHE_CAPACITY", "NAV_REFRESH_INTERVAL"} {
		t.Setenv(k, "")
	}

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8080" || cfg.DBDriver != "sqlite" || cfg.KMLDir != "data/kml" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.RoutingProvider != "none" || cfg.SyncBackend != "none" {
		t.Fatalf("providers = %q/%q", cfg.RoutingProvider, cfg.SyncBackend)
	}
	if cfg.MarkerRadiusMeters != 200 || cfg.GPSAccuracyThreshold != 50 || cfg.WalkingSpeedKmh != 5 {
		t.Fatalf("proximity = %+v", cfg)
	}
	if cfg.NavRefreshInterval != time.Second || !cfg.SeedOnStart {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestFromEnvRoutingDefaultsToORSWithKey(t *testing.T) {
	t.Setenv("ROUTING_PROVIDER", "")
	t.Setenv("ORS_API_KEY", "secret")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RoutingProvider != "ors" {
		t.Fatalf("routing = %q, want ors", cfg.RoutingProvider)
	}
}

func TestFromEnvErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "bad driver", env: map[string]string{"DB_DRIVER": "mysql"}, want: "DB_DRIVER"},
		{name: "pgx without url", env: map[string]string{"DB_DRIVER": "pgx", "DATABASE_URL": ""}, want: "DATABASE_URL"},
		{name: "bad radius", env: map[string]string{"MARKER_RADIUS_METERS": "abc"}, want: "MARKER_RADIUS_METERS"},
		{name: "negative radius", env: map[string]string{"MARKER_RADIUS_METERS": "-1"}, want: "MARKER_RADIUS_METERS"},
		{name: "bad routing", env: map[string]string{"ROUTING_PROVIDER": "osrm"}, want: "ROUTING_PROVIDER"},
		{name: "google without key", env: map[string]string{"ROUTING_PROVIDER": "google", "GOOGLE_MAPS_API_KEY": ""}, want: "GOOGLE_MAPS_API_KEY"},
		{name: "redis without url", env: map[string]string{"SYNC_BACKEND": "redis", "REDIS_URL": ""}, want: "REDIS_URL"},
		{name: "bad sync", env: map[string]string{"SYNC_BACKEND": "s3"}, want: "SYNC_BACKEND"},
		{name: "bad interval", env: map[string]string{"NAV_REFRESH_INTERVAL": "soon"}, want: "NAV_REFRESH_INTERVAL"},
		{name: "bad seed flag", env: map[string]string{"SEED_ON_START": "maybe"}, want: "SEED_ON_START"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ORS_API_KEY", "")
			t.Setenv("ROUTING_PROVIDER", "")
			t.Setenv("SYNC_BACKEND", "")
			t.Setenv("DB_DRIVER", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := FromEnv()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %s", err, tt.want)
			}
		})
	}
}
