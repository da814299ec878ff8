package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"field-route-service/internal/adapters/cache"
	"field-route-service/internal/adapters/kmlfile"
	syncstore "field-route-service/internal/adapters/remotesync"
	"field-route-service/internal/adapters/repositories"
	"field-route-service/internal/adapters/routing"
	"field-route-service/internal/api"
	"field-route-service/internal/config"
	"field-route-service/internal/platform/db"
	"field-route-service/internal/platform/report"
	"field-route-service/internal/ports"
	"field-route-service/internal/services/coordinator"
	"field-route-service/internal/services/kmlload"
	"field-route-service/internal/services/manualstops"
	"field-route-service/internal/services/navigation"
	"field-route-service/internal/services/proximity"
	"field-route-service/internal/services/remotesync"
	"field-route-service/internal/services/roadpath"
	"field-route-service/internal/services/runs"
	"field-route-service/internal/services/zonestate"
)

var version = "dev"

// main is the application composition root.
// It wires concrete adapters behind ports and starts the HTTP server.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.AppEnv)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "err", err)
		report.Flush()
		os.Exit(1)
	}
}

func newLogger(env string) *slog.Logger {
	if env == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func run(cfg config.Config, logger *slog.Logger) error {
	if err := report.Setup(cfg.SentryDSN, cfg.AppEnv, version); err != nil {
		return err
	}
	defer report.Flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dialect, err := repositories.ParseDialect(cfg.DBDriver)
	if err != nil {
		return err
	}
	conn, err := openDB(cfg, dialect)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := repositories.InitSchema(conn, dialect); err != nil {
		return err
	}
	if cfg.SeedOnStart {
		if err := repositories.Seed(conn, dialect, cfg.SeedPath); err != nil {
			logger.Warn("seeding skipped", "path", cfg.SeedPath, "err", err)
		}
	}
	store := repositories.NewStore(conn, dialect)

	proxCfg := proximityConfig(ctx, cfg, store, logger)
	engine := proximity.NewEngine(proxCfg)
	logger.Info("proximity configured", "radius_m", proxCfg.RadiusMeters, "max_accuracy_m", proxCfg.MaxAccuracyMeters)

	router, err := newRoadRouter(cfg, conn, dialect, logger)
	if err != nil {
		return err
	}

	syncSvc, closeSync, err := newSync(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSync()

	loader := kmlload.NewLoader(kmlfile.NewDirSource(cfg.KMLDir), kmlload.Options{
		Capacity: cfg.KMLCacheCapacity,
		Logger:   logger,
	})
	runSvc := runs.NewService(store, logger)
	planner := roadpath.NewPlanner(router, logger)

	var kmlCache ports.KMLCacheRepository = cache.NewSqliteKMLCache(conn)
	if dialect == repositories.Postgres {
		kmlCache = cache.NewSQLKMLCache(conn)
	}

	coord := coordinator.New(coordinator.Deps{
		Loader:       loader,
		Stops:        store,
		KMLCache:     kmlCache,
		StorageStats: store,
		Zones:        zonestate.NewManager(logger),
		Manual:       manualstops.NewService(manualstops.Options{Logger: logger}),
		Navigation:   navigation.NewTracker(engine, cfg.NavRefreshInterval, logger),
		Proximity:    engine,
		Runs:         runSvc,
		RoadPath:     planner,
		Logger:       logger,
	})
	defer coord.Close()

	handler := api.NewRouter(api.Deps{
		Loader:      loader,
		Coordinator: coord,
		Runs:        runSvc,
		RoadPath:    planner,
		Sync:        syncSvc,
		Logger:      logger,
	})

	// Timeouts leave room for cold-cache road routing (external API latency).
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr, "env", cfg.AppEnv, "db", cfg.DBDriver,
			"routing", cfg.RoutingProvider, "sync", cfg.SyncBackend)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func openDB(cfg config.Config, d repositories.Dialect) (*sql.DB, error) {
	if d == repositories.Postgres {
		return db.Open(cfg.DatabaseURL)
	}
	return db.OpenSQLite(cfg.DBPath)
}

// proximityConfig starts from the environment and applies the stored
// marker_radius and gps_accuracy_threshold settings when present.
func proximityConfig(ctx context.Context, cfg config.Config, store *repositories.Store, logger *slog.Logger) proximity.Config {
	pc := proximity.Config{
		RadiusMeters:      cfg.MarkerRadiusMeters,
		MaxAccuracyMeters: cfg.GPSAccuracyThreshold,
		WalkingSpeedKmh:   cfg.WalkingSpeedKmh,
	}
	for key, dst := range map[string]*float64{
		"marker_radius":          &pc.RadiusMeters,
		"gps_accuracy_threshold": &pc.MaxAccuracyMeters,
	} {
		v, err := store.GetSetting(ctx, key)
		if err != nil {
			logger.Debug("setting not loaded", "key", key, "err", err)
			continue
		}
		if f, ok := v.(float64); ok && f > 0 {
			*dst = f
		}
	}
	return pc
}

// newRoadRouter returns nil for ROUTING_PROVIDER=none; the planner then
// answers with straight lines.
func newRoadRouter(cfg config.Config, conn *sql.DB, d repositories.Dialect, logger *slog.Logger) (ports.RoadRouter, error) {
	switch cfg.RoutingProvider {
	case "ors":
		var pathCache ports.RoadPathCache = cache.NewSqliteRoadPathCache(conn)
		if d == repositories.Postgres {
			pathCache = cache.NewSQLRoadPathCache(conn)
		}
		return routing.NewORSRouter(cfg.ORSAPIKey,
			routing.WithProfile(cfg.ORSProfile),
			routing.WithCache(pathCache),
			routing.WithLogger(logger),
		)
	case "google":
		return routing.NewGoogleRouter(cfg.GoogleMapsAPIKey)
	}
	return nil, nil
}

// newSync builds the remote sync service. SYNC_BACKEND=none yields a
// disabled service whose operations fail with ErrSyncDisabled.
func newSync(ctx context.Context, cfg config.Config, logger *slog.Logger) (*remotesync.Service, func(), error) {
	opts := remotesync.Options{Logger: logger}

	switch cfg.SyncBackend {
	case "redis":
		rdb, err := syncstore.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("sync: ping redis: %w", err)
		}
		rs := syncstore.NewRedisStore(rdb)
		return remotesync.NewService(rs, rs, opts), func() { rdb.Close() }, nil
	case "firestore":
		client, err := syncstore.NewFirestoreClient(ctx, cfg.FirestoreProjectID, cfg.FirestoreCredsFile)
		if err != nil {
			return nil, nil, err
		}
		fs := syncstore.NewFirestoreStore(client)
		return remotesync.NewService(fs, fs, opts), func() { client.Close() }, nil
	}
	return remotesync.NewService(nil, nil, opts), func() {}, nil
}
