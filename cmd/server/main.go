// Package main is the entry point for the search-core binary. It dispatches four
// subcommands (serve, migrate, record-version and version) via a switch on
// os.Args. The serve command runs auto-migration on startup so freshly deployed
// containers never need a separate migration step.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/matter-platform/search-core/internal/alert"
	"github.com/matter-platform/search-core/internal/api"
	"github.com/matter-platform/search-core/internal/cache"
	"github.com/matter-platform/search-core/internal/config"
	"github.com/matter-platform/search-core/internal/db"
	"github.com/matter-platform/search-core/internal/jobs"
	"github.com/matter-platform/search-core/internal/safego"
	"github.com/matter-platform/search-core/internal/services"
	"github.com/matter-platform/search-core/internal/telemetry"
)

const (
	version = "0.1.0"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}
	if command == "version" {
		fmt.Printf("search-core v%s\n", version)
		return nil
	}

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level, cfg.Telemetry.ServiceName)

	switch command {
	case "serve":
		return serve(cfg)
	case "migrate":
		if len(os.Args) < 3 {
			return fmt.Errorf("usage: %s migrate <up|down>", os.Args[0])
		}
		return runMigrations(cfg, os.Args[2])
	case "record-version":
		if len(os.Args) < 4 {
			return fmt.Errorf("usage: %s record-version <version> <description> [applied-by]", os.Args[0])
		}
		appliedBy := "cli"
		if len(os.Args) > 4 {
			appliedBy = os.Args[4]
		}
		return recordVersion(cfg, os.Args[2], os.Args[3], appliedBy)
	default:
		return fmt.Errorf("unknown command: %s\nAvailable commands: serve, migrate, record-version, version", command)
	}
}

func connect(cfg *config.Config) (*sql.DB, error) {
	database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("connected to database", "host", cfg.Database.Host, "name", cfg.Database.Name)
	return database, nil
}

func serve(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := connect(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	slog.Info("running database migrations")
	if err := db.RunMigrations(database, "up"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if v, dirty, err := db.GetMigrationVersion(database); err != nil {
		slog.Warn("failed to get migration version", "error", err)
	} else {
		slog.Info("database schema version", "version", v, "dirty", dirty)
	}

	statsStop := make(chan struct{})
	defer close(statsStop)
	telemetry.StartDBStatsCollector(database, statsStop)

	redisClient, err := cache.New(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	alerter := alert.New(cfg.Audit)

	opts := []services.Option{services.WithAlerter(alerter)}
	if redisClient != nil {
		defer redisClient.Close()
		opts = append(opts, services.WithTransformCache(cache.NewTransformCache(redisClient, cfg.Geometry.CacheTTL)))
		slog.Info("transform cache enabled", "ttl", cfg.Geometry.CacheTTL)
	}
	core := services.NewCore(db.Wrap(database), cfg.Geometry, cfg.Audit, opts...)

	partitions := jobs.NewPartitionMaintainer(core, cfg.Audit.PartitionIntervalHours, cfg.Audit.FailureAlertThreshold, alerter)
	purger := jobs.NewRetentionPurger(core, cfg.Audit.PurgeIntervalHours, cfg.Audit.FailureAlertThreshold, alerter)
	safego.Go("partition_maintainer", func() { partitions.Start(ctx) })
	safego.Go("retention_purger", func() { purger.Start(ctx) })

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	var checker api.HealthChecker
	if redisClient != nil {
		checker = redisClient
	}

	servers := []*http.Server{{
		Addr:         cfg.Server.GetAddress(),
		Handler:      api.NewRouter(database, checker, version),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}}
	if cfg.Telemetry.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		servers = append(servers, &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Telemetry.Metrics.PrometheusPort),
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			slog.Info("listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server on %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		partitions.Stop()
		purger.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("shutdown %s: %w", srv.Addr, err))
			}
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("stopped gracefully")
	return nil
}

func runMigrations(cfg *config.Config, direction string) error {
	database, err := connect(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	slog.Info("running migrations", "direction", direction)
	if err := db.RunMigrations(database, direction); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	v, dirty, err := db.GetMigrationVersion(database)
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	slog.Info("migration completed", "version", v, "dirty", dirty)
	return nil
}

func recordVersion(cfg *config.Config, schemaVersion, description, appliedBy string) error {
	database, err := connect(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	core := services.NewCore(db.Wrap(database), cfg.Geometry, cfg.Audit, services.WithAlerter(alert.New(cfg.Audit)))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := core.RecordSchemaVersion(ctx, schemaVersion, description, appliedBy); err != nil {
		return fmt.Errorf("failed to record schema version %s: %w", schemaVersion, err)
	}
	slog.Info("schema version recorded", "version", schemaVersion, "applied_by", appliedBy)
	return nil
}
