package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/schedule-import/internal/client"
	"github.com/JonMunkholm/schedule-import/internal/config"
	"github.com/JonMunkholm/schedule-import/internal/core"
	"github.com/JonMunkholm/schedule-import/internal/events"
	"github.com/JonMunkholm/schedule-import/internal/history"
	"github.com/JonMunkholm/schedule-import/internal/logging"
	"github.com/JonMunkholm/schedule-import/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"import_max_concurrent", cfg.Import.MaxConcurrent,
		"import_workers", cfg.Import.Workers,
		"api_base_url", cfg.API.BaseURL,
		"history_enabled", cfg.Database.URL != "",
		"rate_limit_enabled", cfg.Rate.Enabled,
	)
	slog.Debug("effective configuration", "config", cfg.String())

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	deps := core.Dependencies{}
	var historyLister web.HistoryLister

	// Import ledger (optional)
	if cfg.Database.URL != "" {
		pool, err := openPool(jobCtx, cfg.Database)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if cfg.Database.MigrateOnStart {
			db := stdlib.OpenDBFromPool(pool)
			err := history.Migrate(jobCtx, db)
			db.Close()
			if err != nil {
				slog.Error("failed to migrate database", "error", err)
				os.Exit(1)
			}
		}

		store := history.NewStore(pool)
		deps.Recorder = store
		historyLister = store

		if err := history.StartRetention(jobCtx, store, history.RetentionConfig{
			RetentionDays: cfg.History.RetentionDays,
			Schedule:      cfg.History.Schedule,
		}); err != nil {
			slog.Error("failed to start history retention", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Info("DATABASE_URL not set, import history disabled")
	}

	// Completion events (optional)
	var publisher events.Publisher = events.Noop{}
	if cfg.Events.AMQPURL != "" {
		p, err := events.DialAMQP(cfg.Events.AMQPURL, cfg.Events.Queue)
		if err != nil {
			slog.Error("failed to connect to message broker", "error", err)
			os.Exit(1)
		}
		publisher = p
		slog.Info("publishing import events", "queue", cfg.Events.Queue)
	}
	defer publisher.Close()
	deps.Notifier = publisher

	// Admin API client for submission and export
	apiClient := client.New(client.Config{
		BaseURL:  cfg.API.BaseURL,
		Token:    cfg.API.Token,
		Timeout:  cfg.API.Timeout,
		PageSize: cfg.API.PageSize,
	}, slog.Default())
	deps.Submitter = apiClient
	deps.Fetcher = apiClient

	service := core.NewService(core.ServiceConfig{
		Reconciler: core.ReconcilerConfig{
			Workers:     cfg.Import.Workers,
			ReportEvery: cfg.Import.ReportEvery,
			MaxFileSize: cfg.Import.MaxFileSize,
			MaxRejected: cfg.Import.MaxRejected,
		},
		MaxConcurrent:   cfg.Import.MaxConcurrent,
		MaxWait:         cfg.Import.MaxWaitTime,
		ImportTimeout:   cfg.Import.Timeout,
		ResultTTL:       cfg.Import.ResultTTL,
		SubmitBatchSize: cfg.API.SubmitBatchSize,
	}, deps)

	for _, schema := range service.ListSchemas() {
		slog.Debug("import kind registered", "kind", schema.Kind, "columns", len(schema.Columns))
	}

	// Create server with config
	server := web.NewServer(service, historyLister, cfg)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		// Stop background jobs
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for active imports to complete (with timeout)
		status := service.LimiterStatus()
		if status.Active > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active)
			if err := service.WaitForImports(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time", "error", err)
			} else {
				slog.Info("all imports completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// openPool connects to Postgres with the configured pool limits.
func openPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	// Log which database we connected to
	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}
