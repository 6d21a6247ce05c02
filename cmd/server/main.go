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
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/artemis-web/internal/api"
	"github.com/JonMunkholm/artemis-web/internal/config"
	"github.com/JonMunkholm/artemis-web/internal/export"
	"github.com/JonMunkholm/artemis-web/internal/logging"
	"github.com/JonMunkholm/artemis-web/internal/prefs"
	"github.com/JonMunkholm/artemis-web/internal/web"
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
	logCloser := logging.Setup(logging.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	defer logCloser.Close()

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"api", cfg.API.BaseURL,
		"environment", cfg.API.Environment,
		"export_max_concurrent", cfg.Export.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx := context.Background()

	store, closeStore, err := openPrefs(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to open preferences store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	client, err := api.NewClient(api.Options{
		BaseURL:     cfg.API.BaseURL,
		APIKey:      cfg.API.Key,
		Timeout:     cfg.API.Timeout,
		RateLimit:   cfg.API.RequestsPerSecond,
		RateBurst:   cfg.API.Burst,
		Environment: api.Environment(cfg.API.Environment),
	})
	if err != nil {
		slog.Error("failed to create api client", "error", err)
		os.Exit(1)
	}

	limiter := export.NewLimiter(cfg.Export.MaxConcurrent, cfg.Export.MaxWaitTime)
	server := web.NewServer(cfg, web.Deps{
		API:      client,
		Exporter: export.NewExporter(store, limiter),
		Limiter:  limiter,
	})

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for active exports to complete (with timeout)
		status := server.ExportStatus()
		if status.Active > 0 {
			slog.Info("waiting for exports to complete", "active", status.Active)
			if err := server.WaitForExports(shutdownCtx); err != nil {
				slog.Warn("exports did not complete in time", "error", err)
			} else {
				slog.Info("all exports completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	// Start server (uses addr from config internally)
	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// openPrefs connects the preferences store. Without a database URL
// preferences live in memory and are lost on restart.
func openPrefs(ctx context.Context, cfg config.DatabaseConfig) (prefs.Store, func(), error) {
	if !cfg.Enabled() {
		slog.Info("no database configured, keeping preferences in memory")
		return prefs.NewMemoryStore(), func() {}, nil
	}

	// Parse and configure connection pool
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, nil, err
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, err
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	// Log which database we connected to
	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	store := prefs.NewPostgresStore(pool)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store, pool.Close, nil
}
