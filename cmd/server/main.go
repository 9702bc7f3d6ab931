package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/hrpipe/internal/app"
	"github.com/JonMunkholm/hrpipe/internal/config"
	"github.com/JonMunkholm/hrpipe/internal/core"
	"github.com/JonMunkholm/hrpipe/internal/logging"
	"github.com/JonMunkholm/hrpipe/internal/web"
)

func main() {
	// Overload lets a local .env win over the shell environment.
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"import_max_concurrent", cfg.Import.MaxConcurrent,
		"storage_backend", cfg.Storage.Backend,
		"auth_required", cfg.Auth.Required,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	a, err := app.New(context.Background(), cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	server := web.NewServer(cfg, web.Deps{
		Imports:  a.Imports,
		Reports:  a.Reports,
		Exporter: a.Exporter,
	})

	retention, err := a.Imports.StartRetentionScheduler(core.RetentionConfig{
		RetentionDays: cfg.Retention.JobRetentionDays,
		Schedule:      cfg.Retention.Schedule,
	})
	if err != nil {
		slog.Error("failed to start retention scheduler", "error", err)
		os.Exit(1)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if retention != nil {
			<-retention.Stop().Done()
		}

		// Stop taking requests first; imports still running hold their slot
		// until they finish.
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		limiter := a.Imports.Limiter()
		if active := limiter.Active(); active > 0 {
			slog.Info("waiting for imports to complete", "active", active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time", "error", err)
			} else {
				slog.Info("all imports completed")
			}
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
