package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"github.com/millworks/backoffice/internal/config"
	"github.com/millworks/backoffice/internal/database"
	"github.com/millworks/backoffice/internal/httpapi"
	"github.com/millworks/backoffice/internal/outbox"
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	slog.SetDefault(newLogger(cfg.Log))
	httpapi.UseJSONFieldNames()

	slog.Info("configuration loaded successfully",
		"db_host", cfg.Database.Host,
		"db_port", cfg.Database.Port,
		"db_name", cfg.Database.Name,
		"db_sslmode", cfg.Database.SSLMode,
		"storage", cfg.Storage.Type,
		"session_enabled", cfg.Session.Enabled,
		"rate_limit_storage", cfg.RateLimit.Storage,
	)

	db, err := database.New(&cfg.Database, cfg.Log.Level)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer func() {
		if err := database.Close(db); err != nil {
			slog.Error("failed to close database", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.HealthCheck(ctx, db); err != nil {
		log.Fatalf("database health check failed: %v", err)
	}

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db, allModels()...); err != nil {
			log.Fatalf("failed to migrate database: %v", err)
		}
	}

	app, err := newApplication(ctx, cfg, db)
	if err != nil {
		log.Fatalf("failed to initialise application: %v", err)
	}

	var workers sync.WaitGroup
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	if cfg.Outbox.RelayEnabled {
		relay, err := outbox.NewRelay(db, app.dispatcher, outbox.RelayOptionsFrom(cfg.Outbox))
		if err != nil {
			log.Fatalf("failed to create outbox relay: %v", err)
		}
		cleaner := outbox.NewCleaner(db, cfg.Outbox.CleanerInterval, cfg.Outbox.CleanerRetention)
		for name, run := range map[string]func(context.Context) error{"relay": relay.Run, "cleaner": cleaner.Run} {
			workers.Add(1)
			go func() {
				defer workers.Done()
				if err := run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
					slog.Error("outbox worker stopped", "worker", name, "error", err)
				}
			}()
		}
	}

	// Wrap handler with CORS middleware
	handler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           cfg.CORS.MaxAge,
	}).Handler(app.engine)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: handler,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "port", cfg.Server.Port, "api_prefix", cfg.Server.APIPrefix)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		slog.Error("failed to start server", "error", err)
	}
	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	} else {
		slog.Info("server gracefully stopped")
	}

	slog.Info("stopping outbox workers...")
	stopWorkers()
	workers.Wait()

	slog.Info("server stopped")
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func init() {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
}
