// Package main is the entrypoint for the DNASpecies API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiranshivaraju/dnaspecies/internal/api"
	"github.com/kiranshivaraju/dnaspecies/internal/api/handler"
	mw "github.com/kiranshivaraju/dnaspecies/internal/api/middleware"
	"github.com/kiranshivaraju/dnaspecies/internal/api/response"
	"github.com/kiranshivaraju/dnaspecies/internal/backend"
	"github.com/kiranshivaraju/dnaspecies/internal/cache"
	"github.com/kiranshivaraju/dnaspecies/internal/config"
	"github.com/kiranshivaraju/dnaspecies/internal/store"
	"github.com/kiranshivaraju/dnaspecies/internal/workflow"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, failing fast when invalid
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "backend", cfg.Backend.BaseURL, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create prediction backend client
	client := backend.NewHTTPClient(cfg.Backend.BaseURL, cfg.Backend.Timeout)
	slog.Info("prediction backend configured", "base_url", client.BaseURL(), "timeout", cfg.Backend.Timeout)

	// 6. Create store and session registry
	pgStore := store.NewPostgresStore(pool)
	recorder := workflow.NewStoreRecorder(pgStore, redisCache, cfg.Server.ResultCacheTTL)
	registry := workflow.NewRegistry(client, workflow.OptionsFrom(cfg.Workflow), recorder)
	// Runs before the pool and cache close so aborted loops are still recorded.
	defer registry.Shutdown()

	// 7. Build router with dependencies
	deps := api.Dependencies{
		RateLimit: mw.NewRateLimit(redisCache, cfg.Server.RateLimitPerMin),

		HealthHandler:   healthHandler(pgStore, redisCache),
		ModelsHandler:   handler.NewModelsHandler(client, redisCache, cfg.Server.ModelsCacheTTL),
		CreateUpload:    handler.NewCreateUploadHandler(registry, cfg.Workflow.MaxUploadBytes),
		ListUploads:     handler.NewListUploadsHandler(pgStore),
		GetUpload:       handler.NewGetUploadHandler(registry),
		DeleteUpload:    handler.NewDeleteUploadHandler(registry),
		DismissWarning:  handler.NewDismissWarningHandler(registry),
		DetailsHandler:  handler.NewDetailsHandler(registry),
		DownloadHandler: handler.NewDownloadHandler(registry),
		RunIDHandler:    handler.NewRunIDHandler(registry),
		RunResults:      handler.NewRunResultHandler(redisCache, pgStore),
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
