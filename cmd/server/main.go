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

	"vidadmin/internal/server/api"
	"vidadmin/internal/server/auth"
	"vidadmin/internal/server/config"
	"vidadmin/internal/server/database"
	"vidadmin/internal/server/service"
	"vidadmin/internal/server/storage"
	"vidadmin/internal/server/web"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Structured logging
	slog.SetDefault(config.SetupLogger(cfg))
	slog.Info("configuration loaded",
		"port", cfg.Port,
		"storage_backend", cfg.StorageBackend,
		"bucket", cfg.Bucket,
		"max_upload_size", cfg.MaxUploadSize,
		"signed_url_ttl", cfg.SignedURLTTL,
	)
	if cfg.GeneratedSessionSecret {
		slog.Warn("SESSION_SECRET not set, using a random secret; sessions will not survive a restart")
	}

	// Connect to the credential store
	ctx := context.Background()
	users, err := database.Open(ctx, cfg.DatabaseURL, cfg.MongoDatabase)
	if err != nil {
		slog.Error("failed to open credential store", "error", err)
		os.Exit(1)
	}
	slog.Info("credential store ready")

	// Storage backend, opened on first use
	backends := storage.NewLazy(openBackend(cfg))
	if err := checkPublicRead(ctx, backends, cfg); err != nil {
		slog.Error("storage check failed", "error", err)
		os.Exit(1)
	}

	// Scratch area for staged uploads
	scratch := storage.NewScratchDir(cfg.ScratchDir)
	if err := scratch.EnsureDir(); err != nil {
		slog.Error("failed to initialize scratch directory", "error", err)
		os.Exit(1)
	}
	slog.Info("scratch directory initialized", "path", scratch.Path())

	// Services
	tokens := auth.NewTokenManager(cfg.SessionSecret, cfg.SessionTTL, "vidadmin")
	accounts := service.NewAuthService(users, tokens, cfg)
	videos := service.NewVideoService(backends, scratch, cfg)

	// Background workers
	bgCtx, bgCancel := context.WithCancel(context.Background())
	sweeper := storage.NewSweepService(scratch.Path(), cfg.ScratchMaxAge, cfg.SweepInterval)
	sweeper.Start(bgCtx)
	loginLimiter := api.NewRateLimiter(cfg.LoginRateRPS, cfg.LoginRateBurst)
	loginLimiter.Start(bgCtx)

	// Setup HTTP router
	renderer, err := web.NewRenderer()
	if err != nil {
		slog.Error("failed to load templates", "error", err)
		os.Exit(1)
	}
	handler := api.NewHandler(videos, accounts, users, backends, cfg)
	e := api.SetupRouter(handler, accounts, loginLimiter, renderer, cfg)

	// Start server in a goroutine
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		slog.Info("starting server", "addr", addr, "base_url", cfg.BaseURL)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server stopped", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutting down", "signal", sig)

	// Stop accepting new requests, finish in-flight with 30s timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	// Stop background workers
	bgCancel()
	sweeper.Wait()

	if err := backends.Close(); err != nil {
		slog.Error("failed to close storage backend", "error", err)
	}
	if err := users.Close(shutdownCtx); err != nil {
		slog.Error("failed to close credential store", "error", err)
	}

	slog.Info("server exited cleanly")
}

func openBackend(cfg *config.Config) storage.OpenFunc {
	if cfg.StorageBackend == config.BackendFS {
		return func(context.Context) (storage.Backend, error) {
			store := storage.NewFileSystemStore(cfg.FSRoot, cfg.BaseURL, cfg.SessionSecret, cfg.FSPublicRead)
			if err := store.EnsureDir(); err != nil {
				return nil, err
			}
			return store, nil
		}
	}
	return func(ctx context.Context) (storage.Backend, error) {
		return storage.NewGCSStore(ctx, storage.GCSConfig{
			ProjectID:     cfg.ProjectID,
			ClientEmail:   cfg.ClientEmail,
			PrivateKey:    cfg.PrivateKey,
			Bucket:        cfg.Bucket,
			PublicURLBase: cfg.PublicURLBase,
		})
	}
}

// checkPublicRead verifies that public URLs will resolve. With
// STORAGE_REQUIRE_PUBLIC_READ the check runs before serving and a failure
// aborts startup; otherwise it runs in the background and only warns.
func checkPublicRead(ctx context.Context, backends *storage.Lazy, cfg *config.Config) error {
	check := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()

		backend, err := backends.Backend(ctx)
		if err != nil {
			return fmt.Errorf("failed to open storage backend: %w", err)
		}
		public, err := backend.CheckPublicRead(ctx)
		if err != nil {
			return fmt.Errorf("failed to read bucket policy: %w", err)
		}
		if !public {
			return fmt.Errorf("bucket %s does not allow public reads; public URLs will be denied", cfg.Bucket)
		}
		return nil
	}

	if cfg.RequirePublicRead {
		return check(ctx)
	}
	go func() {
		if err := check(context.Background()); err != nil {
			slog.Warn("public read check failed", "error", err)
		}
	}()
	return nil
}
