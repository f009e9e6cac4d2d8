// Package server boots and runs the Saveur HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shashiranjanraj/saveur/app/routes"
	"github.com/shashiranjanraj/saveur/config"
	"github.com/shashiranjanraj/saveur/pkg/cache"
	"github.com/shashiranjanraj/saveur/pkg/database"
	"github.com/shashiranjanraj/saveur/pkg/logger"
	"github.com/shashiranjanraj/saveur/pkg/metrics"
	"github.com/shashiranjanraj/saveur/pkg/middleware"
	"github.com/shashiranjanraj/saveur/pkg/reqid"
	"github.com/shashiranjanraj/saveur/pkg/router"
	"github.com/shashiranjanraj/saveur/pkg/storage"
	"github.com/shashiranjanraj/saveur/pkg/workerpool"
)

const shutdownTimeout = 15 * time.Second

// Start boots every subsystem and serves until SIGINT/SIGTERM.
func Start() error {
	if err := config.Load(); err != nil {
		logger.Warn("config files not loaded, using env and defaults", "error", err)
	}

	ctx := context.Background()
	if err := database.Connect(ctx); err != nil {
		return fmt.Errorf("mongo: %w", err)
	}
	if err := cache.Connect(); err != nil {
		logger.Warn("redis unavailable, caching disabled", "error", err)
	}
	storage.Connect()

	pool := workerpool.New(4)

	r := NewRouter(pool)

	srv := &http.Server{
		Addr:              ":" + config.AppPort(),
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr, "env", config.AppEnv())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	pool.Shutdown()
	if err := database.Disconnect(shutdownCtx); err != nil {
		logger.Error("mongo disconnect", "error", err)
	}

	logger.Info("server stopped")
	return nil
}

// NewRouter builds the router with the global middleware stack, the
// operational endpoints and the API routes.
func NewRouter(pool *workerpool.Pool) *router.Router {
	r := router.New()

	r.Use(
		metrics.Middleware(),
		middleware.Recovery,
		reqid.Middleware(),
		middleware.Logger,
		middleware.CORS(middleware.DefaultCORSOptions()),
		middleware.RateLimit(200, time.Minute),
	)

	r.Get("/metrics", "metrics", metrics.Handler())

	routes.RegisterAPI(r, pool)
	return r
}
