package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/spatialmesh/stac-federator/internal/api"
	"github.com/spatialmesh/stac-federator/internal/core/config"
	"github.com/spatialmesh/stac-federator/internal/core/health"
	"github.com/spatialmesh/stac-federator/internal/core/middleware"
)

// Deps is everything the HTTP surface needs.
type Deps struct {
	Search      *api.Handler
	Datasources health.DatasourceLister
	Metrics     http.Handler
}

// sets up http and starts serving
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, deps Deps) error {
	r := chi.NewRouter()
	r.Use(middleware.Recover())
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(deps.Datasources))
	if deps.Metrics != nil {
		r.Get("/metrics", deps.Metrics.ServeHTTP)
	}

	r.With(middleware.Metrics("/stac/search")).
		Post("/stac/search", withDeadline(cfg.QueryDeadline, deps.Search.Search))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

// withDeadline bounds the whole request, so a stalled driver cannot hold
// the response open indefinitely.
func withDeadline(d time.Duration, next http.HandlerFunc) http.HandlerFunc {
	if d <= 0 {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), d)
		defer cancel()
		next(w, r.WithContext(ctx))
	}
}
