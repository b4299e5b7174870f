// Package server wires the HTTP surface: health, dataset info and the clip
// endpoint.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/geoglim/clipserver/internal/aoi"
	"github.com/geoglim/clipserver/internal/clip"
	"github.com/geoglim/clipserver/internal/config"
	"github.com/geoglim/clipserver/internal/dataset"
	"github.com/geoglim/clipserver/internal/health"
	"github.com/geoglim/clipserver/internal/middleware"
	"github.com/geoglim/clipserver/internal/registry"
	"github.com/geoglim/clipserver/internal/resultcache"
	"github.com/geoglim/clipserver/internal/serialize"
)

type Server struct {
	cfg     config.Config
	log     *slog.Logger
	reg     *registry.Registry
	cache   *dataset.Cache
	engine  *clip.Engine
	checker *health.Checker
	valid   *aoi.Validator
	ser     *serialize.Serializer

	// results is nil when the response cache is disabled.
	results *resultcache.Cache
}

func New(cfg config.Config, log *slog.Logger, reg *registry.Registry, cache *dataset.Cache, engine *clip.Engine) (*Server, error) {
	s := &Server{
		cfg:     cfg,
		log:     log,
		reg:     reg,
		cache:   cache,
		engine:  engine,
		checker: health.NewChecker(reg),
		valid: &aoi.Validator{
			MaxAreaKm2:  cfg.MaxClipAreaKm2,
			EnforceArea: cfg.AreaCheck,
		},
		ser: &serialize.Serializer{TempDir: cfg.TmpDir},
	}
	if cfg.ResultCacheSize > 0 {
		rc, err := resultcache.New(cfg.ResultCacheSize, cfg.ResultCacheMaxBytes)
		if err != nil {
			return nil, err
		}
		s.results = rc
	}
	return s, nil
}

// Router builds the HTTP handler with the full middleware chain.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(s.log))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(s.log))
	r.Use(middleware.CORS())

	r.Get("/", s.handleHealth)
	r.Post("/clip/{dataset}", s.handleClip)
	r.Get("/datasets/{dataset}/info", s.handleInfo)

	return r
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http listen", "addr", s.cfg.Addr)
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
