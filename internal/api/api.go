// Package api implements the BusWeaver HTTP service.
//
// The service accepts topology manifests, builds and checks them through
// the shared pipeline, stores the resulting documents, and serves their
// systems, reports and rendered artifacts:
//
//	POST   /v1/topologies             upload a manifest, build + check + store
//	GET    /v1/topologies             list stored topologies (metadata only)
//	GET    /v1/topologies/{id}        fetch one topology with system and report
//	GET    /v1/topologies/{id}/report fetch the consistency report
//	GET    /v1/topologies/{id}/render fetch a rendered artifact (?format=svg|png|pdf|dot|json)
//	DELETE /v1/topologies/{id}        remove a stored topology
//	GET    /healthz                   liveness probe
//
// Errors are returned as a JSON envelope carrying the structured code of
// the underlying failure, so API clients can branch on the same codes the
// library returns:
//
//	{"error": {"code": "OVERLAP", "message": "..."}}
//
// The server is storage-agnostic: any [store.Store] backend works, and
// caching follows whatever cache the pipeline runner was built with.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/busweaver/busweaver/pkg/pipeline"
	"github.com/busweaver/busweaver/pkg/store"
)

// Server wires the HTTP handlers to their collaborators.
type Server struct {
	store  store.Store
	runner *pipeline.Runner
	logger *log.Logger
}

// NewServer creates a server on the given store and pipeline runner.
// A nil logger falls back to the default logger.
func NewServer(st store.Store, runner *pipeline.Runner, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{store: st, runner: runner, logger: logger}
}

// Router builds the chi router with all routes and middleware attached.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(requestLogger(s.logger))
	r.Use(recoverer(s.logger))

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1/topologies", func(r chi.Router) {
		r.Post("/", s.handleCreateTopology)
		r.Get("/", s.handleListTopologies)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetTopology)
			r.Delete("/", s.handleDeleteTopology)
			r.Get("/report", s.handleGetReport)
			r.Get("/render", s.handleRenderTopology)
		})
	})

	return r
}

// shutdownTimeout bounds how long in-flight requests may run after the
// server is asked to stop.
const shutdownTimeout = 10 * time.Second

// ListenAndServe runs the server on addr until ctx is cancelled or the
// listener fails, then drains in-flight requests. Write timeouts are
// generous because rendering large topologies to PNG can take seconds.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("listening", "addr", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		s.logger.Info("server stopped")
		return nil
	}
}
