// Package server exposes the bucketfs tree operations over HTTP.
//
// Routes:
//
//	GET    /healthz
//	GET    /metrics
//	GET    /v1/fs/ls?path=&files=
//	GET    /v1/fs/stat?path=
//	GET    /v1/fs/cat?path=
//	GET    /v1/fs/latest?path=
//	GET    /v1/fs/exists?path=
//	GET    /v1/fs/url?path=&ttl=
//	PUT    /v1/fs/object?path=
//	DELETE /v1/fs/object?path=&recursive=
//	POST   /v1/fs/mkdir?path=
//	POST   /v1/fs/copy
//	POST   /v1/fs/move
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/koustreak/bucketfs/internal/config"
	"github.com/koustreak/bucketfs/internal/fsys"
	"github.com/koustreak/bucketfs/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server serves an fsys.FS over HTTP.
type Server struct {
	fs       *fsys.FS
	cfg      config.ServerConfig
	log      *logger.Logger
	gatherer prometheus.Gatherer
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(l *logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithGatherer sets the registry served on /metrics. The default is
// prometheus.DefaultGatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		if g != nil {
			s.gatherer = g
		}
	}
}

// New returns a Server for fs.
func New(fs *fsys.FS, cfg config.ServerConfig, opts ...Option) *Server {
	s := &Server{
		fs:       fs,
		cfg:      cfg,
		log:      logger.Nop(),
		gatherer: prometheus.DefaultGatherer,
	}
	if s.cfg.MaxBodyBytes <= 0 {
		s.cfg.MaxBodyBytes = config.DefaultMaxBodyBytes
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1/fs", func(r chi.Router) {
		r.Get("/ls", s.handleList)
		r.Get("/stat", s.handleStat)
		r.Get("/cat", s.handleCat)
		r.Get("/latest", s.handleLatest)
		r.Get("/exists", s.handleExists)
		r.Get("/url", s.handlePresign)
		r.Put("/object", s.handlePut)
		r.Delete("/object", s.handleRemove)
		r.Post("/mkdir", s.handleMkdir)
		r.Post("/copy", s.handleCopy)
		r.Post("/move", s.handleMove)
	})
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully within the
// configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.With().Str("addr", s.cfg.Addr).Logger().Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.log.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
