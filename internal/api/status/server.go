// Package status serves the optional HTTP status, metrics and remote
// control endpoint.
package status

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/osa030/qrjukebox/internal/app/notification"
	"github.com/osa030/qrjukebox/internal/app/playback"
)

// AdminTokenHeader is the header carrying the control token.
const AdminTokenHeader = "X-Admin-Token"

// Engine is the playback surface exposed over HTTP.
type Engine interface {
	Snapshot() playback.Snapshot
	PlayAlbum(selector string) bool
	StopPlayback() bool
	SkipTrack() bool
}

// Catalog lists the available albums.
type Catalog interface {
	Albums() ([]string, error)
	Has(selector string) bool
}

// Config holds server configuration.
type Config struct {
	Addr       string
	AdminToken string // Empty disables the control endpoints
}

// Server is the status HTTP server.
type Server struct {
	config   Config
	engine   Engine
	catalog  Catalog
	notifier *notification.Manager
	metrics  *Metrics
	router   chi.Router

	httpServer *http.Server
	listener   net.Listener

	// done is closed on shutdown to end long-lived event streams.
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a status server. notifier may be nil, which disables /events.
func New(cfg Config, engine Engine, catalog Catalog, notifier *notification.Manager, metrics *Metrics) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(requestLogger)

	s := &Server{
		config:   cfg,
		engine:   engine,
		catalog:  catalog,
		notifier: notifier,
		metrics:  metrics,
		router:   router,
		done:     make(chan struct{}),
	}
	s.configureRoutes()

	// Create server with h2c (HTTP/2 cleartext) support
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           h2c.NewHandler(router, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer.RegisterOnShutdown(s.closeStreams)
	return s
}

func (s *Server) closeStreams() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/status", s.handleStatus)
	s.router.Get("/albums", s.handleAlbums)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler())
	}
	if s.notifier != nil {
		s.router.Get("/events", s.handleEvents)
	}
	if s.config.AdminToken != "" {
		s.router.Route("/control", func(r chi.Router) {
			r.Use(s.adminAuth)
			r.Post("/stop", s.handleStop)
			r.Post("/skip", s.handleSkip)
			r.Post("/play/{album}", s.handlePlay)
		})
	}
}

// Start binds the listen address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", s.config.Addr)
	}
	s.listener = ln

	go func() {
		zlog.Info().Msgf("status: serving on http://%s", ln.Addr())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Error().Msgf("status: server error: %v", err)
		}
	}()
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.config.Addr
	}
	return s.listener.Addr().String()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeStreams()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "failed to shutdown status server")
	}
	zlog.Info().Msg("status: server stopped")
	return nil
}

// adminAuth rejects control requests without the configured token.
func (s *Server) adminAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(AdminTokenHeader)
		if token == "" || token != s.config.AdminToken {
			writeError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		zlog.Debug().Msgf("status: %s %s (%s) request_id=%s",
			r.Method, r.URL.Path, time.Since(start), middleware.GetReqID(r.Context()))
	})
}
