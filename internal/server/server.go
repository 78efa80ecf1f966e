// Package server exposes the dashboard over HTTP: the receipt list and
// statistics read endpoints backed by the shared query cache, the
// upload proxy, and the operational endpoints.
package server

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/fisdash/fisdash/dashboard"
	"github.com/fisdash/fisdash/datasource"
	"github.com/fisdash/fisdash/internal/config"
	"github.com/fisdash/fisdash/internal/observability"
	"github.com/fisdash/fisdash/upload"
)

// Deps are the collaborators the server routes requests to.
type Deps struct {
	Logger      *zap.Logger
	Metrics     *observability.Metrics
	Source      datasource.Source
	Records     datasource.RecordSource
	Uploader    *upload.Client
	Invalidator *dashboard.Invalidator
}

// Server is the HTTP front of the dashboard.
type Server struct {
	cfg  config.ServerConfig
	deps Deps

	router     *mux.Router
	httpServer *http.Server
}

// New builds the router and wires the handlers. All dependencies are
// required except Metrics, which may be nil in tests.
func New(cfg config.ServerConfig, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	s := &Server{cfg: cfg, deps: deps}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(recoveryMiddleware(s.deps.Logger))
	r.Use(loggingMiddleware(s.deps.Logger))
	r.Use(corsMiddleware)
	if s.deps.Metrics != nil {
		r.Use(metricsMiddleware(s.deps.Metrics))
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/fisler", s.handleList).Methods(http.MethodGet)
	api.HandleFunc("/fisler/{id}", s.handleGet).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/stats/cards", s.handleStatCards).Methods(http.MethodGet)
	api.HandleFunc("/upload-file", s.handleUpload).Methods(http.MethodPost, http.MethodOptions)

	if s.deps.Metrics != nil {
		r.Handle("/metrics", s.deps.Metrics.Handler()).Methods(http.MethodGet)
	}
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	return r
}

// Handler returns the fully wired router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks serving HTTP until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	s.deps.Logger.Info("http server listening", zap.String("addr", s.cfg.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
