package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/crmlink/crmlink/internal/crm"
	apperrors "github.com/crmlink/crmlink/internal/errors"
	"github.com/crmlink/crmlink/internal/observability"
	"github.com/crmlink/crmlink/internal/ratelimit"
	"github.com/crmlink/crmlink/internal/server/handlers"
	servermw "github.com/crmlink/crmlink/internal/server/middleware"
)

// Options carries everything the server needs at construction time.
type Options struct {
	Host string
	Port int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// AdminToken enables the admin endpoints when non-empty.
	AdminToken string

	Service *crm.Service
	Limiter *ratelimit.Limiter
	Health  *handlers.HealthManager
}

// Server represents the HTTP server
type Server struct {
	router  *chi.Mux
	server  *http.Server
	opts    Options
	limiter *ratelimit.Limiter
}

// New creates a new HTTP server instance
func New(opts Options) *Server {
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.New(0, 0)
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 30 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 30 * time.Second
	}
	if opts.IdleTimeout == 0 {
		opts.IdleTimeout = 120 * time.Second
	}

	r := chi.NewRouter()

	// Standard chi middleware
	r.Use(middleware.RealIP)

	// Custom middleware in order (RequestID → Metrics → Errors → Recovery)
	r.Use(servermw.RequestID)
	r.Use(servermw.RequestMetrics)
	r.Use(servermw.ErrorHandler)
	r.Use(servermw.Recovery)

	// Standardized error responses using centralized HandleError
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		err := apperrors.NewNotFoundError("The requested resource was not found")
		HandleError(w, req, err)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		err := apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource")
		HandleError(w, req, err)
	})

	s := &Server{
		router:  r,
		opts:    opts,
		limiter: opts.Limiter,
	}

	// Ensure handlers use the centralized error responder
	handlers.SetHTTPErrorResponder(HandleError)

	s.registerRoutes()

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
	}

	observability.ServerLogger.Info("Starting HTTP server",
		zap.String("host", s.opts.Host),
		zap.Int("port", s.opts.Port),
		zap.String("addr", addr))

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	observability.ServerLogger.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the underlying router for testing and instrumentation
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the server port for testing
func (s *Server) Port() int {
	return s.opts.Port
}
