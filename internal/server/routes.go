package server

import (
	"github.com/fulmenhq/gofulmen/signals"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/crmlink/crmlink/internal/observability"
	"github.com/crmlink/crmlink/internal/server/handlers"
	servermw "github.com/crmlink/crmlink/internal/server/middleware"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	// HubSpot API surface, rate limited per client IP
	hubspot := handlers.NewHubSpotHandler(s.opts.Service)
	s.router.Route("/api/v1/hubspot", func(r chi.Router) {
		r.Use(servermw.RateLimit(s.limiter))
		r.Get("/", hubspot.Welcome)
		r.Post("/contact", hubspot.CreateOrUpdateContact)
		r.Post("/deals", hubspot.CreateOrUpdateDeals)
		r.Post("/tickets", hubspot.CreateTickets)
		r.Get("/new-crm-objects", hubspot.RetrieveNewObjects)
	})

	// Standard health endpoints
	if s.opts.Health != nil {
		s.router.Get("/health", s.opts.Health.HealthHandler)
		s.router.Get("/health/live", s.opts.Health.LivenessHandler)
		s.router.Get("/health/ready", s.opts.Health.ReadinessHandler)
		s.router.Get("/health/startup", s.opts.Health.StartupHandler)
	}

	// Version endpoint
	s.router.Get("/version", handlers.VersionHandler)

	// Metrics endpoint (in server package to access HandleError)
	s.router.Get("/metrics", MetricsHandler)

	// Admin endpoints (optional, require the admin token)
	s.registerAdminEndpoints()
}

// registerAdminEndpoints registers the admin surface when a token is set.
func (s *Server) registerAdminEndpoints() {
	logger := observability.ServerLogger

	if s.opts.AdminToken == "" {
		if logger != nil {
			logger.Debug("Admin endpoints disabled (no admin token configured)")
		}
		return
	}

	// HTTP signal handler with bearer token auth and rate limiting
	signalHandler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: s.opts.AdminToken,
		RateLimit: 10,  // 10 requests per minute
		RateBurst: 5,   // burst size
		Manager:   nil, // use default global manager
	})
	s.router.Post("/admin/signal", signalHandler.ServeHTTP)

	// Inbound rate limiter inspection and reset
	s.router.Get("/admin/rate-limits", adminAuth(s.opts.AdminToken, s.rateLimitListHandler))
	s.router.Delete("/admin/rate-limits/{key}", adminAuth(s.opts.AdminToken, s.rateLimitResetHandler))

	if logger != nil {
		logger.Info("Admin endpoints enabled",
			zap.String("signal_path", "/admin/signal"),
			zap.String("rate_limit_path", "/admin/rate-limits"),
			zap.String("auth", "bearer token"))
		logger.Warn("Admin endpoints enabled - ensure this server is not exposed to public internet")
	}
}
