// Package server provides the HTTP server and routing for geld.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/geld/internal/config"
	"github.com/aristath/geld/internal/di"
	allocationhandlers "github.com/aristath/geld/internal/modules/allocation/handlers"
	goalshandlers "github.com/aristath/geld/internal/modules/goals/handlers"
	portfoliohandlers "github.com/aristath/geld/internal/modules/portfolio/handlers"
	rebalancinghandlers "github.com/aristath/geld/internal/modules/rebalancing/handlers"
)

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	Config    *config.Config
	Container *di.Container // DI container with all services
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	container      *di.Container
	systemHandlers *SystemHandlers
	limiter        *clientLimiter
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		cfg:       cfg.Config,
		container: cfg.Container,
		systemHandlers: NewSystemHandlers(
			cfg.Container.AdvisoryDB,
			cfg.Container.CacheDB,
			cfg.Container.EventBus,
			cfg.Container.ClientLocks,
			cfg.Config.API.CORSOrigins,
			cfg.Log,
		),
		limiter: newClientLimiter(cfg.Config.API.Rate, cfg.Config.API.Burst),
	}

	s.setupMiddleware()
	s.setupRoutes(cfg.Config.DevMode)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.metricsMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.API.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(devMode bool) {
	s.router.Get("/health", s.systemHandlers.HandleHealth)
	s.router.Method(http.MethodGet, "/metrics", s.container.Metrics.Handler())

	s.router.Route("/api", func(r chi.Router) {
		// The event stream is long lived and stays outside the request timeout and limiter
		r.Get("/events/ws", s.systemHandlers.HandleEventStream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			r.Use(s.rateLimitMiddleware)
			if !devMode {
				r.Use(middleware.Compress(5, "application/json", "text/markdown"))
			}

			r.Get("/system/status", s.systemHandlers.HandleSystemStatus)

			c := s.container
			portfoliohandlers.NewHandler(c.PositionRepo, s.log).RegisterRoutes(r)
			goalshandlers.NewHandler(c.GoalService, s.log).RegisterRoutes(r)
			allocationhandlers.NewHandler(c.Maintenance, c.Projector, c.Aggregator, s.log).RegisterRoutes(r)
			rebalancinghandlers.NewHandler(c.RebalancingService, s.log).RegisterRoutes(r)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
