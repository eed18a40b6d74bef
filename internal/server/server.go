package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	v1 "github.com/gosuda/deepsearch/internal/api/v1"
	"github.com/gosuda/deepsearch/internal/api/ws"
	"github.com/gosuda/deepsearch/internal/config"
	"github.com/gosuda/deepsearch/internal/server/middleware"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the HTTP layer routes to.
type Deps struct {
	Auth  middleware.Authenticator
	Gate  v1.QuotaGate
	Chat  v1.ChatRunner
	Tools v1.ToolCatalog
	Users v1.UserDirectory
	// Hub mirrors chat streams over WebSocket. Nil disables /ws and mirroring.
	Hub *ws.Hub
	// Checks are pinged by /readyz.
	Checks map[string]Pinger
}

// Server is the HTTP server that wires all application routes and middleware.
type Server struct {
	router     chi.Router
	httpServer *http.Server
}

// New creates a Server with all routes wired. ctx bounds the background
// goroutines of the rate limiters.
func New(ctx context.Context, cfg *config.Config, deps Deps) *Server {
	router := chi.NewRouter()

	// Global middleware stack.
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(middleware.RequestLogger)
	router.Use(chimw.Logger)
	router.Use(chimw.Recoverer)
	router.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)

	s := &Server{
		router: router,
		httpServer: &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}

	authn := middleware.Auth(deps.Auth)
	perUser := middleware.RateLimit(ctx, cfg.Quota.BurstRPS, cfg.Quota.Burst)

	// Streaming chat endpoint. Served outside huma so frames are never buffered.
	router.Group(func(r chi.Router) {
		r.Use(authn)
		r.Use(perUser)
		registerChatRoutes(r, newChatHandler(deps))
	})

	// Typed JSON API.
	router.Route("/api/v1", func(r chi.Router) {
		r.Use(authn)

		apiConfig := huma.DefaultConfig("Deepsearch API", "1.0.0")
		apiConfig.Servers = []*huma.Server{
			{URL: "/api/v1"},
		}
		api := humachi.New(r, apiConfig)
		registerAPIRoutes(api, deps)
	})

	// WebSocket routes.
	if deps.Hub != nil {
		router.Route("/ws", func(r chi.Router) {
			r.Use(authn)
			registerWSRoutes(r, deps.Hub)
		})
	}

	// Health checks (unauthenticated).
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	router.Get("/readyz", readyHandler(deps.Checks))

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening for HTTP requests.
func (s *Server) Start(_ context.Context) error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.Start: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}
