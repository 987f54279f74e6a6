package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"boardsync-backend/application/ports"
	"boardsync-backend/interfaces/http/rest/handlers"
	"boardsync-backend/interfaces/http/rest/middleware"
	"boardsync-backend/internal/config"
	"boardsync-backend/pkg/auth"
)

// Router assembles the full HTTP surface: the board management API, the
// WebSocket endpoint, health probes and metrics.
type Router struct {
	cfg            *config.Config
	store          ports.Store
	jwtService     *auth.JWTService
	wsHandler      http.HandlerFunc
	metricsHandler http.Handler
	logger         *zap.Logger
}

// NewRouter creates a new router instance.
func NewRouter(
	cfg *config.Config,
	store ports.Store,
	jwtService *auth.JWTService,
	wsHandler http.HandlerFunc,
	metricsHandler http.Handler,
	logger *zap.Logger,
) *Router {
	return &Router{
		cfg:            cfg,
		store:          store,
		jwtService:     jwtService,
		wsHandler:      wsHandler,
		metricsHandler: metricsHandler,
		logger:         logger,
	}
}

// Setup configures all routes and middleware.
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))

	if rt.cfg.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Probes and metrics
	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	router.Method(http.MethodGet, "/metrics", rt.metricsHandler)

	// Realtime endpoint; the credential exchange happens in-band on the
	// first frame, so no auth middleware here.
	router.Get("/ws", rt.wsHandler)

	// API v1 routes
	router.Route("/api/v1", func(r chi.Router) {
		if rt.cfg.IsDevelopment() {
			tokenHandler := handlers.NewTokenHandler(rt.jwtService, rt.logger)
			r.Post("/auth/token", tokenHandler.Mint)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(rt.jwtService, rt.logger))

			boardHandler := handlers.NewBoardHandler(rt.store, rt.logger)
			r.Route("/boards", func(r chi.Router) {
				r.Post("/", boardHandler.CreateBoard)
				r.Get("/", boardHandler.ListBoards)
				r.Get("/{boardID}", boardHandler.GetBoard)
				r.Delete("/{boardID}", boardHandler.DeleteBoard)
				r.Post("/{boardID}/members", boardHandler.AddMember)
				r.Delete("/{boardID}/members/{userID}", boardHandler.RemoveMember)
				r.Get("/{boardID}/elements", boardHandler.ListElements)
			})
		})
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck reports whether the persistence backend answers.
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	if _, err := rt.store.ListBoardsByUser(req.Context(), "readiness-probe"); err != nil {
		rt.logger.Warn("Readiness probe failed", zap.Error(err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"unavailable"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}
