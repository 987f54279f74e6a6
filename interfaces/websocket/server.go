package websocket

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"boardsync-backend/internal/config"
	"boardsync-backend/pkg/observability"
)

// Server upgrades HTTP requests to WebSocket connections. Connections are
// accepted unauthenticated; the credential exchange happens on the first
// frame.
type Server struct {
	router   *Router
	registry *Registry
	upgrader websocket.Upgrader
	dynamic  *config.DynamicHolder
	metrics  *observability.Collector
	logger   *zap.Logger
}

// ServerConfig holds WebSocket server configuration
type ServerConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultServerConfig returns default WebSocket server configuration
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Origin policy is enforced by the fronting proxy
			return true
		},
	}
}

// NewServer creates a WebSocket server.
func NewServer(
	router *Router,
	registry *Registry,
	dynamic *config.DynamicHolder,
	metrics *observability.Collector,
	cfg *ServerConfig,
	logger *zap.Logger,
) *Server {
	if cfg == nil {
		cfg = DefaultServerConfig()
	}
	return &Server{
		router:   router,
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     cfg.CheckOrigin,
		},
		dynamic: dynamic,
		metrics: metrics,
		logger:  logger,
	}
}

// HandleWebSocket upgrades the request and registers the connection in
// the unauthenticated state.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Failed to upgrade connection",
			zap.Error(err),
			zap.String("remote_addr", r.RemoteAddr),
		)
		return
	}

	limits := s.dynamic.Current().WebSocket
	client := NewClient(conn, s.router, limits.SendQueueSize, limits.MaxMessageBytes, s.logger)
	s.registry.Register(client)
	s.metrics.ActiveConnections.Set(float64(s.registry.Count()))

	client.Start()

	s.logger.Info("WebSocket connection established",
		zap.String("connection_id", client.ID),
		zap.String("remote_addr", r.RemoteAddr),
	)
}

// Shutdown closes every live connection. Each close runs the normal
// disconnect path, so departures are still broadcast to rooms draining
// after it.
func (s *Server) Shutdown() {
	for _, client := range s.registry.Clients() {
		client.Close()
	}
	s.logger.Info("WebSocket server shut down")
}
