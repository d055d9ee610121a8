package websocket

import (
	"context"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sievelang/sieve/internal/web/auth"
)

// Config holds WebSocket upgrade configuration.
type Config struct {
	ReadBufferSize  int
	WriteBufferSize int

	// CheckOrigin validates the Origin header on the upgrade request.
	CheckOrigin func(r *http.Request) bool

	EnableCompression bool
}

// DefaultConfig returns the default WebSocket configuration for the
// compile-stream endpoint.
func DefaultConfig() *Config {
	return &Config{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// The HTTP middleware chain already authenticates the upgrade
			// request with a bearer token; same-origin restriction adds
			// little beyond that for a compile API meant to be called
			// from arbitrary query-builder front ends.
			return true
		},
		EnableCompression: false,
	}
}

// Upgrader upgrades HTTP requests to compile-stream WebSocket connections.
type Upgrader struct {
	config   *Config
	upgrader *websocket.Upgrader
	hub      *Hub
}

// NewUpgrader creates a new Upgrader.
func NewUpgrader(config *Config, hub *Hub) *Upgrader {
	if config == nil {
		config = DefaultConfig()
	}

	upgrader := &websocket.Upgrader{
		ReadBufferSize:    config.ReadBufferSize,
		WriteBufferSize:   config.WriteBufferSize,
		CheckOrigin:       config.CheckOrigin,
		EnableCompression: config.EnableCompression,
	}

	return &Upgrader{
		config:   config,
		upgrader: upgrader,
		hub:      hub,
	}
}

// ServeHTTP upgrades the connection and starts the client's pumps. The
// caller (middleware.AuthWithConfig, ahead of this handler in the chain)
// has already validated the request's bearer token, so the client is
// tagged with that client ID for log correlation rather than performing a
// second, WebSocket-specific handshake.
func (u *Upgrader) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := u.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("compile-stream upgrade failed: %v", err)
		return
	}

	clientID := uuid.New().String()
	client := NewClient(clientID, conn, u.hub)
	client.UserID = auth.GetClientID(r.Context())

	u.hub.register <- client

	go client.WritePump()
	go client.ReadPump()

	log.Printf("compile-stream connection established: %s (client: %s)", clientID, client.UserID)
}

// Handler returns an http.HandlerFunc for the WebSocket upgrade.
func (u *Upgrader) Handler() http.HandlerFunc {
	return u.ServeHTTP
}

// Server wraps a Hub and Upgrader for convenient compile-stream setup.
type Server struct {
	Hub      *Hub
	Upgrader *Upgrader
	Config   *Config
}

// NewServer creates a new compile-stream server. Callers register their own
// message handlers on srv.Hub before calling Start (wsquery registers
// "compile_line"); there are no default handlers.
func NewServer(ctx context.Context, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	hub := NewHub(ctx)
	upgrader := NewUpgrader(config, hub)

	return &Server{
		Hub:      hub,
		Upgrader: upgrader,
		Config:   config,
	}
}

// Start starts the hub's event loop in the background.
func (s *Server) Start() {
	go s.Hub.Run()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() {
	s.Hub.Shutdown()
}

// Handler returns the HTTP handler for the WebSocket upgrade.
func (s *Server) Handler() http.HandlerFunc {
	return s.Upgrader.Handler()
}
