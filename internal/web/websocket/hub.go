package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Hub tracks the clients of a single streaming-compile server and dispatches
// each incoming message to the handler registered for its Type (in
// practice, wsquery registers exactly one: "compile_line"). Unlike a
// chat-room hub, a compile session never needs to reach a second client, so
// there is no broadcast or room-grouping machinery here.
type Hub struct {
	clients   map[*Client]bool
	clientsMu sync.RWMutex

	register   chan *Client
	unregister chan *Client

	handlers   map[string]MessageHandler
	handlersMu sync.RWMutex

	shutdown chan struct{}
	wg       sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// Message is the envelope carried over the compile-stream connection: a
// "compile_line" request from the client or a "compile_result" response
// from the server, distinguished by Type.
type Message struct {
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
	Payload interface{}     `json:"-"`
}

// MessageHandler handles one incoming Message for client.
type MessageHandler func(ctx context.Context, client *Client, message *Message) error

// NewHub creates a new Hub bound to ctx; canceling ctx (or calling
// Shutdown) disconnects every client.
func NewHub(ctx context.Context) *Hub {
	hubCtx, cancel := context.WithCancel(ctx)

	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client, 256),
		unregister: make(chan *Client, 256),
		handlers:   make(map[string]MessageHandler),
		shutdown:   make(chan struct{}),
		ctx:        hubCtx,
		cancel:     cancel,
	}
}

// RegisterHandler registers handler for messages of the given Type.
func (h *Hub) RegisterHandler(messageType string, handler MessageHandler) {
	h.handlersMu.Lock()
	defer h.handlersMu.Unlock()
	h.handlers[messageType] = handler
}

// Run starts the hub's event loop: client register/unregister and a
// periodic stale-connection sweep. It blocks until ctx is canceled or
// Shutdown is called.
func (h *Hub) Run() {
	h.wg.Add(1)
	defer h.wg.Done()

	cleanupTicker := time.NewTicker(30 * time.Second)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			h.cleanup()
			return

		case <-h.shutdown:
			h.cleanup()
			return

		case client := <-h.register:
			h.clientsMu.Lock()
			h.clients[client] = true
			h.clientsMu.Unlock()
			log.Printf("compile-stream client connected: %s (total: %d)", client.ID, h.ClientCount())

		case client := <-h.unregister:
			h.clientsMu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.closed.Store(true)
				close(client.send)
			}
			h.clientsMu.Unlock()
			log.Printf("compile-stream client disconnected: %s (lines: %d, total: %d)",
				client.ID, client.linesProcessed.Load(), h.ClientCount())

		case <-cleanupTicker.C:
			h.cleanupStaleConnections()
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// HandleMessage dispatches an incoming frame to the handler registered for
// its Type, incrementing client's line counter on a successful dispatch.
func (h *Hub) HandleMessage(ctx context.Context, client *Client, data []byte) error {
	var message Message
	if err := json.Unmarshal(data, &message); err != nil {
		return err
	}

	h.handlersMu.RLock()
	handler, ok := h.handlers[message.Type]
	h.handlersMu.RUnlock()

	if !ok {
		log.Printf("compile-stream: no handler for message type %q", message.Type)
		return nil
	}

	if err := handler(ctx, client, &message); err != nil {
		return err
	}
	client.linesProcessed.Add(1)
	return nil
}

// cleanup disconnects every client, used on shutdown.
func (h *Hub) cleanup() {
	log.Printf("compile-stream hub shutting down, disconnecting %d clients", h.ClientCount())

	h.clientsMu.Lock()
	for client := range h.clients {
		client.closed.Store(true)
		if client.conn != nil {
			client.conn.Close()
		}
	}
	h.clients = make(map[*Client]bool)
	h.clientsMu.Unlock()
}

// cleanupStaleConnections disconnects clients that haven't sent a line or
// heartbeat in 90 seconds — a query-builder UI left open in a backgrounded
// tab, most commonly.
func (h *Hub) cleanupStaleConnections() {
	h.clientsMu.RLock()
	staleClients := make([]*Client, 0)

	for client := range h.clients {
		if time.Since(client.GetLastHeartbeat()) > 90*time.Second {
			staleClients = append(staleClients, client)
		}
	}
	h.clientsMu.RUnlock()

	for _, client := range staleClients {
		log.Printf("compile-stream: dropping stale client %s", client.ID)
		h.unregister <- client
	}
}

// Shutdown stops the hub's event loop and waits for Run to return.
func (h *Hub) Shutdown() {
	log.Printf("compile-stream hub shutdown initiated")
	h.cancel()
	close(h.shutdown)
	h.wg.Wait()
	log.Printf("compile-stream hub shutdown complete")
}
