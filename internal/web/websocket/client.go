package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. A single compile_line frame
	// is one query line, never anywhere near this.
	maxMessageSize = 512 * 1024 // 512KB
)

// Client is one compile-stream connection: a query-builder UI sending
// compile_line frames and reading back compile_result frames.
type Client struct {
	// ID identifies the connection in logs; it is not an authenticated
	// identity (that's auth.GetClientID on the originating HTTP request).
	ID string

	// UserID is set from auth.GetClientID when the upgrade request carried
	// a validated bearer token.
	UserID string

	conn *websocket.Conn
	hub  *Hub

	send chan []byte

	ctx    context.Context
	cancel context.CancelFunc

	heartbeatMu   sync.RWMutex
	lastHeartbeat time.Time

	// linesProcessed counts compile_line messages this connection has had
	// dispatched successfully, surfaced in the disconnect log line as a
	// cheap per-connection usage signal.
	linesProcessed atomic.Int64

	connectedAt time.Time
	closed      atomic.Bool
}

// NewClient creates a new Client instance
func NewClient(id string, conn *websocket.Conn, hub *Hub) *Client {
	ctx, cancel := context.WithCancel(hub.ctx)

	return &Client{
		ID:            id,
		conn:          conn,
		hub:           hub,
		send:          make(chan []byte, 256),
		ctx:           ctx,
		cancel:        cancel,
		lastHeartbeat: time.Now(),
		connectedAt:   time.Now(),
	}
}

// ReadPump pumps compile_line frames from the connection to the hub.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.updateHeartbeat()
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			_, message, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("compile-stream error for client %s: %v", c.ID, err)
				}
				return
			}

			c.updateHeartbeat()

			if err := c.hub.HandleMessage(c.ctx, c, message); err != nil {
				log.Printf("compile-stream: error handling line from client %s: %v", c.ID, err)
				c.SendError(err.Error())
			}
		}
	}
}

// WritePump pumps compile_result frames from the hub to the connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			if _, err := w.Write(message); err != nil {
				return
			}

			// Add queued messages to the current WebSocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				if _, err := w.Write([]byte{'\n'}); err != nil {
					return
				}
				if _, err := w.Write(<-c.send); err != nil {
					return
				}
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Send queues message for delivery to the client.
func (c *Client) Send(message *Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("client closed")
		}
	}()

	if c.closed.Load() {
		return fmt.Errorf("client closed")
	}

	data, marshalErr := marshalMessage(message)
	if marshalErr != nil {
		return marshalErr
	}

	if c.closed.Load() {
		return fmt.Errorf("client closed")
	}

	select {
	case c.send <- data:
		return nil
	case <-c.ctx.Done():
		return context.Canceled
	default:
		log.Printf("compile-stream: client %s send channel full, dropping compile_result", c.ID)
		return fmt.Errorf("send channel full")
	}
}

// SendError sends an "error" message carrying errorMsg, for a frame that
// could not be dispatched (malformed envelope or a handler error). A compile
// failure is not sent this way: it arrives as a normal compile_result with
// its own Error field.
func (c *Client) SendError(errorMsg string) {
	_ = c.Send(&Message{
		Type: "error",
		Payload: map[string]string{
			"message": errorMsg,
		},
	})
}

// SendJSON marshals payload as the Data of a Message of the given type and
// sends it to the client.
func (c *Client) SendJSON(messageType string, payload interface{}) error {
	return c.Send(&Message{
		Type:    messageType,
		Payload: payload,
	})
}

// updateHeartbeat records that the connection is still alive, either from a
// pong frame or from having just processed a compile_line.
func (c *Client) updateHeartbeat() {
	c.heartbeatMu.Lock()
	defer c.heartbeatMu.Unlock()
	c.lastHeartbeat = time.Now()
}

// GetLastHeartbeat returns the last heartbeat timestamp.
func (c *Client) GetLastHeartbeat() time.Time {
	c.heartbeatMu.RLock()
	defer c.heartbeatMu.RUnlock()
	return c.lastHeartbeat
}

// ConnectionDuration returns how long the client has been connected.
func (c *Client) ConnectionDuration() time.Duration {
	return time.Since(c.connectedAt)
}

// Close gracefully closes the client connection.
func (c *Client) Close() {
	c.closed.Store(true)
	c.cancel()
	c.hub.unregister <- c
}

// marshalMessage serializes message to JSON, marshaling Payload into Data
// first when Payload was set instead of a pre-encoded Data.
func marshalMessage(message *Message) ([]byte, error) {
	if message.Payload != nil {
		data, err := json.Marshal(message.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		message.Data = data
	}

	return json.Marshal(message)
}
