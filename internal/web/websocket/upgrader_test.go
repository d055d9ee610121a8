package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, 1024, config.ReadBufferSize)
	assert.Equal(t, 1024, config.WriteBufferSize)
	assert.NotNil(t, config.CheckOrigin)
	assert.False(t, config.EnableCompression)
}

func TestNewUpgrader(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(ctx)
	config := DefaultConfig()

	upgrader := NewUpgrader(config, hub)

	assert.NotNil(t, upgrader)
	assert.Equal(t, config, upgrader.config)
	assert.Equal(t, hub, upgrader.hub)
	assert.NotNil(t, upgrader.upgrader)
}

func TestUpgraderWithNilConfig(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(ctx)

	upgrader := NewUpgrader(nil, hub)

	assert.NotNil(t, upgrader)
	assert.NotNil(t, upgrader.config)
}

func TestNewServer(t *testing.T) {
	ctx := context.Background()
	config := DefaultConfig()

	server := NewServer(ctx, config)

	assert.NotNil(t, server)
	assert.NotNil(t, server.Hub)
	assert.NotNil(t, server.Upgrader)
	assert.Equal(t, config, server.Config)
}

func TestServerStartShutdown(t *testing.T) {
	ctx := context.Background()
	server := NewServer(ctx, nil)

	server.Start()

	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 0, server.Hub.ClientCount())

	server.Shutdown()

	time.Sleep(50 * time.Millisecond)
}

func TestUpgraderServeHTTP(t *testing.T) {
	ctx := context.Background()
	server := NewServer(ctx, nil)
	server.Start()
	defer server.Shutdown()

	testServer := httptest.NewServer(server.Handler())
	defer testServer.Close()

	wsURL := "ws" + strings.TrimPrefix(testServer.URL, "http")

	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, 1, server.Hub.ClientCount())
}

func TestUpgraderTagsClientIDFromContext(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(ctx)
	upgrader := NewUpgrader(nil, hub)

	assert.NotNil(t, upgrader)
	// The client ID comes from auth.GetClientID on the request context, set
	// by the HTTP auth middleware ahead of the upgrade; ServeHTTP itself
	// performs no separate token validation.
}

func TestCheckOriginDefault(t *testing.T) {
	config := DefaultConfig()

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "http://example.com")

	allowed := config.CheckOrigin(req)

	assert.True(t, allowed)
}

func TestServerHandlerRegistration(t *testing.T) {
	ctx := context.Background()
	server := NewServer(ctx, nil)

	handler := server.Handler()

	assert.NotNil(t, handler)
}

func TestMultipleClientsConnection(t *testing.T) {
	ctx := context.Background()
	server := NewServer(ctx, nil)
	server.Start()
	defer server.Shutdown()

	testServer := httptest.NewServer(server.Handler())
	defer testServer.Close()

	wsURL := "ws" + strings.TrimPrefix(testServer.URL, "http")

	clients := make([]*websocket.Conn, 5)
	for i := 0; i < 5; i++ {
		ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.NoError(t, err)
		clients[i] = ws
		defer ws.Close()
	}

	time.Sleep(200 * time.Millisecond)

	assert.Equal(t, 5, server.Hub.ClientCount())
}

func TestClientDisconnection(t *testing.T) {
	ctx := context.Background()
	server := NewServer(ctx, nil)
	server.Start()
	defer server.Shutdown()

	testServer := httptest.NewServer(server.Handler())
	defer testServer.Close()

	wsURL := "ws" + strings.TrimPrefix(testServer.URL, "http")

	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, 1, server.Hub.ClientCount())

	ws.Close()

	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, 0, server.Hub.ClientCount())
}
