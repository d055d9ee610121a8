package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// registerEchoCompileHandler wires a "compile_line" handler that echoes the
// line's seq back in a "compile_result", standing in for wsquery's real
// compiler in these transport-level tests.
func registerEchoCompileHandler(server *Server) {
	server.Hub.RegisterHandler("compile_line", func(ctx context.Context, c *Client, m *Message) error {
		var line struct {
			Seq int `json:"seq"`
		}
		if err := json.Unmarshal(m.Data, &line); err != nil {
			return err
		}
		return c.SendJSON("compile_result", map[string]int{"seq": line.Seq})
	})
}

func TestIntegrationCompileLineRoundTrip(t *testing.T) {
	ctx := context.Background()
	server := NewServer(ctx, nil)
	registerEchoCompileHandler(server)
	server.Start()
	defer server.Shutdown()

	testServer := httptest.NewServer(server.Handler())
	defer testServer.Close()

	wsURL := "ws" + strings.TrimPrefix(testServer.URL, "http")

	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	lineMsg := Message{
		Type: "compile_line",
		Data: json.RawMessage(`{"seq":1,"query":"status:open"}`),
	}

	err = ws.WriteJSON(lineMsg)
	require.NoError(t, err)

	var response Message
	ws.SetReadDeadline(time.Now().Add(1 * time.Second))
	err = ws.ReadJSON(&response)
	require.NoError(t, err)

	assert.Equal(t, "compile_result", response.Type)
}

func TestIntegrationUnknownMessageTypeIgnored(t *testing.T) {
	ctx := context.Background()
	server := NewServer(ctx, nil)
	registerEchoCompileHandler(server)
	server.Start()
	defer server.Shutdown()

	testServer := httptest.NewServer(server.Handler())
	defer testServer.Close()

	wsURL := "ws" + strings.TrimPrefix(testServer.URL, "http")

	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	err = ws.WriteJSON(Message{Type: "ping"})
	require.NoError(t, err)

	var response Message
	ws.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	err = ws.ReadJSON(&response)
	assert.Error(t, err, "no handler is registered for \"ping\", so no response should arrive")
}

func TestIntegrationMultipleClientsIsolated(t *testing.T) {
	ctx := context.Background()
	server := NewServer(ctx, nil)
	registerEchoCompileHandler(server)
	server.Start()
	defer server.Shutdown()

	testServer := httptest.NewServer(server.Handler())
	defer testServer.Close()

	wsURL := "ws" + strings.TrimPrefix(testServer.URL, "http")

	client1, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer client1.Close()

	client2, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer client2.Close()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 2, server.Hub.ClientCount())

	err = client1.WriteJSON(Message{Type: "compile_line", Data: json.RawMessage(`{"seq":1}`)})
	require.NoError(t, err)

	var response Message
	client1.SetReadDeadline(time.Now().Add(1 * time.Second))
	err = client1.ReadJSON(&response)
	require.NoError(t, err)
	assert.Equal(t, "compile_result", response.Type)

	client2.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	var unexpected Message
	err = client2.ReadJSON(&unexpected)
	assert.Error(t, err, "client2 must not receive client1's compile_result")
}

func TestIntegrationConnectionLifecycle(t *testing.T) {
	ctx := context.Background()
	server := NewServer(ctx, nil)
	registerEchoCompileHandler(server)
	server.Start()
	defer server.Shutdown()

	testServer := httptest.NewServer(server.Handler())
	defer testServer.Close()

	wsURL := "ws" + strings.TrimPrefix(testServer.URL, "http")

	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, server.Hub.ClientCount())

	for i := 0; i < 10; i++ {
		msg := Message{
			Type: "compile_line",
			Data: json.RawMessage(`{"seq":1}`),
		}
		ws.WriteJSON(msg)
	}

	time.Sleep(100 * time.Millisecond)

	ws.Close()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, server.Hub.ClientCount())
}
