// Package wsquery streams compile results over a WebSocket connection. It
// layers on internal/web/websocket's hub/client primitives, generalizing
// spec.md's independently-compilable "lines" production onto a long-lived
// connection: a client sends a multi-line query document a line at a time
// and gets back one JSON document (or structured error) per line, without
// waiting for the rest of the document.
package wsquery

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/sievelang/sieve/internal/compiler"
	"github.com/sievelang/sieve/internal/compiler/cerr"
	"github.com/sievelang/sieve/internal/compiler/clock"
	"github.com/sievelang/sieve/internal/compiler/schema"
	"github.com/sievelang/sieve/internal/web/websocket"
)

// lineRequest is the payload of a "compile_line" message: one query line
// tagged with the caller's own sequence number so out-of-order responses
// (the hub makes no ordering guarantee across concurrent lines) can still
// be matched back up on the client.
type lineRequest struct {
	Seq   int    `json:"seq"`
	Query string `json:"query"`
}

// lineResult is the "compile_result" message sent back for each line.
type lineResult struct {
	Seq    int             `json:"seq"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// SchemaSource returns the field schema to compile against, read fresh on
// every incoming line so a schema reload (e.g. from a notify.Listener) is
// picked up by already-connected clients without a reconnect.
type SchemaSource func() *schema.Config

// NewServer builds a websocket.Server whose hub compiles each incoming
// "compile_line" message by calling source and streams back a
// "compile_result" message for it.
func NewServer(ctx context.Context, source SchemaSource, clk clock.Clock) *websocket.Server {
	srv := websocket.NewServer(ctx, nil)
	srv.Hub.RegisterHandler("compile_line", compileLineHandler(source, clk))
	return srv
}

// Handler starts srv's hub loop and returns the HTTP handler to mount at
// the streaming compile endpoint (e.g. /v1/compile/stream). Callers own the
// returned server's lifetime and must call srv.Shutdown on exit.
func Handler(srv *websocket.Server) http.HandlerFunc {
	srv.Start()
	return srv.Handler()
}

func compileLineHandler(source SchemaSource, clk clock.Clock) websocket.MessageHandler {
	return func(ctx context.Context, client *websocket.Client, message *websocket.Message) error {
		var req lineRequest
		if err := json.Unmarshal(message.Data, &req); err != nil {
			return client.SendJSON("compile_result", lineResult{Error: "invalid compile_line payload"})
		}

		return client.SendJSON("compile_result", compileLine(source, clk, req))
	}
}

// compileLine compiles a single query line into the message sent back to
// the client, carrying req's sequence number through to either branch.
func compileLine(source SchemaSource, clk clock.Clock, req lineRequest) lineResult {
	doc, err := compiler.Compile(req.Query, *source(), clk)
	if err != nil {
		msg := err.Error()
		if ii, ok := cerr.AsInvalidInput(err); ok {
			msg = ii.Error()
		}
		return lineResult{Seq: req.Seq, Error: msg}
	}
	return lineResult{Seq: req.Seq, Result: doc}
}
