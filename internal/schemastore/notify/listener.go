// Package notify subscribes to Postgres's LISTEN/NOTIFY and calls a handler
// for each schema-change notification. `sieve serve` uses it to bump the
// compile-cache generation, so results cached before an admin schema edit
// are no longer served; the schema itself is loaded once at startup and is
// not reloaded on a notification. github.com/lib/pq's Listener is the one concrete job
// pgx does not cover for sieve, so both drivers coexist in this module.
package notify

import (
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Channel is the Postgres NOTIFY channel schema admin writes broadcast on.
const Channel = "sieve_schema_changed"

// Handler is invoked once per notification received on Channel. extra
// carries the NOTIFY payload, if any.
type Handler func(extra string)

// Listener wraps a *pq.Listener bound to Channel and dispatches incoming
// notifications to a Handler on a background goroutine.
type Listener struct {
	pqListener *pq.Listener
	handler    Handler
	done       chan struct{}
}

// New opens a listener connection against dsn and subscribes to Channel.
func New(dsn string, handler Handler) (*Listener, error) {
	reportProblem := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			fmt.Printf("schemastore/notify: listener event %v: %v\n", ev, err)
		}
	}

	pqListener := pq.NewListener(dsn, 10*time.Second, time.Minute, reportProblem)
	if err := pqListener.Listen(Channel); err != nil {
		pqListener.Close()
		return nil, fmt.Errorf("notify: failed to subscribe to %s: %w", Channel, err)
	}

	l := &Listener{
		pqListener: pqListener,
		handler:    handler,
		done:       make(chan struct{}),
	}
	go l.loop()
	return l, nil
}

func (l *Listener) loop() {
	for {
		select {
		case <-l.done:
			return
		case n, ok := <-l.pqListener.Notify:
			if !ok {
				return
			}
			if n == nil {
				// connection re-established; treat as a conservative
				// "something may have changed" signal
				l.handler("")
				continue
			}
			l.handler(n.Extra)
		case <-time.After(90 * time.Second):
			go l.pqListener.Ping()
		}
	}
}

// Close stops the background loop and releases the connection.
func (l *Listener) Close() error {
	close(l.done)
	return l.pqListener.Close()
}
