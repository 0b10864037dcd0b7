// Package stream pushes variation reports to websocket subscribers.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/couchcryptid/censoc-variation-service/internal/domain"
	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// LatestReader supplies the report sent to a client when it connects.
type LatestReader interface {
	Latest() (domain.VariationReport, bool)
}

// Broadcaster is a report sink that fans each report out to every connected
// websocket client. Clients that fail a write are dropped.
type Broadcaster struct {
	// sendMu serializes data writes so each conn has a single writer.
	// mu guards clients only and is never held across network I/O.
	sendMu       sync.Mutex
	mu           sync.Mutex
	clients      map[*websocket.Conn]struct{}
	upgrader     websocket.Upgrader
	latest       LatestReader
	writeTimeout time.Duration
	logger       *slog.Logger
}

// NewBroadcaster creates a Broadcaster. latest may be nil.
func NewBroadcaster(latest LatestReader, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		clients:      make(map[*websocket.Conn]struct{}),
		upgrader:     websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		latest:       latest,
		writeTimeout: writeWait,
		logger:       logger,
	}
}

// SetWriteTimeout bounds how long a single client write may block.
func (b *Broadcaster) SetWriteTimeout(d time.Duration) {
	b.sendMu.Lock()
	defer b.sendMu.Unlock()
	b.writeTimeout = d
}

// Clients returns the number of connected subscribers.
func (b *Broadcaster) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// PublishReport sends report to all clients. Delivery is best effort and
// never fails the caller.
func (b *Broadcaster) PublishReport(_ context.Context, report domain.VariationReport) error {
	msg, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	b.sendMu.Lock()
	defer b.sendMu.Unlock()

	b.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(b.clients))
	for c := range b.clients {
		conns = append(conns, c)
	}
	b.mu.Unlock()

	errs := make([]error, len(conns))
	var wg sync.WaitGroup
	for i, c := range conns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = b.write(c, msg)
		}()
	}
	wg.Wait()

	for i, c := range conns {
		if errs[i] == nil {
			continue
		}
		b.logger.Warn("websocket write failed, dropping client", "error", errs[i], "remote", c.RemoteAddr().String())
		b.remove(c)
	}
	return nil
}

func (b *Broadcaster) write(c *websocket.Conn, msg []byte) error {
	if err := c.SetWriteDeadline(time.Now().Add(b.writeTimeout)); err != nil {
		return err
	}
	return c.WriteMessage(websocket.TextMessage, msg)
}

// Handler upgrades the request, sends the latest report if there is one and
// keeps the client subscribed until it disconnects.
func (b *Broadcaster) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := b.upgrader.Upgrade(w, r, nil)
		if err != nil {
			b.logger.Warn("websocket upgrade failed", "error", err)
			return
		}

		b.sendMu.Lock()
		if b.latest != nil {
			if report, ok := b.latest.Latest(); ok {
				if msg, err := json.Marshal(report); err == nil {
					if err := b.write(conn, msg); err != nil {
						b.sendMu.Unlock()
						_ = conn.Close()
						return
					}
				}
			}
		}
		b.mu.Lock()
		b.clients[conn] = struct{}{}
		b.mu.Unlock()
		b.sendMu.Unlock()
		b.logger.Debug("websocket client connected", "remote", conn.RemoteAddr().String())

		// Drain reads so close frames and pings are handled.
		go func() {
			defer b.remove(conn)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}

func (b *Broadcaster) remove(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[conn]; ok {
		delete(b.clients, conn)
		_ = conn.Close()
	}
}

// Close disconnects every client.
func (b *Broadcaster) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		_ = c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		_ = c.Close()
		delete(b.clients, c)
	}
	return nil
}
