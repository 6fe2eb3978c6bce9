// Package ws implements a Server-Sent Events (SSE) hub that streams domain
// events to connected users.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/DhimiMohamed/taskmanager/comms"
)

// Event is a typed real-time event broadcast to connected clients.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Filter reports whether userID may see ev.
type Filter func(ctx context.Context, userID int64, ev *comms.Event) bool

// OwnEvents shows each user only the events they caused.
func OwnEvents(_ context.Context, userID int64, ev *comms.Event) bool {
	return ev.UserID == userID
}

// client represents a single SSE connection.
type client struct {
	userID int64
	ch     chan []byte
}

// Hub manages SSE client connections and broadcasts events.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	logger  *slog.Logger
	filter  Filter
}

// NewHub creates a Hub ready to accept connections. A nil filter means OwnEvents.
func NewHub(logger *slog.Logger, filter Filter) *Hub {
	if filter == nil {
		filter = OwnEvents
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		logger:  logger,
		filter:  filter,
	}
}

// Attach forwards every event published on bus to the connected clients.
func (h *Hub) Attach(bus comms.Bus) (unsubscribe func()) {
	return bus.Subscribe(comms.AllTopics, func(ctx context.Context, ev *comms.Event) error {
		h.Publish(ctx, ev)
		return nil
	})
}

// Publish sends ev to every client the filter admits.
func (h *Hub) Publish(ctx context.Context, ev *comms.Event) {
	data, err := json.Marshal(Event{Type: string(ev.Type), Payload: ev})
	if err != nil {
		h.logger.Error("hub broadcast marshal", slog.Any("err", err))
		return
	}

	// The filter may hit the database, so it runs outside the lock.
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !h.filter(ctx, c.userID, ev) {
			continue
		}
		h.send(c, data)
	}
}

// send delivers data unless the client is gone or slow.
func (h *Hub) send(c *client, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.ch <- data:
	default:
		// Slow client: drop rather than block.
	}
}

// Clients returns the number of open connections.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeSSE streams events for userID until the request ends.
func (h *Hub) ServeSSE(w http.ResponseWriter, r *http.Request, userID int64) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)

	c := &client{userID: userID, ch: make(chan []byte, 64)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		close(c.ch)
		h.mu.Unlock()
	}()

	fmt.Fprintf(w, "data: {\"type\":\"connected\"}\n\n") //nolint:errcheck
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case data, ok := <-c.ch:
			if !ok {
				return
			}
			// Each SSE "data:" line must not contain newlines
			for _, line := range strings.Split(string(data), "\n") {
				fmt.Fprintf(w, "data: %s\n", line) //nolint:errcheck
			}
			fmt.Fprintln(w) //nolint:errcheck
			flusher.Flush()
		}
	}
}
