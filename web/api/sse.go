package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
)

// SSEEvent represents a server-sent event
type SSEEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// SSEHub fans events out to connected clients. The client set is owned by
// the Run goroutine.
type SSEHub struct {
	clients    map[chan SSEEvent]struct{}
	broadcast  chan SSEEvent
	register   chan chan SSEEvent
	unregister chan chan SSEEvent
	done       chan struct{}
	count      atomic.Int64
}

// NewSSEHub creates a new SSE hub
func NewSSEHub() *SSEHub {
	return &SSEHub{
		clients:    make(map[chan SSEEvent]struct{}),
		broadcast:  make(chan SSEEvent, 16),
		register:   make(chan chan SSEEvent),
		unregister: make(chan chan SSEEvent),
		done:       make(chan struct{}),
	}
}

// Run dispatches events until ctx is done, then disconnects every client
func (h *SSEHub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client)
				delete(h.clients, client)
			}
			h.count.Store(0)
			return

		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.count.Add(1)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client)
				h.count.Add(-1)
			}

		case event := <-h.broadcast:
			for client := range h.clients {
				select {
				case client <- event:
				default:
					// slow client
					close(client)
					delete(h.clients, client)
					h.count.Add(-1)
				}
			}
		}
	}
}

// Broadcast queues an event for all clients. Events are dropped when the
// queue is full.
func (h *SSEHub) Broadcast(event SSEEvent) {
	select {
	case h.broadcast <- event:
	default:
	}
}

// Clients returns the number of connected clients
func (h *SSEHub) Clients() int {
	return int(h.count.Load())
}

func (s *Server) sseHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "Streaming not supported")
			return
		}

		hub := s.sseHub
		client := make(chan SSEEvent, 8)
		select {
		case hub.register <- client:
		case <-hub.done:
			writeError(w, http.StatusServiceUnavailable, "event stream closed")
			return
		case <-r.Context().Done():
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, ": connected\n\n")
		flusher.Flush()

		for {
			select {
			case event, ok := <-client:
				if !ok {
					return
				}
				data, _ := json.Marshal(event)
				fmt.Fprintf(w, "event: %s\n", event.Type)
				fmt.Fprintf(w, "data: %s\n\n", data)
				flusher.Flush()
			case <-r.Context().Done():
				select {
				case hub.unregister <- client:
				case <-hub.done:
				}
				return
			}
		}
	}
}
