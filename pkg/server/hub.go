package server

import (
	"fmt"
	"net/http"
	"sync"
)

// Server-sent event names.
const (
	EventConnected = "connected"
	EventFrame     = "frame"    // a new tree was loaded; refetch /api/frame
	EventAnalysis  = "analysis" // the analysis text changed
)

// Hub fans out events to every connected browser over SSE.
type Hub struct {
	mu      sync.RWMutex
	clients map[chan string]struct{}
	closed  bool
	done    chan struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[chan string]struct{}),
		done:    make(chan struct{}),
	}
}

// Broadcast sends event to every client. A client still holding an unread
// event skips this one.
func (h *Hub) Broadcast(event string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.clients {
		select {
		case ch <- event:
		default:
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client. It is safe to call more than once.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	close(h.done)
}

// ServeHTTP streams events until the client goes away or the hub closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	ch := make(chan string, 1)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.clients, ch)
		h.mu.Unlock()
	}()

	writeEvent(w, EventConnected)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.done:
			return
		case ev := <-ch:
			writeEvent(w, ev)
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event string) {
	fmt.Fprintf(w, "event: %s\ndata: {\"event\":%q}\n\n", event, event)
}
