package handler

import (
	"net/http"

	"github.com/bookhub/book-notify/internal/event"
	"github.com/bookhub/book-notify/internal/queue"
)

// OpsHandler exposes the operator surface: queue depth and the two
// dead-letter sinks (undeliverable notification messages, poison events).
type OpsHandler struct {
	transport *queue.MemoryTransport
	bus       *event.Bus
}

func NewOpsHandler(transport *queue.MemoryTransport, bus *event.Bus) *OpsHandler {
	return &OpsHandler{transport: transport, bus: bus}
}

// QueueStats handles GET /api/v1/ops/queue
func (h *OpsHandler) QueueStats(w http.ResponseWriter, r *http.Request) {
	pending, inflight := h.transport.Depth()
	respondJSON(w, http.StatusOK, map[string]any{
		"pending":      pending,
		"inflight":     inflight,
		"dead_letters": len(h.transport.DeadLetters()),
	})
}

// DeadLetters handles GET /api/v1/ops/dead-letters
func (h *OpsHandler) DeadLetters(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"messages": h.transport.DeadLetters(),
		"events":   h.bus.FailedEvents(),
	})
}
