package domain

import (
	"encoding/json"
	"time"
)

// EventType is the discriminator for book lifecycle events. Payloads are a
// tagged union keyed by this string rather than a type hierarchy, so the
// wire format stays forward-compatible when new event kinds appear.
type EventType string

const (
	EventBookCreated EventType = "book.created"
	EventBookUpdated EventType = "book.updated"
	EventBookDeleted EventType = "book.deleted"
)

// EventEnvelope wraps an event payload with its discriminator.
// Payload stays raw until a dispatcher routes on Type.
type EventEnvelope struct {
	Type       EventType       `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// BookEvent is the payload shared by all book lifecycle events.
type BookEvent struct {
	BookID   string `json:"book_id"`
	Category string `json:"category"`
}

// NewBookEnvelope builds an envelope for the given event type and book.
func NewBookEnvelope(t EventType, bookID, category string) (EventEnvelope, error) {
	payload, err := json.Marshal(BookEvent{BookID: bookID, Category: category})
	if err != nil {
		return EventEnvelope{}, err
	}
	return EventEnvelope{
		Type:       t,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}, nil
}
