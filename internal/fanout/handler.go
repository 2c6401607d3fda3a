package fanout

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bookhub/book-notify/internal/domain"
	"github.com/bookhub/book-notify/internal/event"
)

// BookCreatedHandler adapts the orchestrator to the event bus. A payload
// that does not decode is permanent — redelivery cannot fix malformed data,
// so it goes straight to the bus's dead-letter list.
func BookCreatedHandler(o *Orchestrator) event.Handler {
	return func(ctx context.Context, env domain.EventEnvelope) error {
		var ev domain.BookEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return event.Permanent(fmt.Errorf("decode book event: %w", err))
		}
		if ev.BookID == "" || ev.Category == "" {
			return event.Permanent(fmt.Errorf("book event missing book_id or category"))
		}
		_, err := o.NotifySubscribers(ctx, ev.BookID, ev.Category)
		return err
	}
}
