package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bookhub/book-notify/internal/domain"
)

// Client is the producer-side API over a Transport: it owns serialization,
// partition-key selection, and batch chunking.
//
// Partition key is the subscriber id. Deliveries for one subscriber keep
// their enqueue order; unrelated subscribers never block each other.
type Client struct {
	transport Transport
	logger    *zap.Logger
}

func NewClient(transport Transport, logger *zap.Logger) *Client {
	return &Client{transport: transport, logger: logger}
}

// SendOne enqueues a single message. Transport failures come back as
// *TransportError; the caller decides whether to retry.
func (c *Client) SendOne(ctx context.Context, m *domain.NotificationMessage) error {
	raw, err := c.encode(m)
	if err != nil {
		return err
	}
	return c.send(ctx, raw)
}

// Schedule enqueues a message for delivery no earlier than deliverAt.
func (c *Client) Schedule(ctx context.Context, m *domain.NotificationMessage, deliverAt time.Time) error {
	raw, err := c.encode(m)
	if err != nil {
		return err
	}
	raw.DeliverAt = deliverAt
	return c.send(ctx, raw)
}

// SendBatch enqueues a set of messages, chunked so no chunk exceeds the
// transport's batch payload limit. A message that is individually oversized
// is fatal for the whole call: fan-out correctness depends on every selected
// subscriber being enqueued, so the error is surfaced, never swallowed.
func (c *Client) SendBatch(ctx context.Context, msgs []*domain.NotificationMessage) error {
	limits := c.transport.Limits()

	raws := make([]Raw, 0, len(msgs))
	for _, m := range msgs {
		raw, err := c.encode(m)
		if err != nil {
			return err
		}
		if len(raw.Body) > limits.MaxMessageSize {
			return &MessageTooLargeError{MessageID: m.MessageID, Size: len(raw.Body), Limit: limits.MaxMessageSize}
		}
		raws = append(raws, raw)
	}

	var chunk []Raw
	chunkSize := 0
	for _, raw := range raws {
		if chunkSize > 0 && chunkSize+len(raw.Body) > limits.MaxBatchSize {
			if err := c.sendChunk(ctx, chunk); err != nil {
				return err
			}
			chunk, chunkSize = nil, 0
		}
		chunk = append(chunk, raw)
		chunkSize += len(raw.Body)
	}
	return c.sendChunk(ctx, chunk)
}

func (c *Client) sendChunk(ctx context.Context, chunk []Raw) error {
	for _, raw := range chunk {
		if err := c.send(ctx, raw); err != nil {
			return err
		}
	}
	if len(chunk) > 0 {
		c.logger.Debug("batch chunk enqueued", zap.Int("size", len(chunk)))
	}
	return nil
}

func (c *Client) encode(m *domain.NotificationMessage) (Raw, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return Raw{}, fmt.Errorf("marshal message %s: %w", m.MessageID, err)
	}
	return Raw{
		MessageID:    m.MessageID,
		PartitionKey: m.Subscriber.ID,
		Body:         body,
	}, nil
}

func (c *Client) send(ctx context.Context, raw Raw) error {
	if err := c.transport.Enqueue(ctx, raw); err != nil {
		var tooLarge *MessageTooLargeError
		if errors.As(err, &tooLarge) {
			return err // fatal for this message, not a transport fault
		}
		return &TransportError{Op: "enqueue", Err: err}
	}
	return nil
}
