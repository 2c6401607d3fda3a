package queue_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bookhub/book-notify/internal/domain"
	"github.com/bookhub/book-notify/internal/queue"
)

// captureTransport records enqueued messages instead of delivering them.
type captureTransport struct {
	limits     queue.Limits
	enqueued   []queue.Raw
	enqueueErr error
}

func newCaptureTransport() *captureTransport {
	return &captureTransport{limits: queue.Limits{MaxMessageSize: 256 * 1024, MaxBatchSize: 1024 * 1024}}
}

func (c *captureTransport) Enqueue(_ context.Context, r queue.Raw) error {
	if c.enqueueErr != nil {
		return c.enqueueErr
	}
	c.enqueued = append(c.enqueued, r)
	return nil
}

func (c *captureTransport) Receive(context.Context) (*queue.Delivery, bool)   { return nil, false }
func (c *captureTransport) Complete(*queue.Delivery)                          {}
func (c *captureTransport) Abandon(*queue.Delivery)                           {}
func (c *captureTransport) DeadLetter(d *queue.Delivery, reason, desc string) {}
func (c *captureTransport) Limits() queue.Limits                              { return c.limits }

func testMessage(subscriberID string) *domain.NotificationMessage {
	book := &domain.Book{ID: "book-1", Title: "Dune", Category: "Fiction"}
	sub := &domain.Subscriber{ID: subscriberID, Email: subscriberID + "@example.com", Preference: domain.PreferenceEmail}
	return domain.NewNotificationMessage(book, sub)
}

func TestClient_SendOne(t *testing.T) {
	tr := newCaptureTransport()
	client := queue.NewClient(tr, zap.NewNop())

	msg := testMessage("sub-1")
	require.NoError(t, client.SendOne(context.Background(), msg))

	require.Len(t, tr.enqueued, 1)
	raw := tr.enqueued[0]
	assert.Equal(t, msg.MessageID, raw.MessageID)
	assert.Equal(t, "sub-1", raw.PartitionKey, "partition key must be the subscriber id")
	assert.True(t, raw.DeliverAt.IsZero())

	var decoded domain.NotificationMessage
	require.NoError(t, json.Unmarshal(raw.Body, &decoded))
	assert.Equal(t, "Dune", decoded.Book.Title)
}

func TestClient_Schedule(t *testing.T) {
	tr := newCaptureTransport()
	client := queue.NewClient(tr, zap.NewNop())

	at := time.Now().Add(time.Hour)
	require.NoError(t, client.Schedule(context.Background(), testMessage("sub-1"), at))

	require.Len(t, tr.enqueued, 1)
	assert.Equal(t, at, tr.enqueued[0].DeliverAt)
}

func TestClient_SendBatchPreservesOrderAcrossChunks(t *testing.T) {
	tr := newCaptureTransport()
	// Batch limit fits roughly one message per chunk; every message must
	// still go out, in order.
	tr.limits.MaxBatchSize = 600
	client := queue.NewClient(tr, zap.NewNop())

	msgs := []*domain.NotificationMessage{
		testMessage("sub-1"),
		testMessage("sub-2"),
		testMessage("sub-3"),
	}
	require.NoError(t, client.SendBatch(context.Background(), msgs))

	require.Len(t, tr.enqueued, 3)
	for i, raw := range tr.enqueued {
		assert.Equal(t, msgs[i].MessageID, raw.MessageID)
	}
}

func TestClient_SendBatchRejectsOversizedMessage(t *testing.T) {
	tr := newCaptureTransport()
	tr.limits.MaxMessageSize = 64
	client := queue.NewClient(tr, zap.NewNop())

	err := client.SendBatch(context.Background(), []*domain.NotificationMessage{testMessage("sub-1")})

	var tooLarge *queue.MessageTooLargeError
	require.ErrorAs(t, err, &tooLarge)
	assert.Empty(t, tr.enqueued, "nothing may be enqueued when the batch is rejected")
}

func TestClient_SendOneWrapsTransportFailures(t *testing.T) {
	tr := newCaptureTransport()
	tr.enqueueErr = queue.ErrQueueFull
	client := queue.NewClient(tr, zap.NewNop())

	err := client.SendOne(context.Background(), testMessage("sub-1"))

	var te *queue.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "enqueue", te.Op)
	assert.ErrorIs(t, err, queue.ErrQueueFull)
}

func TestClient_SendOneDoesNotWrapOversize(t *testing.T) {
	tr := newCaptureTransport()
	tr.enqueueErr = &queue.MessageTooLargeError{MessageID: "m1", Size: 10, Limit: 8}
	client := queue.NewClient(tr, zap.NewNop())

	err := client.SendOne(context.Background(), testMessage("sub-1"))

	var tooLarge *queue.MessageTooLargeError
	assert.ErrorAs(t, err, &tooLarge)
	var te *queue.TransportError
	assert.False(t, errors.As(err, &te), "oversize is a producer fault, not a transport fault")
}
