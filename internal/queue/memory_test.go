package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookhub/book-notify/internal/queue"
)

func testConfig() queue.MemoryConfig {
	cfg := queue.DefaultMemoryConfig()
	cfg.VisibilityTimeout = 5 * time.Second
	cfg.RedeliveryDelay = 0
	return cfg
}

func enqueue(t *testing.T, tr *queue.MemoryTransport, id, partition string) {
	t.Helper()
	err := tr.Enqueue(context.Background(), queue.Raw{
		MessageID:    id,
		PartitionKey: partition,
		Body:         []byte(`{"id":"` + id + `"}`),
	})
	require.NoError(t, err)
}

// receive fetches one delivery or fails the test after the deadline.
func receive(t *testing.T, tr *queue.MemoryTransport) *queue.Delivery {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	d, ok := tr.Receive(ctx)
	require.True(t, ok, "expected a delivery before the deadline")
	return d
}

// tryReceive returns nil when nothing becomes visible within the window.
func tryReceive(tr *queue.MemoryTransport, window time.Duration) *queue.Delivery {
	ctx, cancel := context.WithTimeout(context.Background(), window)
	defer cancel()
	d, ok := tr.Receive(ctx)
	if !ok {
		return nil
	}
	return d
}

func TestMemoryTransport_CompleteRemovesMessage(t *testing.T) {
	tr := queue.NewMemoryTransport(testConfig())
	enqueue(t, tr, "m1", "sub-1")

	d := receive(t, tr)
	assert.Equal(t, "m1", d.MessageID)
	assert.Equal(t, "sub-1", d.PartitionKey)
	assert.Equal(t, 1, d.DeliveryCount)

	tr.Complete(d)

	pending, inflight := tr.Depth()
	assert.Zero(t, pending)
	assert.Zero(t, inflight)
	assert.Nil(t, tryReceive(tr, 50*time.Millisecond))
}

func TestMemoryTransport_PartitionFIFO(t *testing.T) {
	tr := queue.NewMemoryTransport(testConfig())
	enqueue(t, tr, "m1", "sub-1")
	enqueue(t, tr, "m2", "sub-1")
	enqueue(t, tr, "m3", "sub-1")

	d1 := receive(t, tr)
	assert.Equal(t, "m1", d1.MessageID)

	// One in-flight per partition: m2 must not surface until m1 settles.
	assert.Nil(t, tryReceive(tr, 50*time.Millisecond))

	tr.Complete(d1)
	d2 := receive(t, tr)
	assert.Equal(t, "m2", d2.MessageID)
	tr.Complete(d2)
	d3 := receive(t, tr)
	assert.Equal(t, "m3", d3.MessageID)
	tr.Complete(d3)
}

func TestMemoryTransport_PartitionsAreIndependent(t *testing.T) {
	tr := queue.NewMemoryTransport(testConfig())
	enqueue(t, tr, "m1", "sub-1")
	enqueue(t, tr, "m2", "sub-2")

	d1 := receive(t, tr)
	d2 := receive(t, tr)

	got := map[string]bool{d1.MessageID: true, d2.MessageID: true}
	assert.True(t, got["m1"], "expected m1 without waiting for sub-2")
	assert.True(t, got["m2"], "expected m2 without waiting for sub-1")

	tr.Complete(d1)
	tr.Complete(d2)
}

func TestMemoryTransport_AbandonRedeliversHeadFirst(t *testing.T) {
	tr := queue.NewMemoryTransport(testConfig())
	enqueue(t, tr, "m1", "sub-1")
	enqueue(t, tr, "m2", "sub-1")

	d := receive(t, tr)
	require.Equal(t, "m1", d.MessageID)
	tr.Abandon(d)

	// The abandoned head comes back before its successor, with the
	// delivery count bumped by the transport.
	d = receive(t, tr)
	assert.Equal(t, "m1", d.MessageID)
	assert.Equal(t, 2, d.DeliveryCount)
	tr.Complete(d)

	d = receive(t, tr)
	assert.Equal(t, "m2", d.MessageID)
	assert.Equal(t, 1, d.DeliveryCount)
	tr.Complete(d)
}

func TestMemoryTransport_AbandonHonorsRedeliveryDelay(t *testing.T) {
	cfg := testConfig()
	cfg.RedeliveryDelay = 150 * time.Millisecond
	tr := queue.NewMemoryTransport(cfg)
	enqueue(t, tr, "m1", "sub-1")

	tr.Abandon(receive(t, tr))

	assert.Nil(t, tryReceive(tr, 50*time.Millisecond), "redelivery before the delay elapsed")

	d := receive(t, tr)
	assert.Equal(t, "m1", d.MessageID)
	assert.Equal(t, 2, d.DeliveryCount)
	tr.Complete(d)
}

func TestMemoryTransport_VisibilityTimeoutRedelivers(t *testing.T) {
	cfg := testConfig()
	cfg.VisibilityTimeout = 50 * time.Millisecond
	tr := queue.NewMemoryTransport(cfg)
	enqueue(t, tr, "m1", "sub-1")

	stale := receive(t, tr)
	require.Equal(t, 1, stale.DeliveryCount)

	// Never settled: the visibility timeout hands it back.
	d := receive(t, tr)
	assert.Equal(t, "m1", d.MessageID)
	assert.Equal(t, 2, d.DeliveryCount)

	// Settling the expired receipt is a no-op; the live one still works.
	tr.Complete(stale)
	pending, inflight := tr.Depth()
	assert.Equal(t, 0, pending)
	assert.Equal(t, 1, inflight)

	tr.Complete(d)
	pending, inflight = tr.Depth()
	assert.Zero(t, pending)
	assert.Zero(t, inflight)
}

func TestMemoryTransport_ScheduledDelivery(t *testing.T) {
	tr := queue.NewMemoryTransport(testConfig())
	err := tr.Enqueue(context.Background(), queue.Raw{
		MessageID:    "m1",
		PartitionKey: "sub-1",
		Body:         []byte(`{}`),
		DeliverAt:    time.Now().Add(150 * time.Millisecond),
	})
	require.NoError(t, err)

	assert.Nil(t, tryReceive(tr, 50*time.Millisecond), "message visible before its deliver-at time")

	d := receive(t, tr)
	assert.Equal(t, "m1", d.MessageID)
	tr.Complete(d)
}

func TestMemoryTransport_DeadLetter(t *testing.T) {
	tr := queue.NewMemoryTransport(testConfig())
	enqueue(t, tr, "m1", "sub-1")
	enqueue(t, tr, "m2", "sub-1")

	d := receive(t, tr)
	tr.DeadLetter(d, queue.ReasonMaxRetriesExceeded, "timeout")

	dead := tr.DeadLetters()
	require.Len(t, dead, 1)
	assert.Equal(t, "m1", dead[0].MessageID)
	assert.Equal(t, queue.ReasonMaxRetriesExceeded, dead[0].Reason)
	assert.Equal(t, "timeout", dead[0].Description)
	assert.Equal(t, 1, dead[0].DeliveryCount)

	// Dead-lettering the head unblocks the partition.
	d = receive(t, tr)
	assert.Equal(t, "m2", d.MessageID)
	tr.Complete(d)
}

func TestMemoryTransport_EnqueueAtCapacity(t *testing.T) {
	cfg := testConfig()
	cfg.MaxDepth = 2
	tr := queue.NewMemoryTransport(cfg)

	enqueue(t, tr, "m1", "sub-1")
	enqueue(t, tr, "m2", "sub-2")

	err := tr.Enqueue(context.Background(), queue.Raw{MessageID: "m3", PartitionKey: "sub-3", Body: []byte(`{}`)})
	assert.ErrorIs(t, err, queue.ErrQueueFull)

	// Settling frees capacity.
	tr.Complete(receive(t, tr))
	assert.NoError(t, tr.Enqueue(context.Background(), queue.Raw{MessageID: "m3", PartitionKey: "sub-3", Body: []byte(`{}`)}))
}

func TestMemoryTransport_EnqueueOversizedMessage(t *testing.T) {
	cfg := testConfig()
	cfg.MaxMessageSize = 8
	tr := queue.NewMemoryTransport(cfg)

	err := tr.Enqueue(context.Background(), queue.Raw{
		MessageID:    "m1",
		PartitionKey: "sub-1",
		Body:         []byte("0123456789"),
	})

	var tooLarge *queue.MessageTooLargeError
	require.ErrorAs(t, err, &tooLarge)
	assert.Equal(t, "m1", tooLarge.MessageID)
	assert.Equal(t, 10, tooLarge.Size)
	assert.Equal(t, 8, tooLarge.Limit)
}

func TestMemoryTransport_ReceiveHonorsContext(t *testing.T) {
	tr := queue.NewMemoryTransport(testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d, ok := tr.Receive(ctx)
	assert.False(t, ok)
	assert.Nil(t, d)
}
