package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryConfig tunes the in-memory transport.
type MemoryConfig struct {
	// MaxDepth bounds the total number of unsettled messages. Enqueue is
	// non-blocking: at capacity it returns ErrQueueFull immediately rather
	// than stalling the producer.
	MaxDepth int
	// VisibilityTimeout is how long a received message stays invisible
	// before an unsettled delivery is made available again.
	VisibilityTimeout time.Duration
	// RedeliveryDelay is the pause before an abandoned message becomes
	// visible again. Retry timing lives here, in the transport — consumers
	// only decide whether another attempt is allowed, not when.
	RedeliveryDelay time.Duration
	MaxMessageSize  int
	MaxBatchSize    int
}

// DefaultMemoryConfig mirrors common broker defaults: 256 KiB messages,
// 1 MiB batches.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		MaxDepth:          10000,
		VisibilityTimeout: 30 * time.Second,
		RedeliveryDelay:   2 * time.Second,
		MaxMessageSize:    256 * 1024,
		MaxBatchSize:      1024 * 1024,
	}
}

// Message lifecycle inside the transport. A message moves
// queued -> ready -> inflight and then either leaves the partition
// (complete / dead-letter) or returns to queued (abandon, visibility expiry).
type msgState int

const (
	stateQueued   msgState = iota // waiting in a partition, not yet visible to consumers
	stateReady                    // dispatched to the ready channel, awaiting Receive
	stateInflight                 // received, invisible until settled or expired
)

type message struct {
	raw           Raw
	part          *partitionState
	state         msgState
	deliveryCount int
	deliverAt     time.Time
	enqueuedAt    time.Time
	visTimer      *time.Timer
}

// partitionState keeps one FIFO per partition key. The head message stays in
// pending while ready/in-flight and at most one message per partition is out
// at a time; together these give strict per-partition ordering, including
// redelivery of a failed head before any successor.
type partitionState struct {
	key      string
	pending  []*message
	busy     bool
	timerSet bool
}

// MemoryTransport is an in-process Transport with at-least-once semantics.
// Safe for concurrent use by any number of producers and consumers.
type MemoryTransport struct {
	cfg MemoryConfig

	mu         sync.Mutex
	partitions map[string]*partitionState
	ready      chan *message
	depth      int
	inflight   int
	dead       []DeadLetteredMessage
}

func NewMemoryTransport(cfg MemoryConfig) *MemoryTransport {
	return &MemoryTransport{
		cfg:        cfg,
		partitions: make(map[string]*partitionState),
		// Capacity equals MaxDepth so dispatch, done under the mutex,
		// can send without ever blocking.
		ready: make(chan *message, cfg.MaxDepth),
	}
}

func (t *MemoryTransport) Limits() Limits {
	return Limits{MaxMessageSize: t.cfg.MaxMessageSize, MaxBatchSize: t.cfg.MaxBatchSize}
}

func (t *MemoryTransport) Enqueue(_ context.Context, r Raw) error {
	if len(r.Body) > t.cfg.MaxMessageSize {
		return &MessageTooLargeError{MessageID: r.MessageID, Size: len(r.Body), Limit: t.cfg.MaxMessageSize}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.depth >= t.cfg.MaxDepth {
		return ErrQueueFull
	}

	p, ok := t.partitions[r.PartitionKey]
	if !ok {
		p = &partitionState{key: r.PartitionKey}
		t.partitions[r.PartitionKey] = p
	}

	m := &message{
		raw:        r,
		part:       p,
		deliverAt:  r.DeliverAt,
		enqueuedAt: time.Now().UTC(),
	}
	p.pending = append(p.pending, m)
	t.depth++
	t.maybeDispatch(p)
	return nil
}

// maybeDispatch moves a partition's head message to the ready channel when
// the partition is idle and the head is due. Caller must hold t.mu.
func (t *MemoryTransport) maybeDispatch(p *partitionState) {
	if p.busy || len(p.pending) == 0 {
		return
	}
	m := p.pending[0]

	if wait := time.Until(m.deliverAt); wait > 0 {
		if !p.timerSet {
			p.timerSet = true
			time.AfterFunc(wait, func() {
				t.mu.Lock()
				p.timerSet = false
				t.maybeDispatch(p)
				t.mu.Unlock()
			})
		}
		return
	}

	p.busy = true
	m.state = stateReady
	t.ready <- m
}

func (t *MemoryTransport) Receive(ctx context.Context) (*Delivery, bool) {
	select {
	case m := <-t.ready:
		t.mu.Lock()
		m.state = stateInflight
		m.deliveryCount++
		t.inflight++
		m.visTimer = time.AfterFunc(t.cfg.VisibilityTimeout, func() { t.expire(m) })
		d := &Delivery{
			MessageID:     m.raw.MessageID,
			PartitionKey:  m.raw.PartitionKey,
			Body:          m.raw.Body,
			EnqueuedAt:    m.enqueuedAt,
			DeliveryCount: m.deliveryCount,
			msg:           m,
		}
		t.mu.Unlock()
		return d, true
	case <-ctx.Done():
		return nil, false
	}
}

// expire fires when a delivery's visibility timeout lapses without
// settlement: the message becomes eligible for redelivery, exactly as if
// the consumer had abandoned it.
func (t *MemoryTransport) expire(m *message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if m.state != stateInflight {
		return // settled in time
	}
	t.release(m)
	t.maybeDispatch(m.part)
}

// release returns an in-flight message to queued, visible again after the
// redelivery delay. Caller must hold t.mu.
func (t *MemoryTransport) release(m *message) {
	m.state = stateQueued
	m.part.busy = false
	m.deliverAt = time.Now().Add(t.cfg.RedeliveryDelay)
	t.inflight--
}

// remove takes a settled message out of its partition. Caller must hold t.mu.
func (t *MemoryTransport) remove(m *message) {
	m.state = stateQueued
	m.part.busy = false
	m.part.pending = m.part.pending[1:]
	t.depth--
	t.inflight--
}

// settleable stops the visibility timer and reports whether the delivery may
// still be settled. After a visibility expiry the message belongs to the
// transport again: the state or delivery count no longer matches, late
// settlement becomes a no-op, and the redelivery that follows is exactly the
// at-least-once contract.
func (t *MemoryTransport) settleable(d *Delivery) bool {
	m := d.msg
	if m.state != stateInflight || m.deliveryCount != d.DeliveryCount {
		return false
	}
	if m.visTimer != nil {
		m.visTimer.Stop()
	}
	return true
}

func (t *MemoryTransport) Complete(d *Delivery) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.settleable(d) {
		return
	}
	t.remove(d.msg)
	t.maybeDispatch(d.msg.part)
}

func (t *MemoryTransport) Abandon(d *Delivery) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.settleable(d) {
		return
	}
	t.release(d.msg)
	t.maybeDispatch(d.msg.part)
}

func (t *MemoryTransport) DeadLetter(d *Delivery, reason, description string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.settleable(d) {
		return
	}
	m := d.msg
	t.dead = append(t.dead, DeadLetteredMessage{
		MessageID:     m.raw.MessageID,
		PartitionKey:  m.raw.PartitionKey,
		Body:          m.raw.Body,
		Reason:        reason,
		Description:   description,
		DeliveryCount: m.deliveryCount,
		DeadLetterAt:  time.Now().UTC(),
	})
	t.remove(m)
	t.maybeDispatch(m.part)
}

// Depth returns pending and in-flight message counts, for gauges and the
// queue stats endpoint.
func (t *MemoryTransport) Depth() (pending, inflight int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.depth - t.inflight, t.inflight
}

// DeadLetters returns a copy of the dead-letter sink.
func (t *MemoryTransport) DeadLetters() []DeadLetteredMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]DeadLetteredMessage, len(t.dead))
	copy(out, t.dead)
	return out
}

var _ Transport = (*MemoryTransport)(nil)
