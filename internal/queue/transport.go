package queue

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Dead-letter reasons. These are wire-visible strings: operators filter the
// dead-letter sink by reason, so renaming one is a breaking change.
const (
	ReasonDeserializationFailed = "DeserializationFailed"
	ReasonMaxRetriesExceeded    = "MaxRetriesExceeded"
	ReasonProcessingFailed      = "ProcessingFailed"
)

// ErrQueueFull is returned by Enqueue when the transport is at capacity.
var ErrQueueFull = errors.New("queue is at capacity, try again later")

// TransportError wraps a failure inside the transport. Callers decide whether
// to retry; the transport itself never does.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MessageTooLargeError marks a message whose serialized body exceeds the
// transport's per-message limit. Not retryable: the same message will always
// be too large, so it must be surfaced to the producer, never re-enqueued.
type MessageTooLargeError struct {
	MessageID string
	Size      int
	Limit     int
}

func (e *MessageTooLargeError) Error() string {
	return fmt.Sprintf("message %s is %d bytes, exceeds transport limit of %d", e.MessageID, e.Size, e.Limit)
}

// Raw is the producer-side unit: an opaque body plus the routing metadata the
// transport needs. PartitionKey groups messages whose relative order matters;
// the transport guarantees FIFO within a partition and nothing across them.
type Raw struct {
	MessageID    string
	PartitionKey string
	Body         []byte
	// DeliverAt, when non-zero, delays visibility until that instant.
	DeliverAt time.Time
}

// Delivery is one receipt of a message. DeliveryCount is stamped by the
// transport: 1 on the first receipt, incremented on every redelivery.
// Consumers read it to enforce the attempt cap but never derive it themselves.
type Delivery struct {
	MessageID     string
	PartitionKey  string
	Body          []byte
	EnqueuedAt    time.Time
	DeliveryCount int

	msg *message // settlement handle, owned by the transport
}

// DeadLetteredMessage is a terminally failed message parked for operators.
type DeadLetteredMessage struct {
	MessageID     string    `json:"message_id"`
	PartitionKey  string    `json:"partition_key"`
	Body          []byte    `json:"body"`
	Reason        string    `json:"reason"`
	Description   string    `json:"description"`
	DeliveryCount int       `json:"delivery_count"`
	DeadLetterAt  time.Time `json:"dead_letter_at"`
}

// Limits describes the transport's payload ceilings. The client chunks
// batches against MaxBatchSize and rejects individual messages above
// MaxMessageSize before they reach the wire.
type Limits struct {
	MaxMessageSize int
	MaxBatchSize   int
}

// Transport is a durable, at-least-once message queue with per-partition
// ordering, visibility-timeout redelivery, and a dead-letter sink.
//
// Settlement contract: every received Delivery must end in exactly one of
// Complete, Abandon, or DeadLetter. An unsettled delivery is redelivered
// after the visibility timeout expires, so a consumer cancelled mid-flight
// simply lets the timeout do the work — it must never Complete a message
// whose side effects did not finish.
type Transport interface {
	Enqueue(ctx context.Context, r Raw) error
	// Receive blocks until a message is available or ctx is cancelled.
	// Returns (nil, false) on cancellation.
	Receive(ctx context.Context) (*Delivery, bool)
	Complete(d *Delivery)
	Abandon(d *Delivery)
	DeadLetter(d *Delivery, reason, description string)
	Limits() Limits
}
