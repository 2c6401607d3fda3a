// Package event carries book lifecycle events from the API to the fan-out
// trigger over an in-process, at-least-once channel with its own
// dead-letter list for poison envelopes.
package event

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/bookhub/book-notify/internal/domain"
)

// ErrBusFull is returned by Publish when the event buffer is saturated.
var ErrBusFull = errors.New("event bus is at capacity")

// Handler processes one envelope. Returning an error requeues the envelope
// for another attempt unless the error is Permanent, which dead-letters it
// immediately.
type Handler func(ctx context.Context, env domain.EventEnvelope) error

// permanentError marks a failure that redelivery cannot fix, such as a
// malformed payload.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the bus dead-letters the envelope instead of
// retrying it.
func Permanent(err error) error { return &permanentError{err: err} }

// IsPermanent reports whether err was wrapped by Permanent.
func IsPermanent(err error) bool {
	var perm *permanentError
	return errors.As(err, &perm)
}

// FailedEvent is an envelope the bus gave up on, kept for inspection.
type FailedEvent struct {
	Envelope domain.EventEnvelope `json:"envelope"`
	Reason   string               `json:"reason"`
	Attempts int                  `json:"attempts"`
}

type busMessage struct {
	env      domain.EventEnvelope
	attempts int
}

// Bus is a buffered in-process event channel with bounded redelivery.
// One handler per event type; unrouted envelopes are dropped with a log
// line rather than dead-lettered, since a missing subscription is a wiring
// bug, not bad data.
type Bus struct {
	ch          chan busMessage
	maxAttempts int
	logger      *zap.Logger

	mu       sync.RWMutex
	handlers map[domain.EventType]Handler
	failed   []FailedEvent
}

func NewBus(buffer, maxAttempts int, logger *zap.Logger) *Bus {
	return &Bus{
		ch:          make(chan busMessage, buffer),
		maxAttempts: maxAttempts,
		logger:      logger,
		handlers:    make(map[domain.EventType]Handler),
	}
}

// Subscribe registers the handler for an event type. Call before Run.
func (b *Bus) Subscribe(t domain.EventType, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = h
}

// Publish enqueues an envelope. Non-blocking: a full buffer returns
// ErrBusFull so the caller can fail its own operation instead of stalling.
func (b *Bus) Publish(env domain.EventEnvelope) error {
	select {
	case b.ch <- busMessage{env: env}:
		return nil
	default:
		return ErrBusFull
	}
}

// Run dispatches envelopes until ctx is cancelled. Each envelope is handled
// to completion before the next one is picked up; concurrency across books
// comes from running multiple Run goroutines.
func (b *Bus) Run(ctx context.Context) {
	b.logger.Info("event dispatcher started")
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("event dispatcher stopping")
			return
		case m := <-b.ch:
			b.dispatch(ctx, m)
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, m busMessage) {
	b.mu.RLock()
	h, ok := b.handlers[m.env.Type]
	b.mu.RUnlock()

	if !ok {
		b.logger.Warn("no handler for event type", zap.String("type", string(m.env.Type)))
		return
	}

	m.attempts++
	err := h(ctx, m.env)
	if err == nil {
		return
	}

	if IsPermanent(err) {
		b.deadLetter(m, fmt.Sprintf("permanent failure: %v", err))
		return
	}
	if ctx.Err() != nil {
		// Shutting down mid-handling; the envelope is lost unless it can be
		// requeued, so try once without blocking.
		select {
		case b.ch <- m:
		default:
		}
		return
	}
	if m.attempts >= b.maxAttempts {
		b.deadLetter(m, fmt.Sprintf("retries exhausted: %v", err))
		return
	}

	b.logger.Warn("event handler failed, requeueing",
		zap.String("type", string(m.env.Type)),
		zap.Int("attempts", m.attempts),
		zap.Error(err),
	)
	select {
	case b.ch <- m:
	default:
		b.deadLetter(m, "requeue failed: bus at capacity")
	}
}

func (b *Bus) deadLetter(m busMessage, reason string) {
	b.logger.Error("event dead-lettered",
		zap.String("type", string(m.env.Type)),
		zap.String("reason", reason),
	)
	b.mu.Lock()
	b.failed = append(b.failed, FailedEvent{Envelope: m.env, Reason: reason, Attempts: m.attempts})
	b.mu.Unlock()
}

// FailedEvents returns a copy of the dead-lettered envelopes.
func (b *Bus) FailedEvents() []FailedEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]FailedEvent, len(b.failed))
	copy(out, b.failed)
	return out
}
