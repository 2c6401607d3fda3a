package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bookhub/book-notify/internal/domain"
	"github.com/bookhub/book-notify/internal/queue"
)

// Outcome is the transport-visible result of handling one delivery.
type Outcome string

const (
	OutcomeCompleted    Outcome = "completed"
	OutcomeAbandoned    Outcome = "abandoned"
	OutcomeDeadLettered Outcome = "dead_lettered"
	// OutcomeUnsettled means the consumer deliberately left the delivery
	// alone (cancellation mid-flight); the visibility timeout redelivers it.
	OutcomeUnsettled Outcome = "unsettled"
)

// Executor performs one delivery attempt and reports the result.
type Executor interface {
	Deliver(ctx context.Context, m *domain.NotificationMessage) domain.NotificationResult
}

// Hooks carries the metric callbacks injected by main.
// Using a struct keeps the consumer constructor signature clean.
type Hooks struct {
	OnCompleted    func(method domain.Preference, latency time.Duration)
	OnAbandoned    func()
	OnDeadLettered func(reason string)
}

func (h *Hooks) fillNoops() {
	if h.OnCompleted == nil {
		h.OnCompleted = func(domain.Preference, time.Duration) {}
	}
	if h.OnAbandoned == nil {
		h.OnAbandoned = func() {}
	}
	if h.OnDeadLettered == nil {
		h.OnDeadLettered = func(string) {}
	}
}

// Consumer is the per-message state machine: it deserializes a delivery,
// invokes the executor, and settles the message — complete, abandon for
// redelivery, or dead-letter. It is the only place that decides the
// transport-visible outcome; the executor just reports what happened.
type Consumer struct {
	transport   queue.Transport
	executor    Executor
	maxAttempts int
	logger      *zap.Logger
	hooks       Hooks
}

func NewConsumer(
	transport queue.Transport,
	executor Executor,
	maxAttempts int,
	logger *zap.Logger,
	hooks Hooks,
) *Consumer {
	hooks.fillNoops()
	return &Consumer{
		transport:   transport,
		executor:    executor,
		maxAttempts: maxAttempts,
		logger:      logger,
		hooks:       hooks,
	}
}

// Handle processes one delivery end to end.
//
// Transition rules, in order:
//  1. Deserialization failure dead-letters immediately, whatever the
//     attempt count — malformed data will not fix itself.
//  2. Executor success completes the message.
//  3. Executor failure abandons while the delivery count is below the cap,
//     and dead-letters with MaxRetriesExceeded once it reaches it, carrying
//     the last error as the description.
//  4. A panic out of the executor is treated like a failure but
//     dead-letters with ProcessingFailed when the cap is reached.
//  5. Cancellation mid-delivery settles nothing: the side effects may not
//     have finished, so completing would be a lie, and the visibility
//     timeout takes care of redelivery.
func (c *Consumer) Handle(ctx context.Context, d *queue.Delivery) Outcome {
	start := time.Now()
	log := c.logger.With(
		zap.String("message_id", d.MessageID),
		zap.Int("delivery_count", d.DeliveryCount),
	)

	var msg domain.NotificationMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		log.Error("undecodable message payload", zap.Error(err))
		c.transport.DeadLetter(d, queue.ReasonDeserializationFailed, err.Error())
		c.hooks.OnDeadLettered(queue.ReasonDeserializationFailed)
		return OutcomeDeadLettered
	}

	result, faulted := c.invoke(ctx, &msg)

	if result.Success {
		c.transport.Complete(d)
		c.hooks.OnCompleted(result.Method, time.Since(start))
		log.Info("notification delivered",
			zap.String("subscriber_id", result.SubscriberID),
			zap.String("method", string(result.Method)),
			zap.Duration("latency", time.Since(start)),
		)
		return OutcomeCompleted
	}

	if ctx.Err() != nil {
		log.Warn("delivery interrupted by shutdown, leaving message for redelivery")
		return OutcomeUnsettled
	}

	if d.DeliveryCount < c.maxAttempts {
		log.Warn("delivery failed, abandoning for retry",
			zap.String("error", result.ErrorMessage))
		c.transport.Abandon(d)
		c.hooks.OnAbandoned()
		return OutcomeAbandoned
	}

	reason := queue.ReasonMaxRetriesExceeded
	if faulted {
		reason = queue.ReasonProcessingFailed
	}
	log.Error("delivery attempts exhausted, dead-lettering",
		zap.String("reason", reason),
		zap.String("error", result.ErrorMessage),
	)
	c.transport.DeadLetter(d, reason, result.ErrorMessage)
	c.hooks.OnDeadLettered(reason)
	return OutcomeDeadLettered
}

// invoke runs the executor, converting a panic into a failed result.
// The executor recovers its own panics already; this guard exists so that
// no executor implementation, however broken, can crash the worker.
func (c *Consumer) invoke(ctx context.Context, m *domain.NotificationMessage) (result domain.NotificationResult, faulted bool) {
	defer func() {
		if r := recover(); r != nil {
			faulted = true
			result = domain.NotificationResult{
				Success:      false,
				SubscriberID: m.Subscriber.ID,
				Method:       m.Subscriber.Preference,
				ErrorMessage: fmt.Sprintf("processing fault: %v", r),
				Timestamp:    time.Now().UTC(),
			}
		}
	}()
	return c.executor.Deliver(ctx, m), false
}
