package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bookhub/book-notify/internal/domain"
	"github.com/bookhub/book-notify/internal/ratelimiter"
	"github.com/bookhub/book-notify/internal/repository"
	"github.com/bookhub/book-notify/internal/sender"
)

// bookkeepingAttempts caps the optimistic-concurrency retry loop on the
// subscriber record. Conflicts are rare and resolve on re-read; a loop
// still spinning after this many rounds is logged and given up on —
// bookkeeping is best-effort and must not block the delivery.
const bookkeepingAttempts = 5

// DeliveryExecutor performs the actual notification send and the subscriber
// bookkeeping around it. It reports success or failure in a structured
// result and never lets a fault escape to the consumer: the consumer owns
// the transport-visible outcome, the executor only describes what happened.
type DeliveryExecutor struct {
	subs    repository.SubscriberRepository
	email   sender.EmailSender
	webhook sender.WebhookSender
	limiter *ratelimiter.MethodLimiters
	logger  *zap.Logger
}

func NewDeliveryExecutor(
	subs repository.SubscriberRepository,
	email sender.EmailSender,
	webhook sender.WebhookSender,
	limiter *ratelimiter.MethodLimiters,
	logger *zap.Logger,
) *DeliveryExecutor {
	return &DeliveryExecutor{
		subs:    subs,
		email:   email,
		webhook: webhook,
		limiter: limiter,
		logger:  logger,
	}
}

// Deliver sends one notification according to the subscriber snapshot's
// preference and returns a structured result.
//
// Bookkeeping (count + last-notified timestamp) runs before the send and is
// not rolled back on send failure: the counters record "attempted", not
// "succeeded". A redelivered message therefore bumps the count again —
// accepted, since the counters are informational.
func (e *DeliveryExecutor) Deliver(ctx context.Context, m *domain.NotificationMessage) (result domain.NotificationResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("delivery panicked",
				zap.String("message_id", m.MessageID),
				zap.Any("panic", r),
			)
			result = e.failure(m, fmt.Sprintf("delivery panic: %v", r))
		}
	}()

	e.recordAttempt(ctx, m.Subscriber.ID)

	switch m.Subscriber.Preference {
	case domain.PreferenceEmail:
		if err := e.sendEmail(ctx, m); err != nil {
			return e.failure(m, err.Error())
		}
	case domain.PreferenceWebhook:
		if err := e.sendWebhook(ctx, m); err != nil {
			return e.failure(m, err.Error())
		}
	case domain.PreferenceBoth:
		// Both sends are attempted even if the first fails; success is the
		// AND of both, and the email error wins when both fail.
		emailErr := e.sendEmail(ctx, m)
		webhookErr := e.sendWebhook(ctx, m)
		if emailErr != nil {
			return e.failure(m, emailErr.Error())
		}
		if webhookErr != nil {
			return e.failure(m, webhookErr.Error())
		}
	default:
		// Reachable when a producer on a different schema version enqueues
		// a preference this consumer does not know.
		return e.failure(m, fmt.Sprintf("unrecognized notification preference: %q", m.Subscriber.Preference))
	}

	return domain.NotificationResult{
		Success:      true,
		SubscriberID: m.Subscriber.ID,
		Method:       m.Subscriber.Preference,
		Timestamp:    time.Now().UTC(),
	}
}

func (e *DeliveryExecutor) sendEmail(ctx context.Context, m *domain.NotificationMessage) error {
	if err := e.limiter.Wait(ctx, domain.PreferenceEmail); err != nil {
		return err
	}
	return e.email.Send(ctx, sender.RenderNewBookEmail(m))
}

func (e *DeliveryExecutor) sendWebhook(ctx context.Context, m *domain.NotificationMessage) error {
	if m.Subscriber.WebhookURL == "" {
		return errors.New("Webhook URL not configured")
	}
	if err := e.limiter.Wait(ctx, domain.PreferenceWebhook); err != nil {
		return err
	}
	return e.webhook.Send(ctx, m.Subscriber.WebhookURL, sender.NewBookWebhookPayload(m))
}

// recordAttempt bumps the live subscriber's notification counters using
// read-modify-write with a version check. On a version conflict the delta
// is reapplied to a fresh read rather than overwriting the concurrent
// writer's change. A missing subscriber is not an error — the account may
// have been deleted after enqueue — so it is logged and skipped.
func (e *DeliveryExecutor) recordAttempt(ctx context.Context, subscriberID string) {
	now := time.Now().UTC()

	for attempt := 0; attempt < bookkeepingAttempts; attempt++ {
		s, err := e.subs.GetByID(ctx, subscriberID)
		if errors.Is(err, domain.ErrNotFound) {
			e.logger.Info("subscriber gone, skipping bookkeeping",
				zap.String("subscriber_id", subscriberID))
			return
		}
		if err != nil {
			e.logger.Warn("bookkeeping read failed",
				zap.String("subscriber_id", subscriberID), zap.Error(err))
			return
		}

		s.NotificationCount++
		s.LastNotifiedAt = &now

		_, err = e.subs.Update(ctx, s, s.Version)
		if err == nil {
			return
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			e.logger.Warn("bookkeeping write failed",
				zap.String("subscriber_id", subscriberID), zap.Error(err))
			return
		}
		// Lost the race; re-read and reapply.
	}

	e.logger.Warn("bookkeeping abandoned after repeated version conflicts",
		zap.String("subscriber_id", subscriberID))
}

func (e *DeliveryExecutor) failure(m *domain.NotificationMessage, msg string) domain.NotificationResult {
	return domain.NotificationResult{
		Success:      false,
		SubscriberID: m.Subscriber.ID,
		Method:       m.Subscriber.Preference,
		ErrorMessage: msg,
		Timestamp:    time.Now().UTC(),
	}
}
