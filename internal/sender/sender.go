// Package sender holds the outbound delivery collaborators. Real provider
// integrations are out of scope; the stubs log and report success so the
// pipeline around them is fully exercisable.
package sender

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bookhub/book-notify/internal/domain"
)

// Email is a rendered outbound email.
type Email struct {
	To      string
	Subject string
	Body    string
}

// EmailSender delivers a rendered email.
type EmailSender interface {
	Send(ctx context.Context, e Email) error
}

// WebhookSender posts a JSON payload to a subscriber-owned URL.
type WebhookSender interface {
	Send(ctx context.Context, url string, payload any) error
}

// WebhookPayload is the body posted to subscriber webhooks.
type WebhookPayload struct {
	Event      string              `json:"event"`
	MessageID  string              `json:"message_id"`
	Book       domain.BookSnapshot `json:"book"`
	Subscriber string              `json:"subscriber_id"`
}

// RenderNewBookEmail builds the email for a new-book notification from the
// message's snapshots.
func RenderNewBookEmail(m *domain.NotificationMessage) Email {
	return Email{
		To:      m.Subscriber.Email,
		Subject: fmt.Sprintf("New in %s: %s", m.Book.Category, m.Book.Title),
		Body: fmt.Sprintf(
			"Hi %s,\n\nA new book was just added:\n\n  %s\n  by %s\n  ISBN %s\n  $%.2f\n\n%s\n",
			m.Subscriber.Name, m.Book.Title, m.Book.Author, m.Book.ISBN, m.Book.Price, m.Book.Description,
		),
	}
}

// NewBookWebhookPayload builds the webhook body for a new-book notification.
func NewBookWebhookPayload(m *domain.NotificationMessage) WebhookPayload {
	return WebhookPayload{
		Event:      "book.created",
		MessageID:  m.MessageID,
		Book:       m.Book,
		Subscriber: m.Subscriber.ID,
	}
}

// StubEmailSender logs instead of sending. Always succeeds.
type StubEmailSender struct {
	logger *zap.Logger
}

func NewStubEmailSender(logger *zap.Logger) *StubEmailSender {
	return &StubEmailSender{logger: logger}
}

func (s *StubEmailSender) Send(_ context.Context, e Email) error {
	s.logger.Info("email sent (stub)",
		zap.String("to", e.To),
		zap.String("subject", e.Subject),
	)
	return nil
}

// StubWebhookSender logs instead of posting. Always succeeds.
type StubWebhookSender struct {
	logger *zap.Logger
}

func NewStubWebhookSender(logger *zap.Logger) *StubWebhookSender {
	return &StubWebhookSender{logger: logger}
}

func (s *StubWebhookSender) Send(_ context.Context, url string, _ any) error {
	s.logger.Info("webhook sent (stub)", zap.String("url", url))
	return nil
}

var (
	_ EmailSender   = (*StubEmailSender)(nil)
	_ WebhookSender = (*StubWebhookSender)(nil)
)
