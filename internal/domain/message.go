package domain

import (
	"time"

	"github.com/google/uuid"
)

// BookSnapshot is the subset of book fields a notification needs for
// rendering, copied at enqueue time. The live book record may change or
// disappear after fan-out; the snapshot keeps delivery reproducible.
type BookSnapshot struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	ISBN        string  `json:"isbn"`
	Category    string  `json:"category"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
}

// SubscriberSnapshot is the subset of subscriber fields needed to perform
// a delivery, copied at enqueue time. Bookkeeping still goes against the
// live subscriber record; only delivery routing uses the snapshot.
type SubscriberSnapshot struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	Name       string     `json:"name"`
	Preference Preference `json:"preference"`
	WebhookURL string     `json:"webhook_url,omitempty"`
}

// NotificationMessage is the queue payload: one per (book, subscriber) pair.
// It lives only on the queue — created at fan-out, terminated (completed or
// dead-lettered) by the consumer, never persisted anywhere else.
//
// Serialized as field-named JSON so producers and consumers on different
// versions can add optional fields without breaking each other.
type NotificationMessage struct {
	MessageID     string             `json:"message_id"`
	CorrelationID string             `json:"correlation_id"`
	CreatedAt     time.Time          `json:"created_at"`
	Book          BookSnapshot       `json:"book"`
	Subscriber    SubscriberSnapshot `json:"subscriber"`
}

// NewNotificationMessage snapshots the book and subscriber into a fresh
// message. The inputs are copied, not referenced: mutating them afterwards
// must not change an already-built message. CorrelationID ties the message
// back to the originating book.
func NewNotificationMessage(book *Book, sub *Subscriber) *NotificationMessage {
	return &NotificationMessage{
		MessageID:     uuid.New().String(),
		CorrelationID: book.ID,
		CreatedAt:     time.Now().UTC(),
		Book: BookSnapshot{
			ID:          book.ID,
			Title:       book.Title,
			Author:      book.Author,
			ISBN:        book.ISBN,
			Category:    book.Category,
			Description: book.Description,
			Price:       book.Price,
		},
		Subscriber: SubscriberSnapshot{
			ID:         sub.ID,
			Email:      sub.Email,
			Name:       sub.Name,
			Preference: sub.Preference,
			WebhookURL: sub.WebhookURL,
		},
	}
}

// NotificationResult is the executor's report for a single delivery attempt.
// Ephemeral: the consumer reads it once to pick complete/abandon/dead-letter.
type NotificationResult struct {
	Success      bool
	SubscriberID string
	Method       Preference
	ErrorMessage string
	Timestamp    time.Time
}
