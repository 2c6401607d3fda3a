package fanout

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/bookhub/book-notify/internal/domain"
	"github.com/bookhub/book-notify/internal/queue"
	"github.com/bookhub/book-notify/internal/repository"
)

// Orchestrator reacts to a book-created trigger: load the book, select the
// eligible subscribers, build one message snapshot per subscriber, and hand
// the batch to the queue client.
//
// It performs no dedup against repeated triggers for the same book: the
// event channel is at-least-once, so a redelivered trigger fans out again.
type Orchestrator struct {
	books    repository.BookRepository
	selector *Selector
	client   *queue.Client
	logger   *zap.Logger

	// onEnqueued is a metrics hook; nil means no-op.
	onEnqueued func(count int)
}

func NewOrchestrator(
	books repository.BookRepository,
	selector *Selector,
	client *queue.Client,
	logger *zap.Logger,
	onEnqueued func(count int),
) *Orchestrator {
	if onEnqueued == nil {
		onEnqueued = func(int) {}
	}
	return &Orchestrator{
		books:      books,
		selector:   selector,
		client:     client,
		logger:     logger,
		onEnqueued: onEnqueued,
	}
}

// NotifySubscribers fans a newly created book out to its subscribers and
// returns the number of messages enqueued — a count of enqueue attempts,
// not a delivery guarantee.
//
// A missing book is not an error: the book may have been deleted between
// the trigger and now, so the fan-out logs and stops with a zero count.
// Enqueue failures (including an oversized message) are surfaced to the
// caller so the triggering event can be retried or dead-lettered by the
// event channel's own policy.
func (o *Orchestrator) NotifySubscribers(ctx context.Context, bookID, category string) (int, error) {
	log := o.logger.With(zap.String("book_id", bookID), zap.String("category", category))

	book, err := o.books.GetByID(ctx, bookID, category)
	if errors.Is(err, domain.ErrNotFound) {
		log.Info("book vanished before fan-out, skipping")
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load book %s: %w", bookID, err)
	}

	subscribers, err := o.selector.SelectForCategory(ctx, category)
	if err != nil {
		return 0, err
	}
	if len(subscribers) == 0 {
		log.Debug("no eligible subscribers")
		return 0, nil
	}

	messages := make([]*domain.NotificationMessage, len(subscribers))
	for i, sub := range subscribers {
		messages[i] = domain.NewNotificationMessage(book, sub)
	}

	if err := o.client.SendBatch(ctx, messages); err != nil {
		return 0, fmt.Errorf("enqueue notifications for book %s: %w", bookID, err)
	}

	o.onEnqueued(len(messages))
	log.Info("fan-out enqueued", zap.Int("messages", len(messages)))
	return len(messages), nil
}
