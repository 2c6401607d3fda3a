package repository

import (
	"context"

	"github.com/bookhub/book-notify/internal/domain"
)

// SubscriberRepository defines persistence operations for subscribers.
//
// Update enforces optimistic concurrency: the write succeeds only when the
// stored version equals expectedVersion, otherwise it fails with
// domain.ErrVersionConflict and the caller must re-read and reapply.
type SubscriberRepository interface {
	Create(ctx context.Context, s *domain.Subscriber) error
	GetByID(ctx context.Context, id string) (*domain.Subscriber, error)
	GetByEmail(ctx context.Context, email string) (*domain.Subscriber, error)
	List(ctx context.Context, page, limit int) ([]*domain.Subscriber, int, error)
	// QueryByCategory returns subscribers whose category list is empty or
	// contains the given category (case-insensitive), optionally narrowed
	// to active and confirmed ones.
	QueryByCategory(ctx context.Context, category string, activeOnly, confirmedOnly bool) ([]*domain.Subscriber, error)
	Update(ctx context.Context, s *domain.Subscriber, expectedVersion int64) (*domain.Subscriber, error)
}
