package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bookhub/book-notify/internal/domain"
	"github.com/bookhub/book-notify/internal/repository"
)

// SubscriberService owns subscriber account management. Confirm and
// Deactivate go through the same optimistic-concurrency path as the
// delivery bookkeeping, so a confirm racing a notification never clobbers
// the counters.
type SubscriberService struct {
	repo   repository.SubscriberRepository
	logger *zap.Logger
}

func NewSubscriberService(repo repository.SubscriberRepository, logger *zap.Logger) *SubscriberService {
	return &SubscriberService{repo: repo, logger: logger}
}

// Create registers a new, unconfirmed subscriber. Notifications start only
// after confirmation.
func (s *SubscriberService) Create(ctx context.Context, req domain.CreateSubscriberRequest) (*domain.Subscriber, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sub := &domain.Subscriber{
		ID:         uuid.New().String(),
		Email:      req.Email,
		Name:       req.Name,
		IsActive:   true,
		Categories: append([]string(nil), req.Categories...),
		Preference: req.Preference,
		WebhookURL: req.WebhookURL,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// Confirm marks the subscriber eligible for delivery.
func (s *SubscriberService) Confirm(ctx context.Context, id string) (*domain.Subscriber, error) {
	return s.mutate(ctx, id, func(sub *domain.Subscriber) error {
		if sub.ConfirmedAt != nil {
			return domain.ErrAlreadyConfirmed
		}
		now := time.Now().UTC()
		sub.ConfirmedAt = &now
		return nil
	})
}

// Deactivate stops all future notifications for the subscriber.
func (s *SubscriberService) Deactivate(ctx context.Context, id string) (*domain.Subscriber, error) {
	return s.mutate(ctx, id, func(sub *domain.Subscriber) error {
		if !sub.IsActive {
			return domain.ErrAlreadyDeactivated
		}
		sub.IsActive = false
		return nil
	})
}

func (s *SubscriberService) GetByID(ctx context.Context, id string) (*domain.Subscriber, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *SubscriberService) List(ctx context.Context, page, limit int) ([]*domain.Subscriber, int, error) {
	return s.repo.List(ctx, page, limit)
}

// mutate applies fn under the version check, re-reading and reapplying on
// conflict. Deliveries bump the same record concurrently, so conflicts here
// are normal, not exceptional.
func (s *SubscriberService) mutate(ctx context.Context, id string, fn func(*domain.Subscriber) error) (*domain.Subscriber, error) {
	const attempts = 5
	for i := 0; i < attempts; i++ {
		sub, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := fn(sub); err != nil {
			return nil, err
		}

		updated, err := s.repo.Update(ctx, sub, sub.Version)
		if err == nil {
			return updated, nil
		}
		if err != domain.ErrVersionConflict {
			return nil, err
		}
		s.logger.Debug("subscriber update conflict, retrying", zap.String("id", id))
	}
	return nil, fmt.Errorf("subscriber %s: %w", id, domain.ErrVersionConflict)
}
