package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bookhub/book-notify/internal/domain"
)

// MockSubscriberRepository is a hand-written, in-memory implementation of
// SubscriberRepository used in unit tests. It enforces the same version
// check as the PostgreSQL implementation so concurrency paths are testable.
type MockSubscriberRepository struct {
	mu          sync.RWMutex
	subscribers map[string]*domain.Subscriber

	// Optional error overrides — set in tests to simulate failure paths.
	GetByIDErr error
	QueryErr   error
	UpdateErr  error

	// UpdateConflicts makes the next N Update calls fail with
	// ErrVersionConflict before succeeding, to exercise retry loops.
	UpdateConflicts int
}

func NewMockSubscriberRepository() *MockSubscriberRepository {
	return &MockSubscriberRepository{subscribers: make(map[string]*domain.Subscriber)}
}

func (m *MockSubscriberRepository) Create(_ context.Context, s *domain.Subscriber) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.subscribers {
		if existing.Email == s.Email {
			return domain.ErrDuplicateEmail
		}
	}
	clone := cloneSubscriber(s)
	m.subscribers[s.ID] = clone
	return nil
}

func (m *MockSubscriberRepository) GetByID(_ context.Context, id string) (*domain.Subscriber, error) {
	if m.GetByIDErr != nil {
		return nil, m.GetByIDErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.subscribers[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneSubscriber(s), nil
}

func (m *MockSubscriberRepository) GetByEmail(_ context.Context, email string) (*domain.Subscriber, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.subscribers {
		if s.Email == email {
			return cloneSubscriber(s), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockSubscriberRepository) List(_ context.Context, _, _ int) ([]*domain.Subscriber, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Subscriber, 0, len(m.subscribers))
	for _, s := range m.subscribers {
		result = append(result, cloneSubscriber(s))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, len(result), nil
}

func (m *MockSubscriberRepository) QueryByCategory(_ context.Context, category string, activeOnly, confirmedOnly bool) ([]*domain.Subscriber, error) {
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Subscriber
	for _, s := range m.subscribers {
		if activeOnly && !s.IsActive {
			continue
		}
		if confirmedOnly && s.ConfirmedAt == nil {
			continue
		}
		if !s.MatchesCategory(category) {
			continue
		}
		result = append(result, cloneSubscriber(s))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MockSubscriberRepository) Update(_ context.Context, s *domain.Subscriber, expectedVersion int64) (*domain.Subscriber, error) {
	if m.UpdateErr != nil {
		return nil, m.UpdateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.subscribers[s.ID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if m.UpdateConflicts > 0 {
		m.UpdateConflicts--
		// Simulate a concurrent writer winning the race.
		existing.Version++
		return nil, domain.ErrVersionConflict
	}
	if existing.Version != expectedVersion {
		return nil, domain.ErrVersionConflict
	}

	clone := cloneSubscriber(s)
	clone.Version = expectedVersion + 1
	clone.UpdatedAt = time.Now().UTC()
	m.subscribers[s.ID] = clone
	return cloneSubscriber(clone), nil
}

func cloneSubscriber(s *domain.Subscriber) *domain.Subscriber {
	clone := *s
	clone.Categories = append([]string(nil), s.Categories...)
	if s.ConfirmedAt != nil {
		t := *s.ConfirmedAt
		clone.ConfirmedAt = &t
	}
	if s.LastNotifiedAt != nil {
		t := *s.LastNotifiedAt
		clone.LastNotifiedAt = &t
	}
	return &clone
}
