package repository

import (
	"context"
	"sync"

	"github.com/bookhub/book-notify/internal/domain"
)

// MockBookRepository is a hand-written, in-memory implementation of
// BookRepository used in unit tests. No mock-generation library needed.
type MockBookRepository struct {
	mu    sync.RWMutex
	books map[string]*domain.Book

	// Optional error overrides — set in tests to simulate failure paths.
	CreateErr  error
	GetByIDErr error
}

func NewMockBookRepository() *MockBookRepository {
	return &MockBookRepository{books: make(map[string]*domain.Book)}
}

func (m *MockBookRepository) Create(_ context.Context, b *domain.Book) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *b
	m.books[b.ID] = &clone
	return nil
}

func (m *MockBookRepository) GetByID(_ context.Context, id, category string) (*domain.Book, error) {
	if m.GetByIDErr != nil {
		return nil, m.GetByIDErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.books[id]
	if !ok || b.Category != category {
		return nil, domain.ErrNotFound
	}
	clone := *b
	return &clone, nil
}

func (m *MockBookRepository) List(_ context.Context, category string, _, _ int) ([]*domain.Book, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Book
	for _, b := range m.books {
		if category != "" && b.Category != category {
			continue
		}
		clone := *b
		result = append(result, &clone)
	}
	return result, len(result), nil
}

func (m *MockBookRepository) Delete(_ context.Context, id, category string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	if !ok || b.Category != category {
		return domain.ErrNotFound
	}
	delete(m.books, id)
	return nil
}
