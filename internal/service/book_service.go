package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bookhub/book-notify/internal/domain"
	"github.com/bookhub/book-notify/internal/event"
	"github.com/bookhub/book-notify/internal/repository"
)

// BookService owns book CRUD and publishes lifecycle events. The fan-out
// pipeline hangs off the book.created event, not off this service: the two
// are coupled only through the bus.
type BookService struct {
	repo   repository.BookRepository
	bus    *event.Bus
	logger *zap.Logger
}

func NewBookService(repo repository.BookRepository, bus *event.Bus, logger *zap.Logger) *BookService {
	return &BookService{repo: repo, bus: bus, logger: logger}
}

// Create validates, persists, and announces a new book. A failed publish
// does not undo the create — the book exists either way — but it is logged
// loudly because it means subscribers will not hear about this book.
func (s *BookService) Create(ctx context.Context, req domain.CreateBookRequest) (*domain.Book, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	b := &domain.Book{
		ID:          uuid.New().String(),
		Title:       req.Title,
		Author:      req.Author,
		ISBN:        req.ISBN,
		Category:    req.Category,
		Description: req.Description,
		Price:       req.Price,
		IsAvailable: req.IsAvailable,
		Stock:       req.Stock,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("persist book: %w", err)
	}

	s.publish(domain.EventBookCreated, b.ID, b.Category)
	return b, nil
}

func (s *BookService) GetByID(ctx context.Context, id, category string) (*domain.Book, error) {
	return s.repo.GetByID(ctx, id, category)
}

func (s *BookService) List(ctx context.Context, category string, page, limit int) ([]*domain.Book, int, error) {
	return s.repo.List(ctx, category, page, limit)
}

func (s *BookService) Delete(ctx context.Context, id, category string) error {
	if err := s.repo.Delete(ctx, id, category); err != nil {
		return err
	}
	s.publish(domain.EventBookDeleted, id, category)
	return nil
}

func (s *BookService) publish(t domain.EventType, bookID, category string) {
	env, err := domain.NewBookEnvelope(t, bookID, category)
	if err != nil {
		s.logger.Error("failed to build event envelope",
			zap.String("type", string(t)), zap.Error(err))
		return
	}
	if err := s.bus.Publish(env); err != nil {
		s.logger.Error("failed to publish event",
			zap.String("type", string(t)),
			zap.String("book_id", bookID),
			zap.Error(err),
		)
	}
}
