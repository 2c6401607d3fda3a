package repository

import (
	"context"

	"github.com/bookhub/book-notify/internal/domain"
)

// BookRepository defines persistence operations for books.
// Lookups are category-scoped: category is the store's partition key, so a
// point read needs both the id and the category it was written under.
// The pgx implementation is in pg_book_repo.go; tests use the in-memory mock.
type BookRepository interface {
	Create(ctx context.Context, b *domain.Book) error
	GetByID(ctx context.Context, id, category string) (*domain.Book, error)
	List(ctx context.Context, category string, page, limit int) ([]*domain.Book, int, error)
	Delete(ctx context.Context, id, category string) error
}
