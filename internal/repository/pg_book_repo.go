package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bookhub/book-notify/internal/domain"
)

type pgBookRepository struct {
	pool *pgxpool.Pool
}

// NewPgBookRepository returns a BookRepository backed by PostgreSQL.
func NewPgBookRepository(pool *pgxpool.Pool) BookRepository {
	return &pgBookRepository{pool: pool}
}

func (r *pgBookRepository) Create(ctx context.Context, b *domain.Book) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO books
			(id, title, author, isbn, category, description, price,
			 is_available, stock, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		b.ID, b.Title, b.Author, b.ISBN, b.Category, b.Description, b.Price,
		b.IsAvailable, b.Stock, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert book: %w", err)
	}
	return nil
}

func (r *pgBookRepository) GetByID(ctx context.Context, id, category string) (*domain.Book, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, title, author, isbn, category, description, price,
		       is_available, stock, created_at, updated_at
		FROM books WHERE id = $1 AND category = $2`, id, category)

	b, err := scanBook(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return b, err
}

func (r *pgBookRepository) List(ctx context.Context, category string, page, limit int) ([]*domain.Book, int, error) {
	where := ""
	args := []any{}
	if category != "" {
		where = " WHERE category = $1"
		args = append(args, category)
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM books"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count books: %w", err)
	}

	offset := (page - 1) * limit
	args = append(args, limit, offset)
	query := fmt.Sprintf(`
		SELECT id, title, author, isbn, category, description, price,
		       is_available, stock, created_at, updated_at
		FROM books%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	var books []*domain.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, 0, err
		}
		books = append(books, b)
	}
	return books, total, rows.Err()
}

func (r *pgBookRepository) Delete(ctx context.Context, id, category string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM books WHERE id = $1 AND category = $2`, id, category)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanBook(row pgx.Row) (*domain.Book, error) {
	var b domain.Book
	err := row.Scan(
		&b.ID, &b.Title, &b.Author, &b.ISBN, &b.Category, &b.Description,
		&b.Price, &b.IsAvailable, &b.Stock, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
