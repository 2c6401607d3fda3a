package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bookhub/book-notify/internal/domain"
)

type pgSubscriberRepository struct {
	pool *pgxpool.Pool
}

// NewPgSubscriberRepository returns a SubscriberRepository backed by PostgreSQL.
func NewPgSubscriberRepository(pool *pgxpool.Pool) SubscriberRepository {
	return &pgSubscriberRepository{pool: pool}
}

const subscriberColumns = `
	id, email, name, is_active, confirmed_at, categories, preference,
	webhook_url, last_notified_at, notification_count, version,
	created_at, updated_at`

func (r *pgSubscriberRepository) Create(ctx context.Context, s *domain.Subscriber) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO subscribers
			(id, email, name, is_active, confirmed_at, categories, preference,
			 webhook_url, last_notified_at, notification_count, version,
			 created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		s.ID, s.Email, s.Name, s.IsActive, s.ConfirmedAt, s.Categories,
		s.Preference, s.WebhookURL, s.LastNotifiedAt, s.NotificationCount,
		s.Version, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return domain.ErrDuplicateEmail
		}
		return fmt.Errorf("insert subscriber: %w", err)
	}
	return nil
}

func (r *pgSubscriberRepository) GetByID(ctx context.Context, id string) (*domain.Subscriber, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+subscriberColumns+` FROM subscribers WHERE id = $1`, id)
	s, err := scanSubscriber(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return s, err
}

func (r *pgSubscriberRepository) GetByEmail(ctx context.Context, email string) (*domain.Subscriber, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+subscriberColumns+` FROM subscribers WHERE email = $1`, email)
	s, err := scanSubscriber(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return s, err
}

func (r *pgSubscriberRepository) List(ctx context.Context, page, limit int) ([]*domain.Subscriber, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM subscribers`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count subscribers: %w", err)
	}

	offset := (page - 1) * limit
	rows, err := r.pool.Query(ctx, `
		SELECT `+subscriberColumns+`
		FROM subscribers
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list subscribers: %w", err)
	}
	defer rows.Close()

	subs, err := collectSubscribers(rows)
	return subs, total, err
}

// QueryByCategory matches case-insensitively: categories are stored as
// entered, and the upstream producers disagree about casing, so the
// comparison is normalized here instead.
func (r *pgSubscriberRepository) QueryByCategory(ctx context.Context, category string, activeOnly, confirmedOnly bool) ([]*domain.Subscriber, error) {
	query := `
		SELECT ` + subscriberColumns + `
		FROM subscribers
		WHERE (cardinality(categories) = 0
		       OR EXISTS (SELECT 1 FROM unnest(categories) c WHERE lower(c) = lower($1)))`
	if activeOnly {
		query += ` AND is_active`
	}
	if confirmedOnly {
		query += ` AND confirmed_at IS NOT NULL`
	}
	query += ` ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, category)
	if err != nil {
		return nil, fmt.Errorf("query subscribers by category: %w", err)
	}
	defer rows.Close()

	return collectSubscribers(rows)
}

// Update writes the subscriber only if the stored version still equals
// expectedVersion, bumping the version on success. A zero-row update means
// someone else won the race: the caller gets ErrVersionConflict and must
// re-read and reapply its delta.
func (r *pgSubscriberRepository) Update(ctx context.Context, s *domain.Subscriber, expectedVersion int64) (*domain.Subscriber, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE subscribers SET
			email = $1, name = $2, is_active = $3, confirmed_at = $4,
			categories = $5, preference = $6, webhook_url = $7,
			last_notified_at = $8, notification_count = $9,
			version = version + 1, updated_at = now()
		WHERE id = $10 AND version = $11
		RETURNING `+subscriberColumns,
		s.Email, s.Name, s.IsActive, s.ConfirmedAt, s.Categories,
		s.Preference, s.WebhookURL, s.LastNotifiedAt, s.NotificationCount,
		s.ID, expectedVersion,
	)

	updated, err := scanSubscriber(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// Distinguish "gone" from "stale version".
		if _, getErr := r.GetByID(ctx, s.ID); errors.Is(getErr, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrVersionConflict
	}
	if err != nil {
		return nil, fmt.Errorf("update subscriber: %w", err)
	}
	return updated, nil
}

func scanSubscriber(row pgx.Row) (*domain.Subscriber, error) {
	var s domain.Subscriber
	err := row.Scan(
		&s.ID, &s.Email, &s.Name, &s.IsActive, &s.ConfirmedAt, &s.Categories,
		&s.Preference, &s.WebhookURL, &s.LastNotifiedAt, &s.NotificationCount,
		&s.Version, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func collectSubscribers(rows pgx.Rows) ([]*domain.Subscriber, error) {
	var subs []*domain.Subscriber
	for rows.Next() {
		s, err := scanSubscriber(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}
