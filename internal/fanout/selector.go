package fanout

import (
	"context"
	"fmt"

	"github.com/bookhub/book-notify/internal/domain"
	"github.com/bookhub/book-notify/internal/repository"
)

// Selector picks the subscribers eligible for a new book in a category:
// active, confirmed, and either subscribed to the category or subscribed to
// everything (empty category list). Side-effect free; no match is an empty
// result, not an error.
type Selector struct {
	subs repository.SubscriberRepository
}

func NewSelector(subs repository.SubscriberRepository) *Selector {
	return &Selector{subs: subs}
}

// SelectForCategory returns the eligible subscriber set for the category.
// The store query already narrows to active+confirmed+category, but the
// filter is re-applied here so eligibility does not silently depend on a
// particular backing store's query semantics.
func (s *Selector) SelectForCategory(ctx context.Context, category string) ([]*domain.Subscriber, error) {
	candidates, err := s.subs.QueryByCategory(ctx, category, true, true)
	if err != nil {
		return nil, fmt.Errorf("query subscribers for category %q: %w", category, err)
	}

	eligible := make([]*domain.Subscriber, 0, len(candidates))
	for _, sub := range candidates {
		if sub.Eligible() && sub.MatchesCategory(category) {
			eligible = append(eligible, sub)
		}
	}
	return eligible, nil
}
