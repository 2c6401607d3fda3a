package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/bookhub/book-notify/internal/domain"
)

// MethodLimiters holds one token bucket per delivery method. Each limiter
// enforces a steady-state rate; burst equals the rate so no extra capacity
// accumulates beyond the configured per-second maximum.
//
// The "both" preference draws from the email and webhook buckets separately,
// one token per underlying send.
type MethodLimiters struct {
	limiters map[domain.Preference]*rate.Limiter
}

// New creates MethodLimiters with ratePerSec tokens per second per method.
func New(ratePerSec int) *MethodLimiters {
	r := rate.Limit(ratePerSec)
	return &MethodLimiters{
		limiters: map[domain.Preference]*rate.Limiter{
			domain.PreferenceEmail:   rate.NewLimiter(r, ratePerSec),
			domain.PreferenceWebhook: rate.NewLimiter(r, ratePerSec),
		},
	}
}

// Wait blocks until the method's limiter grants a token. Called by the
// executor immediately before each send. Returns a non-nil error only if
// ctx is cancelled while waiting. Unknown methods pass through unlimited:
// the executor rejects them right after, with a better error.
func (ml *MethodLimiters) Wait(ctx context.Context, method domain.Preference) error {
	lim, ok := ml.limiters[method]
	if !ok {
		return nil
	}
	return lim.Wait(ctx)
}
