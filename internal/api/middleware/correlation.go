package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type ctxKey int

const correlationKey ctxKey = iota

// CorrelationID propagates an X-Correlation-ID header through the request
// context and the response, minting a fresh UUID when the caller sent none.
// The same id ends up on log lines and, for book creation, as the seed that
// ties the HTTP request to the fan-out it triggered.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Correlation-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Correlation-ID", id)
		next.ServeHTTP(w, r.WithContext(
			context.WithValue(r.Context(), correlationKey, id),
		))
	})
}

// GetCorrelationID returns the id stored by CorrelationID, or "" when the
// middleware did not run.
func GetCorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey).(string)
	return id
}
