package domain

import "errors"

// Sentinel errors used throughout the application.
// HTTP handlers translate these to status codes via a single mapError function.
var (
	ErrNotFound        = errors.New("not found")
	ErrDuplicateEmail  = errors.New("conflict: email already registered")
	ErrVersionConflict = errors.New("conflict: record was modified concurrently")

	ErrInvalidTitle    = errors.New("title must not be empty")
	ErrInvalidAuthor   = errors.New("author must not be empty")
	ErrInvalidCategory = errors.New("category must not be empty")
	ErrInvalidPrice    = errors.New("price must not be negative")
	ErrInvalidStock    = errors.New("stock must not be negative")

	ErrInvalidEmail       = errors.New("email address is not valid")
	ErrInvalidName        = errors.New("name must not be empty")
	ErrInvalidPreference  = errors.New("preference must be email, webhook, or both")
	ErrWebhookURLRequired = errors.New("webhook_url is required for webhook delivery")

	ErrAlreadyConfirmed   = errors.New("subscriber is already confirmed")
	ErrAlreadyDeactivated = errors.New("subscriber is already deactivated")
)
