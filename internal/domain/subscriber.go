package domain

import (
	"net/mail"
	"strings"
	"time"
)

// Preference selects the delivery method for a subscriber.
type Preference string

const (
	PreferenceEmail   Preference = "email"
	PreferenceWebhook Preference = "webhook"
	PreferenceBoth    Preference = "both"
)

func (p Preference) IsValid() bool {
	switch p {
	case PreferenceEmail, PreferenceWebhook, PreferenceBoth:
		return true
	}
	return false
}

// Subscriber is someone who wants to hear about new books.
//
// Version is the optimistic-concurrency token: every successful update
// increments it, and updates carrying a stale version are rejected with
// ErrVersionConflict. Delivery bookkeeping (NotificationCount,
// LastNotifiedAt) is mutated concurrently by in-flight deliveries, so
// writers must re-read and reapply on conflict rather than overwrite.
type Subscriber struct {
	ID                string     `json:"id"`
	Email             string     `json:"email"`
	Name              string     `json:"name"`
	IsActive          bool       `json:"is_active"`
	ConfirmedAt       *time.Time `json:"confirmed_at,omitempty"`
	Categories        []string   `json:"categories"`
	Preference        Preference `json:"preference"`
	WebhookURL        string     `json:"webhook_url,omitempty"`
	LastNotifiedAt    *time.Time `json:"last_notified_at,omitempty"`
	NotificationCount int        `json:"notification_count"`
	Version           int64      `json:"version"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Eligible reports whether the subscriber may receive notifications at all:
// active and with a confirmed subscription.
func (s *Subscriber) Eligible() bool {
	return s.IsActive && s.ConfirmedAt != nil
}

// MatchesCategory reports whether the subscriber wants the given category.
// An empty category list is a wildcard. Matching is case-insensitive: the
// upstream producers are not consistent about category casing, so "fiction"
// and "Fiction" are treated as the same shelf.
func (s *Subscriber) MatchesCategory(category string) bool {
	if len(s.Categories) == 0 {
		return true
	}
	for _, c := range s.Categories {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	return false
}

// CreateSubscriberRequest is the inbound payload for registering a subscriber.
type CreateSubscriberRequest struct {
	Email      string     `json:"email"`
	Name       string     `json:"name"`
	Categories []string   `json:"categories"`
	Preference Preference `json:"preference"`
	WebhookURL string     `json:"webhook_url,omitempty"`
}

func (r *CreateSubscriberRequest) Validate() error {
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return ErrInvalidEmail
	}
	if r.Name == "" {
		return ErrInvalidName
	}
	if !r.Preference.IsValid() {
		return ErrInvalidPreference
	}
	if (r.Preference == PreferenceWebhook || r.Preference == PreferenceBoth) && r.WebhookURL == "" {
		return ErrWebhookURLRequired
	}
	return nil
}
