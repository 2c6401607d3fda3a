package sender_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookhub/book-notify/internal/domain"
	"github.com/bookhub/book-notify/internal/sender"
)

func sampleMessage() *domain.NotificationMessage {
	book := &domain.Book{
		ID:          "book-1",
		Title:       "Dune",
		Author:      "Frank Herbert",
		ISBN:        "978-0441172719",
		Category:    "Fiction",
		Description: "A desert planet and its spice.",
		Price:       12.50,
	}
	sub := &domain.Subscriber{
		ID:         "sub-1",
		Email:      "reader@example.com",
		Name:       "Reader",
		Preference: domain.PreferenceEmail,
	}
	return domain.NewNotificationMessage(book, sub)
}

func TestRenderNewBookEmail(t *testing.T) {
	e := sender.RenderNewBookEmail(sampleMessage())

	assert.Equal(t, "reader@example.com", e.To)
	assert.Equal(t, "New in Fiction: Dune", e.Subject)
	assert.Contains(t, e.Body, "Hi Reader,")
	assert.Contains(t, e.Body, "Dune")
	assert.Contains(t, e.Body, "Frank Herbert")
	assert.Contains(t, e.Body, "$12.50")
}

func TestNewBookWebhookPayload(t *testing.T) {
	m := sampleMessage()
	p := sender.NewBookWebhookPayload(m)

	assert.Equal(t, "book.created", p.Event)
	assert.Equal(t, m.MessageID, p.MessageID)
	assert.Equal(t, "sub-1", p.Subscriber)
	assert.Equal(t, "Dune", p.Book.Title)
}

func TestHTTPWebhookSender_Send(t *testing.T) {
	var gotContentType string
	var gotPayload sender.WebhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := sender.NewHTTPWebhookSender(5 * time.Second)
	err := s.Send(context.Background(), srv.URL, sender.NewBookWebhookPayload(sampleMessage()))

	require.NoError(t, err)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "book.created", gotPayload.Event)
}

func TestHTTPWebhookSender_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := sender.NewHTTPWebhookSender(5 * time.Second)
	err := s.Send(context.Background(), srv.URL, sender.NewBookWebhookPayload(sampleMessage()))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestHTTPWebhookSender_UnreachableHost(t *testing.T) {
	s := sender.NewHTTPWebhookSender(200 * time.Millisecond)
	err := s.Send(context.Background(), "http://127.0.0.1:1/hook", nil)
	assert.Error(t, err)
}
