package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bookhub/book-notify/internal/domain"
	"github.com/bookhub/book-notify/internal/ratelimiter"
	"github.com/bookhub/book-notify/internal/repository"
	"github.com/bookhub/book-notify/internal/sender"
	"github.com/bookhub/book-notify/internal/worker"
)

type fakeEmailSender struct {
	sent []sender.Email
	err  error
}

func (f *fakeEmailSender) Send(_ context.Context, e sender.Email) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, e)
	return nil
}

type fakeWebhookSender struct {
	urls []string
	err  error
}

func (f *fakeWebhookSender) Send(_ context.Context, url string, _ any) error {
	if f.err != nil {
		return f.err
	}
	f.urls = append(f.urls, url)
	return nil
}

type executorFixture struct {
	subs     *repository.MockSubscriberRepository
	email    *fakeEmailSender
	webhook  *fakeWebhookSender
	executor *worker.DeliveryExecutor
}

func newExecutorFixture(t *testing.T) *executorFixture {
	t.Helper()
	f := &executorFixture{
		subs:    repository.NewMockSubscriberRepository(),
		email:   &fakeEmailSender{},
		webhook: &fakeWebhookSender{},
	}
	f.executor = worker.NewDeliveryExecutor(f.subs, f.email, f.webhook, ratelimiter.New(1000), zap.NewNop())
	return f
}

func (f *executorFixture) seedSubscriber(t *testing.T, id string) {
	t.Helper()
	now := time.Now().UTC()
	err := f.subs.Create(context.Background(), &domain.Subscriber{
		ID:          id,
		Email:       id + "@example.com",
		Name:        "Reader",
		IsActive:    true,
		ConfirmedAt: &now,
		Preference:  domain.PreferenceEmail,
		Version:     1,
	})
	require.NoError(t, err)
}

func messageFor(pref domain.Preference, webhookURL string) *domain.NotificationMessage {
	book := &domain.Book{ID: "book-1", Title: "Dune", Author: "Frank Herbert", Category: "Fiction", Price: 12.50}
	sub := &domain.Subscriber{
		ID:         "sub-1",
		Email:      "reader@example.com",
		Name:       "Reader",
		Preference: pref,
		WebhookURL: webhookURL,
	}
	return domain.NewNotificationMessage(book, sub)
}

func TestDeliveryExecutor_EmailSuccess(t *testing.T) {
	f := newExecutorFixture(t)
	f.seedSubscriber(t, "sub-1")
	before := time.Now().UTC()

	result := f.executor.Deliver(context.Background(), messageFor(domain.PreferenceEmail, ""))

	assert.True(t, result.Success)
	assert.Equal(t, "sub-1", result.SubscriberID)
	assert.Equal(t, domain.PreferenceEmail, result.Method)
	require.Len(t, f.email.sent, 1)
	assert.Equal(t, "reader@example.com", f.email.sent[0].To)

	s, err := f.subs.GetByID(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.Equal(t, 1, s.NotificationCount)
	require.NotNil(t, s.LastNotifiedAt)
	assert.False(t, s.LastNotifiedAt.Before(before))
}

func TestDeliveryExecutor_WebhookSuccess(t *testing.T) {
	f := newExecutorFixture(t)
	f.seedSubscriber(t, "sub-1")

	result := f.executor.Deliver(context.Background(), messageFor(domain.PreferenceWebhook, "https://example.com/hook"))

	assert.True(t, result.Success)
	assert.Equal(t, []string{"https://example.com/hook"}, f.webhook.urls)
	assert.Empty(t, f.email.sent)
}

func TestDeliveryExecutor_WebhookWithoutURL(t *testing.T) {
	f := newExecutorFixture(t)
	f.seedSubscriber(t, "sub-1")

	result := f.executor.Deliver(context.Background(), messageFor(domain.PreferenceWebhook, ""))

	assert.False(t, result.Success)
	assert.Equal(t, "Webhook URL not configured", result.ErrorMessage)
	assert.Empty(t, f.webhook.urls)

	// The attempt is still recorded: counters mean "attempted".
	s, err := f.subs.GetByID(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.Equal(t, 1, s.NotificationCount)
}

func TestDeliveryExecutor_BothSendsBoth(t *testing.T) {
	f := newExecutorFixture(t)
	f.seedSubscriber(t, "sub-1")

	result := f.executor.Deliver(context.Background(), messageFor(domain.PreferenceBoth, "https://example.com/hook"))

	assert.True(t, result.Success)
	assert.Len(t, f.email.sent, 1)
	assert.Len(t, f.webhook.urls, 1)
}

func TestDeliveryExecutor_BothFailsWhenEitherFails(t *testing.T) {
	t.Run("webhook failure still attempts email", func(t *testing.T) {
		f := newExecutorFixture(t)
		f.seedSubscriber(t, "sub-1")
		f.webhook.err = errors.New("hook endpoint down")

		result := f.executor.Deliver(context.Background(), messageFor(domain.PreferenceBoth, "https://example.com/hook"))

		assert.False(t, result.Success)
		assert.Equal(t, "hook endpoint down", result.ErrorMessage)
		assert.Len(t, f.email.sent, 1, "email is still attempted when the webhook fails")
	})

	t.Run("email failure wins when both fail", func(t *testing.T) {
		f := newExecutorFixture(t)
		f.seedSubscriber(t, "sub-1")
		f.email.err = errors.New("smtp refused")
		f.webhook.err = errors.New("hook endpoint down")

		result := f.executor.Deliver(context.Background(), messageFor(domain.PreferenceBoth, "https://example.com/hook"))

		assert.False(t, result.Success)
		assert.Equal(t, "smtp refused", result.ErrorMessage)
	})
}

func TestDeliveryExecutor_UnrecognizedPreference(t *testing.T) {
	f := newExecutorFixture(t)
	f.seedSubscriber(t, "sub-1")

	result := f.executor.Deliver(context.Background(), messageFor("sms", ""))

	assert.False(t, result.Success)
	assert.Equal(t, `unrecognized notification preference: "sms"`, result.ErrorMessage)
	assert.Empty(t, f.email.sent)
	assert.Empty(t, f.webhook.urls)
}

func TestDeliveryExecutor_BookkeepingRetriesOnVersionConflict(t *testing.T) {
	f := newExecutorFixture(t)
	f.seedSubscriber(t, "sub-1")
	f.subs.UpdateConflicts = 2

	result := f.executor.Deliver(context.Background(), messageFor(domain.PreferenceEmail, ""))

	assert.True(t, result.Success)
	s, err := f.subs.GetByID(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.Equal(t, 1, s.NotificationCount, "the delta is reapplied to a fresh read, not compounded")
}

func TestDeliveryExecutor_SubscriberGoneSkipsBookkeeping(t *testing.T) {
	f := newExecutorFixture(t)
	// No subscriber seeded: the account was deleted after enqueue.

	result := f.executor.Deliver(context.Background(), messageFor(domain.PreferenceEmail, ""))

	assert.True(t, result.Success, "a deleted account must not fail the delivery")
	assert.Len(t, f.email.sent, 1)
}

type panickingEmailSender struct{}

func (panickingEmailSender) Send(context.Context, sender.Email) error { panic("smtp driver bug") }

func TestDeliveryExecutor_RecoversSenderPanic(t *testing.T) {
	subs := repository.NewMockSubscriberRepository()
	executor := worker.NewDeliveryExecutor(subs, panickingEmailSender{}, &fakeWebhookSender{}, ratelimiter.New(1000), zap.NewNop())

	result := executor.Deliver(context.Background(), messageFor(domain.PreferenceEmail, ""))

	assert.False(t, result.Success)
	assert.Equal(t, "delivery panic: smtp driver bug", result.ErrorMessage)
}

func TestDeliveryExecutor_BookkeepingReadFailureDoesNotBlockDelivery(t *testing.T) {
	f := newExecutorFixture(t)
	f.subs.GetByIDErr = errors.New("connection reset")

	result := f.executor.Deliver(context.Background(), messageFor(domain.PreferenceEmail, ""))

	assert.True(t, result.Success)
	assert.Len(t, f.email.sent, 1)
}
