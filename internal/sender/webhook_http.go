package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPWebhookSender posts payloads to subscriber webhooks over HTTP.
// Swapped in for the stub when WEBHOOK_DELIVERY=http is configured.
type HTTPWebhookSender struct {
	client *http.Client
}

func NewHTTPWebhookSender(timeout time.Duration) *HTTPWebhookSender {
	return &HTTPWebhookSender{
		client: &http.Client{Timeout: timeout},
	}
}

// Send posts the payload as JSON and treats any 2xx response as delivered.
func (s *HTTPWebhookSender) Send(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

var _ WebhookSender = (*HTTPWebhookSender)(nil)
