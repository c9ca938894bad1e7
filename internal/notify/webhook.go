package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WebhookSMS hands text messages to an SMS provider through a JSON webhook:
// POST {"to": "...", "body": "..."}.
type WebhookSMS struct {
	url    string
	token  string
	client *http.Client
}

// NewWebhookSMS creates an SMS sender for the provider endpoint.
func NewWebhookSMS(url, token string, timeout time.Duration) *WebhookSMS {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSMS{url: url, token: token, client: &http.Client{Timeout: timeout}}
}

type smsPayload struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

// SendSMS posts one message to the provider.
func (s *WebhookSMS) SendSMS(ctx context.Context, to, body string) error {
	payload, err := json.Marshal(smsPayload{To: to, Body: body})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("sms provider returned status %d", resp.StatusCode)
	}
	return nil
}
