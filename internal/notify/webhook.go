// Package notify delivers deactivation events to user-configured webhooks.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// payload is the JSON body POSTed to a webhook when a tracked post goes
// inactive.
type payload struct {
	URL    string `json:"url"`
	Status string `json:"status"`
}

// WebhookNotifier POSTs JSON payloads with a bounded timeout. Delivery is a
// single attempt; failures are the caller's to log, never retried here.
type WebhookNotifier struct {
	client *http.Client
	logger *zap.Logger
}

// New constructs a WebhookNotifier.
func New(timeout time.Duration, logger *zap.Logger) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookNotifier{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// NotifyInactive POSTs {url, status:"inactive"} to the webhook URL. A non-2xx
// response is an error so the caller can count the delivery as failed.
func (n *WebhookNotifier) NotifyInactive(ctx context.Context, webhookURL string, postURL string) error {
	return n.post(ctx, webhookURL, payload{URL: postURL, Status: "inactive"})
}

// Verify probes a webhook URL with a test payload and reports whether the
// endpoint accepted it. Transport failures and error statuses both read as
// "not active" rather than surfacing an error.
func (n *WebhookNotifier) Verify(ctx context.Context, webhookURL string) bool {
	if err := n.post(ctx, webhookURL, payload{Status: "verify"}); err != nil {
		n.logger.Debug("webhook verification failed",
			zap.String("webhook", webhookURL),
			zap.Error(err),
		)
		return false
	}
	return true
}

func (n *WebhookNotifier) post(ctx context.Context, webhookURL string, body payload) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook post: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("webhook responded with status %d", resp.StatusCode)
	}
	return nil
}
