// Package notifier delivers trade and settlement notices. Delivery failures
// are reported but never allowed to fail the action they describe.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Notifier delivers a human-readable notice.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// Multi fans a notice out to several notifiers, collecting failures.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, subject, body string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, subject, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes notices to the application log. It is the default when
// no webhook is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("notify")}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(ctx context.Context, subject, body string) error {
	n.logger.Info("notification", zap.String("subject", subject), zap.String("body", body))
	return nil
}

// WebhookNotifier POSTs notices as JSON to a configured endpoint.
type WebhookNotifier struct {
	logger *zap.Logger
	url    string
	client *http.Client
}

// NewWebhookNotifier creates a webhook notifier with the given request
// timeout.
func NewWebhookNotifier(logger *zap.Logger, url string, timeout time.Duration) *WebhookNotifier {
	return &WebhookNotifier{
		logger: logger.Named("notify"),
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Notify implements Notifier.
func (n *WebhookNotifier) Notify(ctx context.Context, subject, body string) error {
	payload, err := json.Marshal(map[string]string{
		"subject": subject,
		"body":    body,
	})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notification webhook returned %d", resp.StatusCode)
	}
	n.logger.Debug("notification delivered", zap.String("subject", subject))
	return nil
}
