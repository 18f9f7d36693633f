// Package alert delivers operational alerts raised when the audit trail cannot be
// written or background maintenance keeps failing. Alerts go to the structured
// log and, when configured, to an HTTP webhook consumed by the on-call tooling.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/matter-platform/search-core/internal/config"
)

// Severity levels.
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Alert is one operational alert.
type Alert struct {
	Severity string         `json:"severity"`
	Source   string         `json:"source"`
	Message  string         `json:"message"`
	Fields   map[string]any `json:"fields,omitempty"`
	At       time.Time      `json:"at"`
}

// Alerter delivers alerts.
type Alerter interface {
	Send(ctx context.Context, a Alert) error
}

// New builds the alerter described by cfg: always the log, plus a webhook when
// alert_webhook_url is set.
func New(cfg config.AuditConfig) Alerter {
	alerters := []Alerter{NewLogAlerter(nil)}
	if cfg.AlertWebhookURL != "" {
		alerters = append(alerters, NewWebhookAlerter(cfg.AlertWebhookURL, time.Duration(cfg.AlertTimeoutSecs)*time.Second, nil))
	}
	return NewMultiAlerter(alerters...)
}

// LogAlerter writes alerts to a slog logger.
type LogAlerter struct {
	logger *slog.Logger
}

// NewLogAlerter creates a LogAlerter; a nil logger means slog.Default().
func NewLogAlerter(logger *slog.Logger) *LogAlerter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogAlerter{logger: logger}
}

// Send logs the alert at error level for critical alerts and warn otherwise.
func (l *LogAlerter) Send(ctx context.Context, a Alert) error {
	level := slog.LevelWarn
	if a.Severity == SeverityCritical {
		level = slog.LevelError
	}
	attrs := []any{"alert_source", a.Source, "severity", a.Severity}
	for k, v := range a.Fields {
		attrs = append(attrs, k, v)
	}
	l.logger.Log(ctx, level, a.Message, attrs...)
	return nil
}

// WebhookAlerter posts alerts as JSON.
type WebhookAlerter struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// NewWebhookAlerter creates a WebhookAlerter. A zero timeout defaults to 10s.
func NewWebhookAlerter(url string, timeout time.Duration, headers map[string]string) *WebhookAlerter {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &WebhookAlerter{
		url:     url,
		headers: headers,
		client:  &http.Client{Timeout: timeout},
	}
}

// Send posts a to the webhook.
func (w *WebhookAlerter) Send(ctx context.Context, a Alert) error {
	if a.At.IsZero() {
		a.At = time.Now().UTC()
	}
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send alert webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("alert webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// MultiAlerter fans an alert out to every alerter. Delivery continues past
// failures; the joined error is returned.
type MultiAlerter struct {
	alerters []Alerter
}

// NewMultiAlerter creates a MultiAlerter.
func NewMultiAlerter(alerters ...Alerter) *MultiAlerter {
	return &MultiAlerter{alerters: alerters}
}

// Send delivers a to every alerter.
func (m *MultiAlerter) Send(ctx context.Context, a Alert) error {
	if a.At.IsZero() {
		a.At = time.Now().UTC()
	}
	var errs []error
	for _, al := range m.alerters {
		if err := al.Send(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards alerts.
type Nop struct{}

// Send does nothing.
func (Nop) Send(context.Context, Alert) error { return nil }
