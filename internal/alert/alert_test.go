package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/matter-platform/search-core/internal/config"
)

// ---- WebhookAlerter -----------------------------------------------------------

func TestWebhookAlerter_Send(t *testing.T) {
	var got Alert
	var contentType, token string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		token = r.Header.Get("X-Alert-Token")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	w := NewWebhookAlerter(srv.URL, time.Second, map[string]string{"X-Alert-Token": "t0k"})
	err := w.Send(context.Background(), Alert{
		Severity: SeverityCritical,
		Source:   "audit",
		Message:  "audit write failed",
		Fields:   map[string]any{"table": "searches"},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if contentType != "application/json" {
		t.Errorf("Content-Type = %q", contentType)
	}
	if token != "t0k" {
		t.Errorf("X-Alert-Token = %q", token)
	}
	if got.Message != "audit write failed" || got.Fields["table"] != "searches" {
		t.Errorf("unexpected payload: %+v", got)
	}
	if got.At.IsZero() {
		t.Error("expected At to be stamped")
	}
}

func TestWebhookAlerter_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookAlerter(srv.URL, 0, nil).Send(context.Background(), Alert{Message: "x"})
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("err = %v, want status 502", err)
	}
}

func TestWebhookAlerter_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	if err := NewWebhookAlerter(url, time.Second, nil).Send(context.Background(), Alert{Message: "x"}); err == nil {
		t.Fatal("expected error for closed server")
	}
}

// ---- LogAlerter ---------------------------------------------------------------

func TestLogAlerter_Send(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	err := NewLogAlerter(logger).Send(context.Background(), Alert{
		Severity: SeverityCritical, Source: "jobs", Message: "purge failing", Fields: map[string]any{"streak": 3},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if line["level"] != "ERROR" || line["msg"] != "purge failing" || line["alert_source"] != "jobs" {
		t.Errorf("unexpected log line: %v", line)
	}
	if line["streak"] != float64(3) {
		t.Errorf("streak = %v", line["streak"])
	}
}

// ---- MultiAlerter -------------------------------------------------------------

type recordingAlerter struct {
	got []Alert
	err error
}

func (r *recordingAlerter) Send(_ context.Context, a Alert) error {
	r.got = append(r.got, a)
	return r.err
}

func TestMultiAlerter_ContinuesPastFailure(t *testing.T) {
	boom := errors.New("boom")
	first := &recordingAlerter{err: boom}
	second := &recordingAlerter{}

	err := NewMultiAlerter(first, second).Send(context.Background(), Alert{Message: "m"})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if len(first.got) != 1 || len(second.got) != 1 {
		t.Fatalf("expected both alerters to receive the alert")
	}
	if second.got[0].At.IsZero() {
		t.Error("expected At to be stamped once for all alerters")
	}
}

func TestNew(t *testing.T) {
	m, ok := New(config.AuditConfig{}).(*MultiAlerter)
	if !ok || len(m.alerters) != 1 {
		t.Fatalf("expected log-only alerter, got %#v", m)
	}

	m, ok = New(config.AuditConfig{AlertWebhookURL: "https://hooks.example.com/x", AlertTimeoutSecs: 5}).(*MultiAlerter)
	if !ok || len(m.alerters) != 2 {
		t.Fatalf("expected log and webhook alerters, got %#v", m)
	}
	wh := m.alerters[1].(*WebhookAlerter)
	if wh.client.Timeout != 5*time.Second {
		t.Errorf("timeout = %v", wh.client.Timeout)
	}
}

func TestNop(t *testing.T) {
	if err := (Nop{}).Send(context.Background(), Alert{}); err != nil {
		t.Errorf("Nop.Send: %v", err)
	}
}
