package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/matter-platform/search-core/internal/alert"
	"github.com/matter-platform/search-core/internal/audit"
	"github.com/matter-platform/search-core/internal/telemetry"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type fakePartitionService struct {
	mu    sync.Mutex
	calls int
	errs  []error
}

func (f *fakePartitionService) MaintainAuditPartitions(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

func (f *fakePartitionService) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePurgeService struct {
	report *audit.PurgeReport
	err    error
	calls  int
}

func (f *fakePurgeService) PurgeExpiredAuditEntries(context.Context) (*audit.PurgeReport, error) {
	f.calls++
	return f.report, f.err
}

type recordingAlerter struct {
	mu     sync.Mutex
	alerts []alert.Alert
}

func (r *recordingAlerter) Send(_ context.Context, a alert.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return nil
}

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

func TestNewPartitionMaintainer_DefaultInterval(t *testing.T) {
	m := NewPartitionMaintainer(&fakePartitionService{}, 0, 3, nil)
	if m.interval != 24*time.Hour {
		t.Errorf("interval = %v, want 24h", m.interval)
	}
	if m.failures.threshold != 3 {
		t.Errorf("threshold = %d, want 3", m.failures.threshold)
	}
}

func TestNewRetentionPurger_CustomInterval(t *testing.T) {
	p := NewRetentionPurger(&fakePurgeService{}, 6, 0, nil)
	if p.interval != 6*time.Hour {
		t.Errorf("interval = %v, want 6h", p.interval)
	}
	if p.failures.threshold != 3 {
		t.Errorf("threshold = %d, want default 3", p.failures.threshold)
	}
}

// ---------------------------------------------------------------------------
// Loop control
// ---------------------------------------------------------------------------

func TestPartitionMaintainer_RunsImmediatelyAndStops(t *testing.T) {
	svc := &fakePartitionService{}
	m := NewPartitionMaintainer(svc, 24, 3, nil)

	done := make(chan struct{})
	go func() {
		m.Start(context.Background())
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for svc.callCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("maintenance did not run on start")
		case <-time.After(5 * time.Millisecond):
		}
	}

	m.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
}

func TestRetentionPurger_ExitsOnContextCancel(t *testing.T) {
	p := NewRetentionPurger(&fakePurgeService{report: &audit.PurgeReport{}}, 24, 3, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

// ---------------------------------------------------------------------------
// Failure streaks
// ---------------------------------------------------------------------------

func TestPartitionMaintainer_AlertsAfterThreshold(t *testing.T) {
	boom := errors.New("permission denied for schema public")
	svc := &fakePartitionService{errs: []error{boom, boom, boom, boom, nil}}
	alerts := &recordingAlerter{}
	m := NewPartitionMaintainer(svc, 24, 3, alerts)
	ctx := context.Background()

	m.runOnce(ctx)
	m.runOnce(ctx)
	if len(alerts.alerts) != 0 {
		t.Fatalf("alerted after %d failures, want none before threshold", m.failures.streak)
	}
	if got := telemetry.GaugeValue(telemetry.JobConsecutiveFailures, "partition_maintainer"); got != 2 {
		t.Errorf("gauge = %v, want 2", got)
	}

	m.runOnce(ctx)
	if len(alerts.alerts) != 1 {
		t.Fatalf("alerts = %d, want 1 at threshold", len(alerts.alerts))
	}
	if alerts.alerts[0].Fields["job"] != "partition_maintainer" {
		t.Errorf("unexpected alert fields: %v", alerts.alerts[0].Fields)
	}

	m.runOnce(ctx)
	if len(alerts.alerts) != 1 {
		t.Errorf("alerts = %d, want no repeat before the next multiple", len(alerts.alerts))
	}

	m.runOnce(ctx)
	if m.failures.streak != 0 {
		t.Errorf("streak = %d, want reset after success", m.failures.streak)
	}
	if got := telemetry.GaugeValue(telemetry.JobConsecutiveFailures, "partition_maintainer"); got != 0 {
		t.Errorf("gauge = %v, want 0", got)
	}
}

func TestRetentionPurger_CancelledRunIsNotAFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc := &fakePurgeService{report: &audit.PurgeReport{Buckets: 1}, err: context.Canceled}
	p := NewRetentionPurger(svc, 24, 1, &recordingAlerter{})

	p.runOnce(ctx)
	if p.failures.streak != 0 {
		t.Errorf("streak = %d, want 0 for an interrupted run", p.failures.streak)
	}
}

func TestRetentionPurger_FailureCounts(t *testing.T) {
	alerts := &recordingAlerter{}
	svc := &fakePurgeService{err: &audit.PartitionMaintenanceError{Op: "purge", Partition: "audit_log_y2020m01", Err: errors.New("lock timeout")}}
	p := NewRetentionPurger(svc, 24, 1, alerts)

	p.runOnce(context.Background())
	if p.failures.streak != 1 {
		t.Errorf("streak = %d, want 1", p.failures.streak)
	}
	if len(alerts.alerts) != 1 {
		t.Errorf("alerts = %d, want 1 with threshold 1", len(alerts.alerts))
	}
}
