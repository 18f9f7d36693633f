// Package jobs runs the audit maintenance loops in the background: monthly
// partition creation and the retention purge. Each job runs once on start and
// then on its own ticker until its context is cancelled or Stop is called.
package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/matter-platform/search-core/internal/alert"
	"github.com/matter-platform/search-core/internal/telemetry"
)

// failureTracker counts consecutive failed runs of one job and alerts each time
// the streak reaches a multiple of threshold.
type failureTracker struct {
	job       string
	threshold int
	streak    int
	alerter   alert.Alerter
}

func newFailureTracker(job string, threshold int, alerter alert.Alerter) *failureTracker {
	if threshold <= 0 {
		threshold = 3
	}
	if alerter == nil {
		alerter = alert.Nop{}
	}
	return &failureTracker{job: job, threshold: threshold, alerter: alerter}
}

func (f *failureTracker) record(ctx context.Context, err error) {
	if err == nil {
		f.streak = 0
		telemetry.JobConsecutiveFailures.WithLabelValues(f.job).Set(0)
		return
	}

	f.streak++
	telemetry.JobConsecutiveFailures.WithLabelValues(f.job).Set(float64(f.streak))
	if f.streak%f.threshold != 0 {
		return
	}

	alertErr := f.alerter.Send(ctx, alert.Alert{
		Severity: alert.SeverityCritical,
		Source:   "jobs",
		Message:  fmt.Sprintf("%s failed %d consecutive times", f.job, f.streak),
		Fields:   map[string]any{"job": f.job, "streak": f.streak, "error": err.Error()},
		At:       time.Now().UTC(),
	})
	if alertErr != nil {
		log.Printf("%s: failed to deliver alert: %v", f.job, alertErr)
	}
}
