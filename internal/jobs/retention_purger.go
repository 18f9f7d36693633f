package jobs

import (
	"context"
	"log"
	"time"

	"github.com/matter-platform/search-core/internal/alert"
	"github.com/matter-platform/search-core/internal/audit"
)

// PurgeService deletes expired audit entries. *services.Core implements it.
type PurgeService interface {
	PurgeExpiredAuditEntries(ctx context.Context) (*audit.PurgeReport, error)
}

// RetentionPurger periodically deletes audit entries past their retention window.
type RetentionPurger struct {
	svc      PurgeService
	failures *failureTracker
	interval time.Duration
	stopChan chan struct{}
}

// NewRetentionPurger creates the retention purge job. intervalHours defaults to 24.
func NewRetentionPurger(svc PurgeService, intervalHours, alertThreshold int, alerter alert.Alerter) *RetentionPurger {
	if intervalHours <= 0 {
		intervalHours = 24
	}
	return &RetentionPurger{
		svc:      svc,
		failures: newFailureTracker("retention_purger", alertThreshold, alerter),
		interval: time.Duration(intervalHours) * time.Hour,
		stopChan: make(chan struct{}),
	}
}

// Start runs a purge immediately and then on every tick. A cancelled context
// stops the purge between partitions and ends the loop.
func (p *RetentionPurger) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	log.Printf("Retention purger started with interval: %v", p.interval)

	p.runOnce(ctx)

	for {
		select {
		case <-ticker.C:
			p.runOnce(ctx)
		case <-p.stopChan:
			log.Println("Retention purger stopped")
			return
		case <-ctx.Done():
			log.Println("Retention purger context cancelled")
			return
		}
	}
}

// Stop signals the loop to exit.
func (p *RetentionPurger) Stop() {
	close(p.stopChan)
}

func (p *RetentionPurger) runOnce(ctx context.Context) {
	report, err := p.svc.PurgeExpiredAuditEntries(ctx)
	if report != nil && report.Buckets > 0 {
		log.Printf("Retention purger: %d partition(s) scanned, %d entries deleted, %d partition(s) dropped",
			report.Buckets, report.Total(), len(report.Dropped))
	}
	if err != nil && ctx.Err() != nil {
		log.Printf("Retention purger: interrupted: %v", err)
		return
	}
	if err != nil {
		log.Printf("Retention purger: run failed: %v", err)
	}
	p.failures.record(ctx, err)
}
