package jobs

import (
	"context"
	"log"
	"time"

	"github.com/matter-platform/search-core/internal/alert"
)

// PartitionService creates missing audit partitions. *services.Core implements it.
type PartitionService interface {
	MaintainAuditPartitions(ctx context.Context) error
}

// PartitionMaintainer periodically keeps the monthly audit partitions ahead of the clock.
type PartitionMaintainer struct {
	svc      PartitionService
	failures *failureTracker
	interval time.Duration
	stopChan chan struct{}
}

// NewPartitionMaintainer creates the partition maintenance job. intervalHours
// defaults to 24.
func NewPartitionMaintainer(svc PartitionService, intervalHours, alertThreshold int, alerter alert.Alerter) *PartitionMaintainer {
	if intervalHours <= 0 {
		intervalHours = 24
	}
	return &PartitionMaintainer{
		svc:      svc,
		failures: newFailureTracker("partition_maintainer", alertThreshold, alerter),
		interval: time.Duration(intervalHours) * time.Hour,
		stopChan: make(chan struct{}),
	}
}

// Start runs maintenance immediately and then on every tick. It returns when ctx
// is cancelled or Stop is called.
func (m *PartitionMaintainer) Start(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	log.Printf("Partition maintainer started with interval: %v", m.interval)

	m.runOnce(ctx)

	for {
		select {
		case <-ticker.C:
			m.runOnce(ctx)
		case <-m.stopChan:
			log.Println("Partition maintainer stopped")
			return
		case <-ctx.Done():
			log.Println("Partition maintainer context cancelled")
			return
		}
	}
}

// Stop signals the loop to exit.
func (m *PartitionMaintainer) Stop() {
	close(m.stopChan)
}

func (m *PartitionMaintainer) runOnce(ctx context.Context) {
	err := m.svc.MaintainAuditPartitions(ctx)
	if err != nil {
		log.Printf("Partition maintainer: run failed: %v", err)
	}
	m.failures.record(ctx, err)
}
