package audit

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/matter-platform/search-core/internal/db/repositories"
	"github.com/matter-platform/search-core/internal/telemetry"
)

var partitionPattern = regexp.MustCompile(`^audit_log_y(\d{4})m(\d{2})$`)

// PartitionName returns the monthly partition holding entries at t.
func PartitionName(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("audit_log_y%04dm%02d", t.Year(), int(t.Month()))
}

// ParsePartitionName returns the first instant covered by a partition.
func ParsePartitionName(name string) (time.Time, bool) {
	m := partitionPattern.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, false
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), true
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// PartitionStore is the partition DDL surface. *repositories.AuditLogRepository
// implements it.
type PartitionStore interface {
	EnsurePartition(ctx context.Context, name string, from, to time.Time) (bool, error)
	ListPartitions(ctx context.Context) ([]string, error)
	PurgePartition(ctx context.Context, name string, cutoffs []repositories.RetentionCutoff, droppable bool) (*repositories.PurgeResult, error)
}

// PurgeReport summarises one retention purge.
type PurgeReport struct {
	Buckets int              `json:"buckets"`
	Deleted map[Policy]int64 `json:"deleted"`
	Dropped []string         `json:"dropped"`
}

// Total is the number of entries deleted across policies.
func (r *PurgeReport) Total() int64 {
	var n int64
	for _, d := range r.Deleted {
		n += d
	}
	return n
}

// Maintainer keeps the monthly partitions ahead of the clock and purges
// expired entries.
type Maintainer struct {
	store       PartitionStore
	monthsAhead int
	now         func() time.Time
}

// MaintainerOption configures a Maintainer.
type MaintainerOption func(*Maintainer)

// WithClock replaces time.Now as the reference for months and retention cutoffs.
func WithClock(now func() time.Time) MaintainerOption {
	return func(m *Maintainer) { m.now = now }
}

// NewMaintainer creates a Maintainer that keeps the current month and
// monthsAhead following months partitioned.
func NewMaintainer(store PartitionStore, monthsAhead int, opts ...MaintainerOption) *Maintainer {
	m := &Maintainer{store: store, monthsAhead: monthsAhead, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MaintainPartitions creates any missing partition from the current month to
// monthsAhead months out and returns the names it created. It is idempotent.
func (m *Maintainer) MaintainPartitions(ctx context.Context) ([]string, error) {
	start := monthStart(m.now())
	var created []string
	for i := 0; i <= m.monthsAhead; i++ {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		from := start.AddDate(0, i, 0)
		name := PartitionName(from)
		ok, err := m.store.EnsurePartition(ctx, name, from, from.AddDate(0, 1, 0))
		if err != nil {
			return created, &PartitionMaintenanceError{Op: "create", Partition: name, Err: err}
		}
		if ok {
			telemetry.AuditPartitionsCreatedTotal.Inc()
			created = append(created, name)
		}
	}
	return created, nil
}

// Cutoffs returns the deletion threshold of every policy at now.
func Cutoffs(now time.Time) []repositories.RetentionCutoff {
	out := make([]repositories.RetentionCutoff, 0, len(windows))
	for _, p := range Policies() {
		out = append(out, repositories.RetentionCutoff{Policy: string(p), Before: now.Add(-Window(p))})
	}
	return out
}

// PurgeExpired deletes expired entries partition by partition, each in its own
// transaction, and drops partitions that are empty and wholly past the shortest
// window. Cancellation is honoured between partitions; the report covers the
// partitions finished so far.
func (m *Maintainer) PurgeExpired(ctx context.Context) (*PurgeReport, error) {
	now := m.now().UTC()
	cutoffs := Cutoffs(now)
	oldest := now.Add(-Window(PolicyStandard))
	report := &PurgeReport{Deleted: make(map[Policy]int64, len(windows))}

	names, err := m.store.ListPartitions(ctx)
	if err != nil {
		return report, &PartitionMaintenanceError{Op: "list", Err: err}
	}

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		start, ok := ParsePartitionName(name)
		if !ok || !start.Before(oldest) {
			continue
		}
		droppable := !start.AddDate(0, 1, 0).After(oldest)

		res, err := m.store.PurgePartition(ctx, name, cutoffs, droppable)
		if err != nil {
			return report, &PartitionMaintenanceError{Op: "purge", Partition: name, Err: err}
		}
		report.Buckets++
		for policy, n := range res.Deleted {
			report.Deleted[Policy(policy)] += n
			telemetry.AuditEntriesPurgedTotal.WithLabelValues(policy).Add(float64(n))
		}
		if res.Dropped {
			report.Dropped = append(report.Dropped, name)
		}
	}
	return report, nil
}
