// Package services implements the governed operations of the search core. Every
// mutation of a governed record runs through Pipeline, which validates input,
// persists inside one transaction and writes the audit trail, so no repository
// is ever called for a governed write without its audit entry being attempted.
package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/matter-platform/search-core/internal/alert"
	"github.com/matter-platform/search-core/internal/audit"
	"github.com/matter-platform/search-core/internal/db"
	"github.com/matter-platform/search-core/internal/db/models"
	"github.com/matter-platform/search-core/internal/telemetry"
)

// TxRunner runs fn inside one transaction carried by the ctx passed to fn.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SQLTxRunner runs transactions on a Postgres pool.
type SQLTxRunner struct {
	DB *sqlx.DB
}

// RunInTx implements TxRunner.
func (r SQLTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.RunInTx(ctx, r.DB, fn)
}

// EventRecorder writes audit entries. *audit.Recorder implements it.
type EventRecorder interface {
	RecordEvent(ctx context.Context, e audit.Event) (*models.AuditLogEntry, error)
}

// Mutation is one governed write.
type Mutation struct {
	// Name identifies the operation in logs and alerts.
	Name string
	// Validate runs before the transaction opens. Optional.
	Validate func(ctx context.Context) error
	// Persist runs inside the transaction and returns the audit events to record.
	Persist func(ctx context.Context) ([]audit.Event, error)
	// Mandatory records the events inside the transaction, so an audit failure
	// rolls the write back. Otherwise events are recorded after commit and
	// failures are logged, counted and alerted.
	Mandatory bool
}

// Pipeline applies validate -> persist -> audit to every Mutation.
type Pipeline struct {
	tx       TxRunner
	recorder EventRecorder
	alerter  alert.Alerter
	logger   *slog.Logger
}

// NewPipeline creates a Pipeline. A nil alerter discards alerts.
func NewPipeline(tx TxRunner, recorder EventRecorder, alerter alert.Alerter) *Pipeline {
	if alerter == nil {
		alerter = alert.Nop{}
	}
	return &Pipeline{tx: tx, recorder: recorder, alerter: alerter, logger: slog.Default()}
}

// Run executes m.
func (p *Pipeline) Run(ctx context.Context, m Mutation) error {
	if m.Validate != nil {
		if err := m.Validate(ctx); err != nil {
			return err
		}
	}

	var deferred []audit.Event
	err := p.tx.RunInTx(ctx, func(ctx context.Context) error {
		events, err := m.Persist(ctx)
		if err != nil {
			return err
		}
		if !m.Mandatory {
			deferred = events
			return nil
		}
		for _, e := range events {
			if _, err := p.recorder.RecordEvent(ctx, e); err != nil {
				telemetry.AuditWriteFailuresTotal.WithLabelValues(e.TableName, "mandatory").Inc()
				p.logger.Error("mandatory audit write failed, rolling back",
					"operation", m.Name, "table", e.TableName, "record_id", e.RecordID, "error", err)
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, e := range deferred {
		p.recordBestEffort(ctx, m.Name, e)
	}
	return nil
}

func (p *Pipeline) recordBestEffort(ctx context.Context, op string, e audit.Event) {
	_, err := p.recorder.RecordEvent(ctx, e)
	if err == nil {
		return
	}

	telemetry.AuditWriteFailuresTotal.WithLabelValues(e.TableName, "best_effort").Inc()
	p.logger.Error("audit write failed after commit",
		"operation", op, "event_type", e.Type, "table", e.TableName, "record_id", e.RecordID, "error", err)

	alertErr := p.alerter.Send(ctx, alert.Alert{
		Severity: alert.SeverityCritical,
		Source:   "audit",
		Message:  "audit entry lost for committed write",
		Fields: map[string]any{
			"operation":  op,
			"event_type": e.Type,
			"table":      e.TableName,
			"record_id":  e.RecordID,
			"error":      err.Error(),
		},
		At: time.Now().UTC(),
	})
	if alertErr != nil {
		p.logger.Warn("failed to deliver audit failure alert", "error", alertErr)
	}
}
