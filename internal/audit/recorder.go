package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/matter-platform/search-core/internal/db/models"
	"github.com/matter-platform/search-core/internal/db/repositories"
)

// Store persists audit entries. *repositories.AuditLogRepository implements it.
type Store interface {
	Insert(ctx context.Context, e *models.AuditLogEntry) error
}

// Recorder turns events into redacted, policy-tagged audit rows.
type Recorder struct {
	store Store
	now   func() time.Time
}

// NewRecorder creates a Recorder writing to store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

// RecordEvent writes one entry for e and returns it. The write joins the
// transaction carried by ctx, if any. Every failure is returned; deciding whether
// a failure may be swallowed is the caller's business.
func (r *Recorder) RecordEvent(ctx context.Context, e Event) (*models.AuditLogEntry, error) {
	if e.Type == "" || e.TableName == "" || e.RecordID == "" {
		return nil, fmt.Errorf("audit event requires type, table name and record id")
	}
	policy, err := PolicyFor(e.Type, e.TableName)
	if err != nil {
		return nil, err
	}

	oldSnap, err := redactSnapshot(e.Old)
	if err != nil {
		return nil, err
	}
	newSnap, err := redactSnapshot(e.New)
	if err != nil {
		return nil, err
	}

	at := e.OccurredAt
	if at.IsZero() {
		at = r.now()
	}
	entry := &models.AuditLogEntry{
		ID:               uuid.New(),
		EventType:        e.Type,
		TableName:        e.TableName,
		RecordID:         e.RecordID,
		OldSnapshot:      oldSnap,
		NewSnapshot:      newSnap,
		ActingUserID:     optional(e.Actor.UserID),
		OriginAddress:    optional(e.Actor.Session.OriginAddress),
		ClientID:         optional(e.Actor.Session.ClientID),
		SessionTimestamp: optionalTime(e.Actor.Session.Timestamp),
		OccurredAt:       at.UTC(),
		RetentionPolicy:  string(policy),
	}

	if err := r.store.Insert(ctx, entry); err != nil {
		writeErr := &AuditWriteError{EventType: e.Type, TableName: e.TableName, RecordID: e.RecordID, Err: err}
		if errors.Is(err, repositories.ErrNoPartition) {
			writeErr.Partition = PartitionName(entry.OccurredAt)
		}
		return nil, writeErr
	}
	return entry, nil
}

// redactSnapshot normalises m through its JSON encoding before redacting, so
// typed containers such as map[string]string or []string are walked too.
func redactSnapshot(m map[string]any) (map[string]any, error) {
	if m == nil {
		return nil, nil
	}
	canonical, err := Snapshot(m)
	if err != nil {
		return nil, err
	}
	return Redact(canonical), nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	t = t.UTC()
	return &t
}
