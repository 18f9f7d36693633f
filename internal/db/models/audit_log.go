// Package models - audit_log.go defines the immutable audit trail row and the
// schema version ledger.
package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditLogEntry is one row of the partitioned audit_log table. Rows are never
// updated; they leave the table only through the retention purge.
type AuditLogEntry struct {
	ID               uuid.UUID  `json:"id" db:"id"`
	EventType        string     `json:"event_type" db:"event_type"`
	TableName        string     `json:"table_name" db:"table_name"`
	RecordID         string     `json:"record_id" db:"record_id"`
	OldSnapshot      JSONMap    `json:"old_snapshot,omitempty" db:"old_snapshot"`
	NewSnapshot      JSONMap    `json:"new_snapshot,omitempty" db:"new_snapshot"`
	ActingUserID     *string    `json:"acting_user_id,omitempty" db:"acting_user_id"` // nil for system actions
	OriginAddress    *string    `json:"origin_address,omitempty" db:"origin_address"`
	ClientID         *string    `json:"client_id,omitempty" db:"client_id"`
	SessionTimestamp *time.Time `json:"session_timestamp,omitempty" db:"session_timestamp"`
	OccurredAt       time.Time  `json:"occurred_at" db:"occurred_at"`
	RetentionPolicy  string     `json:"retention_policy" db:"retention_policy"` // standard | sensitive | extended
}

// SchemaVersion records one applied schema version. Versions are write-once.
type SchemaVersion struct {
	Version     string    `json:"version" db:"version"`
	Description string    `json:"description" db:"description"`
	AppliedAt   time.Time `json:"applied_at" db:"applied_at"`
	AppliedBy   string    `json:"applied_by" db:"applied_by"`
}
