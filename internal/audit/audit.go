// Package audit records the immutable trail of governed mutations. Every entry is
// tagged with a retention tier, redacted before it is written, and lands in the
// monthly audit_log partition of its timestamp. Partition maintenance and the
// retention purge live here too; the SQL behind them is in the repositories package.
package audit

import (
	"slices"
	"time"
)

// Event types written to audit_log.event_type.
const (
	EventSearchCreated         = "SEARCH_CREATED"
	EventSearchUpdated         = "SEARCH_UPDATED"
	EventSearchDeleted         = "SEARCH_DELETED"
	EventLocationCreated       = "LOCATION_CREATED"
	EventLocationReplaced      = "LOCATION_REPLACED"
	EventAssetCreated          = "ASSET_CREATED"
	EventAssetUpdated          = "ASSET_UPDATED"
	EventRequirementCreated    = "REQUIREMENT_CREATED"
	EventRequirementUpdated    = "REQUIREMENT_UPDATED"
	EventSecurity              = "SECURITY_EVENT"
	EventSchemaVersionRecorded = "SCHEMA_VERSION_RECORDED"
)

// Policy is a retention tier.
type Policy string

const (
	PolicyStandard  Policy = "standard"
	PolicySensitive Policy = "sensitive"
	PolicyExtended  Policy = "extended"
)

// Policies returns every tier, shortest window first.
func Policies() []Policy {
	return []Policy{PolicyStandard, PolicySensitive, PolicyExtended}
}

var windows = map[Policy]time.Duration{
	PolicyStandard:  730 * 24 * time.Hour,
	PolicySensitive: 1825 * 24 * time.Hour,
	PolicyExtended:  3650 * 24 * time.Hour,
}

// Window is how long entries of p are kept.
func Window(p Policy) time.Duration {
	return windows[p]
}

var (
	sensitiveTables = []string{"users", "credentials", "api_keys", "user_identities"}
	governedTables  = []string{"searches", "locations", "assets", "requirements", "schema_versions"}
)

// PolicyFor picks the retention tier for an event. Tables without a tier rule
// yield *RetentionPolicyError.
func PolicyFor(eventType, tableName string) (Policy, error) {
	switch {
	case eventType == EventSecurity:
		return PolicyExtended, nil
	case slices.Contains(sensitiveTables, tableName):
		return PolicySensitive, nil
	case slices.Contains(governedTables, tableName):
		return PolicyStandard, nil
	}
	return "", &RetentionPolicyError{EventType: eventType, TableName: tableName}
}

// Session is the request context an actor acted from.
type Session struct {
	OriginAddress string
	ClientID      string
	Timestamp     time.Time
}

// Actor identifies who performed a mutation. The zero Actor is a system action.
type Actor struct {
	UserID  string
	Session Session
}

// Event is one auditable mutation. Old and New are snapshots taken with Snapshot;
// either may be nil.
type Event struct {
	Type       string
	TableName  string
	RecordID   string
	Old        map[string]any
	New        map[string]any
	Actor      Actor
	OccurredAt time.Time
}
