// errors.go defines the store-level sentinel errors shared by the repositories and
// the helpers that map PostgreSQL error codes onto them.
package repositories

import (
	"errors"
	"strings"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned by writes that target a row that does not exist.
	// Reads follow the package convention of returning (nil, nil).
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a guarded update matched no row because the
	// row changed since it was read.
	ErrConflict = errors.New("record was modified concurrently")
	// ErrDuplicateVersion is returned when a schema version is recorded twice.
	ErrDuplicateVersion = errors.New("schema version already recorded")
	// ErrNoPartition is returned when an audit row falls in a month without a partition.
	ErrNoPartition = errors.New("no audit_log partition for row")
)

// isUniqueViolation reports a PostgreSQL unique_violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// isMissingPartition reports the check_violation PostgreSQL raises when a row
// routes to no partition of a partitioned table.
func isMissingPartition(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23514" && strings.Contains(pqErr.Message, "no partition")
	}
	return false
}

// isDuplicateObject reports the duplicate_table error, or the catalog
// unique_violation, that a racing CREATE TABLE IF NOT EXISTS can raise.
func isDuplicateObject(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "42P07" || pqErr.Code == "23505"
	}
	return false
}
