// audit_log_repository.go implements AuditLogRepository: inserts into the
// partitioned audit_log table, compliance history reads, and the monthly
// partition DDL used by maintenance and the retention purge.
package repositories

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/matter-platform/search-core/internal/db"
	"github.com/matter-platform/search-core/internal/db/models"
)

const auditColumns = `id, event_type, table_name, record_id, old_snapshot, new_snapshot,
	acting_user_id, origin_address, client_id, session_timestamp, occurred_at, retention_policy`

// partitionName guards every identifier interpolated into partition DDL.
var partitionName = regexp.MustCompile(`^audit_log_y\d{4}m\d{2}$`)

// partitionBoundLayout is the literal format of partition range bounds.
const partitionBoundLayout = "2006-01-02 15:04:05-07"

// AuditLogRepository handles audit_log database operations
type AuditLogRepository struct {
	db *sqlx.DB
}

// NewAuditLogRepository creates a new AuditLogRepository
func NewAuditLogRepository(db *sqlx.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

// Insert writes one entry. A row whose month has no partition yields an error
// wrapping ErrNoPartition.
func (r *AuditLogRepository) Insert(ctx context.Context, e *models.AuditLogEntry) error {
	query := `
		INSERT INTO audit_log (` + auditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := db.Conn(ctx, r.db).ExecContext(ctx, query,
		e.ID,
		e.EventType,
		e.TableName,
		e.RecordID,
		e.OldSnapshot,
		e.NewSnapshot,
		e.ActingUserID,
		e.OriginAddress,
		e.ClientID,
		e.SessionTimestamp,
		e.OccurredAt,
		e.RetentionPolicy,
	)
	if isMissingPartition(err) {
		return fmt.Errorf("%w: %v", ErrNoPartition, err)
	}
	if err != nil {
		return fmt.Errorf("failed to insert audit log entry: %w", err)
	}
	return nil
}

// History returns the newest entries for one record, newest first.
func (r *AuditLogRepository) History(ctx context.Context, tableName, recordID string, limit int) ([]*models.AuditLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + auditColumns + `
		FROM audit_log
		WHERE table_name = $1 AND record_id = $2
		ORDER BY occurred_at DESC
		LIMIT $3`

	var out []*models.AuditLogEntry
	if err := db.Conn(ctx, r.db).SelectContext(ctx, &out, query, tableName, recordID, limit); err != nil {
		return nil, fmt.Errorf("failed to read audit history: %w", err)
	}
	return out, nil
}

// ---- Partitions ------------------------------------------------------------

// EnsurePartition creates the partition covering [from, to) unless it exists.
// created reports whether this call created it.
func (r *AuditLogRepository) EnsurePartition(ctx context.Context, name string, from, to time.Time) (created bool, err error) {
	if !partitionName.MatchString(name) {
		return false, fmt.Errorf("invalid audit partition name %q", name)
	}

	var exists bool
	if err := db.Conn(ctx, r.db).GetContext(ctx, &exists, `SELECT to_regclass($1) IS NOT NULL`, name); err != nil {
		return false, fmt.Errorf("failed to look up partition %s: %w", name, err)
	}
	if exists {
		return false, nil
	}

	ddl := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s PARTITION OF audit_log FOR VALUES FROM ('%s') TO ('%s')`,
		pq.QuoteIdentifier(name),
		from.UTC().Format(partitionBoundLayout),
		to.UTC().Format(partitionBoundLayout),
	)
	if _, err := db.Conn(ctx, r.db).ExecContext(ctx, ddl); err != nil {
		if isDuplicateObject(err) {
			// A concurrent maintainer created it first.
			return false, nil
		}
		return false, fmt.Errorf("failed to create partition %s: %w", name, err)
	}
	return true, nil
}

// ListPartitions returns the names of every audit_log partition, oldest first.
func (r *AuditLogRepository) ListPartitions(ctx context.Context) ([]string, error) {
	query := `
		SELECT c.relname
		FROM pg_inherits i
		JOIN pg_class c ON c.oid = i.inhrelid
		JOIN pg_class p ON p.oid = i.inhparent
		WHERE p.relname = 'audit_log'
		ORDER BY c.relname
	`
	var names []string
	if err := db.Conn(ctx, r.db).SelectContext(ctx, &names, query); err != nil {
		return nil, fmt.Errorf("failed to list audit partitions: %w", err)
	}
	return names, nil
}

// RetentionCutoff deletes rows of Policy older than Before.
type RetentionCutoff struct {
	Policy string
	Before time.Time
}

// PurgeResult is the outcome of purging one partition.
type PurgeResult struct {
	Deleted map[string]int64
	Dropped bool
}

// PurgePartition deletes expired rows from one partition in its own transaction.
// When droppable is set and the partition is empty afterwards it is dropped in
// the same transaction.
func (r *AuditLogRepository) PurgePartition(ctx context.Context, name string, cutoffs []RetentionCutoff, droppable bool) (*PurgeResult, error) {
	if !partitionName.MatchString(name) {
		return nil, fmt.Errorf("invalid audit partition name %q", name)
	}
	table := pq.QuoteIdentifier(name)
	result := &PurgeResult{Deleted: make(map[string]int64, len(cutoffs))}

	err := db.RunInTx(ctx, r.db, func(ctx context.Context) error {
		conn := db.Conn(ctx, r.db)
		for _, c := range cutoffs {
			res, err := conn.ExecContext(ctx,
				`DELETE FROM `+table+` WHERE retention_policy = $1 AND occurred_at < $2`, c.Policy, c.Before)
			if err != nil {
				return fmt.Errorf("failed to purge %s entries from %s: %w", c.Policy, name, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to read affected rows: %w", err)
			}
			result.Deleted[c.Policy] = n
		}

		if !droppable {
			return nil
		}
		// Block concurrent inserts until commit so the emptiness check still
		// holds when the table is dropped.
		if _, err := conn.ExecContext(ctx, `LOCK TABLE `+table+` IN ACCESS EXCLUSIVE MODE`); err != nil {
			return fmt.Errorf("failed to lock partition %s: %w", name, err)
		}
		var remaining bool
		if err := conn.GetContext(ctx, &remaining, `SELECT EXISTS (SELECT 1 FROM `+table+`)`); err != nil {
			return fmt.Errorf("failed to check partition %s: %w", name, err)
		}
		if remaining {
			return nil
		}
		if _, err := conn.ExecContext(ctx, `DROP TABLE `+table); err != nil {
			return fmt.Errorf("failed to drop partition %s: %w", name, err)
		}
		result.Dropped = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
