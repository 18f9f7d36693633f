// schema_version_repository.go implements SchemaVersionRepository, the write-once
// ledger of applied schema versions.
package repositories

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/matter-platform/search-core/internal/db"
	"github.com/matter-platform/search-core/internal/db/models"
)

// SchemaVersionRepository handles schema_versions database operations
type SchemaVersionRepository struct {
	db *sqlx.DB
}

// NewSchemaVersionRepository creates a new SchemaVersionRepository
func NewSchemaVersionRepository(db *sqlx.DB) *SchemaVersionRepository {
	return &SchemaVersionRepository{db: db}
}

// Insert records a version. A second insert of the same version returns
// ErrDuplicateVersion.
func (r *SchemaVersionRepository) Insert(ctx context.Context, v *models.SchemaVersion) error {
	query := `
		INSERT INTO schema_versions (version, description, applied_at, applied_by)
		VALUES ($1, $2, $3, $4)
	`
	_, err := db.Conn(ctx, r.db).ExecContext(ctx, query, v.Version, v.Description, v.AppliedAt, v.AppliedBy)
	if isUniqueViolation(err) {
		return ErrDuplicateVersion
	}
	if err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return nil
}

// LockForAppend serialises appends to the ledger until the surrounding
// transaction ends, so the ordering check that precedes Insert cannot race a
// concurrent writer. It must run inside a transaction carried by ctx.
func (r *SchemaVersionRepository) LockForAppend(ctx context.Context) error {
	if _, ok := db.TxFrom(ctx); !ok {
		return fmt.Errorf("locking schema_versions requires a transaction")
	}
	if _, err := db.Conn(ctx, r.db).ExecContext(ctx, `LOCK TABLE schema_versions IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return fmt.Errorf("failed to lock schema_versions: %w", err)
	}
	return nil
}

// List returns every recorded version, oldest first.
func (r *SchemaVersionRepository) List(ctx context.Context) ([]*models.SchemaVersion, error) {
	query := `SELECT version, description, applied_at, applied_by FROM schema_versions ORDER BY applied_at, version`

	var out []*models.SchemaVersion
	if err := db.Conn(ctx, r.db).SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("failed to list schema versions: %w", err)
	}
	return out, nil
}
