// search_repository.go implements SearchRepository: persistence for searches,
// including the compare-and-swap status update used by lifecycle transitions.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/matter-platform/search-core/internal/db"
	"github.com/matter-platform/search-core/internal/db/models"
)

const searchColumns = `id, owner_user_id, status, parameters, version, created_at, updated_at, archived_at`

// SearchRepository handles search database operations. Every method runs inside
// the transaction carried by ctx when there is one.
type SearchRepository struct {
	db *sqlx.DB
}

// NewSearchRepository creates a new SearchRepository
func NewSearchRepository(db *sqlx.DB) *SearchRepository {
	return &SearchRepository{db: db}
}

// Create inserts a new search at version 1.
func (r *SearchRepository) Create(ctx context.Context, s *models.Search) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now
	s.Version = 1
	if s.Parameters == nil {
		s.Parameters = models.JSONMap{}
	}

	query := `
		INSERT INTO searches (id, owner_user_id, status, parameters, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := db.Conn(ctx, r.db).ExecContext(ctx, query,
		s.ID, s.OwnerUserID, s.Status, s.Parameters, s.Version, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create search: %w", err)
	}
	return nil
}

// GetByID returns a search by ID, or nil if not found.
func (r *SearchRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Search, error) {
	query := `SELECT ` + searchColumns + ` FROM searches WHERE id = $1`

	var s models.Search
	err := db.Conn(ctx, r.db).GetContext(ctx, &s, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get search: %w", err)
	}
	return &s, nil
}

// UpdateParameters replaces the parameters of a search still at expectedVersion.
// It returns ErrConflict when the version moved on.
func (r *SearchRepository) UpdateParameters(ctx context.Context, id uuid.UUID, params models.JSONMap, expectedVersion int) (*models.Search, error) {
	if params == nil {
		params = models.JSONMap{}
	}
	query := `
		UPDATE searches
		SET parameters = $2, updated_at = $3, version = version + 1
		WHERE id = $1 AND version = $4
		RETURNING ` + searchColumns

	var s models.Search
	err := db.Conn(ctx, r.db).GetContext(ctx, &s, query, id, params, time.Now().UTC(), expectedVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update search parameters: %w", err)
	}
	return &s, nil
}

// StatusChange describes one compare-and-swap status update.
type StatusChange struct {
	ID              uuid.UUID
	FromStatus      string
	ExpectedVersion int
	ToStatus        string
	At              time.Time
	// SetArchivedAt stamps archived_at with At.
	SetArchivedAt bool
}

// CompareAndSwapStatus moves a search to a new status only when both status and
// version still match what the caller read. Zero matched rows yield ErrConflict.
func (r *SearchRepository) CompareAndSwapStatus(ctx context.Context, c StatusChange) (*models.Search, error) {
	var archivedAt *time.Time
	if c.SetArchivedAt {
		archivedAt = &c.At
	}
	query := `
		UPDATE searches
		SET status = $1, updated_at = $2, version = version + 1, archived_at = COALESCE($3, archived_at)
		WHERE id = $4 AND status = $5 AND version = $6
		RETURNING ` + searchColumns

	var s models.Search
	err := db.Conn(ctx, r.db).GetContext(ctx, &s, query,
		c.ToStatus, c.At, archivedAt, c.ID, c.FromStatus, c.ExpectedVersion,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update search status: %w", err)
	}
	return &s, nil
}
