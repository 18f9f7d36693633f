// location_repository.go implements LocationRepository. Locations are immutable:
// a replacement deletes the old row and inserts a new one in the caller's transaction.
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

const locationColumns = `id, search_id, coordinates, srid, type, area_km2, metadata, created_at`

// LocationRepository handles location database operations
type LocationRepository struct {
	db *sqlx.DB
}

// NewLocationRepository creates a new LocationRepository
func NewLocationRepository(db *sqlx.DB) *LocationRepository {
	return &LocationRepository{db: db}
}

// Create inserts a location.
func (r *LocationRepository) Create(ctx context.Context, l *models.Location) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	l.CreatedAt = time.Now().UTC()
	if l.Metadata == nil {
		l.Metadata = models.JSONMap{}
	}

	query := `
		INSERT INTO locations (id, search_id, coordinates, srid, type, area_km2, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := db.Conn(ctx, r.db).ExecContext(ctx, query,
		l.ID, l.SearchID, l.Coordinates, l.SRID, l.Type, l.AreaKm2, l.Metadata, l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create location: %w", err)
	}
	return nil
}

// GetByID returns a location by ID, or nil if not found.
func (r *LocationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations WHERE id = $1`

	var l models.Location
	err := db.Conn(ctx, r.db).GetContext(ctx, &l, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get location: %w", err)
	}
	return &l, nil
}

// ListBySearch returns the locations of a search in creation order.
func (r *LocationRepository) ListBySearch(ctx context.Context, searchID uuid.UUID) ([]*models.Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations WHERE search_id = $1 ORDER BY created_at, id`

	var out []*models.Location
	if err := db.Conn(ctx, r.db).SelectContext(ctx, &out, query, searchID); err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	return out, nil
}

// Replace deletes oldID and inserts replacement under the same search. It returns
// ErrNotFound when oldID does not belong to the search. Call it inside a
// transaction so both statements commit together.
func (r *LocationRepository) Replace(ctx context.Context, oldID uuid.UUID, replacement *models.Location) error {
	res, err := db.Conn(ctx, r.db).ExecContext(ctx,
		`DELETE FROM locations WHERE id = $1 AND search_id = $2`, oldID, replacement.SearchID)
	if err != nil {
		return fmt.Errorf("failed to delete replaced location: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return r.Create(ctx, replacement)
}
