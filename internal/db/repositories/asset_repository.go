// asset_repository.go implements AssetRepository for assets and the requirements
// they own.
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

const (
	assetColumns       = `id, search_id, name, type, properties, created_at, updated_at`
	requirementColumns = `id, asset_id, parameter, value, unit, created_at, updated_at`
)

// AssetRepository handles asset and requirement database operations
type AssetRepository struct {
	db *sqlx.DB
}

// NewAssetRepository creates a new AssetRepository
func NewAssetRepository(db *sqlx.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

// ---- Assets ----------------------------------------------------------------

// Create inserts an asset.
func (r *AssetRepository) Create(ctx context.Context, a *models.Asset) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	if a.Properties == nil {
		a.Properties = models.JSONMap{}
	}

	query := `
		INSERT INTO assets (id, search_id, name, type, properties, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := db.Conn(ctx, r.db).ExecContext(ctx, query,
		a.ID, a.SearchID, a.Name, a.Type, a.Properties, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create asset: %w", err)
	}
	return nil
}

// GetByID returns an asset by ID, or nil if not found.
func (r *AssetRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE id = $1`

	var a models.Asset
	err := db.Conn(ctx, r.db).GetContext(ctx, &a, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}
	return &a, nil
}

// ListBySearch returns the assets of a search.
func (r *AssetRepository) ListBySearch(ctx context.Context, searchID uuid.UUID) ([]*models.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE search_id = $1 ORDER BY created_at, id`

	var out []*models.Asset
	if err := db.Conn(ctx, r.db).SelectContext(ctx, &out, query, searchID); err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	return out, nil
}

// Update overwrites name, type and properties. It returns ErrNotFound when the
// asset does not exist.
func (r *AssetRepository) Update(ctx context.Context, a *models.Asset) error {
	if a.Properties == nil {
		a.Properties = models.JSONMap{}
	}
	query := `
		UPDATE assets SET name = $2, type = $3, properties = $4, updated_at = $5
		WHERE id = $1
		RETURNING ` + assetColumns

	err := db.Conn(ctx, r.db).GetContext(ctx, a, query, a.ID, a.Name, a.Type, a.Properties, time.Now().UTC())
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update asset: %w", err)
	}
	return nil
}

// ---- Requirements ----------------------------------------------------------

// CreateRequirement inserts a requirement.
func (r *AssetRepository) CreateRequirement(ctx context.Context, req *models.Requirement) error {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	now := time.Now().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now

	query := `
		INSERT INTO requirements (id, asset_id, parameter, value, unit, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := db.Conn(ctx, r.db).ExecContext(ctx, query,
		req.ID, req.AssetID, req.Parameter, req.Value, req.Unit, req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create requirement: %w", err)
	}
	return nil
}

// GetRequirement returns a requirement by ID, or nil if not found.
func (r *AssetRepository) GetRequirement(ctx context.Context, id uuid.UUID) (*models.Requirement, error) {
	query := `SELECT ` + requirementColumns + ` FROM requirements WHERE id = $1`

	var req models.Requirement
	err := db.Conn(ctx, r.db).GetContext(ctx, &req, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get requirement: %w", err)
	}
	return &req, nil
}

// ListRequirements returns the requirements of an asset.
func (r *AssetRepository) ListRequirements(ctx context.Context, assetID uuid.UUID) ([]*models.Requirement, error) {
	query := `SELECT ` + requirementColumns + ` FROM requirements WHERE asset_id = $1 ORDER BY created_at, id`

	var out []*models.Requirement
	if err := db.Conn(ctx, r.db).SelectContext(ctx, &out, query, assetID); err != nil {
		return nil, fmt.Errorf("failed to list requirements: %w", err)
	}
	return out, nil
}

// UpdateRequirement overwrites value and unit. It returns ErrNotFound when the
// requirement does not exist.
func (r *AssetRepository) UpdateRequirement(ctx context.Context, req *models.Requirement) error {
	query := `
		UPDATE requirements SET parameter = $2, value = $3, unit = $4, updated_at = $5
		WHERE id = $1
		RETURNING ` + requirementColumns

	err := db.Conn(ctx, r.db).GetContext(ctx, req, query, req.ID, req.Parameter, req.Value, req.Unit, time.Now().UTC())
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update requirement: %w", err)
	}
	return nil
}
