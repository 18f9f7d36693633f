// Package models - search.go defines the Search aggregate root together with the
// locations, assets and requirements it owns.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Search is a satellite-asset search request. Status changes only through the
// lifecycle transition path; Version increments on every write.
type Search struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	OwnerUserID string     `json:"owner_user_id" db:"owner_user_id"`
	Status      string     `json:"status" db:"status"`
	Parameters  JSONMap    `json:"parameters" db:"parameters"`
	Version     int        `json:"version" db:"version"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
	ArchivedAt  *time.Time `json:"archived_at,omitempty" db:"archived_at"`
}

// Location is a geometry attached to a search. Locations are replaced, never updated.
type Location struct {
	ID          uuid.UUID `json:"id" db:"id"`
	SearchID    uuid.UUID `json:"search_id" db:"search_id"`
	Coordinates GeoJSON   `json:"coordinates" db:"coordinates"`
	SRID        int       `json:"srid" db:"srid"`
	Type        string    `json:"type" db:"type"` // area | point | path | kml
	AreaKm2     *float64  `json:"area_km2,omitempty" db:"area_km2"`
	Metadata    JSONMap   `json:"metadata" db:"metadata"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Asset is an observation target of a search.
type Asset struct {
	ID         uuid.UUID `json:"id" db:"id"`
	SearchID   uuid.UUID `json:"search_id" db:"search_id"`
	Name       string    `json:"name" db:"name"`
	Type       string    `json:"type" db:"type"`
	Properties JSONMap   `json:"properties" db:"properties"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// Requirement is a measurable constraint on an asset.
type Requirement struct {
	ID        uuid.UUID `json:"id" db:"id"`
	AssetID   uuid.UUID `json:"asset_id" db:"asset_id"`
	Parameter string    `json:"parameter" db:"parameter"`
	Value     float64   `json:"value" db:"value"`
	Unit      string    `json:"unit" db:"unit"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
