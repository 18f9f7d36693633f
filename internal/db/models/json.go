// Package models - json.go defines the JSONB column types shared by the search models.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONMap is a JSONB object column. A nil map is stored as SQL NULL.
type JSONMap map[string]any

// Value implements driver.Valuer
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON column: %w", err)
	}
	return b, nil
}

// Scan implements sql.Scanner
func (m *JSONMap) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONMap", src)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("failed to unmarshal JSON column: %w", err)
	}
	*m = out
	return nil
}

// GeoJSON is a raw GeoJSON geometry object stored in a JSONB column.
type GeoJSON []byte

// Value implements driver.Valuer
func (g GeoJSON) Value() (driver.Value, error) {
	if len(g) == 0 {
		return nil, nil
	}
	if !json.Valid(g) {
		return nil, fmt.Errorf("invalid GeoJSON payload")
	}
	return []byte(g), nil
}

// Scan implements sql.Scanner
func (g *GeoJSON) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*g = nil
	case []byte:
		*g = append(GeoJSON(nil), v...)
	case string:
		*g = GeoJSON(v)
	default:
		return fmt.Errorf("cannot scan %T into GeoJSON", src)
	}
	return nil
}

// MarshalJSON embeds the geometry as-is.
func (g GeoJSON) MarshalJSON() ([]byte, error) {
	if len(g) == 0 {
		return []byte("null"), nil
	}
	return g, nil
}

// UnmarshalJSON keeps a copy of the raw geometry.
func (g *GeoJSON) UnmarshalJSON(data []byte) error {
	*g = append(GeoJSON(nil), data...)
	return nil
}
