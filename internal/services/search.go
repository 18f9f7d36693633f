package services

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/matter-platform/search-core/internal/audit"
	"github.com/matter-platform/search-core/internal/db/models"
	"github.com/matter-platform/search-core/internal/db/repositories"
	"github.com/matter-platform/search-core/internal/geometry"
	"github.com/matter-platform/search-core/internal/lifecycle"
)

// LocationInput is a location to attach to a search.
type LocationInput struct {
	Geometry *geometry.Geometry
	Type     string
	Metadata map[string]any
}

// RequirementInput is a measurable constraint on an asset.
type RequirementInput struct {
	Parameter string
	Value     float64
	Unit      string
}

// AssetInput is an observation target, optionally with its requirements.
type AssetInput struct {
	Name         string
	Type         string
	Properties   map[string]any
	Requirements []RequirementInput
}

// CreateSearchInput is a new search with co-submitted children.
type CreateSearchInput struct {
	OwnerUserID string
	Parameters  map[string]any
	Locations   []LocationInput
	Assets      []AssetInput
}

// SearchDetail is a search with the records it owns.
type SearchDetail struct {
	Search    *models.Search     `json:"search"`
	Locations []*models.Location `json:"locations"`
	Assets    []*models.Asset    `json:"assets"`
}

// CreateSearch creates a draft search with its locations and assets. Every
// location is validated first; one invalid location rejects the whole request.
func (c *Core) CreateSearch(ctx context.Context, in CreateSearchInput, actor audit.Actor) (*SearchDetail, error) {
	var prepared []*models.Location
	detail := &SearchDetail{}

	err := c.pipeline.Run(ctx, Mutation{
		Name: "create_search",
		Validate: func(ctx context.Context) error {
			if strings.TrimSpace(in.OwnerUserID) == "" {
				return fmt.Errorf("%w: owner_user_id is required", ErrInvalidInput)
			}
			for _, a := range in.Assets {
				if err := validateAsset(a); err != nil {
					return err
				}
			}
			var err error
			prepared, err = c.prepareLocations(ctx, in.Locations)
			return err
		},
		Persist: func(ctx context.Context) ([]audit.Event, error) {
			s := &models.Search{
				OwnerUserID: in.OwnerUserID,
				Status:      string(lifecycle.StatusDraft),
				Parameters:  in.Parameters,
			}
			if err := c.searches.Create(ctx, s); err != nil {
				return nil, err
			}
			detail.Search = s

			events, err := collect(nil, audit.EventSearchCreated, "searches", s.ID, nil, s, actor)
			if err != nil {
				return nil, err
			}
			locs, locEvents, err := c.insertLocations(ctx, s.ID, prepared, actor)
			if err != nil {
				return nil, err
			}
			detail.Locations = locs
			events = append(events, locEvents...)

			for _, a := range in.Assets {
				asset, assetEvents, err := c.insertAsset(ctx, s.ID, a, actor)
				if err != nil {
					return nil, err
				}
				detail.Assets = append(detail.Assets, asset)
				events = append(events, assetEvents...)
			}
			return events, nil
		},
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// GetSearch returns a search with its locations and assets.
func (c *Core) GetSearch(ctx context.Context, id uuid.UUID) (*SearchDetail, error) {
	s, err := c.loadSearch(ctx, id)
	if err != nil {
		return nil, err
	}
	locs, err := c.locations.ListBySearch(ctx, id)
	if err != nil {
		return nil, err
	}
	assets, err := c.assets.ListBySearch(ctx, id)
	if err != nil {
		return nil, err
	}
	return &SearchDetail{Search: s, Locations: locs, Assets: assets}, nil
}

// ListLocations returns the locations of a search.
func (c *Core) ListLocations(ctx context.Context, searchID uuid.UUID) ([]*models.Location, error) {
	if _, err := c.loadSearch(ctx, searchID); err != nil {
		return nil, err
	}
	return c.locations.ListBySearch(ctx, searchID)
}

// UpdateSearchParameters replaces the parameters of a search last read at
// expectedVersion. A stale version yields repositories.ErrConflict.
func (c *Core) UpdateSearchParameters(ctx context.Context, id uuid.UUID, params map[string]any, expectedVersion int, actor audit.Actor) (*models.Search, error) {
	var updated *models.Search
	err := c.pipeline.Run(ctx, Mutation{
		Name: "update_search_parameters",
		Persist: func(ctx context.Context) ([]audit.Event, error) {
			current, err := c.mutableSearch(ctx, id)
			if err != nil {
				return nil, err
			}
			updated, err = c.searches.UpdateParameters(ctx, id, params, expectedVersion)
			if err != nil {
				return nil, err
			}
			return collect(nil, audit.EventSearchUpdated, "searches", id, current, updated, actor)
		},
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// AddLocations attaches validated locations to an existing search.
func (c *Core) AddLocations(ctx context.Context, searchID uuid.UUID, inputs []LocationInput, actor audit.Actor) ([]*models.Location, error) {
	var prepared, created []*models.Location
	err := c.pipeline.Run(ctx, Mutation{
		Name: "add_locations",
		Validate: func(ctx context.Context) error {
			if len(inputs) == 0 {
				return fmt.Errorf("%w: at least one location is required", ErrInvalidInput)
			}
			var err error
			prepared, err = c.prepareLocations(ctx, inputs)
			return err
		},
		Persist: func(ctx context.Context) ([]audit.Event, error) {
			if _, err := c.mutableSearch(ctx, searchID); err != nil {
				return nil, err
			}
			locs, events, err := c.insertLocations(ctx, searchID, prepared, actor)
			created = locs
			return events, err
		},
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ReplaceLocation swaps locationID for a new validated location. Locations are
// never updated in place.
func (c *Core) ReplaceLocation(ctx context.Context, searchID, locationID uuid.UUID, in LocationInput, actor audit.Actor) (*models.Location, error) {
	var replacement *models.Location
	err := c.pipeline.Run(ctx, Mutation{
		Name: "replace_location",
		Validate: func(ctx context.Context) error {
			prepared, err := c.prepareLocations(ctx, []LocationInput{in})
			if err != nil {
				return err
			}
			replacement = prepared[0]
			replacement.SearchID = searchID
			return nil
		},
		Persist: func(ctx context.Context) ([]audit.Event, error) {
			if _, err := c.mutableSearch(ctx, searchID); err != nil {
				return nil, err
			}
			old, err := c.locations.GetByID(ctx, locationID)
			if err != nil {
				return nil, err
			}
			if old == nil || old.SearchID != searchID {
				return nil, fmt.Errorf("location %s: %w", locationID, repositories.ErrNotFound)
			}
			if err := c.locations.Replace(ctx, locationID, replacement); err != nil {
				return nil, err
			}
			return collect(nil, audit.EventLocationReplaced, "locations", replacement.ID, old, replacement, actor)
		},
	})
	if err != nil {
		return nil, err
	}
	return replacement, nil
}

// AddAsset attaches an asset and its requirements to a search.
func (c *Core) AddAsset(ctx context.Context, searchID uuid.UUID, in AssetInput, actor audit.Actor) (*models.Asset, error) {
	var created *models.Asset
	err := c.pipeline.Run(ctx, Mutation{
		Name:     "add_asset",
		Validate: func(context.Context) error { return validateAsset(in) },
		Persist: func(ctx context.Context) ([]audit.Event, error) {
			if _, err := c.mutableSearch(ctx, searchID); err != nil {
				return nil, err
			}
			asset, events, err := c.insertAsset(ctx, searchID, in, actor)
			created = asset
			return events, err
		},
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateAsset overwrites the name, type and properties of an asset. Requirements
// are managed separately.
func (c *Core) UpdateAsset(ctx context.Context, assetID uuid.UUID, in AssetInput, actor audit.Actor) (*models.Asset, error) {
	var updated *models.Asset
	err := c.pipeline.Run(ctx, Mutation{
		Name:     "update_asset",
		Validate: func(context.Context) error { return validateAsset(AssetInput{Name: in.Name, Type: in.Type}) },
		Persist: func(ctx context.Context) ([]audit.Event, error) {
			current, err := c.mutableAsset(ctx, assetID)
			if err != nil {
				return nil, err
			}
			next := *current
			next.Name = in.Name
			next.Type = in.Type
			next.Properties = in.Properties
			if err := c.assets.Update(ctx, &next); err != nil {
				return nil, err
			}
			updated = &next
			return collect(nil, audit.EventAssetUpdated, "assets", assetID, current, updated, actor)
		},
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// AddRequirement attaches a requirement to an asset.
func (c *Core) AddRequirement(ctx context.Context, assetID uuid.UUID, in RequirementInput, actor audit.Actor) (*models.Requirement, error) {
	var created *models.Requirement
	err := c.pipeline.Run(ctx, Mutation{
		Name:     "add_requirement",
		Validate: func(context.Context) error { return validateRequirement(in) },
		Persist: func(ctx context.Context) ([]audit.Event, error) {
			if _, err := c.mutableAsset(ctx, assetID); err != nil {
				return nil, err
			}
			created = &models.Requirement{AssetID: assetID, Parameter: in.Parameter, Value: in.Value, Unit: in.Unit}
			if err := c.assets.CreateRequirement(ctx, created); err != nil {
				return nil, err
			}
			return collect(nil, audit.EventRequirementCreated, "requirements", created.ID, nil, created, actor)
		},
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateRequirement overwrites a requirement.
func (c *Core) UpdateRequirement(ctx context.Context, requirementID uuid.UUID, in RequirementInput, actor audit.Actor) (*models.Requirement, error) {
	var updated *models.Requirement
	err := c.pipeline.Run(ctx, Mutation{
		Name:     "update_requirement",
		Validate: func(context.Context) error { return validateRequirement(in) },
		Persist: func(ctx context.Context) ([]audit.Event, error) {
			current, err := c.assets.GetRequirement(ctx, requirementID)
			if err != nil {
				return nil, err
			}
			if current == nil {
				return nil, fmt.Errorf("requirement %s: %w", requirementID, repositories.ErrNotFound)
			}
			if _, err := c.mutableAsset(ctx, current.AssetID); err != nil {
				return nil, err
			}
			next := *current
			next.Parameter = in.Parameter
			next.Value = in.Value
			next.Unit = in.Unit
			if err := c.assets.UpdateRequirement(ctx, &next); err != nil {
				return nil, err
			}
			updated = &next
			return collect(nil, audit.EventRequirementUpdated, "requirements", requirementID, current, updated, actor)
		},
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ---- helpers -----------------------------------------------------------------

func (c *Core) loadSearch(ctx context.Context, id uuid.UUID) (*models.Search, error) {
	s, err := c.searches.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("search %s: %w", id, repositories.ErrNotFound)
	}
	return s, nil
}

// mutableSearch loads a search that still accepts content writes.
func (c *Core) mutableSearch(ctx context.Context, id uuid.UUID) (*models.Search, error) {
	s, err := c.loadSearch(ctx, id)
	if err != nil {
		return nil, err
	}
	if lifecycle.Terminal(lifecycle.Status(s.Status)) {
		return nil, fmt.Errorf("search %s is %s: %w", id, s.Status, ErrSearchNotMutable)
	}
	return s, nil
}

func (c *Core) mutableAsset(ctx context.Context, id uuid.UUID) (*models.Asset, error) {
	a, err := c.assets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("asset %s: %w", id, repositories.ErrNotFound)
	}
	if _, err := c.mutableSearch(ctx, a.SearchID); err != nil {
		return nil, err
	}
	return a, nil
}

// prepareLocations validates every input and converts it to a row. It fails on
// the first invalid location, reporting its index.
func (c *Core) prepareLocations(ctx context.Context, inputs []LocationInput) ([]*models.Location, error) {
	if c.maxLocations > 0 && len(inputs) > c.maxLocations {
		return nil, fmt.Errorf("%w: %d locations exceeds the limit of %d per request", ErrInvalidInput, len(inputs), c.maxLocations)
	}
	out := make([]*models.Location, 0, len(inputs))
	for i, in := range inputs {
		locType, err := geometry.ParseLocationType(in.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: location %d: %v", ErrInvalidInput, i, err)
		}
		res, err := c.ValidateGeometry(ctx, in.Geometry, locType, true)
		if err != nil {
			return nil, err
		}
		if !res.IsValid {
			return nil, &geometry.ValidationError{Errors: prefixed(i, res.Errors)}
		}

		loc := &models.Location{SRID: in.Geometry.SRID, Type: string(locType), Metadata: in.Metadata}
		if res.Details.Dimensions == 2 {
			area := res.Details.AreaKm2
			if c.maxAreaKm2 > 0 && area > c.maxAreaKm2 {
				return nil, &geometry.ValidationError{Errors: []string{
					fmt.Sprintf("location %d: area %.3f km² exceeds the maximum of %.0f km²", i, area, c.maxAreaKm2),
				}}
			}
			loc.AreaKm2 = &area
		}
		raw, err := in.Geometry.GeoJSON()
		if err != nil {
			return nil, fmt.Errorf("%w: location %d: %v", ErrInvalidInput, i, err)
		}
		loc.Coordinates = raw
		out = append(out, loc)
	}
	return out, nil
}

func prefixed(i int, errs []string) []string {
	out := make([]string, len(errs))
	for j, e := range errs {
		out[j] = fmt.Sprintf("location %d: %s", i, e)
	}
	return out
}

func (c *Core) insertLocations(ctx context.Context, searchID uuid.UUID, locs []*models.Location, actor audit.Actor) ([]*models.Location, []audit.Event, error) {
	var events []audit.Event
	for _, l := range locs {
		l.SearchID = searchID
		if err := c.locations.Create(ctx, l); err != nil {
			return nil, nil, err
		}
		var err error
		if events, err = collect(events, audit.EventLocationCreated, "locations", l.ID, nil, l, actor); err != nil {
			return nil, nil, err
		}
	}
	return locs, events, nil
}

func (c *Core) insertAsset(ctx context.Context, searchID uuid.UUID, in AssetInput, actor audit.Actor) (*models.Asset, []audit.Event, error) {
	a := &models.Asset{SearchID: searchID, Name: in.Name, Type: in.Type, Properties: in.Properties}
	if err := c.assets.Create(ctx, a); err != nil {
		return nil, nil, err
	}
	events, err := collect(nil, audit.EventAssetCreated, "assets", a.ID, nil, a, actor)
	if err != nil {
		return nil, nil, err
	}
	for _, r := range in.Requirements {
		req := &models.Requirement{AssetID: a.ID, Parameter: r.Parameter, Value: r.Value, Unit: r.Unit}
		if err := c.assets.CreateRequirement(ctx, req); err != nil {
			return nil, nil, err
		}
		if events, err = collect(events, audit.EventRequirementCreated, "requirements", req.ID, nil, req, actor); err != nil {
			return nil, nil, err
		}
	}
	return a, events, nil
}

// collect appends a change event for one record to events.
func collect(events []audit.Event, eventType, table string, id uuid.UUID, before, after any, actor audit.Actor) ([]audit.Event, error) {
	e, err := changeEvent(eventType, table, id.String(), before, after, actor)
	if err != nil {
		return nil, err
	}
	return append(events, e), nil
}

func validateAsset(in AssetInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: asset name is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Type) == "" {
		return fmt.Errorf("%w: asset type is required", ErrInvalidInput)
	}
	for _, r := range in.Requirements {
		if err := validateRequirement(r); err != nil {
			return err
		}
	}
	return nil
}

func validateRequirement(in RequirementInput) error {
	if strings.TrimSpace(in.Parameter) == "" {
		return fmt.Errorf("%w: requirement parameter is required", ErrInvalidInput)
	}
	if math.IsNaN(in.Value) || math.IsInf(in.Value, 0) || in.Value < 0 {
		return fmt.Errorf("%w: requirement %s value must be a non-negative number", ErrInvalidInput, in.Parameter)
	}
	return nil
}
