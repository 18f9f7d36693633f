package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/matter-platform/search-core/internal/audit"
	"github.com/matter-platform/search-core/internal/db/models"
	"github.com/matter-platform/search-core/internal/db/repositories"
	"github.com/matter-platform/search-core/internal/lifecycle"
	"github.com/matter-platform/search-core/internal/telemetry"
)

// TransitionSearch moves a search to target. The status change and its
// SEARCH_UPDATED audit entry commit together or not at all.
func (c *Core) TransitionSearch(ctx context.Context, searchID uuid.UUID, target lifecycle.Status, actor audit.Actor) (*models.Search, error) {
	return c.transition(ctx, searchID, target, actor, audit.EventSearchUpdated)
}

// DeleteSearch soft-deletes a search through the lifecycle.
func (c *Core) DeleteSearch(ctx context.Context, searchID uuid.UUID, actor audit.Actor) (*models.Search, error) {
	return c.transition(ctx, searchID, lifecycle.StatusDeleted, actor, audit.EventSearchDeleted)
}

func (c *Core) transition(ctx context.Context, searchID uuid.UUID, target lifecycle.Status, actor audit.Actor, eventType string) (*models.Search, error) {
	from := lifecycle.Status("unknown")
	var updated *models.Search

	err := c.pipeline.Run(ctx, Mutation{
		Name:      "transition_search",
		Mandatory: true,
		Persist: func(ctx context.Context) ([]audit.Event, error) {
			current, err := c.searches.GetByID(ctx, searchID)
			if err != nil {
				return nil, err
			}
			if current == nil {
				return nil, fmt.Errorf("search %s: %w", searchID, repositories.ErrNotFound)
			}
			from = lifecycle.Status(current.Status)
			if err := lifecycle.Validate(from, target); err != nil {
				return nil, err
			}

			at := c.now().UTC()
			updated, err = c.searches.CompareAndSwapStatus(ctx, repositories.StatusChange{
				ID:              searchID,
				FromStatus:      current.Status,
				ExpectedVersion: current.Version,
				ToStatus:        string(target),
				At:              at,
				SetArchivedAt:   target == lifecycle.StatusArchived,
			})
			if errors.Is(err, repositories.ErrConflict) {
				return nil, &lifecycle.ConcurrentModificationError{
					SearchID:        searchID.String(),
					ExpectedStatus:  from,
					ExpectedVersion: current.Version,
				}
			}
			if err != nil {
				return nil, err
			}

			event, err := changeEvent(eventType, "searches", searchID.String(), current, updated, actor)
			if err != nil {
				return nil, err
			}
			event.OccurredAt = at
			return []audit.Event{event}, nil
		},
	})

	telemetry.SearchTransitionsTotal.WithLabelValues(string(from), string(target), transitionResult(err)).Inc()
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func transitionResult(err error) string {
	var invalid *lifecycle.InvalidTransitionError
	var conflict *lifecycle.ConcurrentModificationError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &invalid):
		return "invalid"
	case errors.As(err, &conflict):
		return "conflict"
	}
	return "error"
}

// changeEvent builds an audit event with snapshots of before and after. Either
// may be nil.
func changeEvent(eventType, table, recordID string, before, after any, actor audit.Actor) (audit.Event, error) {
	oldSnap, err := audit.Snapshot(before)
	if err != nil {
		return audit.Event{}, err
	}
	newSnap, err := audit.Snapshot(after)
	if err != nil {
		return audit.Event{}, err
	}
	return audit.Event{
		Type:      eventType,
		TableName: table,
		RecordID:  recordID,
		Old:       oldSnap,
		New:       newSnap,
		Actor:     actor,
	}, nil
}
