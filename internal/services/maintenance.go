package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/matter-platform/search-core/internal/audit"
	"github.com/matter-platform/search-core/internal/db/models"
	"github.com/matter-platform/search-core/internal/db/repositories"
	"github.com/matter-platform/search-core/internal/validation"
)

// MaintainAuditPartitions creates any missing monthly audit partition from the
// current month to audit.months_ahead months out.
func (c *Core) MaintainAuditPartitions(ctx context.Context) error {
	created, err := c.maintainer.MaintainPartitions(ctx)
	if len(created) > 0 {
		slog.Info("created audit partitions", "partitions", created)
	}
	return err
}

// PurgeExpiredAuditEntries deletes audit entries past their retention window.
func (c *Core) PurgeExpiredAuditEntries(ctx context.Context) (*audit.PurgeReport, error) {
	report, err := c.maintainer.PurgeExpired(ctx)
	if report != nil && report.Buckets > 0 {
		slog.Info("purged expired audit entries",
			"buckets", report.Buckets, "deleted", report.Total(), "dropped", report.Dropped)
	}
	return report, err
}

// RecordSchemaVersion appends version to the schema ledger. The version must be
// well formed, new and greater than every recorded version.
func (c *Core) RecordSchemaVersion(ctx context.Context, version, description, appliedBy string) error {
	var recorded *models.SchemaVersion

	return c.pipeline.Run(ctx, Mutation{
		Name: "record_schema_version",
		Validate: func(context.Context) error {
			if err := validation.ValidateSchemaVersion(version); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidInput, err)
			}
			if strings.TrimSpace(appliedBy) == "" {
				return fmt.Errorf("%w: applied_by is required", ErrInvalidInput)
			}
			return nil
		},
		Persist: func(ctx context.Context) ([]audit.Event, error) {
			if err := c.versions.LockForAppend(ctx); err != nil {
				return nil, err
			}
			existing, err := c.versions.List(ctx)
			if err != nil {
				return nil, err
			}
			names := make([]string, len(existing))
			for i, v := range existing {
				names[i] = v.Version
			}
			if slices.Contains(names, version) {
				return nil, repositories.ErrDuplicateVersion
			}
			latest, err := validation.LatestVersion(names)
			if err != nil {
				return nil, err
			}
			if latest != "" {
				cmp, err := validation.CompareSemver(version, latest)
				if err != nil {
					return nil, err
				}
				if cmp <= 0 {
					return nil, fmt.Errorf("%w: %s <= %s", ErrVersionNotIncreasing, version, latest)
				}
			}

			recorded = &models.SchemaVersion{
				Version:     version,
				Description: description,
				AppliedAt:   c.now().UTC(),
				AppliedBy:   appliedBy,
			}
			if err := c.versions.Insert(ctx, recorded); err != nil {
				return nil, err
			}
			event, err := changeEvent(audit.EventSchemaVersionRecorded, "schema_versions", version, nil, recorded, audit.Actor{UserID: appliedBy})
			if err != nil {
				return nil, err
			}
			return []audit.Event{event}, nil
		},
	})
}
