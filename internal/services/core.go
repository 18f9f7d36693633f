package services

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/matter-platform/search-core/internal/alert"
	"github.com/matter-platform/search-core/internal/audit"
	"github.com/matter-platform/search-core/internal/config"
	"github.com/matter-platform/search-core/internal/db/models"
	"github.com/matter-platform/search-core/internal/db/repositories"
	"github.com/matter-platform/search-core/internal/geometry"
	"github.com/matter-platform/search-core/internal/telemetry"
)

// Core is the service boundary of the search integrity core.
type Core struct {
	searches  *repositories.SearchRepository
	locations *repositories.LocationRepository
	assets    *repositories.AssetRepository
	versions  *repositories.SchemaVersionRepository
	auditLog  *repositories.AuditLogRepository

	validator   *geometry.Validator
	transformer *geometry.Transformer
	recorder    *audit.Recorder
	maintainer  *audit.Maintainer
	pipeline    *Pipeline

	maxAreaKm2   float64
	maxLocations int
	now          func() time.Time
}

type coreOptions struct {
	cache   geometry.Cache
	alerter alert.Alerter
	now     func() time.Time
}

// Option configures a Core.
type Option func(*coreOptions)

// WithTransformCache caches coordinate transforms.
func WithTransformCache(c geometry.Cache) Option {
	return func(o *coreOptions) { o.cache = c }
}

// WithAlerter sets the sink for best-effort audit failures.
func WithAlerter(a alert.Alerter) Option {
	return func(o *coreOptions) { o.alerter = a }
}

// WithClock replaces time.Now for transitions and retention cutoffs.
func WithClock(now func() time.Time) Option {
	return func(o *coreOptions) { o.now = now }
}

// NewCore wires repositories, the geometry engine and the audit subsystem on database.
func NewCore(database *sqlx.DB, geomCfg config.GeometryConfig, auditCfg config.AuditConfig, opts ...Option) *Core {
	o := coreOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	auditLog := repositories.NewAuditLogRepository(database)
	validator := geometry.NewValidator(
		geometry.WithTimeout(geomCfg.OperationTimeout),
		geometry.WithTopologyLayer(geometry.TopologyLayer{Name: geomCfg.TopologyLayer, Tolerance: geomCfg.TopologyTolerance}),
	)
	transformOpts := []geometry.TransformerOption{geometry.WithTransformTimeout(geomCfg.OperationTimeout)}
	if o.cache != nil {
		transformOpts = append(transformOpts, geometry.WithCache(o.cache))
	}
	recorder := audit.NewRecorder(auditLog)

	return &Core{
		searches:     repositories.NewSearchRepository(database),
		locations:    repositories.NewLocationRepository(database),
		assets:       repositories.NewAssetRepository(database),
		versions:     repositories.NewSchemaVersionRepository(database),
		auditLog:     auditLog,
		validator:    validator,
		transformer:  geometry.NewTransformer(validator, transformOpts...),
		recorder:     recorder,
		maintainer:   audit.NewMaintainer(auditLog, auditCfg.MonthsAhead, audit.WithClock(o.now)),
		pipeline:     NewPipeline(SQLTxRunner{DB: database}, recorder, o.alerter),
		maxAreaKm2:   geomCfg.MaxAreaKm2,
		maxLocations: geomCfg.MaxLocationsPerRequest,
		now:          o.now,
	}
}

// ValidateGeometry checks g against the coordinate-system whitelist, structural
// rules and the declared location type.
func (c *Core) ValidateGeometry(ctx context.Context, g *geometry.Geometry, expected geometry.LocationType, checkTopology bool) (*geometry.ValidationResult, error) {
	defer telemetry.ObserveGeometryOp("validate", time.Now())

	res, err := c.validator.Validate(ctx, g, expected, checkTopology)
	var timeout *geometry.ValidationTimeoutError
	switch {
	case errors.As(err, &timeout):
		telemetry.GeometryValidationsTotal.WithLabelValues("timeout").Inc()
	case err != nil:
		telemetry.GeometryValidationsTotal.WithLabelValues("error").Inc()
	case res.IsValid:
		telemetry.GeometryValidationsTotal.WithLabelValues("valid").Inc()
	default:
		telemetry.GeometryValidationsTotal.WithLabelValues("invalid").Inc()
	}
	return res, err
}

// TransformCoordinates re-projects g from source to target.
func (c *Core) TransformCoordinates(ctx context.Context, g *geometry.Geometry, source, target int, validate bool) (*geometry.TransformResult, error) {
	defer telemetry.ObserveGeometryOp("transform", time.Now())
	return c.transformer.Transform(ctx, g, source, target, validate)
}

// RecordAuditEvent writes one audit entry outside any governed mutation, for
// example a security event raised by a caller. Failures are returned.
func (c *Core) RecordAuditEvent(ctx context.Context, e audit.Event) error {
	if _, err := c.recorder.RecordEvent(ctx, e); err != nil {
		telemetry.AuditWriteFailuresTotal.WithLabelValues(e.TableName, "direct").Inc()
		return err
	}
	return nil
}

// AuditHistory returns the newest audit entries for one record.
func (c *Core) AuditHistory(ctx context.Context, tableName, recordID string, limit int) ([]*models.AuditLogEntry, error) {
	return c.auditLog.History(ctx, tableName, recordID, limit)
}
