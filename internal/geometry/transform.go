package geometry

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/matter-platform/search-core/pkg/checksum"
)

// Cache stores transformed GeoJSON by key. Implementations must treat failures as
// misses; a cache problem never fails a transform.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
}

// TransformResult is the outcome of Transform.
type TransformResult struct {
	Geometry *Geometry `json:"-"`
	Details  Details   `json:"details"`
	Cached   bool      `json:"cached"`
}

// Transformer re-projects geometries between supported coordinate systems.
type Transformer struct {
	validator *Validator
	cache     Cache
	timeout   time.Duration
}

// TransformerOption configures a Transformer.
type TransformerOption func(*Transformer)

// WithCache enables result caching.
func WithCache(c Cache) TransformerOption {
	return func(t *Transformer) { t.cache = c }
}

// WithTransformTimeout bounds each transform. Zero disables the bound.
func WithTransformTimeout(d time.Duration) TransformerOption {
	return func(t *Transformer) { t.timeout = d }
}

// NewTransformer creates a Transformer that validates through v.
func NewTransformer(v *Validator, opts ...TransformerOption) *Transformer {
	if v == nil {
		v = NewValidator()
	}
	t := &Transformer{validator: v}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Transform converts g from source to target. The source argument wins over
// g.SRID. When validate is set the geometry is checked before and after
// re-projection.
func (t *Transformer) Transform(ctx context.Context, g *Geometry, source, target int, validate bool) (*TransformResult, error) {
	if !IsSupported(source) {
		return nil, newUnsupportedSRID(source)
	}
	if !IsSupported(target) {
		return nil, newUnsupportedSRID(target)
	}
	if g == nil || g.Shape == nil {
		return nil, &InvalidGeometryError{Phase: PhasePreTransform, Errors: []string{"geometry is required"}}
	}
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	input := &Geometry{Shape: g.Shape, SRID: source}

	var key string
	if t.cache != nil {
		if raw, err := input.GeoJSON(); err == nil {
			key = cacheKey(raw, source, target, validate)
			if hit, ok := t.cache.Get(ctx, key); ok {
				if out, err := Parse(hit, target); err == nil {
					return &TransformResult{Geometry: out, Details: describe(out), Cached: true}, nil
				}
			}
		}
	}

	if validate {
		if err := t.check(ctx, input, source, target, PhasePreTransform); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, &TransformationError{Source: source, Target: target, Reason: "operation deadline exceeded", Err: err}
	}

	shape := reproject(input.Shape, source, target)
	var bad orb.Point
	if !eachPoint(shape, func(p orb.Point) bool { bad = p; return finite(p) }) {
		return nil, &TransformationError{
			Source: source,
			Target: target,
			Reason: fmt.Sprintf("projection produced non-finite coordinates (%g, %g); input lies outside the domain of EPSG:%d", bad[0], bad[1], target),
		}
	}
	out := &Geometry{Shape: round(shape, target), SRID: target}

	if validate {
		if err := t.check(ctx, out, source, target, PhasePostTransform); err != nil {
			return nil, err
		}
	}

	if key != "" {
		if raw, err := out.GeoJSON(); err == nil {
			t.cache.Set(ctx, key, raw)
		}
	}
	return &TransformResult{Geometry: out, Details: describe(out)}, nil
}

func (t *Transformer) check(ctx context.Context, g *Geometry, source, target int, phase string) error {
	res, err := t.validator.Validate(ctx, g, "", false)
	if err != nil {
		return &TransformationError{Source: source, Target: target, Reason: phase + " validation did not complete", Err: err}
	}
	if !res.IsValid {
		return &InvalidGeometryError{Phase: phase, Errors: res.Errors}
	}
	return nil
}

func cacheKey(raw []byte, source, target int, validate bool) string {
	return "geom:tx:" + checksum.Fingerprint(
		raw,
		[]byte(strconv.Itoa(source)),
		[]byte(strconv.Itoa(target)),
		[]byte(strconv.FormatBool(validate)),
	)
}

// AreaKm2 returns the area of g in square kilometres, measured in EPSG:6933.
func AreaKm2(g *Geometry) (float64, error) {
	if g == nil || g.Shape == nil {
		return 0, fmt.Errorf("geometry is nil")
	}
	if !IsSupported(g.SRID) {
		return 0, newUnsupportedSRID(g.SRID)
	}
	shape := reproject(g.Shape, g.SRID, SRIDWorldEqualArea)
	if !eachPoint(shape, finite) {
		return 0, &TransformationError{Source: g.SRID, Target: SRIDWorldEqualArea, Reason: "projection produced non-finite coordinates"}
	}
	return math.Round(planar.Area(shape)/1e6*1000) / 1000, nil
}
