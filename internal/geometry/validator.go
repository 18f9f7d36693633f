package geometry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// ValidationResult is the outcome of Validate. Details is always populated.
type ValidationResult struct {
	IsValid bool     `json:"is_valid"`
	Errors  []string `json:"errors"`
	Details Details  `json:"details"`
}

// Validator performs structural, coordinate-system and type checks.
type Validator struct {
	topology TopologyLayer
	timeout  time.Duration
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithTopologyLayer overrides the topology layer used when checkTopology is set.
func WithTopologyLayer(layer TopologyLayer) ValidatorOption {
	return func(v *Validator) { v.topology = layer }
}

// WithTimeout bounds each validation. Zero disables the bound.
func WithTimeout(d time.Duration) ValidatorOption {
	return func(v *Validator) { v.timeout = d }
}

// NewValidator creates a Validator.
func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{topology: DefaultTopologyLayer}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks g in one pass and reports every violation found. An empty
// expected type skips the type check. The returned error is non-nil only for
// *ValidationTimeoutError.
func (v *Validator) Validate(ctx context.Context, g *Geometry, expected LocationType, checkTopology bool) (*ValidationResult, error) {
	if g == nil || g.Shape == nil {
		return &ValidationResult{IsValid: false, Errors: []string{"geometry is required"}}, nil
	}
	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	res := &ValidationResult{Details: describe(g), Errors: []string{}}

	if !IsSupported(g.SRID) {
		res.Errors = append(res.Errors, fmt.Sprintf("unsupported SRID %d (supported: %v)", g.SRID, SupportedSRIDs()))
	}

	structural, err := structuralErrors(ctx, g.Shape)
	if err != nil {
		return nil, v.timeoutError(err)
	}
	res.Errors = append(res.Errors, structural...)

	if len(structural) == 0 && isGeographic(g.SRID) {
		if bad := outOfBounds(g); bad != "" {
			res.Errors = append(res.Errors, bad)
		}
	}

	if msg := typeMismatch(g, expected); msg != "" {
		res.Errors = append(res.Errors, msg)
	}

	if checkTopology && len(structural) == 0 {
		if err := v.topology.Check(ctx, g.Shape); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, v.timeoutError(ctxErr)
			}
			res.Errors = append(res.Errors, err.Error())
		}
	}

	res.IsValid = len(res.Errors) == 0
	return res, nil
}

func (v *Validator) timeoutError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &ValidationTimeoutError{Timeout: v.timeout, Err: err}
	}
	return err
}

func typeMismatch(g *Geometry, expected LocationType) string {
	if expected == "" || expected == TypeKML {
		return ""
	}
	kinds, ok := allowedKinds[expected]
	if !ok {
		return fmt.Sprintf("unknown location type %q", expected)
	}
	kind := g.Shape.GeoJSONType()
	if slices.Contains(kinds, kind) {
		return ""
	}
	return fmt.Sprintf("type mismatch: location type %s requires %s, got %s", expected, strings.Join(kinds, " or "), kind)
}

func outOfBounds(g *Geometry) string {
	msg := ""
	eachPoint(g.Shape, func(p orb.Point) bool {
		if p[0] < -180 || p[0] > 180 {
			msg = fmt.Sprintf("longitude %g outside valid range [-180, 180]", p[0])
			return false
		}
		if p[1] < -90 || p[1] > 90 {
			msg = fmt.Sprintf("latitude %g outside valid range [-90, 90]", p[1])
			return false
		}
		return true
	})
	return msg
}
