package geometry

import (
	"fmt"
	"strings"
	"time"
)

// Transform phases reported by InvalidGeometryError.
const (
	PhasePreTransform  = "pre-transform"
	PhasePostTransform = "post-transform"
)

// ValidationError carries every violation found for a geometry that was rejected on write.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "geometry validation failed: " + strings.Join(e.Errors, "; ")
}

// InvalidGeometryError is returned by Transform when validation before or after
// re-projection fails.
type InvalidGeometryError struct {
	Phase  string
	Errors []string
}

func (e *InvalidGeometryError) Error() string {
	return fmt.Sprintf("invalid geometry (%s): %s", e.Phase, strings.Join(e.Errors, "; "))
}

// UnsupportedSRIDError is returned for coordinate systems outside the whitelist.
type UnsupportedSRIDError struct {
	SRID      int
	Supported []int
}

func (e *UnsupportedSRIDError) Error() string {
	return fmt.Sprintf("unsupported SRID %d (supported: %v)", e.SRID, e.Supported)
}

// TransformationError is returned when re-projection itself fails.
type TransformationError struct {
	Source int
	Target int
	Reason string
	Err    error
}

func (e *TransformationError) Error() string {
	msg := fmt.Sprintf("transformation from EPSG:%d to EPSG:%d failed: %s", e.Source, e.Target, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransformationError) Unwrap() error {
	return e.Err
}

// ValidationTimeoutError is returned when validation exceeds its operation deadline.
type ValidationTimeoutError struct {
	Timeout time.Duration
	Err     error
}

func (e *ValidationTimeoutError) Error() string {
	if e.Timeout > 0 {
		return fmt.Sprintf("geometry validation timed out after %s", e.Timeout)
	}
	return "geometry validation timed out"
}

func (e *ValidationTimeoutError) Unwrap() error {
	return e.Err
}

func newUnsupportedSRID(srid int) *UnsupportedSRIDError {
	return &UnsupportedSRIDError{SRID: srid, Supported: SupportedSRIDs()}
}
