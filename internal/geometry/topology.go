package geometry

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// TopologyLayer is a named snapping grid that stored locations must remain valid
// on. A geometry passes when its vertices, snapped to the layer tolerance, still
// form a structurally valid shape.
type TopologyLayer struct {
	Name      string
	Tolerance float64
}

// DefaultTopologyLayer is the layer used for search locations.
var DefaultTopologyLayer = TopologyLayer{Name: "search_locations_topo", Tolerance: 1e-6}

// Check returns a non-nil error describing why g does not fit the layer. A
// cancelled context is returned unchanged so callers can tell it apart.
func (l TopologyLayer) Check(ctx context.Context, g orb.Geometry) error {
	tol := l.Tolerance
	if tol <= 0 {
		tol = DefaultTopologyLayer.Tolerance
	}
	snapped := project.Geometry(orb.Clone(g), func(p orb.Point) orb.Point {
		return orb.Point{math.Round(p[0]/tol) * tol, math.Round(p[1]/tol) * tol}
	})
	errs, err := structuralErrors(ctx, snapped)
	if err != nil {
		return err
	}
	if len(errs) > 0 {
		return fmt.Errorf("topology check failed on layer %s (tolerance %g): %s", l.Name, tol, strings.Join(errs, "; "))
	}
	return nil
}
