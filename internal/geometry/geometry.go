// Package geometry validates and re-projects the spatial shapes attached to search
// locations. Everything in this package is pure and CPU-bound: no I/O happens here
// except through the optional Cache used by the Transformer.
//
// Shapes are carried as github.com/paulmach/orb geometries tagged with the EPSG
// identifier of the coordinate system their coordinates are expressed in. GeoJSON is
// the wire and storage encoding.
package geometry

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// LocationType is the declared kind of a search location.
type LocationType string

const (
	TypeArea  LocationType = "area"
	TypePoint LocationType = "point"
	TypePath  LocationType = "path"
	// TypeKML marks freeform imports; it is exempt from the type check.
	TypeKML LocationType = "kml"
)

// allowedKinds maps a location type to the GeoJSON geometry types it may carry.
var allowedKinds = map[LocationType][]string{
	TypeArea:  {"Polygon", "MultiPolygon"},
	TypePoint: {"Point"},
	TypePath:  {"LineString", "MultiLineString"},
}

// ParseLocationType converts a raw string into a LocationType.
func ParseLocationType(s string) (LocationType, error) {
	switch t := LocationType(s); t {
	case TypeArea, TypePoint, TypePath, TypeKML:
		return t, nil
	default:
		return "", fmt.Errorf("unknown location type %q (must be area, point, path or kml)", s)
	}
}

// Geometry is a shape tagged with its coordinate system id.
type Geometry struct {
	Shape orb.Geometry
	SRID  int
}

// New tags an orb geometry with an SRID.
func New(shape orb.Geometry, srid int) *Geometry {
	return &Geometry{Shape: shape, SRID: srid}
}

// Parse decodes a GeoJSON geometry object.
func Parse(data []byte, srid int) (*Geometry, error) {
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("invalid GeoJSON geometry: %w", err)
	}
	shape := g.Geometry()
	if shape == nil {
		return nil, fmt.Errorf("invalid GeoJSON geometry: no coordinates")
	}
	return &Geometry{Shape: shape, SRID: srid}, nil
}

// GeoJSON encodes the shape as a GeoJSON geometry object.
func (g *Geometry) GeoJSON() ([]byte, error) {
	if g == nil || g.Shape == nil {
		return nil, fmt.Errorf("geometry is nil")
	}
	return geojson.NewGeometry(g.Shape).MarshalJSON()
}

// Clone returns a deep copy.
func (g *Geometry) Clone() *Geometry {
	if g == nil {
		return nil
	}
	return &Geometry{Shape: orb.Clone(g.Shape), SRID: g.SRID}
}

// Envelope is the axis-aligned bounding box of a geometry.
type Envelope struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// Details is diagnostic metadata reported for every validated or transformed geometry.
type Details struct {
	Kind       string   `json:"kind"`
	SRID       int      `json:"srid"`
	Dimensions int      `json:"dimensions"`
	Envelope   Envelope `json:"envelope"`
	NumPoints  int      `json:"num_points"`
	// AreaKm2 is only set for polygonal shapes that can be projected to EPSG:6933.
	AreaKm2 float64 `json:"area_km2,omitempty"`
}

func describe(g *Geometry) Details {
	d := Details{SRID: g.SRID}
	if g.Shape == nil {
		return d
	}
	b := g.Shape.Bound()
	d.Kind = g.Shape.GeoJSONType()
	d.Dimensions = g.Shape.Dimensions()
	d.Envelope = Envelope{MinX: b.Min[0], MinY: b.Min[1], MaxX: b.Max[0], MaxY: b.Max[1]}
	d.NumPoints = countPoints(g.Shape)
	if d.Dimensions == 2 {
		if area, err := AreaKm2(g); err == nil {
			d.AreaKm2 = area
		}
	}
	return d
}

func countPoints(g orb.Geometry) int {
	switch s := g.(type) {
	case orb.Point:
		return 1
	case orb.MultiPoint:
		return len(s)
	case orb.LineString:
		return len(s)
	case orb.Ring:
		return len(s)
	case orb.MultiLineString:
		n := 0
		for _, ls := range s {
			n += len(ls)
		}
		return n
	case orb.Polygon:
		n := 0
		for _, r := range s {
			n += len(r)
		}
		return n
	case orb.MultiPolygon:
		n := 0
		for _, p := range s {
			n += countPoints(p)
		}
		return n
	case orb.Collection:
		n := 0
		for _, c := range s {
			n += countPoints(c)
		}
		return n
	}
	return 0
}

// eachPoint calls fn for every coordinate until fn returns false.
func eachPoint(g orb.Geometry, fn func(orb.Point) bool) bool {
	switch s := g.(type) {
	case orb.Point:
		return fn(s)
	case orb.MultiPoint:
		for _, p := range s {
			if !fn(p) {
				return false
			}
		}
	case orb.LineString:
		for _, p := range s {
			if !fn(p) {
				return false
			}
		}
	case orb.Ring:
		for _, p := range s {
			if !fn(p) {
				return false
			}
		}
	case orb.MultiLineString:
		for _, ls := range s {
			if !eachPoint(ls, fn) {
				return false
			}
		}
	case orb.Polygon:
		for _, r := range s {
			if !eachPoint(r, fn) {
				return false
			}
		}
	case orb.MultiPolygon:
		for _, p := range s {
			if !eachPoint(p, fn) {
				return false
			}
		}
	case orb.Collection:
		for _, c := range s {
			if !eachPoint(c, fn) {
				return false
			}
		}
	}
	return true
}

func finite(p orb.Point) bool {
	return !math.IsNaN(p[0]) && !math.IsNaN(p[1]) && !math.IsInf(p[0], 0) && !math.IsInf(p[1], 0)
}
