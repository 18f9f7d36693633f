package geometry

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// structuralErrors returns every structural violation of g. The only error it
// returns is the context error when the deadline passes mid-scan.
func structuralErrors(ctx context.Context, g orb.Geometry) ([]string, error) {
	nonFinite := false
	eachPoint(g, func(p orb.Point) bool {
		if !finite(p) {
			nonFinite = true
			return false
		}
		return true
	})
	if nonFinite {
		return []string{"geometry contains non-finite coordinates"}, nil
	}

	var errs []string
	var err error
	switch s := g.(type) {
	case orb.Point, orb.MultiPoint:
	case orb.LineString:
		errs, err = lineErrors(ctx, "LineString", s, errs)
	case orb.MultiLineString:
		if len(s) == 0 {
			errs = append(errs, "MultiLineString has no members")
		}
		for i, ls := range s {
			if errs, err = lineErrors(ctx, fmt.Sprintf("LineString %d", i), ls, errs); err != nil {
				break
			}
		}
	case orb.Polygon:
		errs, err = polygonErrors(ctx, "Polygon", s, errs)
	case orb.MultiPolygon:
		if len(s) == 0 {
			errs = append(errs, "MultiPolygon has no members")
		}
		before := len(errs)
		for i, p := range s {
			if errs, err = polygonErrors(ctx, fmt.Sprintf("Polygon %d", i), p, errs); err != nil {
				break
			}
		}
		if err == nil && len(errs) == before {
			errs, err = memberErrors(ctx, s, errs)
		}
	case orb.Collection:
		for _, member := range s {
			var sub []string
			if sub, err = structuralErrors(ctx, member); err != nil {
				break
			}
			errs = append(errs, sub...)
		}
	default:
		errs = append(errs, fmt.Sprintf("unsupported geometry type %s", g.GeoJSONType()))
	}
	return errs, err
}

func lineErrors(ctx context.Context, label string, ls orb.LineString, errs []string) ([]string, error) {
	pts := dedupe(ls)
	if len(pts) < 2 {
		return append(errs, fmt.Sprintf("%s has fewer than 2 distinct points", label)), nil
	}
	closed := len(pts) > 2 && pts[0] == pts[len(pts)-1]
	at, ok, err := simple(ctx, pts, closed)
	if err != nil {
		return errs, err
	}
	if !ok {
		errs = append(errs, fmt.Sprintf("%s is not simple: self-intersection at (%g, %g)", label, at[0], at[1]))
	}
	return errs, nil
}

func polygonErrors(ctx context.Context, label string, p orb.Polygon, errs []string) ([]string, error) {
	if len(p) == 0 {
		return append(errs, fmt.Sprintf("%s has no rings", label)), nil
	}
	type ring struct {
		idx int
		pts []orb.Point
	}
	valid := make([]ring, 0, len(p))
	for i, r := range p {
		if len(r) < 4 {
			errs = append(errs, fmt.Sprintf("%s ring %d has fewer than 4 points", label, i))
			continue
		}
		if !r.Closed() {
			errs = append(errs, fmt.Sprintf("%s ring %d is not closed", label, i))
			continue
		}
		pts := dedupe(orb.LineString(r))
		if len(pts) < 4 || planar.Area(orb.Ring(pts)) == 0 {
			errs = append(errs, fmt.Sprintf("%s ring %d is degenerate (zero area)", label, i))
			continue
		}
		at, ok, err := simple(ctx, pts, true)
		if err != nil {
			return errs, err
		}
		if !ok {
			errs = append(errs, fmt.Sprintf("%s ring %d is self-intersecting at (%g, %g)", label, i, at[0], at[1]))
			continue
		}
		valid = append(valid, ring{idx: i, pts: pts})
	}

	for i := 0; i < len(valid); i++ {
		for j := i + 1; j < len(valid); j++ {
			if err := ctx.Err(); err != nil {
				return errs, err
			}
			a, b := valid[i], valid[j]
			if at, hit := ringsCross(a.pts, b.pts); hit {
				errs = append(errs, fmt.Sprintf("%s rings intersect at (%g, %g)", label, at[0], at[1]))
				continue
			}
			// Rings that do not touch are either disjoint or one encloses the other.
			switch {
			case a.idx == 0:
				if !planar.RingContains(orb.Ring(a.pts), b.pts[0]) {
					errs = append(errs, fmt.Sprintf("%s ring %d lies outside the shell", label, b.idx))
				}
			case planar.RingContains(orb.Ring(a.pts), b.pts[0]):
				errs = append(errs, fmt.Sprintf("%s ring %d is nested inside ring %d", label, b.idx, a.idx))
			case planar.RingContains(orb.Ring(b.pts), a.pts[0]):
				errs = append(errs, fmt.Sprintf("%s ring %d is nested inside ring %d", label, a.idx, b.idx))
			}
		}
	}
	return errs, nil
}

// memberErrors reports MultiPolygon members that intersect or overlap. It
// expects every member to be structurally valid on its own.
func memberErrors(ctx context.Context, mp orb.MultiPolygon, errs []string) ([]string, error) {
	for i := 0; i < len(mp); i++ {
		for j := i + 1; j < len(mp); j++ {
			if err := ctx.Err(); err != nil {
				return errs, err
			}
			if at, hit := polygonsTouch(mp[i], mp[j]); hit {
				errs = append(errs, fmt.Sprintf("Polygon %d and Polygon %d intersect at (%g, %g)", i, j, at[0], at[1]))
				continue
			}
			if covers(mp[i], mp[j][0][0]) || covers(mp[j], mp[i][0][0]) {
				errs = append(errs, fmt.Sprintf("Polygon %d and Polygon %d overlap", i, j))
			}
		}
	}
	return errs, nil
}

func polygonsTouch(a, b orb.Polygon) (orb.Point, bool) {
	for _, ra := range a {
		for _, rb := range b {
			if at, hit := ringsCross(dedupe(orb.LineString(ra)), dedupe(orb.LineString(rb))); hit {
				return at, true
			}
		}
	}
	return orb.Point{}, false
}

// covers reports whether pt lies in the interior of p: inside its shell and
// outside every hole.
func covers(p orb.Polygon, pt orb.Point) bool {
	if !planar.RingContains(p[0], pt) {
		return false
	}
	for _, hole := range p[1:] {
		if planar.RingContains(hole, pt) {
			return false
		}
	}
	return true
}

// simple reports whether the chain pts has no self-intersection. For closed
// chains the first and last segments are treated as adjacent.
func simple(ctx context.Context, pts []orb.Point, closed bool) (orb.Point, bool, error) {
	m := len(pts) - 1
	for i := 0; i < m; i++ {
		if err := ctx.Err(); err != nil {
			return orb.Point{}, false, err
		}
		for j := i + 1; j < m; j++ {
			switch {
			case j == i+1:
				if spike(pts[i], pts[i+1], pts[j+1]) {
					return pts[i+1], false, nil
				}
			case closed && i == 0 && j == m-1:
				if spike(pts[1], pts[0], pts[m-1]) {
					return pts[0], false, nil
				}
			default:
				if at, hit := intersection(pts[i], pts[i+1], pts[j], pts[j+1]); hit {
					return at, false, nil
				}
			}
		}
	}
	return orb.Point{}, true, nil
}

// spike reports whether the segments a-shared and shared-c fold back over each other.
func spike(a, shared, c orb.Point) bool {
	if orient(a, shared, c) != 0 {
		return false
	}
	return (a[0]-shared[0])*(c[0]-shared[0])+(a[1]-shared[1])*(c[1]-shared[1]) > 0
}

func ringsCross(a, b []orb.Point) (orb.Point, bool) {
	for i := 0; i < len(a)-1; i++ {
		for j := 0; j < len(b)-1; j++ {
			if at, hit := intersection(a[i], a[i+1], b[j], b[j+1]); hit {
				return at, true
			}
		}
	}
	return orb.Point{}, false
}

func orient(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func onSegment(a, b, p orb.Point) bool {
	return min(a[0], b[0]) <= p[0] && p[0] <= max(a[0], b[0]) &&
		min(a[1], b[1]) <= p[1] && p[1] <= max(a[1], b[1])
}

// intersection reports whether segments p1-p2 and q1-q2 share any point.
func intersection(p1, p2, q1, q2 orb.Point) (orb.Point, bool) {
	d1 := sign(orient(q1, q2, p1))
	d2 := sign(orient(q1, q2, p2))
	d3 := sign(orient(p1, p2, q1))
	d4 := sign(orient(p1, p2, q2))

	if d1*d2 < 0 && d3*d4 < 0 {
		rx, ry := p2[0]-p1[0], p2[1]-p1[1]
		sx, sy := q2[0]-q1[0], q2[1]-q1[1]
		t := ((q1[0]-p1[0])*sy - (q1[1]-p1[1])*sx) / (rx*sy - ry*sx)
		return orb.Point{p1[0] + t*rx, p1[1] + t*ry}, true
	}

	switch {
	case d1 == 0 && onSegment(q1, q2, p1):
		return p1, true
	case d2 == 0 && onSegment(q1, q2, p2):
		return p2, true
	case d3 == 0 && onSegment(p1, p2, q1):
		return q1, true
	case d4 == 0 && onSegment(p1, p2, q2):
		return q2, true
	}
	return orb.Point{}, false
}

// dedupe drops consecutive repeated points.
func dedupe(ls orb.LineString) []orb.Point {
	out := make([]orb.Point, 0, len(ls))
	for i, p := range ls {
		if i > 0 && p == ls[i-1] {
			continue
		}
		out = append(out, p)
	}
	return out
}
