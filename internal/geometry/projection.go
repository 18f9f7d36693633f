package geometry

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// maxMercatorLat is the latitude at which EPSG:3857 becomes a square.
const maxMercatorLat = 85.05112877980659

// WGS84 ellipsoid and EASE-Grid 2.0 parameters for EPSG:6933.
const (
	wgs84A           = 6378137.0
	wgs84E2          = 0.0066943799901413165
	easeStdParallel  = 30.0
	authalicMaxIters = 25
	authalicEpsilon  = 1e-13
)

var (
	wgs84E = math.Sqrt(wgs84E2)
	easeK0 = func() float64 {
		s := math.Sin(easeStdParallel * math.Pi / 180)
		return math.Cos(easeStdParallel*math.Pi/180) / math.Sqrt(1-wgs84E2*s*s)
	}()
	// qPole is q(90°), the upper bound of the authalic function.
	qPole = authalicQ(1)
)

// nan marks a coordinate outside a projection's domain; Transform rejects it.
var nan = orb.Point{math.NaN(), math.NaN()}

// toWGS84 returns the projection from srid into geographic lon/lat.
func toWGS84(srid int) orb.Projection {
	switch srid {
	case SRIDWebMercator:
		return project.Mercator.ToWGS84
	case SRIDWorldEqualArea:
		return easeToWGS84
	}
	return nil
}

// fromWGS84 returns the projection from geographic lon/lat into srid.
func fromWGS84(srid int) orb.Projection {
	switch srid {
	case SRIDWebMercator:
		return wgs84ToMercator
	case SRIDWorldEqualArea:
		return wgs84ToEASE
	}
	return nil
}

func validLonLat(p orb.Point) bool {
	return p[0] >= -180 && p[0] <= 180 && p[1] >= -90 && p[1] <= 90
}

func wgs84ToMercator(p orb.Point) orb.Point {
	if !validLonLat(p) || math.Abs(p[1]) > maxMercatorLat {
		return nan
	}
	return project.WGS84.ToMercator(p)
}

// authalicQ evaluates q(φ) for sinφ on the WGS84 ellipsoid.
func authalicQ(sinPhi float64) float64 {
	es := wgs84E * sinPhi
	return (1 - wgs84E2) * (sinPhi/(1-es*es) - (1/(2*wgs84E))*math.Log((1-es)/(1+es)))
}

func wgs84ToEASE(p orb.Point) orb.Point {
	if !validLonLat(p) {
		return nan
	}
	lambda := p[0] * math.Pi / 180
	q := authalicQ(math.Sin(p[1] * math.Pi / 180))
	return orb.Point{
		wgs84A * easeK0 * lambda,
		wgs84A * q / (2 * easeK0),
	}
}

// easeToWGS84 inverts the cylindrical equal-area projection, solving for latitude
// by Newton iteration on the authalic function.
func easeToWGS84(p orb.Point) orb.Point {
	lambda := p[0] / (wgs84A * easeK0)
	q := 2 * p[1] * easeK0 / wgs84A
	if math.Abs(lambda) > math.Pi+1e-12 || math.Abs(q) > qPole+1e-12 {
		return nan
	}
	lon := lambda * 180 / math.Pi
	if math.Abs(math.Abs(q)-qPole) < 1e-12 {
		return orb.Point{lon, math.Copysign(90, q)}
	}

	phi := math.Asin(q / 2)
	for i := 0; i < authalicMaxIters; i++ {
		sinPhi := math.Sin(phi)
		cosPhi := math.Cos(phi)
		es := wgs84E * sinPhi
		oneMinus := 1 - es*es
		delta := oneMinus * oneMinus / (2 * cosPhi) *
			(q/(1-wgs84E2) - sinPhi/oneMinus + (1/(2*wgs84E))*math.Log((1-es)/(1+es)))
		phi += delta
		if math.Abs(delta) < authalicEpsilon {
			break
		}
	}
	return orb.Point{lon, phi * 180 / math.Pi}
}

// reproject converts g from source to target through geographic coordinates. The
// input is never modified.
func reproject(g orb.Geometry, source, target int) orb.Geometry {
	out := orb.Clone(g)
	if source == target {
		return out
	}
	if inv := toWGS84(source); inv != nil {
		out = project.Geometry(out, inv)
	}
	if fwd := fromWGS84(target); fwd != nil {
		out = project.Geometry(out, fwd)
	}
	return out
}

// round snaps coordinates to a fixed number of decimals: 6 for geographic
// systems, 3 (millimetres) for projected ones.
func round(g orb.Geometry, srid int) orb.Geometry {
	factor := 1e3
	if isGeographic(srid) {
		factor = 1e6
	}
	return project.Geometry(g, func(p orb.Point) orb.Point {
		return orb.Point{math.Round(p[0]*factor) / factor, math.Round(p[1]*factor) / factor}
	})
}
