package geometry

import "sort"

// Supported coordinate systems.
const (
	SRIDWGS84          = 4326 // geographic lon/lat
	SRIDWebMercator    = 3857 // spherical pseudo-Mercator, metres
	SRIDWorldEqualArea = 6933 // EASE-Grid 2.0 global cylindrical equal-area, metres
)

var supportedSRIDs = map[int]string{
	SRIDWGS84:          "WGS 84",
	SRIDWebMercator:    "WGS 84 / Pseudo-Mercator",
	SRIDWorldEqualArea: "WGS 84 / NSIDC EASE-Grid 2.0 Global",
}

// IsSupported reports whether srid is on the whitelist.
func IsSupported(srid int) bool {
	_, ok := supportedSRIDs[srid]
	return ok
}

// SupportedSRIDs returns the whitelist in ascending order.
func SupportedSRIDs() []int {
	out := make([]int, 0, len(supportedSRIDs))
	for srid := range supportedSRIDs {
		out = append(out, srid)
	}
	sort.Ints(out)
	return out
}

// SRIDName returns the human readable name of a supported SRID.
func SRIDName(srid int) string {
	return supportedSRIDs[srid]
}

func isGeographic(srid int) bool {
	return srid == SRIDWGS84
}
