// Package geo holds the coordinate type and the short-range distance
// approximation used to show how far a player is from a checkpoint.
package geo

import (
	"fmt"
	"math"
)

// MetersPerDegree is the length of one degree of latitude used by Distance.
const MetersPerDegree = 111111.0

// Coordinate is a WGS84 latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether c lies within the latitude/longitude ranges.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f, %.6f", c.Lat, c.Lng)
}

// Distance returns the planar distance in meters between a and b.
//
// Both axes are scaled to MetersPerDegree, with longitude shrunk by the cosine
// of the mean latitude, and the Euclidean norm is taken. The result is only
// meaningful for short hops (up to a few kilometers); checkpoint tolerances
// are tuned against this formula, so it must stay a flat projection.
func Distance(a, b Coordinate) float64 {
	meanLat := (a.Lat + b.Lat) / 2 * math.Pi / 180
	dy := (b.Lat - a.Lat) * MetersPerDegree
	dx := (b.Lng - a.Lng) * MetersPerDegree * math.Cos(meanLat)
	return math.Hypot(dx, dy)
}

// Round6 rounds a degree value to six decimal places (~0.1 m), the precision
// fixes are reported with.
func Round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
