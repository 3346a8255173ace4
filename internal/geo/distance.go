// Package geo provides great-circle distance and the coarse bounding box
// used to pre-filter preferences by location.
package geo

import (
	"math"

	"github.com/twpayne/go-geom"
)

// EarthRadiusKM is the mean Earth radius used by HaversineKM.
const EarthRadiusKM = 6371.0

// BoxDegrees is the half-width of the candidate bounding box (~11 km).
const BoxDegrees = 0.1

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64
	Lng float64
}

// HaversineKM returns the great-circle distance between two points in km.
func HaversineKM(a, b Point) float64 {
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKM * c
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// Box is an axis-aligned lat/lng rectangle. X is longitude, Y is latitude.
type Box struct {
	bounds *geom.Bounds
}

// BoxAround returns the square of ±delta degrees centred on p.
func BoxAround(p Point, delta float64) Box {
	b := geom.NewBounds(geom.XY).Set(p.Lng-delta, p.Lat-delta, p.Lng+delta, p.Lat+delta)
	return Box{bounds: b}
}

// MinLat returns the southern edge.
func (b Box) MinLat() float64 { return b.bounds.Min(1) }

// MaxLat returns the northern edge.
func (b Box) MaxLat() float64 { return b.bounds.Max(1) }

// MinLng returns the western edge.
func (b Box) MinLng() float64 { return b.bounds.Min(0) }

// MaxLng returns the eastern edge.
func (b Box) MaxLng() float64 { return b.bounds.Max(0) }
