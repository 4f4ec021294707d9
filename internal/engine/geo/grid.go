package geo

import (
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// kmPerDegree is the length of one degree of latitude.
const kmPerDegree = 111.32

// Lattice returns a square grid of points around center. Points are stepKm
// apart and the grid reaches rangeKm from the center on each axis, so it has
// (2*ceil(rangeKm/stepKm)+1)^2 points. Longitude spacing is corrected for the
// center latitude.
func Lattice(center orb.Point, rangeKm, stepKm float64) []orb.Point {
	if stepKm <= 0 || rangeKm < 0 {
		return []orb.Point{center}
	}

	latStep := stepKm / kmPerDegree
	lngStep := stepKm / (kmPerDegree * math.Cos(center.Lat()*math.Pi/180.0))
	steps := int(math.Ceil(rangeKm / stepKm))

	points := make([]orb.Point, 0, (2*steps+1)*(2*steps+1))
	for x := -steps; x <= steps; x++ {
		for y := -steps; y <= steps; y++ {
			points = append(points, orb.Point{
				center.Lon() + float64(y)*lngStep,
				center.Lat() + float64(x)*latStep,
			})
		}
	}
	return points
}

// DiagonalKm returns the great-circle distance between opposite corners of b.
func DiagonalKm(b orb.Bound) float64 {
	return orbgeo.DistanceHaversine(b.Min, b.Max) / 1000.0
}
