package domain

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

// Immutable geographic coordinates (latitude, longitude) in degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Return coordinates as [lon, lat] for external API compatibility.
func (c Coordinates) CoordsToList() []float64 { return []float64{c.Lon, c.Lat} }

// Point converts to an orb point (x=lon, y=lat).
func (c Coordinates) Point() orb.Point { return orb.Point{c.Lon, c.Lat} }

// Key is the canonical string form used in cache keys.
func (c Coordinates) Key() string { return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lon) }

func (c Coordinates) IsZero() bool { return c.Lat == 0 && c.Lon == 0 }

// HaversineKm returns the great-circle distance between a and b in kilometres.
func HaversineKm(a, b Coordinates) float64 {
	return geo.DistanceHaversine(a.Point(), b.Point()) / 1000
}

// EuclideanDeg is the planar distance in degree space. Cluster centres are
// compared with it without projecting.
func EuclideanDeg(a, b Coordinates) float64 {
	return planar.Distance(a.Point(), b.Point())
}
