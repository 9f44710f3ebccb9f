package services

import (
	"strings"

	"github.com/paulmach/orb"

	"route-planner/internal/domain"
)

// GeoBounds validates coordinates against per-region bounding boxes.
type GeoBounds struct {
	boxes map[string]orb.Bound
}

func NewGeoBounds(boxes map[string]orb.Bound) *GeoBounds {
	m := make(map[string]orb.Bound, len(boxes))
	for code, b := range boxes {
		m[strings.ToUpper(strings.TrimSpace(code))] = b
	}
	return &GeoBounds{boxes: m}
}

// NewBrazilBounds covers the 27 federative units.
func NewBrazilBounds() *GeoBounds { return NewGeoBounds(brazilBoxes) }

// IsWithin reports whether (lat, lon) lies inside the region's box.
// Unknown regions are never valid.
func (g *GeoBounds) IsWithin(lat, lon float64, regionCode string) bool {
	b, ok := g.boxes[strings.ToUpper(strings.TrimSpace(regionCode))]
	if !ok {
		return false
	}
	return b.Contains(orb.Point{lon, lat})
}

// Partition splits points into those inside their region and those outside.
func (g *GeoBounds) Partition(points []domain.DeliveryPoint) (valid, invalid []domain.DeliveryPoint) {
	for _, p := range points {
		if g.IsWithin(p.Latitude, p.Longitude, p.RegionCode) {
			valid = append(valid, p)
		} else {
			invalid = append(invalid, p)
		}
	}
	return valid, invalid
}

func box(minLat, maxLat, minLon, maxLon float64) orb.Bound {
	return orb.Bound{Min: orb.Point{minLon, minLat}, Max: orb.Point{maxLon, maxLat}}
}

var brazilBoxes = map[string]orb.Bound{
	"AC": box(-11.15, -7.10, -74.00, -66.60),
	"AL": box(-10.50, -8.80, -38.25, -35.15),
	"AP": box(-1.25, 4.45, -54.90, -49.85),
	"AM": box(-9.85, 2.25, -73.80, -56.10),
	"BA": box(-18.35, -8.55, -46.65, -37.35),
	"CE": box(-7.90, -2.75, -41.45, -37.25),
	"DF": box(-16.05, -15.50, -48.30, -47.30),
	"ES": box(-21.30, -17.90, -41.90, -39.65),
	"GO": box(-19.50, -12.40, -53.25, -45.90),
	"MA": box(-10.30, -1.05, -48.75, -41.80),
	"MT": box(-18.05, -7.35, -61.65, -50.20),
	"MS": box(-24.10, -17.15, -58.20, -50.90),
	"MG": box(-22.95, -14.20, -51.05, -39.85),
	"PA": box(-9.85, 2.60, -58.90, -46.05),
	"PB": box(-8.30, -6.00, -38.80, -34.75),
	"PR": box(-26.75, -22.50, -54.65, -48.00),
	"PE": box(-9.50, -3.80, -41.40, -32.35),
	"PI": box(-10.95, -2.70, -45.95, -40.35),
	"RJ": box(-23.40, -20.75, -44.90, -40.95),
	"RN": box(-6.99, -4.80, -38.60, -34.95),
	"RS": box(-33.75, -27.05, -57.65, -49.65),
	"RO": box(-13.70, -7.95, -66.85, -59.75),
	"RR": box(-1.60, 5.30, -64.85, -58.85),
	"SC": box(-29.40, -25.95, -53.85, -48.30),
	"SP": box(-25.35, -19.75, -53.15, -44.15),
	"SE": box(-11.60, -9.50, -38.25, -36.35),
	"TO": box(-13.50, -5.15, -50.75, -45.65),
}
