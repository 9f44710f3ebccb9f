package services

import (
	"cmp"
	"slices"

	"route-planner/internal/domain"
)

// splitIntoBands sorts points by distance from the depot and chunks them
// into parts contiguous bands of near-equal size.
//
// It needs no spread between points, so it still divides coincident
// deliveries that k-means cannot separate. Ties keep input order.
func splitIntoBands(depot domain.Coordinates, points []domain.DeliveryPoint, parts int) [][]domain.DeliveryPoint {
	if len(points) == 0 || parts < 1 {
		return nil
	}
	parts = min(parts, len(points))

	sorted := slices.Clone(points)
	slices.SortStableFunc(sorted, func(a, b domain.DeliveryPoint) int {
		return cmp.Compare(domain.HaversineKm(depot, a.Coords()), domain.HaversineKm(depot, b.Coords()))
	})

	// Ceiling division: distribute points as evenly as possible across bands.
	chunk := (len(sorted) + parts - 1) / parts

	bands := make([][]domain.DeliveryPoint, 0, parts)
	for start := 0; start < len(sorted); start += chunk {
		end := min(start+chunk, len(sorted))
		bands = append(bands, sorted[start:end])
	}
	return bands
}
