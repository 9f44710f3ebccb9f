package services

import (
	"cmp"
	"slices"

	"route-planner/internal/domain"
)

// Horseshoe orders items for a tour starting and ending at depot without
// solving a TSP. Items are sorted by straight-line distance from the depot;
// the nearer half is visited outward in ascending order and the farther half
// is reversed, so the route turns back toward the depot once.
//
// Ties keep input order, so the result is deterministic.
func Horseshoe[T any](depot domain.Coordinates, items []T, at func(T) domain.Coordinates) []T {
	if len(items) <= 1 {
		return slices.Clone(items)
	}

	type ranked struct {
		item T
		dist float64
	}
	rs := make([]ranked, len(items))
	for i, it := range items {
		rs[i] = ranked{item: it, dist: domain.HaversineKm(depot, at(it))}
	}
	slices.SortStableFunc(rs, func(a, b ranked) int { return cmp.Compare(a.dist, b.dist) })

	half := len(rs) / 2
	out := make([]T, 0, len(rs))
	for _, r := range rs[:half] {
		out = append(out, r.item)
	}
	for i := len(rs) - 1; i >= half; i-- {
		out = append(out, rs[i].item)
	}
	return out
}

// SequenceDeliveries is Horseshoe over delivery points.
func SequenceDeliveries(depot domain.Coordinates, points []domain.DeliveryPoint) []domain.DeliveryPoint {
	return Horseshoe(depot, points, domain.DeliveryPoint.Coords)
}
