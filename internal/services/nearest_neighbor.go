package services

import (
	"context"
	"fmt"
	"math"

	"route-planner/internal/domain"
	"route-planner/internal/ports"
)

// NearestNeighborSequence orders deliveries with a greedy nearest-neighbour
// walk from the depot, minimising the immediate travel time at each step.
//
// It does not attempt global route optimization. Deliveries sharing a
// coordinate are visited together. Costs O(n^2) oracle lookups, so it is only
// used for last-mile groups, which the splitter keeps small.
func NearestNeighborSequence(
	ctx context.Context,
	oracle ports.DistanceTimeOracle,
	tenantID string,
	depot domain.Coordinates,
	points []domain.DeliveryPoint,
) ([]domain.DeliveryPoint, error) {
	if len(points) <= 1 {
		return append([]domain.DeliveryPoint(nil), points...), nil
	}

	byLocation := make(map[string][]domain.DeliveryPoint)
	order := make([]string, 0, len(points))
	coords := make(map[string]domain.Coordinates)
	for _, p := range points {
		k := p.Coords().Key()
		if _, ok := byLocation[k]; !ok {
			order = append(order, k)
			coords[k] = p.Coords()
		}
		byLocation[k] = append(byLocation[k], p)
	}

	remaining := make(map[string]struct{}, len(order))
	for _, k := range order {
		remaining[k] = struct{}{}
	}

	out := make([]domain.DeliveryPoint, 0, len(points))
	current := depot

	for len(remaining) > 0 {
		var best string
		minTime := math.Inf(1)

		// Iterate in first-seen order so ties resolve deterministically.
		for _, k := range order {
			if _, ok := remaining[k]; !ok {
				continue
			}
			r, err := oracle.GetRoute(ctx, current, coords[k], tenantID)
			if err != nil {
				return nil, fmt.Errorf("nearest neighbor: route %s -> %s: %w", current.Key(), k, err)
			}
			if r.TimeMin < minTime {
				minTime = r.TimeMin
				best = k
			}
		}

		out = append(out, byLocation[best]...)
		delete(remaining, best)
		current = coords[best]
	}

	return out, nil
}
