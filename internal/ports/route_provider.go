package ports

import (
	"context"
	"route-planner/internal/domain"
)

// Contract for one road-routing backend (OSRM, OpenRouteService, ...).
type RouteProvider interface {
	// Name identifies the backend in logs and counters.
	Name() string
	// Return road distance, travel time and polyline between two coordinates.
	// An error means the backend produced no usable distance.
	Route(ctx context.Context, origin, destination domain.Coordinates) (domain.RouteResult, error)
}

// DistanceTimeOracle is what the planning algorithms consume.
// It never fails for backend reasons; the returned error is non-nil only
// when ctx is cancelled.
type DistanceTimeOracle interface {
	GetRoute(ctx context.Context, origin, destination domain.Coordinates, tenantID string) (domain.RouteResult, error)
}
