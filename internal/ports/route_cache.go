package ports

import (
	"context"
	"route-planner/internal/domain"
)

// Cache key for a routed pair, isolated per tenant.
type RouteCacheKey struct {
	Origin      string
	Destination string
	TenantID    string
}

func NewRouteCacheKey(origin, destination domain.Coordinates, tenantID string) RouteCacheKey {
	return RouteCacheKey{Origin: origin.Key(), Destination: destination.Key(), TenantID: tenantID}
}

func (k RouteCacheKey) String() string {
	return k.TenantID + "|" + k.Origin + "|" + k.Destination
}

// Persistent route cache. Put is insert-if-absent: an existing entry is never overwritten.
type RouteCache interface {
	Get(ctx context.Context, key RouteCacheKey) (domain.RouteResult, bool, error)
	Put(ctx context.Context, key RouteCacheKey, result domain.RouteResult) error
}
