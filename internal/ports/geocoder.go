package ports

import (
	"context"
	"route-planner/internal/domain"
)

// Maps a coordinate to the nearest named locality.
type ReverseGeocoder interface {
	Reverse(ctx context.Context, coords domain.Coordinates) (domain.Locality, error)
}

// Cache for reverse geocoding results keyed by coordinate.
type LocalityCache interface {
	Get(ctx context.Context, coords domain.Coordinates) (domain.Locality, bool, error)
	Put(ctx context.Context, coords domain.Coordinates, locality domain.Locality) error
}
