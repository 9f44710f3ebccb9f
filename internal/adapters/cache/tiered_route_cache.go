package cache

import (
	"context"
	"errors"
	"log/slog"

	"route-planner/internal/domain"
	"route-planner/internal/ports"
)

// TieredRouteCache reads tiers in order (fastest first) and back-fills the
// faster tiers on a hit further down. Put writes every tier.
type TieredRouteCache struct {
	tiers  []ports.RouteCache
	logger *slog.Logger
}

func NewTieredRouteCache(logger *slog.Logger, tiers ...ports.RouteCache) *TieredRouteCache {
	if logger == nil {
		logger = slog.Default()
	}
	kept := make([]ports.RouteCache, 0, len(tiers))
	for _, t := range tiers {
		if t != nil {
			kept = append(kept, t)
		}
	}
	return &TieredRouteCache{tiers: kept, logger: logger}
}

// Get falls through to the next tier when one errors; the error is returned
// only when no tier produced a hit.
func (c *TieredRouteCache) Get(ctx context.Context, key ports.RouteCacheKey) (domain.RouteResult, bool, error) {
	var errs []error

	for i, tier := range c.tiers {
		r, ok, err := tier.Get(ctx, key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !ok {
			continue
		}

		for _, faster := range c.tiers[:i] {
			if err := faster.Put(ctx, key, r); err != nil {
				c.logger.WarnContext(ctx, "route cache backfill failed", "key", key.String(), "err", err)
			}
		}
		return r, true, nil
	}

	return domain.RouteResult{}, false, errors.Join(errs...)
}

func (c *TieredRouteCache) Put(ctx context.Context, key ports.RouteCacheKey, result domain.RouteResult) error {
	var errs []error
	for _, tier := range c.tiers {
		if err := tier.Put(ctx, key, result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
