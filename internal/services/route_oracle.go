package services

import (
	"context"
	"errors"
	"log/slog"

	"route-planner/internal/domain"
	"route-planner/internal/platform/obs"
	"route-planner/internal/ports"
)

// Points closer than this are routed as the minimal route without a backend call.
const degenerateDistanceKm = 0.03

// RouteOracle implements ports.DistanceTimeOracle over a cache and an ordered
// chain of routing backends. Backend failures never surface: when every
// provider fails the minimal route is returned and the degradation is counted.
//
// Safe for concurrent use when the cache and providers are.
type RouteOracle struct {
	cache     ports.RouteCache
	providers []ports.RouteProvider
	counters  *obs.Counters
	logger    *slog.Logger
}

// NewRouteOracle builds the chain. Providers are tried in the given order;
// cache may be nil.
func NewRouteOracle(
	cache ports.RouteCache,
	counters *obs.Counters,
	logger *slog.Logger,
	providers ...ports.RouteProvider,
) *RouteOracle {
	if counters == nil {
		counters = &obs.Counters{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	kept := make([]ports.RouteProvider, 0, len(providers))
	for _, p := range providers {
		if p != nil {
			kept = append(kept, p)
		}
	}
	return &RouteOracle{cache: cache, providers: kept, counters: counters, logger: logger}
}

func (o *RouteOracle) Counters() *obs.Counters { return o.counters }

func (o *RouteOracle) GetRoute(
	ctx context.Context,
	origin domain.Coordinates,
	destination domain.Coordinates,
	tenantID string,
) (domain.RouteResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.RouteResult{}, err
	}

	if origin == destination || domain.HaversineKm(origin, destination) < degenerateDistanceKm {
		return domain.MinimalRoute(), nil
	}

	key := ports.NewRouteCacheKey(origin, destination, tenantID)

	if o.cache != nil {
		r, ok, err := o.cache.Get(ctx, key)
		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return domain.RouteResult{}, ctxErr
			}
			o.logger.WarnContext(ctx, "route cache read failed", "key", key.String(), "err", err)
		case ok:
			o.counters.CacheHits.Add(1)
			return r, nil
		}
		o.counters.CacheMisses.Add(1)
	}

	var causes []error
	for i, p := range o.providers {
		if i == 0 {
			o.counters.PrimaryCalls.Add(1)
		} else {
			o.counters.SecondaryCalls.Add(1)
		}

		r, err := p.Route(ctx, origin, destination)
		if err == nil && r.DistanceKm > 0 {
			o.store(ctx, key, r)
			return r, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.RouteResult{}, ctxErr
		}
		if err == nil {
			err = errors.New(p.Name() + ": no usable distance")
		}
		o.counters.BackendFailures.Add(1)
		causes = append(causes, err)
	}

	unavailable := &domain.RoutingBackendUnavailableError{
		Origin:      origin,
		Destination: destination,
		Causes:      causes,
	}
	o.counters.DegradedFallbacks.Add(1)
	o.logger.WarnContext(ctx, "using minimal route", "tenant", tenantID, "err", unavailable)

	return domain.MinimalRoute(), nil
}

func (o *RouteOracle) store(ctx context.Context, key ports.RouteCacheKey, r domain.RouteResult) {
	if o.cache == nil {
		return
	}
	if err := o.cache.Put(ctx, key, r); err != nil {
		o.counters.CacheWriteFailures.Add(1)
		o.logger.WarnContext(ctx, "route cache write failed", "key", key.String(), "err", err)
	}
}
