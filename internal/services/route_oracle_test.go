package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"route-planner/internal/adapters/routing"
	"route-planner/internal/domain"
	"route-planner/internal/platform/obs"
)

var campinas = domain.Coordinates{Lat: -22.9056, Lon: -47.0608}

func TestRouteOracleDegenerateRoute(t *testing.T) {
	oracle, backend := straightLineOracle(t)

	r, err := oracle.GetRoute(context.Background(), saoPaulo, saoPaulo, "acme")
	require.NoError(t, err)
	assert.InDelta(t, 0.03, r.DistanceKm, 1e-9)
	assert.InDelta(t, 0.2, r.TimeMin, 1e-9)

	nearby := domain.Coordinates{Lat: saoPaulo.Lat + 0.0001, Lon: saoPaulo.Lon}
	r, err = oracle.GetRoute(context.Background(), saoPaulo, nearby, "acme")
	require.NoError(t, err)
	assert.Equal(t, domain.MinimalRoute(), r)

	assert.Zero(t, backend.Calls())
}

func TestRouteOracleCachesResults(t *testing.T) {
	cache := newMemRouteCache()
	backend := routing.NewMockBackend("mock", nil)
	oracle := NewRouteOracle(cache, nil, obs.Discard(), backend)
	ctx := context.Background()

	first, err := oracle.GetRoute(ctx, saoPaulo, campinas, "acme")
	require.NoError(t, err)
	second, err := oracle.GetRoute(ctx, saoPaulo, campinas, "acme")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, backend.Calls())
	assert.Equal(t, 1, cache.Len())

	snap := oracle.Counters().Snapshot()
	assert.EqualValues(t, 1, snap.CacheHits)
	assert.EqualValues(t, 1, snap.CacheMisses)

	_, err = oracle.GetRoute(ctx, saoPaulo, campinas, "other-tenant")
	require.NoError(t, err)
	assert.EqualValues(t, 2, backend.Calls(), "cache entries are per tenant")
}

func TestRouteOracleFallsBackToSecondary(t *testing.T) {
	primary := routing.NewMockBackend("primary", nil)
	primary.Fail = true
	secondary := routing.NewMockBackend("secondary", nil)
	oracle := NewRouteOracle(newMemRouteCache(), nil, obs.Discard(), primary, secondary)

	r, err := oracle.GetRoute(context.Background(), saoPaulo, campinas, "acme")
	require.NoError(t, err)

	assert.Contains(t, r.Polyline, "secondary:")
	assert.EqualValues(t, 1, primary.Calls())
	assert.EqualValues(t, 1, secondary.Calls())
	assert.EqualValues(t, 1, oracle.Counters().Snapshot().BackendFailures)
}

func TestRouteOracleDegradesWhenAllBackendsFail(t *testing.T) {
	primary := routing.NewMockBackend("primary", nil)
	primary.Fail = true
	secondary := routing.NewMockBackend("secondary", nil)
	secondary.Fail = true
	cache := newMemRouteCache()
	oracle := NewRouteOracle(cache, nil, obs.Discard(), primary, secondary)

	r, err := oracle.GetRoute(context.Background(), saoPaulo, campinas, "acme")
	require.NoError(t, err)

	assert.Equal(t, domain.MinimalRoute(), r)
	assert.Zero(t, cache.Len(), "fallback routes are not cached")
	assert.EqualValues(t, 1, oracle.Counters().Snapshot().DegradedFallbacks)
}

func TestRouteOracleHonoursCancellation(t *testing.T) {
	oracle, backend := straightLineOracle(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := oracle.GetRoute(ctx, saoPaulo, campinas, "acme")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, backend.Calls())
}
