package services

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"route-planner/internal/domain"
	"route-planner/internal/platform/obs"
)

func testServiceTimes() ServiceTimes {
	return ServiceTimes{LightStopMin: 5, HeavyStopMin: 10, HeavyStopThresholdKg: 200, UnloadMinPerVolume: 0}
}

func newTestSplitter(t *testing.T) *Splitter {
	t.Helper()
	oracle, _ := straightLineOracle(t)
	return NewSplitter(oracle, obs.Discard())
}

func TestSplitSinglePointAlwaysAccepted(t *testing.T) {
	s := newTestSplitter(t)
	depot := domain.Coordinates{Lat: 0, Lon: 0}
	points := []domain.DeliveryPoint{delivery("far", 0, 1, 1)}

	subs, err := s.Split(context.Background(), "acme", "C1", depot, points, SplitOptions{
		TargetPerSubcluster: 10,
		MaxRouteTimeMin:     10,
		MaxDepth:            4,
		Service:             testServiceTimes(),
	})
	require.NoError(t, err)

	require.Len(t, subs, 1)
	assert.Equal(t, "C1-1", subs[0].SubClusterID)
	assert.Equal(t, "C1", subs[0].ClusterID)
	assert.Equal(t, []string{"far"}, subs[0].MemberIDs())
	assert.Greater(t, subs[0].TransitTimeMin, 10.0, "over the ceiling but accepted")
}

func TestSplitRespectsTimeBound(t *testing.T) {
	s := newTestSplitter(t)
	depot := domain.Coordinates{Lat: 0, Lon: 0}
	points := scatter(40, depot, 0.2, 5)
	const maxMin = 120.0

	subs, err := s.Split(context.Background(), "acme", "C2", depot, points, SplitOptions{
		TargetPerSubcluster: 10,
		MaxRouteTimeMin:     maxMin,
		MaxDepth:            32,
		Seed:                42,
		Service:             testServiceTimes(),
	})
	require.NoError(t, err)
	require.NotEmpty(t, subs)

	var ids []string
	for _, sub := range subs {
		if len(sub.Members) > 1 {
			assert.LessOrEqual(t, sub.TransitTimeMin, maxMin, "sub-cluster %s", sub.SubClusterID)
		}
		assert.ElementsMatch(t, sub.MemberIDs(), domain.DeliveryIDs(sub.Sequence))
		ids = append(ids, sub.MemberIDs()...)
	}
	sort.Strings(ids)
	want := domain.DeliveryIDs(points)
	sort.Strings(want)
	assert.Equal(t, want, ids)
}

func TestSplitSeparatesCoincidentPoints(t *testing.T) {
	s := newTestSplitter(t)
	depot := domain.Coordinates{Lat: 0, Lon: 0}
	var points []domain.DeliveryPoint
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		points = append(points, delivery(id, 0, 0.5, 1))
	}

	subs, err := s.Split(context.Background(), "acme", "C3", depot, points, SplitOptions{
		TargetPerSubcluster: 10,
		MaxRouteTimeMin:     60,
		MaxDepth:            10,
		Service:             testServiceTimes(),
	})
	require.NoError(t, err)

	require.Len(t, subs, 6)
	for _, sub := range subs {
		assert.Len(t, sub.Members, 1)
	}
}

func TestSplitDepthBound(t *testing.T) {
	s := newTestSplitter(t)
	depot := domain.Coordinates{Lat: 0, Lon: 0}
	points := scatter(10, depot, 0.5, 6)

	_, err := s.Split(context.Background(), "acme", "C4", depot, points, SplitOptions{
		TargetPerSubcluster: 100,
		MaxRouteTimeMin:     1,
		MaxDepth:            0,
		Service:             testServiceTimes(),
	})

	var unresolvable *domain.UnresolvableSubdivisionError
	require.True(t, errors.As(err, &unresolvable), "got %v", err)
	assert.Equal(t, "C4", unresolvable.ClusterID)
	assert.Equal(t, 10, unresolvable.PointCount)
	assert.Equal(t, 1.0, unresolvable.MaxRouteTimeMin)
}

func TestSplitNearestNeighbourSequence(t *testing.T) {
	s := newTestSplitter(t)
	depot := domain.Coordinates{Lat: 0, Lon: 0}
	points := []domain.DeliveryPoint{
		delivery("d3", 0, 0.03, 1),
		delivery("d1", 0, 0.01, 1),
		delivery("d2", 0, 0.02, 1),
	}

	subs, err := s.Split(context.Background(), "acme", "C5", depot, points, SplitOptions{
		TargetPerSubcluster: 10,
		MaxRouteTimeMin:     600,
		MaxDepth:            4,
		Service:             testServiceTimes(),
		Sequence:            SequenceNearestNeighbor,
	})
	require.NoError(t, err)

	require.Len(t, subs, 1)
	assert.Equal(t, []string{"d1", "d2", "d3"}, domain.DeliveryIDs(subs[0].Sequence))
}

func TestSplitEmpty(t *testing.T) {
	subs, err := newTestSplitter(t).Split(context.Background(), "acme", "C6", domain.Coordinates{}, nil, SplitOptions{})
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestSplitIntoBands(t *testing.T) {
	depot := domain.Coordinates{}
	points := []domain.DeliveryPoint{
		delivery("c", 0, 3, 1), delivery("a", 0, 1, 1), delivery("e", 0, 5, 1),
		delivery("b", 0, 2, 1), delivery("d", 0, 4, 1),
	}

	bands := splitIntoBands(depot, points, 2)
	require.Len(t, bands, 2)
	assert.Equal(t, []string{"a", "b", "c"}, domain.DeliveryIDs(bands[0]))
	assert.Equal(t, []string{"d", "e"}, domain.DeliveryIDs(bands[1]))

	assert.Len(t, splitIntoBands(depot, points[:1], 3), 1)
	assert.Nil(t, splitIntoBands(depot, nil, 2))
}
