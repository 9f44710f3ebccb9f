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

func defaultClusterOptions() ClusterOptions {
	return ClusterOptions{KMin: 2, KMax: 10, TargetMinPerCluster: 25, MergeSmallClusters: true, Seed: 42}
}

func newTestClusterer() *Clusterer {
	return NewClusterer(NewCentroidFinder(CenterKDE, 42), nil, obs.Discard())
}

func TestClusterIsDeterministic(t *testing.T) {
	points := scatter(100, saoPaulo, 0.5, 1)
	c := newTestClusterer()

	first, err := c.Cluster(context.Background(), points, defaultClusterOptions())
	require.NoError(t, err)
	second, err := c.Cluster(context.Background(), points, defaultClusterOptions())
	require.NoError(t, err)

	require.Equal(t, len(first.Clusters), len(second.Clusters))
	for i := range first.Clusters {
		assert.Equal(t, first.Clusters[i].ClusterID, second.Clusters[i].ClusterID)
		assert.Equal(t, first.Clusters[i].MemberIDs(), second.Clusters[i].MemberIDs())
		assert.Equal(t, first.Clusters[i].Center, second.Clusters[i].Center)
	}
}

func TestClusterUniformScenario(t *testing.T) {
	points := scatter(100, saoPaulo, 0.5, 2)

	res, err := newTestClusterer().Cluster(context.Background(), points, defaultClusterOptions())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, res.K, 2)
	assert.LessOrEqual(t, res.K, 10)
	require.NotEmpty(t, res.Clusters)
	assert.LessOrEqual(t, len(res.Clusters), 10)

	ids := memberIDs(res.Clusters)
	sort.Strings(ids)
	want := domain.DeliveryIDs(points)
	sort.Strings(want)
	assert.Equal(t, want, ids, "every point lands in exactly one cluster")

	if len(res.Clusters) > 1 {
		for _, cl := range res.Clusters {
			assert.GreaterOrEqual(t, len(cl.Members), 25, "cluster %s is undersized", cl.ClusterID)
		}
	}
	for i, cl := range res.Clusters {
		assert.Equal(t, "C"+string(rune('1'+i)), cl.ClusterID)
		assert.Equal(t, "São Paulo", cl.CenterCity)
	}
}

func TestClusterWithKCoincidentPoints(t *testing.T) {
	var points []domain.DeliveryPoint
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		points = append(points, delivery(id, -23.5, -46.6, 1))
	}

	res, err := newTestClusterer().ClusterWithK(context.Background(), points, 3, ClusterOptions{Seed: 1})
	require.NoError(t, err)

	require.Len(t, res.Clusters, 1)
	assert.Equal(t, 1, res.K)
	assert.Len(t, res.Clusters[0].Members, 5)
}

func TestClusterEmptyInput(t *testing.T) {
	res, err := newTestClusterer().Cluster(context.Background(), nil, defaultClusterOptions())
	require.NoError(t, err)
	assert.Empty(t, res.Clusters)
}

func TestChooseKFallsBackOnShortRange(t *testing.T) {
	c := newTestClusterer()
	points := coordsOf(scatter(100, saoPaulo, 0.5, 3))

	k, fallback := c.chooseK(points, ClusterOptions{KMin: 2, KMax: 3, TargetMinPerCluster: 25})

	assert.True(t, fallback)
	assert.Equal(t, 3, k, "max(2, 100/25) capped at KMax")
}

func TestElbowIndex(t *testing.T) {
	assert.Equal(t, 1, elbowIndex([]float64{1, 2, 3, 4, 5}, []float64{100, 30, 20, 15, 12}))
	assert.Equal(t, -1, elbowIndex([]float64{1, 2, 3}, []float64{4, 3, 2}), "a straight line has no elbow")
	assert.Equal(t, -1, elbowIndex([]float64{1, 2}, []float64{4, 3}))
}

func clusterAt(center domain.Coordinates, prefix string, n int) domain.Cluster {
	members := make([]domain.DeliveryPoint, n)
	for i := range members {
		members[i] = delivery(prefix+string(rune('a'+i)), center.Lat+float64(i)*0.001, center.Lon, 1)
	}
	return domain.Cluster{Center: center, Members: members}
}

func TestMergeSmallNearestByCenter(t *testing.T) {
	c := newTestClusterer()
	clusters := []domain.Cluster{
		clusterAt(domain.Coordinates{Lat: 0, Lon: 0}, "A", 10),
		clusterAt(domain.Coordinates{Lat: 0, Lon: 1}, "B", 2),
		clusterAt(domain.Coordinates{Lat: 0, Lon: 5}, "C", 5),
	}

	out, err := c.mergeSmall(clusters, ClusterOptions{TargetMinPerCluster: 5})
	require.NoError(t, err)

	require.Len(t, out, 2)
	assert.Len(t, out[0].Members, 12, "B joins its nearest neighbour A")
	assert.Len(t, out[1].Members, 5)
}

func TestMergeSmallRespectsCapacity(t *testing.T) {
	c := newTestClusterer()
	clusters := []domain.Cluster{
		clusterAt(domain.Coordinates{Lat: 0, Lon: 0}, "A", 10),
		clusterAt(domain.Coordinates{Lat: 0, Lon: 1}, "B", 2),
		clusterAt(domain.Coordinates{Lat: 0, Lon: 5}, "C", 5),
	}

	out, err := c.mergeSmall(clusters, ClusterOptions{TargetMinPerCluster: 5, MaxMembersPerCluster: 11})
	require.NoError(t, err)

	require.Len(t, out, 2)
	assert.Len(t, out[0].Members, 10)
	assert.Len(t, out[1].Members, 7, "A is full, so B joins C")
}

func TestMergeSmallConvergesToOneCluster(t *testing.T) {
	c := newTestClusterer()
	clusters := []domain.Cluster{
		clusterAt(domain.Coordinates{Lat: 0, Lon: 0}, "A", 3),
		clusterAt(domain.Coordinates{Lat: 0, Lon: 1}, "B", 2),
	}

	out, err := c.mergeSmall(clusters, ClusterOptions{TargetMinPerCluster: 25})
	require.NoError(t, err)

	require.Len(t, out, 1)
	assert.Len(t, out[0].Members, 5)
}

type stubReverse struct {
	loc domain.Locality
	err error
}

func (s stubReverse) Reverse(context.Context, domain.Coordinates) (domain.Locality, error) {
	return s.loc, s.err
}

func TestClusterSnapsToLocality(t *testing.T) {
	points := scatter(20, saoPaulo, 0.05, 4)
	campinas := domain.Locality{Name: "Campinas", Coords: domain.Coordinates{Lat: -22.9056, Lon: -47.0608}}
	c := NewClusterer(NewCentroidFinder(CenterKDE, 1), stubReverse{loc: campinas}, obs.Discard())

	res, err := c.ClusterWithK(context.Background(), points, 1, ClusterOptions{SnapCenterToLocality: true})
	require.NoError(t, err)
	require.Len(t, res.Clusters, 1)
	assert.Equal(t, "Campinas", res.Clusters[0].CenterCity)
	assert.Equal(t, campinas.Coords, res.Clusters[0].Center)

	failing := NewClusterer(nil, stubReverse{err: errors.New("boom")}, obs.Discard())
	res, err = failing.ClusterWithK(context.Background(), points, 1, ClusterOptions{})
	require.NoError(t, err)
	require.Len(t, res.Clusters, 1)
	assert.Equal(t, "São Paulo", res.Clusters[0].CenterCity, "falls back to member cities")
	assert.Len(t, res.Warnings, 1)
}
