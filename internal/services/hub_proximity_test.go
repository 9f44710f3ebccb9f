package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"route-planner/internal/domain"
)

func TestSplitByHub(t *testing.T) {
	hub := domain.Coordinates{Lat: 0, Lon: 0}
	near := delivery("near", 0, 0.05, 1)  // ~5.6 km
	edge := delivery("edge", 0, 0.089, 1) // ~9.9 km
	far := delivery("far", 0, 0.5, 1)     // ~55 km

	hubPoints, rest := SplitByHub([]domain.DeliveryPoint{near, edge, far}, hub, 10)
	assert.Equal(t, []string{"near", "edge"}, domain.DeliveryIDs(hubPoints))
	assert.Equal(t, []string{"far"}, domain.DeliveryIDs(rest))

	hubPoints, rest = SplitByHub([]domain.DeliveryPoint{near, far}, hub, 0)
	assert.Empty(t, hubPoints, "non-positive radius disables the hub bucket")
	assert.Len(t, rest, 2)
}

func TestHubCluster(t *testing.T) {
	hub := domain.Hub{TenantID: "acme", Name: "CD Centro", Coords: saoPaulo}

	cl := HubCluster(hub, []domain.DeliveryPoint{delivery("a", -23.55, -46.63, 1)})
	assert.Equal(t, domain.HubClusterID, cl.ClusterID)
	assert.True(t, cl.IsHub())
	assert.Equal(t, saoPaulo, cl.Center)
	assert.Equal(t, "São Paulo", cl.CenterCity)

	unnamed := delivery("b", -23.55, -46.63, 1)
	unnamed.CityName = ""
	cl = HubCluster(hub, []domain.DeliveryPoint{unnamed})
	assert.Equal(t, "CD Centro", cl.CenterCity)
}
