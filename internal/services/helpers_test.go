package services

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"route-planner/internal/adapters/routing"
	"route-planner/internal/domain"
	"route-planner/internal/platform/obs"
	"route-planner/internal/ports"
)

var testDate = time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

var saoPaulo = domain.Coordinates{Lat: -23.5505, Lon: -46.6333}

// straightLineOracle routes at 60 km/h in a straight line, so minutes equal km.
func straightLineOracle(t *testing.T) (*RouteOracle, *routing.MockBackend) {
	t.Helper()
	backend := routing.NewMockBackend("mock", nil)
	return NewRouteOracle(newMemRouteCache(), nil, obs.Discard(), backend), backend
}

func delivery(id string, lat, lon, kg float64) domain.DeliveryPoint {
	return domain.DeliveryPoint{
		ID:          id,
		TenantID:    "acme",
		ShipDate:    testDate,
		Latitude:    lat,
		Longitude:   lon,
		WeightKg:    kg,
		VolumeCount: 1,
		RegionCode:  "SP",
		CityName:    "São Paulo",
	}
}

// scatter places n deliveries uniformly in a square of side 2*spread degrees.
func scatter(n int, center domain.Coordinates, spread float64, seed uint64) []domain.DeliveryPoint {
	rng := rand.New(rand.NewPCG(seed, 99))
	out := make([]domain.DeliveryPoint, n)
	for i := range out {
		out[i] = delivery(
			fmt.Sprintf("D%03d", i+1),
			center.Lat+(rng.Float64()*2-1)*spread,
			center.Lon+(rng.Float64()*2-1)*spread,
			1+rng.Float64()*9,
		)
	}
	return out
}

func memberIDs(clusters []domain.Cluster) []string {
	var ids []string
	for _, c := range clusters {
		ids = append(ids, c.MemberIDs()...)
	}
	return ids
}

type memRouteCache struct {
	mu sync.Mutex
	m  map[ports.RouteCacheKey]domain.RouteResult
}

func newMemRouteCache() *memRouteCache {
	return &memRouteCache{m: make(map[ports.RouteCacheKey]domain.RouteResult)}
}

func (c *memRouteCache) Get(_ context.Context, key ports.RouteCacheKey) (domain.RouteResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.m[key]
	return r, ok, nil
}

func (c *memRouteCache) Put(_ context.Context, key ports.RouteCacheKey, r domain.RouteResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.m[key]; !ok {
		c.m[key] = r
	}
	return nil
}

func (c *memRouteCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}

type memDeliveries struct {
	points []domain.DeliveryPoint
	err    error
}

func (m *memDeliveries) ListDeliveries(_ context.Context, tenantID string, shipDate time.Time) ([]domain.DeliveryPoint, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.DeliveryPoint
	for _, p := range m.points {
		if p.TenantID == tenantID && p.ShipDate.Equal(shipDate) {
			out = append(out, p)
		}
	}
	return out, nil
}

type memTenants struct {
	hub     *domain.Hub
	tariffs map[domain.RouteKind]domain.TariffTable
}

func (m *memTenants) GetHub(_ context.Context, tenantID string) (domain.Hub, error) {
	if m.hub == nil || m.hub.TenantID != tenantID {
		return domain.Hub{}, fmt.Errorf("get hub %s: %w", tenantID, domain.ErrNotConfigured)
	}
	return *m.hub, nil
}

func (m *memTenants) ListTariffs(_ context.Context, tenantID string, kind domain.RouteKind) (domain.TariffTable, error) {
	t, ok := m.tariffs[kind]
	if !ok {
		return nil, fmt.Errorf("list tariffs %s/%s: %w", tenantID, kind, domain.ErrNotConfigured)
	}
	return t, nil
}

type memPlans struct {
	mu       sync.Mutex
	clusters map[domain.PlanKey][]domain.Cluster
	routes   map[domain.RouteKind][]domain.Route
}

func newMemPlans() *memPlans {
	return &memPlans{
		clusters: make(map[domain.PlanKey][]domain.Cluster),
		routes:   make(map[domain.RouteKind][]domain.Route),
	}
}

func (m *memPlans) ReplaceClusters(_ context.Context, key domain.PlanKey, clusters []domain.Cluster) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clusters[key] = clusters
	return nil
}

func (m *memPlans) ReplaceRoutes(_ context.Context, _ domain.PlanKey, kind domain.RouteKind, routes []domain.Route) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes[kind] = routes
	return nil
}

func lastMileTariffs() domain.TariffTable {
	return domain.TariffTable{
		{VehicleType: "MOTO", MinKg: 0, MaxKg: 30, DepotLocalOnly: true},
		{VehicleType: "FIORINO", MinKg: 30, MaxKg: 500},
		{VehicleType: "VAN", MinKg: 500, MaxKg: 1500},
	}
}

func transferTariffs() domain.TariffTable {
	return domain.TariffTable{
		{VehicleType: "TOCO", MinKg: 0, MaxKg: 6000},
		{VehicleType: "CARRETA", MinKg: 6000, MaxKg: 27000},
	}
}
