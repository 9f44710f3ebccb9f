package repositories

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"route-planner/internal/domain"
	"route-planner/internal/platform/db"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	conn, err := db.OpenSqlite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, InitSchema(conn))
	return conn
}

var shipDate = time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC)

func sampleDeliveries() []domain.DeliveryPoint {
	return []domain.DeliveryPoint{
		{ID: "d2", TenantID: "acme", ShipDate: shipDate, Latitude: -23.55, Longitude: -46.63, WeightKg: 12, VolumeCount: 2, RegionCode: "SP", CityName: "Sao Paulo"},
		{ID: "d1", TenantID: "acme", ShipDate: shipDate, Latitude: -22.90, Longitude: -47.06, WeightKg: 3, VolumeCount: 1, RegionCode: "SP", CityName: "Campinas"},
		{ID: "d3", TenantID: "acme", ShipDate: shipDate.AddDate(0, 0, 1), Latitude: -23.0, Longitude: -46.0, WeightKg: 1, VolumeCount: 1, RegionCode: "SP"},
		{ID: "d1", TenantID: "other", ShipDate: shipDate, Latitude: -23.0, Longitude: -46.0, WeightKg: 1, VolumeCount: 1, RegionCode: "SP"},
	}
}

func TestInitSchemaIsIdempotent(t *testing.T) {
	conn := newTestDB(t)
	require.NoError(t, InitSchema(conn))
}

func TestListDeliveriesFiltersByTenantAndDate(t *testing.T) {
	conn := newTestDB(t)
	repo := NewSQLDeliveryRepository(conn)
	ctx := context.Background()

	require.NoError(t, repo.UpsertDeliveries(ctx, sampleDeliveries()))

	got, err := repo.ListDeliveries(ctx, "acme", shipDate)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "d1", got[0].ID)
	assert.Equal(t, "d2", got[1].ID)
	assert.Equal(t, "Campinas", got[0].CityName)
	assert.True(t, got[0].ShipDate.Equal(shipDate))
	assert.Equal(t, 2, got[1].VolumeCount)
}

func TestUpsertDeliveriesRejectsInvalid(t *testing.T) {
	conn := newTestDB(t)
	repo := NewSQLDeliveryRepository(conn)

	err := repo.UpsertDeliveries(context.Background(), []domain.DeliveryPoint{
		{ID: "bad", TenantID: "acme", ShipDate: shipDate, Latitude: 120, Longitude: 0},
	})
	require.Error(t, err)
}

func TestReplaceClustersDeletesPriorRows(t *testing.T) {
	conn := newTestDB(t)
	repo := NewSQLPlanRepository(conn)
	ctx := context.Background()
	key := domain.PlanKey{TenantID: "acme", ShipDate: shipDate, K: 0}

	first := []domain.Cluster{
		{ClusterID: "0", Center: domain.Coordinates{Lat: -23, Lon: -46}, Members: sampleDeliveries()[:2]},
		{ClusterID: "1", Center: domain.Coordinates{Lat: -22, Lon: -47}, Members: sampleDeliveries()[2:3]},
	}
	require.NoError(t, repo.ReplaceClusters(ctx, key, first))

	second := []domain.Cluster{
		{ClusterID: "0", Center: domain.Coordinates{Lat: -23.5, Lon: -46.5}, CenterCity: "Sao Paulo", Members: sampleDeliveries()[:3]},
	}
	require.NoError(t, repo.ReplaceClusters(ctx, key, second))

	got, err := repo.ListClusters(ctx, key)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Sao Paulo", got[0].CenterCity)
	assert.ElementsMatch(t, []string{"d1", "d2", "d3"}, got[0].MemberIDs())

	other, err := repo.ListClusters(ctx, domain.PlanKey{TenantID: "acme", ShipDate: shipDate, K: 3})
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestReplaceRoutesRoundTrip(t *testing.T) {
	conn := newTestDB(t)
	repo := NewSQLPlanRepository(conn)
	ctx := context.Background()
	key := domain.PlanKey{TenantID: "acme", ShipDate: shipDate}

	route := domain.Route{
		RouteID:  "r1",
		Kind:     domain.RouteKindLastMile,
		TenantID: "acme",
		Stops: []domain.RouteStop{
			{Sequence: 0, StopID: "hub", Kind: domain.StopKindDepot, Coords: domain.Coordinates{Lat: -23, Lon: -46}},
			{Sequence: 1, StopID: "d1", Kind: domain.StopKindDelivery, DeliveryIDs: []string{"d1"}, Load: domain.Totals{WeightKg: 3, Volume: 1}},
		},
		Load:              domain.Totals{WeightKg: 3, Volume: 1},
		DistanceKm:        10,
		TransitTimeMin:    42,
		VehicleType:       "MOTO",
		VehicleCapacityKg: 30,
		Polyline:          []string{"abc"},
		OverrideTimeLimit: true,
	}
	require.NoError(t, repo.ReplaceRoutes(ctx, key, domain.RouteKindLastMile, []domain.Route{route}))
	require.NoError(t, repo.ReplaceRoutes(ctx, key, domain.RouteKindTransfer, []domain.Route{{RouteID: "t1", Kind: domain.RouteKindTransfer, VehicleType: "TRUCK"}}))

	route.RouteID = "r2"
	require.NoError(t, repo.ReplaceRoutes(ctx, key, domain.RouteKindLastMile, []domain.Route{route}))

	got, err := repo.ListRoutes(ctx, key, domain.RouteKindLastMile)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "r2", got[0].RouteID)
	assert.True(t, got[0].OverrideTimeLimit)
	assert.Equal(t, []string{"abc"}, got[0].Polyline)
	require.Len(t, got[0].Stops, 2)
	assert.Equal(t, []string{"d1"}, got[0].Stops[1].DeliveryIDs)
	assert.Equal(t, domain.StopKindDepot, got[0].Stops[0].Kind)

	transfers, err := repo.ListRoutes(ctx, key, domain.RouteKindTransfer)
	require.NoError(t, err)
	assert.Len(t, transfers, 1)

	var stopCount int
	require.NoError(t, conn.Get(&stopCount, `SELECT COUNT(*) FROM route_stops`))
	assert.Equal(t, 2, stopCount)
}

func TestTenantConfigNotConfigured(t *testing.T) {
	conn := newTestDB(t)
	repo := NewSQLTenantConfigRepository(conn)
	ctx := context.Background()

	_, err := repo.GetHub(ctx, "nobody")
	require.ErrorIs(t, err, domain.ErrNotConfigured)

	_, err = repo.ListTariffs(ctx, "nobody", domain.RouteKindLastMile)
	require.ErrorIs(t, err, domain.ErrNotConfigured)
}

func TestSeedFromJSON(t *testing.T) {
	conn := newTestDB(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"hubs": [{"tenant_id": "acme", "name": "CD Sao Paulo", "lat": -23.5, "lon": -46.6}],
		"tariffs": [
			{"tenant_id": "acme", "kind": "last_mile", "vehicle_type": "VAN", "min_kg": 30, "max_kg": 800},
			{"tenant_id": "acme", "kind": "last_mile", "vehicle_type": "MOTO", "min_kg": 0, "max_kg": 30, "depot_local_only": true}
		],
		"deliveries": [
			{"id": "d1", "tenant_id": "acme", "ship_date": "2024-03-18", "latitude": -23.6, "longitude": -46.7, "weight_kg": 2, "volume_count": 1, "region_code": "sp"}
		]
	}`), 0o600))

	require.NoError(t, SeedFromJSON(ctx, conn, path))
	// Seeding twice must not fail on the primary keys.
	require.NoError(t, SeedFromJSON(ctx, conn, path))

	cfg := NewSQLTenantConfigRepository(conn)
	hub, err := cfg.GetHub(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "CD Sao Paulo", hub.Name)
	assert.Equal(t, -23.5, hub.Coords.Lat)

	tariffs, err := cfg.ListTariffs(ctx, "acme", domain.RouteKindLastMile)
	require.NoError(t, err)
	require.Len(t, tariffs, 2)
	assert.Equal(t, "MOTO", tariffs[0].VehicleType)
	assert.True(t, tariffs[0].DepotLocalOnly)

	deliveries, err := NewSQLDeliveryRepository(conn).ListDeliveries(ctx, "acme", shipDate)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.Equal(t, "SP", deliveries[0].RegionCode)
}

func TestSeedFromJSONRejectsBadTariffKind(t *testing.T) {
	conn := newTestDB(t)
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"tariffs":[{"tenant_id":"a","kind":"air","vehicle_type":"X","min_kg":0,"max_kg":1}]}`), 0o600))

	require.Error(t, SeedFromJSON(context.Background(), conn, path))
}
