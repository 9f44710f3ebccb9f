package repositories

import (
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// InitSchema creates every table the planner uses. The DDL is kept to the
// subset postgres and sqlite share: dates are TEXT (YYYY-MM-DD), booleans
// are INTEGER 0/1 and timestamps are unix seconds.
func InitSchema(db *sqlx.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createDeliveriesQuery := `
	CREATE TABLE IF NOT EXISTS deliveries (
		id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		ship_date TEXT NOT NULL,
		latitude DOUBLE PRECISION NOT NULL,
		longitude DOUBLE PRECISION NOT NULL,
		weight_kg DOUBLE PRECISION NOT NULL DEFAULT 0,
		volume_count INTEGER NOT NULL DEFAULT 0,
		declared_value DOUBLE PRECISION NOT NULL DEFAULT 0,
		freight_value DOUBLE PRECISION NOT NULL DEFAULT 0,
		region_code TEXT NOT NULL DEFAULT '',
		city_name TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (tenant_id, id)
	);
	`

	createDeliveriesIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_deliveries_tenant_date
	ON deliveries(tenant_id, ship_date);
	`

	createClustersQuery := `
	CREATE TABLE IF NOT EXISTS clusters (
		tenant_id TEXT NOT NULL,
		ship_date TEXT NOT NULL,
		k INTEGER NOT NULL,
		cluster_id TEXT NOT NULL,
		center_lat DOUBLE PRECISION NOT NULL,
		center_lon DOUBLE PRECISION NOT NULL,
		center_city TEXT NOT NULL DEFAULT '',
		member_count INTEGER NOT NULL,
		total_weight_kg DOUBLE PRECISION NOT NULL,
		total_volume INTEGER NOT NULL,
		PRIMARY KEY (tenant_id, ship_date, k, cluster_id)
	);
	`

	createClusterMembersQuery := `
	CREATE TABLE IF NOT EXISTS cluster_members (
		tenant_id TEXT NOT NULL,
		ship_date TEXT NOT NULL,
		k INTEGER NOT NULL,
		cluster_id TEXT NOT NULL,
		delivery_id TEXT NOT NULL,
		PRIMARY KEY (tenant_id, ship_date, k, delivery_id)
	);
	`

	createRoutesQuery := `
	CREATE TABLE IF NOT EXISTS routes (
		route_id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		ship_date TEXT NOT NULL,
		k INTEGER NOT NULL,
		kind TEXT NOT NULL,
		cluster_id TEXT NOT NULL DEFAULT '',
		subcluster_id TEXT NOT NULL DEFAULT '',
		total_weight_kg DOUBLE PRECISION NOT NULL,
		total_volume INTEGER NOT NULL,
		declared_value DOUBLE PRECISION NOT NULL,
		freight_value DOUBLE PRECISION NOT NULL,
		outbound_km DOUBLE PRECISION NOT NULL,
		outbound_min DOUBLE PRECISION NOT NULL,
		return_km DOUBLE PRECISION NOT NULL,
		return_min DOUBLE PRECISION NOT NULL,
		service_min DOUBLE PRECISION NOT NULL,
		distance_km DOUBLE PRECISION NOT NULL,
		transit_time_min DOUBLE PRECISION NOT NULL,
		vehicle_type TEXT NOT NULL,
		vehicle_capacity_kg DOUBLE PRECISION NOT NULL,
		polyline TEXT NOT NULL DEFAULT '',
		override_time_limit INTEGER NOT NULL DEFAULT 0
	);
	`

	createRoutesIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_routes_plan
	ON routes(tenant_id, ship_date, k, kind);
	`

	createRouteStopsQuery := `
	CREATE TABLE IF NOT EXISTS route_stops (
		route_id TEXT NOT NULL,
		sequence INTEGER NOT NULL,
		stop_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		lat DOUBLE PRECISION NOT NULL,
		lon DOUBLE PRECISION NOT NULL,
		city TEXT NOT NULL DEFAULT '',
		weight_kg DOUBLE PRECISION NOT NULL,
		volume INTEGER NOT NULL,
		delivery_ids TEXT NOT NULL DEFAULT '',
		distance_from_prev_km DOUBLE PRECISION NOT NULL,
		arrive_at_min DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (route_id, sequence)
	);
	`

	createRouteCacheQuery := `
	CREATE TABLE IF NOT EXISTS route_cache (
		origin TEXT NOT NULL,
		destination TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		distance_km DOUBLE PRECISION NOT NULL,
		time_min DOUBLE PRECISION NOT NULL,
		polyline TEXT NOT NULL DEFAULT '',
		created_unix BIGINT NOT NULL,
		PRIMARY KEY (origin, destination, tenant_id)
	);
	`

	createLocalityCacheQuery := `
	CREATE TABLE IF NOT EXISTS locality_cache (
		coord_key TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		region_code TEXT NOT NULL DEFAULT '',
		lat DOUBLE PRECISION NOT NULL,
		lon DOUBLE PRECISION NOT NULL
	);
	`

	createTariffsQuery := `
	CREATE TABLE IF NOT EXISTS tariffs (
		tenant_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		vehicle_type TEXT NOT NULL,
		min_kg DOUBLE PRECISION NOT NULL,
		max_kg DOUBLE PRECISION NOT NULL,
		depot_local_only INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (tenant_id, kind, vehicle_type)
	);
	`

	createHubsQuery := `
	CREATE TABLE IF NOT EXISTS hubs (
		tenant_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		lat DOUBLE PRECISION NOT NULL,
		lon DOUBLE PRECISION NOT NULL
	);
	`

	statements := []string{
		createDeliveriesQuery,
		createDeliveriesIndexQuery,
		createClustersQuery,
		createClusterMembersQuery,
		createRoutesQuery,
		createRoutesIndexQuery,
		createRouteStopsQuery,
		createRouteCacheQuery,
		createLocalityCacheQuery,
		createTariffsQuery,
		createHubsQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}
