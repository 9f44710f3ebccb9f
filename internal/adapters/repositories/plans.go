package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"route-planner/internal/domain"
)

// SQL-backed implementation of the PlanRepository port. Each Replace call
// deletes every prior row for the plan key and inserts the new set in one
// transaction, so re-runs are idempotent and readers never see a mix.
type SQLPlanRepository struct{ DB *sqlx.DB }

func NewSQLPlanRepository(db *sqlx.DB) *SQLPlanRepository {
	return &SQLPlanRepository{DB: db}
}

type clusterRow struct {
	TenantID      string  `db:"tenant_id"`
	ShipDate      string  `db:"ship_date"`
	K             int     `db:"k"`
	ClusterID     string  `db:"cluster_id"`
	CenterLat     float64 `db:"center_lat"`
	CenterLon     float64 `db:"center_lon"`
	CenterCity    string  `db:"center_city"`
	MemberCount   int     `db:"member_count"`
	TotalWeightKg float64 `db:"total_weight_kg"`
	TotalVolume   int     `db:"total_volume"`
}

type clusterMemberRow struct {
	TenantID   string `db:"tenant_id"`
	ShipDate   string `db:"ship_date"`
	K          int    `db:"k"`
	ClusterID  string `db:"cluster_id"`
	DeliveryID string `db:"delivery_id"`
}

type routeRow struct {
	RouteID           string  `db:"route_id"`
	TenantID          string  `db:"tenant_id"`
	ShipDate          string  `db:"ship_date"`
	K                 int     `db:"k"`
	Kind              string  `db:"kind"`
	ClusterID         string  `db:"cluster_id"`
	SubClusterID      string  `db:"subcluster_id"`
	TotalWeightKg     float64 `db:"total_weight_kg"`
	TotalVolume       int     `db:"total_volume"`
	DeclaredValue     float64 `db:"declared_value"`
	FreightValue      float64 `db:"freight_value"`
	OutboundKm        float64 `db:"outbound_km"`
	OutboundMin       float64 `db:"outbound_min"`
	ReturnKm          float64 `db:"return_km"`
	ReturnMin         float64 `db:"return_min"`
	ServiceMin        float64 `db:"service_min"`
	DistanceKm        float64 `db:"distance_km"`
	TransitTimeMin    float64 `db:"transit_time_min"`
	VehicleType       string  `db:"vehicle_type"`
	VehicleCapacityKg float64 `db:"vehicle_capacity_kg"`
	Polyline          string  `db:"polyline"`
	OverrideTimeLimit int     `db:"override_time_limit"`
}

type routeStopRow struct {
	RouteID            string  `db:"route_id"`
	Sequence           int     `db:"sequence"`
	StopID             string  `db:"stop_id"`
	Kind               string  `db:"kind"`
	Lat                float64 `db:"lat"`
	Lon                float64 `db:"lon"`
	City               string  `db:"city"`
	WeightKg           float64 `db:"weight_kg"`
	Volume             int     `db:"volume"`
	DeliveryIDs        string  `db:"delivery_ids"`
	DistanceFromPrevKm float64 `db:"distance_from_prev_km"`
	ArriveAtMin        float64 `db:"arrive_at_min"`
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *SQLPlanRepository) ReplaceClusters(ctx context.Context, key domain.PlanKey, clusters []domain.Cluster) error {
	if s.DB == nil {
		return errors.New("sql plan repository: DB is nil")
	}

	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace clusters: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	date := key.DateString()
	for _, table := range []string{"cluster_members", "clusters"} {
		q := tx.Rebind(`DELETE FROM ` + table + ` WHERE tenant_id = ? AND ship_date = ? AND k = ?;`)
		if _, err := tx.ExecContext(ctx, q, key.TenantID, date, key.K); err != nil {
			return fmt.Errorf("replace clusters: delete %s: %w", table, err)
		}
	}

	for _, c := range clusters {
		totals := c.Totals()
		_, err := tx.NamedExecContext(ctx, `
		INSERT INTO clusters (
			tenant_id, ship_date, k, cluster_id, center_lat, center_lon, center_city,
			member_count, total_weight_kg, total_volume
		)
		VALUES (
			:tenant_id, :ship_date, :k, :cluster_id, :center_lat, :center_lon, :center_city,
			:member_count, :total_weight_kg, :total_volume
		);
		`, clusterRow{
			TenantID:      key.TenantID,
			ShipDate:      date,
			K:             key.K,
			ClusterID:     c.ClusterID,
			CenterLat:     c.Center.Lat,
			CenterLon:     c.Center.Lon,
			CenterCity:    c.CenterCity,
			MemberCount:   len(c.Members),
			TotalWeightKg: totals.WeightKg,
			TotalVolume:   totals.Volume,
		})
		if err != nil {
			return fmt.Errorf("replace clusters: insert cluster %s: %w", c.ClusterID, err)
		}

		if len(c.Members) == 0 {
			continue
		}
		members := make([]clusterMemberRow, 0, len(c.Members))
		for _, m := range c.Members {
			members = append(members, clusterMemberRow{
				TenantID:   key.TenantID,
				ShipDate:   date,
				K:          key.K,
				ClusterID:  c.ClusterID,
				DeliveryID: m.ID,
			})
		}
		if err := insertEach(ctx, tx, `
		INSERT INTO cluster_members (tenant_id, ship_date, k, cluster_id, delivery_id)
		VALUES (:tenant_id, :ship_date, :k, :cluster_id, :delivery_id);
		`, members); err != nil {
			return fmt.Errorf("replace clusters: insert members of %s: %w", c.ClusterID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace clusters: commit tx: %w", err)
	}
	return nil
}

// ListClusters returns the persisted clusters of a plan with their member ids
// filled in as bare DeliveryPoints (ID only).
func (s *SQLPlanRepository) ListClusters(ctx context.Context, key domain.PlanKey) ([]domain.Cluster, error) {
	if s.DB == nil {
		return nil, errors.New("sql plan repository: DB is nil")
	}

	date := key.DateString()

	var rows []clusterRow
	q := s.DB.Rebind(`
	SELECT tenant_id, ship_date, k, cluster_id, center_lat, center_lon, center_city,
		member_count, total_weight_kg, total_volume
	FROM clusters
	WHERE tenant_id = ? AND ship_date = ? AND k = ?
	ORDER BY cluster_id;
	`)
	if err := s.DB.SelectContext(ctx, &rows, q, key.TenantID, date, key.K); err != nil {
		return nil, fmt.Errorf("list clusters: query clusters table: %w", err)
	}

	var members []clusterMemberRow
	q = s.DB.Rebind(`
	SELECT tenant_id, ship_date, k, cluster_id, delivery_id
	FROM cluster_members
	WHERE tenant_id = ? AND ship_date = ? AND k = ?
	ORDER BY delivery_id;
	`)
	if err := s.DB.SelectContext(ctx, &members, q, key.TenantID, date, key.K); err != nil {
		return nil, fmt.Errorf("list clusters: query cluster_members table: %w", err)
	}

	byCluster := make(map[string][]domain.DeliveryPoint, len(rows))
	for _, m := range members {
		byCluster[m.ClusterID] = append(byCluster[m.ClusterID], domain.DeliveryPoint{ID: m.DeliveryID, TenantID: m.TenantID})
	}

	out := make([]domain.Cluster, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Cluster{
			ClusterID:  r.ClusterID,
			Center:     domain.Coordinates{Lat: r.CenterLat, Lon: r.CenterLon},
			CenterCity: r.CenterCity,
			Members:    byCluster[r.ClusterID],
		})
	}
	return out, nil
}

func (s *SQLPlanRepository) ReplaceRoutes(
	ctx context.Context,
	key domain.PlanKey,
	kind domain.RouteKind,
	routes []domain.Route,
) error {
	if s.DB == nil {
		return errors.New("sql plan repository: DB is nil")
	}

	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace routes: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	date := key.DateString()

	deleteStops := tx.Rebind(`
	DELETE FROM route_stops
	WHERE route_id IN (
		SELECT route_id FROM routes WHERE tenant_id = ? AND ship_date = ? AND k = ? AND kind = ?
	);
	`)
	if _, err := tx.ExecContext(ctx, deleteStops, key.TenantID, date, key.K, string(kind)); err != nil {
		return fmt.Errorf("replace routes: delete route_stops: %w", err)
	}

	deleteRoutes := tx.Rebind(`DELETE FROM routes WHERE tenant_id = ? AND ship_date = ? AND k = ? AND kind = ?;`)
	if _, err := tx.ExecContext(ctx, deleteRoutes, key.TenantID, date, key.K, string(kind)); err != nil {
		return fmt.Errorf("replace routes: delete routes: %w", err)
	}

	for _, r := range routes {
		polyline, err := json.Marshal(r.Polyline)
		if err != nil {
			return fmt.Errorf("replace routes: encode polyline of %s: %w", r.RouteID, err)
		}

		_, err = tx.NamedExecContext(ctx, `
		INSERT INTO routes (
			route_id, tenant_id, ship_date, k, kind, cluster_id, subcluster_id,
			total_weight_kg, total_volume, declared_value, freight_value,
			outbound_km, outbound_min, return_km, return_min, service_min,
			distance_km, transit_time_min, vehicle_type, vehicle_capacity_kg,
			polyline, override_time_limit
		)
		VALUES (
			:route_id, :tenant_id, :ship_date, :k, :kind, :cluster_id, :subcluster_id,
			:total_weight_kg, :total_volume, :declared_value, :freight_value,
			:outbound_km, :outbound_min, :return_km, :return_min, :service_min,
			:distance_km, :transit_time_min, :vehicle_type, :vehicle_capacity_kg,
			:polyline, :override_time_limit
		);
		`, routeRow{
			RouteID:           r.RouteID,
			TenantID:          key.TenantID,
			ShipDate:          date,
			K:                 key.K,
			Kind:              string(kind),
			ClusterID:         r.ClusterID,
			SubClusterID:      r.SubClusterID,
			TotalWeightKg:     r.Load.WeightKg,
			TotalVolume:       r.Load.Volume,
			DeclaredValue:     r.Load.DeclaredValue,
			FreightValue:      r.Load.FreightValue,
			OutboundKm:        r.OutboundKm,
			OutboundMin:       r.OutboundMin,
			ReturnKm:          r.ReturnKm,
			ReturnMin:         r.ReturnMin,
			ServiceMin:        r.ServiceMin,
			DistanceKm:        r.DistanceKm,
			TransitTimeMin:    r.TransitTimeMin,
			VehicleType:       r.VehicleType,
			VehicleCapacityKg: r.VehicleCapacityKg,
			Polyline:          string(polyline),
			OverrideTimeLimit: boolToInt(r.OverrideTimeLimit),
		})
		if err != nil {
			return fmt.Errorf("replace routes: insert route %s: %w", r.RouteID, err)
		}

		if len(r.Stops) == 0 {
			continue
		}
		stops := make([]routeStopRow, 0, len(r.Stops))
		for _, st := range r.Stops {
			stops = append(stops, routeStopRow{
				RouteID:            r.RouteID,
				Sequence:           st.Sequence,
				StopID:             st.StopID,
				Kind:               string(st.Kind),
				Lat:                st.Coords.Lat,
				Lon:                st.Coords.Lon,
				City:               st.City,
				WeightKg:           st.Load.WeightKg,
				Volume:             st.Load.Volume,
				DeliveryIDs:        strings.Join(st.DeliveryIDs, ","),
				DistanceFromPrevKm: st.DistanceFromPrevKm,
				ArriveAtMin:        st.ArriveAtMin,
			})
		}
		if err := insertEach(ctx, tx, `
		INSERT INTO route_stops (
			route_id, sequence, stop_id, kind, lat, lon, city, weight_kg, volume,
			delivery_ids, distance_from_prev_km, arrive_at_min
		)
		VALUES (
			:route_id, :sequence, :stop_id, :kind, :lat, :lon, :city, :weight_kg, :volume,
			:delivery_ids, :distance_from_prev_km, :arrive_at_min
		);
		`, stops); err != nil {
			return fmt.Errorf("replace routes: insert stops of %s: %w", r.RouteID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace routes: commit tx: %w", err)
	}
	return nil
}

// ListRoutes returns the persisted routes of one kind with their stops.
func (s *SQLPlanRepository) ListRoutes(ctx context.Context, key domain.PlanKey, kind domain.RouteKind) ([]domain.Route, error) {
	if s.DB == nil {
		return nil, errors.New("sql plan repository: DB is nil")
	}

	date := key.DateString()

	var rows []routeRow
	q := s.DB.Rebind(`
	SELECT route_id, tenant_id, ship_date, k, kind, cluster_id, subcluster_id,
		total_weight_kg, total_volume, declared_value, freight_value,
		outbound_km, outbound_min, return_km, return_min, service_min,
		distance_km, transit_time_min, vehicle_type, vehicle_capacity_kg,
		polyline, override_time_limit
	FROM routes
	WHERE tenant_id = ? AND ship_date = ? AND k = ? AND kind = ?
	ORDER BY cluster_id, route_id;
	`)
	if err := s.DB.SelectContext(ctx, &rows, q, key.TenantID, date, key.K, string(kind)); err != nil {
		return nil, fmt.Errorf("list routes: query routes table: %w", err)
	}

	var stops []routeStopRow
	q = s.DB.Rebind(`
	SELECT s.route_id, s.sequence, s.stop_id, s.kind, s.lat, s.lon, s.city, s.weight_kg,
		s.volume, s.delivery_ids, s.distance_from_prev_km, s.arrive_at_min
	FROM route_stops s
	JOIN routes r ON r.route_id = s.route_id
	WHERE r.tenant_id = ? AND r.ship_date = ? AND r.k = ? AND r.kind = ?
	ORDER BY s.route_id, s.sequence;
	`)
	if err := s.DB.SelectContext(ctx, &stops, q, key.TenantID, date, key.K, string(kind)); err != nil {
		return nil, fmt.Errorf("list routes: query route_stops table: %w", err)
	}

	byRoute := make(map[string][]domain.RouteStop, len(rows))
	for _, st := range stops {
		var ids []string
		if st.DeliveryIDs != "" {
			ids = strings.Split(st.DeliveryIDs, ",")
		}
		byRoute[st.RouteID] = append(byRoute[st.RouteID], domain.RouteStop{
			Sequence:           st.Sequence,
			StopID:             st.StopID,
			Kind:               domain.StopKind(st.Kind),
			Coords:             domain.Coordinates{Lat: st.Lat, Lon: st.Lon},
			City:               st.City,
			Load:               domain.Totals{WeightKg: st.WeightKg, Volume: st.Volume},
			DeliveryIDs:        ids,
			DistanceFromPrevKm: st.DistanceFromPrevKm,
			ArriveAtMin:        st.ArriveAtMin,
		})
	}

	out := make([]domain.Route, 0, len(rows))
	for _, r := range rows {
		var polyline []string
		if r.Polyline != "" {
			if err := json.Unmarshal([]byte(r.Polyline), &polyline); err != nil {
				return nil, fmt.Errorf("list routes: decode polyline of %s: %w", r.RouteID, err)
			}
		}
		out = append(out, domain.Route{
			RouteID:      r.RouteID,
			Kind:         domain.RouteKind(r.Kind),
			TenantID:     r.TenantID,
			ShipDate:     key.ShipDate,
			K:            r.K,
			ClusterID:    r.ClusterID,
			SubClusterID: r.SubClusterID,
			Stops:        byRoute[r.RouteID],
			Load: domain.Totals{
				WeightKg:      r.TotalWeightKg,
				Volume:        r.TotalVolume,
				DeclaredValue: r.DeclaredValue,
				FreightValue:  r.FreightValue,
			},
			OutboundKm:        r.OutboundKm,
			OutboundMin:       r.OutboundMin,
			ReturnKm:          r.ReturnKm,
			ReturnMin:         r.ReturnMin,
			ServiceMin:        r.ServiceMin,
			DistanceKm:        r.DistanceKm,
			TransitTimeMin:    r.TransitTimeMin,
			VehicleType:       r.VehicleType,
			VehicleCapacityKg: r.VehicleCapacityKg,
			Polyline:          polyline,
			OverrideTimeLimit: r.OverrideTimeLimit != 0,
		})
	}
	return out, nil
}

// insertEach runs a named insert for every row through one prepared statement.
func insertEach[T any](ctx context.Context, tx *sqlx.Tx, query string, rows []T) error {
	stmt, err := tx.PrepareNamedContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range rows {
		if _, err := stmt.ExecContext(ctx, r); err != nil {
			return fmt.Errorf("insert row #%d: %w", i+1, err)
		}
	}
	return nil
}
