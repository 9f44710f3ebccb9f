package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"route-planner/internal/domain"
)

// SQL-backed implementation of the DeliveryRepository port.
type SQLDeliveryRepository struct{ DB *sqlx.DB }

func NewSQLDeliveryRepository(db *sqlx.DB) *SQLDeliveryRepository {
	return &SQLDeliveryRepository{DB: db}
}

type deliveryRow struct {
	ID            string  `db:"id"`
	TenantID      string  `db:"tenant_id"`
	ShipDate      string  `db:"ship_date"`
	Latitude      float64 `db:"latitude"`
	Longitude     float64 `db:"longitude"`
	WeightKg      float64 `db:"weight_kg"`
	VolumeCount   int     `db:"volume_count"`
	DeclaredValue float64 `db:"declared_value"`
	FreightValue  float64 `db:"freight_value"`
	RegionCode    string  `db:"region_code"`
	CityName      string  `db:"city_name"`
}

func (r deliveryRow) toDomain() (domain.DeliveryPoint, error) {
	date, err := time.Parse(time.DateOnly, r.ShipDate)
	if err != nil {
		return domain.DeliveryPoint{}, fmt.Errorf("delivery %s: parse ship_date %q: %w", r.ID, r.ShipDate, err)
	}
	return domain.DeliveryPoint{
		ID:            r.ID,
		TenantID:      r.TenantID,
		ShipDate:      date,
		Latitude:      r.Latitude,
		Longitude:     r.Longitude,
		WeightKg:      r.WeightKg,
		VolumeCount:   r.VolumeCount,
		DeclaredValue: r.DeclaredValue,
		FreightValue:  r.FreightValue,
		RegionCode:    r.RegionCode,
		CityName:      r.CityName,
	}, nil
}

func deliveryRowFrom(d domain.DeliveryPoint) deliveryRow {
	return deliveryRow{
		ID:            d.ID,
		TenantID:      d.TenantID,
		ShipDate:      d.ShipDate.Format(time.DateOnly),
		Latitude:      d.Latitude,
		Longitude:     d.Longitude,
		WeightKg:      d.WeightKg,
		VolumeCount:   d.VolumeCount,
		DeclaredValue: d.DeclaredValue,
		FreightValue:  d.FreightValue,
		RegionCode:    d.RegionCode,
		CityName:      d.CityName,
	}
}

// Return every delivery of a tenant for one ship date, ordered by id.
func (s *SQLDeliveryRepository) ListDeliveries(
	ctx context.Context,
	tenantID string,
	shipDate time.Time,
) ([]domain.DeliveryPoint, error) {
	if s.DB == nil {
		return nil, errors.New("sql delivery repository: DB is nil")
	}

	query := s.DB.Rebind(`
	SELECT
		id, tenant_id, ship_date, latitude, longitude, weight_kg, volume_count,
		declared_value, freight_value, region_code, city_name
	FROM deliveries
	WHERE tenant_id = ? AND ship_date = ?
	ORDER BY id;
	`)

	var rows []deliveryRow
	if err := s.DB.SelectContext(ctx, &rows, query, tenantID, shipDate.Format(time.DateOnly)); err != nil {
		return nil, fmt.Errorf("list deliveries: query deliveries table: %w", err)
	}

	out := make([]domain.DeliveryPoint, 0, len(rows))
	for _, r := range rows {
		d, err := r.toDomain()
		if err != nil {
			return nil, fmt.Errorf("list deliveries: %w", err)
		}
		out = append(out, d)
	}

	return out, nil
}

// UpsertDeliveries stores deliveries, replacing rows with the same (tenant, id).
func (s *SQLDeliveryRepository) UpsertDeliveries(ctx context.Context, deliveries []domain.DeliveryPoint) error {
	if s.DB == nil {
		return errors.New("sql delivery repository: DB is nil")
	}
	if len(deliveries) == 0 {
		return nil
	}

	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("upsert deliveries: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := upsertDeliveries(ctx, tx, deliveries); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("upsert deliveries: commit tx: %w", err)
	}
	return nil
}

func upsertDeliveries(ctx context.Context, tx *sqlx.Tx, deliveries []domain.DeliveryPoint) error {
	stmt, err := tx.PrepareNamedContext(ctx, `
	INSERT INTO deliveries (
		id, tenant_id, ship_date, latitude, longitude, weight_kg, volume_count,
		declared_value, freight_value, region_code, city_name
	)
	VALUES (
		:id, :tenant_id, :ship_date, :latitude, :longitude, :weight_kg, :volume_count,
		:declared_value, :freight_value, :region_code, :city_name
	)
	ON CONFLICT (tenant_id, id) DO UPDATE
	SET ship_date = excluded.ship_date,
		latitude = excluded.latitude,
		longitude = excluded.longitude,
		weight_kg = excluded.weight_kg,
		volume_count = excluded.volume_count,
		declared_value = excluded.declared_value,
		freight_value = excluded.freight_value,
		region_code = excluded.region_code,
		city_name = excluded.city_name;
	`)
	if err != nil {
		return fmt.Errorf("upsert deliveries: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range deliveries {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("upsert deliveries: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, deliveryRowFrom(d)); err != nil {
			return fmt.Errorf("upsert deliveries: insert id=%s: %w", d.ID, err)
		}
	}
	return nil
}
