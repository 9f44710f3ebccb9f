package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"route-planner/internal/domain"
)

// SeedFile is the JSON layout accepted by SeedFromJSON.
type SeedFile struct {
	Hubs       []HubSeed      `json:"hubs"`
	Tariffs    []TariffSeed   `json:"tariffs"`
	Deliveries []DeliverySeed `json:"deliveries"`
}

type HubSeed struct {
	TenantID string  `json:"tenant_id"`
	Name     string  `json:"name"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
}

type TariffSeed struct {
	TenantID       string  `json:"tenant_id"`
	Kind           string  `json:"kind"`
	VehicleType    string  `json:"vehicle_type"`
	MinKg          float64 `json:"min_kg"`
	MaxKg          float64 `json:"max_kg"`
	DepotLocalOnly bool    `json:"depot_local_only"`
}

type DeliverySeed struct {
	ID            string  `json:"id"`
	TenantID      string  `json:"tenant_id"`
	ShipDate      string  `json:"ship_date"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	WeightKg      float64 `json:"weight_kg"`
	VolumeCount   int     `json:"volume_count"`
	DeclaredValue float64 `json:"declared_value"`
	FreightValue  float64 `json:"freight_value"`
	RegionCode    string  `json:"region_code"`
	CityName      string  `json:"city_name"`
}

// Populate the database with hubs, tariffs and deliveries from a JSON file.
func SeedFromJSON(ctx context.Context, db *sqlx.DB, jsonPath string) error {
	if db == nil {
		return errors.New("seed: DB is nil")
	}

	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return fmt.Errorf("seed: read %q: %w", jsonPath, err)
	}

	var data SeedFile
	if err := json.Unmarshal(bytes, &data); err != nil {
		return fmt.Errorf("seed: parse json: %w", err)
	}

	deliveries := make([]domain.DeliveryPoint, 0, len(data.Deliveries))
	for i, item := range data.Deliveries {
		date, err := time.Parse(time.DateOnly, strings.TrimSpace(item.ShipDate))
		if err != nil {
			return fmt.Errorf("seed: delivery at index %d: invalid ship_date %q: %w", i+1, item.ShipDate, err)
		}
		d := domain.DeliveryPoint{
			ID:            strings.TrimSpace(item.ID),
			TenantID:      strings.TrimSpace(item.TenantID),
			ShipDate:      date,
			Latitude:      item.Latitude,
			Longitude:     item.Longitude,
			WeightKg:      item.WeightKg,
			VolumeCount:   item.VolumeCount,
			DeclaredValue: item.DeclaredValue,
			FreightValue:  item.FreightValue,
			RegionCode:    strings.ToUpper(strings.TrimSpace(item.RegionCode)),
			CityName:      strings.TrimSpace(item.CityName),
		}
		if err := d.Validate(); err != nil {
			return fmt.Errorf("seed: delivery at index %d: %w", i+1, err)
		}
		deliveries = append(deliveries, d)
	}

	for i, tr := range data.Tariffs {
		if tr.VehicleType == "" || tr.MaxKg <= tr.MinKg {
			return fmt.Errorf("seed: tariff at index %d: invalid tier %q [%f, %f)", i+1, tr.VehicleType, tr.MinKg, tr.MaxKg)
		}
		switch domain.RouteKind(tr.Kind) {
		case domain.RouteKindLastMile, domain.RouteKindTransfer:
		default:
			return fmt.Errorf("seed: tariff at index %d: unknown kind %q", i+1, tr.Kind)
		}
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	hubs := make([]hubRow, 0, len(data.Hubs))
	for _, h := range data.Hubs {
		hubs = append(hubs, hubRow(h))
	}
	if err := insertEach(ctx, tx, `
	INSERT INTO hubs (tenant_id, name, lat, lon)
	VALUES (:tenant_id, :name, :lat, :lon)
	ON CONFLICT (tenant_id) DO UPDATE
	SET name = excluded.name, lat = excluded.lat, lon = excluded.lon;
	`, hubs); err != nil {
		return fmt.Errorf("seed: hubs: %w", err)
	}

	tariffs := make([]tariffRow, 0, len(data.Tariffs))
	for _, tr := range data.Tariffs {
		tariffs = append(tariffs, tariffRow{
			TenantID:       tr.TenantID,
			Kind:           tr.Kind,
			VehicleType:    tr.VehicleType,
			MinKg:          tr.MinKg,
			MaxKg:          tr.MaxKg,
			DepotLocalOnly: boolToInt(tr.DepotLocalOnly),
		})
	}
	if err := insertEach(ctx, tx, `
	INSERT INTO tariffs (tenant_id, kind, vehicle_type, min_kg, max_kg, depot_local_only)
	VALUES (:tenant_id, :kind, :vehicle_type, :min_kg, :max_kg, :depot_local_only)
	ON CONFLICT (tenant_id, kind, vehicle_type) DO UPDATE
	SET min_kg = excluded.min_kg, max_kg = excluded.max_kg, depot_local_only = excluded.depot_local_only;
	`, tariffs); err != nil {
		return fmt.Errorf("seed: tariffs: %w", err)
	}

	if len(deliveries) > 0 {
		if err := upsertDeliveries(ctx, tx, deliveries); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed: commit tx: %w", err)
	}

	return nil
}
