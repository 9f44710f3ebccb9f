package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// DeliveryPoint is one parcel delivery for a tenant on a ship date.
// It is produced by ingestion and read-only for the planning engine.
type DeliveryPoint struct {
	ID            string    `json:"id"`
	TenantID      string    `json:"tenant_id"`
	ShipDate      time.Time `json:"ship_date"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	WeightKg      float64   `json:"weight_kg"`
	VolumeCount   int       `json:"volume_count"`
	DeclaredValue float64   `json:"declared_value"`
	FreightValue  float64   `json:"freight_value"`
	RegionCode    string    `json:"region_code"`
	CityName      string    `json:"city_name"`
}

func (d DeliveryPoint) Coords() Coordinates {
	return Coordinates{Lat: d.Latitude, Lon: d.Longitude}
}

// Validate checks the fields every planning step relies on.
func (d DeliveryPoint) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return errors.New("delivery: id must not be empty")
	}
	if strings.TrimSpace(d.TenantID) == "" {
		return fmt.Errorf("delivery %s: tenant_id must not be empty", d.ID)
	}
	if math.IsNaN(d.Latitude) || math.IsNaN(d.Longitude) ||
		d.Latitude < -90 || d.Latitude > 90 || d.Longitude < -180 || d.Longitude > 180 {
		return fmt.Errorf("delivery %s: invalid coordinates (%f, %f)", d.ID, d.Latitude, d.Longitude)
	}
	if d.WeightKg < 0 {
		return fmt.Errorf("delivery %s: negative weight %f", d.ID, d.WeightKg)
	}
	if d.VolumeCount < 0 {
		return fmt.Errorf("delivery %s: negative volume count %d", d.ID, d.VolumeCount)
	}
	return nil
}

// Totals aggregates the load carried by a set of deliveries.
type Totals struct {
	WeightKg      float64 `json:"weight_kg"`
	Volume        int     `json:"volume"`
	DeclaredValue float64 `json:"declared_value"`
	FreightValue  float64 `json:"freight_value"`
}

func (t Totals) Add(o Totals) Totals {
	return Totals{
		WeightKg:      t.WeightKg + o.WeightKg,
		Volume:        t.Volume + o.Volume,
		DeclaredValue: t.DeclaredValue + o.DeclaredValue,
		FreightValue:  t.FreightValue + o.FreightValue,
	}
}

func SumDeliveries(points []DeliveryPoint) Totals {
	var t Totals
	for _, p := range points {
		t.WeightKg += p.WeightKg
		t.Volume += p.VolumeCount
		t.DeclaredValue += p.DeclaredValue
		t.FreightValue += p.FreightValue
	}
	return t
}

func DeliveryIDs(points []DeliveryPoint) []string {
	ids := make([]string, 0, len(points))
	for _, p := range points {
		ids = append(ids, p.ID)
	}
	return ids
}
