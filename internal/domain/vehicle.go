package domain

import "math"

// UnknownVehicle is returned when no tariff tier can carry a load.
const UnknownVehicle = "UNKNOWN"

// VehicleTier is one tenant tariff row: a vehicle type covering [MinKg, MaxKg).
// DepotLocalOnly marks light vehicles (e.g. motorcycles) restricted to a single municipality.
type VehicleTier struct {
	VehicleType    string  `json:"vehicle_type"`
	MinKg          float64 `json:"min_kg"`
	MaxKg          float64 `json:"max_kg"`
	DepotLocalOnly bool    `json:"depot_local_only"`
}

func (t VehicleTier) Covers(weightKg float64) bool {
	return weightKg >= t.MinKg && weightKg < t.MaxKg
}

// TariffTable is the tenant-specific list of vehicle tiers.
type TariffTable []VehicleTier

// MaxCapacityKg is the capacity of the largest tier, or 0 for an empty table.
func (t TariffTable) MaxCapacityKg() float64 {
	out := 0.0
	for _, tier := range t {
		out = math.Max(out, tier.MaxKg)
	}
	return out
}

// Hub is the tenant's depot.
type Hub struct {
	TenantID string      `json:"tenant_id"`
	Name     string      `json:"name"`
	Coords   Coordinates `json:"coords"`
}
