package services

import (
	"route-planner/internal/domain"
)

// CityConstraint carries the last-mile municipality rule: depot-local tiers
// are only allowed when every stop is in one city and that city is the
// cluster's own.
type CityConstraint struct {
	StopCities  []string
	ClusterCity string
}

func (c *CityConstraint) allowsDepotLocal() bool {
	if c == nil {
		return true
	}
	distinct := make(map[string]struct{})
	for _, city := range c.StopCities {
		if k := normalizeCity(city); k != "" {
			distinct[k] = struct{}{}
		}
	}
	if len(distinct) > 1 {
		return false
	}
	primary := ""
	for k := range distinct {
		primary = k
	}
	return primary == normalizeCity(c.ClusterCity)
}

// SelectVehicle picks the tier with the smallest capacity whose [MinKg, MaxKg)
// range covers weightKg. With no covering tier it over-provisions with the
// smallest tier whose MaxKg exceeds the weight. When nothing qualifies it
// returns domain.UnknownVehicle and zero capacity.
func SelectVehicle(weightKg float64, table domain.TariffTable, cities *CityConstraint) (string, float64) {
	allowLocal := cities.allowsDepotLocal()

	var covering, larger *domain.VehicleTier
	for i := range table {
		t := &table[i]
		if t.DepotLocalOnly && !allowLocal {
			continue
		}
		if t.Covers(weightKg) && (covering == nil || t.MaxKg < covering.MaxKg) {
			covering = t
		}
		if t.MaxKg > weightKg && (larger == nil || t.MaxKg < larger.MaxKg) {
			larger = t
		}
	}

	switch {
	case covering != nil:
		return covering.VehicleType, covering.MaxKg
	case larger != nil:
		return larger.VehicleType, larger.MaxKg
	default:
		return domain.UnknownVehicle, 0
	}
}
