package services

import (
	"context"
	"fmt"

	"route-planner/internal/domain"
	"route-planner/internal/ports"
)

// ServiceTimes models the time spent at stops. Every stop of a group costs
// LightStopMin, or HeavyStopMin when the group's total weight exceeds
// HeavyStopThresholdKg, plus UnloadMinPerVolume per volume unit.
type ServiceTimes struct {
	LightStopMin         float64
	HeavyStopMin         float64
	HeavyStopThresholdKg float64
	UnloadMinPerVolume   float64
}

func (s ServiceTimes) For(stops int, load domain.Totals) float64 {
	per := s.LightStopMin
	if load.WeightKg > s.HeavyStopThresholdKg {
		per = s.HeavyStopMin
	}
	return float64(stops)*per + float64(load.Volume)*s.UnloadMinPerVolume
}

// legMemo memoises oracle lookups for one planning call. Not safe for
// concurrent use; each worker builds its own.
type legMemo struct {
	oracle   ports.DistanceTimeOracle
	tenantID string
	m        map[[2]string]domain.RouteResult
}

func newLegMemo(oracle ports.DistanceTimeOracle, tenantID string) *legMemo {
	return &legMemo{oracle: oracle, tenantID: tenantID, m: make(map[[2]string]domain.RouteResult)}
}

func (l *legMemo) leg(ctx context.Context, from, to domain.Coordinates) (domain.RouteResult, error) {
	k := [2]string{from.Key(), to.Key()}
	if r, ok := l.m[k]; ok {
		return r, nil
	}
	r, err := l.oracle.GetRoute(ctx, from, to, l.tenantID)
	if err != nil {
		return domain.RouteResult{}, err
	}
	l.m[k] = r
	return r, nil
}

type pathMetrics struct {
	legs        []domain.RouteResult
	outboundKm  float64
	outboundMin float64
	returnKm    float64
	returnMin   float64
	polyline    []string
}

// walk chains the oracle depot -> stops[0] -> ... -> stops[n-1], and back
// to the depot when withReturn is set.
func (l *legMemo) walk(
	ctx context.Context,
	depot domain.Coordinates,
	stops []domain.Coordinates,
	withReturn bool,
) (pathMetrics, error) {
	var m pathMetrics
	current := depot

	for _, s := range stops {
		r, err := l.leg(ctx, current, s)
		if err != nil {
			return pathMetrics{}, fmt.Errorf("walk: leg %s -> %s: %w", current.Key(), s.Key(), err)
		}
		m.legs = append(m.legs, r)
		m.outboundKm += r.DistanceKm
		m.outboundMin += r.TimeMin
		if r.Polyline != "" {
			m.polyline = append(m.polyline, r.Polyline)
		}
		current = s
	}

	// Optionally includes return leg to the depot.
	if withReturn && len(stops) > 0 {
		back, err := l.leg(ctx, current, depot)
		if err != nil {
			return pathMetrics{}, fmt.Errorf("walk: return leg %s -> %s: %w", current.Key(), depot.Key(), err)
		}
		m.returnKm = back.DistanceKm
		m.returnMin = back.TimeMin
		if back.Polyline != "" {
			m.polyline = append(m.polyline, back.Polyline)
		}
	}

	return m, nil
}

// assembleRoute lays out a depot-first route over the given ordered stops and
// fills its distances, times and load. Returned routes have no id or vehicle.
//
// TransitTimeMin is outbound travel plus service, and also the return leg
// when returnCounts is set (transfers).
func assembleRoute(
	ctx context.Context,
	memo *legMemo,
	depot domain.RouteStop,
	stops []domain.RouteStop,
	service ServiceTimes,
	returnCounts bool,
) (domain.Route, error) {
	coords := make([]domain.Coordinates, 0, len(stops))
	var load domain.Totals
	for _, s := range stops {
		coords = append(coords, s.Coords)
		load = load.Add(s.Load)
	}

	m, err := memo.walk(ctx, depot.Coords, coords, true)
	if err != nil {
		return domain.Route{}, fmt.Errorf("assemble route: %w", err)
	}

	serviceMin := service.For(len(stops), load)
	perStop := 0.0
	if len(stops) > 0 {
		perStop = serviceMin / float64(len(stops))
	}

	depot.Sequence = 0
	depot.Kind = domain.StopKindDepot
	depot.DistanceFromPrevKm = 0
	depot.ArriveAtMin = 0
	out := make([]domain.RouteStop, 0, len(stops)+1)
	out = append(out, depot)

	clock := 0.0
	for i, s := range stops {
		clock += m.legs[i].TimeMin
		s.Sequence = i + 1
		s.DistanceFromPrevKm = m.legs[i].DistanceKm
		s.ArriveAtMin = clock
		out = append(out, s)
		clock += perStop
	}

	transit := m.outboundMin + serviceMin
	if returnCounts {
		transit += m.returnMin
	}

	return domain.Route{
		Stops:          out,
		Load:           load,
		OutboundKm:     m.outboundKm,
		OutboundMin:    m.outboundMin,
		ReturnKm:       m.returnKm,
		ReturnMin:      m.returnMin,
		ServiceMin:     serviceMin,
		DistanceKm:     m.outboundKm + m.returnKm,
		TransitTimeMin: transit,
		Polyline:       m.polyline,
	}, nil
}
