package services

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"route-planner/internal/domain"
	"route-planner/internal/ports"
)

// ErrNoFinerGrouping is returned by a regroup func when it cannot produce more
// groups than its previous attempt. BuildWithRetry stops retrying on it.
var ErrNoFinerGrouping = errors.New("no finer grouping available")

// SavingsGroup is one routable unit for transfers: a cluster centroid
// carrying the load of its members.
type SavingsGroup struct {
	ID          string
	Coords      domain.Coordinates
	City        string
	Load        domain.Totals
	DeliveryIDs []string
}

type SavingsOptions struct {
	MaxWeightKg float64
	MaxTimeMin  float64
	Service     ServiceTimes
}

type SavingsResult struct {
	// Routes are depot-first and carry no id or vehicle yet.
	Routes []domain.Route
	// Feasible counts routes within MaxTimeMin.
	Feasible int
	// DirectRoutes counts routes serving a single group.
	DirectRoutes int
	// PreSplit counts groups divided because they exceeded MaxWeightKg.
	PreSplit int
	// Attempt is the regrouping attempt that produced Routes (BuildWithRetry).
	Attempt int
}

// SavingsBuilder merges groups into transfer routes with the Clarke-Wright
// savings heuristic under weight and time ceilings.
type SavingsBuilder struct {
	oracle ports.DistanceTimeOracle
	logger *slog.Logger
}

func NewSavingsBuilder(oracle ports.DistanceTimeOracle, logger *slog.Logger) *SavingsBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &SavingsBuilder{oracle: oracle, logger: logger}
}

type saving struct {
	i, j  int
	value float64
}

// Build runs one savings pass. Every returned route weighs less than
// MaxWeightKg, matching the half-open vehicle tiers. Routes over MaxTimeMin are only ever single-group routes and
// carry OverrideTimeLimit.
func (b *SavingsBuilder) Build(
	ctx context.Context,
	tenantID string,
	depot domain.Hub,
	groups []SavingsGroup,
	opts SavingsOptions,
) (SavingsResult, error) {
	if opts.MaxWeightKg <= 0 {
		return SavingsResult{}, errors.New("build savings routes: max weight must be positive")
	}

	var res SavingsResult
	groups, res.PreSplit = preSplit(groups, opts.MaxWeightKg)
	if len(groups) == 0 {
		return res, nil
	}

	memo := newLegMemo(b.oracle, tenantID)
	home := depot.Coords

	savings, err := b.savings(ctx, memo, home, groups)
	if err != nil {
		return SavingsResult{}, fmt.Errorf("build savings routes: %w", err)
	}

	// routes[r] holds group indices in visiting order; nil once merged away.
	routes := make([][]int, len(groups))
	routeOf := make([]int, len(groups))
	for i := range groups {
		routes[i] = []int{i}
		routeOf[i] = i
	}

	for _, s := range savings {
		ri, rj := routeOf[s.i], routeOf[s.j]
		if ri == rj {
			continue
		}

		members := append(slices.Clone(routes[ri]), routes[rj]...)
		load := groupLoad(groups, members)
		if load.WeightKg >= opts.MaxWeightKg {
			continue
		}

		seq := Horseshoe(home, members, func(i int) domain.Coordinates { return groups[i].Coords })
		minutes, err := b.routeTime(ctx, memo, home, groups, seq, load, opts.Service)
		if err != nil {
			return SavingsResult{}, fmt.Errorf("build savings routes: %w", err)
		}
		if minutes > opts.MaxTimeMin {
			continue
		}

		routes[ri] = seq
		routes[rj] = nil
		for _, g := range seq {
			routeOf[g] = ri
		}
	}

	depotStop := domain.RouteStop{StopID: depot.Name, Kind: domain.StopKindDepot, Coords: home}
	for _, members := range routes {
		if members == nil {
			continue
		}

		stops := make([]domain.RouteStop, 0, len(members))
		for _, g := range members {
			stops = append(stops, groups[g].stop())
		}

		route, err := assembleRoute(ctx, memo, depotStop, stops, opts.Service, true)
		if err != nil {
			return SavingsResult{}, fmt.Errorf("build savings routes: %w", err)
		}

		if route.TransitTimeMin > opts.MaxTimeMin {
			route.OverrideTimeLimit = true
		} else {
			res.Feasible++
		}

		if len(members) == 1 {
			res.DirectRoutes++
			b.logger.InfoContext(ctx, "direct transfer route",
				"tenant", tenantID,
				"group", groups[members[0]].ID,
				"deliveries", len(groups[members[0]].DeliveryIDs),
				"transit_min", route.TransitTimeMin,
				"override", route.OverrideTimeLimit,
			)
		}

		res.Routes = append(res.Routes, route)
	}

	return res, nil
}

// BuildWithRetry calls regroup for attempt 0, 1, ... and builds routes from
// each batch until one yields a feasible route. Each attempt after the first
// must return more groups than the one before. After maxAttempts regroupings,
// or once regroup reports ErrNoFinerGrouping, it fails with
// *domain.InfeasibleConstraintError.
func (b *SavingsBuilder) BuildWithRetry(
	ctx context.Context,
	tenantID string,
	depot domain.Hub,
	opts SavingsOptions,
	maxAttempts int,
	regroup func(ctx context.Context, attempt int) ([]SavingsGroup, error),
) (SavingsResult, error) {
	var total domain.Totals
	tried, prev := 0, 0

	for attempt := 0; attempt <= maxAttempts; attempt++ {
		groups, err := regroup(ctx, attempt)
		if errors.Is(err, ErrNoFinerGrouping) {
			b.logger.WarnContext(ctx, "transfer regrouping exhausted", "tenant", tenantID, "attempt", attempt, "groups", prev)
			break
		}
		if err != nil {
			return SavingsResult{}, fmt.Errorf("build savings routes: regroup attempt %d: %w", attempt, err)
		}
		if attempt > 0 && len(groups) <= prev {
			return SavingsResult{}, fmt.Errorf("build savings routes: regroup attempt %d: %d groups after %d", attempt, len(groups), prev)
		}
		prev = len(groups)
		tried++

		res, err := b.Build(ctx, tenantID, depot, groups, opts)
		if err != nil {
			return SavingsResult{}, err
		}
		if res.Feasible > 0 || len(res.Routes) == 0 {
			res.Attempt = attempt
			return res, nil
		}

		total = domain.Totals{}
		for _, g := range groups {
			total = total.Add(g.Load)
		}
		b.logger.WarnContext(ctx, "no feasible transfer route, regrouping",
			"tenant", tenantID, "attempt", attempt, "groups", len(groups), "routes", len(res.Routes))
	}

	return SavingsResult{}, &domain.InfeasibleConstraintError{
		Reason:      "no transfer route within the time ceiling after regrouping",
		WeightKg:    total.WeightKg,
		MaxWeightKg: opts.MaxWeightKg,
		Attempts:    tried,
	}
}

// savings returns every positive d(depot,i)+d(depot,j)-d(i,j), largest
// first. Ties keep (i, j) order.
func (b *SavingsBuilder) savings(
	ctx context.Context,
	memo *legMemo,
	depot domain.Coordinates,
	groups []SavingsGroup,
) ([]saving, error) {
	fromDepot := make([]float64, len(groups))
	for i, g := range groups {
		r, err := memo.leg(ctx, depot, g.Coords)
		if err != nil {
			return nil, err
		}
		fromDepot[i] = r.DistanceKm
	}

	var out []saving
	for i := range groups {
		for j := i + 1; j < len(groups); j++ {
			r, err := memo.leg(ctx, groups[i].Coords, groups[j].Coords)
			if err != nil {
				return nil, err
			}
			if v := fromDepot[i] + fromDepot[j] - r.DistanceKm; v > 0 {
				out = append(out, saving{i: i, j: j, value: v})
			}
		}
	}

	slices.SortStableFunc(out, func(a, b saving) int { return cmp.Compare(b.value, a.value) })
	return out, nil
}

// routeTime is outbound travel, service and the return leg for seq.
func (b *SavingsBuilder) routeTime(
	ctx context.Context,
	memo *legMemo,
	depot domain.Coordinates,
	groups []SavingsGroup,
	seq []int,
	load domain.Totals,
	service ServiceTimes,
) (float64, error) {
	coords := make([]domain.Coordinates, len(seq))
	for i, g := range seq {
		coords[i] = groups[g].Coords
	}
	m, err := memo.walk(ctx, depot, coords, true)
	if err != nil {
		return 0, err
	}
	return m.outboundMin + m.returnMin + service.For(len(seq), load), nil
}

func (g SavingsGroup) stop() domain.RouteStop {
	return domain.RouteStop{
		StopID:      g.ID,
		Kind:        domain.StopKindCluster,
		Coords:      g.Coords,
		City:        g.City,
		Load:        g.Load,
		DeliveryIDs: g.DeliveryIDs,
	}
}

func groupLoad(groups []SavingsGroup, members []int) domain.Totals {
	var t domain.Totals
	for _, g := range members {
		t = t.Add(groups[g].Load)
	}
	return t
}

// preSplit divides each group weighing maxKg or more into floor(weight/maxKg)+1
// equal parts at the same coordinate, so every part stays below maxKg. Load is shared pro-rata and delivery
// ids are dealt out in contiguous chunks.
func preSplit(groups []SavingsGroup, maxKg float64) ([]SavingsGroup, int) {
	out := make([]SavingsGroup, 0, len(groups))
	split := 0

	for _, g := range groups {
		if g.Load.WeightKg < maxKg {
			out = append(out, g)
			continue
		}
		split++

		parts := int(math.Floor(g.Load.WeightKg/maxKg)) + 1
		chunk := (len(g.DeliveryIDs) + parts - 1) / parts
		for p := 0; p < parts; p++ {
			volume := g.Load.Volume / parts
			if p < g.Load.Volume%parts {
				volume++
			}

			var ids []string
			if lo := p * chunk; lo < len(g.DeliveryIDs) {
				ids = g.DeliveryIDs[lo:min(lo+chunk, len(g.DeliveryIDs))]
			}

			out = append(out, SavingsGroup{
				ID:     fmt.Sprintf("%s/%d", g.ID, p+1),
				Coords: g.Coords,
				City:   g.City,
				Load: domain.Totals{
					WeightKg:      g.Load.WeightKg / float64(parts),
					Volume:        volume,
					DeclaredValue: g.Load.DeclaredValue / float64(parts),
					FreightValue:  g.Load.FreightValue / float64(parts),
				},
				DeliveryIDs: ids,
			})
		}
	}

	return out, split
}
