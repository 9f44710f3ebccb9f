package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"route-planner/internal/domain"
	"route-planner/internal/platform/obs"
	"route-planner/internal/ports"
)

// PlannerConfig holds the engine knobs for one tenant-agnostic planner.
type PlannerConfig struct {
	Cluster         ClusterOptions
	HubRadiusKm     float64
	Split           SplitOptions
	LastMileWorkers int

	TransferMaxTimeMin    float64
	TransferMaxWeightKg   float64
	TransferRetryAttempts int
}

// PlannerDeps are the collaborators of a Planner. Plans may be nil when no
// request asks to persist; Geocoder and Bounds are optional.
type PlannerDeps struct {
	Deliveries ports.DeliveryRepository
	Plans      ports.PlanRepository
	Tenants    ports.TenantConfigRepository
	Oracle     ports.DistanceTimeOracle
	Geocoder   ports.ReverseGeocoder
	Bounds     *GeoBounds
	Centers    *CentroidFinder
}

type PlanRequest struct {
	TenantID string
	ShipDate time.Time
	// K forces the cluster count; zero picks it with the elbow heuristic.
	K       int
	Persist bool
}

func (r PlanRequest) Key() domain.PlanKey {
	return domain.PlanKey{TenantID: r.TenantID, ShipDate: r.ShipDate, K: r.K}
}

type ClusterPlan struct {
	Key      domain.PlanKey
	Clusters []domain.Cluster
	// Discarded holds deliveries outside their region's bounds.
	Discarded     []domain.OutOfRegionError
	K             int
	ElbowFallback bool
	Warnings      []string
}

type RoutePlan struct {
	Key          domain.PlanKey
	Kind         domain.RouteKind
	Routes       []domain.Route
	Discarded    []domain.OutOfRegionError
	SubClusters  int
	DirectRoutes int
	// Attempt is the transfer regrouping attempt that succeeded.
	Attempt  int
	Warnings []string
}

// DayPlan is every output for one (tenant, date, k) computed from a single
// clustering pass.
type DayPlan struct {
	Clusters  ClusterPlan
	LastMile  RoutePlan
	Transfers RoutePlan
}

// Planner orchestrates one (tenant, date, k) unit of work. Clustering
// always completes before splitting or savings start.
type Planner struct {
	deps      PlannerDeps
	cfg       PlannerConfig
	clusterer *Clusterer
	splitter  *Splitter
	savings   *SavingsBuilder
	logger    *slog.Logger
}

func NewPlanner(deps PlannerDeps, cfg PlannerConfig, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.LastMileWorkers < 1 {
		cfg.LastMileWorkers = 1
	}
	return &Planner{
		deps:      deps,
		cfg:       cfg,
		clusterer: NewClusterer(deps.Centers, deps.Geocoder, logger),
		splitter:  NewSplitter(deps.Oracle, logger),
		savings:   NewSavingsBuilder(deps.Oracle, logger),
		logger:    logger,
	}
}

// clusterStage is the shared first step of every plan.
type clusterStage struct {
	plan ClusterPlan
	// remaining are the valid deliveries outside the hub radius.
	remaining []domain.DeliveryPoint
}

// PlanClusters loads deliveries, drops out-of-region points, splits off the
// hub-local bucket and clusters the rest.
func (p *Planner) PlanClusters(ctx context.Context, req PlanRequest) (_ ClusterPlan, err error) {
	defer obs.Time(ctx, p.logger, "plan_clusters")(&err)

	hub, err := p.deps.Tenants.GetHub(ctx, req.TenantID)
	if err != nil {
		return ClusterPlan{}, fmt.Errorf("plan clusters: get hub: %w", err)
	}

	stage, err := p.cluster(ctx, req, hub)
	if err != nil {
		return ClusterPlan{}, fmt.Errorf("plan clusters: %w", err)
	}

	if req.Persist {
		if err := p.persistClusters(ctx, req, stage.plan.Clusters); err != nil {
			return ClusterPlan{}, fmt.Errorf("plan clusters: %w", err)
		}
	}
	return stage.plan, nil
}

// PlanLastMile clusters and then routes every cluster from its own center.
func (p *Planner) PlanLastMile(ctx context.Context, req PlanRequest) (_ RoutePlan, err error) {
	defer obs.Time(ctx, p.logger, "plan_last_mile")(&err)

	hub, err := p.deps.Tenants.GetHub(ctx, req.TenantID)
	if err != nil {
		return RoutePlan{}, fmt.Errorf("plan last mile: get hub: %w", err)
	}
	stage, err := p.cluster(ctx, req, hub)
	if err != nil {
		return RoutePlan{}, fmt.Errorf("plan last mile: %w", err)
	}
	return p.lastMile(ctx, req, stage)
}

// PlanTransfers clusters and then merges the non-hub clusters into
// hub-to-cluster transfer routes.
func (p *Planner) PlanTransfers(ctx context.Context, req PlanRequest) (_ RoutePlan, err error) {
	defer obs.Time(ctx, p.logger, "plan_transfers")(&err)

	hub, err := p.deps.Tenants.GetHub(ctx, req.TenantID)
	if err != nil {
		return RoutePlan{}, fmt.Errorf("plan transfers: get hub: %w", err)
	}
	stage, err := p.cluster(ctx, req, hub)
	if err != nil {
		return RoutePlan{}, fmt.Errorf("plan transfers: %w", err)
	}
	return p.transfers(ctx, req, hub, stage)
}

// PlanAll runs clustering once and feeds it to both routing stages.
func (p *Planner) PlanAll(ctx context.Context, req PlanRequest) (_ DayPlan, err error) {
	defer obs.Time(ctx, p.logger, "plan_all")(&err)

	hub, err := p.deps.Tenants.GetHub(ctx, req.TenantID)
	if err != nil {
		return DayPlan{}, fmt.Errorf("plan all: get hub: %w", err)
	}
	stage, err := p.cluster(ctx, req, hub)
	if err != nil {
		return DayPlan{}, fmt.Errorf("plan all: %w", err)
	}
	if req.Persist {
		if err := p.persistClusters(ctx, req, stage.plan.Clusters); err != nil {
			return DayPlan{}, fmt.Errorf("plan all: %w", err)
		}
	}

	lastMile, err := p.lastMile(ctx, req, stage)
	if err != nil {
		return DayPlan{}, err
	}
	transfers, err := p.transfers(ctx, req, hub, stage)
	if err != nil {
		return DayPlan{}, err
	}

	return DayPlan{Clusters: stage.plan, LastMile: lastMile, Transfers: transfers}, nil
}

func (p *Planner) cluster(ctx context.Context, req PlanRequest, hub domain.Hub) (clusterStage, error) {
	points, err := p.deps.Deliveries.ListDeliveries(ctx, req.TenantID, req.ShipDate)
	if err != nil {
		return clusterStage{}, fmt.Errorf("list deliveries: %w", err)
	}

	plan := ClusterPlan{Key: req.Key()}

	valid := points
	if p.deps.Bounds != nil {
		var invalid []domain.DeliveryPoint
		valid, invalid = p.deps.Bounds.Partition(points)
		for _, d := range invalid {
			plan.Discarded = append(plan.Discarded, domain.OutOfRegionError{
				DeliveryID: d.ID,
				RegionCode: d.RegionCode,
				Coords:     d.Coords(),
			})
		}
		if len(invalid) > 0 {
			p.logger.WarnContext(ctx, "discarded out-of-region deliveries",
				"tenant", req.TenantID, "date", req.Key().DateString(), "count", len(invalid))
		}
	}

	hubPoints, remaining := SplitByHub(valid, hub.Coords, p.cfg.HubRadiusKm)

	var res ClusterResult
	if req.K > 0 {
		res, err = p.clusterer.ClusterWithK(ctx, remaining, req.K, p.cfg.Cluster)
	} else {
		res, err = p.clusterer.Cluster(ctx, remaining, p.cfg.Cluster)
	}
	if err != nil {
		return clusterStage{}, err
	}

	if len(hubPoints) > 0 {
		plan.Clusters = append(plan.Clusters, HubCluster(hub, hubPoints))
	}
	plan.Clusters = append(plan.Clusters, res.Clusters...)
	plan.K = res.K
	plan.ElbowFallback = res.ElbowFallback
	plan.Warnings = res.Warnings

	p.logger.InfoContext(ctx, "clustered deliveries",
		"tenant", req.TenantID,
		"date", req.Key().DateString(),
		"deliveries", len(points),
		"hub_local", len(hubPoints),
		"clusters", len(plan.Clusters),
		"k", plan.K,
		"elbow_fallback", plan.ElbowFallback,
	)

	return clusterStage{plan: plan, remaining: remaining}, nil
}

func (p *Planner) lastMile(ctx context.Context, req PlanRequest, stage clusterStage) (RoutePlan, error) {
	tariffs, err := p.deps.Tenants.ListTariffs(ctx, req.TenantID, domain.RouteKindLastMile)
	if err != nil {
		return RoutePlan{}, fmt.Errorf("plan last mile: list tariffs: %w", err)
	}

	maxKg := tariffs.MaxCapacityKg()
	for _, cl := range stage.plan.Clusters {
		for _, d := range cl.Members {
			if d.WeightKg >= maxKg {
				return RoutePlan{}, &domain.InfeasibleConstraintError{
					Reason:      fmt.Sprintf("delivery %s exceeds the largest last-mile vehicle", d.ID),
					WeightKg:    d.WeightKg,
					MaxWeightKg: maxKg,
				}
			}
		}
	}

	clusters := stage.plan.Clusters
	perCluster := make([][]domain.Route, len(clusters))
	subCounts := make([]int, len(clusters))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.LastMileWorkers)
	for i, cl := range clusters {
		g.Go(func() error {
			routes, subs, err := p.routeCluster(gctx, req, cl, tariffs)
			if err != nil {
				return err
			}
			perCluster[i] = routes
			subCounts[i] = subs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return RoutePlan{}, fmt.Errorf("plan last mile: %w", err)
	}

	plan := RoutePlan{
		Key:       req.Key(),
		Kind:      domain.RouteKindLastMile,
		Discarded: stage.plan.Discarded,
		Warnings:  stage.plan.Warnings,
	}
	for i := range clusters {
		plan.Routes = append(plan.Routes, perCluster[i]...)
		plan.SubClusters += subCounts[i]
	}
	plan.Warnings = append(plan.Warnings, unknownVehicleWarnings(plan.Routes)...)

	if req.Persist {
		if err := p.persistRoutes(ctx, req, plan.Kind, plan.Routes); err != nil {
			return RoutePlan{}, fmt.Errorf("plan last mile: %w", err)
		}
	}
	return plan, nil
}

// routeCluster splits one cluster and lays out a route per sub-cluster.
// A sub-cluster heavier than the largest vehicle is cut along its sequence.
func (p *Planner) routeCluster(
	ctx context.Context,
	req PlanRequest,
	cl domain.Cluster,
	tariffs domain.TariffTable,
) ([]domain.Route, int, error) {
	subs, err := p.splitter.Split(ctx, req.TenantID, cl.ClusterID, cl.Center, cl.Members, p.cfg.Split)
	if err != nil {
		return nil, 0, err
	}

	memo := newLegMemo(p.deps.Oracle, req.TenantID)
	depot := domain.RouteStop{StopID: cl.ClusterID, Coords: cl.Center, City: cl.CenterCity}
	maxKg := tariffs.MaxCapacityKg()

	var routes []domain.Route
	for _, sub := range subs {
		chunks := splitByWeight(sub.Sequence, maxKg)
		for ci, chunk := range chunks {
			stops := make([]domain.RouteStop, 0, len(chunk))
			cities := make([]string, 0, len(chunk))
			for _, d := range chunk {
				stops = append(stops, deliveryStop(d))
				cities = append(cities, d.CityName)
			}

			route, err := assembleRoute(ctx, memo, depot, stops, p.cfg.Split.Service, false)
			if err != nil {
				return nil, 0, fmt.Errorf("route cluster %s: %w", cl.ClusterID, err)
			}

			route.Kind = domain.RouteKindLastMile
			route.ClusterID = cl.ClusterID
			route.SubClusterID = sub.SubClusterID
			if len(chunks) > 1 {
				route.SubClusterID = fmt.Sprintf("%s.%d", sub.SubClusterID, ci+1)
			}
			route.OverrideTimeLimit = route.TransitTimeMin > p.cfg.Split.MaxRouteTimeMin
			route.VehicleType, route.VehicleCapacityKg = SelectVehicle(route.Load.WeightKg, tariffs,
				&CityConstraint{StopCities: cities, ClusterCity: cl.CenterCity})
			stamp(&route, req)

			routes = append(routes, route)
		}
	}

	return routes, len(subs), nil
}

func (p *Planner) transfers(ctx context.Context, req PlanRequest, hub domain.Hub, stage clusterStage) (RoutePlan, error) {
	tariffs, err := p.deps.Tenants.ListTariffs(ctx, req.TenantID, domain.RouteKindTransfer)
	if err != nil {
		return RoutePlan{}, fmt.Errorf("plan transfers: list tariffs: %w", err)
	}

	maxKg := tariffs.MaxCapacityKg()
	if p.cfg.TransferMaxWeightKg > 0 {
		maxKg = min(maxKg, p.cfg.TransferMaxWeightKg)
	}
	opts := SavingsOptions{
		MaxWeightKg: maxKg,
		MaxTimeMin:  p.cfg.TransferMaxTimeMin,
		Service:     p.cfg.Split.Service,
	}

	plan := RoutePlan{
		Key:       req.Key(),
		Kind:      domain.RouteKindTransfer,
		Discarded: stage.plan.Discarded,
		Warnings:  stage.plan.Warnings,
	}

	res, err := p.savings.BuildWithRetry(ctx, req.TenantID, hub, opts, p.cfg.TransferRetryAttempts, p.regrouper(stage))
	if err != nil {
		return RoutePlan{}, fmt.Errorf("plan transfers: %w", err)
	}

	for i := range res.Routes {
		r := &res.Routes[i]
		r.Kind = domain.RouteKindTransfer
		r.VehicleType, r.VehicleCapacityKg = SelectVehicle(r.Load.WeightKg, tariffs, nil)
		stamp(r, req)
	}
	plan.Routes = res.Routes
	plan.DirectRoutes = res.DirectRoutes
	plan.Attempt = res.Attempt
	plan.Warnings = append(plan.Warnings, unknownVehicleWarnings(plan.Routes)...)

	if res.PreSplit > 0 {
		plan.Warnings = append(plan.Warnings, fmt.Sprintf("%d clusters pre-split over %.0fkg", res.PreSplit, maxKg))
	}

	if req.Persist {
		if err := p.persistRoutes(ctx, req, plan.Kind, plan.Routes); err != nil {
			return RoutePlan{}, fmt.Errorf("plan transfers: %w", err)
		}
	}
	return plan, nil
}

// regrouper serves the stage clusters on attempt 0. Later attempts re-cluster
// the non-hub deliveries into strictly more groups than the previous attempt,
// with small-cluster merging off so the extra clusters survive.
func (p *Planner) regrouper(stage clusterStage) func(context.Context, int) ([]SavingsGroup, error) {
	opts := p.cfg.Cluster
	opts.MergeSmallClusters = false
	prev := 0

	return func(ctx context.Context, attempt int) ([]SavingsGroup, error) {
		if attempt == 0 {
			groups := savingsGroups(stage.plan.Clusters)
			prev = len(groups)
			return groups, nil
		}

		for k := prev + 1; k <= len(stage.remaining); k++ {
			res, err := p.clusterer.ClusterWithK(ctx, stage.remaining, k, opts)
			if err != nil {
				return nil, err
			}
			if groups := savingsGroups(res.Clusters); len(groups) > prev {
				prev = len(groups)
				return groups, nil
			}
			// Fewer distinct locations than k.
			if res.K < k {
				break
			}
		}
		return nil, ErrNoFinerGrouping
	}
}

func (p *Planner) persistClusters(ctx context.Context, req PlanRequest, clusters []domain.Cluster) error {
	if p.deps.Plans == nil {
		return errors.New("persist clusters: no plan repository configured")
	}
	if err := p.deps.Plans.ReplaceClusters(ctx, req.Key(), clusters); err != nil {
		return fmt.Errorf("persist clusters: %w", err)
	}
	return nil
}

func (p *Planner) persistRoutes(ctx context.Context, req PlanRequest, kind domain.RouteKind, routes []domain.Route) error {
	if p.deps.Plans == nil {
		return errors.New("persist routes: no plan repository configured")
	}
	if err := p.deps.Plans.ReplaceRoutes(ctx, req.Key(), kind, routes); err != nil {
		return fmt.Errorf("persist routes: %w", err)
	}
	return nil
}

// savingsGroups turns every non-hub cluster into a savings group.
func savingsGroups(clusters []domain.Cluster) []SavingsGroup {
	out := make([]SavingsGroup, 0, len(clusters))
	for _, cl := range clusters {
		if cl.IsHub() {
			continue
		}
		out = append(out, SavingsGroup{
			ID:          cl.ClusterID,
			Coords:      cl.Center,
			City:        cl.CenterCity,
			Load:        cl.Totals(),
			DeliveryIDs: cl.MemberIDs(),
		})
	}
	return out
}

// splitByWeight cuts seq into consecutive runs each lighter than maxKg.
// Every single delivery is assumed lighter than maxKg.
func splitByWeight(seq []domain.DeliveryPoint, maxKg float64) [][]domain.DeliveryPoint {
	var out [][]domain.DeliveryPoint
	start, sum := 0, 0.0
	for i, d := range seq {
		if i > start && sum+d.WeightKg >= maxKg {
			out = append(out, seq[start:i])
			start, sum = i, 0
		}
		sum += d.WeightKg
	}
	if start < len(seq) {
		out = append(out, seq[start:])
	}
	return out
}

func deliveryStop(d domain.DeliveryPoint) domain.RouteStop {
	return domain.RouteStop{
		StopID: d.ID,
		Kind:   domain.StopKindDelivery,
		Coords: d.Coords(),
		City:   d.CityName,
		Load: domain.Totals{
			WeightKg:      d.WeightKg,
			Volume:        d.VolumeCount,
			DeclaredValue: d.DeclaredValue,
			FreightValue:  d.FreightValue,
		},
		DeliveryIDs: []string{d.ID},
	}
}

func stamp(r *domain.Route, req PlanRequest) {
	r.RouteID = uuid.Must(uuid.NewV7()).String()
	r.TenantID = req.TenantID
	r.ShipDate = req.ShipDate
	r.K = req.K
}

func unknownVehicleWarnings(routes []domain.Route) []string {
	var out []string
	for _, r := range routes {
		if r.VehicleType == domain.UnknownVehicle {
			out = append(out, fmt.Sprintf("route %s (%.1fkg): no tariff tier fits", r.RouteID, r.Load.WeightKg))
		}
	}
	return out
}
