package services

import (
	"context"
	"fmt"
	"log/slog"

	"route-planner/internal/domain"
	"route-planner/internal/ports"
)

type SequenceStrategy string

const (
	SequenceHorseshoe       SequenceStrategy = "horseshoe"
	SequenceNearestNeighbor SequenceStrategy = "nearest_neighbor"
)

type SplitOptions struct {
	TargetPerSubcluster int
	MaxRouteTimeMin     float64
	// MaxDepth bounds the k=2 re-splits below the initial grouping.
	MaxDepth int
	Seed     int64
	Service  ServiceTimes
	Sequence SequenceStrategy
}

// Splitter breaks one cluster into sub-clusters whose estimated route time
// (outbound travel plus service) fits MaxRouteTimeMin. Single-delivery groups
// are always accepted.
type Splitter struct {
	oracle ports.DistanceTimeOracle
	logger *slog.Logger
}

func NewSplitter(oracle ports.DistanceTimeOracle, logger *slog.Logger) *Splitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Splitter{oracle: oracle, logger: logger}
}

type splitRun struct {
	tenantID  string
	clusterID string
	depot     domain.Coordinates
	opts      SplitOptions
	memo      *legMemo
	out       []domain.SubCluster
}

// Split returns the terminal sub-clusters of points in depth-first order.
// The error is a *domain.UnresolvableSubdivisionError when the depth bound
// is hit, or the context error.
func (s *Splitter) Split(
	ctx context.Context,
	tenantID string,
	clusterID string,
	depot domain.Coordinates,
	points []domain.DeliveryPoint,
	opts SplitOptions,
) ([]domain.SubCluster, error) {
	if len(points) == 0 {
		return nil, nil
	}

	run := &splitRun{
		tenantID:  tenantID,
		clusterID: clusterID,
		depot:     depot,
		opts:      opts,
		memo:      newLegMemo(s.oracle, tenantID),
	}

	k := 1
	if opts.TargetPerSubcluster > 0 {
		k = max(1, len(points)/opts.TargetPerSubcluster)
	}

	km, err := kmeans(coordsOf(points), k, opts.Seed)
	if err != nil {
		return nil, fmt.Errorf("split cluster %s: %w", clusterID, err)
	}

	for _, g := range groupByLabel(points, km) {
		if err := s.refine(ctx, run, g, 0); err != nil {
			return nil, err
		}
	}

	for i := range run.out {
		run.out[i].SubClusterID = fmt.Sprintf("%s-%d", clusterID, i+1)
	}

	s.logger.DebugContext(ctx, "cluster split",
		"tenant", tenantID, "cluster", clusterID, "points", len(points), "subclusters", len(run.out))

	return run.out, nil
}

func (s *Splitter) refine(ctx context.Context, run *splitRun, group []domain.DeliveryPoint, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	seq, estimate, err := s.estimate(ctx, run, group)
	if err != nil {
		return fmt.Errorf("split cluster %s: %w", run.clusterID, err)
	}

	if estimate <= run.opts.MaxRouteTimeMin || len(group) == 1 {
		run.out = append(run.out, domain.SubCluster{
			ClusterID:      run.clusterID,
			Members:        group,
			Sequence:       seq,
			TransitTimeMin: estimate,
			Depth:          depth,
		})
		return nil
	}

	if depth >= run.opts.MaxDepth {
		return &domain.UnresolvableSubdivisionError{
			ClusterID:       run.clusterID,
			PointCount:      len(group),
			Depth:           depth,
			MaxDepth:        run.opts.MaxDepth,
			EstimatedMin:    estimate,
			MaxRouteTimeMin: run.opts.MaxRouteTimeMin,
		}
	}

	for _, half := range s.halve(run, group) {
		if err := s.refine(ctx, run, half, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// halve splits with k=2 k-means, or by distance bands when k-means cannot
// separate the group (coincident points).
func (s *Splitter) halve(run *splitRun, group []domain.DeliveryPoint) [][]domain.DeliveryPoint {
	km, err := kmeans(coordsOf(group), 2, run.opts.Seed)
	if err == nil && km.k() == 2 {
		return groupByLabel(group, km)
	}
	return splitIntoBands(run.depot, group, 2)
}

// estimate sequences the group and returns outbound travel plus service time.
func (s *Splitter) estimate(
	ctx context.Context,
	run *splitRun,
	group []domain.DeliveryPoint,
) ([]domain.DeliveryPoint, float64, error) {
	seq, err := sequenceGroup(ctx, run.opts.Sequence, s.oracle, run.tenantID, run.depot, group)
	if err != nil {
		return nil, 0, err
	}

	m, err := run.memo.walk(ctx, run.depot, coordsOf(seq), false)
	if err != nil {
		return nil, 0, err
	}

	return seq, m.outboundMin + run.opts.Service.For(len(seq), domain.SumDeliveries(seq)), nil
}

func sequenceGroup(
	ctx context.Context,
	strategy SequenceStrategy,
	oracle ports.DistanceTimeOracle,
	tenantID string,
	depot domain.Coordinates,
	group []domain.DeliveryPoint,
) ([]domain.DeliveryPoint, error) {
	if strategy == SequenceNearestNeighbor {
		return NearestNeighborSequence(ctx, oracle, tenantID, depot, group)
	}
	return SequenceDeliveries(depot, group), nil
}
