package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"route-planner/internal/domain"
	"route-planner/internal/ports"
)

type ClusterOptions struct {
	KMin                 int
	KMax                 int
	TargetMinPerCluster  int
	MergeSmallClusters   bool
	MaxMembersPerCluster int
	SnapCenterToLocality bool
	Seed                 int64
}

type ClusterResult struct {
	Clusters []domain.Cluster
	// K is the k-means cluster count before small-cluster merging.
	K int
	// ElbowFallback is set when the elbow heuristic could not pick k.
	ElbowFallback bool
	Warnings      []string
}

// Clusterer partitions deliveries into geographic clusters.
type Clusterer struct {
	centers  *CentroidFinder
	geocoder ports.ReverseGeocoder
	logger   *slog.Logger
}

// geocoder may be nil, in which case center cities come from member data.
func NewClusterer(centers *CentroidFinder, geocoder ports.ReverseGeocoder, logger *slog.Logger) *Clusterer {
	if centers == nil {
		centers = NewCentroidFinder(CenterKDE, 0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Clusterer{centers: centers, geocoder: geocoder, logger: logger}
}

// Cluster picks k with the elbow heuristic over [KMin, KMax] and clusters points.
func (c *Clusterer) Cluster(ctx context.Context, points []domain.DeliveryPoint, opts ClusterOptions) (ClusterResult, error) {
	if len(points) == 0 {
		return ClusterResult{}, nil
	}
	k, fallback := c.chooseK(coordsOf(points), opts)
	res, err := c.ClusterWithK(ctx, points, k, opts)
	res.ElbowFallback = fallback
	return res, err
}

// ClusterWithK clusters with a fixed k, then fixes centers, merges small
// clusters when enabled and snaps centers to localities.
func (c *Clusterer) ClusterWithK(
	ctx context.Context,
	points []domain.DeliveryPoint,
	k int,
	opts ClusterOptions,
) (ClusterResult, error) {
	if len(points) == 0 {
		return ClusterResult{}, nil
	}

	km, err := kmeans(coordsOf(points), max(k, 1), opts.Seed)
	if err != nil {
		return ClusterResult{}, fmt.Errorf("cluster: %w", err)
	}

	var res ClusterResult
	res.K = km.k()

	clusters := make([]domain.Cluster, 0, km.k())
	for _, members := range groupByLabel(points, km) {
		center, err := c.centers.FindCenter(coordsOf(members))
		if errors.Is(err, domain.ErrNoValidCenter) {
			res.Warnings = append(res.Warnings, "skipped empty cluster")
			continue
		}
		if err != nil {
			return ClusterResult{}, fmt.Errorf("cluster: find center: %w", err)
		}
		clusters = append(clusters, domain.Cluster{Center: center, Members: members})
	}

	if opts.MergeSmallClusters && opts.TargetMinPerCluster > 0 {
		clusters, err = c.mergeSmall(clusters, opts)
		if err != nil {
			return ClusterResult{}, err
		}
	}

	for i := range clusters {
		clusters[i].ClusterID = fmt.Sprintf("C%d", i+1)
		if err := c.snapLocality(ctx, &clusters[i], opts.SnapCenterToLocality); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ClusterResult{}, ctxErr
			}
			res.Warnings = append(res.Warnings, fmt.Sprintf("cluster %s: %v", clusters[i].ClusterID, err))
		}
	}

	res.Clusters = clusters
	return res, nil
}

// chooseK runs k-means for every k in range and returns the k at maximum
// perpendicular distance from the line joining the first and last
// (k, inertia) points. Falls back to max(KMin, n/TargetMinPerCluster)
// capped at KMax when the curve has no usable elbow.
func (c *Clusterer) chooseK(points []domain.Coordinates, opts ClusterOptions) (int, bool) {
	n := len(points)
	lo := max(opts.KMin, 1)
	hi := min(opts.KMax, n)

	fallback := func() (int, bool) {
		k := lo
		if opts.TargetMinPerCluster > 0 {
			k = max(lo, n/opts.TargetMinPerCluster)
		}
		if opts.KMax > 0 {
			k = min(k, opts.KMax)
		}
		return max(1, min(k, n)), true
	}

	if hi-lo+1 < 3 {
		return fallback()
	}

	ks := make([]float64, 0, hi-lo+1)
	inertias := make([]float64, 0, hi-lo+1)
	for k := lo; k <= hi; k++ {
		r, err := kmeans(points, k, opts.Seed)
		if err != nil {
			return fallback()
		}
		ks = append(ks, float64(k))
		inertias = append(inertias, r.inertia)
		if r.k() < k {
			// Out of distinct locations; larger k cannot lower inertia.
			break
		}
	}

	idx := elbowIndex(ks, inertias)
	if idx < 0 {
		return fallback()
	}
	return int(ks[idx]), false
}

// elbowIndex returns the index farthest from the chord between the first and
// last points, or -1 when no point lies off the chord.
func elbowIndex(xs, ys []float64) int {
	if len(xs) < 3 {
		return -1
	}
	x0, y0 := xs[0], ys[0]
	x1, y1 := xs[len(xs)-1], ys[len(ys)-1]

	best, bestD := -1, 0.0
	for i := 1; i < len(xs)-1; i++ {
		// Twice the triangle area; the chord length is common to every point.
		d := math.Abs((y1-y0)*xs[i] - (x1-x0)*ys[i] + x1*y0 - y1*x0)
		if d > bestD {
			best, bestD = i, d
		}
	}
	return best
}

// mergeSmall folds undersized clusters into their nearest neighbour by
// center distance. With MaxMembersPerCluster set, only neighbours with room
// for the whole cluster qualify. Stops when nothing is undersized, one
// cluster remains, or no undersized cluster has a valid target.
func (c *Clusterer) mergeSmall(clusters []domain.Cluster, opts ClusterOptions) ([]domain.Cluster, error) {
	stuck := make(map[int]bool)
	// Identity survives slice removals.
	ids := make([]int, len(clusters))
	for i := range ids {
		ids[i] = i
	}

	for len(clusters) > 1 {
		small := -1
		for i, cl := range clusters {
			if len(cl.Members) >= opts.TargetMinPerCluster || stuck[ids[i]] {
				continue
			}
			if small < 0 || len(cl.Members) < len(clusters[small].Members) {
				small = i
			}
		}
		if small < 0 {
			break
		}

		target := -1
		bestD := math.Inf(1)
		for j, cl := range clusters {
			if j == small {
				continue
			}
			if opts.MaxMembersPerCluster > 0 && len(cl.Members)+len(clusters[small].Members) > opts.MaxMembersPerCluster {
				continue
			}
			if d := domain.EuclideanDeg(clusters[small].Center, cl.Center); d < bestD {
				target, bestD = j, d
			}
		}
		if target < 0 {
			stuck[ids[small]] = true
			continue
		}

		merged := clusters[target]
		merged.Members = append(append([]domain.DeliveryPoint(nil), merged.Members...), clusters[small].Members...)
		center, err := c.centers.FindCenter(coordsOf(merged.Members))
		if err != nil {
			return nil, fmt.Errorf("merge clusters: recompute center: %w", err)
		}
		merged.Center = center
		clusters[target] = merged
		// A grown cluster may now have room to absorb others.
		clear(stuck)

		clusters = append(clusters[:small], clusters[small+1:]...)
		ids = append(ids[:small], ids[small+1:]...)
	}
	return clusters, nil
}

func (c *Clusterer) snapLocality(ctx context.Context, cl *domain.Cluster, moveCenter bool) error {
	cl.CenterCity = dominantCity(cl.Members)
	if c.geocoder == nil {
		return nil
	}

	loc, err := c.geocoder.Reverse(ctx, cl.Center)
	if err != nil {
		return fmt.Errorf("reverse geocode center %s: %w", cl.Center.Key(), err)
	}
	cl.CenterCity = loc.Name
	if moveCenter && !loc.Coords.IsZero() {
		cl.Center = loc.Coords
	}
	return nil
}

// dominantCity is the most frequent member city; ties go to the
// alphabetically first name.
func dominantCity(points []domain.DeliveryPoint) string {
	counts := make(map[string]int)
	names := make(map[string]string)
	for _, p := range points {
		k := normalizeCity(p.CityName)
		if k == "" {
			continue
		}
		counts[k]++
		if _, ok := names[k]; !ok {
			names[k] = strings.TrimSpace(p.CityName)
		}
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) == 0 {
		return ""
	}
	return names[keys[0]]
}

func normalizeCity(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func coordsOf(points []domain.DeliveryPoint) []domain.Coordinates {
	out := make([]domain.Coordinates, len(points))
	for i, p := range points {
		out[i] = p.Coords()
	}
	return out
}
