package services

import (
	"errors"
	"math"
	"math/rand/v2"

	"route-planner/internal/domain"
)

const (
	kmeansMaxIter  = 100
	kmeansRestarts = 4
	kmeansTol      = 1e-10
)

type kmeansResult struct {
	labels  []int
	centers []domain.Coordinates
	inertia float64
}

// k reports the number of non-empty groups.
func (r kmeansResult) k() int { return len(r.centers) }

var errKMeansInput = errors.New("kmeans: need at least one point and k >= 1")

// kmeans runs seeded k-means++ / Lloyd on (lat, lon) only, keeping the best of
// a few restarts by inertia. Identical input and seed give identical labels.
// When the points have fewer distinct locations than k, fewer groups come back.
// Labels are renumbered in order of first appearance.
func kmeans(points []domain.Coordinates, k int, seed int64) (kmeansResult, error) {
	n := len(points)
	if n == 0 || k < 1 {
		return kmeansResult{}, errKMeansInput
	}
	k = min(k, n)

	rng := rand.New(rand.NewPCG(uint64(seed), uint64(k)))

	var best kmeansResult
	best.inertia = math.Inf(1)
	for r := 0; r < kmeansRestarts; r++ {
		res := lloyd(points, seedCenters(points, k, rng))
		if res.inertia < best.inertia-kmeansTol {
			best = res
		}
	}
	return canonical(best), nil
}

// seedCenters is k-means++ initialisation.
func seedCenters(points []domain.Coordinates, k int, rng *rand.Rand) []domain.Coordinates {
	centers := make([]domain.Coordinates, 0, k)
	centers = append(centers, points[rng.IntN(len(points))])

	d2 := make([]float64, len(points))
	for len(centers) < k {
		total := 0.0
		for i, p := range points {
			d2[i] = math.Inf(1)
			for _, c := range centers {
				d2[i] = math.Min(d2[i], sqDist(p, c))
			}
			total += d2[i]
		}
		if total == 0 {
			// Every remaining point sits on a center.
			break
		}

		target := rng.Float64() * total
		idx := -1
		for i, d := range d2 {
			if d == 0 {
				continue
			}
			idx = i
			target -= d
			if target <= 0 {
				break
			}
		}
		centers = append(centers, points[idx])
	}
	return centers
}

func lloyd(points []domain.Coordinates, centers []domain.Coordinates) kmeansResult {
	k := len(centers)
	labels := make([]int, len(points))

	for iter := 0; iter < kmeansMaxIter; iter++ {
		changed := false
		for i, p := range points {
			l := nearestCenter(p, centers)
			if iter == 0 || l != labels[i] {
				changed = true
			}
			labels[i] = l
		}

		sums := make([]domain.Coordinates, k)
		counts := make([]int, k)
		for i, p := range points {
			sums[labels[i]].Lat += p.Lat
			sums[labels[i]].Lon += p.Lon
			counts[labels[i]]++
		}
		for c := range centers {
			if counts[c] == 0 {
				// Empty group: re-seed with the point farthest from its center.
				far, farD := 0, -1.0
				for i, p := range points {
					if d := sqDist(p, centers[labels[i]]); d > farD {
						far, farD = i, d
					}
				}
				centers[c] = points[far]
				changed = true
				continue
			}
			centers[c] = domain.Coordinates{
				Lat: sums[c].Lat / float64(counts[c]),
				Lon: sums[c].Lon / float64(counts[c]),
			}
		}

		if !changed {
			break
		}
	}

	inertia := 0.0
	for i, p := range points {
		labels[i] = nearestCenter(p, centers)
		inertia += sqDist(p, centers[labels[i]])
	}
	return kmeansResult{labels: labels, centers: centers, inertia: inertia}
}

// canonical drops empty groups and renumbers labels by first appearance.
func canonical(r kmeansResult) kmeansResult {
	remap := make(map[int]int)
	var centers []domain.Coordinates
	labels := make([]int, len(r.labels))
	for i, l := range r.labels {
		nl, ok := remap[l]
		if !ok {
			nl = len(centers)
			remap[l] = nl
			centers = append(centers, r.centers[l])
		}
		labels[i] = nl
	}
	return kmeansResult{labels: labels, centers: centers, inertia: r.inertia}
}

func nearestCenter(p domain.Coordinates, centers []domain.Coordinates) int {
	best, bestD := 0, math.Inf(1)
	for c, center := range centers {
		if d := sqDist(p, center); d < bestD {
			best, bestD = c, d
		}
	}
	return best
}

func sqDist(a, b domain.Coordinates) float64 {
	dLat := a.Lat - b.Lat
	dLon := a.Lon - b.Lon
	return dLat*dLat + dLon*dLon
}

// groupByLabel splits items by kmeans labels, preserving input order.
func groupByLabel[T any](items []T, r kmeansResult) [][]T {
	groups := make([][]T, r.k())
	for i, it := range items {
		groups[r.labels[i]] = append(groups[r.labels[i]], it)
	}
	return groups
}
