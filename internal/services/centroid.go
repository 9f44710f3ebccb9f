package services

import (
	"hash/fnv"
	"math"
	"math/rand/v2"

	"route-planner/internal/domain"
)

type CenterStrategy string

const (
	// CenterKDE picks the peak of a Gaussian kernel density estimate.
	CenterKDE CenterStrategy = "kde"
	// CenterMedoid picks the point minimising the sum of distances to all others.
	CenterMedoid CenterStrategy = "medoid"
)

const (
	kdeGridSize = 25
	// Jitter moves a center that sits on a real delivery by at most this many degrees.
	maxJitterDeg = 0.0005
	minJitterDeg = 0.0001
)

// CentroidFinder locates the operating center of a point set.
// It holds no mutable state, so one finder can serve concurrent plans.
type CentroidFinder struct {
	Strategy CenterStrategy
	Seed     int64
}

func NewCentroidFinder(strategy CenterStrategy, seed int64) *CentroidFinder {
	if strategy == "" {
		strategy = CenterKDE
	}
	return &CentroidFinder{Strategy: strategy, Seed: seed}
}

// FindCenter returns the representative center of points, or
// domain.ErrNoValidCenter for an empty set. A center that coincides with a
// delivery is jittered so it stays distinguishable from the stop.
func (f *CentroidFinder) FindCenter(points []domain.Coordinates) (domain.Coordinates, error) {
	if len(points) == 0 {
		return domain.Coordinates{}, domain.ErrNoValidCenter
	}

	var c domain.Coordinates
	switch f.Strategy {
	case CenterMedoid:
		c = medoid(points)
	default:
		c = kdePeak(points)
	}

	for _, p := range points {
		if p == c {
			return f.jitter(c), nil
		}
	}
	return c, nil
}

// jitter is seeded from the center itself so repeated runs agree.
func (f *CentroidFinder) jitter(c domain.Coordinates) domain.Coordinates {
	h := fnv.New64a()
	_, _ = h.Write([]byte(c.Key()))
	rng := rand.New(rand.NewPCG(uint64(f.Seed), h.Sum64()))

	offset := func() float64 {
		d := minJitterDeg + rng.Float64()*(maxJitterDeg-minJitterDeg)
		if rng.IntN(2) == 0 {
			d = -d
		}
		return d
	}
	return domain.Coordinates{Lat: c.Lat + offset(), Lon: c.Lon + offset()}
}

func medoid(points []domain.Coordinates) domain.Coordinates {
	best := points[0]
	bestSum := math.Inf(1)
	for _, p := range points {
		sum := 0.0
		for _, q := range points {
			sum += domain.HaversineKm(p, q)
			if sum >= bestSum {
				break
			}
		}
		if sum < bestSum {
			bestSum = sum
			best = p
		}
	}
	return best
}

// kdePeak evaluates a Gaussian KDE (Scott's bandwidth) on a grid over the
// bounding box and at every input point, returning the densest location.
func kdePeak(points []domain.Coordinates) domain.Coordinates {
	n := float64(len(points))

	var meanLat, meanLon float64
	minLat, maxLat := math.Inf(1), math.Inf(-1)
	minLon, maxLon := math.Inf(1), math.Inf(-1)
	for _, p := range points {
		meanLat += p.Lat
		meanLon += p.Lon
		minLat, maxLat = math.Min(minLat, p.Lat), math.Max(maxLat, p.Lat)
		minLon, maxLon = math.Min(minLon, p.Lon), math.Max(maxLon, p.Lon)
	}
	meanLat /= n
	meanLon /= n

	var varLat, varLon float64
	for _, p := range points {
		varLat += (p.Lat - meanLat) * (p.Lat - meanLat)
		varLon += (p.Lon - meanLon) * (p.Lon - meanLon)
	}
	if len(points) > 1 {
		varLat /= n - 1
		varLon /= n - 1
	}

	// All points coincide: there is no spread to estimate.
	if varLat == 0 && varLon == 0 {
		return points[0]
	}

	scott := math.Pow(n, -1.0/6.0)
	hLat := math.Max(math.Sqrt(varLat)*scott, 1e-9)
	hLon := math.Max(math.Sqrt(varLon)*scott, 1e-9)

	density := func(c domain.Coordinates) float64 {
		sum := 0.0
		for _, p := range points {
			dy := (c.Lat - p.Lat) / hLat
			dx := (c.Lon - p.Lon) / hLon
			sum += math.Exp(-0.5 * (dx*dx + dy*dy))
		}
		return sum
	}

	best := points[0]
	bestDensity := math.Inf(-1)
	consider := func(c domain.Coordinates) {
		if d := density(c); d > bestDensity {
			bestDensity = d
			best = c
		}
	}

	for _, p := range points {
		consider(p)
	}
	for i := 0; i < kdeGridSize; i++ {
		lat := minLat + (maxLat-minLat)*float64(i)/float64(kdeGridSize-1)
		for j := 0; j < kdeGridSize; j++ {
			lon := minLon + (maxLon-minLon)*float64(j)/float64(kdeGridSize-1)
			consider(domain.Coordinates{Lat: lat, Lon: lon})
		}
	}

	return best
}
