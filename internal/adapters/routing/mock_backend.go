package routing

import (
	"context"
	"fmt"
	"sync/atomic"

	"route-planner/internal/domain"
)

type MockPair struct {
	From, To   domain.Coordinates
	DistanceKm float64
	TimeMin    float64
}

// MockBackend answers with fixed pairs when registered, and otherwise with the
// straight-line distance driven at SpeedKmh. Fail makes every call error.
type MockBackend struct {
	name     string
	m        map[string]domain.RouteResult
	SpeedKmh float64
	Fail     bool
	calls    atomic.Int64
}

func NewMockBackend(name string, pairs []MockPair) *MockBackend {
	m := make(map[string]domain.RouteResult, len(pairs))
	for _, p := range pairs {
		m[p.From.Key()+"|"+p.To.Key()] = domain.RouteResult{DistanceKm: p.DistanceKm, TimeMin: p.TimeMin}
	}
	return &MockBackend{name: name, m: m, SpeedKmh: 60}
}

func (b *MockBackend) Name() string { return b.name }

// Calls reports how many times Route was invoked.
func (b *MockBackend) Calls() int64 { return b.calls.Load() }

func (b *MockBackend) Route(ctx context.Context, origin, destination domain.Coordinates) (domain.RouteResult, error) {
	b.calls.Add(1)

	if err := ctx.Err(); err != nil {
		return domain.RouteResult{}, err
	}
	if b.Fail {
		return domain.RouteResult{}, fmt.Errorf("%s: backend unavailable", b.name)
	}

	if r, ok := b.m[origin.Key()+"|"+destination.Key()]; ok {
		return r, nil
	}

	km := domain.HaversineKm(origin, destination)
	if km <= 0 {
		return domain.RouteResult{}, fmt.Errorf("%s: no usable distance for %q -> %q", b.name, origin.Key(), destination.Key())
	}
	speed := b.SpeedKmh
	if speed <= 0 {
		speed = 60
	}
	return domain.RouteResult{
		DistanceKm: km,
		TimeMin:    km / speed * 60,
		Polyline:   b.name + ":" + origin.Key() + ";" + destination.Key(),
	}, nil
}
