package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNoValidCenter is returned when a center is requested for an empty point set.
	ErrNoValidCenter = errors.New("no valid center: empty point set")
	// ErrNotConfigured marks missing tenant configuration (hub, tariff table).
	ErrNotConfigured = errors.New("tenant not configured")
)

// InfeasibleConstraintError means a load cannot be served by any configured vehicle,
// or no feasible route set exists after all regrouping attempts.
type InfeasibleConstraintError struct {
	Reason      string
	WeightKg    float64
	MaxWeightKg float64
	Attempts    int
}

func (e *InfeasibleConstraintError) Error() string {
	return fmt.Sprintf("infeasible constraint: %s (weight=%.1fkg max=%.1fkg attempts=%d)",
		e.Reason, e.WeightKg, e.MaxWeightKg, e.Attempts)
}

// RoutingBackendUnavailableError is recorded when every routing provider failed
// for a pair. It is never returned to planning callers; the minimal route is used instead.
type RoutingBackendUnavailableError struct {
	Origin      Coordinates
	Destination Coordinates
	Causes      []error
}

func (e *RoutingBackendUnavailableError) Error() string {
	return fmt.Sprintf("routing backends unavailable for %s -> %s: %v",
		e.Origin.Key(), e.Destination.Key(), errors.Join(e.Causes...))
}

func (e *RoutingBackendUnavailableError) Unwrap() []error { return e.Causes }

// UnresolvableSubdivisionError is fatal: the splitter hit its depth bound
// without reaching a feasible or single-member group.
type UnresolvableSubdivisionError struct {
	ClusterID       string
	PointCount      int
	Depth           int
	MaxDepth        int
	EstimatedMin    float64
	MaxRouteTimeMin float64
}

func (e *UnresolvableSubdivisionError) Error() string {
	return fmt.Sprintf("unresolvable subdivision: cluster=%s points=%d depth=%d/%d estimated=%.1fmin max=%.1fmin",
		e.ClusterID, e.PointCount, e.Depth, e.MaxDepth, e.EstimatedMin, e.MaxRouteTimeMin)
}

// OutOfRegionError describes a delivery discarded by the bounds validator.
type OutOfRegionError struct {
	DeliveryID string
	RegionCode string
	Coords     Coordinates
}

func (e *OutOfRegionError) Error() string {
	return fmt.Sprintf("delivery %s at %s outside region %q", e.DeliveryID, e.Coords.Key(), e.RegionCode)
}
