package domain

import "time"

type RouteKind string

const (
	RouteKindLastMile RouteKind = "last_mile"
	RouteKindTransfer RouteKind = "transfer"
)

type StopKind string

const (
	StopKindDepot    StopKind = "depot"
	StopKindDelivery StopKind = "delivery"
	StopKindCluster  StopKind = "cluster"
)

// Represents a single stop in a route. A stop is either the depot, one
// delivery (last-mile) or a cluster centroid carrying that cluster's load (transfer).
type RouteStop struct {
	Sequence           int         `json:"sequence"`
	StopID             string      `json:"stop_id"`
	Kind               StopKind    `json:"kind"`
	Coords             Coordinates `json:"coords"`
	City               string      `json:"city,omitempty"`
	Load               Totals      `json:"load"`
	DeliveryIDs        []string    `json:"delivery_ids,omitempty"`
	DistanceFromPrevKm float64     `json:"distance_from_prev_km"`
	ArriveAtMin        float64     `json:"arrive_at_min"`
}

// Route is an ordered sequence of stops with its load, metrics and vehicle.
// Stops[0] is always the depot. TotalWeightKg never exceeds the vehicle capacity
// and TransitTimeMin stays within the ceiling unless OverrideTimeLimit is set.
type Route struct {
	RouteID           string      `json:"route_id"`
	Kind              RouteKind   `json:"kind"`
	TenantID          string      `json:"tenant_id"`
	ShipDate          time.Time   `json:"ship_date"`
	K                 int         `json:"k"`
	ClusterID         string      `json:"cluster_id,omitempty"`
	SubClusterID      string      `json:"subcluster_id,omitempty"`
	Stops             []RouteStop `json:"stops"`
	Load              Totals      `json:"load"`
	OutboundKm        float64     `json:"outbound_km"`
	OutboundMin       float64     `json:"outbound_min"`
	ReturnKm          float64     `json:"return_km"`
	ReturnMin         float64     `json:"return_min"`
	ServiceMin        float64     `json:"service_min"`
	DistanceKm        float64     `json:"distance_km"`
	TransitTimeMin    float64     `json:"transit_time_min"`
	VehicleType       string      `json:"vehicle_type"`
	VehicleCapacityKg float64     `json:"vehicle_capacity_kg"`
	Polyline          []string    `json:"polyline,omitempty"`
	OverrideTimeLimit bool        `json:"override_time_limit"`
}

// DestinationStops returns the stops after the depot.
func (r Route) DestinationStops() []RouteStop {
	if len(r.Stops) == 0 {
		return nil
	}
	if r.Stops[0].Kind == StopKindDepot {
		return r.Stops[1:]
	}
	return r.Stops
}

func (r Route) StartsAtDepot() bool {
	return len(r.Stops) > 0 && r.Stops[0].Kind == StopKindDepot
}

// RouteResult is the distance/time/geometry between two coordinates.
type RouteResult struct {
	DistanceKm float64 `json:"distance_km"`
	TimeMin    float64 `json:"time_min"`
	Polyline   string  `json:"polyline"`
}

const (
	MinimalDistanceKm = 0.03
	MinimalTimeMin    = 0.2
)

// MinimalRoute is returned for coincident endpoints and as the last-resort fallback.
func MinimalRoute() RouteResult {
	return RouteResult{DistanceKm: MinimalDistanceKm, TimeMin: MinimalTimeMin}
}
