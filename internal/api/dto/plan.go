package dto

import "route-planner/internal/domain"

// PlanRequest is the optional JSON body of every plan endpoint.
type PlanRequest struct {
	K       int  `json:"k"`
	Persist bool `json:"persist"`
}

type DiscardedResponse struct {
	DeliveryID string             `json:"delivery_id"`
	RegionCode string             `json:"region_code"`
	Coords     domain.Coordinates `json:"coords"`
}

type ClusterResponse struct {
	ClusterID  string             `json:"cluster_id"`
	Center     domain.Coordinates `json:"center"`
	CenterCity string             `json:"center_city"`
	MemberIDs  []string           `json:"member_ids"`
	Load       domain.Totals      `json:"load"`
}

type ClusterPlanResponse struct {
	TenantID      string              `json:"tenant_id"`
	ShipDate      string              `json:"ship_date"`
	K             int                 `json:"k"`
	ElbowFallback bool                `json:"elbow_fallback"`
	Clusters      []ClusterResponse   `json:"clusters"`
	Discarded     []DiscardedResponse `json:"discarded"`
	Warnings      []string            `json:"warnings"`
}

type RoutePlanResponse struct {
	TenantID     string              `json:"tenant_id"`
	ShipDate     string              `json:"ship_date"`
	Kind         domain.RouteKind    `json:"kind"`
	Routes       []domain.Route      `json:"routes"`
	SubClusters  int                 `json:"subclusters,omitempty"`
	DirectRoutes int                 `json:"direct_routes,omitempty"`
	Attempt      int                 `json:"attempt,omitempty"`
	Discarded    []DiscardedResponse `json:"discarded"`
	Warnings     []string            `json:"warnings"`
}
