package domain

import "time"

// HubClusterID is the reserved cluster for deliveries close enough to the hub
// that they never need a hub-to-hub transfer.
const HubClusterID = "HUB_CENTRAL"

// PlanKey identifies one independent unit of planning work.
// K is the optional scenario key; zero means "automatic".
type PlanKey struct {
	TenantID string    `json:"tenant_id"`
	ShipDate time.Time `json:"ship_date"`
	K        int       `json:"k"`
}

func (k PlanKey) DateString() string { return k.ShipDate.Format(time.DateOnly) }

// Cluster is a geographic grouping of deliveries for one PlanKey.
type Cluster struct {
	ClusterID  string          `json:"cluster_id"`
	Center     Coordinates     `json:"center"`
	CenterCity string          `json:"center_city"`
	Members    []DeliveryPoint `json:"-"`
}

func (c Cluster) MemberIDs() []string { return DeliveryIDs(c.Members) }

func (c Cluster) Totals() Totals { return SumDeliveries(c.Members) }

func (c Cluster) IsHub() bool { return c.ClusterID == HubClusterID }

// SubCluster is a time-feasible split of a cluster for last-mile routing.
// TransitTimeMin <= the route ceiling unless the group has a single member.
type SubCluster struct {
	SubClusterID   string          `json:"subcluster_id"`
	ClusterID      string          `json:"cluster_id"`
	Members        []DeliveryPoint `json:"-"`
	Sequence       []DeliveryPoint `json:"-"`
	TransitTimeMin float64         `json:"transit_time_min"`
	Depth          int             `json:"depth"`
}

func (s SubCluster) MemberIDs() []string { return DeliveryIDs(s.Members) }
