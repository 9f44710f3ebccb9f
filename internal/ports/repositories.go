package ports

import (
	"context"
	"route-planner/internal/domain"
	"time"
)

// Port: a boundary for retrieving deliveries from ingestion.
type DeliveryRepository interface {
	// Retrieve all deliveries for a tenant and ship date.
	ListDeliveries(ctx context.Context, tenantID string, shipDate time.Time) ([]domain.DeliveryPoint, error)
}

// Durable store for planning outputs. Replace* deletes every prior row
// for the key before inserting, in one transaction.
type PlanRepository interface {
	ReplaceClusters(ctx context.Context, key domain.PlanKey, clusters []domain.Cluster) error
	ReplaceRoutes(ctx context.Context, key domain.PlanKey, kind domain.RouteKind, routes []domain.Route) error
}

// Tenant configuration needed by every run. Missing rows are domain.ErrNotConfigured.
type TenantConfigRepository interface {
	GetHub(ctx context.Context, tenantID string) (domain.Hub, error)
	ListTariffs(ctx context.Context, tenantID string, kind domain.RouteKind) (domain.TariffTable, error)
}
