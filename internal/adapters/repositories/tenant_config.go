package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"route-planner/internal/domain"
)

// SQL-backed implementation of the TenantConfigRepository port.
type SQLTenantConfigRepository struct{ DB *sqlx.DB }

func NewSQLTenantConfigRepository(db *sqlx.DB) *SQLTenantConfigRepository {
	return &SQLTenantConfigRepository{DB: db}
}

type hubRow struct {
	TenantID string  `db:"tenant_id"`
	Name     string  `db:"name"`
	Lat      float64 `db:"lat"`
	Lon      float64 `db:"lon"`
}

type tariffRow struct {
	TenantID       string  `db:"tenant_id"`
	Kind           string  `db:"kind"`
	VehicleType    string  `db:"vehicle_type"`
	MinKg          float64 `db:"min_kg"`
	MaxKg          float64 `db:"max_kg"`
	DepotLocalOnly int     `db:"depot_local_only"`
}

// GetHub returns the tenant's depot or domain.ErrNotConfigured.
func (s *SQLTenantConfigRepository) GetHub(ctx context.Context, tenantID string) (domain.Hub, error) {
	if s.DB == nil {
		return domain.Hub{}, errors.New("sql tenant config repository: DB is nil")
	}

	q := s.DB.Rebind(`SELECT tenant_id, name, lat, lon FROM hubs WHERE tenant_id = ?;`)

	var row hubRow
	err := s.DB.GetContext(ctx, &row, q, tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Hub{}, fmt.Errorf("get hub tenant=%s: %w", tenantID, domain.ErrNotConfigured)
	}
	if err != nil {
		return domain.Hub{}, fmt.Errorf("get hub tenant=%s: query hubs table: %w", tenantID, err)
	}

	return domain.Hub{
		TenantID: row.TenantID,
		Name:     row.Name,
		Coords:   domain.Coordinates{Lat: row.Lat, Lon: row.Lon},
	}, nil
}

// ListTariffs returns the tenant's vehicle tiers for one route kind, smallest
// capacity first. An empty table is domain.ErrNotConfigured.
func (s *SQLTenantConfigRepository) ListTariffs(
	ctx context.Context,
	tenantID string,
	kind domain.RouteKind,
) (domain.TariffTable, error) {
	if s.DB == nil {
		return nil, errors.New("sql tenant config repository: DB is nil")
	}

	q := s.DB.Rebind(`
	SELECT tenant_id, kind, vehicle_type, min_kg, max_kg, depot_local_only
	FROM tariffs
	WHERE tenant_id = ? AND kind = ?
	ORDER BY max_kg, min_kg, vehicle_type;
	`)

	var rows []tariffRow
	if err := s.DB.SelectContext(ctx, &rows, q, tenantID, string(kind)); err != nil {
		return nil, fmt.Errorf("list tariffs tenant=%s: query tariffs table: %w", tenantID, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("list tariffs tenant=%s kind=%s: %w", tenantID, kind, domain.ErrNotConfigured)
	}

	out := make(domain.TariffTable, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.VehicleTier{
			VehicleType:    r.VehicleType,
			MinKg:          r.MinKg,
			MaxKg:          r.MaxKg,
			DepotLocalOnly: r.DepotLocalOnly != 0,
		})
	}
	return out, nil
}
