package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"route-planner/internal/domain"
	"route-planner/internal/platform/obs"
	"route-planner/internal/ports"
)

// SQLRouteCache is a SQL-backed cache of routed pairs, shared by every
// worker. Works on postgres (pgx) and sqlite; the unique index on
// (origin, destination, tenant_id) makes concurrent Puts idempotent.
type SQLRouteCache struct {
	DB *sqlx.DB
	// MaxAge hides and allows replacing rows older than this. Zero keeps rows forever.
	MaxAge time.Duration
	Logger *slog.Logger

	now func() time.Time
}

func NewSQLRouteCache(db *sqlx.DB, maxAge time.Duration, logger *slog.Logger) *SQLRouteCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLRouteCache{DB: db, MaxAge: maxAge, Logger: logger, now: time.Now}
}

type routeCacheRow struct {
	Origin      string  `db:"origin"`
	Destination string  `db:"destination"`
	TenantID    string  `db:"tenant_id"`
	DistanceKm  float64 `db:"distance_km"`
	TimeMin     float64 `db:"time_min"`
	Polyline    string  `db:"polyline"`
	CreatedUnix int64   `db:"created_unix"`
	StaleBefore int64   `db:"stale_before"`
}

func (s *SQLRouteCache) staleBefore() int64 {
	if s.MaxAge <= 0 {
		return 0
	}
	return s.now().Add(-s.MaxAge).Unix()
}

func (s *SQLRouteCache) Get(
	ctx context.Context,
	key ports.RouteCacheKey,
) (_ domain.RouteResult, _ bool, err error) {
	defer obs.Time(ctx, s.Logger, "route.cache.sql.Get")(&err)

	if s.DB == nil {
		return domain.RouteResult{}, false, errors.New("route cache: db is nil")
	}

	q := s.DB.Rebind(`
	SELECT distance_km, time_min, polyline
	FROM route_cache
	WHERE origin = ? AND destination = ? AND tenant_id = ? AND created_unix >= ?;
	`)

	var row routeCacheRow
	err = s.DB.GetContext(ctx, &row, q, key.Origin, key.Destination, key.TenantID, s.staleBefore())
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RouteResult{}, false, nil
	}
	if err != nil {
		return domain.RouteResult{}, false, fmt.Errorf("get route cache: query route_cache table: %w", err)
	}

	return domain.RouteResult{DistanceKm: row.DistanceKm, TimeMin: row.TimeMin, Polyline: row.Polyline}, true, nil
}

// Put inserts the entry if absent. An existing fresh row wins; an expired
// row (older than MaxAge) is replaced.
func (s *SQLRouteCache) Put(
	ctx context.Context,
	key ports.RouteCacheKey,
	result domain.RouteResult,
) (err error) {
	defer obs.Time(ctx, s.Logger, "route.cache.sql.Put")(&err)

	if s.DB == nil {
		return errors.New("route cache: db is nil")
	}

	if key.Origin == "" || key.Destination == "" {
		return errors.New("insert route cache: origin and destination must not be empty")
	}

	row := routeCacheRow{
		Origin:      key.Origin,
		Destination: key.Destination,
		TenantID:    key.TenantID,
		DistanceKm:  result.DistanceKm,
		TimeMin:     result.TimeMin,
		Polyline:    result.Polyline,
		CreatedUnix: s.now().Unix(),
		StaleBefore: s.staleBefore(),
	}

	_, err = s.DB.NamedExecContext(ctx, `
	INSERT INTO route_cache (origin, destination, tenant_id, distance_km, time_min, polyline, created_unix)
	VALUES (:origin, :destination, :tenant_id, :distance_km, :time_min, :polyline, :created_unix)
	ON CONFLICT (origin, destination, tenant_id) DO UPDATE
	SET distance_km = excluded.distance_km,
		time_min = excluded.time_min,
		polyline = excluded.polyline,
		created_unix = excluded.created_unix
	WHERE route_cache.created_unix < :stale_before;
	`, row)
	if err != nil {
		return fmt.Errorf("insert route cache key=%q: %w", key.String(), err)
	}

	return nil
}
