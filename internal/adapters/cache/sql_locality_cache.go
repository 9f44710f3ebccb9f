package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"route-planner/internal/domain"
	"route-planner/internal/platform/obs"
)

// SQLLocalityCache is a SQL-backed cache mapping coordinates to locality names.
type SQLLocalityCache struct {
	DB     *sqlx.DB
	Logger *slog.Logger
}

func NewSQLLocalityCache(db *sqlx.DB, logger *slog.Logger) *SQLLocalityCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLLocalityCache{DB: db, Logger: logger}
}

type localityRow struct {
	CoordKey   string  `db:"coord_key"`
	Name       string  `db:"name"`
	RegionCode string  `db:"region_code"`
	Lat        float64 `db:"lat"`
	Lon        float64 `db:"lon"`
}

func (s *SQLLocalityCache) Get(
	ctx context.Context,
	coords domain.Coordinates,
) (_ domain.Locality, _ bool, err error) {
	defer obs.Time(ctx, s.Logger, "locality.cache.sql.Get")(&err)

	if s.DB == nil {
		return domain.Locality{}, false, errors.New("locality cache: db is nil")
	}

	q := s.DB.Rebind(`
	SELECT coord_key, name, region_code, lat, lon
	FROM locality_cache
	WHERE coord_key = ?;
	`)

	var row localityRow
	err = s.DB.GetContext(ctx, &row, q, coords.Key())
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Locality{}, false, nil
	}
	if err != nil {
		return domain.Locality{}, false, fmt.Errorf("get locality cache: query locality_cache table: %w", err)
	}

	return domain.Locality{
		Name:       row.Name,
		RegionCode: row.RegionCode,
		Coords:     domain.Coordinates{Lat: row.Lat, Lon: row.Lon},
	}, true, nil
}

// Store a coordinate -> locality mapping in the cache.
func (s *SQLLocalityCache) Put(ctx context.Context, coords domain.Coordinates, loc domain.Locality) error {
	if s.DB == nil {
		return errors.New("locality cache: db is nil")
	}

	if loc.Name == "" {
		return errors.New("insert locality cache: empty locality name")
	}

	_, err := s.DB.NamedExecContext(ctx, `
	INSERT INTO locality_cache (coord_key, name, region_code, lat, lon)
	VALUES (:coord_key, :name, :region_code, :lat, :lon)
	ON CONFLICT (coord_key) DO UPDATE
	SET name = excluded.name,
		region_code = excluded.region_code,
		lat = excluded.lat,
		lon = excluded.lon;
	`, localityRow{
		CoordKey:   coords.Key(),
		Name:       loc.Name,
		RegionCode: loc.RegionCode,
		Lat:        loc.Coords.Lat,
		Lon:        loc.Coords.Lon,
	})
	if err != nil {
		return fmt.Errorf("insert locality cache coord=%q: %w", coords.Key(), err)
	}

	return nil
}
