// Package app wires concrete adapters behind ports. It is shared by the
// server and simulate commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"route-planner/internal/adapters/cache"
	"route-planner/internal/adapters/geocoding"
	"route-planner/internal/adapters/repositories"
	"route-planner/internal/adapters/routing"
	"route-planner/internal/config"
	"route-planner/internal/platform/db"
	"route-planner/internal/platform/obs"
	"route-planner/internal/ports"
	"route-planner/internal/services"
)

type App struct {
	DB       *sqlx.DB
	Redis    *redis.Client
	Oracle   *services.RouteOracle
	Planner  *services.Planner
	Counters *obs.Counters
}

// New opens storage, initialises the schema and builds the planner.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	conn, err := db.Connect(cfg.DatabaseURL, cfg.SqlitePath)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	a := &App{DB: conn, Counters: &obs.Counters{}}

	if err := repositories.InitSchema(conn); err != nil {
		a.Close()
		return nil, fmt.Errorf("app: %w", err)
	}

	if cfg.RedisAddr != "" {
		a.Redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			// The SQL tier still works alone.
			logger.WarnContext(ctx, "redis unavailable, using sql caches only", "addr", cfg.RedisAddr, "err", err)
			_ = a.Redis.Close()
			a.Redis = nil
		}
	}

	providers, err := routeProviders(cfg, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("app: %w", err)
	}

	a.Oracle = services.NewRouteOracle(a.routeCache(cfg, logger), a.Counters, logger, providers...)

	geocoder, err := a.geocoder(cfg, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("app: %w", err)
	}

	p := cfg.Planning
	service := services.ServiceTimes{
		LightStopMin:         p.LightStopMin,
		HeavyStopMin:         p.HeavyStopMin,
		HeavyStopThresholdKg: p.HeavyStopThresholdKg,
		UnloadMinPerVolume:   p.UnloadMinPerVolume,
	}

	a.Planner = services.NewPlanner(
		services.PlannerDeps{
			Deliveries: repositories.NewSQLDeliveryRepository(conn),
			Plans:      repositories.NewSQLPlanRepository(conn),
			Tenants:    repositories.NewSQLTenantConfigRepository(conn),
			Oracle:     a.Oracle,
			Geocoder:   geocoder,
			Bounds:     services.NewBrazilBounds(),
			Centers:    services.NewCentroidFinder(services.CenterStrategy(p.CenterStrategy), p.RandomSeed),
		},
		services.PlannerConfig{
			Cluster: services.ClusterOptions{
				KMin:                 p.KMin,
				KMax:                 p.KMax,
				TargetMinPerCluster:  p.TargetMinPerCluster,
				MergeSmallClusters:   p.MergeSmallClusters,
				MaxMembersPerCluster: p.MaxMembersPerCluster,
				SnapCenterToLocality: p.SnapCenterToLocality,
				Seed:                 p.RandomSeed,
			},
			HubRadiusKm: p.HubRadiusKm,
			Split: services.SplitOptions{
				TargetPerSubcluster: p.TargetPerSubcluster,
				MaxRouteTimeMin:     p.MaxRouteTimeMin,
				MaxDepth:            p.MaxSplitDepth,
				Seed:                p.RandomSeed,
				Service:             service,
				Sequence:            services.SequenceStrategy(p.SequenceStrategy),
			},
			LastMileWorkers:       p.LastMileWorkers,
			TransferMaxTimeMin:    p.TransferMaxTimeMin,
			TransferMaxWeightKg:   p.TransferMaxWeightKg,
			TransferRetryAttempts: p.TransferRetryAttempts,
		},
		logger,
	)

	return a, nil
}

func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}

// routeProviders returns the backends in primary, secondary order.
func routeProviders(cfg config.Config, logger *slog.Logger) ([]ports.RouteProvider, error) {
	if cfg.RoutingMock {
		return []ports.RouteProvider{routing.NewMockBackend("mock", nil)}, nil
	}

	var out []ports.RouteProvider
	if cfg.OSRMBaseURL != "" {
		osrm, err := routing.NewOSRMBackend(cfg.OSRMBaseURL, logger)
		if err != nil {
			return nil, err
		}
		out = append(out, osrm)
	}
	if cfg.ORSAPIKey != "" {
		ors, err := routing.NewORSBackend(cfg.ORSBaseURL, cfg.ORSAPIKey, cfg.ORSRatePerSecond, logger)
		if err != nil {
			return nil, err
		}
		out = append(out, ors)
	}
	if len(out) == 0 {
		logger.Warn("no routing backend configured, every route will be minimal")
	}
	return out, nil
}

func (a *App) routeCache(cfg config.Config, logger *slog.Logger) ports.RouteCache {
	sqlTier := cache.NewSQLRouteCache(a.DB, cfg.RouteCacheTTL, logger)
	if a.Redis == nil {
		return sqlTier
	}
	return cache.NewTieredRouteCache(logger, cache.NewRedisRouteCache(a.Redis, cfg.RouteCacheTTL, logger), sqlTier)
}

func (a *App) geocoder(cfg config.Config, logger *slog.Logger) (ports.ReverseGeocoder, error) {
	var localities ports.LocalityCache = cache.NewSQLLocalityCache(a.DB, logger)
	if a.Redis != nil {
		localities = cache.NewRedisLocalityCache(a.Redis, cfg.RouteCacheTTL)
	}

	var online ports.ReverseGeocoder
	if cfg.NominatimBaseURL != "" && !cfg.RoutingMock {
		n, err := geocoding.NewNominatimGeocoder(cfg.NominatimBaseURL, cfg.NominatimAgent, logger)
		if err != nil {
			return nil, err
		}
		online = n
	}

	return geocoding.NewChainGeocoder(localities, online, geocoding.NewBrazilGazetteer(), logger), nil
}
