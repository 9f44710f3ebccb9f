package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Get returns the environment value for key, or fallback when unset or blank.
func Get(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// reader parses typed values and remembers every malformed one, so Load can
// reject them instead of quietly using the default.
type reader struct {
	errs []error
}

func (r *reader) fail(key, value string, err error) {
	r.errs = append(r.errs, fmt.Errorf("%s=%q: %w", key, value, err))
}

func (r *reader) Int(key string, fallback int) int {
	v := Get(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, v, err)
		return fallback
	}
	return n
}

func (r *reader) Float(key string, fallback float64) float64 {
	v := Get(key, "")
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(key, v, err)
		return fallback
	}
	return f
}

func (r *reader) Bool(key string, fallback bool) bool {
	v := Get(key, "")
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(key, v, err)
		return fallback
	}
	return b
}

func (r *reader) Duration(key string, fallback time.Duration) time.Duration {
	v := Get(key, "")
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, v, err)
		return fallback
	}
	return d
}

// Config is the single explicit configuration object handed to the composition root.
// Nothing below cmd/ reads the environment directly.
type Config struct {
	Port        string
	LogFormat   string
	LogLevel    string
	DatabaseURL string
	SqlitePath  string
	SeedPath    string
	RedisAddr   string

	OSRMBaseURL      string
	ORSBaseURL       string
	ORSAPIKey        string
	ORSRatePerSecond float64
	NominatimBaseURL string
	NominatimAgent   string
	// RoutingMock swaps the road backends for the straight-line mock.
	RoutingMock   bool
	RouteCacheTTL time.Duration

	Planning Planning
}

// Planning holds the numeric knobs of the clustering and routing engine.
type Planning struct {
	KMin                  int
	KMax                  int
	TargetMinPerCluster   int
	MergeSmallClusters    bool
	MaxMembersPerCluster  int
	HubRadiusKm           float64
	TargetPerSubcluster   int
	MaxRouteTimeMin       float64
	MaxSplitDepth         int
	LightStopMin          float64
	HeavyStopMin          float64
	HeavyStopThresholdKg  float64
	UnloadMinPerVolume    float64
	TransferMaxTimeMin    float64
	TransferMaxWeightKg   float64
	TransferRetryAttempts int
	LastMileWorkers       int
	SimulationDateWorkers int
	RandomSeed            int64
	SequenceStrategy      string
	SnapCenterToLocality  bool
	CenterStrategy        string
}

// Load reads Config from the environment. DATABASE_URL or SQLITE_PATH must be
// set, and a value that does not parse is an error.
func Load() (Config, error) {
	env := &reader{}
	cfg := Config{
		Port:        Get("PORT", "8080"),
		LogFormat:   Get("LOG_FORMAT", "text"),
		LogLevel:    Get("LOG_LEVEL", "info"),
		DatabaseURL: Get("DATABASE_URL", ""),
		SqlitePath:  Get("SQLITE_PATH", ""),
		SeedPath:    Get("SEED_PATH", "data/seeds/deliveries.json"),
		RedisAddr:   Get("REDIS_ADDR", ""),

		OSRMBaseURL:      Get("OSRM_BASE_URL", "https://router.project-osrm.org"),
		ORSBaseURL:       Get("ORS_BASE_URL", "https://api.openrouteservice.org"),
		ORSAPIKey:        Get("ORS_API_KEY", ""),
		ORSRatePerSecond: env.Float("ORS_RATE_PER_SECOND", 0.6),
		NominatimBaseURL: Get("NOMINATIM_BASE_URL", "https://nominatim.openstreetmap.org"),
		NominatimAgent:   Get("NOMINATIM_USER_AGENT", "route-planner/1.0"),
		RoutingMock:      env.Bool("ROUTING_MOCK", false),
		RouteCacheTTL:    env.Duration("ROUTE_CACHE_TTL", 30*24*time.Hour),

		Planning: Planning{
			KMin:                  env.Int("PLAN_K_MIN", 2),
			KMax:                  env.Int("PLAN_K_MAX", 10),
			TargetMinPerCluster:   env.Int("PLAN_MIN_PER_CLUSTER", 25),
			MergeSmallClusters:    env.Bool("PLAN_MERGE_SMALL_CLUSTERS", true),
			MaxMembersPerCluster:  env.Int("PLAN_MAX_PER_CLUSTER", 0),
			HubRadiusKm:           env.Float("PLAN_HUB_RADIUS_KM", 80),
			TargetPerSubcluster:   env.Int("PLAN_TARGET_PER_SUBCLUSTER", 25),
			MaxRouteTimeMin:       env.Float("PLAN_MAX_ROUTE_TIME_MIN", 600),
			MaxSplitDepth:         env.Int("PLAN_MAX_SPLIT_DEPTH", 32),
			LightStopMin:          env.Float("PLAN_LIGHT_STOP_MIN", 5),
			HeavyStopMin:          env.Float("PLAN_HEAVY_STOP_MIN", 10),
			HeavyStopThresholdKg:  env.Float("PLAN_HEAVY_STOP_THRESHOLD_KG", 200),
			UnloadMinPerVolume:    env.Float("PLAN_UNLOAD_MIN_PER_VOLUME", 0.5),
			TransferMaxTimeMin:    env.Float("PLAN_TRANSFER_MAX_TIME_MIN", 1200),
			TransferMaxWeightKg:   env.Float("PLAN_TRANSFER_MAX_WEIGHT_KG", 27000),
			TransferRetryAttempts: env.Int("PLAN_TRANSFER_RETRY_ATTEMPTS", 5),
			LastMileWorkers:       env.Int("PLAN_LAST_MILE_WORKERS", 4),
			SimulationDateWorkers: env.Int("PLAN_SIMULATION_DATE_WORKERS", 2),
			RandomSeed:            int64(env.Int("PLAN_RANDOM_SEED", 42)),
			SequenceStrategy:      Get("PLAN_SEQUENCE_STRATEGY", "horseshoe"),
			SnapCenterToLocality:  env.Bool("PLAN_SNAP_CENTER_TO_LOCALITY", false),
			CenterStrategy:        Get("PLAN_CENTER_STRATEGY", "kde"),
		},
	}

	if err := errors.Join(env.errs...); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if cfg.DatabaseURL == "" && cfg.SqlitePath == "" {
		return Config{}, errors.New("load config: DATABASE_URL or SQLITE_PATH is required")
	}
	if cfg.Planning.KMin < 1 || cfg.Planning.KMax < cfg.Planning.KMin {
		return Config{}, fmt.Errorf("load config: invalid k range [%d, %d]", cfg.Planning.KMin, cfg.Planning.KMax)
	}
	switch cfg.Planning.SequenceStrategy {
	case "horseshoe", "nearest_neighbor":
	default:
		return Config{}, fmt.Errorf("load config: unknown PLAN_SEQUENCE_STRATEGY %q", cfg.Planning.SequenceStrategy)
	}
	switch cfg.Planning.CenterStrategy {
	case "kde", "medoid":
	default:
		return Config{}, fmt.Errorf("load config: unknown PLAN_CENTER_STRATEGY %q", cfg.Planning.CenterStrategy)
	}
	if cfg.Planning.MaxRouteTimeMin <= 0 {
		return Config{}, errors.New("load config: PLAN_MAX_ROUTE_TIME_MIN must be positive")
	}

	return cfg, nil
}
