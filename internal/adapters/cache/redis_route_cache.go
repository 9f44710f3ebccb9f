package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"route-planner/internal/domain"
	"route-planner/internal/platform/obs"
	"route-planner/internal/ports"
)

// RedisRouteCache is the hot tier in front of SQLRouteCache. Entries expire after TTL.
type RedisRouteCache struct {
	Client *redis.Client
	TTL    time.Duration
	Prefix string
	Logger *slog.Logger
}

func NewRedisRouteCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisRouteCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisRouteCache{Client: client, TTL: ttl, Prefix: "route:", Logger: logger}
}

func (r *RedisRouteCache) key(k ports.RouteCacheKey) string { return r.Prefix + k.String() }

func (r *RedisRouteCache) Get(
	ctx context.Context,
	key ports.RouteCacheKey,
) (_ domain.RouteResult, _ bool, err error) {
	defer obs.Time(ctx, r.Logger, "route.cache.redis.Get")(&err)

	if r.Client == nil {
		return domain.RouteResult{}, false, errors.New("route cache: redis client is nil")
	}

	b, err := r.Client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.RouteResult{}, false, nil
	}
	if err != nil {
		return domain.RouteResult{}, false, fmt.Errorf("get route cache: redis get: %w", err)
	}

	var out domain.RouteResult
	if err := json.Unmarshal(b, &out); err != nil {
		return domain.RouteResult{}, false, fmt.Errorf("get route cache: decode %q: %w", key.String(), err)
	}
	return out, true, nil
}

// Put uses SETNX so the first writer wins.
func (r *RedisRouteCache) Put(ctx context.Context, key ports.RouteCacheKey, result domain.RouteResult) error {
	if r.Client == nil {
		return errors.New("route cache: redis client is nil")
	}

	b, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("insert route cache: encode: %w", err)
	}

	if err := r.Client.SetNX(ctx, r.key(key), b, r.TTL).Err(); err != nil {
		return fmt.Errorf("insert route cache: redis setnx %q: %w", key.String(), err)
	}
	return nil
}
