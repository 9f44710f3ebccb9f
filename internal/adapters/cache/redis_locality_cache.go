package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"route-planner/internal/domain"
)

// RedisLocalityCache caches reverse-geocoded localities by coordinate key.
type RedisLocalityCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisLocalityCache(client *redis.Client, ttl time.Duration) *RedisLocalityCache {
	return &RedisLocalityCache{Client: client, TTL: ttl}
}

func localityKey(c domain.Coordinates) string { return "locality:" + c.Key() }

func (r *RedisLocalityCache) Get(ctx context.Context, coords domain.Coordinates) (domain.Locality, bool, error) {
	if r.Client == nil {
		return domain.Locality{}, false, errors.New("locality cache: redis client is nil")
	}

	b, err := r.Client.Get(ctx, localityKey(coords)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Locality{}, false, nil
	}
	if err != nil {
		return domain.Locality{}, false, fmt.Errorf("get locality cache: redis get: %w", err)
	}

	var loc domain.Locality
	if err := json.Unmarshal(b, &loc); err != nil {
		return domain.Locality{}, false, fmt.Errorf("get locality cache: decode: %w", err)
	}
	return loc, true, nil
}

func (r *RedisLocalityCache) Put(ctx context.Context, coords domain.Coordinates, loc domain.Locality) error {
	if r.Client == nil {
		return errors.New("locality cache: redis client is nil")
	}

	b, err := json.Marshal(loc)
	if err != nil {
		return fmt.Errorf("insert locality cache: encode: %w", err)
	}
	if err := r.Client.Set(ctx, localityKey(coords), b, r.TTL).Err(); err != nil {
		return fmt.Errorf("insert locality cache: redis set: %w", err)
	}
	return nil
}
