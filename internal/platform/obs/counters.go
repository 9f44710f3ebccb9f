package obs

import (
	"log/slog"
	"sync/atomic"
)

// Counters tracks route lookups. Safe for concurrent use.
type Counters struct {
	CacheHits          atomic.Int64
	CacheMisses        atomic.Int64
	CacheWriteFailures atomic.Int64
	PrimaryCalls       atomic.Int64
	SecondaryCalls     atomic.Int64
	BackendFailures    atomic.Int64
	DegradedFallbacks  atomic.Int64
}

type CounterSnapshot struct {
	CacheHits          int64 `json:"cache_hits"`
	CacheMisses        int64 `json:"cache_misses"`
	CacheWriteFailures int64 `json:"cache_write_failures"`
	PrimaryCalls       int64 `json:"primary_calls"`
	SecondaryCalls     int64 `json:"secondary_calls"`
	BackendFailures    int64 `json:"backend_failures"`
	DegradedFallbacks  int64 `json:"degraded_fallbacks"`
}

func (c *Counters) Snapshot() CounterSnapshot {
	if c == nil {
		return CounterSnapshot{}
	}
	return CounterSnapshot{
		CacheHits:          c.CacheHits.Load(),
		CacheMisses:        c.CacheMisses.Load(),
		CacheWriteFailures: c.CacheWriteFailures.Load(),
		PrimaryCalls:       c.PrimaryCalls.Load(),
		SecondaryCalls:     c.SecondaryCalls.Load(),
		BackendFailures:    c.BackendFailures.Load(),
		DegradedFallbacks:  c.DegradedFallbacks.Load(),
	}
}

func (s CounterSnapshot) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("cache_hits", s.CacheHits),
		slog.Int64("cache_misses", s.CacheMisses),
		slog.Int64("cache_write_failures", s.CacheWriteFailures),
		slog.Int64("primary_calls", s.PrimaryCalls),
		slog.Int64("secondary_calls", s.SecondaryCalls),
		slog.Int64("backend_failures", s.BackendFailures),
		slog.Int64("degraded_fallbacks", s.DegradedFallbacks),
	)
}
