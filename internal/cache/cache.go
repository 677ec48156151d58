// Package cache implements the tenant-scoped embedding and result caches.
//
// Cache failures are never fatal: every error on the primary store falls
// through to the fallback tier, and a failure on both tiers is observable
// only as a miss. Writes are last-write-wins; correctness relies on
// content-hash validation at read time, not on linearizability.
package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/db"
	"github.com/kailas-cloud/ragdex/internal/metrics"
)

// store is the consumer interface for cache tiers (subset of db.KVStore).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetKeepTTL(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits          uint64  `json:"hits"`
	Misses        uint64  `json:"misses"`
	Puts          uint64  `json:"puts"`
	Invalidations uint64  `json:"invalidations"`
	Errors        uint64  `json:"errors"`
	HitRate       float64 `json:"hit_rate"`
}

// tiered wraps a primary and optional fallback store with per-operation
// counters. All methods are lock-free; races between writers are tolerated.
type tiered struct {
	primary  store
	fallback store
	name     string
	logger   *zap.Logger

	hits          atomic.Uint64
	misses        atomic.Uint64
	puts          atomic.Uint64
	invalidations atomic.Uint64
	errors        atomic.Uint64
}

func newTiered(primary, fallback store, name string, logger *zap.Logger) *tiered {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &tiered{primary: primary, fallback: fallback, name: name, logger: logger}
}

// read fetches from the primary tier, transparently falling through to the
// fallback on any error. Returns found=false on a clean miss or when both
// tiers fail.
func (t *tiered) read(ctx context.Context, key string) (data []byte, found bool) {
	data, err := t.primary.Get(ctx, key)
	if err == nil {
		return data, true
	}
	if !errors.Is(err, db.ErrKeyNotFound) {
		t.countError()
		t.logger.Warn("cache primary read failed", zap.String("key", key), zap.Error(err))
	}

	if t.fallback == nil {
		return nil, false
	}
	data, err = t.fallback.Get(ctx, key)
	if err == nil {
		return data, true
	}
	if !errors.Is(err, db.ErrKeyNotFound) {
		t.countError()
		t.logger.Warn("cache fallback read failed", zap.String("key", key), zap.Error(err))
	}
	return nil, false
}

// write stores on the primary tier, degrading to the fallback on error.
func (t *tiered) write(ctx context.Context, key string, data []byte, ttl time.Duration) {
	if err := t.primary.SetWithTTL(ctx, key, data, ttl); err == nil {
		return
	} else {
		t.countError()
		t.logger.Warn("cache primary write failed", zap.String("key", key), zap.Error(err))
	}
	if t.fallback == nil {
		return
	}
	if err := t.fallback.SetWithTTL(ctx, key, data, ttl); err != nil {
		t.countError()
		t.logger.Warn("cache fallback write failed", zap.String("key", key), zap.Error(err))
	}
}

// refresh overwrites an entry without touching its TTL, best-effort on both tiers.
func (t *tiered) refresh(ctx context.Context, key string, data []byte) {
	if err := t.primary.SetKeepTTL(ctx, key, data); err != nil {
		t.countError()
	}
	if t.fallback != nil {
		_ = t.fallback.SetKeepTTL(ctx, key, data)
	}
}

// drop removes an entry from both tiers.
func (t *tiered) drop(ctx context.Context, key string) {
	if err := t.primary.Del(ctx, key); err != nil {
		t.countError()
	}
	if t.fallback != nil {
		_ = t.fallback.Del(ctx, key)
	}
}

// dropPattern removes all keys matching the glob pattern from both tiers.
func (t *tiered) dropPattern(ctx context.Context, pattern string) int {
	removed := 0
	for _, s := range []store{t.primary, t.fallback} {
		if s == nil {
			continue
		}
		keys, err := s.Scan(ctx, pattern)
		if err != nil {
			t.countError()
			t.logger.Warn("cache scan failed", zap.String("pattern", pattern), zap.Error(err))
			continue
		}
		for _, k := range keys {
			if err := s.Del(ctx, k); err == nil {
				removed++
			}
		}
	}
	return removed
}

func (t *tiered) countHit() {
	t.hits.Add(1)
	metrics.CacheOpsTotal.WithLabelValues(t.name, "hit").Inc()
}

func (t *tiered) countMiss() {
	t.misses.Add(1)
	metrics.CacheOpsTotal.WithLabelValues(t.name, "miss").Inc()
}

func (t *tiered) countPut() {
	t.puts.Add(1)
	metrics.CacheOpsTotal.WithLabelValues(t.name, "put").Inc()
}

func (t *tiered) countInvalidation() {
	t.invalidations.Add(1)
	metrics.CacheOpsTotal.WithLabelValues(t.name, "invalidation").Inc()
}

func (t *tiered) countError() {
	t.errors.Add(1)
	metrics.CacheOpsTotal.WithLabelValues(t.name, "error").Inc()
}

// Stats returns the counter snapshot.
func (t *tiered) Stats() Stats {
	s := Stats{
		Hits:          t.hits.Load(),
		Misses:        t.misses.Load(),
		Puts:          t.puts.Load(),
		Invalidations: t.invalidations.Load(),
		Errors:        t.errors.Load(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

// HitRate returns hits/(hits+misses), or 0 before any lookup.
func (t *tiered) HitRate() float64 {
	return t.Stats().HitRate
}
