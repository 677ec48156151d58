package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// DefaultResultTTL matches the retrieval sub-search cache window.
const DefaultResultTTL = 30 * time.Minute

// ResultCache is a generic tenant-scoped cache for search and generation
// results. Values are JSON-encoded; keys combine a kind (used for pattern
// invalidation) with a hashed key-material string.
type ResultCache struct {
	*tiered
	prefix string
	ttl    time.Duration
}

// NewResultCache creates a result cache over a primary store and an optional
// fallback tier.
func NewResultCache(primary, fallback store, keyPrefix string, ttl time.Duration, logger *zap.Logger) *ResultCache {
	if ttl <= 0 {
		ttl = DefaultResultTTL
	}
	return &ResultCache{
		tiered: newTiered(primary, fallback, "result", logger),
		prefix: keyPrefix,
		ttl:    ttl,
	}
}

func (c *ResultCache) key(tenant, kind, material string) string {
	h := sha256.Sum256([]byte(material))
	return c.prefix + tenant + ":res:" + kind + ":" + hex.EncodeToString(h[:])
}

// Get unmarshals a cached value into out. Returns false on miss or decode
// failure; a corrupt entry is dropped.
func (c *ResultCache) Get(ctx context.Context, tenant, kind, material string, out any) bool {
	key := c.key(tenant, kind, material)

	data, found := c.read(ctx, key)
	if !found {
		c.countMiss()
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.logger.Warn("corrupt result cache entry", zap.String("key", key), zap.Error(err))
		c.drop(ctx, key)
		c.countInvalidation()
		c.countMiss()
		return false
	}
	c.countHit()
	return true
}

// Set stores a value. ttl <= 0 uses the configured default. Failures are
// swallowed.
func (c *ResultCache) Set(ctx context.Context, tenant, kind, material string, v any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	data, err := json.Marshal(v)
	if err != nil {
		c.countError()
		c.logger.Warn("encode result cache entry", zap.String("kind", kind), zap.Error(err))
		return
	}
	c.write(ctx, c.key(tenant, kind, material), data, ttl)
	c.countPut()
}

// Invalidate removes all entries of a tenant whose kind matches the glob
// pattern (e.g. "search:*"). Returns the number of removed keys.
func (c *ResultCache) Invalidate(ctx context.Context, tenant, kindPattern string) int {
	n := c.dropPattern(ctx, c.prefix+tenant+":res:"+kindPattern+":*")
	if n > 0 {
		c.countInvalidation()
	}
	return n
}
