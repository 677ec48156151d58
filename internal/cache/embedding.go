package cache

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// Payload framing: one flag byte followed by the (possibly compressed)
// envelope JSON.
const (
	frameRaw  byte = 0x00
	frameGzip byte = 0x01
)

// DefaultEmbeddingTTL is how long cached embeddings live without refresh.
const DefaultEmbeddingTTL = 7 * 24 * time.Hour

// DefaultCompressAt is the serialized size above which compression is attempted.
const DefaultCompressAt = 4096

// EmbeddingCache is a content-addressed, tenant-isolated text-to-vector cache.
type EmbeddingCache struct {
	*tiered
	prefix     string
	ttl        time.Duration
	compressAt int
}

// envelope is the stored cache entry. Vector holds float32 LE bytes and
// serializes as base64.
type envelope struct {
	Dims         int    `json:"dims"`
	Hash         string `json:"hash"`
	CreatedAt    int64  `json:"created_at"`
	LastAccessed int64  `json:"last_accessed"`
	AccessCount  int64  `json:"access_count"`
	Vector       []byte `json:"vector"`
}

// EmbeddingCacheConfig holds construction settings.
type EmbeddingCacheConfig struct {
	// KeyPrefix namespaces all cache keys (e.g. "ragdex:").
	KeyPrefix string
	// TTL is the default entry lifetime.
	TTL time.Duration
	// CompressAt is the serialized size threshold for compression attempts.
	CompressAt int
}

// NewEmbeddingCache creates an embedding cache over a primary store and an
// optional fallback tier.
func NewEmbeddingCache(primary, fallback store, cfg EmbeddingCacheConfig, logger *zap.Logger) *EmbeddingCache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultEmbeddingTTL
	}
	if cfg.CompressAt <= 0 {
		cfg.CompressAt = DefaultCompressAt
	}
	return &EmbeddingCache{
		tiered:     newTiered(primary, fallback, "embedding", logger),
		prefix:     cfg.KeyPrefix,
		ttl:        cfg.TTL,
		compressAt: cfg.CompressAt,
	}
}

// Key returns the tenant-scoped cache key for a text.
func (c *EmbeddingCache) Key(tenant, text string) string {
	return c.prefix + tenant + ":emb:" + domain.ContentHash(text)
}

// Get returns the cached vector for a text. A stored entry whose content hash
// no longer matches the requested text is invalidated and reported as a miss.
// A hit bumps the access counter and last-accessed timestamp without
// resetting the TTL.
func (c *EmbeddingCache) Get(ctx context.Context, tenant, text string) ([]float32, bool) {
	key := c.Key(tenant, text)

	data, found := c.read(ctx, key)
	if !found {
		c.countMiss()
		return nil, false
	}

	env, err := decodeEnvelope(data)
	if err != nil {
		c.logger.Warn("corrupt embedding cache entry", zap.String("key", key), zap.Error(err))
		c.drop(ctx, key)
		c.countInvalidation()
		c.countMiss()
		return nil, false
	}

	if env.Hash != domain.ContentHash(text) {
		c.drop(ctx, key)
		c.countInvalidation()
		c.countMiss()
		return nil, false
	}

	vec, err := bytesToVector(env.Vector)
	if err != nil || len(vec) != env.Dims {
		c.logger.Warn("invalid cached vector", zap.String("key", key), zap.Error(err))
		c.drop(ctx, key)
		c.countInvalidation()
		c.countMiss()
		return nil, false
	}

	env.AccessCount++
	env.LastAccessed = time.Now().Unix()
	if refreshed, err := c.encodeEnvelope(env); err == nil {
		c.refresh(ctx, key, refreshed)
	}

	c.countHit()
	return vec, true
}

// Put stores a vector for a text. ttl <= 0 uses the configured default.
// Failures are swallowed: a cache write that does not land is a future miss.
func (c *EmbeddingCache) Put(ctx context.Context, tenant, text string, vec []float32, ttl time.Duration) {
	if len(vec) == 0 {
		return
	}
	if ttl <= 0 {
		ttl = c.ttl
	}

	now := time.Now().Unix()
	env := &envelope{
		Dims:         len(vec),
		Hash:         domain.ContentHash(text),
		CreatedAt:    now,
		LastAccessed: now,
		AccessCount:  1,
		Vector:       vectorToBytes(vec),
	}

	data, err := c.encodeEnvelope(env)
	if err != nil {
		c.countError()
		c.logger.Warn("encode embedding cache entry", zap.Error(err))
		return
	}

	c.write(ctx, c.Key(tenant, text), data, ttl)
	c.countPut()
}

// Has reports whether a valid entry exists without touching access counters.
func (c *EmbeddingCache) Has(ctx context.Context, tenant, text string) bool {
	ok, err := c.primary.Exists(ctx, c.Key(tenant, text))
	if err == nil && ok {
		return true
	}
	if c.fallback != nil {
		if ok, err := c.fallback.Exists(ctx, c.Key(tenant, text)); err == nil {
			return ok
		}
	}
	return false
}

// Forget removes the entry for a text.
func (c *EmbeddingCache) Forget(ctx context.Context, tenant, text string) {
	c.drop(ctx, c.Key(tenant, text))
	c.countInvalidation()
}

// Flush removes every embedding entry for a tenant and returns the count.
func (c *EmbeddingCache) Flush(ctx context.Context, tenant string) int {
	n := c.dropPattern(ctx, c.prefix+tenant+":emb:*")
	if n > 0 {
		c.countInvalidation()
	}
	return n
}

// encodeEnvelope serializes and optionally compresses an entry. Compression
// is attempted above the size threshold and kept only when it shrinks the
// payload.
func (c *EmbeddingCache) encodeEnvelope(env *envelope) ([]byte, error) {
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}

	if len(raw) > c.compressAt {
		var buf bytes.Buffer
		buf.WriteByte(frameGzip)
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(raw); err == nil && zw.Close() == nil && buf.Len() < len(raw)+1 {
			return buf.Bytes(), nil
		}
	}

	out := make([]byte, 0, len(raw)+1)
	out = append(out, frameRaw)
	return append(out, raw...), nil
}

func decodeEnvelope(data []byte) (*envelope, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("payload too short: %d bytes", len(data))
	}

	body := data[1:]
	switch data[0] {
	case frameRaw:
	case frameGzip:
		zr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		body, err = io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("gzip read: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown frame byte 0x%02x", data[0])
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return &env, nil
}

func vectorToBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid vector data: len=%d (not multiple of 4)", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
