package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hyperjump/hypogen/pkg/utils"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisKeyPrefix prefixes every shared-cache key.
const RedisKeyPrefix = "emb:"

// DefaultRedisTTL is how long shared-cache entries live.
const DefaultRedisTTL = 24 * time.Hour

// CachedEmbedder fronts an Embedder with an in-process LRU and, optionally, a Redis
// tier shared between processes. Redis failures are treated as misses.
type CachedEmbedder struct {
	inner     Embedder
	lru       *EmbeddingCache
	redis     *redis.Client
	ttl       time.Duration
	namespace string
	logger    *zap.Logger
}

// Option configures a CachedEmbedder.
type Option func(*CachedEmbedder)

// WithRedis enables the shared tier. ttl <= 0 uses DefaultRedisTTL.
func WithRedis(client *redis.Client, ttl time.Duration) Option {
	return func(c *CachedEmbedder) {
		c.redis = client
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithNamespace separates shared-cache entries of different models.
func WithNamespace(ns string) Option {
	return func(c *CachedEmbedder) { c.namespace = ns }
}

// WithLogger sets a logger for cache hit/miss debug output.
func WithLogger(l *zap.Logger) Option {
	return func(c *CachedEmbedder) { c.logger = l }
}

// NewCachedEmbedder wraps inner with an LRU of lruSize entries.
func NewCachedEmbedder(inner Embedder, lruSize int, opts ...Option) *CachedEmbedder {
	c := &CachedEmbedder{
		inner: inner,
		lru:   NewEmbeddingCache(lruSize),
		ttl:   DefaultRedisTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = utils.OrNop(c.logger)
	return c
}

// NewRedisClient connects to url (redis://...) and checks the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// Key returns the shared-cache key for text.
func (c *CachedEmbedder) Key(text string) string {
	sum := sha256.Sum256([]byte(c.namespace + "\x00" + text))
	return RedisKeyPrefix + hex.EncodeToString(sum[:])
}

// Embed returns the embedding for text.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch resolves texts from the LRU, then Redis, and embeds the rest in one
// inner call. Repeated texts in a batch are embedded once.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	missing := make(map[string][]int)
	var order []string
	for i, t := range texts {
		if v, ok := c.lru.Get(t); ok {
			out[i] = v
			continue
		}
		if _, seen := missing[t]; !seen {
			order = append(order, t)
		}
		missing[t] = append(missing[t], i)
	}
	lruHits := len(texts) - countIndexes(missing)

	redisHits := 0
	if c.redis != nil && len(order) > 0 {
		order, redisHits = c.fromRedis(ctx, order, missing, out)
	}

	if len(order) > 0 {
		vecs, err := c.inner.EmbedBatch(ctx, order)
		if err != nil {
			return nil, err
		}
		if len(vecs) != len(order) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(order))
		}
		for j, t := range order {
			c.lru.Set(t, vecs[j])
			for _, i := range missing[t] {
				out[i] = vecs[j]
			}
		}
		if c.redis != nil {
			c.toRedis(ctx, order, vecs)
		}
	}
	c.logger.Debug("embedding cache",
		zap.Int("texts", len(texts)),
		zap.Int("lru_hits", lruHits),
		zap.Int("redis_hits", redisHits),
		zap.Int("misses", len(order)))
	return out, nil
}

// fromRedis fills out from the shared tier and returns the texts still missing.
func (c *CachedEmbedder) fromRedis(ctx context.Context, texts []string, missing map[string][]int, out [][]float32) ([]string, int) {
	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = c.Key(t)
	}
	vals, err := c.redis.MGet(ctx, keys...).Result()
	if err != nil {
		c.logger.Debug("embedding cache redis read failed", zap.Error(err))
		return texts, 0
	}
	remaining := make([]string, 0, len(texts))
	hits := 0
	for j, v := range vals {
		s, ok := v.(string)
		var vec []float32
		if !ok || json.Unmarshal([]byte(s), &vec) != nil || len(vec) == 0 {
			remaining = append(remaining, texts[j])
			continue
		}
		hits++
		c.lru.Set(texts[j], vec)
		for _, i := range missing[texts[j]] {
			out[i] = vec
		}
	}
	return remaining, hits
}

func (c *CachedEmbedder) toRedis(ctx context.Context, texts []string, vecs [][]float32) {
	_, err := c.redis.Pipelined(ctx, func(p redis.Pipeliner) error {
		for j, t := range texts {
			data, err := json.Marshal(vecs[j])
			if err != nil {
				return err
			}
			p.Set(ctx, c.Key(t), data, c.ttl)
		}
		return nil
	})
	if err != nil {
		c.logger.Debug("embedding cache redis write failed", zap.Error(err))
	}
}

func countIndexes(m map[string][]int) int {
	n := 0
	for _, idx := range m {
		n += len(idx)
	}
	return n
}

// Dimensions returns the inner embedder's dimension.
func (c *CachedEmbedder) Dimensions() int { return c.inner.Dimensions() }

// Close closes the inner embedder and the Redis client, if any.
func (c *CachedEmbedder) Close() error {
	err := c.inner.Close()
	if c.redis != nil {
		if rerr := c.redis.Close(); err == nil {
			err = rerr
		}
	}
	return err
}
