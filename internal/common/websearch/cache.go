package websearch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"context-engine/internal/common/metrics"
	"context-engine/internal/models"

	"github.com/redis/go-redis/v9"
)

// CachedSearcher is a read-through Redis cache in front of another Searcher.
// Cache faults never fail a search; only the inner backend's errors surface.
type CachedSearcher struct {
	inner  Searcher
	rdb    redis.Cmdable
	ttl    time.Duration
	prefix string
	logger Logger
}

func NewCachedSearcher(inner Searcher, rdb redis.Cmdable, ttl time.Duration, prefix string, log Logger) *CachedSearcher {
	return &CachedSearcher{inner: inner, rdb: rdb, ttl: ttl, prefix: prefix, logger: log}
}

func (c *CachedSearcher) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	key := c.key(query)

	val, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		var cached []models.SearchResult
		if jsonErr := json.Unmarshal([]byte(val), &cached); jsonErr == nil {
			metrics.SearchCacheLookups.WithLabelValues("hit").Inc()
			c.logger.Debug("search cache hit", map[string]interface{}{"query": query})
			return cached, nil
		}
		metrics.SearchCacheLookups.WithLabelValues("corrupt").Inc()
	case errors.Is(err, redis.Nil):
		metrics.SearchCacheLookups.WithLabelValues("miss").Inc()
	default:
		metrics.SearchCacheLookups.WithLabelValues("error").Inc()
		c.logger.Warn("search cache read failed", map[string]interface{}{"error": err.Error()})
	}

	results, err := c.inner.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	if data, jsonErr := json.Marshal(results); jsonErr == nil {
		if setErr := c.rdb.Set(ctx, key, data, c.ttl).Err(); setErr != nil {
			c.logger.Warn("search cache write failed", map[string]interface{}{"error": setErr.Error()})
		}
	}
	return results, nil
}

func (c *CachedSearcher) key(query string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(query))))
	return c.prefix + hex.EncodeToString(sum[:])
}
