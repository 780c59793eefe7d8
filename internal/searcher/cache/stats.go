// Package cache holds the two caches of the search service: open index
// readers keyed by path, and document-frequency responses kept in Redis so
// repeated distributed queries skip the per-shard statistics pass.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/searcher/stats"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/resilience"
)

const docFreqPrefix = "docfreq:"

// Store is the key/value backend of StatsCache. *redis.Client implements it.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// StatsCache caches GetDocFreq responses per (index path, sentence). Cache
// failures are logged and treated as misses.
type StatsCache struct {
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func NewStatsCache(store Store, ttl time.Duration, m *metrics.Metrics) *StatsCache {
	return &StatsCache{
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "stats-cache"),
	}
}

func (c *StatsCache) Get(ctx context.Context, path, sentence string) ([]stats.DocWithFreq, bool) {
	key := docFreqKey(path, sentence)
	data, err := c.store.Get(ctx, key)
	if err != nil {
		switch {
		case pkgredis.IsNilError(err):
		case errors.Is(err, resilience.ErrOpen):
			c.logger.Debug("cache skipped", "key", key, "error", err)
		default:
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	var docs []stats.DocWithFreq
	if err := json.Unmarshal(data, &docs); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	c.metrics.ObserveStatsCache(true)
	return docs, true
}

func (c *StatsCache) Set(ctx context.Context, path, sentence string, docs []stats.DocWithFreq) {
	key := docFreqKey(path, sentence)
	data, err := json.Marshal(docs)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil && !errors.Is(err, resilience.ErrOpen) {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached response or runs compute once for all
// concurrent callers asking for the same key. The bool reports a cache hit.
func (c *StatsCache) GetOrCompute(
	ctx context.Context,
	path, sentence string,
	compute func(context.Context) ([]stats.DocWithFreq, error),
) ([]stats.DocWithFreq, bool, error) {
	if docs, ok := c.Get(ctx, path, sentence); ok {
		return docs, true, nil
	}
	v, err, _ := c.group.Do(docFreqKey(path, sentence), func() (any, error) {
		docs, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(ctx, path, sentence, docs)
		return docs, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.([]stats.DocWithFreq), false, nil
}

// Invalidate drops every cached response for the index at path.
func (c *StatsCache) Invalidate(ctx context.Context, path string) error {
	pattern := docFreqPrefix + pathHash(path) + ":*"
	deleted, err := c.store.FlushByPattern(ctx, pattern)
	if err != nil {
		return fmt.Errorf("invalidating doc-freq cache for %s: %w", path, err)
	}
	c.logger.Info("cache invalidate", "index", path, "keys_deleted", deleted)
	return nil
}

func (c *StatsCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *StatsCache) miss() {
	c.misses.Add(1)
	c.metrics.ObserveStatsCache(false)
}

func docFreqKey(path, sentence string) string {
	h := sha256.Sum256([]byte(strings.TrimSpace(sentence)))
	return fmt.Sprintf("%s%s:%x", docFreqPrefix, pathHash(path), h[:16])
}

func pathHash(path string) string {
	h := sha256.Sum256([]byte(filepath.Clean(path)))
	return fmt.Sprintf("%x", h[:8])
}
