package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/searcher/reader"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/metrics"
)

const acquireAttempts = 3

// ReaderCache maps index paths to open readers. Evicted readers are closed;
// their segment files stay open until the last outstanding snapshot is
// released.
//
// Every install into readers happens under mu, so a reader is either cached
// or closed, never silently replaced.
type ReaderCache struct {
	registry *tokenizer.Registry
	readers  *lru.Cache[string, *reader.Reader]
	group    singleflight.Group
	mu       sync.Mutex
	open     func(string, *tokenizer.Registry) (*reader.Reader, error)
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewReaderCache creates a cache holding at most size readers. m may be nil.
func NewReaderCache(size int, registry *tokenizer.Registry, m *metrics.Metrics) (*ReaderCache, error) {
	c := &ReaderCache{
		registry: registry,
		open:     reader.Open,
		metrics:  m,
		logger:   logger.WithComponent("reader-cache"),
	}
	readers, err := lru.NewWithEvict(size, func(path string, r *reader.Reader) {
		r.Close()
		c.logger.Debug("reader evicted", "index", path)
	})
	if err != nil {
		return nil, fmt.Errorf("creating reader cache: %w", err)
	}
	c.readers = readers
	return c, nil
}

// Acquire returns a fresh snapshot of the index at path, opening the index on
// first use. The caller must Release the snapshot.
func (c *ReaderCache) Acquire(ctx context.Context, path string) (*reader.Snapshot, error) {
	path = filepath.Clean(path)
	var lastErr error
	for attempt := 0; attempt < acquireAttempts; attempt++ {
		r, hit, err := c.get(path)
		if err != nil {
			return nil, err
		}
		c.metrics.ObserveReaderCache(hit)
		snap, err := r.Snapshot()
		if err == nil {
			return snap, nil
		}
		if !errors.Is(err, reader.ErrClosed) {
			return nil, err
		}
		// evicted between lookup and snapshot; drop the stale entry if it
		// is still the one cached
		lastErr = err
		c.mu.Lock()
		if cur, ok := c.readers.Peek(path); ok && cur == r {
			c.readers.Remove(path)
		}
		c.mu.Unlock()
		logger.FromContext(ctx).Debug("retrying reader acquire", "component", "reader-cache", "index", path, "attempt", attempt+1)
	}
	return nil, fmt.Errorf("acquiring reader for %s: %w", path, lastErr)
}

func (c *ReaderCache) get(path string) (*reader.Reader, bool, error) {
	if r, ok := c.readers.Get(path); ok {
		return r, true, nil
	}
	v, err, _ := c.group.Do(path, func() (any, error) {
		if r, ok := c.readers.Get(path); ok {
			return r, nil
		}
		r, err := c.open(path, c.registry)
		if err != nil {
			return nil, fmt.Errorf("opening index %s: %w", path, err)
		}
		return c.install(path, r), nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*reader.Reader), false, nil
}

// install caches r unless a reader for path was cached while r was being
// opened, typically by Reload. The loser is closed and the cached reader
// returned.
func (c *ReaderCache) install(path string, r *reader.Reader) *reader.Reader {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.readers.Peek(path); ok {
		r.Close()
		return cur
	}
	c.readers.Add(path, r)
	c.metrics.SetOpenReaders(c.readers.Len())
	c.logger.Info("reader opened", "index", path)
	return r
}

// Reload reopens the index at path so later snapshots see newly flushed
// segments. Snapshots taken before the reload keep reading the old segments.
// When the reopen fails the cached reader is kept.
func (c *ReaderCache) Reload(path string) error {
	path = filepath.Clean(path)
	c.mu.Lock()
	defer c.mu.Unlock()

	r, err := c.open(path, c.registry)
	if err != nil {
		return fmt.Errorf("reloading index %s: %w", path, err)
	}
	// Remove fires the eviction callback for the old reader; Add on an
	// existing key would not.
	c.readers.Remove(path)
	c.readers.Add(path, r)
	c.metrics.SetOpenReaders(c.readers.Len())
	c.logger.Info("reader reloaded", "index", path)
	return nil
}

// Remove drops and closes the reader for path, if cached.
func (c *ReaderCache) Remove(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ok := c.readers.Remove(filepath.Clean(path))
	c.metrics.SetOpenReaders(c.readers.Len())
	return ok
}

// Contains reports whether a reader for path is cached, without touching
// its recency.
func (c *ReaderCache) Contains(path string) bool {
	return c.readers.Contains(filepath.Clean(path))
}

// Paths returns the cached index paths, least recently used first.
func (c *ReaderCache) Paths() []string {
	return c.readers.Keys()
}

func (c *ReaderCache) Len() int {
	return c.readers.Len()
}

// Close closes every cached reader.
func (c *ReaderCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readers.Purge()
	c.metrics.SetOpenReaders(0)
}
