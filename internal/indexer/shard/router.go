// Package shard partitions a document collection across independent index
// directories. Each shard owns its own indexer.Engine under
// <base>/shard-<i>, and documents are routed by row id.
package shard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer/schema"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/config"
)

// Router maps shard IDs to dedicated indexer.Engine instances.
type Router struct {
	engines   []*indexer.Engine
	mu        sync.RWMutex
	numShards int
	logger    *slog.Logger
}

// ShardDir returns the directory of shard i under base.
func ShardDir(base string, i int) string {
	return filepath.Join(base, fmt.Sprintf("shard-%d", i))
}

// NewRouter creates numShards new indexes sharing schema s, each in its own
// sub-directory of baseCfg.DataDir.
func NewRouter(baseCfg config.IndexConfig, s *schema.Schema, registry *tokenizer.Registry, numShards int) (*Router, error) {
	if numShards < 1 {
		return nil, fmt.Errorf("number of shards must be positive, got %d", numShards)
	}
	r := &Router{
		engines:   make([]*indexer.Engine, 0, numShards),
		numShards: numShards,
		logger:    slog.Default().With("component", "shard-router"),
	}
	for i := 0; i < numShards; i++ {
		dir := ShardDir(baseCfg.DataDir, i)
		engine, err := indexer.Create(dir, s, registry, baseCfg)
		if err != nil {
			r.closeAll()
			return nil, fmt.Errorf("creating engine for shard %d: %w", i, err)
		}
		r.engines = append(r.engines, engine)
		r.logger.Info("shard engine initialized",
			"shard_id", i,
			"data_dir", dir,
		)
	}
	r.logger.Info("shard router ready", "num_shards", numShards)
	return r, nil
}

// OpenRouter resumes writing to existing shard indexes. paths must be in
// shard order; documents keep routing by row id modulo len(paths).
func OpenRouter(paths []string, registry *tokenizer.Registry, cfg config.IndexConfig) (*Router, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no shard paths configured")
	}
	r := &Router{
		engines:   make([]*indexer.Engine, 0, len(paths)),
		numShards: len(paths),
		logger:    slog.Default().With("component", "shard-router"),
	}
	for i, dir := range paths {
		engine, err := indexer.Open(dir, registry, cfg)
		if err != nil {
			r.closeAll()
			return nil, fmt.Errorf("opening shard %d: %w", i, err)
		}
		r.engines = append(r.engines, engine)
	}
	r.logger.Info("shard router opened", "num_shards", len(paths))
	return r, nil
}

// SetFlushHook registers fn on every shard engine.
func (r *Router) SetFlushHook(fn indexer.FlushHook) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, engine := range r.engines {
		engine.SetFlushHook(fn)
	}
}

// StartFlushLoops starts the periodic flush of every shard engine.
func (r *Router) StartFlushLoops(ctx context.Context) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, engine := range r.engines {
		engine.StartFlushLoop(ctx)
		r.logger.Debug("flush loop started", "shard_id", id)
	}
}

// ShardFor returns the shard owning rowID.
func (r *Router) ShardFor(rowID uint64) int {
	return int(rowID % uint64(r.numShards))
}

// IndexDocument routes a document to its shard engine.
func (r *Router) IndexDocument(rowID uint64, values map[string]string) error {
	engine, err := r.Route(r.ShardFor(rowID))
	if err != nil {
		return err
	}
	return engine.IndexDocument(rowID, values)
}

// Route returns the Engine responsible for the given shard ID.
func (r *Router) Route(shardID int) (*indexer.Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if shardID < 0 || shardID >= len(r.engines) {
		return nil, fmt.Errorf("unknown shard ID %d (valid range: 0-%d)", shardID, r.numShards-1)
	}
	return r.engines[shardID], nil
}

// Paths returns the index directory of every shard in shard order.
func (r *Router) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	paths := make([]string, len(r.engines))
	for i, engine := range r.engines {
		paths[i] = engine.Dir()
	}
	return paths
}

// NumShards returns the number of shards managed by this router.
func (r *Router) NumShards() int {
	return r.numShards
}

// FlushAll flushes every shard engine to disk.
func (r *Router) FlushAll() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var errs []error
	for id, engine := range r.engines {
		if err := engine.Flush(); err != nil {
			r.logger.Error("flush failed", "shard_id", id, "error", err)
			errs = append(errs, fmt.Errorf("shard %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// Close flushes and closes every shard engine.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeAll()
}

func (r *Router) closeAll() error {
	var errs []error
	for id, engine := range r.engines {
		if err := engine.Close(); err != nil {
			r.logger.Error("close failed", "shard_id", id, "error", err)
			errs = append(errs, fmt.Errorf("shard %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
