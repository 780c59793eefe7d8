package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer/schema"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/config"
)

// Engine builds one index directory: documents are analyzed into a memory
// index and flushed as immutable segments. Readers open the directory
// independently; the engine never serves queries.
type Engine struct {
	dir       string
	schema    *schema.Schema
	analyzers map[schema.FieldID]*tokenizer.Analyzer
	memIndex  *index.MemoryIndex
	writer    *segment.Writer
	cfg       config.IndexConfig
	logger    *slog.Logger

	flushMu  sync.Mutex
	segments []string
	onFlush  FlushHook
}

// FlushHook is called after a flush wrote a new segment, outside the flush
// lock.
type FlushHook func(dir, segment string, docs int)

// Create initialises a new index in dir with the given schema. Every indexed
// field must name an analyzer known to registry.
func Create(dir string, s *schema.Schema, registry *tokenizer.Registry, cfg config.IndexConfig) (*Engine, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	if _, err := ReadMeta(dir); err == nil {
		return nil, fmt.Errorf("index already exists in %s", dir)
	} else if !errors.Is(err, ErrNoIndex) {
		return nil, err
	}
	e, err := newEngine(dir, s, registry, cfg)
	if err != nil {
		return nil, err
	}
	if err := WriteMeta(dir, Meta{Schema: s, CreatedAt: time.Now().Unix()}); err != nil {
		return nil, err
	}
	e.logger.Info("index created", "fields", len(s.Fields))
	return e, nil
}

// Open resumes writing to an existing index in dir.
func Open(dir string, registry *tokenizer.Registry, cfg config.IndexConfig) (*Engine, error) {
	meta, err := ReadMeta(dir)
	if err != nil {
		return nil, err
	}
	e, err := newEngine(dir, meta.Schema, registry, cfg)
	if err != nil {
		return nil, err
	}
	segments, err := ListSegments(dir)
	if err != nil {
		return nil, err
	}
	e.segments = segments
	e.logger.Info("index opened", "segments", len(segments))
	return e, nil
}

func newEngine(dir string, s *schema.Schema, registry *tokenizer.Registry, cfg config.IndexConfig) (*Engine, error) {
	analyzers := make(map[schema.FieldID]*tokenizer.Analyzer)
	for _, f := range s.IndexedTextFields() {
		a, ok := registry.Get(f.Tokenizer)
		if !ok {
			return nil, fmt.Errorf("field %q: unknown analyzer %q", f.Name, f.Tokenizer)
		}
		analyzers[f.ID] = a
	}
	return &Engine{
		dir:       dir,
		schema:    s,
		analyzers: analyzers,
		memIndex:  index.NewMemoryIndex(),
		writer:    segment.NewWriter(dir),
		cfg:       cfg,
		logger:    slog.Default().With("component", "indexer", "index", dir),
	}, nil
}

// IndexDocument buffers one document. values is keyed by field name; fields
// absent from values are indexed as empty.
func (e *Engine) IndexDocument(rowID uint64, values map[string]string) error {
	for name := range values {
		if _, ok := e.schema.FieldByName(name); !ok {
			return fmt.Errorf("document %d: unknown field %q", rowID, name)
		}
	}
	tokens := make(map[schema.FieldID][]tokenizer.Token, len(e.analyzers))
	stored := make(map[string]string)
	for _, f := range e.schema.Fields {
		value := values[f.Name]
		if a, ok := e.analyzers[f.ID]; ok {
			tokens[f.ID] = a.Analyze(value)
		}
		if f.Stored && value != "" {
			stored[f.Name] = value
		}
	}
	e.memIndex.AddDocument(rowID, len(e.schema.Fields), tokens, stored)
	e.logger.Debug("document indexed in memory",
		"row_id", rowID,
		"mem_size", e.memIndex.Size(),
	)
	if e.cfg.SegmentMaxSize > 0 && e.memIndex.Size() >= e.cfg.SegmentMaxSize {
		e.logger.Info("memory index reached max size, flushing to disk",
			"size", e.memIndex.Size(),
			"threshold", e.cfg.SegmentMaxSize,
		)
		if err := e.Flush(); err != nil {
			return fmt.Errorf("flushing memory index: %w", err)
		}
	}
	return nil
}

// Flush writes the buffered documents as a new segment. It is a no-op when
// nothing is buffered.
func (e *Engine) Flush() error {
	segmentName, docs, err := e.flush()
	if err != nil || segmentName == "" {
		return err
	}
	if e.onFlush != nil {
		e.onFlush(e.dir, segmentName, docs)
	}
	return nil
}

func (e *Engine) flush() (string, int, error) {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()

	entries, docs := e.memIndex.Drain()
	if len(docs) == 0 {
		return "", 0, nil
	}
	segmentName, err := e.writer.Write(entries, docs)
	if err != nil {
		return "", 0, fmt.Errorf("writing segment: %w", err)
	}
	e.segments = append(e.segments, segmentName)
	e.logger.Info("segment flushed",
		"segment", segmentName,
		"terms", len(entries),
		"docs", len(docs),
		"active_segments", len(e.segments),
	)
	return segmentName, len(docs), nil
}

// SetFlushHook registers fn to run after every flush that wrote a segment.
// It must be called before documents are indexed.
func (e *Engine) SetFlushHook(fn FlushHook) {
	e.onFlush = fn
}

// StartFlushLoop flushes periodically until ctx is cancelled, then performs
// a final flush.
func (e *Engine) StartFlushLoop(ctx context.Context) {
	if e.cfg.FlushInterval <= 0 {
		return
	}
	ticker := time.NewTicker(e.cfg.FlushInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				e.logger.Info("flush loop stopping, performing final flush")
				if err := e.Flush(); err != nil {
					e.logger.Error("final flush failed", "error", err)
				}
				return
			case <-ticker.C:
				if e.memIndex.DocCount() > 0 {
					if err := e.Flush(); err != nil {
						e.logger.Error("periodic flush failed", "error", err)
					}
				}
			}
		}
	}()
}

// Segments returns the paths of the segments written so far.
func (e *Engine) Segments() []string {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()
	out := make([]string, len(e.segments))
	for i, name := range e.segments {
		out[i] = filepath.Join(e.dir, name)
	}
	return out
}

func (e *Engine) Schema() *schema.Schema { return e.schema }

func (e *Engine) Dir() string { return e.dir }

// Close flushes any buffered documents.
func (e *Engine) Close() error {
	if err := e.Flush(); err != nil {
		e.logger.Error("final flush on close failed", "error", err)
		return err
	}
	return nil
}
