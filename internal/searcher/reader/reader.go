// Package reader opens index directories for searching. A Reader holds the
// segment files of one index; every query takes its own Snapshot, which
// pins the segments until it is released.
package reader

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer/schema"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer/tokenizer"
)

// ErrClosed is returned when a snapshot is requested from a closed reader.
var ErrClosed = errors.New("reader closed")

// Reader is the shared, read-only handle of one index directory.
type Reader struct {
	path      string
	schema    *schema.Schema
	registry  *tokenizer.Registry
	segments  []*segment.Reader
	totalDocs uint64
	refs      atomic.Int64
	logger    *slog.Logger
}

// Open loads the meta file and every segment of the index at path.
func Open(path string, registry *tokenizer.Registry) (*Reader, error) {
	meta, err := indexer.ReadMeta(path)
	if err != nil {
		return nil, err
	}
	names, err := indexer.ListSegments(path)
	if err != nil {
		return nil, err
	}
	r := &Reader{
		path:     path,
		schema:   meta.Schema,
		registry: registry,
		segments: make([]*segment.Reader, 0, len(names)),
		logger:   slog.Default().With("component", "reader", "index", path),
	}
	for _, name := range names {
		seg, err := segment.OpenReader(filepath.Join(path, name))
		if err != nil {
			r.closeSegments()
			return nil, fmt.Errorf("opening segment %s: %w", name, err)
		}
		r.segments = append(r.segments, seg)
		r.totalDocs += uint64(seg.DocCount())
	}
	r.refs.Store(1)
	r.logger.Debug("index reader opened",
		"segments", len(r.segments),
		"docs", r.totalDocs,
	)
	return r, nil
}

func (r *Reader) Path() string { return r.path }

// Snapshot pins the reader for one query. The caller must Release it.
func (r *Reader) Snapshot() (*Snapshot, error) {
	for {
		n := r.refs.Load()
		if n <= 0 {
			return nil, fmt.Errorf("%s: %w", r.path, ErrClosed)
		}
		if r.refs.CompareAndSwap(n, n+1) {
			return &Snapshot{r: r}, nil
		}
	}
}

// Close drops the owner's reference. Segment files are closed once every
// outstanding snapshot has been released.
func (r *Reader) Close() {
	r.release()
}

func (r *Reader) release() {
	if r.refs.Add(-1) == 0 {
		r.closeSegments()
		r.logger.Debug("index reader closed")
	}
}

func (r *Reader) closeSegments() {
	for _, seg := range r.segments {
		if err := seg.Close(); err != nil {
			r.logger.Error("closing segment reader", "segment", seg.Name(), "error", err)
		}
	}
}

// Snapshot is a consistent read-only view of an index for one query. It
// carries no per-query state: statistics overrides are passed alongside it.
type Snapshot struct {
	r        *Reader
	released atomic.Bool
}

// Release unpins the snapshot. Calling it more than once is harmless.
func (s *Snapshot) Release() {
	if s.released.CompareAndSwap(false, true) {
		s.r.release()
	}
}

func (s *Snapshot) Path() string { return s.r.path }

func (s *Snapshot) Schema() *schema.Schema { return s.r.schema }

// Segments returns the segment readers in ordinal order.
func (s *Snapshot) Segments() []*segment.Reader { return s.r.segments }

// Analyzer returns the analyzer configured for an indexed field.
func (s *Snapshot) Analyzer(field schema.Field) (*tokenizer.Analyzer, error) {
	if field.Tokenizer == "" {
		return nil, fmt.Errorf("indexed field %q has no analyzer configured", field.Name)
	}
	a, ok := s.r.registry.Get(field.Tokenizer)
	if !ok {
		return nil, fmt.Errorf("field %q: analyzer %q is not registered", field.Name, field.Tokenizer)
	}
	return a, nil
}

// DocFreq returns the number of documents containing term in field,
// summed over all segments.
func (s *Snapshot) DocFreq(field schema.FieldID, term string) uint64 {
	key := index.TermKey{Field: field, Term: term}
	var df uint64
	for _, seg := range s.r.segments {
		df += seg.DocFreq(key)
	}
	return df
}

// TotalNumDocs returns the document count of the index.
func (s *Snapshot) TotalNumDocs() uint64 { return s.r.totalDocs }

// TotalNumTokens returns the token count of field over the whole index.
func (s *Snapshot) TotalNumTokens(field schema.FieldID) uint64 {
	var total uint64
	for _, seg := range s.r.segments {
		total += seg.TotalTokens(field)
	}
	return total
}
