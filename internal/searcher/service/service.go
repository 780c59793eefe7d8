// Package service exposes the five public BM25 operations over index paths:
// natural-language search, standard-syntax search, and the document
// frequency and aggregate accessors used to collect distributed statistics.
//
// Every call takes its own snapshot from the reader cache. Distributed
// statistics travel with the call and never touch the shared reader.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/searcher/reader"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/searcher/stats"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/metrics"
)

// SnapshotSource hands out per-call snapshots. *cache.ReaderCache
// implements it.
type SnapshotSource interface {
	Acquire(ctx context.Context, path string) (*reader.Snapshot, error)
}

// SearchParams are the inputs shared by both search operations.
type SearchParams struct {
	Sentence string `json:"sentence"`
	TopK     int    `json:"topk"`
	// AliveBitmap is byte-packed, least significant bit first; JSON carries
	// it base64 encoded.
	AliveBitmap   []byte                   `json:"alive_bitmap,omitempty"`
	ApplyFilter   bool                     `json:"apply_filter"`
	CombineWithOr bool                     `json:"combine_with_or"`
	Statistics    stats.PerShardStatistics `json:"statistics"`
	NeedDocument  bool                     `json:"need_document"`
}

func (p SearchParams) query() query.Params {
	return query.Params{
		Sentence:      p.Sentence,
		TopK:          p.TopK,
		AliveBitmap:   p.AliveBitmap,
		ApplyFilter:   p.ApplyFilter,
		NeedDocument:  p.NeedDocument,
		CombineWithOr: p.CombineWithOr,
	}
}

type Service struct {
	snapshots SnapshotSource
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates a Service. m may be nil.
func New(snapshots SnapshotSource, m *metrics.Metrics) *Service {
	return &Service{
		snapshots: snapshots,
		metrics:   m,
		logger:    logger.WithComponent("bm25-service"),
	}
}

// BM25NaturalLanguageSearch treats the sentence as free text.
func (s *Service) BM25NaturalLanguageSearch(ctx context.Context, path string, p SearchParams) ([]executor.RowIDWithScore, error) {
	return s.search(ctx, "bm25_natural_language_search", path, query.NewNaturalLanguage(p.query()), p)
}

// BM25StandardSearch parses the sentence as structured query syntax.
func (s *Service) BM25StandardSearch(ctx context.Context, path string, p SearchParams) ([]executor.RowIDWithScore, error) {
	return s.search(ctx, "bm25_standard_search", path, query.NewStandard(p.query()), p)
}

func (s *Service) search(ctx context.Context, function, path string, strategy query.Strategy, p SearchParams) ([]executor.RowIDWithScore, error) {
	start := time.Now()
	log := logger.ForFunction(ctx, function).With(
		"index", path,
		"sentence", p.Sentence,
		"topk", p.TopK,
		"apply_filter", p.ApplyFilter,
		"combine_with_or", p.CombineWithOr,
		"need_document", p.NeedDocument,
		"docs_freq", len(p.Statistics.DocsFreq),
	)

	snap, err := s.snapshots.Acquire(ctx, path)
	if err != nil {
		log.Error("failed to acquire index reader", "error", err)
		s.metrics.ObserveSearch(strategy.Name(), 0, err, time.Since(start))
		return nil, acquireError(path, err)
	}
	defer snap.Release()

	var provider ranker.StatisticsProvider
	if p.Statistics.Empty() {
		provider = snap
	} else {
		provider = stats.Merge(p.Statistics).Over(snap)
	}
	s.metrics.ObserveStatsMode(!p.Statistics.Empty())

	results, err := executor.Execute(ctx, strategy, snap, provider)
	s.metrics.ObserveSearch(strategy.Name(), len(results), err, time.Since(start))
	if err != nil {
		log.Error("search failed", "error", err)
		return nil, err
	}
	log.Debug("search completed",
		"results", len(results),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return results, nil
}

// GetDocFreq returns the document frequency of every distinct term of
// sentence, analyzed with the index's text field analyzer. An index
// without an indexed text field yields an empty list.
func (s *Service) GetDocFreq(ctx context.Context, path, sentence string) ([]stats.DocWithFreq, error) {
	log := logger.ForFunction(ctx, "get_doc_freq").With("index", path, "sentence", sentence)
	snap, err := s.snapshots.Acquire(ctx, path)
	if err != nil {
		log.Error("failed to acquire index reader", "error", err)
		return nil, acquireError(path, err)
	}
	defer snap.Release()

	docs := []stats.DocWithFreq{}
	field, ok := snap.Schema().SingleTextField()
	if !ok {
		return docs, nil
	}
	analyzer, err := snap.Analyzer(field)
	if err != nil {
		log.Error("indexed text field without a usable analyzer", "field", field.Name, "error", err)
		return nil, apperrors.Internal(err)
	}
	for _, term := range analyzer.Terms(sentence) {
		docs = append(docs, stats.DocWithFreq{
			Term:    term,
			FieldID: field.ID,
			DocFreq: snap.DocFreq(field.ID, term),
		})
	}
	s.metrics.ObserveDocFreqLookups(len(docs))
	log.Debug("doc freq collected", "terms", len(docs))
	return docs, nil
}

// GetTotalNumDocs returns the number of documents in the index.
func (s *Service) GetTotalNumDocs(ctx context.Context, path string) (uint64, error) {
	snap, err := s.snapshots.Acquire(ctx, path)
	if err != nil {
		logger.ForFunction(ctx, "get_total_num_docs").Error("failed to acquire index reader", "index", path, "error", err)
		return 0, acquireError(path, err)
	}
	defer snap.Release()
	return snap.TotalNumDocs(), nil
}

// GetTotalNumTokens returns the token count of the index's text field, or 0
// when no text field is indexed.
func (s *Service) GetTotalNumTokens(ctx context.Context, path string) (uint64, error) {
	snap, err := s.snapshots.Acquire(ctx, path)
	if err != nil {
		logger.ForFunction(ctx, "get_total_num_tokens").Error("failed to acquire index reader", "index", path, "error", err)
		return 0, acquireError(path, err)
	}
	defer snap.Release()
	field, ok := snap.Schema().SingleTextField()
	if !ok {
		return 0, nil
	}
	return snap.TotalNumTokens(field.ID), nil
}

// acquireError classifies a failed Acquire: damaged segment files stay engine
// errors, anything else (missing index, unreadable meta) is internal.
func acquireError(path string, err error) error {
	if errors.Is(err, apperrors.ErrEngine) {
		return err
	}
	return apperrors.Internal(fmt.Errorf("acquiring reader for %s: %w", path, err))
}
