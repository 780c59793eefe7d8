// Package coordinator runs one BM25 query over several index partitions so
// that scores match a single index holding every document. It collects the
// partitions' term statistics, sums them, hands the sum to every partition's
// search and merges the per-partition top-k lists.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/searcher/service"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/searcher/stats"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/metrics"
)

// Strategy names accepted in a Request.
const (
	NaturalLanguage = "natural_language"
	Standard        = "standard"
)

// Backend is the per-partition API. *service.Service implements it.
type Backend interface {
	BM25NaturalLanguageSearch(ctx context.Context, path string, p service.SearchParams) ([]executor.RowIDWithScore, error)
	BM25StandardSearch(ctx context.Context, path string, p service.SearchParams) ([]executor.RowIDWithScore, error)
	GetDocFreq(ctx context.Context, path, sentence string) ([]stats.DocWithFreq, error)
	GetTotalNumDocs(ctx context.Context, path string) (uint64, error)
	GetTotalNumTokens(ctx context.Context, path string) (uint64, error)
}

// Request is one distributed query. Row ids are global, so a single alive
// bitmap applies to every partition.
type Request struct {
	Sentence      string `json:"sentence"`
	Strategy      string `json:"strategy"`
	TopK          int    `json:"topk"`
	AliveBitmap   []byte `json:"alive_bitmap,omitempty"`
	ApplyFilter   bool   `json:"apply_filter"`
	CombineWithOr bool   `json:"combine_with_or"`
	NeedDocument  bool   `json:"need_document"`
}

// Response carries the merged hits and the statistics they were scored with.
type Response struct {
	Results    []executor.RowIDWithScore `json:"results"`
	Statistics stats.PerShardStatistics  `json:"statistics"`
	Shards     int                       `json:"shards"`
}

type Coordinator struct {
	backend     Backend
	paths       []string
	concurrency int
	statsCache  *cache.StatsCache
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithStatsCache caches per-partition doc-freq responses.
func WithStatsCache(c *cache.StatsCache) Option {
	return func(co *Coordinator) { co.statsCache = c }
}

// WithConcurrency bounds the partitions queried at once.
func WithConcurrency(n int) Option {
	return func(co *Coordinator) { co.concurrency = n }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(co *Coordinator) { co.metrics = m }
}

func New(backend Backend, paths []string, opts ...Option) *Coordinator {
	c := &Coordinator{
		backend: backend,
		paths:   append([]string(nil), paths...),
		logger:  logger.WithComponent("coordinator"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) Paths() []string {
	return append([]string(nil), c.paths...)
}

// Search runs req over every partition. Any partition failure fails the
// whole query: statistics missing a partition would skew every score.
func (c *Coordinator) Search(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	log := logger.ForFunction(ctx, "distributed_search").With(
		"sentence", req.Sentence,
		"strategy", req.Strategy,
		"topk", req.TopK,
		"shards", len(c.paths),
	)
	if req.Strategy == "" {
		req.Strategy = NaturalLanguage
	}
	if req.Strategy != NaturalLanguage && req.Strategy != Standard {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "unknown strategy %q", req.Strategy)
	}
	if req.TopK <= 0 {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "topk must be positive, got %d", req.TopK)
	}
	if len(c.paths) == 0 {
		return nil, apperrors.New(apperrors.ErrIndexNotFound, http.StatusNotFound, "no shards configured")
	}

	statsSentence, err := c.statsSentence(req)
	if err != nil {
		log.Error("building statistics sentence", "error", err)
		return nil, apperrors.IndexSearcher(err)
	}
	global, err := c.CollectStatistics(ctx, statsSentence)
	if err != nil {
		log.Error("collecting shard statistics", "error", err)
		return nil, err
	}

	params := service.SearchParams{
		Sentence:      req.Sentence,
		TopK:          req.TopK,
		AliveBitmap:   req.AliveBitmap,
		ApplyFilter:   req.ApplyFilter,
		CombineWithOr: req.CombineWithOr,
		Statistics:    global,
		NeedDocument:  req.NeedDocument,
	}
	perShard := make([][]executor.RowIDWithScore, len(c.paths))
	g, gctx := errgroup.WithContext(ctx)
	c.limit(g)
	for i, path := range c.paths {
		g.Go(func() error {
			var results []executor.RowIDWithScore
			var err error
			if req.Strategy == Standard {
				results, err = c.backend.BM25StandardSearch(gctx, path, params)
			} else {
				results, err = c.backend.BM25NaturalLanguageSearch(gctx, path, params)
			}
			c.metrics.ObserveShardRequest("search", err)
			if err != nil {
				return fmt.Errorf("shard %d (%s): %w", i, path, err)
			}
			perShard[i] = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Error("shard search failed", "error", err)
		return nil, err
	}

	merged := merger.Merge(perShard, req.TopK)
	log.Info("distributed search completed",
		"results", len(merged),
		"total_docs", global.TotalNumDocs,
		"terms", len(global.DocsFreq),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return &Response{Results: merged, Statistics: global, Shards: len(c.paths)}, nil
}

// CollectStatistics gathers the doc frequencies of sentence's terms and the
// document and token totals of every partition and sums them.
func (c *Coordinator) CollectStatistics(ctx context.Context, sentence string) (stats.PerShardStatistics, error) {
	parts := make([]stats.PerShardStatistics, len(c.paths))
	g, gctx := errgroup.WithContext(ctx)
	c.limit(g)
	for i, path := range c.paths {
		g.Go(func() error {
			docs, err := c.docFreq(gctx, path, sentence)
			c.metrics.ObserveShardRequest("doc_freq", err)
			if err != nil {
				return fmt.Errorf("shard %d (%s) doc freq: %w", i, path, err)
			}
			numDocs, err := c.backend.GetTotalNumDocs(gctx, path)
			c.metrics.ObserveShardRequest("total_num_docs", err)
			if err != nil {
				return fmt.Errorf("shard %d (%s) total docs: %w", i, path, err)
			}
			numTokens, err := c.backend.GetTotalNumTokens(gctx, path)
			c.metrics.ObserveShardRequest("total_num_tokens", err)
			if err != nil {
				return fmt.Errorf("shard %d (%s) total tokens: %w", i, path, err)
			}
			parts[i] = stats.PerShardStatistics{
				DocsFreq:       docs,
				TotalNumTokens: numTokens,
				TotalNumDocs:   numDocs,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats.PerShardStatistics{}, err
	}
	return stats.Sum(parts...), nil
}

func (c *Coordinator) docFreq(ctx context.Context, path, sentence string) ([]stats.DocWithFreq, error) {
	if c.statsCache == nil {
		return c.backend.GetDocFreq(ctx, path, sentence)
	}
	docs, _, err := c.statsCache.GetOrCompute(ctx, path, sentence, func(ctx context.Context) ([]stats.DocWithFreq, error) {
		return c.backend.GetDocFreq(ctx, path, sentence)
	})
	return docs, err
}

// statsSentence is the text whose terms need global statistics. Standard
// queries contribute only their leaf text, so operators and quotes never
// reach the analyzer.
func (c *Coordinator) statsSentence(req Request) (string, error) {
	if req.Strategy != Standard {
		return req.Sentence, nil
	}
	node, err := parser.Parse(req.Sentence)
	if err != nil {
		return "", fmt.Errorf("parsing query: %w", err)
	}
	leaves := parser.Leaves(node)
	texts := make([]string, len(leaves))
	for i, l := range leaves {
		texts[i] = l.Text
	}
	return strings.Join(texts, " "), nil
}

func (c *Coordinator) limit(g *errgroup.Group) {
	if c.concurrency > 0 {
		g.SetLimit(c.concurrency)
	}
}
