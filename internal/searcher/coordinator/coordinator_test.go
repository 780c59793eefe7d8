package coordinator

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer/schema"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/searcher/service"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/searcher/stats"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/errors"
)

var corpus = []string{
	"Distributed search engines split an index into shards",
	"BM25 ranks documents by term frequency and inverse document frequency",
	"Each shard only knows its local statistics",
	"Global statistics make shard scores comparable",
	"A search coordinator merges the top results of every shard",
	"Term frequency saturates quickly under BM25",
	"Document length normalization penalizes long documents",
	"The quick brown fox jumps over the lazy dog",
	"Inverted index postings map terms to documents",
	"Rare terms carry more weight than common terms in search ranking",
	"Shards can be rebuilt independently of each other",
	"Search quality depends on consistent statistics",
}

func textSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.NewBuilder().
		AddTextField("body", schema.TextOptions{Indexed: true, Stored: true, Tokenizer: tokenizer.AnalyzerDefault}).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// fixture builds the corpus once as a single index and once split over
// three shards.
func fixture(t *testing.T) (svc *service.Service, single string, shards []string) {
	t.Helper()
	base := t.TempDir()
	single = filepath.Join(base, "single")
	e, err := indexer.Create(single, textSchema(t), tokenizer.NewRegistry(), config.IndexConfig{})
	if err != nil {
		t.Fatal(err)
	}
	router, err := shard.NewRouter(config.IndexConfig{DataDir: filepath.Join(base, "sharded")}, textSchema(t), tokenizer.NewRegistry(), 3)
	if err != nil {
		t.Fatal(err)
	}
	for i, text := range corpus {
		doc := map[string]string{"body": text}
		if err := e.IndexDocument(uint64(i), doc); err != nil {
			t.Fatal(err)
		}
		if err := router.IndexDocument(uint64(i), doc); err != nil {
			t.Fatal(err)
		}
	}
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	if err := router.Close(); err != nil {
		t.Fatal(err)
	}

	readers, err := cache.NewReaderCache(8, tokenizer.NewRegistry(), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(readers.Close)
	return service.New(readers, nil), single, router.Paths()
}

func scoresByRow(results []executor.RowIDWithScore) map[uint64]float32 {
	out := make(map[uint64]float32, len(results))
	for _, r := range results {
		out[r.RowID] = r.Score
	}
	return out
}

func TestShardedMatchesSingleIndex(t *testing.T) {
	svc, single, shards := fixture(t)
	co := New(svc, shards, WithConcurrency(2))
	ctx := context.Background()

	tests := []struct {
		strategy string
		sentence string
		or       bool
	}{
		{NaturalLanguage, "shard statistics", true},
		{NaturalLanguage, "search shard", false},
		{NaturalLanguage, "bm25 term frequency documents", true},
		{Standard, `"term frequency" OR statistics`, false},
		{Standard, "search -coordinator", false},
	}
	for _, tt := range tests {
		t.Run(tt.sentence, func(t *testing.T) {
			params := service.SearchParams{Sentence: tt.sentence, TopK: len(corpus), CombineWithOr: tt.or}
			var want []executor.RowIDWithScore
			var err error
			if tt.strategy == Standard {
				want, err = svc.BM25StandardSearch(ctx, single, params)
			} else {
				want, err = svc.BM25NaturalLanguageSearch(ctx, single, params)
			}
			if err != nil {
				t.Fatal(err)
			}
			if len(want) == 0 {
				t.Fatal("query matches nothing in the single index")
			}

			resp, err := co.Search(ctx, Request{Sentence: tt.sentence, Strategy: tt.strategy, TopK: len(corpus), CombineWithOr: tt.or})
			if err != nil {
				t.Fatal(err)
			}
			if resp.Shards != 3 || resp.Statistics.TotalNumDocs != uint64(len(corpus)) {
				t.Errorf("shards=%d total docs=%d", resp.Shards, resp.Statistics.TotalNumDocs)
			}
			got := scoresByRow(resp.Results)
			if len(got) != len(want) {
				t.Fatalf("sharded rows %v, single rows %v", got, scoresByRow(want))
			}
			for _, w := range want {
				g, ok := got[w.RowID]
				if !ok {
					t.Errorf("row %d missing from sharded results", w.RowID)
					continue
				}
				if math.Abs(float64(g-w.Score)) > 1e-5 {
					t.Errorf("row %d: sharded score %v, single %v", w.RowID, g, w.Score)
				}
			}
			for i := 1; i < len(resp.Results); i++ {
				if resp.Results[i-1].Score < resp.Results[i].Score {
					t.Fatalf("merged results not ordered: %+v", resp.Results)
				}
			}
		})
	}
}

func TestSearchTopK(t *testing.T) {
	svc, _, shards := fixture(t)
	co := New(svc, shards)
	resp, err := co.Search(context.Background(), Request{Sentence: "shard search statistics", TopK: 2, CombineWithOr: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 2 {
		t.Errorf("results = %d, want 2", len(resp.Results))
	}
}

func TestSearchValidation(t *testing.T) {
	svc, _, shards := fixture(t)
	ctx := context.Background()
	tests := []struct {
		name string
		co   *Coordinator
		req  Request
		want error
	}{
		{"zero topk", New(svc, shards), Request{Sentence: "shard", TopK: 0}, apperrors.ErrInvalidInput},
		{"bad strategy", New(svc, shards), Request{Sentence: "shard", Strategy: "fuzzy", TopK: 1}, apperrors.ErrInvalidInput},
		{"no shards", New(svc, nil), Request{Sentence: "shard", TopK: 1}, apperrors.ErrIndexNotFound},
		{"malformed", New(svc, shards), Request{Sentence: "(shard", Strategy: Standard, TopK: 1}, apperrors.ErrIndexSearcher},
		{"missing shard", New(svc, append(shards, t.TempDir())), Request{Sentence: "shard", TopK: 1}, apperrors.ErrInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.co.Search(ctx, tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, goredis.Nil
}

func (m *memStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memStore) FlushByPattern(context.Context, string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.data))
	m.data = map[string][]byte{}
	return n, nil
}

func TestCollectStatisticsUsesCache(t *testing.T) {
	svc, single, shards := fixture(t)
	statsCache := cache.NewStatsCache(&memStore{data: map[string][]byte{}}, time.Minute, nil)
	co := New(svc, shards, WithStatsCache(statsCache))
	ctx := context.Background()

	first, err := co.CollectStatistics(ctx, "shard statistics")
	if err != nil {
		t.Fatal(err)
	}
	second, err := co.CollectStatistics(ctx, "shard statistics")
	if err != nil {
		t.Fatal(err)
	}
	if hits, _ := statsCache.Stats(); hits != int64(len(shards)) {
		t.Errorf("cache hits = %d, want %d", hits, len(shards))
	}
	if dfSum(first) != dfSum(second) || first.TotalNumDocs != uint64(len(corpus)) {
		t.Errorf("first %+v second %+v", first, second)
	}
	// the summed frequencies equal those of the unsharded index
	want, err := svc.GetDocFreq(ctx, single, "shard statistics")
	if err != nil {
		t.Fatal(err)
	}
	g := stats.Merge(first)
	for _, w := range want {
		if got := g.DocFreqByTerm[stats.Term{Field: w.FieldID, Text: w.Term}]; got != w.DocFreq || got == 0 {
			t.Errorf("global doc freq of %q = %d, want %d", w.Term, got, w.DocFreq)
		}
	}
}

func dfSum(p stats.PerShardStatistics) uint64 {
	var n uint64
	for _, d := range p.DocsFreq {
		n += d.DocFreq
	}
	return n
}
