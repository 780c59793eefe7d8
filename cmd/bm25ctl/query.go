package main

import (
	"context"
	"fmt"
	"io"

	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/searcher/coordinator"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/searcher/service"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/searcher/stats"
)

func openService(indexes []string) (*service.Service, func(), error) {
	readers, err := cache.NewReaderCache(len(indexes)+1, tokenizer.NewRegistry(), nil)
	if err != nil {
		return nil, nil, err
	}
	return service.New(readers, nil), readers.Close, nil
}

type searchOutput struct {
	Results    []executor.RowIDWithScore `json:"results"`
	Statistics *stats.PerShardStatistics `json:"statistics,omitempty"`
}

func runSearch(ctx context.Context, args []string, stdout io.Writer) error {
	var g globals
	var (
		indexes  []string
		sentence string
		standard bool
		or       bool
		topK     int
		docs     bool
	)
	fs := newFlagSet("search", &g)
	fs.StringArrayVar(&indexes, "index", nil, "index directory, repeat for shards")
	fs.StringVarP(&sentence, "query", "q", "", "query text")
	fs.BoolVar(&standard, "standard", false, "parse the query with the structured syntax")
	fs.BoolVar(&or, "or", false, "combine bare terms with OR instead of AND")
	fs.IntVarP(&topK, "topk", "k", 10, "number of results")
	fs.BoolVar(&docs, "docs", false, "include stored fields")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if len(indexes) == 0 {
		return fmt.Errorf("--index is required")
	}
	cfg, err := g.load()
	if err != nil {
		return err
	}
	svc, closeReaders, err := openService(indexes)
	if err != nil {
		return err
	}
	defer closeReaders()

	// several indexes are searched as shards of one collection
	if len(indexes) > 1 {
		strategy := coordinator.NaturalLanguage
		if standard {
			strategy = coordinator.Standard
		}
		coord := coordinator.New(svc, indexes, coordinator.WithConcurrency(cfg.Shards.Concurrency))
		resp, err := coord.Search(ctx, coordinator.Request{
			Sentence:      sentence,
			Strategy:      strategy,
			TopK:          topK,
			CombineWithOr: or,
			NeedDocument:  docs,
		})
		if err != nil {
			return err
		}
		return writeJSON(stdout, searchOutput{Results: resp.Results, Statistics: &resp.Statistics})
	}

	search := svc.BM25NaturalLanguageSearch
	if standard {
		search = svc.BM25StandardSearch
	}
	results, err := search(ctx, indexes[0], service.SearchParams{
		Sentence:      sentence,
		TopK:          topK,
		CombineWithOr: or,
		NeedDocument:  docs,
	})
	if err != nil {
		return err
	}
	if results == nil {
		results = []executor.RowIDWithScore{}
	}
	return writeJSON(stdout, searchOutput{Results: results})
}

func runDocFreq(ctx context.Context, args []string, stdout io.Writer) error {
	var g globals
	var index, sentence string
	fs := newFlagSet("docfreq", &g)
	fs.StringVar(&index, "index", "", "index directory")
	fs.StringVarP(&sentence, "query", "q", "", "text whose terms are looked up")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if index == "" {
		return fmt.Errorf("--index is required")
	}
	if _, err := g.load(); err != nil {
		return err
	}
	svc, closeReaders, err := openService([]string{index})
	if err != nil {
		return err
	}
	defer closeReaders()

	docs, err := svc.GetDocFreq(ctx, index, sentence)
	if err != nil {
		return err
	}
	return writeJSON(stdout, map[string]any{"docs_freq": docs})
}

func runTotals(ctx context.Context, args []string, stdout io.Writer) error {
	var g globals
	var index string
	fs := newFlagSet("totals", &g)
	fs.StringVar(&index, "index", "", "index directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if index == "" {
		return fmt.Errorf("--index is required")
	}
	if _, err := g.load(); err != nil {
		return err
	}
	svc, closeReaders, err := openService([]string{index})
	if err != nil {
		return err
	}
	defer closeReaders()

	docs, err := svc.GetTotalNumDocs(ctx, index)
	if err != nil {
		return err
	}
	tokens, err := svc.GetTotalNumTokens(ctx, index)
	if err != nil {
		return err
	}
	return writeJSON(stdout, stats.PerShardStatistics{
		DocsFreq:       []stats.DocWithFreq{},
		TotalNumDocs:   docs,
		TotalNumTokens: tokens,
	})
}
