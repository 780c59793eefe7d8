package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer/ingest"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer/schema"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/searcher/reload"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/config"
)

type buildResult struct {
	Paths []string `json:"paths"`
	Docs  uint64   `json:"docs"`
}

// builder is what build writes into: a single engine or a shard router.
type builder interface {
	ingest.Indexer
	Close() error
}

func runBuild(ctx context.Context, args []string, stdout io.Writer) error {
	var g globals
	var (
		out      string
		input    string
		shards   int
		fields   []string
		stored   []string
		announce bool
	)
	fs := newFlagSet("build", &g)
	fs.StringVarP(&out, "out", "o", "", "index directory (shards go to <out>/shard-<i>)")
	fs.StringVarP(&input, "input", "i", "-", "JSON lines file of {row_id, fields}, - for stdin")
	fs.IntVar(&shards, "shards", 0, "number of shards, 0 builds one unsharded index")
	fs.StringArrayVarP(&fields, "field", "f", nil, "indexed and stored field as name=analyzer, repeatable")
	fs.StringArrayVar(&stored, "store", nil, "stored-only field, repeatable")
	fs.BoolVar(&announce, "announce", false, "publish index-complete events to kafka")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if out == "" {
		return fmt.Errorf("--out is required")
	}
	cfg, err := g.load()
	if err != nil {
		return err
	}
	s, err := buildSchema(fields, stored)
	if err != nil {
		return err
	}

	var src io.Reader = os.Stdin
	if input != "-" {
		f, err := os.Open(input)
		if err != nil {
			return err
		}
		defer f.Close()
		src = f
	}

	registry := tokenizer.NewRegistry()
	indexCfg := cfg.Index
	indexCfg.DataDir = out

	var b builder
	var paths []string
	if shards > 0 {
		router, err := shard.NewRouter(indexCfg, s, registry, shards)
		if err != nil {
			return err
		}
		b, paths = router, router.Paths()
	} else {
		engine, err := indexer.Create(out, s, registry, indexCfg)
		if err != nil {
			return err
		}
		b, paths = engine, []string{engine.Dir()}
	}

	docs, err := ingest.LoadJSONL(ctx, src, b)
	if closeErr := b.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}

	if announce {
		if err := announceBuild(ctx, cfg.Kafka, paths, docs); err != nil {
			return err
		}
	}
	return writeJSON(stdout, buildResult{Paths: paths, Docs: docs})
}

// buildSchema declares the indexed fields first, in flag order, followed by
// the stored-only fields. The first indexed field is the one searched.
func buildSchema(fields, stored []string) (*schema.Schema, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("at least one --field is required")
	}
	b := schema.NewBuilder()
	for _, field := range fields {
		name, analyzer, ok := strings.Cut(field, "=")
		if !ok {
			analyzer = tokenizer.AnalyzerDefault
		}
		if analyzer == "" {
			return nil, fmt.Errorf("field %q: empty analyzer", name)
		}
		b.AddTextField(name, schema.TextOptions{Indexed: true, Stored: true, Tokenizer: analyzer})
	}
	for _, name := range stored {
		b.AddTextField(name, schema.TextOptions{Stored: true})
	}
	return b.Build()
}

func announceBuild(ctx context.Context, kafkaCfg config.KafkaConfig, paths []string, docs uint64) error {
	publisher := reload.NewPublisher(kafkaCfg)
	defer publisher.Close()

	now := time.Now()
	events := make([]reload.IndexComplete, 0, len(paths))
	for _, path := range paths {
		segments, err := indexer.ListSegments(path)
		if err != nil {
			return err
		}
		events = append(events, reload.IndexComplete{
			Path:        path,
			Segments:    len(segments),
			Docs:        docs,
			CompletedAt: now,
		})
	}
	if err := publisher.Announce(ctx, events...); err != nil {
		return fmt.Errorf("announcing build: %w", err)
	}
	return nil
}
