package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer/ingest"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/searcher/reload"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/logger"
)

const announceTimeout = 10 * time.Second

// The indexer service appends documents from the ingest topic to existing
// shard indexes (created with `bm25ctl build`) and announces every flushed
// segment so searchers reload.
func main() {
	configPath := flag.StringP("config", "c", "", "path to config file")
	group := flag.String("group", "bm25-indexer", "kafka consumer group")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg.Kafka.ConsumerGroup = *group

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting indexer service", "shards", len(cfg.Shards.Paths))

	router, err := shard.OpenRouter(cfg.Shards.Paths, tokenizer.NewRegistry(), cfg.Index)
	if err != nil {
		slog.Error("failed to open shard indexes", "error", err)
		os.Exit(1)
	}
	defer router.Close()

	publisher := reload.NewPublisher(cfg.Kafka)
	defer publisher.Close()
	router.SetFlushHook(func(dir, segment string, docs int) {
		ctx, cancel := context.WithTimeout(context.Background(), announceTimeout)
		defer cancel()
		event := reload.IndexComplete{Path: dir, Segments: 1, Docs: uint64(docs), CompletedAt: time.Now()}
		if err := publisher.Announce(ctx, event); err != nil {
			slog.Error("failed to announce segment", "index", dir, "segment", segment, "error", err)
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	router.StartFlushLoops(ctx)

	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest, ingest.HandleMessage(router), kafka.FromFirstOffset())
	defer consumer.Close()

	slog.Info("indexer service ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.DocumentIngest,
		"group", cfg.Kafka.ConsumerGroup,
	)
	if err := consumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}

	slog.Info("flushing all shards before shutdown")
	if err := router.FlushAll(); err != nil {
		slog.Error("final flush failed", "error", err)
	}
	slog.Info("indexer service stopped")
}
