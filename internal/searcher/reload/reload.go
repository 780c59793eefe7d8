// Package reload keeps searchers current with index builds. Builders publish
// an IndexComplete event after flushing new segments; every searcher consumes
// the topic, reopens the affected reader and drops cached doc-freq entries
// of that index.
package reload

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/metrics"
)

// IndexComplete announces that the index at Path has new segments.
type IndexComplete struct {
	Path        string    `json:"path"`
	Segments    int       `json:"segments"`
	Docs        uint64    `json:"docs"`
	CompletedAt time.Time `json:"completed_at"`
}

// Readers is the reader cache being refreshed.
type Readers interface {
	Contains(path string) bool
	Reload(path string) error
}

// StatsInvalidator drops cached statistics of an index.
type StatsInvalidator interface {
	Invalidate(ctx context.Context, path string) error
}

// Handler returns the MessageHandler applying IndexComplete events.
// Readers that are not cached are left alone; their next Acquire opens the
// current segments anyway. statsCache may be nil.
func Handler(readers Readers, statsCache StatsInvalidator, m *metrics.Metrics) kafka.MessageHandler {
	base := logger.WithComponent("index-reloader")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[IndexComplete](value)
		if err != nil || event.Path == "" {
			base.Error("dropping malformed index-complete event", "key", string(key), "error", err)
			m.ObserveReload("invalid")
			return nil
		}
		log := base.With("index", event.Path, "segments", event.Segments, "docs", event.Docs)

		if statsCache != nil {
			if err := statsCache.Invalidate(ctx, event.Path); err != nil {
				log.Warn("doc-freq cache invalidation failed", "error", err)
			}
		}
		if !readers.Contains(event.Path) {
			log.Debug("index not open here, nothing to reload")
			m.ObserveReload("skipped")
			return nil
		}
		if err := readers.Reload(event.Path); err != nil {
			m.ObserveReload("error")
			return fmt.Errorf("reloading %s: %w", event.Path, err)
		}
		m.ObserveReload("reloaded")
		log.Info("index reloaded")
		return nil
	}
}

// Consumer runs Handler over the index-complete topic.
type Consumer struct {
	consumer *kafka.Consumer
}

// NewConsumer creates a Consumer. Every searcher must see every event, so
// the consumer group is suffixed with the host name.
func NewConsumer(cfg config.KafkaConfig, readers Readers, statsCache StatsInvalidator, m *metrics.Metrics) *Consumer {
	if host, err := os.Hostname(); err == nil {
		cfg.ConsumerGroup = cfg.ConsumerGroup + "-" + host
	}
	return &Consumer{
		consumer: kafka.NewConsumer(cfg, cfg.Topics.IndexComplete, Handler(readers, statsCache, m)),
	}
}

// Start consumes until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

func (c *Consumer) Close() error {
	return c.consumer.Close()
}

// Publisher announces finished index builds.
type Publisher struct {
	producer *kafka.Producer
}

func NewPublisher(cfg config.KafkaConfig) *Publisher {
	return &Publisher{producer: kafka.NewProducer(cfg, cfg.Topics.IndexComplete)}
}

// Announce publishes one event per index, keyed by path.
func (p *Publisher) Announce(ctx context.Context, events ...IndexComplete) error {
	batch := make([]kafka.Event, len(events))
	for i, e := range events {
		batch[i] = kafka.Event{Key: e.Path, Value: e}
	}
	return p.producer.Publish(ctx, batch...)
}

func (p *Publisher) Close() error {
	return p.producer.Close()
}
