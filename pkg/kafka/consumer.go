// Package kafka wraps segmentio/kafka-go for the index lifecycle topics:
// documents to ingest and index-complete announcements. Producers publish
// JSON events; consumers hand each message to a MessageHandler and commit
// it once handled.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/config"
)

const (
	fetchBackoff   = time.Second
	handleAttempts = 3
)

// MessageHandler processes one message. Returning an error retries the
// message; handlers drop messages they can never process by returning nil.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

type Consumer struct {
	reader  *kafka.Reader
	handler MessageHandler
	backoff time.Duration
	logger  *slog.Logger
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*kafka.ReaderConfig)

// FromFirstOffset makes a new consumer group start at the oldest retained
// message instead of the newest.
func FromFirstOffset() ConsumerOption {
	return func(rc *kafka.ReaderConfig) { rc.StartOffset = kafka.FirstOffset }
}

func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler, opts ...ConsumerOption) *Consumer {
	rc := kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     time.Second,
		StartOffset: kafka.LastOffset,
	}
	for _, opt := range opts {
		opt(&rc)
	}
	return &Consumer{
		reader:  kafka.NewReader(rc),
		handler: handler,
		backoff: fetchBackoff,
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic, "group", cfg.ConsumerGroup),
	}
}

// Start consumes until ctx is cancelled. A message whose handler keeps
// failing is logged and committed so the partition does not stall.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				c.logger.Info("consumer stopping")
				return nil
			}
			c.logger.Error("failed to fetch message", "error", err)
			if !c.sleep(ctx) {
				return nil
			}
			continue
		}
		log := c.logger.With("partition", msg.Partition, "offset", msg.Offset, "key", string(msg.Key))
		if err := c.handle(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error("giving up on message", "attempts", handleAttempts, "error", err)
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			log.Error("failed to commit message", "error", err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	var err error
	for attempt := 1; attempt <= handleAttempts; attempt++ {
		if err = c.handler(ctx, msg.Key, msg.Value); err == nil {
			return nil
		}
		c.logger.Warn("message handler failed", "offset", msg.Offset, "attempt", attempt, "error", err)
		if attempt < handleAttempts && !c.sleep(ctx) {
			return ctx.Err()
		}
	}
	return err
}

func (c *Consumer) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(c.backoff):
		return true
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}
