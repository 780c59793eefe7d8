// Package ingest feeds documents into an index builder. Documents arrive
// either as JSON lines from a file or as Kafka messages carrying the same
// JSON object.
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/kafka"
)

const maxLineBytes = 8 << 20

// Document is one row to index. Fields is keyed by schema field name.
type Document struct {
	RowID  uint64            `json:"row_id"`
	Fields map[string]string `json:"fields"`
}

// Indexer accepts documents. *indexer.Engine and *shard.Router implement it.
type Indexer interface {
	IndexDocument(rowID uint64, values map[string]string) error
}

// LoadJSONL indexes every line of r and returns the number of documents
// indexed. Blank lines are skipped; a malformed line stops the load.
func LoadJSONL(ctx context.Context, r io.Reader, idx Indexer) (uint64, error) {
	logger := slog.Default().With("component", "ingest")
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64<<10), maxLineBytes)

	var count uint64
	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return count, err
		}
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return count, fmt.Errorf("line %d: decoding document: %w", line, err)
		}
		if err := idx.IndexDocument(doc.RowID, doc.Fields); err != nil {
			return count, fmt.Errorf("line %d: %w", line, err)
		}
		count++
		if count%10000 == 0 {
			logger.Info("documents indexed", "count", count)
		}
	}
	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("reading documents: %w", err)
	}
	return count, nil
}

// HandleMessage returns a Kafka MessageHandler indexing one Document per
// message. Undecodable messages are logged and dropped.
func HandleMessage(idx Indexer) kafka.MessageHandler {
	logger := slog.Default().With("component", "ingest")
	return func(ctx context.Context, key []byte, value []byte) error {
		doc, err := kafka.DecodeJSON[Document](value)
		if err != nil {
			logger.Error("failed to decode document",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		if err := idx.IndexDocument(doc.RowID, doc.Fields); err != nil {
			return fmt.Errorf("indexing row %d: %w", doc.RowID, err)
		}
		logger.Debug("document indexed", "row_id", doc.RowID)
		return nil
	}
}
