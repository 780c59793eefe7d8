package indexer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer/schema"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/codec"
)

// MetaFile is the name of the schema file at the root of every index directory.
const MetaFile = "meta.cbor"

// ErrNoIndex is returned when a directory holds no meta file.
var ErrNoIndex = errors.New("no index in directory")

// Meta describes an index directory.
type Meta struct {
	Schema    *schema.Schema `cbor:"schema"`
	CreatedAt int64          `cbor:"created_at"`
}

// WriteMeta atomically replaces the meta file of dir.
func WriteMeta(dir string, m Meta) error {
	if m.Schema == nil {
		return fmt.Errorf("meta without schema")
	}
	data, err := codec.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding index meta: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}
	path := filepath.Join(dir, MetaFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing index meta: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming index meta: %w", err)
	}
	return nil
}

// ReadMeta loads the meta file of dir. A missing file yields ErrNoIndex.
func ReadMeta(dir string) (Meta, error) {
	data, err := os.ReadFile(filepath.Join(dir, MetaFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Meta{}, fmt.Errorf("%s: %w", dir, ErrNoIndex)
		}
		return Meta{}, fmt.Errorf("reading index meta: %w", err)
	}
	var m Meta
	if err := codec.Unmarshal(data, &m); err != nil {
		return Meta{}, fmt.Errorf("decoding index meta: %w", err)
	}
	if m.Schema == nil {
		return Meta{}, fmt.Errorf("index meta in %s has no schema", dir)
	}
	if err := m.Schema.Validate(); err != nil {
		return Meta{}, fmt.Errorf("index meta in %s: %w", dir, err)
	}
	return m, nil
}

// ListSegments returns the segment file names of dir in creation order.
func ListSegments(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading data directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), segment.Extension) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
