package cache

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer/schema"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/searcher/reader"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/config"
)

func buildIndex(t *testing.T, dir string, docs ...string) *indexer.Engine {
	t.Helper()
	s, err := schema.NewBuilder().
		AddTextField("body", schema.TextOptions{Indexed: true, Tokenizer: tokenizer.AnalyzerWhitespace}).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	e, err := indexer.Create(dir, s, tokenizer.NewRegistry(), config.IndexConfig{})
	if err != nil {
		t.Fatal(err)
	}
	for i, d := range docs {
		if err := e.IndexDocument(uint64(i), map[string]string{"body": d}); err != nil {
			t.Fatal(err)
		}
	}
	if err := e.Flush(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func TestReaderCacheAcquire(t *testing.T) {
	dir := t.TempDir()
	buildIndex(t, dir, "red apple", "green apple")
	c, err := NewReaderCache(4, tokenizer.NewRegistry(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	ctx := context.Background()
	first, err := c.Acquire(ctx, dir)
	if err != nil {
		t.Fatal(err)
	}
	defer first.Release()
	// an unclean spelling of the same path shares the cached reader
	second, err := c.Acquire(ctx, dir+string(filepath.Separator)+".")
	if err != nil {
		t.Fatal(err)
	}
	defer second.Release()

	if c.Len() != 1 {
		t.Errorf("cached readers = %d, want 1", c.Len())
	}
	if first == second {
		t.Error("each acquire must return its own snapshot")
	}
	if got := second.TotalNumDocs(); got != 2 {
		t.Errorf("TotalNumDocs = %d, want 2", got)
	}
}

func TestReaderCacheEvictionKeepsSnapshots(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	buildIndex(t, a, "alpha beta")
	buildIndex(t, b, "gamma")
	c, err := NewReaderCache(1, tokenizer.NewRegistry(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	ctx := context.Background()
	snapA, err := c.Acquire(ctx, a)
	if err != nil {
		t.Fatal(err)
	}
	defer snapA.Release()
	snapB, err := c.Acquire(ctx, b)
	if err != nil {
		t.Fatal(err)
	}
	defer snapB.Release()

	if paths := c.Paths(); len(paths) != 1 || paths[0] != b {
		t.Fatalf("cached paths = %v, want [%s]", paths, b)
	}
	if got := snapA.DocFreq(0, "beta"); got != 1 {
		t.Errorf("evicted reader snapshot DocFreq = %d, want 1", got)
	}
}

func TestReaderCacheReload(t *testing.T) {
	dir := t.TempDir()
	e := buildIndex(t, dir, "one")
	c, err := NewReaderCache(2, tokenizer.NewRegistry(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	ctx := context.Background()
	before, err := c.Acquire(ctx, dir)
	if err != nil {
		t.Fatal(err)
	}
	defer before.Release()

	if err := e.IndexDocument(1, map[string]string{"body": "two"}); err != nil {
		t.Fatal(err)
	}
	if err := e.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := c.Reload(dir); err != nil {
		t.Fatal(err)
	}
	after, err := c.Acquire(ctx, dir)
	if err != nil {
		t.Fatal(err)
	}
	defer after.Release()

	if before.TotalNumDocs() != 1 || after.TotalNumDocs() != 2 {
		t.Errorf("docs before=%d after=%d, want 1 and 2", before.TotalNumDocs(), after.TotalNumDocs())
	}
	if c.Reload(t.TempDir()) == nil {
		t.Error("reloading a directory without an index succeeded")
	}
}

func TestReaderCacheMissingIndex(t *testing.T) {
	c, err := NewReaderCache(2, tokenizer.NewRegistry(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Acquire(context.Background(), t.TempDir()); err == nil {
		t.Fatal("expected error for a directory without an index")
	}
	if c.Len() != 0 {
		t.Errorf("failed open was cached")
	}
}

func TestReaderCacheConcurrentAcquire(t *testing.T) {
	dir := t.TempDir()
	buildIndex(t, dir, "shared index")
	c, err := NewReaderCache(1, tokenizer.NewRegistry(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := c.Acquire(context.Background(), dir)
			if err != nil {
				errs <- err
				return
			}
			defer snap.Release()
			if snap.DocFreq(0, "shared") != 1 {
				t.Errorf("unexpected doc freq")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestReaderCacheReloadRacingAcquireClosesEveryReader(t *testing.T) {
	dir := t.TempDir()
	e := buildIndex(t, dir, "first")
	c, err := NewReaderCache(2, tokenizer.NewRegistry(), nil)
	if err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var opened []*reader.Reader
	c.open = func(path string, registry *tokenizer.Registry) (*reader.Reader, error) {
		r, err := reader.Open(path, registry)
		if err == nil {
			mu.Lock()
			opened = append(opened, r)
			mu.Unlock()
		}
		return r, err
	}

	ctx := context.Background()
	for round := 0; round < 200; round++ {
		if round%50 == 49 {
			if err := e.IndexDocument(uint64(round), map[string]string{"body": "more"}); err != nil {
				t.Fatal(err)
			}
			if err := e.Flush(); err != nil {
				t.Fatal(err)
			}
		}
		c.Remove(dir)
		start := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			snap, err := c.Acquire(ctx, dir)
			if err != nil {
				t.Error(err)
				return
			}
			snap.Release()
		}()
		go func() {
			defer wg.Done()
			<-start
			if err := c.Reload(dir); err != nil {
				t.Error(err)
			}
		}()
		close(start)
		wg.Wait()

		snap, err := c.Acquire(ctx, dir)
		if err != nil {
			t.Fatal(err)
		}
		want := uint64(1 + (round+1)/50)
		if got := snap.TotalNumDocs(); got != want {
			t.Fatalf("round %d: cached reader sees %d docs, want %d", round, got, want)
		}
		snap.Release()
	}

	c.Close()
	for i, r := range opened {
		snap, err := r.Snapshot()
		if err == nil {
			snap.Release()
			t.Errorf("reader %d of %d was never closed", i, len(opened))
			continue
		}
		if !errors.Is(err, reader.ErrClosed) {
			t.Errorf("reader %d: %v", i, err)
		}
	}
}
