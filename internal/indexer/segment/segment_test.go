package segment

import (
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer/schema"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/errors"
)

func buildSegment(t *testing.T, dir string) string {
	t.Helper()
	m := index.NewMemoryIndex()
	body := schema.FieldID(0)
	texts := []string{"distributed search engine", "search ranking with bm25", "caching layer"}
	for i, text := range texts {
		m.AddDocument(uint64(10+i), 1, map[schema.FieldID][]tokenizer.Token{
			body: tokenizer.Tokenize(text),
		}, map[string]string{"body": text})
	}
	entries, docs := m.Snapshot()
	name, err := NewWriter(dir).Write(entries, docs)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	return filepath.Join(dir, name)
}

func TestWriteAndRead(t *testing.T) {
	path := buildSegment(t, t.TempDir())
	r, err := OpenReader(path)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()

	if r.DocCount() != 3 {
		t.Fatalf("DocCount() = %d, want 3", r.DocCount())
	}
	key := index.TermKey{Field: 0, Term: "search"}
	if df := r.DocFreq(key); df != 2 {
		t.Errorf("DocFreq(search) = %d, want 2", df)
	}
	postings, err := r.Postings(key)
	if err != nil {
		t.Fatalf("Postings: %v", err)
	}
	if len(postings) != 2 || postings[0].DocID != 0 || postings[1].DocID != 1 {
		t.Errorf("postings = %+v", postings)
	}
	missing, err := r.Postings(index.TermKey{Field: 0, Term: "absent"})
	if err != nil || missing != nil {
		t.Errorf("Postings(absent) = %v, %v", missing, err)
	}
	if got := r.Doc(1); got.RowID != 11 || got.Values["body"] != "search ranking with bm25" {
		t.Errorf("Doc(1) = %+v", got)
	}
	// distribut search engine, search rank bm25, cach lay
	if got := r.TotalTokens(0); got != 8 {
		t.Errorf("TotalTokens(0) = %d, want 8", got)
	}
}

func TestOpenReaderDetectsCorruption(t *testing.T) {
	path := buildSegment(t, t.TempDir())
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	r, err := OpenReader(path)
	if err != nil {
		t.Fatal(err)
	}
	dictOffset := r.header.DictOffset
	r.Close()

	data[dictOffset+2] ^= 0xff
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenReader(path); err == nil {
		t.Fatal("expected checksum error for corrupted dictionary")
	}

	bad := filepath.Join(t.TempDir(), "bad.spdx")
	if err := os.WriteFile(bad, make([]byte, HeaderSize+FooterSize), 0644); err == nil {
		if _, err := OpenReader(bad); err == nil {
			t.Fatal("expected bad magic error")
		}
	}
}

func TestWriteRejectsEmptySegment(t *testing.T) {
	if _, err := NewWriter(t.TempDir()).Write(nil, nil); err == nil {
		t.Fatal("expected error for empty segment")
	}
}

func TestOpenReaderRejectsDamagedHeader(t *testing.T) {
	path := buildSegment(t, t.TempDir())
	clean, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	maxInt := uint64(math.MaxInt64)
	tests := []struct {
		name  string
		at    int
		value uint64
	}{
		{"huge dictionary size", 40, math.MaxUint64},
		{"max int dictionary size", 40, maxInt},
		{"huge document table size", 56, maxInt},
		{"negative postings offset", 16, math.MaxUint64},
		{"dictionary offset past the file", 32, uint64(len(clean)) * 2},
		{"shifted document table", 48, 0},
		{"postings size off by one", 24, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := append([]byte(nil), clean...)
			binary.LittleEndian.PutUint64(data[tt.at:tt.at+8], tt.value)
			if err := os.WriteFile(path, data, 0644); err != nil {
				t.Fatal(err)
			}
			r, err := OpenReader(path)
			if err == nil {
				r.Close()
				t.Fatal("expected an error for a damaged header")
			}
			if !errors.Is(err, apperrors.ErrEngine) {
				t.Errorf("err = %v, want ErrEngine", err)
			}
		})
	}

	short := filepath.Join(t.TempDir(), "short.spdx")
	if err := os.WriteFile(short, clean[:HeaderSize], 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenReader(short); !errors.Is(err, apperrors.ErrEngine) {
		t.Errorf("truncated segment err = %v, want ErrEngine", err)
	}
}

func TestPostingsDetectEveryFlippedByte(t *testing.T) {
	path := buildSegment(t, t.TempDir())
	clean, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	r, err := OpenReader(path)
	if err != nil {
		t.Fatal(err)
	}
	header, dict := r.header, r.dict
	r.Close()

	for off := header.PostOffset; off < header.PostOffset+header.PostSize; off++ {
		data := append([]byte(nil), clean...)
		data[off] ^= 0x5a
		if err := os.WriteFile(path, data, 0644); err != nil {
			t.Fatal(err)
		}
		r, err := OpenReader(path)
		if err != nil {
			t.Fatalf("byte %d: postings damage must not fail open: %v", off, err)
		}
		rel := off - header.PostOffset
		for _, e := range dict {
			if rel < e.PostOffset || rel >= e.PostOffset+int64(e.PostLen) {
				continue
			}
			if _, err := r.Postings(e.key()); !errors.Is(err, apperrors.ErrEngine) {
				t.Errorf("byte %d in postings of %q: err = %v, want ErrEngine", off, e.Term, err)
			}
		}
		r.Close()
	}
}
