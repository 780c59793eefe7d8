package index

import (
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer/schema"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer/tokenizer"
)

// MemoryIndex buffers analyzed documents until they are flushed into a
// segment.
type MemoryIndex struct {
	mu    sync.RWMutex
	index map[TermKey]map[uint32]*Posting
	docs  []StoredDoc
	size  int64
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		index: make(map[TermKey]map[uint32]*Posting),
	}
}

// AddDocument appends a document. tokens holds the analyzed tokens of every
// indexed field; numFields sizes the per-field length table.
func (m *MemoryIndex) AddDocument(rowID uint64, numFields int, tokens map[schema.FieldID][]tokenizer.Token, stored map[string]string) uint32 {
	termData := make(map[TermKey]*Posting)
	lengths := make([]uint32, numFields)
	for field, fieldTokens := range tokens {
		lengths[field] = uint32(len(fieldTokens))
		for _, token := range fieldTokens {
			key := TermKey{Field: field, Term: token.Text}
			p, exists := termData[key]
			if !exists {
				p = &Posting{Positions: make([]uint32, 0, 4)}
				termData[key] = p
			}
			p.Frequency++
			p.Positions = append(p.Positions, uint32(token.Position))
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	docID := uint32(len(m.docs))
	for key, posting := range termData {
		posting.DocID = docID
		if _, exists := m.index[key]; !exists {
			m.index[key] = make(map[uint32]*Posting)
		}
		m.index[key][docID] = posting
		m.size += int64(len(key.Term) + len(posting.Positions)*4 + 64)
	}
	m.docs = append(m.docs, StoredDoc{RowID: rowID, FieldLengths: lengths, Values: stored})
	for name, value := range stored {
		m.size += int64(len(name) + len(value))
	}
	m.size += int64(8 + 4*numFields)
	return docID
}

// Search returns the postings of one term, ordered by doc id.
func (m *MemoryIndex) Search(key TermKey) PostingList {
	m.mu.RLock()
	defer m.mu.RUnlock()
	docs, exists := m.index[key]
	if !exists {
		return nil
	}
	result := make(PostingList, 0, len(docs))
	for _, posting := range docs {
		result = append(result, *posting)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].DocID < result[j].DocID
	})
	return result
}

// Snapshot returns the buffered terms ordered by (field, term) and the
// document table ordered by doc id.
func (m *MemoryIndex) Snapshot() ([]TermEntry, []StoredDoc) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// Drain returns what Snapshot would and resets the buffer in one step, so
// documents added concurrently land in the next flush.
func (m *MemoryIndex) Drain() ([]TermEntry, []StoredDoc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries, docs := m.snapshotLocked()
	m.resetLocked()
	return entries, docs
}

func (m *MemoryIndex) snapshotLocked() ([]TermEntry, []StoredDoc) {
	entries := make([]TermEntry, 0, len(m.index))
	for key, docs := range m.index {
		postings := make(PostingList, 0, len(docs))
		for _, posting := range docs {
			postings = append(postings, *posting)
		}
		sort.Slice(postings, func(i, j int) bool {
			return postings[i].DocID < postings[j].DocID
		})
		entries = append(entries, TermEntry{
			Key:      key,
			Postings: postings,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key.Less(entries[j].Key)
	})
	docs := make([]StoredDoc, len(m.docs))
	copy(docs, m.docs)
	return entries, docs
}

func (m *MemoryIndex) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

func (m *MemoryIndex) DocCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

func (m *MemoryIndex) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
}

func (m *MemoryIndex) resetLocked() {
	m.index = make(map[TermKey]map[uint32]*Posting)
	m.docs = nil
	m.size = 0
}
