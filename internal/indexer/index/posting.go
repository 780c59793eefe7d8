package index

import "github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer/schema"

// Posting records one document's occurrences of a term. DocID is the
// document ordinal inside its segment.
type Posting struct {
	DocID     uint32   `cbor:"d"`
	Frequency uint32   `cbor:"f"`
	Positions []uint32 `cbor:"p"`
}

type PostingList []Posting

// TermKey identifies a term within a field.
type TermKey struct {
	Field schema.FieldID
	Term  string
}

// Less orders keys by field, then term.
func (k TermKey) Less(o TermKey) bool {
	if k.Field != o.Field {
		return k.Field < o.Field
	}
	return k.Term < o.Term
}

type TermEntry struct {
	Key      TermKey
	Postings PostingList
}

// StoredDoc is the per-document record of a segment: the caller's row id,
// the token count of every field (indexed by field id) and the stored
// field values.
type StoredDoc struct {
	RowID        uint64            `cbor:"r"`
	FieldLengths []uint32          `cbor:"l"`
	Values       map[string]string `cbor:"v,omitempty"`
}

// FieldLength returns the token count of field in this document.
func (d StoredDoc) FieldLength(field schema.FieldID) uint32 {
	if int(field) >= len(d.FieldLengths) {
		return 0
	}
	return d.FieldLengths[field]
}
