package segment

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer/schema"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/codec"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/errors"
)

// Reader serves one immutable segment. The dictionary and document table
// are held in memory; postings are read from disk on demand.
type Reader struct {
	file        *os.File
	filePath    string
	header      SegmentHeader
	dict        []DictEntry
	docs        []index.StoredDoc
	totalTokens map[schema.FieldID]uint64
}

// OpenReader opens the segment at path and loads its dictionary and document
// table. Unreadable or corrupted files yield an engine error.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Engine(fmt.Errorf("opening segment file: %w", err))
	}
	r, err := load(f, path)
	if err != nil {
		f.Close()
		return nil, apperrors.Engine(fmt.Errorf("segment %s: %w", filepath.Base(path), err))
	}
	return r, nil
}

func load(f *os.File, path string) (*Reader, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}
	size := info.Size()
	if size < int64(HeaderSize+FooterSize) {
		return nil, fmt.Errorf("file is %d bytes, shorter than header and footer", size)
	}
	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		return nil, fmt.Errorf("reading segment header: %w", err)
	}
	header := decodeHeader(headerBytes)
	if header.Magic != MagicBytes {
		return nil, fmt.Errorf("invalid segment file: bad magic bytes %x", header.Magic)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported segment version %d", header.Version)
	}
	footer := make([]byte, FooterSize)
	if _, err := f.ReadAt(footer, size-int64(FooterSize)); err != nil {
		return nil, fmt.Errorf("reading segment footer: %w", err)
	}
	if err := header.validate(size, footer); err != nil {
		return nil, err
	}

	dictBytes := make([]byte, header.DictSize)
	if _, err := f.ReadAt(dictBytes, header.DictOffset); err != nil {
		return nil, fmt.Errorf("reading dictionary: %w", err)
	}
	if crc32.ChecksumIEEE(dictBytes) != binary.LittleEndian.Uint32(footer[0:4]) {
		return nil, fmt.Errorf("dictionary checksum mismatch")
	}
	var dict []DictEntry
	if err := codec.Unmarshal(dictBytes, &dict); err != nil {
		return nil, fmt.Errorf("parsing dictionary: %w", err)
	}
	if uint32(len(dict)) != header.TermCount {
		return nil, fmt.Errorf("dictionary has %d entries, header says %d", len(dict), header.TermCount)
	}
	for _, e := range dict {
		if e.PostOffset < 0 || e.PostLen < 0 || int64(e.PostLen) > header.PostSize || e.PostOffset > header.PostSize-int64(e.PostLen) {
			return nil, fmt.Errorf("postings of %q lie outside the postings region", e.Term)
		}
	}

	docsBytes := make([]byte, header.DocsSize)
	if _, err := f.ReadAt(docsBytes, header.DocsOffset); err != nil {
		return nil, fmt.Errorf("reading document table: %w", err)
	}
	if crc32.ChecksumIEEE(docsBytes) != binary.LittleEndian.Uint32(footer[4:8]) {
		return nil, fmt.Errorf("document table checksum mismatch")
	}
	var docs []index.StoredDoc
	if err := codec.Unmarshal(docsBytes, &docs); err != nil {
		return nil, fmt.Errorf("parsing document table: %w", err)
	}
	if uint32(len(docs)) != header.DocCount {
		return nil, fmt.Errorf("document table has %d entries, header says %d", len(docs), header.DocCount)
	}

	totals := make(map[schema.FieldID]uint64)
	for _, d := range docs {
		for field, n := range d.FieldLengths {
			totals[schema.FieldID(field)] += uint64(n)
		}
	}
	return &Reader{
		file:        f,
		filePath:    path,
		header:      header,
		dict:        dict,
		docs:        docs,
		totalTokens: totals,
	}, nil
}

// validate checks that the regions named by the header tile a file of size
// bytes exactly (header, postings, dictionary, documents, footer) and agree
// with the copy of the counts and offsets kept in the footer.
func (h SegmentHeader) validate(size int64, footer []byte) error {
	for _, n := range []int64{h.PostOffset, h.PostSize, h.DictOffset, h.DictSize, h.DocsOffset, h.DocsSize} {
		if n < 0 || n > size {
			return fmt.Errorf("header region %d out of range for a %d byte file", n, size)
		}
	}
	switch {
	case h.PostOffset != int64(HeaderSize),
		h.PostOffset+h.PostSize != h.DictOffset,
		h.DictOffset+h.DictSize != h.DocsOffset,
		h.DocsOffset+h.DocsSize+int64(FooterSize) != size:
		return fmt.Errorf("header regions do not match the %d byte file", size)
	}
	if binary.LittleEndian.Uint32(footer[8:12]) != h.DocCount ||
		binary.LittleEndian.Uint32(footer[12:16]) != h.TermCount ||
		int64(binary.LittleEndian.Uint64(footer[16:24])) != h.DictOffset ||
		int64(binary.LittleEndian.Uint64(footer[24:32])) != h.DocsOffset {
		return fmt.Errorf("header disagrees with footer")
	}
	return nil
}

func (r *Reader) lookup(key index.TermKey) (DictEntry, bool) {
	idx := sort.Search(len(r.dict), func(i int) bool {
		return !r.dict[i].key().Less(key)
	})
	if idx >= len(r.dict) || r.dict[idx].key() != key {
		return DictEntry{}, false
	}
	return r.dict[idx], true
}

// Postings reads the posting list of key from disk.
func (r *Reader) Postings(key index.TermKey) (index.PostingList, error) {
	entry, ok := r.lookup(key)
	if !ok {
		return nil, nil
	}
	postingsBytes := make([]byte, entry.PostLen)
	if _, err := r.file.ReadAt(postingsBytes, r.header.PostOffset+entry.PostOffset); err != nil {
		return nil, r.corrupt(fmt.Errorf("reading postings of %q: %w", key.Term, err))
	}
	if crc32.ChecksumIEEE(postingsBytes) != entry.PostCRC {
		return nil, r.corrupt(fmt.Errorf("postings checksum mismatch for %q", key.Term))
	}
	var postings index.PostingList
	if err := codec.Unmarshal(postingsBytes, &postings); err != nil {
		return nil, r.corrupt(fmt.Errorf("parsing postings of %q: %w", key.Term, err))
	}
	for _, p := range postings {
		if p.DocID >= r.header.DocCount {
			return nil, r.corrupt(fmt.Errorf("postings of %q name doc %d of %d", key.Term, p.DocID, r.header.DocCount))
		}
	}
	return postings, nil
}

func (r *Reader) corrupt(err error) error {
	return apperrors.Engine(fmt.Errorf("segment %s: %w", r.Name(), err))
}

// DocFreq returns the number of documents of this segment containing key.
func (r *Reader) DocFreq(key index.TermKey) uint64 {
	entry, ok := r.lookup(key)
	if !ok {
		return 0
	}
	return uint64(entry.DocFreq)
}

// TotalTokens returns the summed token count of field across the segment.
func (r *Reader) TotalTokens(field schema.FieldID) uint64 {
	return r.totalTokens[field]
}

// Doc returns the stored record of a document ordinal.
func (r *Reader) Doc(docID uint32) index.StoredDoc {
	return r.docs[docID]
}

func (r *Reader) Terms() int {
	return len(r.dict)
}

func (r *Reader) DocCount() uint32 {
	return r.header.DocCount
}

func (r *Reader) Name() string {
	return filepath.Base(r.filePath)
}

func (r *Reader) Close() error {
	return r.file.Close()
}
