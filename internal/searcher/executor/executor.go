// Package executor runs query plans against a reader snapshot. Each segment
// is evaluated into a roaring bitmap of matching documents plus their BM25
// scores; hits that pass the alive-row filter are collected into a top-k
// heap.
package executor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/searcher/reader"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/logger"
)

// RowIDWithScore is one ranked search result.
type RowIDWithScore = ranker.ScoredDoc

// Execute builds the strategy's plan against snap and returns at most TopK
// hits, best first. Statistics come from provider; a nil provider means the
// snapshot's own statistics. The snapshot is only read.
func Execute(ctx context.Context, strategy query.Strategy, snap *reader.Snapshot, provider ranker.StatisticsProvider) ([]RowIDWithScore, error) {
	start := time.Now()
	params := strategy.Params()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if provider == nil {
		provider = snap
	}
	plan, err := strategy.Build(snap)
	if err != nil {
		return nil, apperrors.IndexSearcher(fmt.Errorf("building %s query: %w", strategy.Name(), err))
	}

	var alive *roaring.Bitmap
	if params.ApplyFilter {
		alive = AliveRows(params.AliveBitmap)
	}
	collector := merger.NewCollector(params.TopK)
	for ord, seg := range snap.Segments() {
		e := &segmentEval{seg: seg, stats: provider}
		m, err := e.eval(plan)
		if errors.Is(err, apperrors.ErrEngine) {
			return nil, err
		}
		if err != nil {
			return nil, apperrors.IndexSearcher(fmt.Errorf("segment %s: %w", seg.Name(), err))
		}
		it := m.docs.Iterator()
		for it.HasNext() {
			docID := it.Next()
			rowID := seg.Doc(docID).RowID
			if alive != nil && (rowID > math.MaxUint32 || !alive.Contains(uint32(rowID))) {
				continue
			}
			collector.Offer(RowIDWithScore{
				RowID:     rowID,
				Score:     m.scores[docID],
				SegmentID: uint32(ord),
				DocID:     docID,
			})
		}
	}

	results := collector.Results()
	if params.NeedDocument {
		segments := snap.Segments()
		for i := range results {
			values := segments[results[i].SegmentID].Doc(results[i].DocID).Values
			doc := make(map[string]string, len(values))
			for k, v := range values {
				doc[k] = v
			}
			results[i].Document = doc
		}
	}
	logger.FromContext(ctx).Debug("query executed",
		"component", "query-executor",
		"strategy", strategy.Name(),
		"plan", plan.String(),
		"matches", collector.Seen(),
		"results", len(results),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return results, nil
}

// AliveRows decodes a byte-packed row filter: row r is alive when bit r%8
// (least significant first) of byte r/8 is set.
func AliveRows(bitmap []byte) *roaring.Bitmap {
	rows := roaring.New()
	for i, b := range bitmap {
		if b == 0 {
			continue
		}
		base := uint32(i) * 8
		for bit := uint32(0); bit < 8; bit++ {
			if b&(1<<bit) != 0 {
				rows.Add(base + bit)
			}
		}
	}
	return rows
}

type matches struct {
	docs   *roaring.Bitmap
	scores map[uint32]float32
}

func noMatches() matches {
	return matches{docs: roaring.New(), scores: map[uint32]float32{}}
}

type segmentEval struct {
	seg   *segment.Reader
	stats ranker.StatisticsProvider
}

func (e *segmentEval) eval(q query.Query) (matches, error) {
	switch q := q.(type) {
	case *query.TermQuery:
		return e.term(q)
	case *query.PhraseQuery:
		return e.phrase(q)
	case *query.BooleanQuery:
		return e.boolean(q)
	default:
		return matches{}, fmt.Errorf("unsupported query node %T", q)
	}
}

func (e *segmentEval) term(q *query.TermQuery) (matches, error) {
	postings, err := e.seg.Postings(index.TermKey{Field: q.Field, Term: q.Text})
	if err != nil {
		return matches{}, err
	}
	m := matches{docs: roaring.New(), scores: make(map[uint32]float32, len(postings))}
	if len(postings) == 0 {
		return m, nil
	}
	w := ranker.NewWeight(e.stats, q.Field, q.Text)
	for _, p := range postings {
		m.docs.Add(p.DocID)
		m.scores[p.DocID] = w.Score(p.Frequency, e.seg.Doc(p.DocID).FieldLength(q.Field))
	}
	return m, nil
}

func (e *segmentEval) phrase(q *query.PhraseQuery) (matches, error) {
	lists := make([]map[uint32][]uint32, len(q.Terms))
	var candidates *roaring.Bitmap
	for i, term := range q.Terms {
		postings, err := e.seg.Postings(index.TermKey{Field: q.Field, Term: term})
		if err != nil {
			return matches{}, err
		}
		if len(postings) == 0 {
			return noMatches(), nil
		}
		docs := roaring.New()
		lists[i] = make(map[uint32][]uint32, len(postings))
		for _, p := range postings {
			docs.Add(p.DocID)
			lists[i][p.DocID] = p.Positions
		}
		if candidates == nil {
			candidates = docs
		} else {
			candidates.And(docs)
		}
	}

	m := noMatches()
	w := ranker.NewPhraseWeight(e.stats, q.Field, q.Terms)
	it := candidates.Iterator()
	for it.HasNext() {
		docID := it.Next()
		freq := phraseFreq(lists, q.Offsets, docID)
		if freq == 0 {
			continue
		}
		m.docs.Add(docID)
		m.scores[docID] = w.Score(freq, e.seg.Doc(docID).FieldLength(q.Field))
	}
	return m, nil
}

// phraseFreq counts the start positions at which every term of the phrase
// occurs at its relative offset.
func phraseFreq(lists []map[uint32][]uint32, offsets []uint32, docID uint32) uint32 {
	sets := make([]map[uint32]struct{}, len(lists))
	for i := 1; i < len(lists); i++ {
		sets[i] = make(map[uint32]struct{}, len(lists[i][docID]))
		for _, pos := range lists[i][docID] {
			sets[i][pos] = struct{}{}
		}
	}
	var freq uint32
	for _, start := range lists[0][docID] {
		if start < offsets[0] {
			continue
		}
		base := start - offsets[0]
		found := true
		for i := 1; i < len(lists); i++ {
			if _, ok := sets[i][base+offsets[i]]; !ok {
				found = false
				break
			}
		}
		if found {
			freq++
		}
	}
	return freq
}

func (e *segmentEval) boolean(q *query.BooleanQuery) (matches, error) {
	var must, should, mustNot []matches
	for _, c := range q.Clauses {
		m, err := e.eval(c.Query)
		if err != nil {
			return matches{}, err
		}
		switch c.Occur {
		case query.Must:
			must = append(must, m)
		case query.Should:
			should = append(should, m)
		case query.MustNot:
			mustNot = append(mustNot, m)
		}
	}

	var docs *roaring.Bitmap
	switch {
	case len(must) > 0:
		sets := make([]*roaring.Bitmap, len(must))
		for i, m := range must {
			sets[i] = m.docs
		}
		docs = roaring.FastAnd(sets...)
	case len(should) > 0:
		sets := make([]*roaring.Bitmap, len(should))
		for i, m := range should {
			sets[i] = m.docs
		}
		docs = roaring.FastOr(sets...)
	default:
		return noMatches(), nil
	}
	for _, m := range mustNot {
		docs.AndNot(m.docs)
	}

	out := matches{docs: docs, scores: make(map[uint32]float32, docs.GetCardinality())}
	it := docs.Iterator()
	for it.HasNext() {
		docID := it.Next()
		var score float32
		for _, m := range must {
			score += m.scores[docID]
		}
		for _, m := range should {
			score += m.scores[docID]
		}
		out.scores[docID] = score
	}
	return out, nil
}
