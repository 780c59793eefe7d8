// Package ranker implements Okapi BM25. Collection statistics come from a
// StatisticsProvider so that a single partition can score with either its
// own counts or counts merged across every partition.
package ranker

import (
	"math"

	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer/schema"
)

const (
	K1 = 1.2
	B  = 0.75
)

// StatisticsProvider supplies the collection statistics BM25 needs.
type StatisticsProvider interface {
	DocFreq(field schema.FieldID, term string) uint64
	TotalNumDocs() uint64
	TotalNumTokens(field schema.FieldID) uint64
}

// Weight is the query-independent part of BM25 for one term (or one phrase)
// of a field.
type Weight struct {
	IDF          float64
	AvgDocLength float64
}

// NewWeight computes the weight of term in field.
func NewWeight(stats StatisticsProvider, field schema.FieldID, term string) Weight {
	return NewPhraseWeight(stats, field, []string{term})
}

// NewPhraseWeight computes the weight of a phrase as the sum of the IDFs of
// its terms.
func NewPhraseWeight(stats StatisticsProvider, field schema.FieldID, terms []string) Weight {
	totalDocs := stats.TotalNumDocs()
	var idf float64
	for _, term := range terms {
		idf += IDF(totalDocs, stats.DocFreq(field, term))
	}
	return Weight{
		IDF:          idf,
		AvgDocLength: AvgDocLength(stats.TotalNumTokens(field), totalDocs),
	}
}

// Score returns the BM25 contribution of a match with the given frequency in
// a document of docLength tokens.
func (w Weight) Score(termFreq, docLength uint32) float32 {
	return float32(w.IDF * TFNorm(float64(termFreq), float64(docLength), w.AvgDocLength))
}

// IDF is ln(1 + (N - n + 0.5) / (n + 0.5)). A document frequency above the
// document count is clamped so the result never goes negative.
func IDF(totalDocs, docFreq uint64) float64 {
	if docFreq > totalDocs {
		docFreq = totalDocs
	}
	numerator := float64(totalDocs) - float64(docFreq) + 0.5
	denominator := float64(docFreq) + 0.5
	return math.Log(1 + numerator/denominator)
}

func AvgDocLength(totalTokens, totalDocs uint64) float64 {
	if totalDocs == 0 {
		return 0
	}
	return float64(totalTokens) / float64(totalDocs)
}

// TFNorm is tf*(k1+1) / (tf + k1*(1 - b + b*dl/avgdl)).
func TFNorm(termFreq float64, docLength float64, avgDocLength float64) float64 {
	if avgDocLength == 0 {
		return 0
	}
	lengthRatio := docLength / avgDocLength
	denominator := termFreq + K1*(1-B+B*lengthRatio)
	return (termFreq * (K1 + 1)) / denominator
}

// ScoredDoc is one ranked hit. SegmentID and DocID locate the document in
// its index; Document is set only when stored values were requested.
type ScoredDoc struct {
	RowID     uint64            `json:"row_id"`
	Score     float32           `json:"score"`
	SegmentID uint32            `json:"segment_id"`
	DocID     uint32            `json:"doc_id"`
	Document  map[string]string `json:"document,omitempty"`
}

// Better reports whether a ranks before b: higher score first, then lower
// (segment, doc, row) for a deterministic order among equal scores.
func Better(a, b ScoredDoc) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.SegmentID != b.SegmentID {
		return a.SegmentID < b.SegmentID
	}
	if a.DocID != b.DocID {
		return a.DocID < b.DocID
	}
	return a.RowID < b.RowID
}
