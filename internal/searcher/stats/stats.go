// Package stats merges term statistics gathered from independently built
// index partitions into the global view BM25 needs to rank consistently
// across all of them.
package stats

import (
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer/schema"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/searcher/ranker"
)

// Term identifies a term within a field. It is comparable and used directly
// as a map key.
type Term struct {
	Field schema.FieldID
	Text  string
}

// DocWithFreq is the document frequency of one term.
type DocWithFreq struct {
	Term    string         `json:"term"`
	FieldID schema.FieldID `json:"field_id"`
	DocFreq uint64         `json:"doc_freq"`
}

// PerShardStatistics is the caller-assembled statistics of every partition
// taking part in a query. An empty DocsFreq means no distributed statistics.
type PerShardStatistics struct {
	DocsFreq       []DocWithFreq `json:"docs_freq"`
	TotalNumTokens uint64        `json:"total_num_tokens"`
	TotalNumDocs   uint64        `json:"total_num_docs"`
}

// Empty reports whether the statistics carry no term frequencies.
func (p PerShardStatistics) Empty() bool {
	return len(p.DocsFreq) == 0
}

// GlobalStatistics is the merged view consumed by the ranker. When built
// from non-empty input, TotalTokensByField holds exactly one field.
type GlobalStatistics struct {
	DocFreqByTerm      map[Term]uint64
	TotalTokensByField map[schema.FieldID]uint64
	TotalNumDocs       uint64
}

// ActiveField returns the field the statistics apply to: the field of the
// first entry. Distributed scoring covers a single text field; entries of
// other fields are reported and their token totals are not represented.
func ActiveField(docs []DocWithFreq) (schema.FieldID, bool) {
	if len(docs) == 0 {
		return 0, false
	}
	field := docs[0].FieldID
	for _, d := range docs[1:] {
		if d.FieldID != field {
			slog.Warn("shard statistics span more than one field, using the first",
				"component", "stats",
				"active_field", field,
				"other_field", d.FieldID,
			)
			break
		}
	}
	return field, true
}

// Merge folds shard statistics into a GlobalStatistics. Repeated
// (field, term) entries are summed, the token total is attributed to the
// active field and the document count is copied unchanged.
func Merge(p PerShardStatistics) *GlobalStatistics {
	g := &GlobalStatistics{
		DocFreqByTerm:      make(map[Term]uint64, len(p.DocsFreq)),
		TotalTokensByField: make(map[schema.FieldID]uint64, 1),
		TotalNumDocs:       p.TotalNumDocs,
	}
	for _, d := range p.DocsFreq {
		g.DocFreqByTerm[Term{Field: d.FieldID, Text: d.Term}] += d.DocFreq
	}
	if field, ok := ActiveField(p.DocsFreq); ok {
		g.TotalTokensByField[field] = p.TotalNumTokens
	}
	return g
}

// Sum combines the statistics reported by individual partitions. Term
// entries are concatenated; Merge folds the duplicates.
func Sum(parts ...PerShardStatistics) PerShardStatistics {
	var out PerShardStatistics
	for _, p := range parts {
		out.DocsFreq = append(out.DocsFreq, p.DocsFreq...)
		out.TotalNumTokens += p.TotalNumTokens
		out.TotalNumDocs += p.TotalNumDocs
	}
	return out
}

// Over layers the global statistics on top of local ones. Term and field
// lookups the global statistics do not cover fall back to local; the
// document count never does.
func (g *GlobalStatistics) Over(local ranker.StatisticsProvider) ranker.StatisticsProvider {
	return layered{global: g, local: local}
}

type layered struct {
	global *GlobalStatistics
	local  ranker.StatisticsProvider
}

func (l layered) DocFreq(field schema.FieldID, term string) uint64 {
	if df, ok := l.global.DocFreqByTerm[Term{Field: field, Text: term}]; ok {
		return df
	}
	return l.local.DocFreq(field, term)
}

// TotalNumDocs is always the caller's global count, zero included.
func (l layered) TotalNumDocs() uint64 {
	return l.global.TotalNumDocs
}

func (l layered) TotalNumTokens(field schema.FieldID) uint64 {
	if n, ok := l.global.TotalTokensByField[field]; ok {
		return n
	}
	return l.local.TotalNumTokens(field)
}
