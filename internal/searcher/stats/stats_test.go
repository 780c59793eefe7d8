package stats

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/indexer/schema"
)

func TestMergeSumsDuplicateTerms(t *testing.T) {
	g := Merge(PerShardStatistics{
		DocsFreq: []DocWithFreq{
			{Term: "cat", FieldID: 2, DocFreq: 3},
			{Term: "dog", FieldID: 2, DocFreq: 1},
			{Term: "cat", FieldID: 2, DocFreq: 4},
			{Term: "cat", FieldID: 2, DocFreq: 0},
		},
		TotalNumTokens: 900,
		TotalNumDocs:   70,
	})
	if got := g.DocFreqByTerm[Term{Field: 2, Text: "cat"}]; got != 7 {
		t.Errorf("cat = %d, want 7", got)
	}
	if got := g.DocFreqByTerm[Term{Field: 2, Text: "dog"}]; got != 1 {
		t.Errorf("dog = %d, want 1", got)
	}
	if len(g.DocFreqByTerm) != 2 {
		t.Errorf("terms = %v", g.DocFreqByTerm)
	}
	if g.TotalNumDocs != 70 {
		t.Errorf("TotalNumDocs = %d, want 70 copied unchanged", g.TotalNumDocs)
	}
	if len(g.TotalTokensByField) != 1 || g.TotalTokensByField[2] != 900 {
		t.Errorf("TotalTokensByField = %v", g.TotalTokensByField)
	}
}

func TestMergeSameTextDifferentFields(t *testing.T) {
	g := Merge(PerShardStatistics{
		DocsFreq: []DocWithFreq{
			{Term: "go", FieldID: 0, DocFreq: 5},
			{Term: "go", FieldID: 1, DocFreq: 2},
		},
		TotalNumTokens: 10,
	})
	if g.DocFreqByTerm[Term{Field: 0, Text: "go"}] != 5 || g.DocFreqByTerm[Term{Field: 1, Text: "go"}] != 2 {
		t.Errorf("terms = %v", g.DocFreqByTerm)
	}
	// tokens land on the first entry's field only
	if len(g.TotalTokensByField) != 1 || g.TotalTokensByField[0] != 10 {
		t.Errorf("TotalTokensByField = %v", g.TotalTokensByField)
	}
}

func TestActiveField(t *testing.T) {
	if _, ok := ActiveField(nil); ok {
		t.Error("empty input must have no active field")
	}
	f, ok := ActiveField([]DocWithFreq{{FieldID: 3}, {FieldID: 1}})
	if !ok || f != 3 {
		t.Errorf("ActiveField = %d, %v", f, ok)
	}
}

func TestSumConcatenatesForMerge(t *testing.T) {
	total := Sum(
		PerShardStatistics{DocsFreq: []DocWithFreq{{Term: "a", DocFreq: 2}}, TotalNumTokens: 10, TotalNumDocs: 3},
		PerShardStatistics{DocsFreq: []DocWithFreq{{Term: "a", DocFreq: 5}}, TotalNumTokens: 20, TotalNumDocs: 4},
		PerShardStatistics{},
	)
	if len(total.DocsFreq) != 2 || total.TotalNumTokens != 30 || total.TotalNumDocs != 7 {
		t.Fatalf("Sum = %+v", total)
	}
	if got := Merge(total).DocFreqByTerm[Term{Text: "a"}]; got != 7 {
		t.Errorf("merged a = %d, want 7", got)
	}
	if !(PerShardStatistics{TotalNumDocs: 9}).Empty() {
		t.Error("statistics without terms must be empty")
	}
}

type localStats struct{}

func (localStats) DocFreq(schema.FieldID, string) uint64 { return 1 }
func (localStats) TotalNumDocs() uint64                  { return 11 }
func (localStats) TotalNumTokens(schema.FieldID) uint64  { return 111 }

func TestOverFallsBackToLocal(t *testing.T) {
	g := Merge(PerShardStatistics{
		DocsFreq:       []DocWithFreq{{Term: "x", FieldID: 0, DocFreq: 40}},
		TotalNumTokens: 5000,
		TotalNumDocs:   500,
	})
	p := g.Over(localStats{})
	if p.DocFreq(0, "x") != 40 || p.DocFreq(0, "y") != 1 {
		t.Errorf("DocFreq x=%d y=%d", p.DocFreq(0, "x"), p.DocFreq(0, "y"))
	}
	if p.TotalNumDocs() != 500 {
		t.Errorf("TotalNumDocs = %d", p.TotalNumDocs())
	}
	if p.TotalNumTokens(0) != 5000 || p.TotalNumTokens(1) != 111 {
		t.Errorf("TotalNumTokens = %d / %d", p.TotalNumTokens(0), p.TotalNumTokens(1))
	}
}

func TestOverPassesZeroDocCountThrough(t *testing.T) {
	g := Merge(PerShardStatistics{
		DocsFreq:       []DocWithFreq{{Term: "x", FieldID: 0, DocFreq: 3}},
		TotalNumTokens: 30,
	})
	if got := g.Over(localStats{}).TotalNumDocs(); got != 0 {
		t.Errorf("TotalNumDocs = %d, want the global 0", got)
	}
}

func TestPerShardStatisticsJSON(t *testing.T) {
	raw := `{"docs_freq":[{"field_id":1,"term":"bm25","doc_freq":12}],"total_num_tokens":340,"total_num_docs":17}`
	var p PerShardStatistics
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatal(err)
	}
	if len(p.DocsFreq) != 1 || p.DocsFreq[0].FieldID != 1 || p.DocsFreq[0].Term != "bm25" || p.DocsFreq[0].DocFreq != 12 {
		t.Errorf("DocsFreq = %+v", p.DocsFreq)
	}
	if p.TotalNumTokens != 340 || p.TotalNumDocs != 17 {
		t.Errorf("totals = %+v", p)
	}
}

func BenchmarkMerge(b *testing.B) {
	for _, terms := range []int{4, 64, 1024} {
		b.Run(fmt.Sprintf("terms_%d", terms), func(b *testing.B) {
			shards := make([]PerShardStatistics, 8)
			for s := range shards {
				for i := 0; i < terms; i++ {
					shards[s].DocsFreq = append(shards[s].DocsFreq, DocWithFreq{
						Term:    fmt.Sprintf("term-%d", i),
						FieldID: 0,
						DocFreq: uint64(i%17 + s),
					})
				}
				shards[s].TotalNumDocs = 1000
				shards[s].TotalNumTokens = 150000
			}
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = Merge(Sum(shards...))
			}
		})
	}
}
