// Package merger keeps the best k hits out of an arbitrary stream of scored
// documents using a bounded min-heap.
package merger

import (
	"container/heap"

	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/searcher/ranker"
)

// Collector retains the top limit hits offered to it.
type Collector struct {
	h     scoredDocHeap
	limit int
	seen  int
}

func NewCollector(limit int) *Collector {
	return &Collector{limit: limit, h: make(scoredDocHeap, 0, min(limit, 1024))}
}

// Offer considers one hit.
func (c *Collector) Offer(doc ranker.ScoredDoc) {
	c.seen++
	if c.limit <= 0 {
		return
	}
	if c.h.Len() < c.limit {
		heap.Push(&c.h, doc)
		return
	}
	if ranker.Better(doc, c.h[0]) {
		c.h[0] = doc
		heap.Fix(&c.h, 0)
	}
}

// Seen returns the number of hits offered so far.
func (c *Collector) Seen() int { return c.seen }

// Results drains the collector, best hit first.
func (c *Collector) Results() []ranker.ScoredDoc {
	result := make([]ranker.ScoredDoc, c.h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(&c.h).(ranker.ScoredDoc)
	}
	return result
}

// Merge combines per-shard result lists into the overall top limit.
func Merge(shardResults [][]ranker.ScoredDoc, limit int) []ranker.ScoredDoc {
	if limit <= 0 {
		limit = 10
	}
	c := NewCollector(limit)
	for _, results := range shardResults {
		for _, doc := range results {
			c.Offer(doc)
		}
	}
	return c.Results()
}

// scoredDocHeap keeps the worst retained hit at the root.
type scoredDocHeap []ranker.ScoredDoc

func (h scoredDocHeap) Len() int { return len(h) }

func (h scoredDocHeap) Less(i, j int) bool {
	return ranker.Better(h[j], h[i])
}

func (h scoredDocHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredDocHeap) Push(x interface{}) {
	*h = append(*h, x.(ranker.ScoredDoc))
}

func (h *scoredDocHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
