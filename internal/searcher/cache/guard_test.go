package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/internal/searcher/stats"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/resilience"
)

func TestGuardedStore(t *testing.T) {
	store := newMemStore()
	breaker := resilience.NewBreaker("redis", resilience.BreakerConfig{FailureThreshold: 2, Cooldown: time.Hour})
	c := NewStatsCache(Guard(store, breaker), time.Minute, nil)
	ctx := context.Background()

	// misses are not failures
	for i := 0; i < 3; i++ {
		if _, ok := c.Get(ctx, "/idx", "cat"); ok {
			t.Fatal("unexpected hit")
		}
	}
	if breaker.State() != resilience.StateClosed {
		t.Fatalf("misses tripped the breaker")
	}

	store.mu.Lock()
	store.failGet = true
	store.mu.Unlock()
	c.Get(ctx, "/idx", "cat")
	c.Get(ctx, "/idx", "cat")
	if breaker.State() != resilience.StateOpen {
		t.Fatalf("state = %v, want open", breaker.State())
	}

	// an open breaker still lets GetOrCompute answer from compute
	docs, hit, err := c.GetOrCompute(ctx, "/idx", "cat", func(context.Context) ([]stats.DocWithFreq, error) {
		return []stats.DocWithFreq{{Term: "cat", DocFreq: 2}}, nil
	})
	if err != nil || hit || len(docs) != 1 {
		t.Fatalf("GetOrCompute = %v %v %v", docs, hit, err)
	}
	if err := c.Invalidate(ctx, "/idx"); !errors.Is(err, resilience.ErrOpen) {
		t.Errorf("Invalidate = %v, want ErrOpen", err)
	}
}
