package cache

import (
	"context"
	"time"

	pkgredis "github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/resilience"
)

// guardedStore stops calling an unreachable store until the breaker lets a
// probe through. Cache misses do not count as failures.
type guardedStore struct {
	store   Store
	breaker *resilience.Breaker
}

// Guard wraps store with breaker.
func Guard(store Store, breaker *resilience.Breaker) Store {
	return &guardedStore{store: store, breaker: breaker}
}

func storeFailed(err error) bool {
	return !pkgredis.IsNilError(err)
}

func (g *guardedStore) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := g.breaker.Do(func() error {
		var err error
		data, err = g.store.Get(ctx, key)
		return err
	}, storeFailed)
	return data, err
}

func (g *guardedStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return g.breaker.Do(func() error {
		return g.store.Set(ctx, key, value, ttl)
	}, storeFailed)
}

func (g *guardedStore) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	var n int64
	err := g.breaker.Do(func() error {
		var err error
		n, err = g.store.FlushByPattern(ctx, pattern)
		return err
	}, storeFailed)
	return n, err
}
