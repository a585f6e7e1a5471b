package ged

import (
	"context"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"alertrank/internal/graph"
)

type pairKey struct {
	lo, hi  uint64
	maxCost float64
}

// Cache memoises another oracle by the unordered pair of graph fingerprints.
// Meta-alerts with the same structure share one entry, so repeated shapes are
// searched once.
type Cache struct {
	next    Oracle
	entries *lru.Cache[pairKey, Result]
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewCache wraps next with an LRU of the given size.
func NewCache(next Oracle, size int) (*Cache, error) {
	if next == nil {
		return nil, fmt.Errorf("distance cache requires an oracle")
	}
	entries, err := lru.New[pairKey, Result](size)
	if err != nil {
		return nil, fmt.Errorf("create distance cache: %w", err)
	}
	return &Cache{next: next, entries: entries}, nil
}

// Distance implements Oracle.
func (c *Cache) Distance(ctx context.Context, a, b *graph.Canonical, maxCost float64) Result {
	if a == nil || b == nil {
		return c.next.Distance(ctx, a, b, maxCost)
	}
	key := pairKey{lo: a.Fingerprint(), hi: b.Fingerprint(), maxCost: maxCost}
	if key.lo > key.hi {
		key.lo, key.hi = key.hi, key.lo
	}
	if r, ok := c.entries.Get(key); ok {
		c.hits.Add(1)
		return r
	}
	c.misses.Add(1)
	r := c.next.Distance(ctx, a, b, maxCost)
	// A cancelled search says nothing about the pair.
	if ctx.Err() == nil {
		c.entries.Add(key, r)
	}
	return r
}

// Stats returns hit and miss counts.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
