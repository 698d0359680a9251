package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/IvanBrykalov/memstore/internal/singleflight"
	"github.com/IvanBrykalov/memstore/internal/util"
)

// ErrNoLoader is returned by GetOrLoad when no Loader was configured in Options.
var ErrNoLoader = errors.New("cache: no Loader provided")

// cache is a segmented in-memory KV store with SIEVE eviction per segment.
// All methods are safe for concurrent use by multiple goroutines.
type cache[K comparable, V any] struct {
	shards []*shard[K, V]
	hash   func(K) uint64
	clone  func(V) V
	closed atomic.Bool

	opt Options[K, V]

	// singleflight group for coalescing concurrent loads in GetOrLoad.
	sf singleflight.Group[K, V]
}

// New constructs a cache with the provided Options.
// It panics if Segments <= 0 or MaxWeight < Segments: both are programming
// errors, not runtime conditions.
func New[K comparable, V any](opt Options[K, V]) Cache[K, V] {
	if opt.Segments <= 0 {
		panic("cache: Segments must be > 0")
	}
	if opt.MaxWeight < uint64(opt.Segments) {
		panic("cache: MaxWeight must be >= Segments")
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Logger == nil {
		opt.Logger = slog.New(slog.DiscardHandler)
	}
	if opt.Hasher == nil {
		opt.Hasher = util.NewHasher[K]().Hash
	}

	budgets := util.SplitBudget(opt.MaxWeight, opt.Segments)
	cs := make([]*shard[K, V], opt.Segments)
	for i := range cs {
		cs[i] = newShard(budgets[i], opt)
	}

	opt.Logger.Debug("cache: constructed",
		"segments", opt.Segments, "max_weight", opt.MaxWeight)

	// return pointer-to-impl as the interface (avoids unexported-return lint)
	return &cache[K, V]{
		shards: cs,
		hash:   opt.Hasher,
		clone:  opt.Clone,
		opt:    opt,
	}
}

// ---- Cache[K,V] implementation ----

// Put inserts or updates k→v in k's segment.
func (c *cache[K, V]) Put(k K, v V) {
	if c.closed.Load() {
		return
	}
	c.getShard(k).Put(k, v)
}

// Get returns a copy of the value for k and a presence flag.
func (c *cache[K, V]) Get(k K) (V, bool) {
	if c.closed.Load() {
		var zero V
		return zero, false
	}
	v, ok := c.getShard(k).Get(k)
	if ok && c.clone != nil {
		// Values are replaced, never mutated, under the lock, so cloning
		// after it is released is safe.
		v = c.clone(v)
	}
	return v, ok
}

// Remove deletes k and returns the removed value.
func (c *cache[K, V]) Remove(k K) (V, bool) {
	if c.closed.Load() {
		var zero V
		return zero, false
	}
	return c.getShard(k).Remove(k)
}

// Len returns the total number of resident entries across all segments.
func (c *cache[K, V]) Len() int {
	total := 0
	for _, s := range c.shards {
		total += s.Len()
	}
	return total
}

// Weight returns the total tracked weight across all segments.
func (c *cache[K, V]) Weight() uint64 {
	var total uint64
	for _, s := range c.shards {
		total += s.Weight()
	}
	return total
}

// Stats aggregates counters segment by segment; segments are locked one at
// a time, so the snapshot is not atomic across segments.
func (c *cache[K, V]) Stats() Stats {
	st := Stats{Segments: len(c.shards)}
	for _, s := range c.shards {
		s.snapshot(&st)
	}
	return st
}

// Range calls fn for every resident entry until fn returns false.
func (c *cache[K, V]) Range(fn func(k K, v V) bool) {
	for _, s := range c.shards {
		if !s.Range(fn) {
			return
		}
	}
}

// Close marks the cache as closed. Future operations are ignored.
func (c *cache[K, V]) Close() error {
	c.closed.Store(true)
	return nil
}

// GetOrLoad returns the value for k; on miss it loads via Options.Loader,
// coalescing concurrent loads for the same key (singleflight).
// If no Loader is configured, returns ErrNoLoader.
func (c *cache[K, V]) GetOrLoad(ctx context.Context, k K) (V, error) {
	// fast path
	if v, ok := c.Get(k); ok {
		return v, nil
	}
	if c.opt.Loader == nil {
		var zero V
		return zero, ErrNoLoader
	}

	// singleflight: exactly one real load for the key
	v, shared, err := c.sf.Do(ctx, k, func() (V, error) {
		// double-check after flight join; the caller clones below
		if v, ok := c.getShard(k).Get(k); ok {
			return v, nil
		}
		v, err := c.opt.Loader(ctx, k)
		if err == nil {
			c.Put(k, v)
		}
		return v, err
	})
	if shared {
		c.opt.Logger.Debug("cache: load coalesced", "err", err)
	}
	if err == nil && c.clone != nil {
		// The flight result is shared and may be the cached value itself;
		// every caller gets exactly one private copy.
		v = c.clone(v)
	}
	return v, err
}

// ---- helpers ----

// segmentIndex picks the segment for k: mask for power-of-two counts,
// modulo otherwise.
func (c *cache[K, V]) segmentIndex(k K) int {
	return util.ShardIndex(c.hash(k), len(c.shards))
}

func (c *cache[K, V]) getShard(k K) *shard[K, V] {
	return c.shards[c.segmentIndex(k)]
}
