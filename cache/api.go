package cache

import "context"

// Cache is a segmented, weight-bounded in-memory key/value cache with SIEVE
// eviction. All methods are safe for concurrent use by multiple goroutines.
//
// Each key is routed to exactly one segment; every operation holds that
// segment's lock for its whole duration (including any evictions it
// triggers) and no other lock.
type Cache[K comparable, V any] interface {
	// Put inserts or updates k→v, evicting from k's segment until the entry
	// fits. An entry heavier than the whole segment budget is dropped (and
	// any previous value for k removed).
	Put(k K, v V)

	// Get returns the value for k and a presence flag. On hit the entry is
	// marked visited; its position in the eviction order is unchanged.
	// The returned value is a copy made by Options.Clone when set.
	Get(k K) (V, bool)

	// Remove deletes k and returns the removed value. Removal is not an
	// eviction: Options.Lifecycle is not notified.
	Remove(k K) (V, bool)

	// Len returns the total number of resident entries across all segments.
	Len() int

	// Weight returns the total tracked weight across all segments.
	Weight() uint64

	// Stats aggregates counters across all segments.
	Stats() Stats

	// Range calls fn for every resident entry, one segment at a time, until
	// fn returns false. fn runs under the segment lock and must not call
	// back into the cache.
	Range(fn func(k K, v V) bool)

	// GetOrLoad returns the value for k, loading it via Options.Loader on miss.
	// Concurrent loads for the same key are coalesced (singleflight).
	// If no Loader was configured, returns ErrNoLoader.
	GetOrLoad(ctx context.Context, k K) (V, error)

	// Close marks the cache closed: later Puts are ignored and lookups miss.
	// Current implementation is a soft close and returns nil.
	Close() error
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits         uint64
	Misses       uint64
	Evictions    uint64
	StaleRecords uint64
	Rejected     uint64
	Underflows   uint64
	Entries      int
	Weight       uint64
	MaxWeight    uint64
	Segments     int
}

// HitRatio returns hits/(hits+misses), or 0 before any lookup.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
