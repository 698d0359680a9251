// Package cache provides a generic, segmented, weight-bounded in-memory
// cache with SIEVE eviction, pluggable weighing and eviction callbacks,
// optional singleflight loading and lightweight metrics hooks.
//
// Design
//
//   - Concurrency: the cache is split into Segments, each a policy/sieve
//     Segment behind its own sync.Mutex. A key hashes to exactly one
//     segment (xxh3 for strings, maphash for other keys); operations on
//     different segments never contend. There is no global lock and no
//     cross-segment ordering.
//
//   - Eviction: each segment runs SIEVE. Reads set a visited bit without
//     reordering anything; a sweeping hand clears visited bits and evicts
//     the first unvisited entry it finds. Entries touched again after
//     insertion survive one full sweep, so one-off scans are evicted before
//     the working set.
//
//   - Weight: Options.Weigher prices every entry (default: 1, i.e. entry
//     count). MaxWeight is split evenly across segments, so the global bound
//     is approximate: each segment enforces only its own share.
//
//   - Callbacks: Options.Lifecycle.OnEviction(k, v) runs under the segment
//     lock once per real eviction. Explicit Remove does not trigger it.
//
//   - GetOrLoad: coalesces concurrent loads for the same key using
//     singleflight. If Loader is nil, GetOrLoad returns ErrNoLoader.
//
//   - Metrics: Options.Metrics receives Hit/Miss/Evict/Reject/Resize signals.
//     By default NoopMetrics is used; metrics/prom exports them to Prometheus.
//
// Basic usage
//
//	// 8 segments, room for 10k entries in total.
//	c := cache.New[string, []byte](cache.Options[string, []byte]{
//	    Segments:  8,
//	    MaxWeight: 10_000,
//	})
//	c.Put("a", []byte("1"))
//	if v, ok := c.Get("a"); ok {
//	    _ = v // use value
//	}
//	c.Remove("a")
//
// Weighing by size
//
//	c := cache.New[string, []byte](cache.Options[string, []byte]{
//	    Segments:  cache.DefaultSegments(),
//	    MaxWeight: 64 << 20, // 64 MiB
//	    Weigher: policy.WeigherFunc[string, []byte](func(k string, v []byte) uint64 {
//	        return uint64(len(k) + len(v))
//	    }),
//	    Clone: bytes.Clone,
//	})
//
// Thread-safety & complexity
//
// All methods on Cache are safe for concurrent use. Get and Remove are O(1)
// expected; Put is O(1) amortized, since each eviction sweep step either
// clears a visited bit or removes a record.
package cache
