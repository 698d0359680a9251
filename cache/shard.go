package cache

import (
	"sync"

	"github.com/IvanBrykalov/memstore/internal/util"
	"github.com/IvanBrykalov/memstore/policy"
	"github.com/IvanBrykalov/memstore/policy/sieve"
)

// shard is one independently locked segment of the cache.
// Every method takes mu for exactly one segment call.
type shard[K comparable, V any] struct {
	// ---- guarded by mu ----
	mu  sync.Mutex
	seg *sieve.Segment[K, V]

	metrics Metrics

	// ---- hot counters (separate cache lines to avoid false sharing) ----
	_      util.CacheLinePad
	hits   util.PaddedAtomicUint64
	misses util.PaddedAtomicUint64
}

// newShard builds a shard with its own segment budget. Evictions are
// reported to metrics before the user's lifecycle sees them.
func newShard[K comparable, V any](maxWeight uint64, opt Options[K, V]) *shard[K, V] {
	s := &shard[K, V]{metrics: opt.Metrics}
	user := opt.Lifecycle
	s.seg = sieve.New(sieve.Config[K, V]{
		MaxWeight: maxWeight,
		Weigher:   opt.Weigher,
		Lifecycle: policy.LifecycleFunc[K, V](func(k K, v V) {
			s.metrics.Evict()
			if user != nil {
				user.OnEviction(k, v)
			}
		}),
		Logger:        opt.Logger,
		InsertVisited: opt.InsertVisited,
	})
	return s
}

// Put inserts or updates k→v and reports the size delta to metrics.
func (s *shard[K, V]) Put(k K, v V) {
	s.mu.Lock()
	n0, w0 := s.seg.Len(), s.seg.Weight()
	admitted := s.seg.Put(k, v)
	n1, w1 := s.seg.Len(), s.seg.Weight()
	s.mu.Unlock()

	if !admitted {
		s.metrics.Reject()
	}
	s.metrics.Resize(n1-n0, int64(w1)-int64(w0))
}

// Get returns the value for k and marks it visited.
func (s *shard[K, V]) Get(k K) (V, bool) {
	s.mu.Lock()
	v, ok := s.seg.Get(k)
	s.mu.Unlock()

	if ok {
		s.hits.Add(1)
		s.metrics.Hit()
	} else {
		s.misses.Add(1)
		s.metrics.Miss()
	}
	return v, ok
}

// Remove deletes k. Explicit removal is not counted as an eviction.
func (s *shard[K, V]) Remove(k K) (V, bool) {
	s.mu.Lock()
	w0 := s.seg.Weight()
	v, ok := s.seg.Remove(k)
	w1 := s.seg.Weight()
	s.mu.Unlock()

	if ok {
		s.metrics.Resize(-1, int64(w1)-int64(w0))
	}
	return v, ok
}

// Len returns the number of resident entries in this shard.
func (s *shard[K, V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seg.Len()
}

// Weight returns the tracked weight of this shard.
func (s *shard[K, V]) Weight() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seg.Weight()
}

// Range iterates live entries under the shard lock.
func (s *shard[K, V]) Range(fn func(k K, v V) bool) (more bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	more = true
	s.seg.Range(func(k K, v V) bool {
		more = fn(k, v)
		return more
	})
	return more
}

// snapshot adds this shard's counters to st.
func (s *shard[K, V]) snapshot(st *Stats) {
	s.mu.Lock()
	ss := s.seg.Stats()
	st.Entries += s.seg.Len()
	st.Weight += s.seg.Weight()
	st.MaxWeight += s.seg.MaxWeight()
	s.mu.Unlock()

	st.Evictions += ss.Evictions
	st.StaleRecords += ss.StaleRecords
	st.Rejected += ss.Rejected
	st.Underflows += ss.Underflows
	st.Hits += s.hits.Load()
	st.Misses += s.misses.Load()
}
