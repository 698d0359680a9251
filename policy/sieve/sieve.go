// Package sieve implements a single weight-bounded cache segment with the
// SIEVE eviction policy.
//
// A Segment is NOT safe for concurrent use; the sharded cache serializes
// access to each segment with its own lock.
package sieve

import (
	"log/slog"

	"github.com/dolthub/swiss"
	"github.com/gammazero/deque"

	"github.com/IvanBrykalov/memstore/policy"
)

// node is shared by the lookup table and the eviction queue, so the visited
// bit set by Get is the same bit the sweep tests and clears.
type node[K comparable, V any] struct {
	key     K
	val     V
	visited bool
}

// Config configures a Segment. Nil Weigher/Lifecycle/Logger get defaults:
// policy.One, policy.NoopLifecycle and a discarding logger.
type Config[K comparable, V any] struct {
	// MaxWeight is the segment budget; must be > 0.
	MaxWeight uint64
	Weigher   policy.Weigher[K, V]
	Lifecycle policy.Lifecycle[K, V]
	Logger    *slog.Logger

	// InsertVisited admits new keys with the visited bit already set,
	// giving every fresh key one free pass, as a write counting as a touch
	// would. The default (false) deviates from that: it is classic SIEVE,
	// where only keys touched again after insertion survive a sweep, which
	// is what makes one-off scans cheap to evict.
	InsertVisited bool
}

// Stats are cumulative segment counters.
type Stats struct {
	Evictions    uint64 // real evictions (Lifecycle was notified)
	StaleRecords uint64 // queue records discarded because their key was gone
	Rejected     uint64 // puts whose entry alone exceeds MaxWeight
	Underflows   uint64 // weight subtractions clamped at zero
}

// Segment is a SIEVE cache bounded by total entry weight.
//
// Layout: a hash table for lookups plus a ring of eviction records with a
// sweeping hand. New keys are appended at the tail; the hand walks the ring,
// clearing visited bits and evicting the first unvisited record it meets.
// Evicted or stale records are removed by swapping in the last record, which
// breaks strict FIFO order but keeps removal O(1).
type Segment[K comparable, V any] struct {
	table *swiss.Map[K, *node[K, V]]
	queue *deque.Deque[*node[K, V]]
	hand  int

	weight    uint64
	maxWeight uint64

	weigher       policy.Weigher[K, V]
	lifecycle     policy.Lifecycle[K, V]
	log           *slog.Logger
	insertVisited bool

	stats Stats
}

// New constructs an empty segment. It panics if cfg.MaxWeight is zero.
func New[K comparable, V any](cfg Config[K, V]) *Segment[K, V] {
	if cfg.MaxWeight == 0 {
		panic("sieve: MaxWeight must be > 0")
	}
	if cfg.Weigher == nil {
		cfg.Weigher = policy.One[K, V]{}
	}
	if cfg.Lifecycle == nil {
		cfg.Lifecycle = policy.NoopLifecycle[K, V]{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Segment[K, V]{
		table:         swiss.NewMap[K, *node[K, V]](16),
		queue:         deque.New[*node[K, V]](),
		maxWeight:     cfg.MaxWeight,
		weigher:       cfg.Weigher,
		lifecycle:     cfg.Lifecycle,
		log:           cfg.Logger,
		insertVisited: cfg.InsertVisited,
	}
}

// Put inserts or replaces k→v, evicting as needed to stay within MaxWeight.
// A replaced entry is marked visited; a new one is appended at the queue
// tail, visited only if Config.InsertVisited is set.
//
// It returns false if the entry alone weighs more than MaxWeight. Such an
// entry is never admitted, and any previous value for k is removed so a stale
// value cannot be read back.
func (s *Segment[K, V]) Put(k K, v V) bool {
	need := s.weigher.Weigh(k, v)
	old, exists := s.table.Get(k)

	if need > s.maxWeight {
		s.stats.Rejected++
		s.log.Warn("sieve: entry exceeds segment budget",
			"weight", need, "max_weight", s.maxWeight)
		if exists {
			s.Remove(k)
		}
		return false
	}

	// The replaced entry's weight is still charged while room is made;
	// credit it so updating a key never evicts on its own behalf.
	var credit uint64
	if exists {
		credit = s.weigher.Weigh(old.key, old.val)
	}
	s.makeRoom(need, credit, old)

	if exists {
		old.val = v
		old.visited = true
		s.weight += need
		s.subWeight(credit)
		return true
	}

	n := &node[K, V]{key: k, val: v, visited: s.insertVisited}
	s.table.Put(k, n)
	s.queue.PushBack(n)
	s.weight += need
	return true
}

// Get returns the value for k and marks it visited. The queue is not reordered.
func (s *Segment[K, V]) Get(k K) (V, bool) {
	n, ok := s.table.Get(k)
	if !ok {
		var zero V
		return zero, false
	}
	n.visited = true
	return n.val, true
}

// Peek returns the value for k without marking it visited.
func (s *Segment[K, V]) Peek(k K) (V, bool) {
	n, ok := s.table.Get(k)
	if !ok {
		var zero V
		return zero, false
	}
	return n.val, true
}

// Remove deletes k and returns its value. The matching eviction record stays
// in the queue and is discarded when the hand next reaches it.
// Lifecycle is not notified.
func (s *Segment[K, V]) Remove(k K) (V, bool) {
	n, ok := s.table.Get(k)
	if !ok {
		s.log.Debug("sieve: remove of untracked key", "hand", s.hand)
		var zero V
		return zero, false
	}
	s.table.Delete(k)
	s.subWeight(s.weigher.Weigh(k, n.val))
	return n.val, true
}

// Len returns the number of live entries.
func (s *Segment[K, V]) Len() int { return s.table.Count() }

// Records returns the number of eviction records, stale ones included.
func (s *Segment[K, V]) Records() int { return s.queue.Len() }

// Weight returns the tracked weight of live entries.
func (s *Segment[K, V]) Weight() uint64 { return s.weight }

// MaxWeight returns the segment budget.
func (s *Segment[K, V]) MaxWeight() uint64 { return s.maxWeight }

// Stats returns a copy of the segment counters.
func (s *Segment[K, V]) Stats() Stats { return s.stats }

// Range calls fn for every live entry until fn returns false.
// Visited bits are left untouched.
func (s *Segment[K, V]) Range(fn func(k K, v V) bool) {
	s.table.Iter(func(k K, n *node[K, V]) (stop bool) {
		return !fn(k, n.val)
	})
}

// -------------------- internals --------------------

// makeRoom sweeps the hand until need fits next to the already charged
// weight (minus credit, the weight of the entry about to be replaced).
// The record of self, the entry being replaced, is stepped over untouched.
func (s *Segment[K, V]) makeRoom(need, credit uint64, self *node[K, V]) {
	// weight - credit + need > max, written without unsigned underflow.
	for s.weight+need > s.maxWeight+credit {
		if s.queue.Len() == 0 || (self != nil && s.queue.Len() == 1 && s.queue.At(0) == self) {
			// Every live entry owns a record, so nothing left to sweep means
			// the leftover weight is an accounting error.
			s.log.Error("sieve: eviction queue exhausted while over budget",
				"weight", s.weight, "need", need, "max_weight", s.maxWeight)
			s.stats.Underflows++
			s.weight = credit
			return
		}

		n := s.queue.At(s.hand)
		if n == self {
			s.hand = (s.hand + 1) % s.queue.Len()
			continue
		}
		if live, ok := s.table.Get(n.key); !ok || live != n {
			// The key was removed (and possibly re-added with a new record).
			s.dropAtHand()
			s.stats.StaleRecords++
			s.log.Debug("sieve: discarding stale eviction record", "hand", s.hand)
			continue
		}
		if n.visited {
			n.visited = false
			s.hand = (s.hand + 1) % s.queue.Len()
			continue
		}

		s.dropAtHand()
		s.table.Delete(n.key)
		s.subWeight(s.weigher.Weigh(n.key, n.val))
		s.stats.Evictions++
		s.lifecycle.OnEviction(n.key, n.val)
	}
}

// dropAtHand swap-removes the record under the hand and rewinds the hand
// if it fell off the end.
func (s *Segment[K, V]) dropAtHand() {
	last := s.queue.Len() - 1
	if s.hand != last {
		s.queue.Set(s.hand, s.queue.Back())
	}
	s.queue.PopBack()
	if s.hand == s.queue.Len() {
		s.hand = 0
	}
}

// subWeight subtracts w from the tracked weight, clamping at zero.
func (s *Segment[K, V]) subWeight(w uint64) {
	if w > s.weight {
		s.log.Error("sieve: weight underflow",
			"weight", s.weight, "subtract", w)
		s.stats.Underflows++
		s.weight = 0
		return
	}
	s.weight -= w
}
