package cache

import (
	"context"
	"log/slog"

	"github.com/IvanBrykalov/memstore/internal/util"
	"github.com/IvanBrykalov/memstore/policy"
)

// Options configures the cache. Segments and MaxWeight are required;
// everything else has a default:
//   - nil Weigher   => policy.One (MaxWeight becomes an entry count)
//   - nil Lifecycle => no-op
//   - nil Metrics   => NoopMetrics
//   - nil Logger    => discard
//   - nil Hasher    => xxh3 for string keys, maphash otherwise
type Options[K comparable, V any] struct {
	// Segments is the number of independently locked segments; must be > 0.
	// DefaultSegments offers a CPU-based value. Powers of two route with a
	// mask, other counts with a modulo.
	Segments int

	// MaxWeight is the total weight budget, split evenly across segments
	// (the first MaxWeight%Segments segments get one extra unit).
	// Must be >= Segments so no segment ends up with a zero budget.
	MaxWeight uint64

	// Weigher prices entries; it must be pure.
	Weigher policy.Weigher[K, V]

	// Lifecycle is notified once per real eviction, under the segment lock;
	// keep it lightweight and never re-enter the cache from it.
	Lifecycle policy.Lifecycle[K, V]

	// InsertVisited admits new keys already marked visited (one free pass),
	// treating the write as a touch. It defaults to false, classic SIEVE,
	// so keys read only once are evicted before keys read again.
	InsertVisited bool

	// Clone copies values handed out by Get, so callers never alias cached
	// state. Nil returns a plain Go copy of V.
	Clone func(V) V

	// Loader fetches a value on cache miss. Used by GetOrLoad.
	Loader func(ctx context.Context, k K) (V, error)

	Metrics Metrics
	Logger  *slog.Logger

	// Hasher overrides segment routing. It must be deterministic.
	Hasher func(K) uint64
}

// DefaultSegments is a practical segment count for this machine:
// nextPow2(2*GOMAXPROCS), clamped to [1..256].
func DefaultSegments() int { return util.DefaultSegmentCount() }
