// Package policy defines the pluggable capabilities an eviction segment is
// built from: a Weigher that prices entries and a Lifecycle that observes
// evictions.
package policy

// Weigher computes the capacity cost of an entry.
// Implementations must be pure: the same (key, value) pair always weighs the
// same, otherwise segment weight accounting drifts.
type Weigher[K comparable, V any] interface {
	Weigh(k K, v V) uint64
}

// WeigherFunc adapts a plain function to the Weigher interface.
type WeigherFunc[K comparable, V any] func(k K, v V) uint64

// Weigh calls f(k, v).
func (f WeigherFunc[K, V]) Weigh(k K, v V) uint64 { return f(k, v) }

// One charges every entry a constant cost of 1, which turns a weight budget
// into an entry count limit.
type One[K comparable, V any] struct{}

// Weigh always returns 1.
func (One[K, V]) Weigh(K, V) uint64 { return 1 }

// Lifecycle observes entries leaving a segment because of eviction.
//
// OnEviction is invoked exactly once per real eviction, with the evicted key
// and value. It is NOT invoked for explicit removals or for stale eviction
// records. Calls happen under the segment lock: keep them short and never
// call back into the same cache.
type Lifecycle[K comparable, V any] interface {
	OnEviction(k K, v V)
}

// LifecycleFunc adapts a plain function to the Lifecycle interface.
type LifecycleFunc[K comparable, V any] func(k K, v V)

// OnEviction calls f(k, v).
func (f LifecycleFunc[K, V]) OnEviction(k K, v V) { f(k, v) }

// NoopLifecycle ignores evictions. It is the default.
type NoopLifecycle[K comparable, V any] struct{}

// OnEviction does nothing.
func (NoopLifecycle[K, V]) OnEviction(K, V) {}

// Compile-time checks.
var (
	_ Weigher[string, int]   = One[string, int]{}
	_ Weigher[string, int]   = WeigherFunc[string, int](nil)
	_ Lifecycle[string, int] = NoopLifecycle[string, int]{}
	_ Lifecycle[string, int] = LifecycleFunc[string, int](nil)
)
