package cache

// Metrics exposes cache-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	Hit()
	Miss()
	// Evict is called under the segment lock for every real eviction.
	Evict()
	// Reject is called when an entry heavier than its segment is dropped.
	Reject()
	// Resize reports the change of resident entries and weight caused by
	// one operation; summing the deltas yields the current totals.
	Resize(dEntries int, dWeight int64)
}

// NoopMetrics discards every signal. It is the default Metrics.
type NoopMetrics struct{}

func (NoopMetrics) Hit()              {}
func (NoopMetrics) Miss()             {}
func (NoopMetrics) Evict()            {}
func (NoopMetrics) Reject()           {}
func (NoopMetrics) Resize(int, int64) {}

var _ Metrics = NoopMetrics{}
