// Package prom exports cache metrics to Prometheus.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/IvanBrykalov/memstore/cache"
)

// Adapter implements cache.Metrics and exports Prometheus counters/gauges.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
type Adapter struct {
	hits     prometheus.Counter
	misses   prometheus.Counter
	evicts   prometheus.Counter
	rejects  prometheus.Counter
	sizeEnt  prometheus.Gauge
	sizeCost prometheus.Gauge
}

// New constructs a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		})
	}
	a := &Adapter{
		hits:     counter("hits_total", "Cache hits"),
		misses:   counter("misses_total", "Cache misses"),
		evicts:   counter("evictions_total", "Entries evicted to make room"),
		rejects:  counter("rejections_total", "Entries dropped for exceeding their segment budget"),
		sizeEnt:  gauge("size_entries", "Number of resident entries"),
		sizeCost: gauge("size_weight", "Total resident weight"),
	}
	reg.MustRegister(a.hits, a.misses, a.evicts, a.rejects, a.sizeEnt, a.sizeCost)
	return a
}

// Hit increments the hit counter.
func (a *Adapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter.
func (a *Adapter) Miss() { a.misses.Inc() }

// Evict increments the eviction counter.
func (a *Adapter) Evict() { a.evicts.Inc() }

// Reject increments the rejection counter.
func (a *Adapter) Reject() { a.rejects.Inc() }

// Resize applies per-operation deltas to the size gauges.
func (a *Adapter) Resize(dEntries int, dWeight int64) {
	if dEntries != 0 {
		a.sizeEnt.Add(float64(dEntries))
	}
	if dWeight != 0 {
		a.sizeCost.Add(float64(dWeight))
	}
}

// Compile-time check: ensure Adapter implements cache.Metrics.
var _ cache.Metrics = (*Adapter)(nil)
