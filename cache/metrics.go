package cache

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts cache activity. A nil *Metrics is valid and records nothing.
type Metrics struct {
	hits      prometheus.Counter
	joins     prometheus.Counter
	fetches   prometheus.Counter
	discarded prometheus.Counter
	errors    prometheus.Counter
	evictions prometheus.Counter
}

// NewMetrics creates the cache counters and registers them with reg when it is not
// nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "resource_list",
			Subsystem: "cache",
			Name:      name,
			Help:      help,
		})
	}

	m := &Metrics{
		hits:      counter("hits_total", "Requests answered from a fresh entry."),
		joins:     counter("joins_total", "Requests that joined a fetch already in flight."),
		fetches:   counter("fetches_total", "Fetches issued to the source of truth."),
		discarded: counter("discarded_total", "Responses dropped because a newer request superseded them."),
		errors:    counter("errors_total", "Fetches that failed."),
		evictions: counter("evictions_total", "Entries evicted because the cache was full."),
	}

	if reg != nil {
		reg.MustRegister(m.hits, m.joins, m.fetches, m.discarded, m.errors, m.evictions)
	}
	return m
}

func (m *Metrics) hit() {
	if m != nil {
		m.hits.Inc()
	}
}

func (m *Metrics) join() {
	if m != nil {
		m.joins.Inc()
	}
}

func (m *Metrics) fetch() {
	if m != nil {
		m.fetches.Inc()
	}
}

func (m *Metrics) discard() {
	if m != nil {
		m.discarded.Inc()
	}
}

func (m *Metrics) failure() {
	if m != nil {
		m.errors.Inc()
	}
}

func (m *Metrics) eviction() {
	if m != nil {
		m.evictions.Inc()
	}
}
