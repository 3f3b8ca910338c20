// Package metrics holds the prometheus collectors shared by the cache and the
// overlay. A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Cache lookup outcomes.
const (
	LookupHot          = "hot"
	LookupDurable      = "durable"
	LookupNetwork      = "network"
	LookupStaleMemory  = "stale_memory"
	LookupStaleDurable = "stale_durable"
	LookupMiss         = "miss"
)

type Metrics struct {
	cacheLookups       *prometheus.CounterVec
	durableWriteErrors prometheus.Counter
	refreshRuns        *prometheus.CounterVec
	categoryFetches    *prometheus.CounterVec
	storeRecords       prometheus.Gauge
}

// NewRegistry returns a private registry with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(collectors.NewGoCollector())
	return reg
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Tiered cache lookups by the tier that served them.",
		}, []string{"result"}),
		durableWriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_durable_write_failures_total",
			Help: "Durable tier writes that failed and were skipped.",
		}),
		refreshRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "refresh_runs_total",
			Help: "Bulk live-score refresh attempts.",
		}, []string{"result"}),
		categoryFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "category_fetch_total",
			Help: "Per-category feed fetches.",
		}, []string{"category", "result"}),
		storeRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "store_records",
			Help: "Keys currently held by the live-score store.",
		}),
	}
	reg = prometheus.WrapRegistererWithPrefix("livescore_", reg)
	reg.MustRegister(m.cacheLookups, m.durableWriteErrors, m.refreshRuns, m.categoryFetches, m.storeRecords)
	return m
}

func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) DurableWriteFailed() {
	if m == nil {
		return
	}
	m.durableWriteErrors.Inc()
}

func (m *Metrics) RefreshRun(skipped bool) {
	if m == nil {
		return
	}
	result := "ran"
	if skipped {
		result = "skipped"
	}
	m.refreshRuns.WithLabelValues(result).Inc()
}

func (m *Metrics) CategoryFetch(category string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.categoryFetches.WithLabelValues(category, result).Inc()
}

func (m *Metrics) StoreRecords(n int) {
	if m == nil {
		return
	}
	m.storeRecords.Set(float64(n))
}
