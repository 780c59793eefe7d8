// Package metrics defines the Prometheus metric collectors used by the search
// services and exposes an HTTP handler for scraping. Every recording helper
// accepts a nil *Metrics so that components run unchanged without metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	SearchResultsCount   *prometheus.HistogramVec
	StatsMergesTotal     *prometheus.CounterVec
	DocFreqLookupsTotal  prometheus.Counter
	ReaderCacheHits      prometheus.Counter
	ReaderCacheMisses    prometheus.Counter
	OpenReaders          prometheus.Gauge
	StatsCacheHits       prometheus.Counter
	StatsCacheMisses     prometheus.Counter
	ShardRequestsTotal   *prometheus.CounterVec
	ReloadEventsTotal    *prometheus.CounterVec
}

// New creates all collectors and registers them with reg, or with the
// default registry when reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "HTTP requests by method, matched route and status.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "route"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bm25_search_queries_total",
				Help: "Total BM25 searches by strategy and result (ok, zero_result, error).",
			},
			[]string{"strategy", "result"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bm25_search_latency_seconds",
				Help:    "BM25 search latency in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"strategy"},
		),
		SearchResultsCount: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bm25_search_results_count",
				Help:    "Number of results returned per search.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 500},
			},
			[]string{"strategy"},
		),
		StatsMergesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bm25_stats_merges_total",
				Help: "Searches by statistics mode (distributed, local).",
			},
			[]string{"mode"},
		),
		DocFreqLookupsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bm25_doc_freq_lookups_total",
				Help: "Total document-frequency lookups.",
			},
		),
		ReaderCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bm25_reader_cache_hits_total",
				Help: "Index reader cache hits.",
			},
		),
		ReaderCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bm25_reader_cache_misses_total",
				Help: "Index reader cache misses.",
			},
		),
		OpenReaders: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bm25_open_readers",
				Help: "Index readers currently held by the cache.",
			},
		),
		StatsCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bm25_stats_cache_hits_total",
				Help: "Document-frequency cache hits.",
			},
		),
		StatsCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bm25_stats_cache_misses_total",
				Help: "Document-frequency cache misses.",
			},
		),
		ShardRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bm25_shard_requests_total",
				Help: "Coordinator requests to shards by operation and status.",
			},
			[]string{"operation", "status"},
		),
		ReloadEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bm25_reload_events_total",
				Help: "Index-complete events processed by status.",
			},
			[]string{"status"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.StatsMergesTotal,
		m.DocFreqLookupsTotal,
		m.ReaderCacheHits,
		m.ReaderCacheMisses,
		m.OpenReaders,
		m.StatsCacheHits,
		m.StatsCacheMisses,
		m.ShardRequestsTotal,
		m.ReloadEventsTotal,
	)

	return m
}

// ObserveSearch records one finished search.
func (m *Metrics) ObserveSearch(strategy string, results int, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	switch {
	case err != nil:
		result = "error"
	case results == 0:
		result = "zero_result"
	}
	m.SearchQueriesTotal.WithLabelValues(strategy, result).Inc()
	m.SearchLatency.WithLabelValues(strategy).Observe(elapsed.Seconds())
	if err == nil {
		m.SearchResultsCount.WithLabelValues(strategy).Observe(float64(results))
	}
}

// ObserveStatsMode records whether a search used distributed statistics.
func (m *Metrics) ObserveStatsMode(distributed bool) {
	if m == nil {
		return
	}
	mode := "local"
	if distributed {
		mode = "distributed"
	}
	m.StatsMergesTotal.WithLabelValues(mode).Inc()
}

func (m *Metrics) ObserveDocFreqLookups(n int) {
	if m == nil {
		return
	}
	m.DocFreqLookupsTotal.Add(float64(n))
}

func (m *Metrics) ObserveReaderCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.ReaderCacheHits.Inc()
	} else {
		m.ReaderCacheMisses.Inc()
	}
}

func (m *Metrics) SetOpenReaders(n int) {
	if m == nil {
		return
	}
	m.OpenReaders.Set(float64(n))
}

func (m *Metrics) ObserveStatsCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.StatsCacheHits.Inc()
	} else {
		m.StatsCacheMisses.Inc()
	}
}

func (m *Metrics) ObserveShardRequest(operation string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ShardRequestsTotal.WithLabelValues(operation, status).Inc()
}

func (m *Metrics) ObserveReload(status string) {
	if m == nil {
		return
	}
	m.ReloadEventsTotal.WithLabelValues(status).Inc()
}

// Handler serves the metrics of g, or of the default registry when g is
// nil.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
