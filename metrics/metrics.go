package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/poiesic/servicefinder/reembed"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config controls metric naming and the optional runtime collectors.
type Config struct {
	Namespace               string
	EnableDefaultCollectors bool
}

// DefaultConfig returns the configuration used by the server.
func DefaultConfig() Config {
	return Config{Namespace: "servicefinder", EnableDefaultCollectors: true}
}

// Metrics holds every collector registered by the service.
type Metrics struct {
	Registry *prometheus.Registry

	recordsTotal     *prometheus.CounterVec
	recordDuration   prometheus.Histogram
	batchesTotal     prometheus.Counter
	batchDuration    prometheus.Histogram
	batchFailures    prometheus.Counter
	searchesTotal    *prometheus.CounterVec
	searchDuration   *prometheus.HistogramVec
	searchCandidates *prometheus.HistogramVec
	searchResults    *prometheus.HistogramVec
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
}

var _ reembed.Observer = (*Metrics)(nil)

// New creates a Metrics instance with a private registry.
func New(cfg Config) *Metrics {
	ns := cfg.Namespace
	m := &Metrics{Registry: prometheus.NewRegistry()}

	m.recordsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "embedding", Name: "records_total",
		Help: "Records processed by the embedding job",
	}, []string{"status"})
	m.recordDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: ns, Subsystem: "embedding", Name: "record_duration_seconds",
		Help:    "Time to compose, embed and store one record",
		Buckets: prometheus.DefBuckets,
	})
	m.batchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "embedding", Name: "batches_total",
		Help: "Batches completed by the embedding job",
	})
	m.batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: ns, Subsystem: "embedding", Name: "batch_duration_seconds",
		Help:    "Wall time of one embedding batch",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})
	m.batchFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "embedding", Name: "batch_failures_total",
		Help: "Failed records summed over batches",
	})
	m.searchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "search", Name: "requests_total",
		Help: "Search calls by mode and outcome",
	}, []string{"mode", "status"})
	m.searchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns, Subsystem: "search", Name: "duration_seconds",
		Help:    "Search latency including the query embedding",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})
	m.searchCandidates = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns, Subsystem: "search", Name: "candidates",
		Help:    "Candidates returned by the vector index per search",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	}, []string{"mode"})
	m.searchResults = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns, Subsystem: "search", Name: "results",
		Help:    "Ranked results returned per search",
		Buckets: prometheus.LinearBuckets(0, 5, 10),
	}, []string{"mode"})
	m.requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "http", Name: "requests_total",
		Help: "HTTP requests by route and status code",
	}, []string{"route", "code"})
	m.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns, Subsystem: "http", Name: "request_duration_seconds",
		Help:    "HTTP request latency by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	m.Registry.MustRegister(
		m.recordsTotal,
		m.recordDuration,
		m.batchesTotal,
		m.batchDuration,
		m.batchFailures,
		m.searchesTotal,
		m.searchDuration,
		m.searchCandidates,
		m.searchResults,
		m.requestsTotal,
		m.requestDuration,
	)

	if cfg.EnableDefaultCollectors {
		m.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// OnRecord implements reembed.Observer.
func (m *Metrics) OnRecord(_ string, err error, elapsed time.Duration) {
	m.recordsTotal.WithLabelValues(status(err)).Inc()
	m.recordDuration.Observe(elapsed.Seconds())
}

// OnBatch implements reembed.Observer.
func (m *Metrics) OnBatch(_, _, failed int, elapsed time.Duration) {
	m.batchesTotal.Inc()
	m.batchFailures.Add(float64(failed))
	m.batchDuration.Observe(elapsed.Seconds())
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(route string, code int, elapsed time.Duration) {
	m.requestsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func status(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
