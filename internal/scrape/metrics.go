package scrape

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the crawl engine on a dedicated
// registry.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   prometheus.Counter
	RequestDuration prometheus.Histogram
	ItemsTotal      *prometheus.CounterVec
	RetriesTotal    prometheus.Counter
	ErrorsTotal     *prometheus.CounterVec
	PagesSkipped    prometheus.Counter
}

// NewMetrics constructs and registers all collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shopcrawl_requests_total",
		Help: "Total successful fetches.",
	})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "shopcrawl_request_duration_seconds",
		Help:    "Fetch latency.",
		Buckets: prometheus.DefBuckets,
	})
	items := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shopcrawl_items_extracted_total",
		Help: "Records extracted, by kind.",
	}, []string{"kind"})
	retries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shopcrawl_retries_total",
		Help: "Fetch retry attempts.",
	})
	errorsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shopcrawl_errors_total",
		Help: "Fetch errors by type.",
	}, []string{"error_type"})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shopcrawl_pages_skipped_total",
		Help: "Pages skipped after fetch failure.",
	})

	registry.MustRegister(requests, duration, items, retries, errorsTotal, skipped)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: duration,
		ItemsTotal:      items,
		RetriesTotal:    retries,
		ErrorsTotal:     errorsTotal,
		PagesSkipped:    skipped,
	}
}

// IncRequest counts one successful fetch.
func (m *Metrics) IncRequest() {
	if m == nil {
		return
	}
	m.RequestsTotal.Inc()
}

// ObserveDuration records one fetch latency sample.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncItems counts extracted records of a kind.
func (m *Metrics) IncItems(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ItemsTotal.WithLabelValues(kind).Add(float64(n))
}

// IncRetry counts one scheduled retry.
func (m *Metrics) IncRetry() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError counts one fetch error by type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncSkipped counts one page abandoned after exhausting its retry budget.
func (m *Metrics) IncSkipped() {
	if m == nil {
		return
	}
	m.PagesSkipped.Inc()
}
