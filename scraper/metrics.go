package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for fetching and crawling.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	RetriesTotal    prometheus.Counter
	ErrorsTotal     *prometheus.CounterVec
	ListingsTotal   *prometheus.CounterVec
	UnitsTotal      *prometheus.CounterVec
	UnitsInFlight   prometheus.Gauge
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobscan_requests_total",
			Help: "Total HTTP requests issued by the fetch client.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "jobscan_request_duration_seconds",
			Help:    "HTTP request latency for listing pages.",
			Buckets: prometheus.DefBuckets,
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "jobscan_retries_total",
			Help: "Total number of retry attempts.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobscan_errors_total",
			Help: "Total number of fetch errors by type.",
		},
		[]string{"error_type"},
	)
	listings := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobscan_listings_extracted_total",
			Help: "Job listings emitted per site.",
		},
		[]string{"site"},
	)
	units := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobscan_units_total",
			Help: "Completed (site, query) units by outcome.",
		},
		[]string{"outcome"},
	)
	inFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "jobscan_units_in_flight",
			Help: "Units currently being fetched or extracted.",
		},
	)

	registry.MustRegister(requests, requestDuration, retries, errorsTotal, listings, units, inFlight)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		RetriesTotal:    retries,
		ErrorsTotal:     errorsTotal,
		ListingsTotal:   listings,
		UnitsTotal:      units,
		UnitsInFlight:   inFlight,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// AddListings counts listings emitted for a site.
func (m *Metrics) AddListings(site string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.ListingsTotal.WithLabelValues(site).Add(float64(n))
}

// IncUnit counts a finished unit with outcome "ok" or "error".
func (m *Metrics) IncUnit(outcome string) {
	if m == nil {
		return
	}
	m.UnitsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) unitStarted() {
	if m == nil {
		return
	}
	m.UnitsInFlight.Inc()
}

func (m *Metrics) unitDone() {
	if m == nil {
		return
	}
	m.UnitsInFlight.Dec()
}
