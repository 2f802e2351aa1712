package crawler

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the crawl. It satisfies the
// fetcher and checkpoint recorder interfaces.
type Metrics struct {
	Registry        *prometheus.Registry
	PagesTotal      prometheus.Counter
	ListingsTotal   *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	RetriesTotal    prometheus.Counter
	ErrorsTotal     *prometheus.CounterVec
	SnapshotsTotal  *prometheus.CounterVec

	retries int64
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	pages := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crawler_pages_total",
			Help: "Total index pages processed.",
		},
	)
	listings := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_listings_total",
			Help: "Listings handled, by outcome.",
		},
		[]string{"status"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crawler_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crawler_retries_total",
			Help: "Total fetch retry attempts.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_errors_total",
			Help: "Fetch errors by type.",
		},
		[]string{"error_type"},
	)
	snapshots := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_snapshots_total",
			Help: "Checkpoint snapshot attempts by result.",
		},
		[]string{"result"},
	)

	registry.MustRegister(pages, listings, requestDuration, retries, errorsTotal, snapshots)

	return &Metrics{
		Registry:        registry,
		PagesTotal:      pages,
		ListingsTotal:   listings,
		RequestDuration: requestDuration,
		RetriesTotal:    retries,
		ErrorsTotal:     errorsTotal,
		SnapshotsTotal:  snapshots,
	}
}

// IncPage increments the processed-pages counter.
func (m *Metrics) IncPage() {
	if m == nil {
		return
	}
	m.PagesTotal.Inc()
}

// IncListing increments the listings counter for an outcome label.
func (m *Metrics) IncListing(status string) {
	if m == nil {
		return
	}
	m.ListingsTotal.WithLabelValues(status).Inc()
}

// ObserveRequest records an HTTP request duration.
func (m *Metrics) ObserveRequest(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// AddRetry counts a fetch retry attempt.
func (m *Metrics) AddRetry() {
	if m == nil {
		return
	}
	atomic.AddInt64(&m.retries, 1)
	m.RetriesTotal.Inc()
}

// Retries returns the retry count for the run summary.
func (m *Metrics) Retries() int {
	if m == nil {
		return 0
	}
	return int(atomic.LoadInt64(&m.retries))
}

// IncError counts a fetch error by classification label.
func (m *Metrics) IncError(label string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(label).Inc()
}

// IncSnapshot counts a checkpoint snapshot attempt.
func (m *Metrics) IncSnapshot(result string) {
	if m == nil {
		return
	}
	m.SnapshotsTotal.WithLabelValues(result).Inc()
}
