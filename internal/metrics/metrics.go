// Package metrics exposes Prometheus collectors for the storage pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "discloud"

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics groups the service's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	chunksSent        prometheus.Counter
	uploads           *prometheus.CounterVec
	downloads         *prometheus.CounterVec
	deletes           *prometheus.CounterVec
	reconcileDuration prometheus.Histogram
	reconcileDropped  *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		chunksSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_sent_total",
			Help:      "Attachment messages posted to the transport.",
		}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Upload requests by result.",
		}, []string{"result"}),
		downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Download requests by result.",
		}, []string{"result"}),
		deletes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deletes_total",
			Help:      "Delete requests by result.",
		}, []string{"result"}),
		reconcileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconcile_duration_seconds",
			Help:      "Time to rebuild a catalog view against the transport.",
			Buckets:   prometheus.DefBuckets,
		}),
		reconcileDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_dropped_total",
			Help:      "Catalog items left out of a view, by reason.",
		}, []string{"reason"}),
	}

	m.registry.MustRegister(
		m.chunksSent,
		m.uploads,
		m.downloads,
		m.deletes,
		m.reconcileDuration,
		m.reconcileDropped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ChunkSent() {
	if m == nil {
		return
	}
	m.chunksSent.Inc()
}

func (m *Metrics) Upload(err error) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) Download(err error) {
	if m == nil {
		return
	}
	m.downloads.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) Delete(err error) {
	if m == nil {
		return
	}
	m.deletes.WithLabelValues(result(err)).Inc()
}

// ReconcileDone observes one rebuild's duration in seconds.
func (m *Metrics) ReconcileDone(seconds float64) {
	if m == nil {
		return
	}
	m.reconcileDuration.Observe(seconds)
}

// Dropped counts an item left out of a view.
func (m *Metrics) Dropped(reason string) {
	if m == nil {
		return
	}
	m.reconcileDropped.WithLabelValues(reason).Inc()
}

func result(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}
