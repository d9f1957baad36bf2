// Package metrics exports Prometheus metrics for the ingestion endpoint.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the ingestion handler reports to.
type Recorder interface {
	ObserveRequest(kind string, status int)
	ObserveCompletion(d time.Duration, err error)
	ObserveAttachments(n int)
}

type Exporter struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	completions *prometheus.HistogramVec
	attachments prometheus.Counter
}

// NewExporter registers the chat metrics on a fresh registry.
func NewExporter() *Exporter {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	e := &Exporter{registry: registry}

	e.requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "neurosci",
			Subsystem: "chat",
			Name:      "requests_total",
			Help:      "Ingestion requests by payload kind and response status",
		},
		[]string{"kind", "status"},
	)

	e.completions = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "neurosci",
			Subsystem: "llm",
			Name:      "completion_latency_seconds",
			Help:      "Latency of completion provider calls",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"outcome"},
	)

	e.attachments = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "neurosci",
			Subsystem: "chat",
			Name:      "attachments_total",
			Help:      "Attachment names announced to the completion provider",
		},
	)

	registry.MustRegister(e.requests, e.completions, e.attachments)
	return e
}

func (e *Exporter) ObserveRequest(kind string, status int) {
	e.requests.WithLabelValues(kind, strconv.Itoa(status)).Inc()
}

func (e *Exporter) ObserveCompletion(d time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	e.completions.WithLabelValues(outcome).Observe(d.Seconds())
}

func (e *Exporter) ObserveAttachments(n int) {
	e.attachments.Add(float64(n))
}

func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Nop discards observations.
type Nop struct{}

func (Nop) ObserveRequest(string, int)             {}
func (Nop) ObserveCompletion(time.Duration, error) {}
func (Nop) ObserveAttachments(int)                 {}
