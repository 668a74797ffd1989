package server

import (
	"net/http"
	"time"

	"github.com/kevinmichaelchen/project-summary/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "project_summary"

// Metrics is registered on its own registry so that several servers can
// live in one process (tests).
type Metrics struct {
	registry         *prometheus.Registry
	submissions      *prometheus.CounterVec
	extractorFailure *prometheus.CounterVec
	summarizeSeconds *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Submissions handled, by outcome (ok, empty or an error kind).",
		}, []string{"outcome"}),
		extractorFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractor_failures_total",
			Help:      "Extractor failures by source and kind.",
		}, []string{"source", "kind"}),
		summarizeSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "summarize_duration_seconds",
			Help:      "Time spent in the summarization model.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.submissions,
		m.extractorFailure,
		m.summarizeSeconds,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ExtractorFailed(source string, kind models.ErrorKind) {
	m.extractorFailure.WithLabelValues(source, string(kind)).Inc()
}

func (m *Metrics) Summarized(d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.summarizeSeconds.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *Metrics) submission(res models.Result) {
	outcome := "ok"
	switch {
	case res.Err != nil:
		outcome = string(res.Err.Kind)
	case res.Summary == models.NoDetailsFound:
		outcome = "empty"
	}
	m.submissions.WithLabelValues(outcome).Inc()
}
