// Package metrics defines the Prometheus metrics exported by docscraper.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "docscraper"

// Metrics holds the scraper metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	PagesFetchedTotal   *prometheus.CounterVec
	LinksEvaluatedTotal *prometheus.CounterVec
	DocumentsTotal      *prometheus.CounterVec
	FailuresTotal       *prometheus.CounterVec
	BytesDownloaded     prometheus.Counter
	RunsTotal           *prometheus.CounterVec
	RunDurationSeconds  prometheus.Histogram
	RunInProgress       prometheus.Gauge
	LastRunTimestamp    prometheus.Gauge
}

// New creates and registers the metrics on reg, or on the default registerer when reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		PagesFetchedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "pages_fetched_total",
			Help:      "Pages fetched, by source kind and result",
		}, []string{"kind", "result"}),
		LinksEvaluatedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "links_evaluated_total",
			Help:      "Links evaluated by the document filter, by decision reason",
		}, []string{"reason"}),
		DocumentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "documents_total",
			Help:      "Accepted documents, by final status",
		}, []string{"status"}),
		FailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "failures_total",
			Help:      "Non-fatal failures, by pipeline stage and kind",
		}, []string{"stage", "kind"}),
		BytesDownloaded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "bytes_downloaded_total",
			Help:      "Bytes written to downloaded documents",
		}),
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "runs_total",
			Help:      "Completed runs, by outcome",
		}, []string{"outcome"}),
		RunDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of completed runs",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		RunInProgress: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "run_in_progress",
			Help:      "1 while a run is executing",
		}),
		LastRunTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
	}
}

func (m *Metrics) PageFetched(kind string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.PagesFetchedTotal.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) LinkEvaluated(reason string) {
	if m == nil {
		return
	}
	m.LinksEvaluatedTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) Document(status string, bytes int64) {
	if m == nil {
		return
	}
	m.DocumentsTotal.WithLabelValues(status).Inc()
	if bytes > 0 {
		m.BytesDownloaded.Add(float64(bytes))
	}
}

func (m *Metrics) Failure(stage, kind string) {
	if m == nil {
		return
	}
	m.FailuresTotal.WithLabelValues(stage, kind).Inc()
}

// RunStarted marks a run as in progress.
func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.RunInProgress.Set(1)
}

// RunFinished records a finished run.
func (m *Metrics) RunFinished(outcome string, d time.Duration, at time.Time) {
	if m == nil {
		return
	}
	m.RunInProgress.Set(0)
	m.RunsTotal.WithLabelValues(outcome).Inc()
	m.RunDurationSeconds.Observe(d.Seconds())
	m.LastRunTimestamp.Set(float64(at.Unix()))
}
