// Package metrics holds the Prometheus collectors for codequiz. Every
// method is safe on a nil *Metrics so components can run unobserved.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for codequiz.
type Metrics struct {
	// Plugin call metrics
	PluginCalls   *prometheus.CounterVec
	PluginLatency *prometheus.HistogramVec
	InFlight      prometheus.Gauge

	// Quality gate metrics
	QualityVerdicts *prometheus.CounterVec
	QualityScores   *prometheus.HistogramVec

	// Run metrics
	Runs              *prometheus.CounterVec
	QuestionsAccepted *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance registered with registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		PluginCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "codequiz_plugin_calls_total",
				Help: "Total number of plugin generate calls",
			},
			[]string{"type", "outcome"},
		),
		PluginLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "codequiz_plugin_latency_seconds",
				Help:    "Plugin generate call latency in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
			},
			[]string{"type"},
		),
		InFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "codequiz_plugin_calls_in_flight",
				Help: "Number of plugin calls currently running",
			},
		),
		QualityVerdicts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "codequiz_quality_verdicts_total",
				Help: "Quality gate decisions by type and verdict",
			},
			[]string{"type", "verdict"},
		),
		QualityScores: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "codequiz_quality_score",
				Help:    "Distribution of quality scores (1-10)",
				Buckets: prometheus.LinearBuckets(1, 1, 10),
			},
			[]string{"type"},
		),
		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "codequiz_runs_total",
				Help: "Total number of orchestrator runs",
			},
			[]string{"complete"},
		),
		QuestionsAccepted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "codequiz_questions_accepted_total",
				Help: "Questions accepted and delivered, by type",
			},
			[]string{"type"},
		),
	}
}

// NewRegistry creates a fresh registry with the metrics registered.
func NewRegistry() (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	return reg, NewMetrics(reg)
}

// HandlerFor returns the /metrics handler for reg.
func HandlerFor(reg prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Verdict labels used with ObserveVerdict.
const (
	VerdictAccepted    = "accepted"
	VerdictRejected    = "rejected"
	VerdictPrefiltered = "prefiltered"
	VerdictFailed      = "failed"
)

// ObservePluginCall records one finished plugin call.
func (m *Metrics) ObservePluginCall(qtype, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.PluginCalls.WithLabelValues(qtype, outcome).Inc()
	m.PluginLatency.WithLabelValues(qtype).Observe(d.Seconds())
}

// CallStarted and CallFinished track in-flight plugin calls.
func (m *Metrics) CallStarted() {
	if m != nil {
		m.InFlight.Inc()
	}
}

func (m *Metrics) CallFinished() {
	if m != nil {
		m.InFlight.Dec()
	}
}

// ObserveVerdict records a quality decision. score is ignored for
// prefiltered candidates, which never reach the rater.
func (m *Metrics) ObserveVerdict(qtype, verdict string, score int) {
	if m == nil {
		return
	}
	m.QualityVerdicts.WithLabelValues(qtype, verdict).Inc()
	if verdict != VerdictPrefiltered {
		m.QualityScores.WithLabelValues(qtype).Observe(float64(score))
	}
}

// ObserveAccepted counts a question delivered to the caller.
func (m *Metrics) ObserveAccepted(qtype string) {
	if m != nil {
		m.QuestionsAccepted.WithLabelValues(qtype).Inc()
	}
}

// ObserveRun counts a finished run.
func (m *Metrics) ObserveRun(complete bool) {
	if m == nil {
		return
	}
	label := "false"
	if complete {
		label = "true"
	}
	m.Runs.WithLabelValues(label).Inc()
}
