// Package metrics holds the Prometheus metrics for the gateway.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	registry *prometheus.Registry

	// Turn metrics
	TurnsTotal   *prometheus.CounterVec
	TurnDuration *prometheus.HistogramVec

	// Session metrics
	SessionsActive  prometheus.Gauge
	SessionsTotal   *prometheus.CounterVec
	SessionDuration prometheus.Histogram
	FormsCompleted  prometheus.Counter

	// Provider metrics
	ProviderRequestsTotal *prometheus.CounterVec

	// Audio metrics
	AudioBytesTotal *prometheus.CounterVec

	// Error metrics
	ErrorsTotal *prometheus.CounterVec
}

// New creates a Metrics instance with all metrics registered on a private
// registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "vozcredit"
	}

	registry := prometheus.NewRegistry()

	turnsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of conversation turns",
		},
		[]string{"outcome"},
	)

	turnDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Turn duration from utterance receipt to reply audio sent",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"outcome"},
	)

	sessionsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of active voice sessions",
		},
	)

	sessionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of voice sessions",
		},
		[]string{"status"},
	)

	sessionDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Voice session duration in seconds",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	formsCompleted := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forms_completed_total",
			Help:      "Total number of credit applications completed by voice",
		},
	)

	providerRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Total upstream provider requests",
		},
		[]string{"provider", "op", "status"},
	)

	audioBytesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_total",
			Help:      "Total audio bytes processed",
		},
		[]string{"direction"},
	)

	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total number of errors",
		},
		[]string{"stage", "error_type"},
	)

	registry.MustRegister(
		turnsTotal,
		turnDuration,
		sessionsActive,
		sessionsTotal,
		sessionDuration,
		formsCompleted,
		providerRequestsTotal,
		audioBytesTotal,
		errorsTotal,
	)

	return &Metrics{
		registry:              registry,
		TurnsTotal:            turnsTotal,
		TurnDuration:          turnDuration,
		SessionsActive:        sessionsActive,
		SessionsTotal:         sessionsTotal,
		SessionDuration:       sessionDuration,
		FormsCompleted:        formsCompleted,
		ProviderRequestsTotal: providerRequestsTotal,
		AudioBytesTotal:       audioBytesTotal,
		ErrorsTotal:           errorsTotal,
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordTurn records a completed turn.
func (m *Metrics) RecordTurn(outcome string, duration time.Duration) {
	m.TurnsTotal.WithLabelValues(outcome).Inc()
	m.TurnDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordSessionStart records a new session starting.
func (m *Metrics) RecordSessionStart() {
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a session ending.
func (m *Metrics) RecordSessionEnd(status string, duration time.Duration) {
	m.SessionsActive.Dec()
	m.SessionsTotal.WithLabelValues(status).Inc()
	m.SessionDuration.Observe(duration.Seconds())
	if status == "complete" {
		m.FormsCompleted.Inc()
	}
}

// RecordProviderRequest records an upstream provider call.
func (m *Metrics) RecordProviderRequest(provider, op, status string) {
	m.ProviderRequestsTotal.WithLabelValues(provider, op, status).Inc()
}

// RecordAudio records audio bytes moved through the gateway.
func (m *Metrics) RecordAudio(direction string, bytes int) {
	m.AudioBytesTotal.WithLabelValues(direction).Add(float64(bytes))
}

// RecordError records a pipeline error.
func (m *Metrics) RecordError(stage, errorType string) {
	m.ErrorsTotal.WithLabelValues(stage, errorType).Inc()
}
