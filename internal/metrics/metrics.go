// Package metrics holds the Prometheus collectors for the orb on a private
// registry served at /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "orb"

// Trigger outcomes.
const (
	TriggerAccepted = "accepted"
	TriggerDropped  = "dropped"
)

// Metrics holds all Prometheus metrics for the orb.
type Metrics struct {
	registry *prometheus.Registry

	TriggersTotal    *prometheus.CounterVec
	SessionsTotal    *prometheus.CounterVec
	PhaseDuration    *prometheus.HistogramVec
	RecordingSeconds *prometheus.HistogramVec
	RemoteErrors     *prometheus.CounterVec
	State            prometheus.Gauge
	BreakerState     prometheus.Gauge
}

// New creates a Metrics instance with every collector registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	triggersTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "triggers_total",
			Help:      "Triggers received, by source and whether they started a session",
		},
		[]string{"source", "outcome"},
	)

	sessionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Completed sessions by outcome path",
		},
		[]string{"outcome"},
	)

	phaseDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Time spent in each session phase",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
		},
		[]string{"phase"},
	)

	recordingSeconds := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recording_seconds",
			Help:      "Captured audio length by stop reason",
			Buckets:   []float64{0.5, 1, 2, 3, 5, 8, 12, 20},
		},
		[]string{"reason"},
	)

	remoteErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_errors_total",
			Help:      "Speech service failures by phase and error code",
		},
		[]string{"phase", "code"},
	)

	state := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "session_state",
		Help:      "Current session state (0 ambient, 1 recording, 2 processing, 3 speaking, 4 cooldown)",
	})

	breakerState := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "speech_breaker_state",
		Help:      "Speech service circuit breaker state (0 closed, 1 open, 2 half-open)",
	})

	registry.MustRegister(
		triggersTotal,
		sessionsTotal,
		phaseDuration,
		recordingSeconds,
		remoteErrors,
		state,
		breakerState,
	)

	return &Metrics{
		registry:         registry,
		TriggersTotal:    triggersTotal,
		SessionsTotal:    sessionsTotal,
		PhaseDuration:    phaseDuration,
		RecordingSeconds: recordingSeconds,
		RemoteErrors:     remoteErrors,
		State:            state,
		BreakerState:     breakerState,
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// WatchGain exports the live ambient gain, read at scrape time.
func (m *Metrics) WatchGain(load func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ambient_gain",
		Help:      "Current ambient bed gain",
	}, load))
}

// WatchInboxOverflow exports the number of triggers dropped because the
// inbox buffer was full.
func (m *Metrics) WatchInboxOverflow(load func() uint64) {
	m.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "inbox_overflow_total",
		Help:      "Triggers dropped because the inbox was full",
	}, func() float64 { return float64(load()) }))
}

func (m *Metrics) RecordTrigger(source, outcome string) {
	m.TriggersTotal.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) RecordSession(outcome string) {
	m.SessionsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordPhase(phase string, d time.Duration) {
	m.PhaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

func (m *Metrics) RecordRecording(reason string, d time.Duration) {
	m.RecordingSeconds.WithLabelValues(reason).Observe(d.Seconds())
}

func (m *Metrics) RecordRemoteError(phase, code string) {
	m.RemoteErrors.WithLabelValues(phase, code).Inc()
}

func (m *Metrics) SetState(v int) { m.State.Set(float64(v)) }

func (m *Metrics) SetBreakerState(v int) { m.BreakerState.Set(float64(v)) }
