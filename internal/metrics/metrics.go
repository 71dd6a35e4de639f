// Package metrics provides Prometheus metrics for the exploration engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	StagesTotal        *prometheus.CounterVec
	StageDuration      *prometheus.HistogramVec
	ProviderCallsTotal *prometheus.CounterVec
	RetriesTotal       prometheus.Counter
	SynthesesTotal     *prometheus.CounterVec
	ArtifactsTotal     *prometheus.CounterVec
	JourneysActive     prometheus.Gauge
	TokensTotal        *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		StagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "expedition_stages_total",
				Help: "Total stages executed by type and status.",
			},
			[]string{"type", "status"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "expedition_stage_duration_seconds",
				Help:    "Stage execution duration by type.",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
			},
			[]string{"type"},
		),
		ProviderCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "expedition_provider_calls_total",
				Help: "Provider calls by provider id and outcome.",
			},
			[]string{"provider", "outcome"},
		),
		RetriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "expedition_provider_retries_total",
				Help: "Total provider call retries.",
			},
		),
		SynthesesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "expedition_syntheses_total",
				Help: "Synthesis attempts by outcome.",
			},
			[]string{"outcome"},
		),
		ArtifactsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "expedition_artifacts_total",
				Help: "Extracted artifacts by type.",
			},
			[]string{"type"},
		),
		JourneysActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "expedition_journeys_active",
				Help: "Number of journeys currently running.",
			},
		),
		TokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "expedition_tokens_total",
				Help: "Token usage by provider and direction.",
			},
			[]string{"provider", "direction"},
		),
		registry: reg,
	}

	reg.MustRegister(m.StagesTotal)
	reg.MustRegister(m.StageDuration)
	reg.MustRegister(m.ProviderCallsTotal)
	reg.MustRegister(m.RetriesTotal)
	reg.MustRegister(m.SynthesesTotal)
	reg.MustRegister(m.ArtifactsTotal)
	reg.MustRegister(m.JourneysActive)
	reg.MustRegister(m.TokensTotal)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordStage increments the stage counter and duration histogram.
func (m *Metrics) RecordStage(stageType, status string, seconds float64) {
	m.StagesTotal.WithLabelValues(stageType, status).Inc()
	m.StageDuration.WithLabelValues(stageType).Observe(seconds)
}

// RecordProviderCall increments the provider call counter.
func (m *Metrics) RecordProviderCall(provider, outcome string) {
	m.ProviderCallsTotal.WithLabelValues(provider, outcome).Inc()
}

// RecordSynthesis increments the synthesis counter.
func (m *Metrics) RecordSynthesis(outcome string) {
	m.SynthesesTotal.WithLabelValues(outcome).Inc()
}

// RecordArtifacts increments the artifact counter per extracted type.
func (m *Metrics) RecordArtifacts(byType map[string]int) {
	for t, n := range byType {
		m.ArtifactsTotal.WithLabelValues(t).Add(float64(n))
	}
}

// RecordTokens adds token usage for one provider call.
func (m *Metrics) RecordTokens(provider string, prompt, completion int) {
	m.TokensTotal.WithLabelValues(provider, "prompt").Add(float64(prompt))
	m.TokensTotal.WithLabelValues(provider, "completion").Add(float64(completion))
}
