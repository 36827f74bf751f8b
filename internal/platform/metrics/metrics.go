// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package metrics exposes the session daemon's Prometheus collectors.

Collectors are registered on a private registry so tests can create
independent instances without tripping duplicate registration.
*/
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// # Label Values

const (
	OutcomeAnonymous = "anonymous"
	OutcomeDecoded   = "decoded"
	OutcomeCached    = "cached"
	OutcomeMalformed = "malformed"

	ResultSuccess    = "success"
	ResultInvalid    = "invalid_team"
	ResultConcurrent = "concurrent"
	ResultFailed     = "failed"
)

// Metrics holds every collector used by the session engine.
//
// All methods are safe on a nil receiver so components may run unobserved.
type Metrics struct {
	Derivations       *prometheus.CounterVec
	TeamSwitches      *prometheus.CounterVec
	PollTicks         prometheus.Counter
	AppliedGeneration prometheus.Gauge
	Subscribers       prometheus.Gauge
}

// New creates the collectors on registry.
func New(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		Derivations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "careops_session_derivations_total",
				Help: "Total number of snapshot derivations by outcome",
			},
			[]string{"outcome"},
		),
		TeamSwitches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "careops_session_team_switches_total",
				Help: "Total number of team switch attempts by result",
			},
			[]string{"result"},
		),
		PollTicks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "careops_session_poll_ticks_total",
				Help: "Total number of credential store polls",
			},
		),
		AppliedGeneration: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "careops_session_applied_generation",
				Help: "Generation of the currently applied snapshot",
			},
		),
		Subscribers: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "careops_session_subscribers",
				Help: "Number of active snapshot subscribers",
			},
		),
	}
}

// NewRegistry creates a registry carrying the runtime collectors and the session metrics.
func NewRegistry() (*prometheus.Registry, *Metrics) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry, New(registry)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(registry prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// # Recording

func (m *Metrics) ObserveDerivation(outcome string) {
	if m == nil {
		return
	}
	m.Derivations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveTeamSwitch(result string) {
	if m == nil {
		return
	}
	m.TeamSwitches.WithLabelValues(result).Inc()
}

func (m *Metrics) ObservePoll() {
	if m == nil {
		return
	}
	m.PollTicks.Inc()
}

func (m *Metrics) SetGeneration(generation uint64) {
	if m == nil {
		return
	}
	m.AppliedGeneration.Set(float64(generation))
}

func (m *Metrics) AddSubscribers(delta int) {
	if m == nil {
		return
	}
	m.Subscribers.Add(float64(delta))
}
