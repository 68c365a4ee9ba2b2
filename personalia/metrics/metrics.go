// Package metrics exports polling and circuit breaker activity as
// Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/personalia-io/personalia-sdk-go/internal/httpx"
	"github.com/personalia-io/personalia-sdk-go/personalia/poll"
)

// Observer implements poll.Observer. Register one per registry.
type Observer struct {
	// Rounds counts status checks by outcome
	Rounds *prometheus.CounterVec
	// CheckErrors counts failed status checks by classification kind
	CheckErrors *prometheus.CounterVec
	// Finished counts Wait calls by result
	Finished *prometheus.CounterVec
	// Duration tracks how long Wait calls took
	Duration *prometheus.HistogramVec
	// CircuitState is the breaker state: 0 closed, 1 open, 2 half-open
	CircuitState prometheus.Gauge
}

// New registers the collectors with reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Observer {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Observer{
		Rounds: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "personalia_poll_rounds_total",
				Help: "Total number of content status checks",
			},
			[]string{"outcome"},
		),
		CheckErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "personalia_poll_check_errors_total",
				Help: "Total number of failed content status checks",
			},
			[]string{"kind", "disposition"},
		),
		Finished: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "personalia_poll_finished_total",
				Help: "Total number of finished content waits",
			},
			[]string{"result"},
		),
		Duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "personalia_poll_duration_seconds",
				Help:    "Time spent waiting for content in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
			},
			[]string{"result"},
		),
		CircuitState: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "personalia_circuit_breaker_state",
				Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
			},
		),
	}
}

// OnRound implements poll.Observer.
func (o *Observer) OnRound(e poll.RoundEvent) {
	o.Rounds.WithLabelValues(e.Outcome.String()).Inc()
	if e.Err != nil {
		o.CheckErrors.WithLabelValues(string(e.Err.Kind), e.Err.Disposition.String()).Inc()
	}
}

// OnFinish implements poll.Observer.
func (o *Observer) OnFinish(e poll.FinishEvent) {
	result := string(e.Result)
	o.Finished.WithLabelValues(result).Inc()
	o.Duration.WithLabelValues(result).Observe(e.Elapsed.Seconds())
}

// OnCircuitStateChange records breaker transitions. It matches the
// breaker's state change hook.
func (o *Observer) OnCircuitStateChange(from, to httpx.CircuitState) {
	o.CircuitState.Set(float64(to))
}
