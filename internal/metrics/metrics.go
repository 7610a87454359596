// Package metrics exposes Prometheus collectors for aggregation rounds.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "peerquote"

// Round outcomes.
const (
	RoundWinner         = "winner"
	RoundNoResults      = "no_results"
	RoundDirectoryError = "directory_error"
)

// Peer outcomes.
const (
	PeerResult          = "result"
	PeerConnectionError = "connection_error"
	PeerMakerError      = "maker_error"
	PeerInvalid         = "invalid"
)

// Metrics contains the collectors exported by peerquote.
type Metrics struct {
	// Completed rounds by outcome.
	Rounds *prometheus.CounterVec
	// Wall time from dispatch to the last peer outcome.
	RoundDuration prometheus.Histogram
	// Per-peer call outcomes.
	PeerOutcomes *prometheus.CounterVec
	// Directory entries that did not decode to a locator.
	LocatorsDropped prometheus.Counter
}

// New builds the collectors and registers them with reg. A nil reg leaves
// them unregistered, which is what tests and the query mode use.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Rounds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_total",
			Help:      "Aggregation rounds by outcome.",
		}, []string{"outcome"}),
		RoundDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "round_duration_seconds",
			Help:      "Time from dispatch until every peer call resolved.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}),
		PeerOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "peer_outcomes_total",
			Help:      "Peer call outcomes.",
		}, []string{"outcome"}),
		LocatorsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "locators_dropped_total",
			Help:      "Directory entries that could not be decoded to a locator.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Rounds, m.RoundDuration, m.PeerOutcomes, m.LocatorsDropped)
	}
	return m
}

// Nop returns unregistered collectors.
func Nop() *Metrics {
	return New(nil)
}

// ObserveRound records one finished round.
func (m *Metrics) ObserveRound(outcome string, elapsed time.Duration) {
	m.Rounds.WithLabelValues(outcome).Inc()
	m.RoundDuration.Observe(elapsed.Seconds())
}

// ObservePeer records one peer call outcome.
func (m *Metrics) ObservePeer(outcome string) {
	m.PeerOutcomes.WithLabelValues(outcome).Inc()
}

// DroppedLocators adds n undecodable directory entries.
func (m *Metrics) DroppedLocators(n int) {
	if n > 0 {
		m.LocatorsDropped.Add(float64(n))
	}
}
