// Package metrics exposes prometheus metrics for gas price quotes, client
// parameter resolution and fee measurements. A nil *Metrics is valid and
// records nothing.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the relayer policy collectors
type Metrics struct {
	gasPrice        *prometheus.GaugeVec
	quotes          *prometheus.CounterVec
	quoteFailures   *prometheus.CounterVec
	congestion      *prometheus.GaugeVec
	resolutions     *prometheus.CounterVec
	feePaid         *prometheus.HistogramVec
	settlementFails *prometheus.CounterVec
}

// New creates and registers the collectors under namespace
func New(namespace string, registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		gasPrice: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gas_price",
			Help:      "Last quoted price per gas unit",
		}, []string{"chain_id", "denom", "mode"}),
		quotes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gas_price_quotes",
			Help:      "Number of gas price quotes issued",
		}, []string{"chain_id", "mode"}),
		quoteFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gas_price_quote_failures",
			Help:      "Number of gas price quotes that failed",
		}, []string{"chain_id"}),
		congestion: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "congestion_base_fee",
			Help:      "Last observed network base fee",
		}, []string{"chain_id", "denom"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "client_param_resolutions",
			Help:      "Number of client parameter resolutions by outcome",
		}, []string{"subject", "host", "outcome"}),
		feePaid: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "measured_fee_paid",
			Help:      "Fee paid by the relayer account during a measured transfer",
			Buckets:   prometheus.ExponentialBuckets(100, 4, 10),
		}, []string{"chain_id", "denom"}),
		settlementFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlement_timeouts",
			Help:      "Number of measured transfers that did not settle before the deadline",
		}, []string{"chain_id"}),
	}

	err := errors.Join(
		registerer.Register(m.gasPrice),
		registerer.Register(m.quotes),
		registerer.Register(m.quoteFailures),
		registerer.Register(m.congestion),
		registerer.Register(m.resolutions),
		registerer.Register(m.feePaid),
		registerer.Register(m.settlementFails),
	)
	return m, err
}

func mode(dynamic bool) string {
	if dynamic {
		return "dynamic"
	}
	return "static"
}

// ObserveQuote records a successful quote
func (m *Metrics) ObserveQuote(chainID, denom string, dynamic bool, price float64) {
	if m == nil {
		return
	}
	m.gasPrice.WithLabelValues(chainID, denom, mode(dynamic)).Set(price)
	m.quotes.WithLabelValues(chainID, mode(dynamic)).Inc()
}

// QuoteFailed records a failed quote
func (m *Metrics) QuoteFailed(chainID string) {
	if m == nil {
		return
	}
	m.quoteFailures.WithLabelValues(chainID).Inc()
}

// ObserveCongestion records the base fee read from the network
func (m *Metrics) ObserveCongestion(chainID, denom string, baseFee float64) {
	if m == nil {
		return
	}
	m.congestion.WithLabelValues(chainID, denom).Set(baseFee)
}

// ObserveResolution records a client parameter resolution outcome
func (m *Metrics) ObserveResolution(subject, host string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.resolutions.WithLabelValues(subject, host, outcome).Inc()
}

// ObserveFeePaid records a measured fee
func (m *Metrics) ObserveFeePaid(chainID, denom string, paid float64) {
	if m == nil {
		return
	}
	m.feePaid.WithLabelValues(chainID, denom).Observe(paid)
}

// SettlementTimedOut records a transfer that did not settle in time
func (m *Metrics) SettlementTimedOut(chainID string) {
	if m == nil {
		return
	}
	m.settlementFails.WithLabelValues(chainID).Inc()
}
