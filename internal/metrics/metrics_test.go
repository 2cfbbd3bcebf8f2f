package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := New("relayer", registry)
	require.NoError(t, err)

	m.ObserveQuote("chain-b", "stake", true, 0.25)
	m.ObserveQuote("chain-b", "stake", true, 0.3)
	m.QuoteFailed("chain-b")
	m.ObserveCongestion("chain-b", "stake", 0.25)
	m.ObserveResolution("chain-a", "chain-b", nil)
	m.ObserveResolution("chain-a", "chain-b", errors.New("too long"))
	m.ObserveFeePaid("chain-b", "stake", 1500)
	m.SettlementTimedOut("chain-b")

	assert.Equal(t, 0.3, testutil.ToFloat64(m.gasPrice.WithLabelValues("chain-b", "stake", "dynamic")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.quotes.WithLabelValues("chain-b", "dynamic")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.quoteFailures.WithLabelValues("chain-b")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.resolutions.WithLabelValues("chain-a", "chain-b", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.resolutions.WithLabelValues("chain-a", "chain-b", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.settlementFails.WithLabelValues("chain-b")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.feePaid))
}

func TestDuplicateRegistrationFails(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := New("relayer", registry)
	require.NoError(t, err)

	_, err = New("relayer", registry)
	require.Error(t, err)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveQuote("chain-b", "stake", false, 1)
		m.QuoteFailed("chain-b")
		m.ObserveCongestion("chain-b", "stake", 1)
		m.ObserveResolution("a", "b", nil)
		m.ObserveFeePaid("chain-b", "stake", 1)
		m.SettlementTimedOut("chain-b")
	})
}
