package safety

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientState(t *testing.T) {
	params, err := Resolve(chainA(), chainB(), unbonding21Days, nil)
	require.NoError(t, err)

	cs, err := NewClientState("chain-a-1", params, 42)
	require.NoError(t, err)
	assert.Equal(t, "chain-a-1", cs.ChainId)
	assert.Equal(t, uint64(1), cs.LatestHeight.RevisionNumber)
	assert.Equal(t, uint64(42), cs.LatestHeight.RevisionHeight)
	assert.Equal(t, DefaultUpgradePath, cs.UpgradePath)

	view := ViewFromClientState(cs)
	assert.Equal(t, 24*time.Second, view.MaxClockDrift)
	assert.Equal(t, 120_000*time.Second, view.TrustingPeriod)
	assert.Equal(t, NewFraction(13, 23), view.TrustThreshold)
	require.NoError(t, VerifyEmbedded(params, view))
}

func TestNewClientStateRejectsInvalidParams(t *testing.T) {
	params := EffectiveClientParams{
		MaxClockDrift:   time.Second,
		TrustingPeriod:  time.Hour,
		TrustThreshold:  TwoThirds,
		UnbondingPeriod: time.Hour,
	}
	_, err := NewClientState("chain-a-1", params, 1)
	require.Error(t, err)
}

func TestVerifyEmbeddedMismatch(t *testing.T) {
	expected := EffectiveClientParams{
		MaxClockDrift:  24 * time.Second,
		TrustingPeriod: 120_000 * time.Second,
		TrustThreshold: NewFraction(13, 23),
	}
	view := ClientStateView{
		ChainID:        "chain-a",
		MaxClockDrift:  21 * time.Second,
		TrustingPeriod: 120_000 * time.Second,
		TrustThreshold: TwoThirds,
	}

	err := VerifyEmbedded(expected, view)
	require.ErrorIs(t, err, ErrClientStateMismatch)
	assert.Contains(t, err.Error(), "max_clock_drift: observed 21s, expected 24s")
	assert.Contains(t, err.Error(), "trust_threshold: observed 2/3, expected 13/23")
	assert.NotContains(t, err.Error(), "trusting_period")
}
