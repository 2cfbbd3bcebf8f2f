package safety

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/MoonbridgeInc/hermes/internal/retry"
)

const unbonding21Days = 21 * 24 * time.Hour

func durationPtr(d time.Duration) *time.Duration { return &d }

// chainA and chainB mirror a two-chain setup with distinct tolerances
func chainA() ChainSafetyConfig {
	return ChainSafetyConfig{
		ChainID:        "chain-a",
		ClockDrift:     3 * time.Second,
		MaxBlockTime:   5 * time.Second,
		TrustThreshold: NewFraction(13, 23),
		TrustingPeriod: durationPtr(120_000 * time.Second),
	}
}

func chainB() ChainSafetyConfig {
	return ChainSafetyConfig{
		ChainID:        "chain-b",
		ClockDrift:     6 * time.Second,
		MaxBlockTime:   15 * time.Second,
		TrustThreshold: TwoThirds,
		TrustingPeriod: durationPtr(340_000 * time.Second),
	}
}

type mockUnbondingQuerier struct {
	mock.Mock
}

func (m *mockUnbondingQuerier) QueryUnbondingPeriod(ctx context.Context) (time.Duration, error) {
	args := m.Called(ctx)
	return args.Get(0).(time.Duration), args.Error(1)
}

func testResolver() *Resolver {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	return NewResolver(logger).WithRetry(retry.Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
		Multiplier:   1,
	})
}

// TestClientDefaults checks the parameters derived from chain configs alone
func TestClientDefaults(t *testing.T) {
	aOnB, err := Resolve(chainA(), chainB(), unbonding21Days, nil)
	require.NoError(t, err)
	assert.Equal(t, 24*time.Second, aOnB.MaxClockDrift)
	assert.Equal(t, 120_000*time.Second, aOnB.TrustingPeriod)
	assert.Equal(t, NewFraction(13, 23), aOnB.TrustThreshold)
	assert.Equal(t, unbonding21Days, aOnB.UnbondingPeriod)

	bOnA, err := Resolve(chainB(), chainA(), unbonding21Days, nil)
	require.NoError(t, err)
	assert.Equal(t, 14*time.Second, bOnA.MaxClockDrift)
	assert.Equal(t, 340_000*time.Second, bOnA.TrustingPeriod)
	assert.Equal(t, TwoThirds, bOnA.TrustThreshold)
}

// TestClientOptions checks that create options override every derived value
func TestClientOptions(t *testing.T) {
	threshold := NewFraction(13, 23)
	opts := &ClientCreateOptions{
		MaxClockDrift:  durationPtr(3 * time.Second),
		TrustingPeriod: durationPtr(120_000 * time.Second),
		TrustThreshold: &threshold,
	}

	// chain configs deliberately disagree with the options
	subject := chainA()
	subject.TrustThreshold = TwoThirds
	subject.TrustingPeriod = durationPtr(time.Hour)

	params, err := Resolve(subject, chainB(), unbonding21Days, opts)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, params.MaxClockDrift)
	assert.Equal(t, 120_000*time.Second, params.TrustingPeriod)
	assert.Equal(t, NewFraction(13, 23), params.TrustThreshold)

	twoThirds := TwoThirds
	params, err = Resolve(chainB(), chainA(), unbonding21Days, &ClientCreateOptions{
		MaxClockDrift:  durationPtr(6 * time.Second),
		TrustingPeriod: durationPtr(340_000 * time.Second),
		TrustThreshold: &twoThirds,
	})
	require.NoError(t, err)
	assert.Equal(t, 6*time.Second, params.MaxClockDrift)
	assert.Equal(t, 340_000*time.Second, params.TrustingPeriod)
	assert.Equal(t, TwoThirds, params.TrustThreshold)
}

func TestResolveDerivesTrustingPeriodAndThreshold(t *testing.T) {
	subject := chainA()
	subject.TrustingPeriod = nil
	subject.TrustThreshold = NewFraction(0, 0)

	params, err := Resolve(subject, chainB(), 30*time.Hour, nil)
	require.NoError(t, err)
	assert.Equal(t, 20*time.Hour, params.TrustingPeriod)
	assert.Equal(t, DefaultTrustThreshold, params.TrustThreshold)
}

func TestResolveErrors(t *testing.T) {
	oneThird := NewFraction(1, 3)
	aboveOne := NewFraction(4, 3)
	zeroDen := NewFraction(1, 0)

	tests := []struct {
		name      string
		subject   func() ChainSafetyConfig
		host      func() ChainSafetyConfig
		unbonding time.Duration
		opts      *ClientCreateOptions
		wantErr   error
	}{
		{
			name:      "trusting_period_equal_to_unbonding",
			subject:   chainA,
			host:      chainB,
			unbonding: 120_000 * time.Second,
			wantErr:   ErrTrustingPeriodTooLong,
		},
		{
			name:      "trusting_period_override_too_long",
			subject:   chainA,
			host:      chainB,
			unbonding: time.Hour,
			opts:      &ClientCreateOptions{TrustingPeriod: durationPtr(2 * time.Hour)},
			wantErr:   ErrTrustingPeriodTooLong,
		},
		{
			name:      "trusting_period_override_zero",
			subject:   chainA,
			host:      chainB,
			unbonding: time.Hour,
			opts:      &ClientCreateOptions{TrustingPeriod: durationPtr(0)},
			wantErr:   ErrTrustingPeriodZero,
		},
		{
			name: "derived_trusting_period_rounds_to_zero",
			subject: func() ChainSafetyConfig {
				c := chainA()
				c.TrustingPeriod = nil
				return c
			},
			host:      chainB,
			unbonding: time.Nanosecond,
			wantErr:   ErrTrustingPeriodZero,
		},
		{
			name:      "threshold_exactly_one_third",
			subject:   chainA,
			host:      chainB,
			unbonding: unbonding21Days,
			opts:      &ClientCreateOptions{TrustThreshold: &oneThird},
			wantErr:   ErrInvalidTrustThreshold,
		},
		{
			name:      "threshold_above_one",
			subject:   chainA,
			host:      chainB,
			unbonding: unbonding21Days,
			opts:      &ClientCreateOptions{TrustThreshold: &aboveOne},
			wantErr:   ErrInvalidTrustThreshold,
		},
		{
			name:      "threshold_zero_denominator",
			subject:   chainA,
			host:      chainB,
			unbonding: unbonding21Days,
			opts:      &ClientCreateOptions{TrustThreshold: &zeroDen},
			wantErr:   ErrInvalidTrustThreshold,
		},
		{
			name: "negative_clock_drift",
			subject: func() ChainSafetyConfig {
				c := chainA()
				c.ClockDrift = -time.Second
				return c
			},
			host:      chainB,
			unbonding: unbonding21Days,
			wantErr:   ErrInvalidChainConfig,
		},
		{
			name:    "zero_host_block_time",
			subject: chainA,
			host: func() ChainSafetyConfig {
				c := chainB()
				c.MaxBlockTime = 0
				return c
			},
			unbonding: unbonding21Days,
			wantErr:   ErrInvalidChainConfig,
		},
		{
			name:      "zero_unbonding",
			subject:   chainA,
			host:      chainB,
			unbonding: 0,
			wantErr:   ErrInvalidTrustingPeriod,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(tt.subject(), tt.host(), tt.unbonding, tt.opts)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			if errors.Is(tt.wantErr, ErrTrustingPeriodTooLong) || errors.Is(tt.wantErr, ErrTrustingPeriodZero) {
				require.ErrorIs(t, err, ErrInvalidTrustingPeriod)
			}
		})
	}
}

func TestResolveErrorCarriesContext(t *testing.T) {
	_, err := Resolve(chainA(), chainB(), 120_000*time.Second, nil)
	require.ErrorIs(t, err, ErrTrustingPeriodTooLong)
	assert.Contains(t, err.Error(), "chain-a")
	assert.Contains(t, err.Error(), "33h20m0s")
}

func TestResolverQueriesUnbonding(t *testing.T) {
	ctx := context.Background()
	querier := &mockUnbondingQuerier{}
	querier.On("QueryUnbondingPeriod", ctx).Return(time.Duration(0), errors.New("unavailable")).Once()
	querier.On("QueryUnbondingPeriod", ctx).Return(unbonding21Days, nil).Once()

	params, err := testResolver().Resolve(ctx, chainA(), chainB(), querier, nil)
	require.NoError(t, err)
	assert.Equal(t, 24*time.Second, params.MaxClockDrift)
	assert.Equal(t, unbonding21Days, params.UnbondingPeriod)
	querier.AssertNumberOfCalls(t, "QueryUnbondingPeriod", 2)
}

func TestResolverQueryFailure(t *testing.T) {
	ctx := context.Background()
	querier := &mockUnbondingQuerier{}
	querier.On("QueryUnbondingPeriod", ctx).Return(time.Duration(0), errors.New("unavailable"))

	_, err := testResolver().Resolve(ctx, chainA(), chainB(), querier, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to query unbonding period of chain-a")
	querier.AssertNumberOfCalls(t, "QueryUnbondingPeriod", 3)
}

func TestResolvePair(t *testing.T) {
	querierA := &mockUnbondingQuerier{}
	querierA.On("QueryUnbondingPeriod", mock.Anything).Return(unbonding21Days, nil)
	querierB := &mockUnbondingQuerier{}
	querierB.On("QueryUnbondingPeriod", mock.Anything).Return(unbonding21Days, nil)

	pair, err := testResolver().ResolvePair(context.Background(), chainA(), chainB(), querierA, querierB, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 24*time.Second, pair.AOnB.MaxClockDrift)
	assert.Equal(t, 14*time.Second, pair.BOnA.MaxClockDrift)
}

func TestResolvePairFailsWhenOneSideFails(t *testing.T) {
	querierA := &mockUnbondingQuerier{}
	querierA.On("QueryUnbondingPeriod", mock.Anything).Return(unbonding21Days, nil)
	querierB := &mockUnbondingQuerier{}
	// chain B's trusting period 340000s does not fit in one hour
	querierB.On("QueryUnbondingPeriod", mock.Anything).Return(time.Hour, nil)

	_, err := testResolver().ResolvePair(context.Background(), chainA(), chainB(), querierA, querierB, nil, nil)
	require.ErrorIs(t, err, ErrTrustingPeriodTooLong)
}

func TestWithPolicy(t *testing.T) {
	r, err := testResolver().WithPolicy(TrustingPeriodPolicy{Numerator: 1, Denominator: 2})
	require.NoError(t, err)

	subject := chainA()
	subject.TrustingPeriod = nil
	querier := &mockUnbondingQuerier{}
	querier.On("QueryUnbondingPeriod", mock.Anything).Return(10*time.Hour, nil)

	params, err := r.Resolve(context.Background(), subject, chainB(), querier, nil)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Hour, params.TrustingPeriod)

	_, err = testResolver().WithPolicy(TrustingPeriodPolicy{Numerator: 1, Denominator: 1})
	require.ErrorIs(t, err, ErrInvalidTrustingPeriod)
}
