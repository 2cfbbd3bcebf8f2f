// Package safety resolves the light client safety parameters a relayer embeds
// in a client of one chain hosted on another: maximum clock drift, trusting
// period and trust threshold.
//
// Resolution is a pure function of the two chain configs, the subject chain's
// unbonding period and the optional create options. Both relayers of a path
// compute the same bounds from the same inputs.
package safety

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	errorsmod "cosmossdk.io/errors"
	ibctm "github.com/cosmos/ibc-go/v10/modules/light-clients/07-tendermint"
	"golang.org/x/sync/errgroup"

	"github.com/MoonbridgeInc/hermes/internal/errors"
	"github.com/MoonbridgeInc/hermes/internal/metrics"
	"github.com/MoonbridgeInc/hermes/internal/retry"
)

// ChainSafetyConfig holds the per-chain tolerances from the relayer config.
type ChainSafetyConfig struct {
	ChainID      string
	ClockDrift   time.Duration
	MaxBlockTime time.Duration
	// TrustThreshold is used for clients of this chain; zero means default
	TrustThreshold ibctm.Fraction
	// TrustingPeriod overrides the derived trusting period for clients of this chain
	TrustingPeriod *time.Duration
}

// Validate checks the chain-level invariants.
func (c ChainSafetyConfig) Validate() error {
	if c.ClockDrift < 0 {
		return errorsmod.Wrapf(ErrInvalidChainConfig,
			"chain %s: clock_drift %s must not be negative", c.ChainID, c.ClockDrift)
	}
	if c.MaxBlockTime <= 0 {
		return errorsmod.Wrapf(ErrInvalidChainConfig,
			"chain %s: max_block_time %s must be positive", c.ChainID, c.MaxBlockTime)
	}
	if !IsZeroFraction(c.TrustThreshold) {
		if err := ValidateTrustThreshold(c.ChainID, c.TrustThreshold); err != nil {
			return err
		}
	}
	if c.TrustingPeriod != nil && *c.TrustingPeriod <= 0 {
		return invalidTrustingPeriod(ErrTrustingPeriodZero,
			"chain %s: configured trusting_period is %s", c.ChainID, *c.TrustingPeriod)
	}
	return nil
}

// ClientCreateOptions overrides individual parameters at client creation.
type ClientCreateOptions struct {
	MaxClockDrift  *time.Duration
	TrustingPeriod *time.Duration
	TrustThreshold *ibctm.Fraction
}

// EffectiveClientParams are the values embedded in the client state.
type EffectiveClientParams struct {
	MaxClockDrift   time.Duration
	TrustingPeriod  time.Duration
	TrustThreshold  ibctm.Fraction
	UnbondingPeriod time.Duration
}

// String renders the parameters for logs and CLI output.
func (p EffectiveClientParams) String() string {
	return fmt.Sprintf("max_clock_drift=%s trusting_period=%s trust_threshold=%s unbonding_period=%s",
		p.MaxClockDrift, p.TrustingPeriod, FormatFraction(p.TrustThreshold), p.UnbondingPeriod)
}

// Resolve computes the parameters of a client of subject hosted on host using
// the default trusting period policy.
func Resolve(subject, host ChainSafetyConfig, unbonding time.Duration, opts *ClientCreateOptions) (EffectiveClientParams, error) {
	return DefaultTrustingPeriodPolicy().Resolve(subject, host, unbonding, opts)
}

// Resolve computes the parameters of a client of subject hosted on host.
//
// The host must tolerate the subject's clock skew, its own skew, and one host
// block interval, so the default drift is the sum of all three.
func (p TrustingPeriodPolicy) Resolve(subject, host ChainSafetyConfig, unbonding time.Duration, opts *ClientCreateOptions) (EffectiveClientParams, error) {
	if opts == nil {
		opts = &ClientCreateOptions{}
	}
	if err := subject.Validate(); err != nil {
		return EffectiveClientParams{}, err
	}
	if err := host.Validate(); err != nil {
		return EffectiveClientParams{}, err
	}
	if unbonding <= 0 {
		return EffectiveClientParams{}, errorsmod.Wrapf(ErrInvalidTrustingPeriod,
			"chain %s: unbonding period %s must be positive", subject.ChainID, unbonding)
	}

	params := EffectiveClientParams{UnbondingPeriod: unbonding}

	switch {
	case opts.MaxClockDrift != nil:
		params.MaxClockDrift = *opts.MaxClockDrift
	default:
		params.MaxClockDrift = subject.ClockDrift + host.ClockDrift + host.MaxBlockTime
	}
	if params.MaxClockDrift < 0 {
		return EffectiveClientParams{}, errorsmod.Wrapf(ErrInvalidChainConfig,
			"client of %s on %s: max_clock_drift %s must not be negative",
			subject.ChainID, host.ChainID, params.MaxClockDrift)
	}

	switch {
	case opts.TrustThreshold != nil:
		params.TrustThreshold = *opts.TrustThreshold
	case !IsZeroFraction(subject.TrustThreshold):
		params.TrustThreshold = subject.TrustThreshold
	default:
		params.TrustThreshold = DefaultTrustThreshold
	}
	if err := ValidateTrustThreshold(subject.ChainID, params.TrustThreshold); err != nil {
		return EffectiveClientParams{}, err
	}

	switch {
	case opts.TrustingPeriod != nil:
		params.TrustingPeriod = *opts.TrustingPeriod
	case subject.TrustingPeriod != nil:
		params.TrustingPeriod = *subject.TrustingPeriod
	default:
		if err := p.Validate(); err != nil {
			return EffectiveClientParams{}, errorsmod.Wrap(ErrInvalidTrustingPeriod, err.Error())
		}
		params.TrustingPeriod = p.Derive(unbonding)
	}
	if err := ValidateTrustingPeriod(subject.ChainID, params.TrustingPeriod, unbonding); err != nil {
		return EffectiveClientParams{}, err
	}

	return params, nil
}

// UnbondingQuerier reads the unbonding period of a chain.
type UnbondingQuerier interface {
	QueryUnbondingPeriod(ctx context.Context) (time.Duration, error)
}

// Resolver is the client-creation path: it queries the subject chain's
// unbonding period and resolves the parameters.
type Resolver struct {
	logger   *slog.Logger
	policy   TrustingPeriodPolicy
	retryCfg retry.Config
	metrics  *metrics.Metrics
}

// NewResolver creates a resolver with the default trusting period policy
func NewResolver(logger *slog.Logger) *Resolver {
	return &Resolver{
		logger:   logger,
		policy:   DefaultTrustingPeriodPolicy(),
		retryCfg: retry.DefaultConfig(),
	}
}

// WithPolicy replaces the trusting period policy.
func (r *Resolver) WithPolicy(policy TrustingPeriodPolicy) (*Resolver, error) {
	if err := policy.Validate(); err != nil {
		return nil, errorsmod.Wrap(ErrInvalidTrustingPeriod, err.Error())
	}
	cp := *r
	cp.policy = policy
	return &cp, nil
}

// WithRetry replaces the backoff used for the unbonding period query.
func (r *Resolver) WithRetry(cfg retry.Config) *Resolver {
	cp := *r
	cp.retryCfg = cfg
	return &cp
}

// WithMetrics records resolution outcomes in m.
func (r *Resolver) WithMetrics(m *metrics.Metrics) *Resolver {
	cp := *r
	cp.metrics = m
	return &cp
}

// Resolve queries the subject chain's unbonding period and resolves the
// parameters of a client of subject hosted on host.
func (r *Resolver) Resolve(ctx context.Context, subject, host ChainSafetyConfig, subjectChain UnbondingQuerier, opts *ClientCreateOptions) (EffectiveClientParams, error) {
	unbonding, err := retry.DoWithResult(ctx, r.retryCfg, func() (time.Duration, error) {
		return subjectChain.QueryUnbondingPeriod(ctx)
	})
	if err != nil {
		return EffectiveClientParams{}, errors.Query(err, subject.ChainID, "unbonding period")
	}

	params, err := r.policy.Resolve(subject, host, unbonding, opts)
	r.metrics.ObserveResolution(subject.ChainID, host.ChainID, err)
	if err != nil {
		r.logger.Warn("Client parameter resolution failed",
			"subject", subject.ChainID,
			"host", host.ChainID,
			"error", err)
		return EffectiveClientParams{}, err
	}

	r.logger.Info("Resolved client parameters",
		"subject", subject.ChainID,
		"host", host.ChainID,
		"max_clock_drift", params.MaxClockDrift,
		"trusting_period", params.TrustingPeriod,
		"trust_threshold", FormatFraction(params.TrustThreshold),
		"unbonding_period", params.UnbondingPeriod)

	return params, nil
}

// PairParams holds the parameters of both clients of a path.
type PairParams struct {
	AOnB EffectiveClientParams // client of chain A hosted on chain B
	BOnA EffectiveClientParams // client of chain B hosted on chain A
}

// ResolvePair resolves both directions of a path concurrently.
func (r *Resolver) ResolvePair(ctx context.Context, a, b ChainSafetyConfig, chainA, chainB UnbondingQuerier, optsAToB, optsBToA *ClientCreateOptions) (PairParams, error) {
	var pair PairParams

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		params, err := r.Resolve(gctx, a, b, chainA, optsAToB)
		if err != nil {
			return err
		}
		pair.AOnB = params
		return nil
	})
	g.Go(func() error {
		params, err := r.Resolve(gctx, b, a, chainB, optsBToA)
		if err != nil {
			return err
		}
		pair.BOnA = params
		return nil
	})

	if err := g.Wait(); err != nil {
		return PairParams{}, err
	}
	return pair, nil
}
