// Package gasprice turns a gas price policy and an optional congestion
// reading into the price per gas unit a relayer pays for one transaction.
package gasprice

import (
	"fmt"
	"strconv"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// Policy is the per-chain gas pricing configuration.
type Policy struct {
	ChainID        string
	Enabled        bool
	LowMultiplier  float64
	HighMultiplier float64
	StaticPrice    math.LegacyDec
	Denom          string
	// GasMultiplier scales simulated gas into the gas limit; zero means 1
	GasMultiplier float64
}

// CongestionSignal is the network-recommended base fee at query time.
type CongestionSignal struct {
	BaseFee math.LegacyDec
	Denom   string
}

// FeeQuote is the resolved price for one transaction.
type FeeQuote struct {
	PricePerGasUnit math.LegacyDec
	Denom           string
}

// DecCoin returns the quote as a gas price coin, e.g. for tx.Factory.WithGasPrices.
func (q FeeQuote) DecCoin() sdk.DecCoin {
	return sdk.NewDecCoinFromDec(q.Denom, q.PricePerGasUnit)
}

// String renders the quote as "<price><denom>".
func (q FeeQuote) String() string {
	return q.PricePerGasUnit.String() + q.Denom
}

// FeeForGas returns ceil(price * gas) in the quote denom.
func (q FeeQuote) FeeForGas(gas uint64) sdk.Coin {
	amount := q.PricePerGasUnit.MulInt(math.NewIntFromUint64(gas)).Ceil().TruncateInt()
	return sdk.NewCoin(q.Denom, amount)
}

// Validate checks the policy invariants.
func (p Policy) Validate() error {
	if p.Denom == "" {
		return errorsmod.Wrapf(ErrInvalidPolicy, "chain %s: gas price denom is empty", p.ChainID)
	}
	if p.StaticPrice.IsNil() || !p.StaticPrice.IsPositive() {
		return errorsmod.Wrapf(ErrInvalidPolicy, "chain %s: static gas price %s must be positive", p.ChainID, p.StaticPrice)
	}
	if p.GasMultiplier != 0 && p.GasMultiplier < 1 {
		return errorsmod.Wrapf(ErrInvalidPolicy, "chain %s: gas multiplier %v must be at least 1", p.ChainID, p.GasMultiplier)
	}
	if !p.Enabled {
		return nil
	}
	if p.LowMultiplier <= 0 || p.LowMultiplier > p.HighMultiplier {
		return errorsmod.Wrapf(ErrInvalidPolicy,
			"chain %s: multipliers must satisfy 0 < low (%v) <= high (%v)", p.ChainID, p.LowMultiplier, p.HighMultiplier)
	}
	if _, err := multiplierDec(p.LowMultiplier); err != nil {
		return errorsmod.Wrapf(ErrInvalidPolicy, "chain %s: low multiplier: %s", p.ChainID, err)
	}
	if _, err := multiplierDec(p.HighMultiplier); err != nil {
		return errorsmod.Wrapf(ErrInvalidPolicy, "chain %s: high multiplier: %s", p.ChainID, err)
	}
	return nil
}

// EffectiveGasMultiplier returns the gas adjustment to apply to simulated gas.
func (p Policy) EffectiveGasMultiplier() float64 {
	if p.GasMultiplier == 0 {
		return 1
	}
	return p.GasMultiplier
}

// Estimate returns the price per gas unit for one transaction.
//
// A disabled policy always quotes the static price and ignores congestion.
// An enabled policy follows the observed base fee, clamped to
// [low*base, high*base] so the bounds move with the network rather than being
// an absolute ceiling.
func Estimate(policy Policy, congestion *CongestionSignal) (FeeQuote, error) {
	if err := policy.Validate(); err != nil {
		return FeeQuote{}, err
	}

	if !policy.Enabled {
		return FeeQuote{PricePerGasUnit: policy.StaticPrice, Denom: policy.Denom}, nil
	}

	if congestion == nil {
		return FeeQuote{}, errorsmod.Wrapf(ErrMissingCongestionSignal, "chain %s: dynamic gas price enabled", policy.ChainID)
	}
	if congestion.BaseFee.IsNil() || !congestion.BaseFee.IsPositive() {
		return FeeQuote{}, errorsmod.Wrapf(ErrNonPositivePrice,
			"chain %s: congestion base fee %s%s", policy.ChainID, congestion.BaseFee, congestion.Denom)
	}
	if congestion.Denom != "" && congestion.Denom != policy.Denom {
		return FeeQuote{}, errorsmod.Wrapf(ErrInvalidPolicy,
			"chain %s: congestion signal denom %s does not match policy denom %s", policy.ChainID, congestion.Denom, policy.Denom)
	}

	// multipliers were checked by Validate
	low, _ := multiplierDec(policy.LowMultiplier)
	high, _ := multiplierDec(policy.HighMultiplier)

	base := congestion.BaseFee
	price := clamp(base, base.Mul(low), base.Mul(high))
	// a positive base fee times a sub-unit multiplier can round to zero
	if !price.IsPositive() {
		price = math.LegacySmallestDec()
	}

	return FeeQuote{PricePerGasUnit: price, Denom: policy.Denom}, nil
}

func clamp(v, lo, hi math.LegacyDec) math.LegacyDec {
	return math.LegacyMinDec(math.LegacyMaxDec(v, lo), hi)
}

// multiplierDec converts a float multiplier to a decimal exactly as written
func multiplierDec(f float64) (math.LegacyDec, error) {
	d, err := math.LegacyNewDecFromStr(strconv.FormatFloat(f, 'f', -1, 64))
	if err != nil {
		return math.LegacyDec{}, fmt.Errorf("multiplier %v is not representable: %w", f, err)
	}
	return d, nil
}
