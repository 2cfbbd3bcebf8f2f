package constants

import "time"

// Light client safety policy constants.
//
// The trust threshold must lie in (1/3, 1]. The default trusting period is a
// fraction of the subject chain's unbonding period and must stay below it.
const (
	// Default trust threshold applied when neither the chain config nor the
	// client create options set one (2/3).
	DefaultTrustThresholdNumerator   uint64 = 2
	DefaultTrustThresholdDenominator uint64 = 3

	// Minimum trust threshold, exclusive (1/3).
	MinTrustThresholdNumerator   uint64 = 1
	MinTrustThresholdDenominator uint64 = 3

	// Fraction of the unbonding period used as the default trusting period (2/3).
	DefaultTrustingPeriodNumerator   int64 = 2
	DefaultTrustingPeriodDenominator int64 = 3

	// Per-chain defaults used when a chain entry leaves them unset
	DefaultClockDrift   = 5 * time.Second
	DefaultMaxBlockTime = 30 * time.Second
)

// Gas pricing defaults
const (
	DefaultGasMultiplier       = 1.1
	DefaultLowPriceMultiplier  = 1.0
	DefaultHighPriceMultiplier = 1.0
	DefaultDynamicGasPriceMax  = 0.6
	DefaultGasDenom            = "stake"
	DefaultGasPrice            = "0.1"
)
