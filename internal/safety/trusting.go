package safety

import (
	"fmt"
	"time"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"

	"github.com/MoonbridgeInc/hermes/internal/constants"
)

// TrustingPeriodPolicy derives a trusting period as a fixed fraction of the
// subject chain's unbonding period.
type TrustingPeriodPolicy struct {
	Numerator   int64
	Denominator int64
}

// DefaultTrustingPeriodPolicy returns the 2/3 policy.
func DefaultTrustingPeriodPolicy() TrustingPeriodPolicy {
	return TrustingPeriodPolicy{
		Numerator:   constants.DefaultTrustingPeriodNumerator,
		Denominator: constants.DefaultTrustingPeriodDenominator,
	}
}

// Validate checks 0 < Numerator < Denominator.
func (p TrustingPeriodPolicy) Validate() error {
	if p.Numerator <= 0 || p.Denominator <= 0 || p.Numerator >= p.Denominator {
		return fmt.Errorf("trusting period fraction %d/%d must be in (0, 1)", p.Numerator, p.Denominator)
	}
	return nil
}

// Derive returns unbonding * Numerator / Denominator, which is strictly below
// the unbonding period. The result is not validated; see ValidateTrustingPeriod.
func (p TrustingPeriodPolicy) Derive(unbonding time.Duration) time.Duration {
	if err := p.Validate(); err != nil {
		return 0
	}
	derived := math.NewInt(int64(unbonding)).MulRaw(p.Numerator).QuoRaw(p.Denominator)
	return time.Duration(derived.Int64())
}

// ValidateTrustingPeriod enforces 0 < trusting < unbonding. A trusting period
// equal to the unbonding period is rejected.
func ValidateTrustingPeriod(chainID string, trusting, unbonding time.Duration) error {
	if trusting <= 0 {
		return invalidTrustingPeriod(ErrTrustingPeriodZero,
			"chain %s: trusting period is %s", chainID, trusting)
	}
	if trusting >= unbonding {
		return invalidTrustingPeriod(ErrTrustingPeriodTooLong,
			"chain %s: trusting period %s >= unbonding period %s", chainID, trusting, unbonding)
	}
	return nil
}

// invalidTrustingPeriod wraps reason so the result matches both reason and
// ErrInvalidTrustingPeriod.
func invalidTrustingPeriod(reason *errorsmod.Error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %w", ErrInvalidTrustingPeriod, errorsmod.Wrapf(reason, format, args...))
}
