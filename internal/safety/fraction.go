package safety

import (
	"fmt"
	"strconv"
	"strings"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
	ibctm "github.com/cosmos/ibc-go/v10/modules/light-clients/07-tendermint"

	"github.com/MoonbridgeInc/hermes/internal/constants"
)

var (
	// DefaultTrustThreshold is used when neither the chain config nor the
	// create options specify a trust threshold.
	DefaultTrustThreshold = ibctm.Fraction{
		Numerator:   constants.DefaultTrustThresholdNumerator,
		Denominator: constants.DefaultTrustThresholdDenominator,
	}

	// TwoThirds is the supermajority threshold.
	TwoThirds = ibctm.Fraction{Numerator: 2, Denominator: 3}
)

// NewFraction returns a trust threshold fraction without validating it.
func NewFraction(numerator, denominator uint64) ibctm.Fraction {
	return ibctm.Fraction{Numerator: numerator, Denominator: denominator}
}

// ParseFraction parses "n/d".
func ParseFraction(s string) (ibctm.Fraction, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 {
		return ibctm.Fraction{}, fmt.Errorf("fraction %q must have the form numerator/denominator", s)
	}
	num, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil {
		return ibctm.Fraction{}, fmt.Errorf("invalid numerator in %q: %w", s, err)
	}
	den, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return ibctm.Fraction{}, fmt.Errorf("invalid denominator in %q: %w", s, err)
	}
	return NewFraction(num, den), nil
}

// FormatFraction renders f as "n/d".
func FormatFraction(f ibctm.Fraction) string {
	return fmt.Sprintf("%d/%d", f.Numerator, f.Denominator)
}

// IsZeroFraction reports whether f is unset.
func IsZeroFraction(f ibctm.Fraction) bool {
	return f.Numerator == 0 && f.Denominator == 0
}

// ValidateTrustThreshold checks that f lies in (1/3, 1]. The comparison is
// done on arbitrary precision integers so fractions near the uint64 limit are
// judged by value.
func ValidateTrustThreshold(chainID string, f ibctm.Fraction) error {
	if f.Denominator == 0 || f.Numerator > f.Denominator {
		return errorsmod.Wrapf(ErrInvalidTrustThreshold,
			"chain %s: trust threshold %s must be in (%d/%d, 1]",
			chainID, FormatFraction(f),
			constants.MinTrustThresholdNumerator, constants.MinTrustThresholdDenominator)
	}

	num := math.NewIntFromUint64(f.Numerator).Mul(math.NewIntFromUint64(constants.MinTrustThresholdDenominator))
	floor := math.NewIntFromUint64(f.Denominator).Mul(math.NewIntFromUint64(constants.MinTrustThresholdNumerator))
	if num.LTE(floor) {
		return errorsmod.Wrapf(ErrInvalidTrustThreshold,
			"chain %s: trust threshold %s must be strictly greater than %d/%d",
			chainID, FormatFraction(f),
			constants.MinTrustThresholdNumerator, constants.MinTrustThresholdDenominator)
	}

	return nil
}
