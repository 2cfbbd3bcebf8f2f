package harness

import (
	"context"
	"log/slog"

	"github.com/MoonbridgeInc/hermes/internal/errors"
)

// Expectation is the fee ordering two measurements must show
type Expectation int

const (
	// FirstCheaper expects paid(first) < paid(second)
	FirstCheaper Expectation = iota
	// SecondCheaper expects paid(first) > paid(second)
	SecondCheaper
)

func (e Expectation) String() string {
	if e == FirstCheaper {
		return "first cheaper"
	}
	return "second cheaper"
}

// Compare checks the fee ordering of two measurements. Equal fees are
// ambiguous rather than a violation.
func Compare(first, second FeeMeasurement, want Expectation) error {
	if first.Paid.Equal(second.Paid) {
		return ErrAmbiguousOrdering.Wrapf("both transfers paid %s%s", first.Paid, first.Denom)
	}

	firstCheaper := first.Paid.LT(second.Paid)
	if firstCheaper == (want == FirstCheaper) {
		return nil
	}
	return ErrOrderingViolated.Wrapf("expected %s, first paid %s%s, second paid %s%s",
		want, first.Paid, first.Denom, second.Paid, second.Denom)
}

// PairRun produces a fresh pair of measurements
type PairRun func(ctx context.Context) (first, second FeeMeasurement, err error)

// CompareWithRerun repeats run up to attempts times until a pair shows the
// expected ordering. On a live network congestion can move between the two
// measurements, so a single inversion is not conclusive. Measurement errors
// end the comparison immediately.
func CompareWithRerun(ctx context.Context, logger *slog.Logger, attempts int, want Expectation, run PairRun) (FeeMeasurement, FeeMeasurement, error) {
	if attempts < 1 {
		attempts = 1
	}

	var first, second FeeMeasurement
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return first, second, err
		}

		var err error
		first, second, err = run(ctx)
		if err != nil {
			return first, second, err
		}

		lastErr = Compare(first, second, want)
		if lastErr == nil {
			return first, second, nil
		}
		logger.Warn("Inconclusive fee comparison, re-running",
			"attempt", attempt,
			"attempts", attempts,
			"first", first.Paid.String(),
			"second", second.Paid.String(),
			"error", lastErr)
	}

	return first, second, errors.Exhausted(lastErr, "fee comparison", attempts)
}

// ExpectationFor returns the ordering of a congestion-inflating transfer
// measured before a plain one at higher congestion: cheaper under dynamic
// pricing, more expensive under a static price.
func ExpectationFor(dynamic bool) Expectation {
	if dynamic {
		return FirstCheaper
	}
	return SecondCheaper
}
