// Package errors provides helpers that wrap plumbing errors with the action
// that failed. Domain errors live next to the code that returns them and are
// registered with cosmossdk.io/errors.
package errors

import "fmt"

// Wrapf wraps an error with a formatted action message
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	action := fmt.Sprintf(format, args...)
	return fmt.Errorf("failed to %s: %w", action, err)
}

// Query wraps an error returned while reading what from a chain, e.g.
// Query(err, "chain-a", "unbonding period").
func Query(err error, chainID, what string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to query %s of %s: %w", what, chainID, err)
}

// Exhausted reports an operation that gave up after attempts tries, keeping
// the last error in the chain.
func Exhausted(err error, action string, attempts int) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: gave up after %d attempts: %w", action, attempts, err)
}
