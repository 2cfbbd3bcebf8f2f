package constants

import "time"

// Time-related constants used throughout the application
const (
	// Settlement polling
	DefaultPollInterval    = 1 * time.Second
	DefaultSettleAttempts  = 120
	DefaultSettleDelay     = 5 * time.Second // Wait after receipt before re-reading the payer balance

	// Timeouts
	RelayerStartTimeout = 2 * time.Minute
	RelayerStopTimeout  = 30 * time.Second

	// Retry configuration for upstream queries (congestion, unbonding period)
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = 500 * time.Millisecond
	MaxRetryDelay        = 10 * time.Second

	// Transfer timeouts
	DefaultTransferTimeout = 30 * time.Minute
)
