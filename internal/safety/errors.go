package safety

import (
	errorsmod "cosmossdk.io/errors"
)

// Codespace for light client safety errors
const Codespace = "safety"

var (
	ErrInvalidTrustThreshold = errorsmod.Register(Codespace, 2, "invalid trust threshold")
	ErrInvalidTrustingPeriod = errorsmod.Register(Codespace, 3, "invalid trusting period")
	ErrTrustingPeriodTooLong = errorsmod.Register(Codespace, 4, "trusting period must be shorter than the unbonding period")
	ErrTrustingPeriodZero    = errorsmod.Register(Codespace, 5, "trusting period must be positive")
	ErrInvalidChainConfig    = errorsmod.Register(Codespace, 6, "invalid chain safety config")
	ErrClientStateMismatch   = errorsmod.Register(Codespace, 7, "client state does not match resolved parameters")
)
