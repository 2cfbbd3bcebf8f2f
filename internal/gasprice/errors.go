package gasprice

import (
	errorsmod "cosmossdk.io/errors"
)

// Codespace for gas pricing errors
const Codespace = "gasprice"

var (
	ErrMissingCongestionSignal = errorsmod.Register(Codespace, 2, "dynamic gas price requires a congestion signal")
	ErrNonPositivePrice        = errorsmod.Register(Codespace, 3, "gas price must be positive")
	ErrInvalidPolicy           = errorsmod.Register(Codespace, 4, "invalid gas price policy")
)
