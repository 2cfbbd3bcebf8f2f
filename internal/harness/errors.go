package harness

import (
	errorsmod "cosmossdk.io/errors"
)

// Codespace for measurement errors
const Codespace = "harness"

var (
	ErrSettlementTimeout = errorsmod.Register(Codespace, 2, "transfer did not settle before the deadline")
	ErrBalanceUnderflow  = errorsmod.Register(Codespace, 3, "payer balance increased during measurement")
	ErrOrderingViolated  = errorsmod.Register(Codespace, 4, "measured fees are not in the expected order")
	ErrAmbiguousOrdering = errorsmod.Register(Codespace, 5, "measured fees are equal")
	ErrInvalidRequest    = errorsmod.Register(Codespace, 6, "invalid measurement request")
)
