package chain

import (
	errorsmod "cosmossdk.io/errors"
)

// Codespace for chain errors
const Codespace = "chain"

var (
	ErrUnsupportedChainKind = errorsmod.Register(Codespace, 2, "unsupported chain kind")
	ErrUnexpectedClientType = errorsmod.Register(Codespace, 3, "unexpected client state type")
	ErrTxFailed             = errorsmod.Register(Codespace, 4, "transaction failed")
)
