package chain

import (
	"fmt"

	"github.com/cosmos/cosmos-sdk/client"
	"github.com/cosmos/cosmos-sdk/crypto/keyring"
)

// InitializeKeyring opens the relayer keyring and attaches it to clientCtx
func InitializeKeyring(clientCtx client.Context, homeDir, keyringBackend, fromKey string) (client.Context, error) {
	if clientCtx.Codec == nil {
		return clientCtx, fmt.Errorf("codec not initialized in client context")
	}

	kr, err := keyring.New("hermes", keyringBackend, homeDir, nil, clientCtx.Codec)
	if err != nil {
		return clientCtx, fmt.Errorf("failed to create keyring: %w", err)
	}

	if fromKey != "" {
		record, err := kr.Key(fromKey)
		if err != nil {
			return clientCtx, fmt.Errorf("key '%s' not found in keyring: %w", fromKey, err)
		}
		addr, err := record.GetAddress()
		if err != nil {
			return clientCtx, fmt.Errorf("failed to get address of key '%s': %w", fromKey, err)
		}
		clientCtx = clientCtx.WithFromName(fromKey).WithFromAddress(addr)
	}

	return clientCtx.WithKeyring(kr), nil
}
