package chain

import (
	"fmt"

	rpchttp "github.com/cometbft/cometbft/rpc/client/http"
	"github.com/cosmos/cosmos-sdk/client"
)

// Endpoint locates a chain node and the relayer key used on it
type Endpoint struct {
	ChainID        string
	RPCAddr        string
	HomeDir        string
	KeyringBackend string
	KeyName        string
}

// NewClientContext builds an online client context for endpoint. The keyring
// is only opened when a key name is set.
func NewClientContext(endpoint Endpoint) (client.Context, error) {
	if endpoint.RPCAddr == "" {
		return client.Context{}, fmt.Errorf("chain %s: rpc_addr is required", endpoint.ChainID)
	}

	rpcClient, err := rpchttp.New(endpoint.RPCAddr, "/websocket")
	if err != nil {
		return client.Context{}, fmt.Errorf("failed to create RPC client for %s: %w", endpoint.ChainID, err)
	}

	enc := MakeEncodingConfig()
	clientCtx := client.Context{}.
		WithChainID(endpoint.ChainID).
		WithNodeURI(endpoint.RPCAddr).
		WithClient(rpcClient).
		WithHomeDir(endpoint.HomeDir).
		WithCodec(enc.Codec).
		WithTxConfig(enc.TxConfig).
		WithInterfaceRegistry(enc.InterfaceRegistry)

	if endpoint.KeyName == "" {
		return clientCtx, nil
	}
	return InitializeKeyring(clientCtx, endpoint.HomeDir, endpoint.KeyringBackend, endpoint.KeyName)
}
