// Package chain wraps the chain queries and transactions the relayer policies
// depend on. Chain kinds are a closed set: Cosmos SDK compatible chains get a
// full client, the rest get an Unsupported chain that fails every call with
// ErrUnsupportedChainKind.
package chain

import (
	"context"
	"log/slog"
	"time"

	"cosmossdk.io/math"
	"github.com/cosmos/cosmos-sdk/client"
	sdk "github.com/cosmos/cosmos-sdk/types"
	clienttypes "github.com/cosmos/ibc-go/v10/modules/core/02-client/types"
	ibctm "github.com/cosmos/ibc-go/v10/modules/light-clients/07-tendermint"

	"github.com/MoonbridgeInc/hermes/internal/gasprice"
	"github.com/MoonbridgeInc/hermes/internal/retry"
)

// Chain is the view of a chain used by client creation, gas pricing and the
// fee harness.
type Chain interface {
	ChainID() string
	Kind() Kind
	QueryClientState(ctx context.Context, clientID string) (*ibctm.ClientState, error)
	QueryUnbondingPeriod(ctx context.Context) (time.Duration, error)
	QueryCongestionSignal(ctx context.Context, denom string) (gasprice.CongestionSignal, error)
	QueryBalance(ctx context.Context, address, denom string) (math.Int, error)
	SubmitTransfer(ctx context.Context, transfer Transfer) (TxResult, error)
}

// Transfer is an ICS-20 transfer submitted on the source chain.
type Transfer struct {
	SourcePort       string
	SourceChannel    string
	Sender           string
	Receiver         string
	Token            sdk.Coin
	Memo             string
	TimeoutHeight    clienttypes.Height
	TimeoutTimestamp uint64
}

// TxResult summarizes a broadcast transaction.
type TxResult struct {
	TxHash    string
	GasWanted uint64
	GasPrice  gasprice.FeeQuote
	Fee       sdk.Coin
}

// Config describes one chain for the client factory.
type Config struct {
	ChainID string
	Kind    Kind
	// CCVConsumer chains report their unbonding period through the consumer module
	CCVConsumer bool
	GasPolicy   gasprice.Policy
}

// New returns the client for cfg.Kind. Cosmos SDK and Namada chains share the
// SDK query surface; Penumbra gets an Unsupported chain. Unknown kinds fail.
func New(logger *slog.Logger, cfg Config, clientCtx client.Context, pricer *gasprice.Service) (Chain, error) {
	switch cfg.Kind {
	case KindCosmosSDK, KindNamada:
		return NewCosmos(logger, cfg, clientCtx, pricer)
	case KindPenumbra:
		return NewUnsupported(cfg.ChainID, cfg.Kind), nil
	default:
		return nil, ErrUnsupportedChainKind.Wrapf("chain %s: unknown chain type %q", cfg.ChainID, cfg.Kind)
	}
}

// Unsupported is a chain whose kind the relayer cannot talk to. Every call
// returns a permanent ErrUnsupportedChainKind so that callers retrying
// upstream queries give up immediately.
type Unsupported struct {
	chainID string
	kind    Kind
}

// NewUnsupported creates the placeholder for a chain of an unsupported kind
func NewUnsupported(chainID string, kind Kind) *Unsupported {
	return &Unsupported{chainID: chainID, kind: kind}
}

func (u *Unsupported) ChainID() string { return u.chainID }
func (u *Unsupported) Kind() Kind      { return u.kind }

func (u *Unsupported) QueryClientState(context.Context, string) (*ibctm.ClientState, error) {
	return nil, retry.Permanent(errUnsupported(u.kind, u.chainID, "query client state"))
}

func (u *Unsupported) QueryUnbondingPeriod(context.Context) (time.Duration, error) {
	return 0, retry.Permanent(errUnsupported(u.kind, u.chainID, "query unbonding period"))
}

func (u *Unsupported) QueryCongestionSignal(context.Context, string) (gasprice.CongestionSignal, error) {
	return gasprice.CongestionSignal{}, retry.Permanent(errUnsupported(u.kind, u.chainID, "query congestion signal"))
}

func (u *Unsupported) QueryBalance(context.Context, string, string) (math.Int, error) {
	return math.Int{}, retry.Permanent(errUnsupported(u.kind, u.chainID, "query balance"))
}

func (u *Unsupported) SubmitTransfer(context.Context, Transfer) (TxResult, error) {
	return TxResult{}, retry.Permanent(errUnsupported(u.kind, u.chainID, "submit transfer"))
}

// CongestionSource adapts a chain to the gas price service.
func CongestionSource(c Chain) gasprice.CongestionSource {
	return congestionAdapter{chain: c}
}

type congestionAdapter struct {
	chain Chain
}

func (a congestionAdapter) QueryCongestion(ctx context.Context, denom string) (gasprice.CongestionSignal, error) {
	return a.chain.QueryCongestionSignal(ctx, denom)
}
