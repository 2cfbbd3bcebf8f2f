package chain

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cosmossdk.io/math"
	"github.com/cosmos/cosmos-sdk/client"
	"github.com/cosmos/cosmos-sdk/client/flags"
	"github.com/cosmos/cosmos-sdk/client/tx"
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/cosmos-sdk/types/tx/signing"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"
	stakingtypes "github.com/cosmos/cosmos-sdk/x/staking/types"
	"github.com/cosmos/gogoproto/proto"
	transfertypes "github.com/cosmos/ibc-go/v10/modules/apps/transfer/types"
	clienttypes "github.com/cosmos/ibc-go/v10/modules/core/02-client/types"
	ibctm "github.com/cosmos/ibc-go/v10/modules/light-clients/07-tendermint"
	consumertypes "github.com/cosmos/interchain-security/v7/x/ccv/consumer/types"

	"github.com/MoonbridgeInc/hermes/internal/gasprice"
)

// tendermintClientStateURL is the type URL of 07-tendermint client states
var tendermintClientStateURL = "/" + proto.MessageName(&ibctm.ClientState{})

// Cosmos talks to a Cosmos SDK chain through a client context: gRPC queries
// over the node's ABCI query path and transactions signed with the keyring.
type Cosmos struct {
	logger    *slog.Logger
	cfg       Config
	clientCtx client.Context
	txFactory tx.Factory
	pricer    *gasprice.Service
	feemarket *gasprice.FeeMarketSource
}

// NewCosmos creates a Cosmos SDK chain client. A nil pricer quotes gas prices
// from the chain's own fee market.
func NewCosmos(logger *slog.Logger, cfg Config, clientCtx client.Context, pricer *gasprice.Service) (*Cosmos, error) {
	// Ensure we have necessary components
	if clientCtx.Client == nil {
		return nil, fmt.Errorf("client context for %s must have RPC client", cfg.ChainID)
	}
	if clientCtx.TxConfig == nil {
		return nil, fmt.Errorf("client context for %s must have TxConfig", cfg.ChainID)
	}
	if clientCtx.AccountRetriever == nil {
		clientCtx = clientCtx.WithAccountRetriever(authtypes.AccountRetriever{})
	}
	if clientCtx.ChainID == "" {
		clientCtx = clientCtx.WithChainID(cfg.ChainID)
	}
	clientCtx = clientCtx.WithBroadcastMode(flags.BroadcastSync)

	feemarket := gasprice.NewFeeMarketSource(clientCtx)
	c := &Cosmos{
		logger:    logger.With("chain_id", cfg.ChainID),
		cfg:       cfg,
		clientCtx: clientCtx,
		feemarket: feemarket,
		pricer:    pricer,
	}
	if c.pricer == nil {
		c.pricer = gasprice.NewService(logger, feemarket, nil)
	}

	// Create transaction factory only if we have keyring
	if clientCtx.Keyring != nil {
		c.txFactory = tx.Factory{}.
			WithChainID(clientCtx.ChainID).
			WithKeybase(clientCtx.Keyring).
			WithTxConfig(clientCtx.TxConfig).
			WithAccountRetriever(clientCtx.AccountRetriever).
			WithSignMode(signing.SignMode_SIGN_MODE_DIRECT)
	}

	return c, nil
}

func (c *Cosmos) ChainID() string { return c.cfg.ChainID }
func (c *Cosmos) Kind() Kind      { return c.cfg.Kind }

// QueryClientState reads a light client hosted on this chain and decodes it
// as a Tendermint client state.
func (c *Cosmos) QueryClientState(ctx context.Context, clientID string) (*ibctm.ClientState, error) {
	queryClient := clienttypes.NewQueryClient(c.clientCtx)

	res, err := queryClient.ClientState(ctx, &clienttypes.QueryClientStateRequest{ClientId: clientID})
	if err != nil {
		return nil, fmt.Errorf("failed to query client state %s: %w", clientID, err)
	}

	return decodeClientState(clientID, res.ClientState)
}

func decodeClientState(clientID string, state *codectypes.Any) (*ibctm.ClientState, error) {
	if state == nil {
		return nil, ErrUnexpectedClientType.Wrapf("client %s: empty client state", clientID)
	}
	if state.TypeUrl != tendermintClientStateURL {
		return nil, ErrUnexpectedClientType.Wrapf("client %s: got %s, want %s", clientID, state.TypeUrl, tendermintClientStateURL)
	}

	var cs ibctm.ClientState
	if err := proto.Unmarshal(state.Value, &cs); err != nil {
		return nil, fmt.Errorf("failed to decode client state %s: %w", clientID, err)
	}
	return &cs, nil
}

// QueryUnbondingPeriod returns the staking unbonding time, or the consumer
// module's unbonding period on CCV consumer chains.
func (c *Cosmos) QueryUnbondingPeriod(ctx context.Context) (time.Duration, error) {
	if c.cfg.CCVConsumer {
		queryClient := consumertypes.NewQueryClient(c.clientCtx)
		res, err := queryClient.QueryParams(ctx, &consumertypes.QueryParamsRequest{})
		if err != nil {
			return 0, fmt.Errorf("failed to query consumer params: %w", err)
		}
		return res.Params.UnbondingPeriod, nil
	}

	queryClient := stakingtypes.NewQueryClient(c.clientCtx)
	res, err := queryClient.Params(ctx, &stakingtypes.QueryParamsRequest{})
	if err != nil {
		return 0, fmt.Errorf("failed to query staking params: %w", err)
	}
	return res.Params.UnbondingTime, nil
}

// QueryCongestionSignal reads the fee market base fee.
func (c *Cosmos) QueryCongestionSignal(ctx context.Context, denom string) (gasprice.CongestionSignal, error) {
	return c.feemarket.QueryCongestion(ctx, denom)
}

// QueryBalance returns the balance of address in denom.
func (c *Cosmos) QueryBalance(ctx context.Context, address, denom string) (math.Int, error) {
	queryClient := banktypes.NewQueryClient(c.clientCtx)

	res, err := queryClient.Balance(ctx, &banktypes.QueryBalanceRequest{Address: address, Denom: denom})
	if err != nil {
		return math.Int{}, fmt.Errorf("failed to query balance of %s: %w", address, err)
	}
	if res.Balance == nil {
		return math.ZeroInt(), nil
	}
	return res.Balance.Amount, nil
}

// SubmitTransfer signs and broadcasts an ICS-20 transfer priced by the gas
// price policy of this chain.
func (c *Cosmos) SubmitTransfer(ctx context.Context, transfer Transfer) (TxResult, error) {
	msg := &transfertypes.MsgTransfer{
		SourcePort:       transfer.SourcePort,
		SourceChannel:    transfer.SourceChannel,
		Token:            transfer.Token,
		Sender:           transfer.Sender,
		Receiver:         transfer.Receiver,
		TimeoutHeight:    transfer.TimeoutHeight,
		TimeoutTimestamp: transfer.TimeoutTimestamp,
		Memo:             transfer.Memo,
	}

	// Validate the message
	if err := msg.ValidateBasic(); err != nil {
		return TxResult{}, fmt.Errorf("message validation failed: %w", err)
	}

	return c.signAndBroadcast(ctx, msg)
}

// signAndBroadcast signs and broadcasts a transaction
func (c *Cosmos) signAndBroadcast(ctx context.Context, msgs ...sdk.Msg) (TxResult, error) {
	if c.clientCtx.Keyring == nil {
		return TxResult{}, fmt.Errorf("keyring is required for transaction operations")
	}

	fromAddr, fromName, _, err := client.GetFromFields(c.clientCtx, c.clientCtx.Keyring, c.clientCtx.FromName)
	if err != nil {
		return TxResult{}, fmt.Errorf("failed to get from address: %w", err)
	}

	// Query account to get account number and sequence
	account, err := c.clientCtx.AccountRetriever.GetAccount(c.clientCtx, fromAddr)
	if err != nil {
		return TxResult{}, fmt.Errorf("failed to get account: %w", err)
	}

	quote, err := c.pricer.Quote(ctx, c.cfg.GasPolicy)
	if err != nil {
		return TxResult{}, fmt.Errorf("failed to quote gas price: %w", err)
	}

	txf := c.txFactory.
		WithAccountNumber(account.GetAccountNumber()).
		WithSequence(account.GetSequence()).
		WithGasAdjustment(c.cfg.GasPolicy.EffectiveGasMultiplier()).
		WithGasPrices(quote.DecCoin().String())

	// Estimate gas
	_, adjusted, err := tx.CalculateGas(c.clientCtx, txf, msgs...)
	if err != nil {
		return TxResult{}, fmt.Errorf("failed to calculate gas: %w", err)
	}
	txf = txf.WithGas(adjusted)

	txBuilder, err := txf.BuildUnsignedTx(msgs...)
	if err != nil {
		return TxResult{}, fmt.Errorf("failed to build unsigned tx: %w", err)
	}

	if err := tx.Sign(ctx, txf, fromName, txBuilder, true); err != nil {
		return TxResult{}, fmt.Errorf("failed to sign tx: %w", err)
	}

	txBytes, err := c.clientCtx.TxConfig.TxEncoder()(txBuilder.GetTx())
	if err != nil {
		return TxResult{}, fmt.Errorf("failed to encode tx: %w", err)
	}

	res, err := c.clientCtx.BroadcastTx(txBytes)
	if err != nil {
		return TxResult{}, fmt.Errorf("failed to broadcast tx: %w", err)
	}
	if res.Code != 0 {
		return TxResult{}, ErrTxFailed.Wrapf("chain %s: code %d: %s", c.cfg.ChainID, res.Code, res.RawLog)
	}

	c.logger.Info("Transaction broadcast",
		"tx_hash", res.TxHash,
		"gas_wanted", adjusted,
		"gas_price", quote.String())

	return TxResult{
		TxHash:    res.TxHash,
		GasWanted: adjusted,
		GasPrice:  quote,
		Fee:       quote.FeeForGas(adjusted),
	}, nil
}
