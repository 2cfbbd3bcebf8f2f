package gasprice

import (
	"context"
	"fmt"

	"cosmossdk.io/math"
	feemarkettypes "github.com/cosmos/evm/x/feemarket/types"
	gogogrpc "github.com/cosmos/gogoproto/grpc"
)

// CongestionSource reads the network-recommended base fee of a chain.
type CongestionSource interface {
	QueryCongestion(ctx context.Context, denom string) (CongestionSignal, error)
}

// StaticSource always reports the same base fee.
type StaticSource struct {
	BaseFee math.LegacyDec
}

// QueryCongestion returns the fixed base fee in denom.
func (s StaticSource) QueryCongestion(_ context.Context, denom string) (CongestionSignal, error) {
	return CongestionSignal{BaseFee: s.BaseFee, Denom: denom}, nil
}

// FeeMarketSource reads the base fee from the x/feemarket module over gRPC.
type FeeMarketSource struct {
	client feemarkettypes.QueryClient
}

// NewFeeMarketSource creates a source on top of a gRPC connection, typically
// a client.Context.
func NewFeeMarketSource(conn gogogrpc.ClientConn) *FeeMarketSource {
	return &FeeMarketSource{client: feemarkettypes.NewQueryClient(conn)}
}

// QueryCongestion returns the current base fee.
func (s *FeeMarketSource) QueryCongestion(ctx context.Context, denom string) (CongestionSignal, error) {
	resp, err := s.client.BaseFee(ctx, &feemarkettypes.QueryBaseFeeRequest{})
	if err != nil {
		return CongestionSignal{}, fmt.Errorf("failed to query base fee: %w", err)
	}
	if resp.BaseFee == nil {
		return CongestionSignal{}, fmt.Errorf("base fee is not enabled on this chain")
	}
	return CongestionSignal{BaseFee: *resp.BaseFee, Denom: denom}, nil
}
