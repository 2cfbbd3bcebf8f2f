package harness

import (
	"context"
	"sync"
	"time"

	"cosmossdk.io/math"
	ibctm "github.com/cosmos/ibc-go/v10/modules/light-clients/07-tendermint"

	"github.com/MoonbridgeInc/hermes/internal/chain"
	"github.com/MoonbridgeInc/hermes/internal/gasprice"
	"github.com/MoonbridgeInc/hermes/internal/relayer"
)

// fakeChain keeps balances in memory
type fakeChain struct {
	mu        sync.Mutex
	id        string
	balances  map[string]math.Int
	submitted []chain.Transfer
	submitErr error
	queryErr  error
	queries   int
}

func newFakeChain(id string) *fakeChain {
	return &fakeChain{id: id, balances: map[string]math.Int{}}
}

func balanceKey(address, denom string) string {
	return address + "|" + denom
}

func (c *fakeChain) set(address, denom string, amount int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[balanceKey(address, denom)] = math.NewInt(amount)
}

func (c *fakeChain) add(address, denom string, delta math.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := balanceKey(address, denom)
	current, ok := c.balances[key]
	if !ok {
		current = math.ZeroInt()
	}
	c.balances[key] = current.Add(delta)
}

func (c *fakeChain) ChainID() string  { return c.id }
func (c *fakeChain) Kind() chain.Kind { return chain.KindCosmosSDK }

func (c *fakeChain) QueryClientState(context.Context, string) (*ibctm.ClientState, error) {
	return nil, nil
}

func (c *fakeChain) QueryUnbondingPeriod(context.Context) (time.Duration, error) {
	return 21 * 24 * time.Hour, nil
}

func (c *fakeChain) QueryCongestionSignal(context.Context, string) (gasprice.CongestionSignal, error) {
	return gasprice.CongestionSignal{}, nil
}

func (c *fakeChain) QueryBalance(_ context.Context, address, denom string) (math.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries++
	if c.queryErr != nil {
		return math.Int{}, c.queryErr
	}
	if b, ok := c.balances[balanceKey(address, denom)]; ok {
		return b, nil
	}
	return math.ZeroInt(), nil
}

func (c *fakeChain) SubmitTransfer(_ context.Context, transfer chain.Transfer) (chain.TxResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.submitErr != nil {
		return chain.TxResult{}, c.submitErr
	}
	c.submitted = append(c.submitted, transfer)
	return chain.TxResult{TxHash: "ABCDEF"}, nil
}

type fakeHandle struct{}

func (fakeHandle) Name() string { return "fake-relayer" }

// fakeRelayer delivers pending transfers when started and charges the
// relayer account the fee computed by feeFor
type fakeRelayer struct {
	pending  []TransferRequest
	feeFor   func(req TransferRequest) math.Int
	deliver  bool
	started  int
	stopped  int
	startErr error
}

func (r *fakeRelayer) queue(req TransferRequest) {
	r.pending = append(r.pending, req)
}

func (r *fakeRelayer) Start(context.Context) (relayer.Handle, error) {
	if r.startErr != nil {
		return nil, r.startErr
	}
	r.started++
	for _, req := range r.pending {
		if !r.deliver {
			continue
		}
		dest := req.Destination.(*fakeChain)
		dest.add(req.Recipient, req.ExpectedDenom, req.ExpectedAmount)

		feeChain := req.FeeChain.(*fakeChain)
		feeChain.add(req.Payer, req.FeeDenom, r.feeFor(req).Neg())
	}
	r.pending = nil
	return fakeHandle{}, nil
}

func (r *fakeRelayer) Stop(context.Context, relayer.Handle) error {
	r.stopped++
	return nil
}
