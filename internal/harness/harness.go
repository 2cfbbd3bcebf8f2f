// Package harness measures the fee a relayer account pays to relay one
// transfer, and compares measurements taken under different gas policies.
package harness

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cosmossdk.io/math"

	"github.com/MoonbridgeInc/hermes/internal/chain"
	"github.com/MoonbridgeInc/hermes/internal/constants"
	"github.com/MoonbridgeInc/hermes/internal/errors"
	"github.com/MoonbridgeInc/hermes/internal/metrics"
	"github.com/MoonbridgeInc/hermes/internal/relayer"
	"github.com/MoonbridgeInc/hermes/internal/retry"
)

// TransferRequest describes one measured transfer
type TransferRequest struct {
	// Source submits the transfer, Destination receives it
	Source      chain.Chain
	Destination chain.Chain
	Transfer    chain.Transfer

	// Payer is the account whose fee is measured on FeeChain, typically the
	// relayer account on the destination
	FeeChain chain.Chain
	Payer    string
	FeeDenom string

	// Recipient must end up holding ExpectedAmount of ExpectedDenom
	Recipient      string
	ExpectedDenom  string
	ExpectedAmount math.Int
}

// Validate checks that the request is complete
func (r TransferRequest) Validate() error {
	switch {
	case r.Source == nil || r.Destination == nil || r.FeeChain == nil:
		return ErrInvalidRequest.Wrap("source, destination and fee chains are required")
	case r.Payer == "" || r.FeeDenom == "":
		return ErrInvalidRequest.Wrap("payer and fee denom are required")
	case r.Recipient == "" || r.ExpectedDenom == "":
		return ErrInvalidRequest.Wrap("recipient and expected denom are required")
	case r.ExpectedAmount.IsNil() || !r.ExpectedAmount.IsPositive():
		return ErrInvalidRequest.Wrap("expected amount must be positive")
	}
	return nil
}

// FeeMeasurement is the payer balance around one relayed transfer
type FeeMeasurement struct {
	ChainID       string
	Denom         string
	BalanceBefore math.Int
	BalanceAfter  math.Int
	Paid          math.Int
	TxHash        string
}

func (m FeeMeasurement) String() string {
	return fmt.Sprintf("%s%s paid on %s (before=%s after=%s)", m.Paid, m.Denom, m.ChainID, m.BalanceBefore, m.BalanceAfter)
}

// Harness runs measured transfers with the relayer active only while the
// transfer settles
type Harness struct {
	logger         *slog.Logger
	supervisor     relayer.Supervisor
	metrics        *metrics.Metrics
	SettleAttempts int
	PollDelay      time.Duration
	// SettleDelay is waited after settlement before the second snapshot
	SettleDelay time.Duration
}

// New creates a harness using sup for the relaying window
func New(logger *slog.Logger, sup relayer.Supervisor, m *metrics.Metrics) *Harness {
	return &Harness{
		logger:         logger,
		supervisor:     sup,
		metrics:        m,
		SettleAttempts: constants.DefaultSettleAttempts,
		PollDelay:      constants.DefaultPollInterval,
		SettleDelay:    constants.DefaultSettleDelay,
	}
}

// Measure snapshots the payer balance, submits the transfer, waits for it to
// settle with the relayer running, and snapshots the balance again.
func (h *Harness) Measure(ctx context.Context, req TransferRequest) (FeeMeasurement, error) {
	if err := req.Validate(); err != nil {
		return FeeMeasurement{}, err
	}

	feeChainID := req.FeeChain.ChainID()

	before, err := req.FeeChain.QueryBalance(ctx, req.Payer, req.FeeDenom)
	if err != nil {
		return FeeMeasurement{}, errors.Wrapf(err, "query balance of %s before transfer", req.Payer)
	}

	res, err := req.Source.SubmitTransfer(ctx, req.Transfer)
	if err != nil {
		return FeeMeasurement{}, errors.Wrapf(err, "submit transfer on %s", req.Source.ChainID())
	}
	h.logger.Info("Submitted transfer",
		"source", req.Source.ChainID(),
		"tx_hash", res.TxHash,
		"memo_size", len(req.Transfer.Memo))

	var after math.Int
	err = relayer.WithSupervisor(ctx, h.supervisor, func(ctx context.Context) error {
		if err := h.waitForSettlement(ctx, req); err != nil {
			return err
		}

		if h.SettleDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(h.SettleDelay):
			}
		}

		balance, err := req.FeeChain.QueryBalance(ctx, req.Payer, req.FeeDenom)
		if err != nil {
			return errors.Wrapf(err, "query balance of %s after settlement", req.Payer)
		}
		after = balance
		return nil
	})
	if err != nil {
		return FeeMeasurement{}, err
	}

	if after.GT(before) {
		return FeeMeasurement{}, ErrBalanceUnderflow.Wrapf("chain %s: balance of %s went from %s to %s%s",
			feeChainID, req.Payer, before, after, req.FeeDenom)
	}

	m := FeeMeasurement{
		ChainID:       feeChainID,
		Denom:         req.FeeDenom,
		BalanceBefore: before,
		BalanceAfter:  after,
		Paid:          before.Sub(after),
		TxHash:        res.TxHash,
	}

	if paid, err := m.Paid.ToLegacyDec().Float64(); err == nil {
		h.metrics.ObserveFeePaid(feeChainID, req.FeeDenom, paid)
	}
	h.logger.Info("Measured relayer fee",
		"chain_id", feeChainID,
		"paid", m.Paid.String()+req.FeeDenom)

	return m, nil
}

// waitForSettlement polls the destination until the recipient holds the
// expected amount, with a fixed delay between attempts. A failed balance query
// on the last attempt is returned as is; ErrSettlementTimeout means the
// balance was read but never reached the expected amount, or ctx expired.
func (h *Harness) waitForSettlement(ctx context.Context, req TransferRequest) error {
	destID := req.Destination.ChainID()
	cfg := retry.Config{
		MaxAttempts:  h.SettleAttempts,
		InitialDelay: h.PollDelay,
		Multiplier:   1,
	}

	var (
		last     math.Int
		queryErr error
		attempts int
	)
	err := retry.Do(ctx, cfg, func() error {
		attempts++
		balance, err := req.Destination.QueryBalance(ctx, req.Recipient, req.ExpectedDenom)
		if err != nil {
			queryErr = err
			return err
		}
		queryErr = nil
		last = balance
		if !balance.Equal(req.ExpectedAmount) {
			return fmt.Errorf("recipient holds %s%s, want %s", balance, req.ExpectedDenom, req.ExpectedAmount)
		}
		return nil
	})
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		h.metrics.SettlementTimedOut(destID)
		return fmt.Errorf("%w: chain %s: %w", ErrSettlementTimeout, destID, ctxErr)
	}
	if queryErr != nil {
		return errors.Query(queryErr, destID, fmt.Sprintf("%s balance of %s", req.ExpectedDenom, req.Recipient))
	}

	h.metrics.SettlementTimedOut(destID)
	observed := "nothing"
	if !last.IsNil() {
		observed = last.String() + req.ExpectedDenom
	}
	return ErrSettlementTimeout.Wrapf("chain %s: %s did not receive %s%s after %d attempts %s apart (last observed %s)",
		destID, req.Recipient, req.ExpectedAmount, req.ExpectedDenom, attempts, h.PollDelay, observed)
}
