package gasprice

import (
	"context"
	"log/slog"

	"github.com/MoonbridgeInc/hermes/internal/errors"
	"github.com/MoonbridgeInc/hermes/internal/metrics"
	"github.com/MoonbridgeInc/hermes/internal/retry"
)

// Service quotes gas prices for outgoing transactions. It reads the
// congestion signal only when the policy asks for dynamic pricing.
type Service struct {
	logger   *slog.Logger
	source   CongestionSource
	retryCfg retry.Config
	metrics  *metrics.Metrics
}

// NewService creates a quoting service reading congestion from source
func NewService(logger *slog.Logger, source CongestionSource, m *metrics.Metrics) *Service {
	return &Service{
		logger:   logger,
		source:   source,
		retryCfg: retry.DefaultConfig(),
		metrics:  m,
	}
}

// WithRetry replaces the backoff used for congestion queries.
func (s *Service) WithRetry(cfg retry.Config) *Service {
	cp := *s
	cp.retryCfg = cfg
	return &cp
}

// Quote returns the price per gas unit for the next transaction under policy.
func (s *Service) Quote(ctx context.Context, policy Policy) (FeeQuote, error) {
	var congestion *CongestionSignal

	if policy.Enabled {
		if s.source == nil {
			s.metrics.QuoteFailed(policy.ChainID)
			return FeeQuote{}, ErrMissingCongestionSignal.Wrapf("chain %s: no congestion source configured", policy.ChainID)
		}

		signal, err := retry.DoWithResult(ctx, s.retryCfg, func() (CongestionSignal, error) {
			return s.source.QueryCongestion(ctx, policy.Denom)
		})
		if err != nil {
			s.metrics.QuoteFailed(policy.ChainID)
			return FeeQuote{}, errors.Query(err, policy.ChainID, "congestion signal")
		}
		congestion = &signal
		if !signal.BaseFee.IsNil() {
			s.metrics.ObserveCongestion(policy.ChainID, signal.Denom, signal.BaseFee.MustFloat64())
		}
	}

	quote, err := Estimate(policy, congestion)
	if err != nil {
		s.metrics.QuoteFailed(policy.ChainID)
		s.logger.Warn("Gas price quote failed",
			"chain_id", policy.ChainID,
			"dynamic", policy.Enabled,
			"error", err)
		return FeeQuote{}, err
	}

	s.metrics.ObserveQuote(policy.ChainID, quote.Denom, policy.Enabled, quote.PricePerGasUnit.MustFloat64())
	s.logger.Debug("Quoted gas price",
		"chain_id", policy.ChainID,
		"dynamic", policy.Enabled,
		"price", quote.String())

	return quote, nil
}
