package gasprice

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/MoonbridgeInc/hermes/internal/metrics"
	"github.com/MoonbridgeInc/hermes/internal/retry"
)

type mockCongestionSource struct {
	mock.Mock
}

func (m *mockCongestionSource) QueryCongestion(ctx context.Context, denom string) (CongestionSignal, error) {
	args := m.Called(ctx, denom)
	return args.Get(0).(CongestionSignal), args.Error(1)
}

func testService(t *testing.T, source CongestionSource) (*Service, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m, err := metrics.New("test", reg)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	svc := NewService(logger, source, m).WithRetry(retry.Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
		Multiplier:   1,
	})
	return svc, reg
}

func TestServiceQuoteStatic(t *testing.T) {
	source := new(mockCongestionSource)
	svc, _ := testService(t, source)

	quote, err := svc.Quote(context.Background(), staticPolicy())
	require.NoError(t, err)
	assert.True(t, quote.PricePerGasUnit.Equal(math.LegacyMustNewDecFromStr("0.3")))

	// static pricing never reads the network
	source.AssertNotCalled(t, "QueryCongestion", mock.Anything, mock.Anything)
}

func TestServiceQuoteDynamic(t *testing.T) {
	source := new(mockCongestionSource)
	source.On("QueryCongestion", mock.Anything, "stake").
		Return(CongestionSignal{}, errors.New("connection refused")).Once()
	source.On("QueryCongestion", mock.Anything, "stake").
		Return(CongestionSignal{BaseFee: math.LegacyMustNewDecFromStr("0.025"), Denom: "stake"}, nil)

	svc, _ := testService(t, source)

	quote, err := svc.Quote(context.Background(), dynamicPolicy(1, 1))
	require.NoError(t, err)
	assert.True(t, quote.PricePerGasUnit.Equal(math.LegacyMustNewDecFromStr("0.025")))
	source.AssertNumberOfCalls(t, "QueryCongestion", 2)
}

func TestServiceQuoteSourceFailure(t *testing.T) {
	source := new(mockCongestionSource)
	source.On("QueryCongestion", mock.Anything, "stake").
		Return(CongestionSignal{}, errors.New("connection refused"))

	svc, _ := testService(t, source)

	_, err := svc.Quote(context.Background(), dynamicPolicy(1, 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to query congestion signal of chain-b")
	assert.Contains(t, err.Error(), "connection refused")
	source.AssertNumberOfCalls(t, "QueryCongestion", 3)
}

func TestServiceQuoteWithoutSource(t *testing.T) {
	svc, _ := testService(t, nil)

	_, err := svc.Quote(context.Background(), dynamicPolicy(1, 1))
	require.ErrorIs(t, err, ErrMissingCongestionSignal)

	_, err = svc.Quote(context.Background(), staticPolicy())
	require.NoError(t, err)
}

func TestServiceQuoteNonPositive(t *testing.T) {
	svc, _ := testService(t, StaticSource{BaseFee: math.LegacyZeroDec()})

	_, err := svc.Quote(context.Background(), dynamicPolicy(1, 1))
	require.ErrorIs(t, err, ErrNonPositivePrice)
}

func TestServiceRecordsMetrics(t *testing.T) {
	svc, reg := testService(t, StaticSource{BaseFee: math.LegacyMustNewDecFromStr("0.5")})

	_, err := svc.Quote(context.Background(), dynamicPolicy(1, 2))
	require.NoError(t, err)
	_, err = svc.Quote(context.Background(), staticPolicy())
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(reg, "test_gas_price_quotes")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
