package marketdata

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) SpotPrice(ctx context.Context, symbol string) (float64, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(float64), args.Error(1)
}

func (m *mockProvider) VolatilityIndex(ctx context.Context) (float64, error) {
	args := m.Called(ctx)
	return args.Get(0).(float64), args.Error(1)
}

func (m *mockProvider) NetLiquidation(ctx context.Context) (float64, error) {
	args := m.Called(ctx)
	return args.Get(0).(float64), args.Error(1)
}

func TestResolve(t *testing.T) {
	p := new(mockProvider)
	p.On("SpotPrice", mock.Anything, "SPY").Return(590.25, nil)
	p.On("SpotPrice", mock.Anything, "QQQ").Return(0.0, fmt.Errorf("QQQ: %w", ErrUnavailable))
	p.On("SpotPrice", mock.Anything, "IWM").Return(-1.0, nil)
	p.On("VolatilityIndex", mock.Anything).Return(17.5, nil)
	p.On("NetLiquidation", mock.Anything).Return(0.0, errors.New("connection refused"))

	logger, hook := test.NewNullLogger()
	snap, err := Resolve(context.Background(), p, []string{"SPY", "QQQ", "SPY", "IWM", ""}, logger, 2)
	require.NoError(t, err)

	require.Len(t, snap.Spot, 3)
	require.NotNil(t, snap.Spot["SPY"])
	assert.Equal(t, 590.25, *snap.Spot["SPY"])
	assert.Nil(t, snap.Spot["QQQ"])
	assert.Nil(t, snap.Spot["IWM"])
	require.NotNil(t, snap.VIX)
	assert.Equal(t, 17.5, *snap.VIX)
	assert.Nil(t, snap.AccountValue)

	assert.Len(t, hook.AllEntries(), 3)
	p.AssertNumberOfCalls(t, "SpotPrice", 3)
	p.AssertExpectations(t)
}

func TestResolve_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Resolve(ctx, NewStaticProvider(Quotes{}), []string{"SPY"}, nil, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStaticProvider(t *testing.T) {
	p := NewStaticProvider(Quotes{Spot: map[string]float64{"spy": 500, "ZERO": 0}, VIX: 14})
	ctx := context.Background()

	v, err := p.SpotPrice(ctx, "SPY")
	require.NoError(t, err)
	assert.Equal(t, 500.0, v)

	_, err = p.SpotPrice(ctx, "ZERO")
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = p.SpotPrice(ctx, "MISSING")
	assert.ErrorIs(t, err, ErrUnavailable)

	vix, err := p.VolatilityIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 14.0, vix)

	_, err = p.NetLiquidation(ctx)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestFileProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quotes.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vix: 22.5\naccount_value: 250000\nquotes:\n  SPY: 590\n"), 0o600))

	p, err := NewFileProvider(path)
	require.NoError(t, err)
	ctx := context.Background()

	v, err := p.SpotPrice(ctx, "spy")
	require.NoError(t, err)
	assert.Equal(t, 590.0, v)
	vix, err := p.VolatilityIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 22.5, vix)
	av, err := p.NetLiquidation(ctx)
	require.NoError(t, err)
	assert.Equal(t, 250000.0, av)

	// rewrite with a new mtime
	require.NoError(t, os.WriteFile(path, []byte("quotes:\n  SPY: 600\n"), 0o600))
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))

	v, err = p.SpotPrice(ctx, "SPY")
	require.NoError(t, err)
	assert.Equal(t, 600.0, v)
	_, err = p.VolatilityIndex(ctx)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = NewFileProvider(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestMockProvider(t *testing.T) {
	p := NewMockProvider(Quotes{Spot: map[string]float64{"SPY": 500}, VIX: 20, AccountValue: 50000})
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		v, err := p.SpotPrice(ctx, "SPY")
		require.NoError(t, err)
		assert.InDelta(t, 500.0, v, 100)
		assert.InDelta(t, math.Round(v*100), v*100, 1e-6, "prices move in cent ticks")

		vix, err := p.VolatilityIndex(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, vix, 9.0)
		assert.LessOrEqual(t, vix, 80.0)
	}

	unknown, err := p.SpotPrice(ctx, "NEW")
	require.NoError(t, err)
	assert.Greater(t, unknown, 0.0)

	av, err := p.NetLiquidation(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50000.0, av)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = p.SpotPrice(canceled, "SPY")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCircuitBreakerProvider_Trips(t *testing.T) {
	p := new(mockProvider)
	p.On("SpotPrice", mock.Anything, "SPY").Return(0.0, errors.New("503 service unavailable"))

	logger, hook := test.NewNullLogger()
	cb := NewCircuitBreakerProvider(p, BreakerSettings{
		MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute, MinRequests: 3, FailureRatio: 0.5,
	}, logger)

	for i := 0; i < 3; i++ {
		_, err := cb.SpotPrice(context.Background(), "SPY")
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "open", hook.LastEntry().Data["to"])

	_, err := cb.SpotPrice(context.Background(), "SPY")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	p.AssertNumberOfCalls(t, "SpotPrice", 3)
}

func TestCircuitBreakerProvider_UnavailableIsNotFailure(t *testing.T) {
	p := new(mockProvider)
	p.On("VolatilityIndex", mock.Anything).Return(0.0, ErrUnavailable)
	p.On("NetLiquidation", mock.Anything).Return(100000.0, nil)

	cb := NewCircuitBreakerProvider(p, BreakerSettings{
		MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute, MinRequests: 2, FailureRatio: 0.5,
	}, nil)

	for i := 0; i < 5; i++ {
		_, err := cb.VolatilityIndex(context.Background())
		assert.ErrorIs(t, err, ErrUnavailable)
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())

	v, err := cb.NetLiquidation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100000.0, v)
}

func fastRetry() RetryConfig {
	return RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, Timeout: time.Second}
}

func TestRetryProvider_RetriesTransient(t *testing.T) {
	p := new(mockProvider)
	p.On("SpotPrice", mock.Anything, "SPY").Return(0.0, errors.New("dial tcp: connection reset")).Twice()
	p.On("SpotPrice", mock.Anything, "SPY").Return(591.0, nil).Once()

	r := NewRetryProvider(p, nil, fastRetry())
	v, err := r.SpotPrice(context.Background(), "SPY")
	require.NoError(t, err)
	assert.Equal(t, 591.0, v)
	p.AssertNumberOfCalls(t, "SpotPrice", 3)
}

func TestRetryProvider_GivesUp(t *testing.T) {
	p := new(mockProvider)
	p.On("VolatilityIndex", mock.Anything).Return(0.0, errors.New("504 gateway timeout"))

	r := NewRetryProvider(p, nil, fastRetry())
	_, err := r.VolatilityIndex(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vix lookup failed")
	p.AssertNumberOfCalls(t, "VolatilityIndex", 3)
}

func TestRetryProvider_NoRetryOnPermanent(t *testing.T) {
	p := new(mockProvider)
	p.On("NetLiquidation", mock.Anything).Return(0.0, ErrUnavailable)

	r := NewRetryProvider(p, nil, fastRetry())
	_, err := r.NetLiquidation(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	p.AssertNumberOfCalls(t, "NetLiquidation", 1)
}

func TestIsTransientError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("request timeout"), true},
		{errors.New("HTTP 429 rate limit"), true},
		{context.DeadlineExceeded, true},
		{context.Canceled, false},
		{ErrUnavailable, false},
		{gobreaker.ErrOpenState, false},
		{errors.New("invalid symbol"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isTransientError(tt.err), "%v", tt.err)
	}
}
