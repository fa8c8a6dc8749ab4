package marketdata

import (
	"context"
	"crypto/rand"
	"math"
	"math/big"
	"strings"
	"sync"

	"github.com/eddiefleurent/options_dashboard/internal/util"
)

// priceTick is the quote increment of simulated prices.
const priceTick = 0.01

// MockProvider simulates a live feed: each call moves prices by a small random step.
type MockProvider struct {
	mu           sync.Mutex
	prices       map[string]float64
	vix          float64
	accountValue float64
}

var _ Provider = (*MockProvider)(nil)

// secureFloat64 generates a cryptographically secure random float64 between 0 and 1
func secureFloat64() float64 {
	n, err := rand.Int(rand.Reader, big.NewInt(1<<53))
	if err != nil {
		return 0.5
	}
	return float64(n.Int64()) / (1 << 53)
}

// NewMockProvider seeds the simulation with base quotes. Symbols without a
// base price start between 50 and 150; VIX starts between 12 and 30.
func NewMockProvider(base Quotes) *MockProvider {
	base = normalize(base)
	m := &MockProvider{
		prices:       base.Spot,
		vix:          base.VIX,
		accountValue: base.AccountValue,
	}
	if m.vix <= 0 {
		m.vix = 12.0 + secureFloat64()*18
	}
	if m.accountValue <= 0 {
		m.accountValue = 100000
	}
	return m
}

// SpotPrice returns the next simulated price for symbol.
func (m *MockProvider) SpotPrice(ctx context.Context, symbol string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	sym := strings.ToUpper(strings.TrimSpace(symbol))

	m.mu.Lock()
	defer m.mu.Unlock()
	price, ok := m.prices[sym]
	if !ok || price <= 0 {
		price = 50.0 + secureFloat64()*100
	}
	// Simulate small price movements
	price = math.Max(priceTick, util.RoundToTick(price*(1+(secureFloat64()-0.5)*0.01), priceTick))
	m.prices[sym] = price
	return price, nil
}

// VolatilityIndex returns the next simulated VIX value, kept between 9 and 80.
func (m *MockProvider) VolatilityIndex(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vix += (secureFloat64() - 0.5) * 0.5
	m.vix = util.Clamp(util.RoundToTick(m.vix, priceTick), 9, 80)
	return m.vix, nil
}

// NetLiquidation returns the configured account value.
func (m *MockProvider) NetLiquidation(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accountValue, nil
}
