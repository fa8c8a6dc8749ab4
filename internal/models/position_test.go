package models

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

func TestDaysLeft(t *testing.T) {
	now := time.Date(2025, 6, 2, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name       string
		expiration time.Time
		want       int
	}{
		{name: "same day", expiration: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), want: 0},
		{name: "three days ahead", expiration: time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC), want: 3},
		{name: "partial day truncates", expiration: time.Date(2025, 6, 3, 20, 0, 0, 0, time.UTC), want: 1},
		{name: "expired is negative", expiration: time.Date(2025, 5, 30, 0, 0, 0, 0, time.UTC), want: -3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Position{AssetClass: AssetOption, Option: &OptionContract{Expiration: tt.expiration, Strike: 100, Kind: KindPut}}
			assert.Equal(t, tt.want, p.DaysLeft(now))
		})
	}

	t.Run("evening in a zone behind UTC keeps the local day", func(t *testing.T) {
		edt := time.FixedZone("EDT", -4*3600)
		evening := time.Date(2025, 6, 2, 21, 0, 0, 0, edt)
		p := &Position{AssetClass: AssetOption, Option: &OptionContract{
			Expiration: time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC), Strike: 400, Kind: KindPut,
		}}
		assert.Equal(t, 1, p.DaysLeft(evening))
		assert.Equal(t, 1, p.DaysLeft(time.Date(2025, 6, 2, 0, 5, 0, 0, edt)))
	})

	t.Run("stock has no expiry", func(t *testing.T) {
		p := &Position{AssetClass: AssetStock}
		assert.Equal(t, 0, p.DaysLeft(now))
	})
}

func TestCollateral(t *testing.T) {
	p := &Position{
		Symbol:     "SPY",
		AssetClass: AssetOption,
		Quantity:   -10,
		Option:     &OptionContract{Strike: 400, Kind: KindPut},
	}
	assert.InDelta(t, 40000.0, p.CollateralPerContract(), 1e-9)
	assert.InDelta(t, 400000.0, p.Collateral(), 1e-9)
	assert.True(t, p.IsShortPut())

	stock := &Position{Symbol: "AAPL", AssetClass: AssetStock, Quantity: 100}
	assert.Zero(t, stock.Collateral())
	assert.False(t, stock.IsShortPut())
}

func TestValue_PrefersMarketValue(t *testing.T) {
	p := &Position{Quantity: -2, MarketPrice: 0.2, MarketValue: floatPtr(-39.42)}
	assert.InDelta(t, -39.42, p.Value(), 1e-9)

	p.MarketValue = nil
	assert.InDelta(t, 0.4, p.Value(), 1e-9)
}

func TestProfitPercent(t *testing.T) {
	t.Run("option uses contracts times premium", func(t *testing.T) {
		p := &Position{
			AssetClass:    AssetOption,
			Option:        &OptionContract{Strike: 13, Kind: KindPut},
			Quantity:      -2,
			AvgPremium:    29,
			UnrealizedPnL: 18.58,
		}
		assert.InDelta(t, 18.58/58*100, p.ProfitPercent(), 1e-9)
	})

	t.Run("stock uses absolute cost basis", func(t *testing.T) {
		p := &Position{AssetClass: AssetStock, Quantity: -50, CostBasis: -9000, UnrealizedPnL: -1000}
		assert.InDelta(t, -1000.0/9000*100, p.ProfitPercent(), 1e-9)
	})

	t.Run("zero denominators yield zero", func(t *testing.T) {
		p := &Position{AssetClass: AssetStock, UnrealizedPnL: 100}
		assert.Zero(t, p.ProfitPercent())

		o := &Position{AssetClass: AssetOption, Option: &OptionContract{Kind: KindCall}, Quantity: 3, UnrealizedPnL: 50}
		assert.Zero(t, o.ProfitPercent())
	})
}

func TestPositionValidate(t *testing.T) {
	valid := Position{Symbol: "SPY", AssetClass: AssetOption, Quantity: -1, Option: &OptionContract{Strike: 400, Kind: KindPut}}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(p *Position)
		msg    string
	}{
		{name: "empty symbol", mutate: func(p *Position) { p.Symbol = " " }, msg: "symbol is required"},
		{name: "bad asset class", mutate: func(p *Position) { p.AssetClass = "BOND" }, msg: "invalid asset class"},
		{name: "option without terms", mutate: func(p *Position) { p.Option = nil }, msg: "missing contract terms"},
		{name: "bad kind", mutate: func(p *Position) { p.Option = &OptionContract{Kind: "X"} }, msg: "invalid option kind"},
		{name: "NaN pnl", mutate: func(p *Position) { p.UnrealizedPnL = math.NaN() }, msg: "unrealized_pnl"},
		{name: "infinite market value", mutate: func(p *Position) { p.MarketValue = floatPtr(math.Inf(1)) }, msg: "market_value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			opt := *valid.Option
			p.Option = &opt
			tt.mutate(&p)
			err := p.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestParseOptionKind(t *testing.T) {
	for in, want := range map[string]OptionKind{"P": KindPut, "put": KindPut, " C ": KindCall, "CALL": KindCall} {
		got, err := ParseOptionKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseOptionKind("straddle")
	assert.Error(t, err)
}
