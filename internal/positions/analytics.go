// Package positions summarizes open positions independently of trade history.
package positions

import (
	"math"

	"github.com/eddiefleurent/options_dashboard/internal/models"
	"github.com/eddiefleurent/options_dashboard/internal/util"
)

// PositionRef identifies a single position in a summary.
type PositionRef struct {
	Symbol      string  `json:"symbol"`
	Description string  `json:"description,omitempty"`
	Kind        string  `json:"kind"`
	Value       float64 `json:"value"`
	PnL         float64 `json:"pnl"`
	PnLPct      float64 `json:"pnl_pct"`
}

// KindStats accumulates positions of one kind (PUT, CALL or STOCK).
type KindStats struct {
	Count int     `json:"count"`
	Value float64 `json:"value"`
	PnL   float64 `json:"pnl"`
}

// RiskMetrics are simple extremes over per-position P&L.
type RiskMetrics struct {
	LargestGain     float64 `json:"largest_gain"`
	LargestLoss     float64 `json:"largest_loss"`
	AvgPositionSize float64 `json:"avg_position_size"`
}

// OptionBook summarizes only the option positions.
type OptionBook struct {
	Total         int     `json:"total"`
	Long          int     `json:"long"`
	Short         int     `json:"short"`
	PremiumValue  float64 `json:"premium_value"`
	TotalCost     float64 `json:"total_cost"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
}

// CollateralUsage relates put collateral to account net liquidation value.
// All fields are zero when the account value is unavailable or zero.
type CollateralUsage struct {
	AccountValue     float64 `json:"account_value"`
	Collateral       float64 `json:"collateral"`
	CollateralPct    float64 `json:"collateral_pct"`
	AvailableCapital float64 `json:"available_capital"`
	AvailablePct     float64 `json:"available_pct"`
}

// Summary is the open-position analytics result.
type Summary struct {
	ByKind          map[string]KindStats `json:"by_kind"`
	LargestPosition *PositionRef         `json:"largest_position"`
	MostProfitable  *PositionRef         `json:"most_profitable"`
	LeastProfitable *PositionRef         `json:"least_profitable"`
	Positions       []PositionRef        `json:"positions"`
	Options         OptionBook           `json:"options"`
	Collateral      CollateralUsage      `json:"collateral"`
	Risk            RiskMetrics          `json:"risk_metrics"`
	TotalPositions  int                  `json:"total_positions"`
	TotalValue      float64              `json:"total_value"`
	TotalCost       float64              `json:"total_cost"`
	UnrealizedPnL   float64              `json:"unrealized_pnl"`
	UnrealizedPct   float64              `json:"unrealized_pnl_pct"`
	LongPositions   int                  `json:"long_positions"`
	ShortPositions  int                  `json:"short_positions"`
	OptionPositions int                  `json:"option_positions"`
	StockPositions  int                  `json:"stock_positions"`
}

// Analyze summarizes open positions. accountValue may be nil when the broker
// could not supply it; putCollateral is the total short put collateral.
func Analyze(positions []models.Position, accountValue *float64, putCollateral float64) Summary {
	s := Summary{
		ByKind:    map[string]KindStats{},
		Positions: make([]PositionRef, 0, len(positions)),
	}

	for i := range positions {
		p := &positions[i]
		value := p.Value()
		ref := PositionRef{
			Symbol:      p.Symbol,
			Description: p.Description,
			Kind:        p.Kind(),
			Value:       value,
			PnL:         p.UnrealizedPnL,
			PnLPct:      p.ProfitPercent(),
		}
		s.Positions = append(s.Positions, ref)

		s.TotalValue += value
		s.TotalCost += math.Abs(p.CostBasis)
		s.UnrealizedPnL += p.UnrealizedPnL

		// flat positions count as neither long nor short
		switch {
		case p.Quantity > 0:
			s.LongPositions++
		case p.Quantity < 0:
			s.ShortPositions++
		}

		if p.IsOption() {
			s.OptionPositions++
			s.Options.Total++
			switch {
			case p.Quantity > 0:
				s.Options.Long++
			case p.Quantity < 0:
				s.Options.Short++
			}
			s.Options.PremiumValue += value
			s.Options.TotalCost += math.Abs(p.CostBasis)
			s.Options.UnrealizedPnL += p.UnrealizedPnL
		} else {
			s.StockPositions++
		}

		ks := s.ByKind[ref.Kind]
		ks.Count++
		ks.Value += value
		ks.PnL += p.UnrealizedPnL
		s.ByKind[ref.Kind] = ks
	}

	s.TotalPositions = len(positions)
	s.UnrealizedPct = util.Pct(s.UnrealizedPnL, s.TotalCost)
	s.Collateral = Usage(accountValue, putCollateral)

	if len(s.Positions) == 0 {
		return s
	}

	largest, most, least := 0, 0, 0
	for i, ref := range s.Positions {
		if math.Abs(ref.Value) > math.Abs(s.Positions[largest].Value) {
			largest = i
		}
		if ref.PnL > s.Positions[most].PnL {
			most = i
		}
		if ref.PnL < s.Positions[least].PnL {
			least = i
		}
	}
	l, m, lp := s.Positions[largest], s.Positions[most], s.Positions[least]
	s.LargestPosition, s.MostProfitable, s.LeastProfitable = &l, &m, &lp

	s.Risk = RiskMetrics{
		LargestGain:     math.Max(0, m.PnL),
		LargestLoss:     math.Min(0, lp.PnL),
		AvgPositionSize: s.TotalValue / float64(len(s.Positions)),
	}
	return s
}

// Usage computes collateral usage against account net liquidation value.
func Usage(accountValue *float64, collateral float64) CollateralUsage {
	if accountValue == nil || *accountValue == 0 {
		return CollateralUsage{}
	}
	av := *accountValue
	available := av - collateral
	return CollateralUsage{
		AccountValue:     av,
		Collateral:       collateral,
		CollateralPct:    util.Pct(collateral, av),
		AvailableCapital: available,
		AvailablePct:     util.Pct(available, av),
	}
}
