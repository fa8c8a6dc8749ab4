// Package performance derives win/loss, drawdown and volatility statistics from completed trades.
package performance

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/eddiefleurent/options_dashboard/internal/trades"
	"github.com/eddiefleurent/options_dashboard/internal/util"
)

// TradingDaysPerYear annualizes daily volatility and Sharpe ratio.
const TradingDaysPerYear = 252

// GroupStats aggregates trades sharing an option type or holding-period bucket.
// All values are rounded to two decimals.
type GroupStats struct {
	Count    int     `json:"count"`
	TotalPnL float64 `json:"total_pnl"`
	AvgPnL   float64 `json:"avg_pnl"`
	WinRate  float64 `json:"win_rate"`
}

// TradeHighlight is a best or worst trade entry.
type TradeHighlight struct {
	Symbol      string  `json:"symbol"`
	Description string  `json:"description"`
	PnL         float64 `json:"pnl"`
	DaysHeld    int     `json:"days_held"`
}

// RiskMetrics are computed from the daily return series.
//
// MaxDrawdown and AvgDrawdown scale the fractional drawdown by total P&L, so
// they are expressed in dollars rather than percent.
type RiskMetrics struct {
	MaxDrawdown      float64 `json:"max_drawdown"`
	AvgDrawdown      float64 `json:"avg_drawdown"`
	ReturnVolatility float64 `json:"return_volatility"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
}

// Report is the full trading performance summary.
type Report struct {
	ByType           map[string]GroupStats `json:"type_stats"`
	ByHoldingPeriod  map[string]GroupStats `json:"holding_period_stats"`
	BestTrades       []TradeHighlight      `json:"best_trades"`
	WorstTrades      []TradeHighlight      `json:"worst_trades"`
	TotalTrades      int                   `json:"total_trades"`
	WinningTrades    int                   `json:"winning_trades"`
	LosingTrades     int                   `json:"losing_trades"`
	WinRate          float64               `json:"win_rate"`
	TotalPnL         float64               `json:"total_pnl"`
	AvgPnL           float64               `json:"avg_pnl"`
	MaxProfit        float64               `json:"max_profit"`
	MaxLoss          float64               `json:"max_loss"`
	AvgHoldingPeriod float64               `json:"avg_holding_period"`
	RiskMetrics
}

// DrawdownSeries holds the intermediate series used for drawdown metrics.
type DrawdownSeries struct {
	Cumulative []float64
	RollingMax []float64
	Drawdown   []float64
}

// Analyze summarizes a match result. With no completed trades it returns a
// zeroed report with empty (non-nil) collections.
func Analyze(m trades.MatchResult) Report {
	r := Report{
		ByType:          map[string]GroupStats{},
		ByHoldingPeriod: map[string]GroupStats{},
		BestTrades:      []TradeHighlight{},
		WorstTrades:     []TradeHighlight{},
	}
	if len(m.Trades) == 0 {
		return r
	}

	pnls := make([]float64, len(m.Trades))
	held := make([]float64, len(m.Trades))
	for i, t := range m.Trades {
		pnls[i] = t.PnL
		held[i] = float64(t.DaysHeld)
		if t.IsWin {
			r.WinningTrades++
		} else {
			r.LosingTrades++
		}
		r.TotalPnL += t.PnL
	}
	r.TotalTrades = len(m.Trades)
	r.WinRate = float64(r.WinningTrades) / float64(r.TotalTrades) * 100
	r.AvgPnL = stat.Mean(pnls, nil)
	r.MaxProfit = maxOf(pnls)
	r.MaxLoss = minOf(pnls)
	r.AvgHoldingPeriod = stat.Mean(held, nil)

	r.RiskMetrics = ComputeRiskMetrics(m.Returns, r.TotalPnL)
	r.ByType = groupBy(m.Trades, func(t trades.CompletedTrade) string { return t.Type })
	r.ByHoldingPeriod = groupBy(m.Trades, func(t trades.CompletedTrade) string { return t.HoldingPeriod })
	r.BestTrades, r.WorstTrades = highlights(m.Trades, 3)
	return r
}

// Drawdowns builds the cumulative return, rolling max and drawdown series for
// returns already sorted by date.
func Drawdowns(returns []float64) DrawdownSeries {
	s := DrawdownSeries{
		Cumulative: make([]float64, len(returns)),
		RollingMax: make([]float64, len(returns)),
		Drawdown:   make([]float64, len(returns)),
	}
	cum := 1.0
	peak := math.Inf(-1)
	for i, ret := range returns {
		cum *= 1 + ret
		peak = math.Max(peak, cum)
		s.Cumulative[i] = cum
		s.RollingMax[i] = peak
		s.Drawdown[i] = math.Min(0, util.SafeDiv(cum-peak, peak))
	}
	return s
}

// ComputeRiskMetrics derives drawdown, volatility and Sharpe ratio. Samples are
// sorted by date first. An empty series yields all zeros.
func ComputeRiskMetrics(samples []trades.ReturnSample, totalPnL float64) RiskMetrics {
	if len(samples) == 0 {
		return RiskMetrics{}
	}

	sorted := make([]trades.ReturnSample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	returns := make([]float64, len(sorted))
	for i, s := range sorted {
		returns[i] = s.Return
	}

	dd := Drawdowns(returns)
	mean := stat.Mean(returns, nil)
	sd := sampleStdDev(returns)
	annual := math.Sqrt(TradingDaysPerYear)

	m := RiskMetrics{
		MaxDrawdown:      math.Abs(minOf(dd.Drawdown)) * totalPnL,
		AvgDrawdown:      math.Abs(stat.Mean(dd.Drawdown, nil)) * totalPnL,
		ReturnVolatility: sd * annual * 100,
	}
	if sd != 0 {
		m.SharpeRatio = util.Finite(mean / sd * annual)
	}
	return m
}

// sampleStdDev is the n-1 standard deviation; fewer than two samples have no spread.
func sampleStdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	return util.Finite(stat.StdDev(xs, nil))
}

func groupBy(ts []trades.CompletedTrade, key func(trades.CompletedTrade) string) map[string]GroupStats {
	type acc struct {
		count, wins int
		total       float64
	}
	accs := map[string]*acc{}
	for _, t := range ts {
		k := key(t)
		if k == "" {
			continue
		}
		a, ok := accs[k]
		if !ok {
			a = &acc{}
			accs[k] = a
		}
		a.count++
		a.total += t.PnL
		if t.IsWin {
			a.wins++
		}
	}

	out := make(map[string]GroupStats, len(accs))
	for k, a := range accs {
		out[k] = GroupStats{
			Count:    a.count,
			TotalPnL: util.Round2(a.total),
			AvgPnL:   util.Round2(a.total / float64(a.count)),
			WinRate:  util.Round2(float64(a.wins) / float64(a.count) * 100),
		}
	}
	return out
}

func highlights(ts []trades.CompletedTrade, n int) (best, worst []TradeHighlight) {
	sorted := make([]trades.CompletedTrade, len(ts))
	copy(sorted, ts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].PnL > sorted[j].PnL })

	k := min(n, len(sorted))
	best = make([]TradeHighlight, 0, k)
	worst = make([]TradeHighlight, 0, k)
	for i := 0; i < k; i++ {
		best = append(best, toHighlight(sorted[i]))
		worst = append(worst, toHighlight(sorted[len(sorted)-1-i]))
	}
	return best, worst
}

func toHighlight(t trades.CompletedTrade) TradeHighlight {
	return TradeHighlight{Symbol: t.Symbol, Description: t.Description, PnL: t.PnL, DaysHeld: t.DaysHeld}
}

func maxOf(xs []float64) float64 {
	m := math.Inf(-1)
	for _, x := range xs {
		m = math.Max(m, x)
	}
	return m
}

func minOf(xs []float64) float64 {
	m := math.Inf(1)
	for _, x := range xs {
		m = math.Min(m, x)
	}
	return m
}
