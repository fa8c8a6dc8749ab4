// Package risk estimates option Greeks, stress scenarios and exposure for open option positions.
package risk

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/eddiefleurent/options_dashboard/internal/models"
	"github.com/eddiefleurent/options_dashboard/internal/util"
)

// Model defaults. The estimator is an approximation, not a calibrated pricer.
const (
	DefaultRiskFreeRate = 0.05
	DefaultMinVol       = 0.10
	DefaultMaxVol       = 1.00
	daysPerYear         = 365.0
)

// Greeks are Black-Scholes sensitivities per share. Theta is per calendar day,
// vega per one point of volatility.
type Greeks struct {
	Delta      float64 `json:"delta"`
	Gamma      float64 `json:"gamma"`
	Theta      float64 `json:"theta"`
	Vega       float64 `json:"vega"`
	ProbProfit float64 `json:"prob_profit"`
	ImpliedVol float64 `json:"implied_vol"`
	// Fallback is set when neutral defaults were returned instead of model output.
	Fallback bool `json:"fallback"`
}

// ModelParams configures the Black-Scholes estimator.
type ModelParams struct {
	RiskFreeRate float64
	MinVol       float64
	MaxVol       float64
}

// DefaultModelParams returns r=5% and a [10%, 100%] volatility band.
func DefaultModelParams() ModelParams {
	return ModelParams{RiskFreeRate: DefaultRiskFreeRate, MinVol: DefaultMinVol, MaxVol: DefaultMaxVol}
}

// YearsToExpiry converts days left to years, floored at one day.
func YearsToExpiry(daysLeft int) float64 {
	return math.Max(1/daysPerYear, float64(daysLeft)/daysPerYear)
}

// EstimateIV is a rough volatility guess from the per-share premium, clamped to the band.
func (p ModelParams) EstimateIV(premium, strike, years float64) float64 {
	iv := util.SafeDiv(premium, strike*math.Sqrt(years)) * 2
	return util.Clamp(iv, p.MinVol, p.MaxVol)
}

// FallbackGreeks are the neutral values used when spot is unknown or the model
// cannot be evaluated.
func FallbackGreeks(kind models.OptionKind) Greeks {
	delta := 0.5
	if kind == models.KindPut {
		delta = -0.5
	}
	return Greeks{
		Delta:      delta,
		Gamma:      0.01,
		Theta:      -0.1,
		Vega:       0.1,
		ProbProfit: 0.5,
		ImpliedVol: 0.3,
		Fallback:   true,
	}
}

// Compute evaluates Black-Scholes Greeks. A nil or non-positive spot, or any
// input outside the model's domain, yields FallbackGreeks.
func (p ModelParams) Compute(kind models.OptionKind, spot *float64, strike, years, vol float64) Greeks {
	if spot == nil || *spot <= 0 || strike <= 0 || years <= 0 || vol <= 0 {
		return FallbackGreeks(kind)
	}
	s, k, t, r := *spot, strike, years, p.RiskFreeRate
	sigma := util.Clamp(vol, p.MinVol, p.MaxVol)

	n := distuv.UnitNormal
	sqrtT := math.Sqrt(t)
	d1 := (math.Log(s/k) + (r+0.5*sigma*sigma)*t) / (sigma * sqrtT)
	d2 := d1 - sigma*sqrtT
	pdf := n.Prob(d1)
	discount := r * k * math.Exp(-r*t)
	decay := -s * pdf * sigma / (2 * sqrtT)

	g := Greeks{
		Gamma:      pdf / (s * sigma * sqrtT),
		Vega:       s * sqrtT * pdf / 100,
		ImpliedVol: sigma,
	}
	if kind == models.KindPut {
		g.Delta = n.CDF(d1) - 1
		g.Theta = (decay - discount*n.CDF(-d2)) / daysPerYear
		g.ProbProfit = 1 - n.CDF(d2)
	} else {
		g.Delta = n.CDF(d1)
		g.Theta = (decay + discount*n.CDF(d2)) / daysPerYear
		g.ProbProfit = n.CDF(d2)
	}

	for _, v := range []float64{g.Delta, g.Gamma, g.Theta, g.Vega, g.ProbProfit} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return FallbackGreeks(kind)
		}
	}
	return g
}
