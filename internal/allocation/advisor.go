// Package allocation recommends how much capital to commit to short premium
// given the prevailing volatility index level.
package allocation

import (
	"math"

	"github.com/eddiefleurent/options_dashboard/internal/util"
)

// Band labels.
const (
	LowVolatility      = "low_volatility"
	ModerateVolatility = "moderate_volatility"
	HighVolatility     = "high_volatility"
	ExtremeVolatility  = "extreme_volatility"
)

// Recommendations.
const (
	Increase = "increase"
	Decrease = "decrease"
	Maintain = "maintain"
)

// Band maps a volatility index range (lower bound exclusive except for the
// first band) to a recommended allocation range in percent.
type Band struct {
	Label  string  `json:"label"`
	MinVIX float64 `json:"min_vix"`
	MaxVIX float64 `json:"max_vix"`
	MinPct float64 `json:"min_pct"`
	MaxPct float64 `json:"max_pct"`
}

// Bands are ordered by volatility.
var Bands = []Band{
	{Label: LowVolatility, MinVIX: 10, MaxVIX: 12, MinPct: 20, MaxPct: 20},
	{Label: ModerateVolatility, MinVIX: 12, MaxVIX: 15, MinPct: 20, MaxPct: 60},
	{Label: HighVolatility, MinVIX: 15, MaxVIX: 20, MinPct: 60, MaxPct: 80},
	{Label: ExtremeVolatility, MinVIX: 20, MaxVIX: 30, MinPct: 80, MaxPct: 100},
}

// Advice is the AllocationAdvisor output.
type Advice struct {
	VIX                   float64 `json:"vix"`
	Band                  Band    `json:"band"`
	CurrentPct            float64 `json:"current_pct"`
	Recommendation        string  `json:"recommendation"`
	AdditionalCapacityPct float64 `json:"additional_capacity_pct"`
	AdditionalCapacity    float64 `json:"additional_capacity"`
	RequiredReductionPct  float64 `json:"required_reduction_pct"`
	RequiredReduction     float64 `json:"required_reduction"`
	AccountValue          float64 `json:"account_value"`
}

// BandFor returns the band containing vix. Values below the first band clamp
// to it, values above the last clamp to the last.
func BandFor(vix float64) Band {
	for _, b := range Bands {
		if vix <= b.MaxVIX {
			return b
		}
	}
	return Bands[len(Bands)-1]
}

// Advise compares the current collateral usage (percent of account value)
// with the band for vix. Dollar amounts are zero when accountValue is nil.
func Advise(vix, currentPct float64, accountValue *float64) Advice {
	b := BandFor(vix)
	a := Advice{
		VIX:            vix,
		Band:           b,
		CurrentPct:     currentPct,
		Recommendation: Maintain,
	}
	switch {
	case currentPct < b.MinPct:
		a.Recommendation = Increase
	case currentPct > b.MaxPct:
		a.Recommendation = Decrease
	}

	a.AdditionalCapacityPct = math.Max(0, b.MaxPct-currentPct)
	a.RequiredReductionPct = math.Max(0, currentPct-b.MaxPct)
	if accountValue != nil {
		a.AccountValue = *accountValue
		a.AdditionalCapacity = util.Finite(a.AdditionalCapacityPct / 100 * a.AccountValue)
		a.RequiredReduction = util.Finite(a.RequiredReductionPct / 100 * a.AccountValue)
	}
	return a
}
