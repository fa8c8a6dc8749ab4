package risk

import (
	"math"
	"sort"
	"time"

	"github.com/eddiefleurent/options_dashboard/internal/models"
	"github.com/eddiefleurent/options_dashboard/internal/util"
)

// Risk levels shared by positions, scenarios, concentration and ITM analysis.
const (
	LevelLow      = "Low"
	LevelMedium   = "Medium"
	LevelHigh     = "High"
	LevelCritical = "Critical"
)

// DefaultCloseThreshold is the annualized return (percent) below which a position should be closed.
const DefaultCloseThreshold = 12.0

// Stress scenario names.
const (
	ScenarioDown10    = "Stock -10%"
	ScenarioDown20    = "Stock -20%"
	ScenarioVolUp50   = "Volatility +50%"
	ScenarioWeekDecay = "1 Week Time Decay"
	ScenarioLargeMove = "Gamma Risk (Large Move)"
)

// StressScenario is the projected P&L impact of one shock.
type StressScenario struct {
	Name         string  `json:"name"`
	PnLChange    float64 `json:"pnl_change"`
	ResultingPnL float64 `json:"resulting_pnl"`
	RiskLevel    string  `json:"risk_level"`
}

// Profile is the risk view of one open option position.
type Profile struct {
	Expiration             time.Time         `json:"expiration"`
	Spot                   *float64          `json:"spot"`
	Symbol                 string            `json:"symbol"`
	Description            string            `json:"description,omitempty"`
	Kind                   models.OptionKind `json:"kind"`
	RiskLevel              string            `json:"risk_level"`
	Scenarios              []StressScenario  `json:"stress_scenarios"`
	Greeks                 Greeks            `json:"greeks"`
	Strike                 float64           `json:"strike"`
	Quantity               float64           `json:"quantity"`
	PremiumPerContract     float64           `json:"premium_per_contract"`
	MarketValuePerContract float64           `json:"market_value_per_contract"`
	CollateralPerContract  float64           `json:"collateral_per_contract"`
	Collateral             float64           `json:"collateral"`
	UnrealizedPnL          float64           `json:"unrealized_pnl"`
	AnnualizedReturn       float64           `json:"annualized_return"`
	DaysLeft               int               `json:"days_left"`
	ShouldClose            bool              `json:"should_close"`
}

// IsShortPut reports whether the profile is a short put.
func (p *Profile) IsShortPut() bool {
	return p.Kind == models.KindPut && p.Quantity < 0
}

// Aggregate totals Greeks across every profiled position. Greek totals are
// weighted by signed quantity.
type Aggregate struct {
	Positions       int     `json:"positions"`
	TotalDelta      float64 `json:"total_delta"`
	TotalGamma      float64 `json:"total_gamma"`
	TotalTheta      float64 `json:"total_theta"`
	TotalVega       float64 `json:"total_vega"`
	PutTheta        float64 `json:"put_theta"`
	CallTheta       float64 `json:"call_theta"`
	AvgProbProfit   float64 `json:"avg_prob_profit"`
	HighRiskCount   int     `json:"high_risk_count"`
	TotalCollateral float64 `json:"total_collateral"`
	PutCollateral   float64 `json:"put_collateral"`
}

// Result is the OptionsRiskEngine output.
type Result struct {
	Profiles  []Profile `json:"profiles"`
	Aggregate Aggregate `json:"aggregate"`
	// Skipped counts option positions that were expired or missing critical fields.
	Skipped int `json:"skipped"`
}

// Engine builds risk profiles for open option positions.
type Engine struct {
	params         ModelParams
	closeThreshold float64
}

// NewEngine creates an Engine. A non-positive close threshold falls back to DefaultCloseThreshold.
func NewEngine(params ModelParams, closeThreshold float64) *Engine {
	if closeThreshold <= 0 {
		closeThreshold = DefaultCloseThreshold
	}
	return &Engine{params: params, closeThreshold: closeThreshold}
}

// Analyze profiles every option position. spots maps underlying symbol to a
// spot price; a missing or nil entry means the price is unavailable and the
// Greeks fall back to neutral defaults.
func (e *Engine) Analyze(positions []models.Position, spots map[string]*float64, now time.Time) Result {
	res := Result{Profiles: []Profile{}}

	for i := range positions {
		p := &positions[i]
		if !p.IsOption() {
			continue
		}
		prof, ok := e.profile(p, spots[p.Symbol], now)
		if !ok {
			res.Skipped++
			continue
		}
		res.Profiles = append(res.Profiles, prof)
	}

	sort.SliceStable(res.Profiles, func(i, j int) bool {
		return res.Profiles[i].DaysLeft < res.Profiles[j].DaysLeft
	})
	res.Aggregate = aggregate(res.Profiles)
	return res
}

func (e *Engine) profile(p *models.Position, spot *float64, now time.Time) (Profile, bool) {
	if p.AvgPremium == 0 || p.MarketValue == nil || p.Option.Strike <= 0 ||
		p.Option.Expiration.IsZero() || p.Quantity == 0 {
		return Profile{}, false
	}
	daysLeft := p.DaysLeft(now)
	if daysLeft <= 0 {
		return Profile{}, false
	}

	contracts := p.Contracts()
	collPerContract := p.CollateralPerContract()
	mvPerContract := math.Abs(*p.MarketValue) / contracts
	years := YearsToExpiry(daysLeft)
	premiumPerShare := math.Abs(p.AvgPremium) / models.SharesPerContract
	iv := e.params.EstimateIV(premiumPerShare, p.Option.Strike, years)
	greeks := e.params.Compute(p.Option.Kind, spot, p.Option.Strike, years, iv)
	collateral := collPerContract * contracts

	annualized := AnnualizedReturn(mvPerContract, collPerContract, daysLeft)

	return Profile{
		Expiration:             p.Option.Expiration,
		Spot:                   spot,
		Symbol:                 p.Symbol,
		Description:            p.Description,
		Kind:                   p.Option.Kind,
		RiskLevel:              PositionRiskLevel(greeks),
		Scenarios:              StressScenarios(greeks, collateral, p.UnrealizedPnL),
		Greeks:                 greeks,
		Strike:                 p.Option.Strike,
		Quantity:               p.Quantity,
		PremiumPerContract:     math.Abs(p.AvgPremium),
		MarketValuePerContract: mvPerContract,
		CollateralPerContract:  collPerContract,
		Collateral:             collateral,
		UnrealizedPnL:          p.UnrealizedPnL,
		AnnualizedReturn:       annualized,
		DaysLeft:               daysLeft,
		ShouldClose:            annualized < e.closeThreshold,
	}, true
}

// AnnualizedReturn projects the current value over collateral to a yearly rate in percent.
func AnnualizedReturn(mvPerContract, collateralPerContract float64, daysLeft int) float64 {
	if collateralPerContract <= 0 || daysLeft <= 0 {
		return 0
	}
	return (mvPerContract / collateralPerContract) * (daysPerYear / float64(daysLeft)) * 100
}

// PositionRiskLevel classifies a position by the magnitude of its Greeks.
func PositionRiskLevel(g Greeks) string {
	d, gm, th := math.Abs(g.Delta), math.Abs(g.Gamma), math.Abs(g.Theta)
	switch {
	case d > 0.7 || gm > 0.02 || th > 0.1:
		return LevelHigh
	case d > 0.5 || gm > 0.01 || th > 0.05:
		return LevelMedium
	default:
		return LevelLow
	}
}

// StressScenarios applies the five fixed shocks to one position.
func StressScenarios(g Greeks, collateral, currentPnL float64) []StressScenario {
	notional := collateral / 100

	down10 := LevelMedium
	if math.Abs(g.Delta) > 0.7 {
		down10 = LevelHigh
	}
	vol := LevelLow
	if math.Abs(g.Vega) > 0.05 {
		vol = LevelMedium
	}
	decay := LevelLow
	if math.Abs(g.Theta) > 0.05 {
		decay = LevelMedium
	}
	gamma := LevelMedium
	if math.Abs(g.Gamma) > 0.02 {
		gamma = LevelHigh
	}

	changes := []struct {
		name   string
		change float64
		level  string
	}{
		{ScenarioDown10, g.Delta * -0.10 * notional, down10},
		{ScenarioDown20, g.Delta * -0.20 * notional, LevelHigh},
		{ScenarioVolUp50, g.Vega * 0.50 * 100, vol},
		{ScenarioWeekDecay, g.Theta * 7, decay},
		{ScenarioLargeMove, 0.5 * g.Gamma * notional * 0.05 * 0.05, gamma},
	}

	out := make([]StressScenario, 0, len(changes))
	for _, c := range changes {
		out = append(out, StressScenario{
			Name:         c.name,
			PnLChange:    util.Finite(c.change),
			ResultingPnL: util.Finite(currentPnL + c.change),
			RiskLevel:    c.level,
		})
	}
	return out
}

func aggregate(profiles []Profile) Aggregate {
	a := Aggregate{Positions: len(profiles)}
	if len(profiles) == 0 {
		return a
	}
	var probSum float64
	for _, p := range profiles {
		a.TotalDelta += p.Greeks.Delta * p.Quantity
		a.TotalGamma += p.Greeks.Gamma * p.Quantity
		a.TotalTheta += p.Greeks.Theta * p.Quantity
		a.TotalVega += p.Greeks.Vega * p.Quantity
		probSum += p.Greeks.ProbProfit
		a.TotalCollateral += p.Collateral

		if p.Kind == models.KindPut {
			a.PutTheta += p.Greeks.Theta * p.Quantity
			if p.Quantity < 0 {
				a.PutCollateral += p.Collateral
			}
		} else {
			a.CallTheta += p.Greeks.Theta * p.Quantity
		}
		if p.RiskLevel == LevelHigh {
			a.HighRiskCount++
		}
	}
	a.AvgProbProfit = probSum / float64(len(profiles))
	return a
}
