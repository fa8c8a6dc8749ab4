package risk

import (
	"sort"

	"github.com/eddiefleurent/options_dashboard/internal/models"
	"github.com/eddiefleurent/options_dashboard/internal/util"
)

// Assignment actions for in-the-money short puts.
const (
	ActionImmediate = "Immediate close/roll"
	ActionThisWeek  = "Close or roll this week"
	ActionSoon      = "Close or roll soon"
	ActionMonitor   = "Monitor / consider rolling"
	ActionWatch     = "Watch"
)

// ITMPosition is an in-the-money short put with its assignment exposure.
type ITMPosition struct {
	Symbol          string  `json:"symbol"`
	Strike          float64 `json:"strike"`
	Spot            float64 `json:"spot"`
	Quantity        float64 `json:"quantity"`
	DaysLeft        int     `json:"days_left"`
	Distance        float64 `json:"distance"`
	ITMPct          float64 `json:"itm_pct"`
	AssignmentValue float64 `json:"assignment_value"`
	Exposure        float64 `json:"exposure"`
	PotentialLoss   float64 `json:"potential_loss"`
	RiskLevel       string  `json:"risk_level"`
	Action          string  `json:"action"`
}

// ITMReport summarizes assignment risk across short puts with a known spot price.
type ITMReport struct {
	Positions            []ITMPosition `json:"positions"`
	TotalExposure        float64       `json:"total_exposure"`
	TotalAssignmentValue float64       `json:"total_assignment_value"`
	HighRiskCount        int           `json:"high_risk_count"`
	DeepITMCount         int           `json:"deep_itm_count"`
	NearExpiryCount      int           `json:"near_expiry_count"`
}

// AssignmentRisk maps distance in the money and days left to a risk level and action.
// Rules are evaluated in order; the first match wins.
func AssignmentRisk(distance float64, daysLeft int) (level, action string) {
	switch {
	case distance > 5 && daysLeft <= 3:
		return LevelCritical, ActionImmediate
	case distance > 5 && daysLeft <= 7:
		return LevelCritical, ActionThisWeek
	case distance > 3 && daysLeft <= 14:
		return LevelHigh, ActionSoon
	case distance > 1 && daysLeft <= 21:
		return LevelMedium, ActionMonitor
	default:
		return LevelLow, ActionWatch
	}
}

// InTheMoney finds short puts whose underlying trades below the strike.
// PotentialLoss is the assignment value less the position's total unrealized P&L.
// Profiles without a spot price are excluded rather than defaulted.
func InTheMoney(profiles []Profile) ITMReport {
	r := ITMReport{Positions: []ITMPosition{}}
	for _, p := range profiles {
		if p.Kind != models.KindPut || p.Quantity >= 0 || p.Spot == nil {
			continue
		}
		spot := *p.Spot
		if spot >= p.Strike {
			continue
		}

		contracts := abs(p.Quantity)
		distance := p.Strike - spot
		assignment := distance * models.SharesPerContract * contracts
		level, action := AssignmentRisk(distance, p.DaysLeft)

		pos := ITMPosition{
			Symbol:          p.Symbol,
			Strike:          p.Strike,
			Spot:            spot,
			Quantity:        p.Quantity,
			DaysLeft:        p.DaysLeft,
			Distance:        distance,
			ITMPct:          util.Pct(distance, p.Strike),
			AssignmentValue: assignment,
			Exposure:        p.CollateralPerContract * contracts,
			PotentialLoss:   assignment - p.UnrealizedPnL,
			RiskLevel:       level,
			Action:          action,
		}
		r.Positions = append(r.Positions, pos)

		r.TotalExposure += pos.Exposure
		r.TotalAssignmentValue += assignment
		if level == LevelHigh || level == LevelCritical {
			r.HighRiskCount++
		}
		if distance > 3 {
			r.DeepITMCount++
		}
		if p.DaysLeft <= 7 {
			r.NearExpiryCount++
		}
	}

	sort.SliceStable(r.Positions, func(i, j int) bool {
		return r.Positions[i].AssignmentValue > r.Positions[j].AssignmentValue
	})
	return r
}
