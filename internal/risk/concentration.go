package risk

import (
	"sort"

	"github.com/eddiefleurent/options_dashboard/internal/util"
)

// Concentration thresholds in percent of total collateral.
const (
	concentrationHigh       = 25.0
	concentrationMedium     = 15.0
	concentrationOverInvest = 20.0
)

// ConcentrationEntry is the collateral exposure to one underlying.
type ConcentrationEntry struct {
	Symbol              string  `json:"symbol"`
	Positions           int     `json:"positions"`
	Collateral          float64 `json:"collateral"`
	Percentage          float64 `json:"percentage"`
	RiskLevel           string  `json:"risk_level"`
	IsOverInvested      bool    `json:"is_over_invested"`
	AvgAnnualizedReturn float64 `json:"avg_annualized_return"`
	AvgDaysLeft         float64 `json:"avg_days_left"`
}

// ConcentrationReport lists per-symbol exposure, largest first.
type ConcentrationReport struct {
	Entries         []ConcentrationEntry `json:"entries"`
	TotalCollateral float64              `json:"total_collateral"`
	OverInvested    int                  `json:"over_invested"`
}

// Concentration groups profiles by symbol and measures each symbol's share of collateral.
func Concentration(profiles []Profile) ConcentrationReport {
	type acc struct {
		count      int
		collateral float64
		annualized float64
		days       float64
	}
	accs := map[string]*acc{}
	var symbols []string
	var total float64
	for _, p := range profiles {
		a, ok := accs[p.Symbol]
		if !ok {
			a = &acc{}
			accs[p.Symbol] = a
			symbols = append(symbols, p.Symbol)
		}
		c := p.CollateralPerContract * abs(p.Quantity)
		a.count++
		a.collateral += c
		a.annualized += p.AnnualizedReturn
		a.days += float64(p.DaysLeft)
		total += c
	}

	r := ConcentrationReport{Entries: make([]ConcentrationEntry, 0, len(symbols)), TotalCollateral: total}
	for _, sym := range symbols {
		a := accs[sym]
		pct := util.Pct(a.collateral, total)
		e := ConcentrationEntry{
			Symbol:              sym,
			Positions:           a.count,
			Collateral:          a.collateral,
			Percentage:          pct,
			RiskLevel:           concentrationLevel(pct),
			IsOverInvested:      pct > concentrationOverInvest,
			AvgAnnualizedReturn: a.annualized / float64(a.count),
			AvgDaysLeft:         a.days / float64(a.count),
		}
		if e.IsOverInvested {
			r.OverInvested++
		}
		r.Entries = append(r.Entries, e)
	}

	sort.SliceStable(r.Entries, func(i, j int) bool {
		if r.Entries[i].Percentage == r.Entries[j].Percentage {
			return r.Entries[i].Symbol < r.Entries[j].Symbol
		}
		return r.Entries[i].Percentage > r.Entries[j].Percentage
	})
	return r
}

func concentrationLevel(pct float64) string {
	switch {
	case pct > concentrationHigh:
		return LevelHigh
	case pct > concentrationMedium:
		return LevelMedium
	default:
		return LevelLow
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
