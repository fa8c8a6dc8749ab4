package trades

import (
	"sort"
	"time"

	"github.com/eddiefleurent/options_dashboard/internal/models"
)

// Strategy labels. Classification is a coarse leg/strike-count heuristic, not a
// verified strategy identifier.
const (
	StrategyVertical   = "Vertical Spread"
	StrategyStraddle   = "Straddle"
	StrategyStrangle   = "Strangle"
	StrategyIronCondor = "Iron Condor"
	StrategyCustom     = "Custom"
)

// ComplexTrade summarizes the option legs sharing one symbol and expiration.
type ComplexTrade struct {
	Expiration time.Time            `json:"expiration"`
	OpenDate   time.Time            `json:"open_date"`
	CloseDate  time.Time            `json:"close_date"`
	Symbol     string               `json:"symbol"`
	Strategy   string               `json:"strategy"`
	Legs       []models.Transaction `json:"legs"`
	NetAmount  float64              `json:"net_amount"`
	NetFees    float64              `json:"net_fees"`
}

// Classify labels a leg set. Rules are evaluated in order: two legs with one
// kind and two strikes, two legs with two kinds and one strike, two legs with
// two kinds and two strikes, any four legs, otherwise custom.
func Classify(legs []models.Transaction) string {
	kinds := make(map[models.OptionKind]struct{})
	strikes := make(map[float64]struct{})
	for _, l := range legs {
		if l.Option == nil {
			continue
		}
		kinds[l.Option.Kind] = struct{}{}
		strikes[l.Option.Strike] = struct{}{}
	}

	switch {
	case len(legs) == 2 && len(kinds) == 1 && len(strikes) == 2:
		return StrategyVertical
	case len(legs) == 2 && len(kinds) == 2 && len(strikes) == 1:
		return StrategyStraddle
	case len(legs) == 2 && len(kinds) == 2 && len(strikes) == 2:
		return StrategyStrangle
	case len(legs) == 4:
		return StrategyIronCondor
	default:
		return StrategyCustom
	}
}

// AggregateComplex groups option legs by (symbol, expiration) and summarizes
// every group with at least two legs, newest open date first. Legs without a
// usable date or contract terms are ignored.
func AggregateComplex(txs []models.Transaction) []ComplexTrade {
	type groupKey struct {
		symbol string
		exp    string
	}
	groups := make(map[groupKey][]models.Transaction)
	for _, tx := range txs {
		if tx.Option == nil || tx.Date.IsZero() || tx.Option.Expiration.IsZero() {
			continue
		}
		k := groupKey{symbol: tx.Symbol, exp: tx.Option.Expiration.Format("2006-01-02")}
		groups[k] = append(groups[k], tx)
	}

	out := make([]ComplexTrade, 0, len(groups))
	for _, legs := range groups {
		if len(legs) < 2 {
			continue
		}
		sorted := sortByDate(legs)
		ct := ComplexTrade{
			Expiration: sorted[0].Option.Expiration,
			OpenDate:   sorted[0].Date,
			CloseDate:  sorted[len(sorted)-1].Date,
			Symbol:     sorted[0].Symbol,
			Strategy:   Classify(sorted),
			Legs:       sorted,
		}
		for _, l := range sorted {
			ct.NetAmount += l.Amount
			ct.NetFees += l.Fee
		}
		out = append(out, ct)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].OpenDate.Equal(out[j].OpenDate) {
			if out[i].Symbol == out[j].Symbol {
				return out[i].Expiration.Before(out[j].Expiration)
			}
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].OpenDate.After(out[j].OpenDate)
	})
	return out
}
