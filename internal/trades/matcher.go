// Package trades reconstructs round-trip trades and multi-leg strategies from broker transaction legs.
package trades

import (
	"math"
	"sort"
	"time"

	"github.com/eddiefleurent/options_dashboard/internal/models"
)

// CompletedTrade is a closed round trip: the earliest leg of an instrument group
// paired with its latest leg. Interior legs of a group with more than two legs
// are not reconciled as partial fills.
type CompletedTrade struct {
	EntryDate     time.Time          `json:"entry_date"`
	ExitDate      time.Time          `json:"exit_date"`
	Entry         models.Transaction `json:"-"`
	Exit          models.Transaction `json:"-"`
	Symbol        string             `json:"symbol"`
	Description   string             `json:"description"`
	Type          string             `json:"type"` // P, C or STOCK
	HoldingPeriod string             `json:"holding_period,omitempty"`
	EntryAmount   float64            `json:"entry_amount"`
	ExitAmount    float64            `json:"exit_amount"`
	Fees          float64            `json:"fees"`
	PnL           float64            `json:"pnl"`
	DaysHeld      int                `json:"days_held"`
	Legs          int                `json:"legs"`
	IsWin         bool               `json:"is_win"`
}

// ReturnSample is a simple daily return attributed to the exit date of a trade.
type ReturnSample struct {
	Date   time.Time `json:"date"`
	Return float64   `json:"return"`
}

// MatchResult holds completed trades and the return samples derived from them.
type MatchResult struct {
	Trades  []CompletedTrade `json:"trades"`
	Returns []ReturnSample   `json:"returns"`
	// Open counts groups that have a single leg and are therefore still open.
	Open int `json:"open"`
	// Dropped counts groups skipped because a leg had no usable date.
	Dropped int `json:"dropped"`
}

// Holding-period bucket labels. Bounds are (0,7], (7,14], (14,30], (30,90], (90,inf).
const (
	BucketUnderWeek   = "<1 week"
	BucketOneTwoWeeks = "1-2 weeks"
	BucketTwoFourWeek = "2-4 weeks"
	BucketOneThreeMo  = "1-3 months"
	BucketOverThreeMo = ">3 months"
)

// HoldingBuckets lists the bucket labels in ascending order.
var HoldingBuckets = []string{BucketUnderWeek, BucketOneTwoWeeks, BucketTwoFourWeek, BucketOneThreeMo, BucketOverThreeMo}

// HoldingPeriodBucket returns the bucket label for a holding period, or "" for
// same-day trades which fall outside every bucket.
func HoldingPeriodBucket(days int) string {
	switch {
	case days <= 0:
		return ""
	case days <= 7:
		return BucketUnderWeek
	case days <= 14:
		return BucketOneTwoWeeks
	case days <= 30:
		return BucketTwoFourWeek
	case days <= 90:
		return BucketOneThreeMo
	default:
		return BucketOverThreeMo
	}
}

// GroupByIdentity buckets transactions by instrument identity, preserving input order within a group.
func GroupByIdentity(txs []models.Transaction) (map[string][]models.Transaction, []string) {
	groups := make(map[string][]models.Transaction)
	var keys []string
	for _, tx := range txs {
		k := tx.IdentityKey()
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], tx)
	}
	sort.Strings(keys)
	return groups, keys
}

// Match pairs transaction legs into completed round-trip trades.
// The input slice is not modified.
func Match(txs []models.Transaction) MatchResult {
	groups, keys := GroupByIdentity(txs)

	result := MatchResult{
		Trades:  make([]CompletedTrade, 0, len(keys)),
		Returns: make([]ReturnSample, 0, len(keys)),
	}

	for _, key := range keys {
		legs := groups[key]
		if len(legs) < 2 {
			result.Open++
			continue
		}
		if hasUndatedLeg(legs) {
			result.Dropped++
			continue
		}

		sorted := sortByDate(legs)
		trade := buildTrade(sorted[0], sorted[len(sorted)-1])
		trade.Legs = len(sorted)
		result.Trades = append(result.Trades, trade)

		if trade.DaysHeld > 0 {
			denom := math.Abs(trade.EntryAmount) * float64(trade.DaysHeld)
			r := 0.0
			if denom != 0 {
				r = trade.PnL / denom
			}
			result.Returns = append(result.Returns, ReturnSample{Date: trade.ExitDate, Return: r})
		}
	}

	sort.SliceStable(result.Returns, func(i, j int) bool {
		return result.Returns[i].Date.Before(result.Returns[j].Date)
	})

	return result
}

// RealizedPnL applies the fixed sign convention: a BUY_TO_OPEN entry pays its
// amount and receives the negated exit amount; any other entry receives the
// negated entry amount and pays the exit amount. Both fees are subtracted.
func RealizedPnL(entry, exit models.Transaction) (entryAmount, exitAmount, pnl float64) {
	if entry.Action == models.ActionBuyToOpen {
		entryAmount = entry.Amount
		exitAmount = -exit.Amount
		pnl = exitAmount - entryAmount - entry.Fee - exit.Fee
		return entryAmount, exitAmount, pnl
	}
	entryAmount = -entry.Amount
	exitAmount = exit.Amount
	pnl = entryAmount - exitAmount - entry.Fee - exit.Fee
	return entryAmount, exitAmount, pnl
}

func buildTrade(entry, exit models.Transaction) CompletedTrade {
	entryAmount, exitAmount, pnl := RealizedPnL(entry, exit)
	days := models.DaysBetween(entry.Date, exit.Date)
	return CompletedTrade{
		EntryDate:     entry.Date,
		ExitDate:      exit.Date,
		Symbol:        entry.Symbol,
		Description:   entry.Description,
		Type:          entry.TradeType(),
		HoldingPeriod: HoldingPeriodBucket(days),
		Entry:         entry,
		Exit:          exit,
		EntryAmount:   entryAmount,
		ExitAmount:    exitAmount,
		Fees:          entry.Fee + exit.Fee,
		PnL:           pnl,
		DaysHeld:      days,
		IsWin:         pnl > 0,
	}
}

func hasUndatedLeg(legs []models.Transaction) bool {
	for _, l := range legs {
		if l.Date.IsZero() {
			return true
		}
	}
	return false
}

func sortByDate(legs []models.Transaction) []models.Transaction {
	sorted := make([]models.Transaction, len(legs))
	copy(sorted, legs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})
	return sorted
}
