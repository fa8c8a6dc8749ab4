package trades

import "github.com/eddiefleurent/options_dashboard/internal/models"

// OptionSummary totals premium flow across every instrument group, open or closed.
type OptionSummary struct {
	TotalTransactions int     `json:"total_transactions"`
	TotalFees         float64 `json:"total_fees"`
	NetPnL            float64 `json:"net_pnl"`
	OpenPositions     int     `json:"open_positions"`
	ClosedPositions   int     `json:"closed_positions"`
}

// Summarize computes OptionSummary. Closed groups contribute realized P&L;
// single-leg groups contribute the premium paid (long) or received (short) net of the fee.
func Summarize(txs []models.Transaction) OptionSummary {
	s := OptionSummary{TotalTransactions: len(txs)}
	for _, tx := range txs {
		s.TotalFees += tx.Fee
	}

	groups, keys := GroupByIdentity(txs)
	for _, key := range keys {
		legs := sortByDate(groups[key])
		entry := legs[0]

		if len(legs) > 1 {
			_, _, pnl := RealizedPnL(entry, legs[len(legs)-1])
			s.NetPnL += pnl
			s.ClosedPositions++
			continue
		}

		if entry.Action == models.ActionBuyToOpen {
			s.NetPnL -= entry.Amount + entry.Fee
		} else {
			s.NetPnL += -entry.Amount - entry.Fee
		}
		s.OpenPositions++
	}
	return s
}
