package trades

import (
	"testing"
	"time"

	"github.com/eddiefleurent/options_dashboard/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func optLeg(symbol string, action models.Action, date time.Time, amount, fee, strike float64, kind models.OptionKind, exp time.Time) models.Transaction {
	return models.Transaction{
		Symbol:      symbol,
		Description: symbol + " " + exp.Format("02Jan06") + " opt",
		Action:      action,
		Date:        date,
		Amount:      amount,
		Fee:         fee,
		Option:      &models.OptionContract{Expiration: exp, Strike: strike, Kind: kind},
	}
}

func TestMatch_LongRoundTrip(t *testing.T) {
	exp := day(2025, 4, 18)
	txs := []models.Transaction{
		optLeg("GOOG", models.ActionSellToOpen, day(2025, 3, 11), -650, 1, 175, models.KindCall, exp),
		optLeg("GOOG", models.ActionBuyToOpen, day(2025, 3, 1), 500, 1, 175, models.KindCall, exp),
	}

	res := Match(txs)
	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.InDelta(t, 148.0, tr.PnL, 1e-9)
	assert.True(t, tr.IsWin)
	assert.Equal(t, 10, tr.DaysHeld)
	assert.Equal(t, "C", tr.Type)
	assert.Equal(t, BucketOneTwoWeeks, tr.HoldingPeriod)
	assert.InDelta(t, 500.0, tr.EntryAmount, 1e-9)
	assert.InDelta(t, 650.0, tr.ExitAmount, 1e-9)

	require.Len(t, res.Returns, 1)
	assert.InDelta(t, 148.0/(500*10), res.Returns[0].Return, 1e-12)
	assert.Equal(t, day(2025, 3, 11), res.Returns[0].Date)
}

func TestMatch_ShortRoundTrip(t *testing.T) {
	exp := day(2025, 5, 16)
	txs := []models.Transaction{
		optLeg("SPY", models.ActionSellToOpen, day(2025, 4, 1), -300, 1.05, 500, models.KindPut, exp),
		optLeg("SPY", models.ActionBuyToClose, day(2025, 4, 21), 120, 1.05, 500, models.KindPut, exp),
	}

	res := Match(txs)
	require.Len(t, res.Trades, 1)
	assert.InDelta(t, 300-120-2.1, res.Trades[0].PnL, 1e-9)
	assert.Equal(t, "P", res.Trades[0].Type)
	assert.Equal(t, BucketTwoFourWeek, res.Trades[0].HoldingPeriod)
}

func TestMatch_SameDayTradeCountsButHasNoReturn(t *testing.T) {
	exp := day(2025, 5, 16)
	txs := []models.Transaction{
		optLeg("QQQ", models.ActionSellToOpen, day(2025, 4, 1), -100, 1, 450, models.KindPut, exp),
		optLeg("QQQ", models.ActionBuyToClose, day(2025, 4, 1), 150, 1, 450, models.KindPut, exp),
	}

	res := Match(txs)
	require.Len(t, res.Trades, 1)
	assert.InDelta(t, -52.0, res.Trades[0].PnL, 1e-9)
	assert.False(t, res.Trades[0].IsWin)
	assert.Empty(t, res.Returns)
	assert.Equal(t, "", res.Trades[0].HoldingPeriod)
}

func TestMatch_SkipsSingleLegAndUndatedGroups(t *testing.T) {
	exp := day(2025, 5, 16)
	txs := []models.Transaction{
		optLeg("IWM", models.ActionSellToOpen, day(2025, 4, 1), -90, 1, 180, models.KindPut, exp),
		optLeg("TSLA", models.ActionSellToOpen, time.Time{}, -400, 1, 200, models.KindPut, exp),
		optLeg("TSLA", models.ActionBuyToClose, day(2025, 4, 10), 100, 1, 200, models.KindPut, exp),
	}

	res := Match(txs)
	assert.Empty(t, res.Trades)
	assert.Equal(t, 1, res.Open)
	assert.Equal(t, 1, res.Dropped)
}

func TestMatch_MultiLegUsesFirstAndLast(t *testing.T) {
	exp := day(2025, 6, 20)
	txs := []models.Transaction{
		optLeg("AMD", models.ActionSellToOpen, day(2025, 5, 1), -200, 1, 100, models.KindPut, exp),
		optLeg("AMD", models.ActionSellToOpen, day(2025, 5, 5), -180, 1, 100, models.KindPut, exp),
		optLeg("AMD", models.ActionBuyToClose, day(2025, 5, 20), 50, 1, 100, models.KindPut, exp),
	}

	res := Match(txs)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, 3, res.Trades[0].Legs)
	assert.InDelta(t, 200-50-2.0, res.Trades[0].PnL, 1e-9)
	assert.Equal(t, 19, res.Trades[0].DaysHeld)
}

func TestMatch_ZeroEntryAmountYieldsZeroReturn(t *testing.T) {
	exp := day(2025, 6, 20)
	txs := []models.Transaction{
		optLeg("F", models.ActionBuyToOpen, day(2025, 5, 1), 0, 0, 10, models.KindCall, exp),
		optLeg("F", models.ActionSellToClose, day(2025, 5, 3), -25, 0, 10, models.KindCall, exp),
	}

	res := Match(txs)
	require.Len(t, res.Returns, 1)
	assert.Zero(t, res.Returns[0].Return)
}

func TestMatch_ReturnsSortedByExitDate(t *testing.T) {
	exp := day(2025, 9, 19)
	txs := []models.Transaction{
		optLeg("A", models.ActionSellToOpen, day(2025, 5, 1), -100, 0, 10, models.KindPut, exp),
		optLeg("A", models.ActionBuyToClose, day(2025, 6, 1), 20, 0, 10, models.KindPut, exp),
		optLeg("B", models.ActionSellToOpen, day(2025, 5, 1), -100, 0, 10, models.KindPut, exp),
		optLeg("B", models.ActionBuyToClose, day(2025, 5, 10), 20, 0, 10, models.KindPut, exp),
	}

	res := Match(txs)
	require.Len(t, res.Returns, 2)
	assert.True(t, res.Returns[0].Date.Before(res.Returns[1].Date))
}

func TestMatch_DoesNotMutateInput(t *testing.T) {
	exp := day(2025, 9, 19)
	txs := []models.Transaction{
		optLeg("A", models.ActionBuyToClose, day(2025, 6, 1), 20, 0, 10, models.KindPut, exp),
		optLeg("A", models.ActionSellToOpen, day(2025, 5, 1), -100, 0, 10, models.KindPut, exp),
	}
	Match(txs)
	assert.Equal(t, day(2025, 6, 1), txs[0].Date)
}

func TestHoldingPeriodBucket(t *testing.T) {
	tests := map[int]string{
		0: "", 1: BucketUnderWeek, 7: BucketUnderWeek, 8: BucketOneTwoWeeks, 14: BucketOneTwoWeeks,
		15: BucketTwoFourWeek, 30: BucketTwoFourWeek, 31: BucketOneThreeMo, 90: BucketOneThreeMo, 91: BucketOverThreeMo,
	}
	for days, want := range tests {
		assert.Equal(t, want, HoldingPeriodBucket(days), "days=%d", days)
	}
}

func TestSummarize(t *testing.T) {
	exp := day(2025, 6, 20)
	txs := []models.Transaction{
		// closed short put: 200 - 50 - 2 = 148
		optLeg("AMD", models.ActionSellToOpen, day(2025, 5, 1), -200, 1, 100, models.KindPut, exp),
		optLeg("AMD", models.ActionBuyToClose, day(2025, 5, 20), 50, 1, 100, models.KindPut, exp),
		// open short put: +300 - 1
		optLeg("SPY", models.ActionSellToOpen, day(2025, 5, 2), -300, 1, 500, models.KindPut, exp),
		// open long call: -(120 + 1)
		optLeg("NVDA", models.ActionBuyToOpen, day(2025, 5, 3), 120, 1, 150, models.KindCall, exp),
	}

	s := Summarize(txs)
	assert.Equal(t, 4, s.TotalTransactions)
	assert.InDelta(t, 4.0, s.TotalFees, 1e-9)
	assert.Equal(t, 1, s.ClosedPositions)
	assert.Equal(t, 2, s.OpenPositions)
	assert.InDelta(t, 148+299-121.0, s.NetPnL, 1e-9)

	empty := Summarize(nil)
	assert.Equal(t, OptionSummary{}, empty)
}
