package models

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAction(t *testing.T) {
	tests := []struct {
		in   string
		want Action
	}{
		{"BUYTOOPEN", ActionBuyToOpen},
		{"SELLTOOPEN", ActionSellToOpen},
		{"buy_to_close", ActionBuyToClose},
		{"Sell to Close", ActionSellToClose},
		{"SELL_TO_OPEN", ActionSellToOpen},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAction(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseAction("ASSIGN")
	assert.Error(t, err)
}

func TestIdentityKey(t *testing.T) {
	exp := time.Date(2025, 4, 4, 0, 0, 0, 0, time.UTC)
	put := Transaction{Symbol: "GOOG", Option: &OptionContract{Expiration: exp, Strike: 175, Kind: KindPut}}
	call := Transaction{Symbol: "GOOG", Option: &OptionContract{Expiration: exp, Strike: 175, Kind: KindCall}}
	halfStrike := Transaction{Symbol: "GOOG", Option: &OptionContract{Expiration: exp, Strike: 172.5, Kind: KindPut}}
	stock := Transaction{Symbol: "GOOG"}

	assert.Equal(t, "GOOG_2025-04-04_175_P", put.IdentityKey())
	assert.Equal(t, "GOOG_2025-04-04_172.5_P", halfStrike.IdentityKey())
	assert.NotEqual(t, put.IdentityKey(), call.IdentityKey())
	assert.Equal(t, "GOOG_STOCK", stock.IdentityKey())
	assert.Equal(t, "P", put.TradeType())
	assert.Equal(t, "STOCK", stock.TradeType())
}

func TestTransactionValidate(t *testing.T) {
	tx := Transaction{ID: "1", Symbol: "SPY", Action: ActionSellToOpen, Amount: -250, Fee: 1}
	require.NoError(t, tx.Validate())

	bad := tx
	bad.Action = "HOLD"
	assert.ErrorContains(t, bad.Validate(), "invalid action")

	bad = tx
	bad.Symbol = ""
	assert.ErrorContains(t, bad.Validate(), "symbol is required")

	bad = tx
	bad.Fee = math.NaN()
	assert.ErrorContains(t, bad.Validate(), "fee is not a finite number")
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2025, 3, 1, 23, 0, 0, 0, time.UTC)
	b := time.Date(2025, 3, 8, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, 7, DaysBetween(a, b))
	assert.Equal(t, -7, DaysBetween(b, a))
	assert.Equal(t, 0, DaysBetween(a, a))

	est := time.FixedZone("EST", -5*3600)
	late := time.Date(2025, 3, 1, 22, 0, 0, 0, est)
	assert.Equal(t, 0, DaysBetween(late, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 1, DaysBetween(late, time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)))
}
