package models

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Action is the broker trade action of a transaction leg.
type Action string

const (
	// ActionBuyToOpen opens a long position
	ActionBuyToOpen Action = "BUY_TO_OPEN"
	// ActionSellToOpen opens a short position
	ActionSellToOpen Action = "SELL_TO_OPEN"
	// ActionBuyToClose closes a short position
	ActionBuyToClose Action = "BUY_TO_CLOSE"
	// ActionSellToClose closes a long position
	ActionSellToClose Action = "SELL_TO_CLOSE"
)

// Valid returns true if the Action is one of the defined constants
func (a Action) Valid() bool {
	switch a {
	case ActionBuyToOpen, ActionSellToOpen, ActionBuyToClose, ActionSellToClose:
		return true
	default:
		return false
	}
}

// ParseAction normalizes broker spellings such as BUYTOOPEN, buy_to_open or "Sell to Close".
func ParseAction(s string) (Action, error) {
	r := strings.NewReplacer("_", "", " ", "", "-", "")
	switch r.Replace(strings.ToUpper(strings.TrimSpace(s))) {
	case "BUYTOOPEN":
		return ActionBuyToOpen, nil
	case "SELLTOOPEN":
		return ActionSellToOpen, nil
	case "BUYTOCLOSE":
		return ActionBuyToClose, nil
	case "SELLTOCLOSE":
		return ActionSellToClose, nil
	default:
		return "", fmt.Errorf("unknown action %q", s)
	}
}

// Transaction is one executed leg as recorded by the broker.
//
// Amount is signed cash flow as reported: positive for debits paid,
// negative for credits received. Date is zero when the source date
// could not be parsed.
type Transaction struct {
	Date        time.Time       `json:"date"`
	Option      *OptionContract `json:"option,omitempty"`
	ID          string          `json:"id,omitempty"`
	Symbol      string          `json:"symbol"`
	Description string          `json:"description"`
	Action      Action          `json:"action"`
	Quantity    float64         `json:"quantity"`
	Price       float64         `json:"price"`
	Amount      float64         `json:"amount"`
	Fee         float64         `json:"fee"`
}

// IdentityKey groups legs of the same instrument: symbol + expiration + strike + kind.
func (t *Transaction) IdentityKey() string {
	if t.Option == nil {
		return t.Symbol + "_STOCK"
	}
	return fmt.Sprintf("%s_%s_%g_%s", t.Symbol, t.Option.Expiration.Format("2006-01-02"),
		t.Option.Strike, t.Option.Kind.Letter())
}

// TradeType returns P, C or STOCK.
func (t *Transaction) TradeType() string {
	if t.Option == nil {
		return string(AssetStock)
	}
	return t.Option.Kind.Letter()
}

// Validate checks structural consistency of a transaction record.
func (t *Transaction) Validate() error {
	if strings.TrimSpace(t.Symbol) == "" {
		return fmt.Errorf("transaction %s: symbol is required", t.ID)
	}
	if !t.Action.Valid() {
		return fmt.Errorf("transaction %s (%s): invalid action %q", t.ID, t.Symbol, t.Action)
	}
	if t.Option != nil && !t.Option.Kind.Valid() {
		return fmt.Errorf("transaction %s (%s): invalid option kind %q", t.ID, t.Symbol, t.Option.Kind)
	}
	for name, v := range map[string]float64{"amount": t.Amount, "fee": t.Fee, "quantity": t.Quantity, "price": t.Price} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("transaction %s (%s): %s is not a finite number", t.ID, t.Symbol, name)
		}
	}
	return nil
}

// DaysBetween returns whole calendar days from -> to, negative if to is earlier.
// Each time is read on the calendar of its own location.
func DaysBetween(from, to time.Time) int {
	return int(calendarDay(to).Sub(calendarDay(from)).Hours() / 24)
}

// calendarDay maps t's wall-clock date onto UTC midnight so day differences
// never straddle a zone offset or DST change.
func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
