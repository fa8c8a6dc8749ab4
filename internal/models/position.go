package models

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// SharesPerContract is the standard equity option multiplier.
const SharesPerContract = 100.0

// AssetClass distinguishes option positions from stock positions.
type AssetClass string

const (
	// AssetOption is an equity option position
	AssetOption AssetClass = "OPTION"
	// AssetStock is an underlying stock position
	AssetStock AssetClass = "STOCK"
)

// Valid returns true if the AssetClass is one of the defined constants
func (a AssetClass) Valid() bool {
	switch a {
	case AssetOption, AssetStock:
		return true
	default:
		return false
	}
}

// OptionKind is the right of an option contract.
type OptionKind string

const (
	// KindPut is a put option
	KindPut OptionKind = "PUT"
	// KindCall is a call option
	KindCall OptionKind = "CALL"
)

// Valid returns true if the OptionKind is one of the defined constants
func (k OptionKind) Valid() bool {
	switch k {
	case KindPut, KindCall:
		return true
	default:
		return false
	}
}

// Letter returns the single-letter broker code (P or C).
func (k OptionKind) Letter() string {
	switch k {
	case KindPut:
		return "P"
	case KindCall:
		return "C"
	default:
		return ""
	}
}

// ParseOptionKind accepts P, C, PUT or CALL in any case.
func ParseOptionKind(s string) (OptionKind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "P", "PUT":
		return KindPut, nil
	case "C", "CALL":
		return KindCall, nil
	default:
		return "", fmt.Errorf("unknown option kind %q", s)
	}
}

// OptionContract holds the typed contract terms of an option.
type OptionContract struct {
	Expiration time.Time  `json:"expiration"`
	Strike     float64    `json:"strike"`
	Kind       OptionKind `json:"kind"`
}

// Position is an open broker position snapshot.
//
// MarketValue is nil when the broker did not report one; callers fall back
// to |Quantity| * MarketPrice.
type Position struct {
	Option        *OptionContract `json:"option,omitempty"`
	MarketValue   *float64        `json:"market_value,omitempty"`
	Symbol        string          `json:"symbol"`
	Description   string          `json:"description,omitempty"`
	AssetClass    AssetClass      `json:"asset_class"`
	Quantity      float64         `json:"quantity"` // positive = long
	CostBasis     float64         `json:"cost_basis"`
	AvgPremium    float64         `json:"avg_premium"` // per contract, options only
	MarketPrice   float64         `json:"market_price"`
	UnrealizedPnL float64         `json:"unrealized_pnl"`
}

// IsOption reports whether the position carries option contract terms.
func (p *Position) IsOption() bool {
	return p.AssetClass == AssetOption && p.Option != nil
}

// IsShortPut reports whether the position is a short put.
func (p *Position) IsShortPut() bool {
	return p.IsOption() && p.Option.Kind == KindPut && p.Quantity < 0
}

// Kind returns PUT, CALL or STOCK.
func (p *Position) Kind() string {
	if p.IsOption() {
		return string(p.Option.Kind)
	}
	return string(AssetStock)
}

// Value returns the broker market value when present, otherwise |Quantity| * MarketPrice.
func (p *Position) Value() float64 {
	if p.MarketValue != nil {
		return *p.MarketValue
	}
	return math.Abs(p.Quantity) * p.MarketPrice
}

// Contracts returns the absolute contract (or share) count.
func (p *Position) Contracts() float64 {
	return math.Abs(p.Quantity)
}

// DaysLeft returns whole calendar days from now until expiration.
// Unlike the clamped DTE used for display, it can be zero or negative. The
// current day is taken from now's location, so callers pass now in the
// market's timezone.
func (p *Position) DaysLeft(now time.Time) int {
	if p.Option == nil || p.Option.Expiration.IsZero() {
		return 0
	}
	return DaysBetween(now, p.Option.Expiration)
}

// CollateralPerContract is strike * 100 for option positions, 0 otherwise.
func (p *Position) CollateralPerContract() float64 {
	if p.Option == nil {
		return 0
	}
	return p.Option.Strike * SharesPerContract
}

// Collateral is strike * 100 * |quantity|.
func (p *Position) Collateral() float64 {
	return p.CollateralPerContract() * p.Contracts()
}

// ProfitPercent returns unrealized P&L as a percentage of what was paid or received.
// Options use |quantity| * avg premium, stock uses |cost basis|. Zero denominators yield 0.
func (p *Position) ProfitPercent() float64 {
	var denom float64
	if p.IsOption() {
		denom = p.Contracts() * p.AvgPremium
	} else {
		denom = math.Abs(p.CostBasis)
	}
	if denom == 0 {
		return 0
	}
	return (p.UnrealizedPnL / denom) * 100
}

// Validate checks structural consistency of a position snapshot.
func (p *Position) Validate() error {
	if strings.TrimSpace(p.Symbol) == "" {
		return fmt.Errorf("position: symbol is required")
	}
	if !p.AssetClass.Valid() {
		return fmt.Errorf("position %s: invalid asset class %q", p.Symbol, p.AssetClass)
	}
	if p.AssetClass == AssetOption && p.Option == nil {
		return fmt.Errorf("position %s: option position missing contract terms", p.Symbol)
	}
	if p.Option != nil && !p.Option.Kind.Valid() {
		return fmt.Errorf("position %s: invalid option kind %q", p.Symbol, p.Option.Kind)
	}
	nums := map[string]float64{
		"quantity":       p.Quantity,
		"cost_basis":     p.CostBasis,
		"avg_premium":    p.AvgPremium,
		"market_price":   p.MarketPrice,
		"unrealized_pnl": p.UnrealizedPnL,
	}
	if p.MarketValue != nil {
		nums["market_value"] = *p.MarketValue
	}
	if p.Option != nil {
		nums["strike"] = p.Option.Strike
	}
	for name, v := range nums {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("position %s: %s is not a finite number", p.Symbol, name)
		}
	}
	return nil
}
