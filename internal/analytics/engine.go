// Package analytics runs the full reconstruction and risk pipeline over one
// snapshot of transactions, positions and market data.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/options_dashboard/internal/allocation"
	"github.com/eddiefleurent/options_dashboard/internal/models"
	"github.com/eddiefleurent/options_dashboard/internal/performance"
	"github.com/eddiefleurent/options_dashboard/internal/positions"
	"github.com/eddiefleurent/options_dashboard/internal/risk"
	"github.com/eddiefleurent/options_dashboard/internal/trades"
)

// ErrInvalidInput is returned when the input snapshot is structurally broken.
var ErrInvalidInput = errors.New("invalid analytics input")

// Market holds already-resolved market data. A nil value means unavailable.
type Market struct {
	Spot         map[string]*float64 `json:"spot"`
	VIX          *float64            `json:"vix"`
	AccountValue *float64            `json:"account_value"`
}

// Input is one analytics snapshot.
type Input struct {
	Now          time.Time
	Account      *models.Account
	Market       Market
	Transactions []models.Transaction
	Positions    []models.Position
}

// Report is the combined output of every component.
type Report struct {
	GeneratedAt   time.Time                `json:"generated_at"`
	Account       *models.Account          `json:"account,omitempty"`
	Allocation    *allocation.Advice       `json:"allocation"`
	ID            string                   `json:"id"`
	ComplexTrades []trades.ComplexTrade    `json:"complex_trades"`
	Trades        []trades.CompletedTrade  `json:"trades"`
	Market        Market                   `json:"market"`
	Trading       performance.Report       `json:"trading"`
	OptionSummary trades.OptionSummary     `json:"option_summary"`
	Positions     positions.Summary        `json:"positions"`
	Risk          risk.Result              `json:"risk"`
	Concentration risk.ConcentrationReport `json:"concentration"`
	ITM           risk.ITMReport           `json:"itm"`
	PutReturns    risk.PutReturnSummary    `json:"put_returns"`
	Stats         PipelineStats            `json:"stats"`
}

// PipelineStats counts records the components skipped instead of failing on.
type PipelineStats struct {
	Transactions       int `json:"transactions"`
	Positions          int `json:"positions"`
	OpenGroups         int `json:"open_groups"`
	UndatedGroups      int `json:"undated_groups"`
	SkippedRiskRecords int `json:"skipped_risk_records"`
}

// Options configures the engine.
type Options struct {
	Model          risk.ModelParams
	CloseThreshold float64
}

// DefaultOptions returns the standard model parameters and a 12% close threshold.
func DefaultOptions() Options {
	return Options{Model: risk.DefaultModelParams(), CloseThreshold: risk.DefaultCloseThreshold}
}

// Engine wires the analytics components together. It holds no per-call state
// and is safe for concurrent use.
type Engine struct {
	risk   *risk.Engine
	logger *logrus.Logger
}

// NewEngine creates an Engine. A nil logger discards output.
func NewEngine(opts Options, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Engine{
		risk:   risk.NewEngine(opts.Model, opts.CloseThreshold),
		logger: logger,
	}
}

// Analyze validates the snapshot and runs every component. Structural errors
// are reported as a single ErrInvalidInput and no partial report is returned.
func (e *Engine) Analyze(ctx context.Context, in Input) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := Validate(in); err != nil {
		return nil, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	market := sanitizeMarket(in.Market)

	matched := trades.Match(in.Transactions)
	riskResult := e.risk.Analyze(in.Positions, market.Spot, now)
	posSummary := positions.Analyze(in.Positions, market.AccountValue, riskResult.Aggregate.PutCollateral)

	r := &Report{
		GeneratedAt:   now.UTC(),
		Account:       in.Account,
		ID:            uuid.New().String(),
		ComplexTrades: trades.AggregateComplex(in.Transactions),
		Trades:        matched.Trades,
		Market:        market,
		Trading:       performance.Analyze(matched),
		OptionSummary: trades.Summarize(in.Transactions),
		Positions:     posSummary,
		Risk:          riskResult,
		Concentration: risk.Concentration(riskResult.Profiles),
		ITM:           risk.InTheMoney(riskResult.Profiles),
		PutReturns:    risk.SummarizePuts(riskResult.Profiles),
		Stats: PipelineStats{
			Transactions:       len(in.Transactions),
			Positions:          len(in.Positions),
			OpenGroups:         matched.Open,
			UndatedGroups:      matched.Dropped,
			SkippedRiskRecords: riskResult.Skipped,
		},
	}
	if market.VIX != nil {
		advice := allocation.Advise(*market.VIX, posSummary.Collateral.CollateralPct, market.AccountValue)
		r.Allocation = &advice
	}

	e.logger.WithFields(logrus.Fields{
		"report_id":      r.ID,
		"transactions":   r.Stats.Transactions,
		"positions":      r.Stats.Positions,
		"trades":         r.Trading.TotalTrades,
		"risk_profiles":  len(riskResult.Profiles),
		"skipped_risk":   riskResult.Skipped,
		"undated_groups": matched.Dropped,
	}).Debug("Analytics report computed")
	return r, nil
}

// Validate reports every structural problem in the snapshot as one error
// wrapping ErrInvalidInput.
func Validate(in Input) error {
	var problems []string
	for i := range in.Transactions {
		tx := &in.Transactions[i]
		if err := tx.Validate(); err != nil {
			problems = append(problems, fmt.Sprintf("transactions[%d]: %v", i, err))
			continue
		}
		if tx.Option != nil && tx.Option.Strike <= 0 {
			problems = append(problems, fmt.Sprintf("transactions[%d]: option %s has no strike", i, tx.Symbol))
		}
	}
	for i := range in.Positions {
		if err := in.Positions[i].Validate(); err != nil {
			problems = append(problems, fmt.Sprintf("positions[%d]: %v", i, err))
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(problems, "; "))
}

// sanitizeMarket turns non-finite or non-positive quotes into unavailable values.
func sanitizeMarket(m Market) Market {
	out := Market{
		Spot:         make(map[string]*float64, len(m.Spot)),
		VIX:          usable(m.VIX),
		AccountValue: usable(m.AccountValue),
	}
	for sym, v := range m.Spot {
		out.Spot[sym] = usable(v)
	}
	return out
}

func usable(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) || *v <= 0 {
		return nil
	}
	x := *v
	return &x
}
