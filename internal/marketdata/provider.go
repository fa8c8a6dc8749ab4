// Package marketdata supplies spot prices, the volatility index and account
// value to the analytics pipeline. Every value may be unavailable; the
// resolver turns failures into nil rather than errors.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrUnavailable is returned when a provider has no value for a request.
var ErrUnavailable = errors.New("market data unavailable")

// Provider is the external market data collaborator.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	SpotPrice(ctx context.Context, symbol string) (float64, error)
	VolatilityIndex(ctx context.Context) (float64, error)
	NetLiquidation(ctx context.Context) (float64, error)
}

// Snapshot is the resolved market state. Nil means unavailable.
type Snapshot struct {
	Spot         map[string]*float64
	VIX          *float64
	AccountValue *float64
}

// DefaultConcurrency bounds parallel spot lookups in Resolve.
const DefaultConcurrency = 8

// Resolve queries p for every symbol plus the volatility index and account
// value. Failures are logged and recorded as nil; Resolve itself only fails
// when ctx is canceled.
func Resolve(ctx context.Context, p Provider, symbols []string, logger *logrus.Logger, concurrency int) (Snapshot, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	snap := Snapshot{Spot: make(map[string]*float64, len(symbols))}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, sym := range uniqueSymbols(symbols) {
		sym := sym
		g.Go(func() error {
			v := fetch(gctx, logger, "spot", sym, func(ctx context.Context) (float64, error) {
				return p.SpotPrice(ctx, sym)
			})
			mu.Lock()
			snap.Spot[sym] = v
			mu.Unlock()
			return nil
		})
	}
	g.Go(func() error {
		v := fetch(gctx, logger, "vix", "", p.VolatilityIndex)
		mu.Lock()
		snap.VIX = v
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		v := fetch(gctx, logger, "account_value", "", p.NetLiquidation)
		mu.Lock()
		snap.AccountValue = v
		mu.Unlock()
		return nil
	})

	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("market data resolution canceled: %w", err)
	}
	return snap, nil
}

func fetch(ctx context.Context, logger *logrus.Logger, kind, symbol string,
	fn func(context.Context) (float64, error)) *float64 {
	v, err := fn(ctx)
	if err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0 {
		return &v
	}
	if logger != nil {
		entry := logger.WithField("kind", kind)
		if symbol != "" {
			entry = entry.WithField("symbol", symbol)
		}
		if err != nil {
			entry = entry.WithError(err)
		} else {
			entry = entry.WithField("value", v)
		}
		entry.Warn("Market data unavailable, continuing without it")
	}
	return nil
}

func uniqueSymbols(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
