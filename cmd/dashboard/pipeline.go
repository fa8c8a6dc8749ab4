package main

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/options_dashboard/internal/analytics"
	"github.com/eddiefleurent/options_dashboard/internal/dashboard"
	"github.com/eddiefleurent/options_dashboard/internal/ingest"
	"github.com/eddiefleurent/options_dashboard/internal/marketdata"
	"github.com/eddiefleurent/options_dashboard/internal/report"
)

// Pipeline loads a statement, resolves market data, computes the report and stores it.
type Pipeline struct {
	dataDir     string
	defaultFile string
	provider    marketdata.Provider
	engine      *analytics.Engine
	store       report.Store
	logger      *logrus.Logger
	concurrency int
	now         func() time.Time

	// one refresh at a time
	mu sync.Mutex
}

var _ dashboard.Refresher = (*Pipeline)(nil)

// Files lists statement files in the data directory.
func (p *Pipeline) Files() ([]string, error) {
	return ingest.ListFiles(p.dataDir)
}

// Refresh rebuilds and stores the report for file, or the default file when empty.
func (p *Pipeline) Refresh(ctx context.Context, file string) (*analytics.Report, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	name, err := p.resolveFile(file)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	log := p.logger.WithField("file", name)

	st, err := ingest.ParseFile(filepath.Join(p.dataDir, name))
	if err != nil {
		return nil, err
	}
	if len(st.Skipped) > 0 {
		for _, le := range st.Skipped {
			log.WithError(le).Debug("Skipped statement line")
		}
		log.WithField("skipped", len(st.Skipped)).Warn("Statement contained unparseable lines")
	}

	snap, err := marketdata.Resolve(ctx, p.provider, underlyings(st), p.logger, p.concurrency)
	if err != nil {
		return nil, err
	}

	rep, err := p.engine.Analyze(ctx, analytics.Input{
		Now:          p.now(),
		Account:      st.Account,
		Transactions: st.OptionTransactions(),
		Positions:    st.Positions,
		Market: analytics.Market{
			Spot:         snap.Spot,
			VIX:          snap.VIX,
			AccountValue: snap.AccountValue,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := p.store.Save(rep); err != nil {
		return nil, fmt.Errorf("failed to store report: %w", err)
	}

	log.WithFields(logrus.Fields{
		"report_id":  rep.ID,
		"trades":     rep.Trading.TotalTrades,
		"positions":  rep.Positions.TotalPositions,
		"itm":        len(rep.ITM.Positions),
		"elapsed_ms": time.Since(start).Milliseconds(),
	}).Info("Report refreshed")
	return rep, nil
}

// resolveFile only accepts names present in the data directory.
func (p *Pipeline) resolveFile(file string) (string, error) {
	files, err := p.Files()
	if err != nil {
		return "", err
	}
	name := file
	if name == "" {
		name = p.defaultFile
	}
	if name == "" {
		if len(files) == 0 {
			return "", fmt.Errorf("%w: no statement files in %s", dashboard.ErrUnknownFile, p.dataDir)
		}
		// newest by name
		return files[len(files)-1], nil
	}
	if !slices.Contains(files, name) {
		return "", fmt.Errorf("%w: %q", dashboard.ErrUnknownFile, name)
	}
	return name, nil
}

// underlyings returns the symbols that need a spot price: every option position's underlying.
func underlyings(st *ingest.Statement) []string {
	var out []string
	for i := range st.Positions {
		if st.Positions[i].IsOption() {
			out = append(out, st.Positions[i].Symbol)
		}
	}
	return out
}
