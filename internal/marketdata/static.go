package marketdata

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Quotes is a fixed set of market values. Zero or missing values are unavailable.
type Quotes struct {
	Spot         map[string]float64 `yaml:"quotes"`
	VIX          float64            `yaml:"vix"`
	AccountValue float64            `yaml:"account_value"`
}

// StaticProvider serves fixed quotes.
type StaticProvider struct {
	quotes Quotes
}

var _ Provider = (*StaticProvider)(nil)

// NewStaticProvider creates a StaticProvider. Symbols are matched case-insensitively.
func NewStaticProvider(q Quotes) *StaticProvider {
	return &StaticProvider{quotes: normalize(q)}
}

// SpotPrice returns the configured quote for symbol.
func (s *StaticProvider) SpotPrice(_ context.Context, symbol string) (float64, error) {
	return s.quotes.spot(symbol)
}

// VolatilityIndex returns the configured VIX value.
func (s *StaticProvider) VolatilityIndex(_ context.Context) (float64, error) {
	return positive(s.quotes.VIX, "vix")
}

// NetLiquidation returns the configured account value.
func (s *StaticProvider) NetLiquidation(_ context.Context) (float64, error) {
	return positive(s.quotes.AccountValue, "account value")
}

// FileProvider serves quotes from a YAML file, reloading it when it changes.
type FileProvider struct {
	path    string
	mu      sync.RWMutex
	modTime time.Time
	quotes  Quotes
}

var _ Provider = (*FileProvider)(nil)

// NewFileProvider loads path once to validate it.
func NewFileProvider(path string) (*FileProvider, error) {
	f := &FileProvider{path: path}
	if _, err := f.load(); err != nil {
		return nil, err
	}
	return f, nil
}

// SpotPrice returns the file's quote for symbol.
func (f *FileProvider) SpotPrice(_ context.Context, symbol string) (float64, error) {
	q, err := f.load()
	if err != nil {
		return 0, err
	}
	return q.spot(symbol)
}

// VolatilityIndex returns the file's VIX value.
func (f *FileProvider) VolatilityIndex(_ context.Context) (float64, error) {
	q, err := f.load()
	if err != nil {
		return 0, err
	}
	return positive(q.VIX, "vix")
}

// NetLiquidation returns the file's account value.
func (f *FileProvider) NetLiquidation(_ context.Context) (float64, error) {
	q, err := f.load()
	if err != nil {
		return 0, err
	}
	return positive(q.AccountValue, "account value")
}

func (f *FileProvider) load() (Quotes, error) {
	info, err := os.Stat(f.path)
	if err != nil {
		return Quotes{}, fmt.Errorf("failed to stat quotes file: %w", err)
	}

	f.mu.RLock()
	if !f.modTime.IsZero() && info.ModTime().Equal(f.modTime) {
		q := f.quotes
		f.mu.RUnlock()
		return q, nil
	}
	f.mu.RUnlock()

	data, err := os.ReadFile(f.path) // #nosec G304 -- quotes path is operator configuration
	if err != nil {
		return Quotes{}, fmt.Errorf("failed to read quotes file: %w", err)
	}
	var q Quotes
	if err := yaml.Unmarshal(data, &q); err != nil {
		return Quotes{}, fmt.Errorf("failed to parse quotes file: %w", err)
	}
	q = normalize(q)

	f.mu.Lock()
	f.quotes = q
	f.modTime = info.ModTime()
	f.mu.Unlock()
	return q, nil
}

func normalize(q Quotes) Quotes {
	spot := make(map[string]float64, len(q.Spot))
	for sym, v := range q.Spot {
		spot[strings.ToUpper(strings.TrimSpace(sym))] = v
	}
	q.Spot = spot
	return q
}

func (q Quotes) spot(symbol string) (float64, error) {
	v, ok := q.Spot[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok || v <= 0 {
		return 0, fmt.Errorf("spot price for %s: %w", symbol, ErrUnavailable)
	}
	return v, nil
}

func positive(v float64, what string) (float64, error) {
	if v <= 0 {
		return 0, fmt.Errorf("%s: %w", what, ErrUnavailable)
	}
	return v, nil
}
