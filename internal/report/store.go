// Package report persists computed analytics reports.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/eddiefleurent/options_dashboard/internal/analytics"
)

// ErrNoReport is returned when no report has been stored yet.
var ErrNoReport = errors.New("no report available")

// maxHistory bounds the number of retained report summaries.
const maxHistory = 500

// Store keeps the latest report and a short history of summaries.
//
// Implementations must be safe for concurrent use.
type Store interface {
	Latest() (*analytics.Report, error)
	Save(r *analytics.Report) error
	History() []Summary
}

// Summary is the headline of one stored report.
type Summary struct {
	GeneratedAt     time.Time `json:"generated_at"`
	ID              string    `json:"id"`
	TotalTrades     int       `json:"total_trades"`
	TotalPnL        float64   `json:"total_pnl"`
	WinRate         float64   `json:"win_rate"`
	OpenPositions   int       `json:"open_positions"`
	UnrealizedPnL   float64   `json:"unrealized_pnl"`
	TotalCollateral float64   `json:"total_collateral"`
	ITMPositions    int       `json:"itm_positions"`
}

// Summarize extracts the headline figures of r.
func Summarize(r *analytics.Report) Summary {
	return Summary{
		GeneratedAt:     r.GeneratedAt,
		ID:              r.ID,
		TotalTrades:     r.Trading.TotalTrades,
		TotalPnL:        r.Trading.TotalPnL,
		WinRate:         r.Trading.WinRate,
		OpenPositions:   r.Positions.TotalPositions,
		UnrealizedPnL:   r.Positions.UnrealizedPnL,
		TotalCollateral: r.Risk.Aggregate.TotalCollateral,
		ITMPositions:    len(r.ITM.Positions),
	}
}

type storeData struct {
	Latest      *analytics.Report `json:"latest"`
	History     []Summary         `json:"history"`
	LastUpdated time.Time         `json:"last_updated"`
}

// JSONStore persists to a single JSON file, written atomically.
type JSONStore struct {
	mu       sync.RWMutex
	filepath string
	data     storeData
}

var _ Store = (*JSONStore)(nil)

// NewJSONStore opens path, loading it when it exists.
func NewJSONStore(path string) (*JSONStore, error) {
	s := &JSONStore{filepath: path, data: storeData{History: []Summary{}}}

	if _, err := os.Stat(path); err == nil {
		if err := s.load(); err != nil {
			return nil, fmt.Errorf("loading report store: %w", err)
		}
	}
	return s, nil
}

func (s *JSONStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filepath)
	if err != nil {
		return err
	}
	var d storeData
	if err := json.Unmarshal(data, &d); err != nil {
		return err
	}
	if d.History == nil {
		d.History = []Summary{}
	}
	s.data = d
	return nil
}

// Latest returns the most recent report.
func (s *JSONStore) Latest() (*analytics.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data.Latest == nil {
		return nil, ErrNoReport
	}
	return s.data.Latest, nil
}

// History returns report summaries, oldest first.
func (s *JSONStore) History() []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Summary, len(s.data.History))
	copy(out, s.data.History)
	return out
}

// Save stores r as the latest report and writes the file.
func (s *JSONStore) Save(r *analytics.Report) error {
	if r == nil {
		return errors.New("report is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.data
	next.Latest = r
	next.History = appendHistory(s.data.History, Summarize(r))
	next.LastUpdated = time.Now()

	if err := s.write(next); err != nil {
		return err
	}
	s.data = next
	return nil
}

func (s *JSONStore) write(d storeData) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if dir := filepath.Dir(s.filepath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	// Write to temp file first
	tmpFile := s.filepath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tmpFile, s.filepath); err != nil {
		_ = os.Remove(tmpFile)
		return fmt.Errorf("failed to replace report: %w", err)
	}
	return nil
}

// MemoryStore keeps reports in memory only.
type MemoryStore struct {
	mu      sync.RWMutex
	latest  *analytics.Report
	history []Summary
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{history: []Summary{}}
}

// Latest returns the most recent report.
func (m *MemoryStore) Latest() (*analytics.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.latest == nil {
		return nil, ErrNoReport
	}
	return m.latest, nil
}

// Save stores r as the latest report.
func (m *MemoryStore) Save(r *analytics.Report) error {
	if r == nil {
		return errors.New("report is nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latest = r
	m.history = appendHistory(m.history, Summarize(r))
	return nil
}

// History returns report summaries, oldest first.
func (m *MemoryStore) History() []Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Summary, len(m.history))
	copy(out, m.history)
	return out
}

func appendHistory(h []Summary, s Summary) []Summary {
	out := make([]Summary, 0, len(h)+1)
	out = append(out, h...)
	out = append(out, s)
	if len(out) > maxHistory {
		out = out[len(out)-maxHistory:]
	}
	return out
}
