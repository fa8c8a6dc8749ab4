// Package ingest parses broker trade log (.tlg) statements into typed
// transactions and positions.
//
// A statement is a sequence of sections, each introduced by a header line
// (ACCOUNT_INFORMATION, STOCK_TRANSACTIONS, OPTION_TRANSACTIONS,
// STOCK_POSITIONS, OPTION_POSITIONS, EOF) and followed by pipe-separated rows.
// Option descriptions have the form "SYM DDMONYY STRIKE P|C".
package ingest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/eddiefleurent/options_dashboard/internal/models"
)

// ErrMalformedLine marks a row that could not be turned into a typed record.
var ErrMalformedLine = errors.New("malformed line")

// FileExt is the statement file extension.
const FileExt = ".tlg"

// Section headers.
const (
	SectionAccount            = "ACCOUNT_INFORMATION"
	SectionStockTransactions  = "STOCK_TRANSACTIONS"
	SectionOptionTransactions = "OPTION_TRANSACTIONS"
	SectionStockPositions     = "STOCK_POSITIONS"
	SectionOptionPositions    = "OPTION_POSITIONS"
	SectionEOF                = "EOF"
)

// Transaction row columns.
const (
	txID = iota + 1
	txSymbol
	txDescription
	_ // exchange
	txAction
	_ // status
	txDate
	_ // time
	_ // currency
	txQuantity
	txMultiplier
	txPrice
	txAmount
	txFee
	txColumns
)

// Position row columns. Stock rows carry multiplier, price and amount; option
// rows carry shares per contract, premium per share and amount.
const (
	posSymbol = iota + 2
	posDescription
	_ // currency
	_ // empty
	_ // time
	posQuantity
	posMultiplier
	posPrice
	posAmount
	posColumns
)

const dateLayout = "20060102"

// LineError records a skipped row.
type LineError struct {
	Line    int
	Section string
	Reason  string
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d (%s): %s", e.Line, e.Section, e.Reason)
}

// Unwrap lets callers match ErrMalformedLine.
func (e *LineError) Unwrap() error { return ErrMalformedLine }

// Statement is a parsed trade log.
type Statement struct {
	Account      *models.Account      `json:"account,omitempty"`
	Transactions []models.Transaction `json:"transactions"`
	Positions    []models.Position    `json:"positions"`
	Skipped      []*LineError         `json:"-"`
}

// OptionTransactions returns only the option legs.
func (s *Statement) OptionTransactions() []models.Transaction {
	out := make([]models.Transaction, 0, len(s.Transactions))
	for _, tx := range s.Transactions {
		if tx.Option != nil {
			out = append(out, tx)
		}
	}
	return out
}

// ParseFile opens and parses a statement file.
func ParseFile(path string) (*Statement, error) {
	f, err := os.Open(path) // #nosec G304 -- path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open statement: %w", err)
	}
	defer func() { _ = f.Close() }()

	st, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return st, nil
}

// Parse reads a statement. Rows that cannot be parsed are skipped and
// recorded in Statement.Skipped; only read failures return an error.
func Parse(r io.Reader) (*Statement, error) {
	st := &Statement{
		Transactions: []models.Transaction{},
		Positions:    []models.Position{},
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	section := ""
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if isSection(line) {
			section = line
			continue
		}
		if reason := st.parseRow(section, strings.Split(line, "|")); reason != "" {
			st.Skipped = append(st.Skipped, &LineError{Line: lineNo, Section: section, Reason: reason})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read statement: %w", err)
	}
	return st, nil
}

func isSection(line string) bool {
	switch line {
	case SectionAccount, SectionStockTransactions, SectionOptionTransactions,
		SectionStockPositions, SectionOptionPositions, SectionEOF:
		return true
	}
	return false
}

// parseRow returns a non-empty reason when the row is skipped.
func (st *Statement) parseRow(section string, fields []string) string {
	switch section {
	case SectionAccount:
		if st.Account != nil {
			return ""
		}
		if len(fields) < 4 {
			return "account row has too few fields"
		}
		st.Account = &models.Account{
			ID:   strings.TrimSpace(fields[1]),
			Name: strings.TrimSpace(fields[2]),
			Type: strings.TrimSpace(fields[3]),
		}
	case SectionStockTransactions, SectionOptionTransactions:
		tx, err := parseTransaction(pad(fields, txColumns), section == SectionOptionTransactions)
		if err != "" {
			return err
		}
		st.Transactions = append(st.Transactions, tx)
	case SectionStockPositions, SectionOptionPositions:
		p, err := parsePosition(pad(fields, posColumns), section == SectionOptionPositions)
		if err != "" {
			return err
		}
		st.Positions = append(st.Positions, p)
	case "", SectionEOF:
		return "row outside of a section"
	}
	return ""
}

func parseTransaction(f []string, option bool) (models.Transaction, string) {
	action, err := models.ParseAction(f[txAction])
	if err != nil {
		return models.Transaction{}, err.Error()
	}
	tx := models.Transaction{
		ID:          strings.TrimSpace(f[txID]),
		Symbol:      strings.TrimSpace(f[txSymbol]),
		Description: strings.TrimSpace(f[txDescription]),
		Action:      action,
		Quantity:    number(f[txQuantity]),
		Price:       number(f[txPrice]),
		Amount:      number(f[txAmount]),
		Fee:         number(f[txFee]),
	}
	// An unparseable date leaves the zero time; the matcher drops such groups.
	if d, err := time.Parse(dateLayout, strings.TrimSpace(f[txDate])); err == nil {
		tx.Date = d
	}
	if option {
		sym, contract, err := ParseOptionDescription(tx.Description)
		if err != nil {
			return models.Transaction{}, err.Error()
		}
		tx.Symbol = sym
		tx.Option = contract
	}
	if tx.Symbol == "" {
		return models.Transaction{}, "missing symbol"
	}
	return tx, ""
}

// parsePosition maps a position row. For options, amount is the signed cash
// flow of opening the position, so cost basis is its negation and the mark is
// quantity * shares * premium.
func parsePosition(f []string, option bool) (models.Position, string) {
	p := models.Position{
		Symbol:      strings.TrimSpace(f[posSymbol]),
		Description: strings.TrimSpace(f[posDescription]),
		AssetClass:  models.AssetStock,
		Quantity:    number(f[posQuantity]),
		MarketPrice: number(f[posPrice]),
	}
	amount := number(f[posAmount])

	if !option {
		mv := amount
		p.MarketValue = &mv
		p.CostBasis = amount
		if p.Symbol == "" {
			return models.Position{}, "missing symbol"
		}
		return p, ""
	}

	sym, contract, err := ParseOptionDescription(p.Description)
	if err != nil {
		return models.Position{}, err.Error()
	}
	shares := number(f[posMultiplier])
	if shares == 0 {
		shares = models.SharesPerContract
	}
	mv := p.Quantity * shares * p.MarketPrice
	p.Symbol = sym
	p.Option = contract
	p.AssetClass = models.AssetOption
	p.MarketValue = &mv
	p.CostBasis = -amount
	if p.Quantity != 0 {
		p.AvgPremium = math.Abs(amount) / math.Abs(p.Quantity)
	}
	p.UnrealizedPnL = mv - p.CostBasis
	return p, ""
}

// ParseOptionDescription splits "SYM DDMONYY STRIKE P|C" into the underlying
// symbol and typed contract terms.
func ParseOptionDescription(desc string) (string, *models.OptionContract, error) {
	parts := strings.Fields(desc)
	if len(parts) < 4 {
		return "", nil, fmt.Errorf("option description %q: expected SYM DDMONYY STRIKE P|C", desc)
	}
	exp, err := time.Parse("02Jan06", parts[1])
	if err != nil {
		return "", nil, fmt.Errorf("option description %q: bad expiration %q", desc, parts[1])
	}
	strike, err := strconv.ParseFloat(parts[2], 64)
	if err != nil || strike <= 0 {
		return "", nil, fmt.Errorf("option description %q: bad strike %q", desc, parts[2])
	}
	kind, err := models.ParseOptionKind(parts[len(parts)-1])
	if err != nil {
		return "", nil, fmt.Errorf("option description %q: %w", desc, err)
	}
	return parts[0], &models.OptionContract{Expiration: exp, Strike: strike, Kind: kind}, nil
}

// ListFiles returns the statement file names in dir, sorted.
func ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), FileExt) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// number parses a numeric cell; blanks and garbage read as zero.
func number(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func pad(fields []string, n int) []string {
	if len(fields) >= n {
		return fields
	}
	out := make([]string, n)
	copy(out, fields)
	return out
}
