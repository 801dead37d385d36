package history

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/bagelworks/meanvar/internal/database"
	"github.com/bagelworks/meanvar/pkg/formulas"
)

// MinSharedDates is the smallest number of common price dates needed to
// produce a usable returns sample: T prices give T−1 returns, and the moment
// estimators need at least 2 of those.
const MinSharedDates = 3

// PricePoint is one daily close for a symbol.
type PricePoint struct {
	Date  string  `json:"date"` // YYYY-MM-DD
	Close float64 `json:"close"`
}

// Repository provides access to stored daily price history and converts it
// into the aligned returns samples the optimizer consumes.
type Repository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewRepository creates a new price history repository.
func NewRepository(db *database.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("component", "history").Logger(),
	}
}

// SavePrices upserts a price series for a symbol.
func (r *Repository) SavePrices(symbol string, points []PricePoint) error {
	if symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if len(points) == 0 {
		return fmt.Errorf("no price points for symbol %s", symbol)
	}

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO daily_prices (symbol, date, close)
		VALUES (?, ?, ?)
		ON CONFLICT (symbol, date) DO UPDATE SET close = excluded.close
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		if p.Date == "" {
			return fmt.Errorf("price point for %s has no date", symbol)
		}
		if _, err := stmt.Exec(symbol, p.Date, p.Close); err != nil {
			return fmt.Errorf("failed to upsert price %s@%s: %w", symbol, p.Date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit prices: %w", err)
	}

	r.log.Debug().
		Str("symbol", symbol).
		Int("points", len(points)).
		Msg("Saved price series")

	return nil
}

// Symbols lists all symbols with stored history, sorted.
func (r *Repository) Symbols() ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT symbol FROM daily_prices ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating symbols: %w", err)
	}
	return symbols, nil
}

// ReturnsSample loads the price series of the given symbols, aligns them on
// their shared dates (most recent lookbackDays+1 dates), and converts them to
// a T×N simple-returns sample, one column per symbol in input order.
func (r *Repository) ReturnsSample(symbols []string, lookbackDays int) ([][]float64, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols requested")
	}

	series := make([]map[string]float64, len(symbols))
	for i, symbol := range symbols {
		closes, err := r.closesByDate(symbol)
		if err != nil {
			return nil, err
		}
		if len(closes) == 0 {
			return nil, fmt.Errorf("no price history for symbol %s", symbol)
		}
		series[i] = closes
	}

	// Intersect dates across all requested symbols.
	var shared []string
	for date := range series[0] {
		onAll := true
		for _, closes := range series[1:] {
			if _, ok := closes[date]; !ok {
				onAll = false
				break
			}
		}
		if onAll {
			shared = append(shared, date)
		}
	}
	sort.Strings(shared)

	if len(shared) < MinSharedDates {
		return nil, fmt.Errorf("only %d shared price dates across %d symbols, need at least %d",
			len(shared), len(symbols), MinSharedDates)
	}
	if lookbackDays > 0 && len(shared) > lookbackDays+1 {
		shared = shared[len(shared)-(lookbackDays+1):]
	}

	// Per-symbol price series over the shared dates, then simple returns.
	perAsset := make([][]float64, len(symbols))
	for i, closes := range series {
		prices := make([]float64, len(shared))
		for t, date := range shared {
			prices[t] = closes[date]
		}
		perAsset[i] = formulas.CalculateReturns(prices)
	}

	t := len(shared) - 1
	sample := make([][]float64, t)
	for row := 0; row < t; row++ {
		sample[row] = make([]float64, len(symbols))
		for col := range symbols {
			sample[row][col] = perAsset[col][row]
		}
	}

	r.log.Debug().
		Int("symbols", len(symbols)).
		Int("observations", t).
		Msg("Built returns sample")

	return sample, nil
}

// closesByDate loads a symbol's full price history keyed by date.
func (r *Repository) closesByDate(symbol string) (map[string]float64, error) {
	rows, err := r.db.Query(`SELECT date, close FROM daily_prices WHERE symbol = ?`, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to query prices for %s: %w", symbol, err)
	}
	defer rows.Close()

	closes := make(map[string]float64)
	for rows.Next() {
		var date string
		var close float64
		if err := rows.Scan(&date, &close); err != nil {
			return nil, fmt.Errorf("failed to scan price for %s: %w", symbol, err)
		}
		closes[date] = close
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prices for %s: %w", symbol, err)
	}
	return closes, nil
}
