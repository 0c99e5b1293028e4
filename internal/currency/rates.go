package currency

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tripsplit/internal/models"
)

// RateTable converts through a base currency using fixed rates.
// A rate is the number of units of a currency worth one unit of the base.
type RateTable struct {
	mu    sync.RWMutex
	base  string
	rates map[string]decimal.Decimal
}

var _ Converter = (*RateTable)(nil)

// NewRateTable creates a table whose base currency has rate 1.
func NewRateTable(base string) *RateTable {
	base = models.NormalizeCurrency(base)
	return &RateTable{
		base:  base,
		rates: map[string]decimal.Decimal{base: decimal.NewFromInt(1)},
	}
}

// ParseRates builds a table from "code=rate" pairs separated by commas,
// e.g. "usd=1,eur=0.92,jpy=151.3".
func ParseRates(base, spec string) (*RateTable, error) {
	t := NewRateTable(base)
	for _, pair := range strings.Split(spec, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		code, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid rate %q: want code=rate", pair)
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid rate for %s: %w", code, err)
		}
		if err := t.Set(code, rate); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Set stores the rate for code. The base currency's rate cannot change.
func (t *RateTable) Set(code string, rate decimal.Decimal) error {
	code = models.NormalizeCurrency(code)
	if code == "" {
		return fmt.Errorf("empty currency code")
	}
	if !rate.IsPositive() {
		return fmt.Errorf("rate for %s must be positive", code)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if code == t.base && !rate.Equal(decimal.NewFromInt(1)) {
		return fmt.Errorf("base currency %s must have rate 1", code)
	}
	t.rates[code] = rate
	return nil
}

// Codes returns the currencies the table can convert.
func (t *RateTable) Codes() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	codes := make([]string, 0, len(t.rates))
	for c := range t.rates {
		codes = append(codes, c)
	}
	return codes
}

// Convert converts amount from one currency to another through the base.
func (t *RateTable) Convert(ctx context.Context, amount float64, from, to string) (float64, error) {
	from, to = models.NormalizeCurrency(from), models.NormalizeCurrency(to)

	t.mu.RLock()
	fromRate, okFrom := t.rates[from]
	toRate, okTo := t.rates[to]
	t.mu.RUnlock()

	if !okFrom {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCurrency, from)
	}
	if !okTo {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCurrency, to)
	}

	// amount / fromRate gives base units; * toRate gives target units.
	converted := decimal.NewFromFloat(amount).
		DivRound(fromRate, 12).
		Mul(toRate)
	return converted.InexactFloat64(), nil
}
