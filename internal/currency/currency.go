// Package currency provides the conversion boundary used by the debt calculator.
package currency

import (
	"context"
	"errors"

	"github.com/mmynk/tripsplit/internal/models"
)

// ErrUnknownCurrency is returned when a converter has no rate for a code.
var ErrUnknownCurrency = errors.New("unknown currency")

// Converter converts an amount between two currency codes.
// Implementations may block on I/O and may fail.
type Converter interface {
	Convert(ctx context.Context, amount float64, from, to string) (float64, error)
}

// ConverterFunc adapts a function to the Converter interface.
type ConverterFunc func(ctx context.Context, amount float64, from, to string) (float64, error)

// Convert calls f.
func (f ConverterFunc) Convert(ctx context.Context, amount float64, from, to string) (float64, error) {
	return f(ctx, amount, from, to)
}

// Convert converts amount with c, returning amount unchanged without calling c
// when both codes name the same currency.
func Convert(ctx context.Context, c Converter, amount float64, from, to string) (float64, error) {
	from, to = models.NormalizeCurrency(from), models.NormalizeCurrency(to)
	if from == to {
		return amount, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return c.Convert(ctx, amount, from, to)
}
