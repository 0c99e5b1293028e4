// Package events publishes domain events produced by the debt engine.
package events

import (
	"context"
	"log/slog"

	"github.com/mmynk/tripsplit/internal/models"
)

// Publisher delivers events to interested consumers.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// DebtsSettled is emitted after a settlement batch is committed.
type DebtsSettled struct {
	TripID    string          `json:"trip_id"`
	SettledBy string          `json:"settled_by,omitempty"`
	SettledAt int64           `json:"settled_at"`
	Debts     []SettledRecord `json:"debts"`
}

// SettledRecord is the wire form of one settled debt.
type SettledRecord struct {
	ID               string   `json:"id"`
	FromUser         string   `json:"from_user"`
	ToUser           string   `json:"to_user"`
	Amount           float64  `json:"amount"`
	Currency         string   `json:"currency"`
	Description      string   `json:"description"`
	SourceExpenseIDs []string `json:"source_expense_ids"`
}

// NewDebtsSettled builds the event for a committed batch.
func NewDebtsSettled(tripID, settledBy string, debts []models.SettledDebt) DebtsSettled {
	ev := DebtsSettled{TripID: tripID, SettledBy: settledBy}
	for _, d := range debts {
		if d.SettledAt > ev.SettledAt {
			ev.SettledAt = d.SettledAt
		}
		ev.Debts = append(ev.Debts, SettledRecord{
			ID:               d.ID,
			FromUser:         d.FromUser,
			ToUser:           d.ToUser,
			Amount:           d.Amount,
			Currency:         d.Currency,
			Description:      d.Description,
			SourceExpenseIDs: d.Sources(),
		})
	}
	return ev
}

// LogPublisher writes events to a logger. Used when no broker is configured.
type LogPublisher struct {
	Logger *slog.Logger
}

// Publish logs the event at INFO.
func (p LogPublisher) Publish(ctx context.Context, key string, event any) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "Event published", "key", key, "event", event)
	return nil
}
