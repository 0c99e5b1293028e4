// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/tripsplit/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ExpenseReader is the read side of the expense store.
type ExpenseReader interface {
	// ListExpenses returns every expense of the trip, oldest expense date first.
	ListExpenses(ctx context.Context, tripID string) ([]models.Expense, error)
}

// MembershipDirectory resolves the tripmates of a trip.
type MembershipDirectory interface {
	ListTripmates(ctx context.Context, tripID string) ([]models.Participant, error)
}

// SettlementReader reads settlement history.
type SettlementReader interface {
	// ListSettledDebts returns settled debts of the trip, most recent first.
	ListSettledDebts(ctx context.Context, tripID string) ([]models.SettledDebt, error)
}

// SettlementStore is the append-only settlement history.
type SettlementStore interface {
	SettlementReader

	// SaveSettledDebts writes every record or none of them.
	SaveSettledDebts(ctx context.Context, tripID string, debts []models.SettledDebt) error
}

// Store defines every persistence operation the service needs.
// This abstraction allows swapping storage backends (SQLite, in-memory, etc.)
// without changing the service layer.
type Store interface {
	ExpenseReader
	MembershipDirectory
	SettlementStore

	// CreateTrip persists a new trip. ID and CreatedAt are filled in when empty.
	CreateTrip(ctx context.Context, trip *models.Trip) error

	// GetTrip returns ErrNotFound when the trip does not exist.
	GetTrip(ctx context.Context, tripID string) (*models.Trip, error)

	// ListTripsForUser returns the trips the user is a tripmate of.
	ListTripsForUser(ctx context.Context, userID string) ([]*models.Trip, error)

	// UpdateHomeCurrency changes the reporting currency of a trip.
	UpdateHomeCurrency(ctx context.Context, tripID, code string) error

	// AddTripmate adds a participant to the trip. Adding twice is a no-op.
	AddTripmate(ctx context.Context, tripID string, p models.Participant) error

	// CreateExpense persists a new expense. ID and CreatedAt are filled in when empty.
	CreateExpense(ctx context.Context, expense *models.Expense) error

	// DeleteExpense returns ErrNotFound when the expense does not exist in the trip.
	DeleteExpense(ctx context.Context, tripID, expenseID string) error

	CreateUser(ctx context.Context, user *models.User) error
	// GetUserByEmail returns ErrNotFound when no user has the email.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// Close releases any resources held by the store.
	Close() error
}

// SettledExpenseIDs collects the source expenses of settled debts.
func SettledExpenseIDs(history []models.SettledDebt) map[string]bool {
	ids := make(map[string]bool, len(history))
	for _, d := range history {
		if !d.Settled {
			continue
		}
		for _, id := range d.Sources() {
			ids[id] = true
		}
	}
	return ids
}
