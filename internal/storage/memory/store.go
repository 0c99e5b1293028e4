// Package memory provides an in-memory implementation of storage.Store.
// Data lives only as long as the process; reads return copies.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/tripsplit/internal/models"
	"github.com/mmynk/tripsplit/internal/storage"
)

// Compile-time check: ensure Store implements storage.Store
var _ storage.Store = (*Store)(nil)

// Store keeps every record in maps guarded by one mutex.
type Store struct {
	mu        sync.Mutex
	trips     map[string]models.Trip
	tripmates map[string][]models.Participant
	expenses  map[string][]models.Expense
	settled   map[string][]models.SettledDebt
	users     map[string]models.User
}

// New creates an empty store.
func New() *Store {
	return &Store{
		trips:     make(map[string]models.Trip),
		tripmates: make(map[string][]models.Participant),
		expenses:  make(map[string][]models.Expense),
		settled:   make(map[string][]models.SettledDebt),
		users:     make(map[string]models.User),
	}
}

// Close is a no-op.
func (m *Store) Close() error { return nil }

func (m *Store) CreateTrip(ctx context.Context, trip *models.Trip) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if trip.ID == "" {
		trip.ID = uuid.New().String()
	}
	if trip.CreatedAt == 0 {
		trip.CreatedAt = time.Now().Unix()
	}
	trip.HomeCurrency = models.NormalizeCurrency(trip.HomeCurrency)
	if _, exists := m.trips[trip.ID]; exists {
		return fmt.Errorf("trip %s already exists", trip.ID)
	}
	m.trips[trip.ID] = *trip
	return nil
}

func (m *Store) GetTrip(ctx context.Context, tripID string) (*models.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	trip, ok := m.trips[tripID]
	if !ok {
		return nil, fmt.Errorf("trip %s: %w", tripID, storage.ErrNotFound)
	}
	return &trip, nil
}

func (m *Store) ListTripsForUser(ctx context.Context, userID string) ([]*models.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var trips []*models.Trip
	for id, mates := range m.tripmates {
		for _, p := range mates {
			if p.UserID == userID {
				trip := m.trips[id]
				trips = append(trips, &trip)
				break
			}
		}
	}
	sort.Slice(trips, func(i, j int) bool { return trips[i].CreatedAt > trips[j].CreatedAt })
	return trips, nil
}

func (m *Store) UpdateHomeCurrency(ctx context.Context, tripID, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	trip, ok := m.trips[tripID]
	if !ok {
		return fmt.Errorf("trip %s: %w", tripID, storage.ErrNotFound)
	}
	trip.HomeCurrency = models.NormalizeCurrency(code)
	m.trips[tripID] = trip
	return nil
}

func (m *Store) AddTripmate(ctx context.Context, tripID string, p models.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p.Email = models.NormalizeEmail(p.Email)
	for _, have := range m.tripmates[tripID] {
		if have.Email == p.Email {
			return nil
		}
	}
	m.tripmates[tripID] = append(m.tripmates[tripID], p)
	return nil
}

func (m *Store) ListTripmates(ctx context.Context, tripID string) ([]models.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mates := make([]models.Participant, len(m.tripmates[tripID]))
	copy(mates, m.tripmates[tripID])
	return mates, nil
}

func (m *Store) CreateExpense(ctx context.Context, expense *models.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.CreatedAt == 0 {
		expense.CreatedAt = time.Now().Unix()
	}
	if expense.ExpenseDate == 0 {
		expense.ExpenseDate = expense.CreatedAt
	}
	expense.Currency = models.NormalizeCurrency(expense.Currency)
	expense.PaidBy = models.NormalizeEmail(expense.PaidBy)

	e := *expense
	e.SplitWith = make([]string, len(expense.SplitWith))
	for i, email := range expense.SplitWith {
		e.SplitWith[i] = models.NormalizeEmail(email)
	}
	m.expenses[e.TripID] = append(m.expenses[e.TripID], e)
	return nil
}

func (m *Store) DeleteExpense(ctx context.Context, tripID, expenseID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.expenses[tripID]
	for i, e := range list {
		if e.ID == expenseID {
			m.expenses[tripID] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
}

func (m *Store) ListExpenses(ctx context.Context, tripID string) ([]models.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	expenses := make([]models.Expense, len(m.expenses[tripID]))
	for i, e := range m.expenses[tripID] {
		e.SplitWith = append([]string(nil), e.SplitWith...)
		expenses[i] = e
	}
	sort.SliceStable(expenses, func(i, j int) bool {
		if expenses[i].ExpenseDate != expenses[j].ExpenseDate {
			return expenses[i].ExpenseDate < expenses[j].ExpenseDate
		}
		return expenses[i].CreatedAt < expenses[j].CreatedAt
	})
	return expenses, nil
}

// SaveSettledDebts appends the batch under the lock, so it is all-or-nothing.
func (m *Store) SaveSettledDebts(ctx context.Context, tripID string, debts []models.SettledDebt) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UnixMilli()
	batch := make([]models.SettledDebt, len(debts))
	for i := range debts {
		d := &debts[i]
		if d.ID == "" {
			d.ID = uuid.New().String()
		}
		if d.CreatedAt == 0 {
			d.CreatedAt = now
		}
		if d.SettledAt == 0 {
			d.SettledAt = now
		}
		d.TripID = tripID
		batch[i] = *d
		batch[i].SourceExpenseIDs = append([]string(nil), d.Sources()...)
	}
	m.settled[tripID] = append(m.settled[tripID], batch...)
	return nil
}

// ListSettledDebts returns settled debts, most recent first. Records of the
// same timestamp keep reverse insertion order.
func (m *Store) ListSettledDebts(ctx context.Context, tripID string) ([]models.SettledDebt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := m.settled[tripID]
	history := make([]models.SettledDebt, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		d := all[i]
		if !d.Settled {
			continue
		}
		d.SourceExpenseIDs = append([]string(nil), d.SourceExpenseIDs...)
		history = append(history, d)
	}
	sort.SliceStable(history, func(i, j int) bool {
		if history[i].SettledAt != history[j].SettledAt {
			return history[i].SettledAt > history[j].SettledAt
		}
		return history[i].CreatedAt > history[j].CreatedAt
	})
	return history, nil
}

func (m *Store) CreateUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	email := models.NormalizeEmail(user.Email)
	for _, u := range m.users {
		if u.Email == email {
			return fmt.Errorf("failed to create user: email %s already registered", email)
		}
	}
	u := *user
	u.Email = email
	m.users[u.ID] = u
	return nil
}

func (m *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	email = models.NormalizeEmail(email)
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", email, storage.ErrNotFound)
}

func (m *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	return &u, nil
}
