// Package session holds the live debt state of one open trip view.
//
// A Session is created when a trip is opened and discarded when the view goes
// away. Its live debts and balances change only through a completed
// recalculation pass or a settlement; nothing else writes them.
//
// Every pass is stamped with a generation number when it starts. A pass
// applies its result only if no newer pass or settlement has been applied in
// the meantime, so a slow pass cannot overwrite fresher state.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mmynk/tripsplit/internal/calculator"
	"github.com/mmynk/tripsplit/internal/currency"
	"github.com/mmynk/tripsplit/internal/metrics"
	"github.com/mmynk/tripsplit/internal/models"
	"github.com/mmynk/tripsplit/internal/storage"
)

// Dependencies are the collaborators a pass reads from.
type Dependencies struct {
	Expenses  storage.ExpenseReader
	Members   storage.MembershipDirectory
	History   storage.SettlementReader
	Converter currency.Converter
}

// Options tunes how passes run.
type Options struct {
	// NetOpposing cancels opposite-direction debts between the same two people.
	NetOpposing bool
	// Concurrency bounds conversions in flight during a pass.
	Concurrency int
}

// View is a copy of a session's live state.
type View struct {
	TripID       string
	HomeCurrency string
	Generation   uint64
	Debts        []models.Debt
	Balances     map[string]models.Balance
	History      []models.SettledDebt
	Skipped      []calculator.SkippedExpense
}

// Session is the live state of one trip.
type Session struct {
	tripID string
	deps   Dependencies
	opts   Options
	logger *slog.Logger

	mu           sync.Mutex
	homeCurrency string
	latest       uint64 // last generation handed out
	applied      uint64 // generation of the current live state
	debts        []models.Debt
	balances     map[string]models.Balance
	history      []models.SettledDebt
	skipped      []calculator.SkippedExpense
	lastUsed     time.Time
}

// New creates a session with empty live state.
func New(tripID, homeCurrency string, deps Dependencies, opts Options, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		tripID:       tripID,
		deps:         deps,
		opts:         opts,
		logger:       logger.With("trip_id", tripID),
		homeCurrency: models.NormalizeCurrency(homeCurrency),
		balances:     make(map[string]models.Balance),
		lastUsed:     time.Now(),
	}
}

// TripID returns the trip this session belongs to.
func (s *Session) TripID() string { return s.tripID }

// Recalculate runs one pass over a fresh snapshot of the trip and applies it
// unless a newer pass or settlement got there first. Store read failures
// leave the live state untouched and are returned; per-expense problems are
// logged and reported in View.Skipped.
func (s *Session) Recalculate(ctx context.Context) (View, error) {
	gen, home := s.begin()
	metrics.PassesStarted.Inc()
	start := time.Now()
	defer func() { metrics.PassDuration.Observe(time.Since(start).Seconds()) }()

	expenses, err := s.deps.Expenses.ListExpenses(ctx, s.tripID)
	if err != nil {
		s.logger.Warn("Recalculation aborted: could not read expenses", "generation", gen, "error", err)
		return s.View(), fmt.Errorf("failed to read expenses: %w", err)
	}
	members, err := s.deps.Members.ListTripmates(ctx, s.tripID)
	if err != nil {
		s.logger.Warn("Recalculation aborted: could not read tripmates", "generation", gen, "error", err)
		return s.View(), fmt.Errorf("failed to read tripmates: %w", err)
	}
	history, err := s.deps.History.ListSettledDebts(ctx, s.tripID)
	if err != nil {
		s.logger.Warn("Recalculation aborted: could not read history", "generation", gen, "error", err)
		return s.View(), fmt.Errorf("failed to read settlement history: %w", err)
	}

	res, err := calculator.Calculate(ctx, s.deps.Converter, calculator.Input{
		Expenses:     expenses,
		Participants: members,
		HomeCurrency: home,
		Settled:      storage.SettledExpenseIDs(history),
	}, calculator.Options{Concurrency: s.opts.Concurrency})
	if err != nil {
		s.logger.Debug("Recalculation cancelled", "generation", gen, "error", err)
		return s.View(), err
	}

	for _, skip := range res.Skipped {
		metrics.ExpensesSkipped.WithLabelValues(string(skip.Reason)).Inc()
		s.logger.Warn("Expense excluded from balances",
			"expense_id", skip.ExpenseID,
			"reason", skip.Reason,
			"error", skip.Err,
		)
	}

	debts := calculator.Simplify(res.Debts)
	if s.opts.NetOpposing {
		debts = calculator.NetOpposing(debts)
	}

	if !s.apply(gen, debts, res.Balances, history, res.Skipped) {
		metrics.PassesStale.Inc()
		s.logger.Debug("Discarded stale recalculation", "generation", gen)
		return s.View(), nil
	}

	metrics.PassesApplied.Inc()
	s.logger.Debug("Recalculation applied",
		"generation", gen,
		"expenses", len(expenses),
		"debts", len(debts),
		"skipped", len(res.Skipped),
	)
	return s.View(), nil
}

// begin hands out the next generation and snapshots the home currency.
func (s *Session) begin() (uint64, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest++
	s.lastUsed = time.Now()
	return s.latest, s.homeCurrency
}

// apply installs a pass result if it is newer than the live state.
func (s *Session) apply(gen uint64, debts []models.Debt, balances map[string]models.Balance, history []models.SettledDebt, skipped []calculator.SkippedExpense) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen <= s.applied {
		return false
	}
	s.applied = gen
	s.debts = debts
	s.balances = balances
	s.history = history
	s.skipped = skipped
	return true
}

// invalidate makes every pass started so far stale. Callers hold s.mu.
func (s *Session) invalidate() {
	s.latest++
	s.applied = s.latest
}

// SetHomeCurrency switches the reporting currency. Passes already in flight
// were computed in the old currency and will be discarded.
func (s *Session) SetHomeCurrency(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.homeCurrency = models.NormalizeCurrency(code)
	s.lastUsed = time.Now()
	s.invalidate()
}

// ApplySettlement moves settled debts into history, clears live debts and
// zeroes every balance by raising owed to paid. Paid totals are kept.
// In-flight passes predate the settlement and become stale.
func (s *Session) ApplySettlement(settled []models.SettledDebt) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := make([]models.SettledDebt, 0, len(settled)+len(s.history))
	history = append(history, settled...)
	s.history = append(history, s.history...)

	s.debts = nil
	for key, b := range s.balances {
		b.Owed = b.Paid
		b.Balance = 0
		s.balances[key] = b
	}
	s.lastUsed = time.Now()
	s.invalidate()
}

// Debts returns a copy of the live debts.
func (s *Session) Debts() []models.Debt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyDebts(s.debts)
}

// View returns a copy of the live state.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	balances := make(map[string]models.Balance, len(s.balances))
	for k, v := range s.balances {
		balances[k] = v
	}
	history := make([]models.SettledDebt, len(s.history))
	for i, d := range s.history {
		d.SourceExpenseIDs = append([]string(nil), d.SourceExpenseIDs...)
		history[i] = d
	}
	return View{
		TripID:       s.tripID,
		HomeCurrency: s.homeCurrency,
		Generation:   s.applied,
		Debts:        copyDebts(s.debts),
		Balances:     balances,
		History:      history,
		Skipped:      append([]calculator.SkippedExpense(nil), s.skipped...),
	}
}

// idleSince reports when the session was last used.
func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

func copyDebts(debts []models.Debt) []models.Debt {
	if debts == nil {
		return nil
	}
	out := make([]models.Debt, len(debts))
	for i, d := range debts {
		d.SourceExpenseIDs = append([]string(nil), d.SourceExpenseIDs...)
		out[i] = d
	}
	return out
}
