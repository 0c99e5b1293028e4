package session

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mmynk/tripsplit/internal/currency"
	"github.com/mmynk/tripsplit/internal/metrics"
	"github.com/mmynk/tripsplit/internal/models"
	"github.com/mmynk/tripsplit/internal/storage/memory"
)

const tripID = "trip-1"

func newStore(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	if err := store.CreateTrip(ctx, &models.Trip{ID: tripID, Name: "Lisbon", HomeCurrency: "usd"}); err != nil {
		t.Fatalf("CreateTrip failed: %v", err)
	}
	for _, p := range []models.Participant{
		{UserID: "u-alice", Email: "alice@example.com"},
		{UserID: "u-bob", Email: "bob@example.com"},
		{UserID: "u-carol", Email: "carol@example.com"},
	} {
		if err := store.AddTripmate(ctx, tripID, p); err != nil {
			t.Fatalf("AddTripmate failed: %v", err)
		}
	}
	return store
}

func addExpense(t *testing.T, store *memory.Store, e models.Expense) {
	t.Helper()
	e.TripID = tripID
	if err := store.CreateExpense(context.Background(), &e); err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
}

func deps(store *memory.Store, conv currency.Converter) Dependencies {
	return Dependencies{Expenses: store, Members: store, History: store, Converter: conv}
}

func rates(t *testing.T) currency.Converter {
	t.Helper()
	table, err := currency.ParseRates("usd", "usd=1,eur=0.5")
	if err != nil {
		t.Fatalf("ParseRates failed: %v", err)
	}
	return table
}

func TestRecalculate(t *testing.T) {
	store := newStore(t)
	addExpense(t, store, models.Expense{ID: "e1", Amount: 300, Currency: "usd", PaidBy: "alice@example.com", SplitMethod: models.SplitEveryone, Description: "Dinner"})
	addExpense(t, store, models.Expense{ID: "e2", Amount: 60, Currency: "usd", PaidBy: "alice@example.com", SplitMethod: models.SplitIndividuals, SplitWith: []string{"bob@example.com"}, Description: "Taxi"})

	s := New(tripID, "usd", deps(store, rates(t)), Options{}, nil)
	view, err := s.Recalculate(context.Background())
	if err != nil {
		t.Fatalf("Recalculate failed: %v", err)
	}

	if len(view.Debts) != 2 {
		t.Fatalf("Expected 2 simplified debts, got %d: %+v", len(view.Debts), view.Debts)
	}
	for _, d := range view.Debts {
		switch d.FromUser {
		case "u-bob":
			if math.Abs(d.Amount-160) > 0.01 {
				t.Errorf("bob owes %v, want 160", d.Amount)
			}
			if len(d.SourceExpenseIDs) != 2 {
				t.Errorf("bob's debt sources = %v, want both expenses", d.SourceExpenseIDs)
			}
		case "u-carol":
			if math.Abs(d.Amount-100) > 0.01 {
				t.Errorf("carol owes %v, want 100", d.Amount)
			}
		default:
			t.Errorf("unexpected debtor %s", d.FromUser)
		}
	}
	if got := view.Balances["u-alice"].Balance; math.Abs(got-260) > 0.01 {
		t.Errorf("alice balance = %v, want 260", got)
	}
	if view.Generation != 1 {
		t.Errorf("Generation = %d, want 1", view.Generation)
	}
}

func TestRecalculate_SkipsUnconvertible(t *testing.T) {
	store := newStore(t)
	addExpense(t, store, models.Expense{ID: "e1", Amount: 50, Currency: "eur", PaidBy: "bob@example.com", SplitMethod: models.SplitIndividuals, SplitWith: []string{"alice@example.com"}})
	addExpense(t, store, models.Expense{ID: "e2", Amount: 10, Currency: "gbp", PaidBy: "bob@example.com", SplitMethod: models.SplitEveryone})

	s := New(tripID, "usd", deps(store, rates(t)), Options{}, nil)
	view, err := s.Recalculate(context.Background())
	if err != nil {
		t.Fatalf("Recalculate failed: %v", err)
	}
	if len(view.Skipped) != 1 || view.Skipped[0].ExpenseID != "e2" {
		t.Fatalf("Skipped = %+v, want only e2", view.Skipped)
	}
	if !errors.Is(view.Skipped[0].Err, currency.ErrUnknownCurrency) {
		t.Errorf("skip error = %v, want ErrUnknownCurrency", view.Skipped[0].Err)
	}
	if len(view.Debts) != 1 || math.Abs(view.Debts[0].Amount-100) > 0.01 {
		t.Errorf("Debts = %+v, want alice owing bob 100", view.Debts)
	}
}

type failingReader struct{}

func (failingReader) ListExpenses(ctx context.Context, tripID string) ([]models.Expense, error) {
	return nil, errors.New("disk on fire")
}

func TestRecalculate_ReadFailureKeepsState(t *testing.T) {
	store := newStore(t)
	addExpense(t, store, models.Expense{ID: "e1", Amount: 90, Currency: "usd", PaidBy: "alice@example.com", SplitMethod: models.SplitEveryone})

	s := New(tripID, "usd", deps(store, rates(t)), Options{}, nil)
	before, err := s.Recalculate(context.Background())
	if err != nil {
		t.Fatalf("Recalculate failed: %v", err)
	}

	s.deps.Expenses = failingReader{}
	after, err := s.Recalculate(context.Background())
	if err == nil {
		t.Fatal("Expected error from failing reader")
	}
	if len(after.Debts) != len(before.Debts) {
		t.Errorf("Debts changed on failed pass: %d -> %d", len(before.Debts), len(after.Debts))
	}
	if after.Generation != before.Generation {
		t.Errorf("Generation changed on failed pass: %d -> %d", before.Generation, after.Generation)
	}
}

func TestRecalculate_StalePassDiscarded(t *testing.T) {
	store := newStore(t)
	addExpense(t, store, models.Expense{ID: "e1", Amount: 30, Currency: "eur", PaidBy: "alice@example.com", SplitMethod: models.SplitEveryone})

	table := rates(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	conv := currency.ConverterFunc(func(ctx context.Context, amount float64, from, to string) (float64, error) {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
		}
		return table.Convert(ctx, amount, from, to)
	})

	s := New(tripID, "usd", deps(store, conv), Options{}, nil)
	staleBefore := testutil.ToFloat64(metrics.PassesStale)

	type outcome struct {
		view View
		err  error
	}
	slow := make(chan outcome, 1)
	go func() {
		v, err := s.Recalculate(context.Background())
		slow <- outcome{v, err}
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("slow pass never reached the converter")
	}

	// A newer pass sees an extra expense and finishes first.
	addExpense(t, store, models.Expense{ID: "e2", Amount: 30, Currency: "usd", PaidBy: "bob@example.com", SplitMethod: models.SplitEveryone})
	fresh, err := s.Recalculate(context.Background())
	if err != nil {
		t.Fatalf("fresh Recalculate failed: %v", err)
	}
	if fresh.Generation != 2 {
		t.Fatalf("fresh Generation = %d, want 2", fresh.Generation)
	}

	close(release)
	out := <-slow
	if out.err != nil {
		t.Fatalf("slow Recalculate failed: %v", out.err)
	}
	if out.view.Generation != 2 {
		t.Errorf("Generation after stale pass = %d, want 2", out.view.Generation)
	}
	if got := testutil.ToFloat64(metrics.PassesStale) - staleBefore; got != 1 {
		t.Errorf("stale pass metric rose by %v, want 1", got)
	}

	// 60 usd from e1 plus 30 from e2, split three ways.
	live := s.View()
	if got := live.Balances["u-carol"].Owed; math.Abs(got-30) > 0.01 {
		t.Errorf("carol owed = %v, want 30 from the fresh pass", got)
	}
	if got := live.Balances["u-bob"].Paid; math.Abs(got-30) > 0.01 {
		t.Errorf("bob paid = %v, want 30 from the fresh pass", got)
	}
}

func TestApplySettlement(t *testing.T) {
	store := newStore(t)
	addExpense(t, store, models.Expense{ID: "e1", Amount: 300, Currency: "usd", PaidBy: "alice@example.com", SplitMethod: models.SplitEveryone})

	s := New(tripID, "usd", deps(store, rates(t)), Options{}, nil)
	view, err := s.Recalculate(context.Background())
	if err != nil {
		t.Fatalf("Recalculate failed: %v", err)
	}

	settled := make([]models.SettledDebt, len(view.Debts))
	for i, d := range view.Debts {
		settled[i] = models.SettledDebt{ID: d.FromUser, TripID: tripID, Debt: d, Settled: true, SettledAt: 1}
	}
	s.ApplySettlement(settled)

	after := s.View()
	if len(after.Debts) != 0 {
		t.Errorf("Debts after settlement = %+v, want none", after.Debts)
	}
	if len(after.History) != 2 {
		t.Errorf("History length = %d, want 2", len(after.History))
	}
	for key, b := range after.Balances {
		if b.Balance != 0 {
			t.Errorf("%s balance = %v, want 0", key, b.Balance)
		}
		if b.Owed != b.Paid {
			t.Errorf("%s owed = %v, want paid %v", key, b.Owed, b.Paid)
		}
	}
	if got := after.Balances["u-alice"].Paid; math.Abs(got-300) > 0.01 {
		t.Errorf("alice paid = %v, want 300 preserved", got)
	}
	if after.Generation <= view.Generation {
		t.Errorf("Generation did not advance: %d -> %d", view.Generation, after.Generation)
	}
}

func TestSetHomeCurrency(t *testing.T) {
	store := newStore(t)
	addExpense(t, store, models.Expense{ID: "e1", Amount: 100, Currency: "usd", PaidBy: "alice@example.com", SplitMethod: models.SplitIndividuals, SplitWith: []string{"bob@example.com"}})

	s := New(tripID, "usd", deps(store, rates(t)), Options{}, nil)
	s.SetHomeCurrency(" EUR ")
	view, err := s.Recalculate(context.Background())
	if err != nil {
		t.Fatalf("Recalculate failed: %v", err)
	}
	if view.HomeCurrency != "eur" {
		t.Errorf("HomeCurrency = %q, want eur", view.HomeCurrency)
	}
	if len(view.Debts) != 1 || math.Abs(view.Debts[0].Amount-50) > 0.01 || view.Debts[0].Currency != "eur" {
		t.Errorf("Debts = %+v, want bob owing 50 eur", view.Debts)
	}
}

func TestView_ReturnsCopies(t *testing.T) {
	store := newStore(t)
	addExpense(t, store, models.Expense{ID: "e1", Amount: 20, Currency: "usd", PaidBy: "alice@example.com", SplitMethod: models.SplitEveryone})

	s := New(tripID, "usd", deps(store, rates(t)), Options{}, nil)
	if _, err := s.Recalculate(context.Background()); err != nil {
		t.Fatalf("Recalculate failed: %v", err)
	}

	v := s.View()
	v.Debts[0].Amount = 999
	v.Debts[0].SourceExpenseIDs[0] = "tampered"
	v.Balances["u-alice"] = models.Balance{}

	again := s.View()
	if again.Debts[0].Amount == 999 || again.Debts[0].SourceExpenseIDs[0] == "tampered" {
		t.Error("View exposed live debts")
	}
	if again.Balances["u-alice"].Paid == 0 {
		t.Error("View exposed live balances")
	}
}
