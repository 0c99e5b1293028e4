package calculator

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/mmynk/tripsplit/internal/currency"
	"github.com/mmynk/tripsplit/internal/models"
)

var tripmates = []models.Participant{
	{UserID: "u-alice", Email: "alice@example.com", DisplayName: "Alice"},
	{UserID: "u-bob", Email: "bob@example.com", DisplayName: "Bob"},
	{UserID: "u-carol", Email: "carol@example.com", DisplayName: "Carol"},
}

// identity fails the test if a conversion is requested.
func identity(t *testing.T) currency.Converter {
	return currency.ConverterFunc(func(ctx context.Context, amount float64, from, to string) (float64, error) {
		t.Errorf("unexpected conversion %s -> %s", from, to)
		return amount, nil
	})
}

func usdExpense(id, payer string, amount float64, method models.SplitMethod, with ...string) models.Expense {
	return models.Expense{
		ID:          id,
		Amount:      amount,
		Currency:    "usd",
		PaidBy:      payer,
		SplitMethod: method,
		SplitWith:   with,
		Description: "expense " + id,
	}
}

func assertBalance(t *testing.T, balances map[string]models.Balance, key string, paid, owed, balance float64) {
	t.Helper()
	b, ok := balances[key]
	if !ok {
		t.Errorf("%s: missing balance", key)
		return
	}
	if math.Abs(b.Paid-paid) > 0.01 {
		t.Errorf("%s paid = %v, want %v", key, b.Paid, paid)
	}
	if math.Abs(b.Owed-owed) > 0.01 {
		t.Errorf("%s owed = %v, want %v", key, b.Owed, owed)
	}
	if math.Abs(b.Balance-balance) > 0.01 {
		t.Errorf("%s balance = %v, want %v", key, b.Balance, balance)
	}
}

func TestCalculate(t *testing.T) {
	tests := []struct {
		name         string
		expenses     []models.Expense
		settled      map[string]bool
		wantDebts    int
		wantSkipped  int
		validateFunc func(t *testing.T, res Result)
	}{
		{
			name:      "everyone split across three tripmates",
			expenses:  []models.Expense{usdExpense("e1", "alice@example.com", 300, models.SplitEveryone)},
			wantDebts: 2,
			validateFunc: func(t *testing.T, res Result) {
				assertBalance(t, res.Balances, "u-alice", 300, 100, 200)
				assertBalance(t, res.Balances, "u-bob", 0, 100, -100)
				assertBalance(t, res.Balances, "u-carol", 0, 100, -100)
				for _, d := range res.Debts {
					if d.ToUser != "u-alice" {
						t.Errorf("debt to %s, want u-alice", d.ToUser)
					}
					if math.Abs(d.Amount-100) > 0.01 {
						t.Errorf("debt amount = %v, want 100", d.Amount)
					}
					if d.SourceExpenseID != "e1" || d.Currency != "usd" {
						t.Errorf("unexpected provenance: %+v", d)
					}
				}
			},
		},
		{
			name:      "no split only credits the payer",
			expenses:  []models.Expense{usdExpense("e1", "bob@example.com", 90, models.SplitNone)},
			wantDebts: 0,
			validateFunc: func(t *testing.T, res Result) {
				assertBalance(t, res.Balances, "u-bob", 90, 0, 90)
				assertBalance(t, res.Balances, "u-alice", 0, 0, 0)
				assertBalance(t, res.Balances, "u-carol", 0, 0, 0)
			},
		},
		{
			name:      "individuals including the payer",
			expenses:  []models.Expense{usdExpense("e1", "alice@example.com", 60, models.SplitIndividuals, "alice@example.com", "bob@example.com")},
			wantDebts: 1,
			validateFunc: func(t *testing.T, res Result) {
				assertBalance(t, res.Balances, "u-alice", 60, 30, 30)
				assertBalance(t, res.Balances, "u-bob", 0, 30, -30)
				assertBalance(t, res.Balances, "u-carol", 0, 0, 0)
				if res.Debts[0].FromUser != "u-bob" {
					t.Errorf("debt from %s, want u-bob", res.Debts[0].FromUser)
				}
			},
		},
		{
			name:      "individuals excluding the payer",
			expenses:  []models.Expense{usdExpense("e1", "alice@example.com", 60, models.SplitIndividuals, "bob@example.com", "carol@example.com")},
			wantDebts: 2,
			validateFunc: func(t *testing.T, res Result) {
				assertBalance(t, res.Balances, "u-alice", 60, 0, 60)
				assertBalance(t, res.Balances, "u-bob", 0, 30, -30)
				assertBalance(t, res.Balances, "u-carol", 0, 30, -30)
			},
		},
		{
			name:      "individuals with empty selection behaves like no split",
			expenses:  []models.Expense{usdExpense("e1", "bob@example.com", 90, models.SplitIndividuals)},
			wantDebts: 0,
			validateFunc: func(t *testing.T, res Result) {
				assertBalance(t, res.Balances, "u-bob", 90, 0, 90)
			},
		},
		{
			name:      "duplicate and differently cased split targets count once",
			expenses:  []models.Expense{usdExpense("e1", "alice@example.com", 60, models.SplitIndividuals, "BOB@example.com", "bob@example.com", "")},
			wantDebts: 1,
			validateFunc: func(t *testing.T, res Result) {
				assertBalance(t, res.Balances, "u-bob", 0, 60, -60)
			},
		},
		{
			name:      "split target outside the directory is initialized lazily",
			expenses:  []models.Expense{usdExpense("e1", "alice@example.com", 40, models.SplitIndividuals, "alice@example.com", "dave@example.com")},
			wantDebts: 1,
			validateFunc: func(t *testing.T, res Result) {
				assertBalance(t, res.Balances, "dave@example.com", 0, 20, -20)
				if res.Debts[0].FromUser != "dave@example.com" {
					t.Errorf("debt from %s, want dave@example.com", res.Debts[0].FromUser)
				}
			},
		},
		{
			name:        "unknown payer is skipped",
			expenses:    []models.Expense{usdExpense("e1", "mallory@example.com", 100, models.SplitEveryone)},
			wantDebts:   0,
			wantSkipped: 1,
			validateFunc: func(t *testing.T, res Result) {
				if res.Skipped[0].Reason != SkipUnknownPayer {
					t.Errorf("reason = %s, want %s", res.Skipped[0].Reason, SkipUnknownPayer)
				}
				assertBalance(t, res.Balances, "u-alice", 0, 0, 0)
			},
		},
		{
			name:        "non-positive amount is skipped",
			expenses:    []models.Expense{usdExpense("e1", "alice@example.com", 0, models.SplitEveryone)},
			wantSkipped: 1,
		},
		{
			name:        "unknown split method is skipped without crediting the payer",
			expenses:    []models.Expense{usdExpense("e1", "alice@example.com", 50, "by_weight")},
			wantSkipped: 1,
			validateFunc: func(t *testing.T, res Result) {
				assertBalance(t, res.Balances, "u-alice", 0, 0, 0)
			},
		},
		{
			name: "settled expenses are excluded",
			expenses: []models.Expense{
				usdExpense("e1", "alice@example.com", 300, models.SplitEveryone),
				usdExpense("e2", "bob@example.com", 30, models.SplitEveryone),
			},
			settled:   map[string]bool{"e1": true},
			wantDebts: 2,
			validateFunc: func(t *testing.T, res Result) {
				for _, d := range res.Debts {
					if d.SourceExpenseID != "e2" {
						t.Errorf("debt from settled expense %s", d.SourceExpenseID)
					}
				}
				assertBalance(t, res.Balances, "u-bob", 30, 10, 20)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Calculate(context.Background(), identity(t), Input{
				Expenses:     tt.expenses,
				Participants: tripmates,
				HomeCurrency: "usd",
				Settled:      tt.settled,
			}, Options{})
			if err != nil {
				t.Fatalf("Calculate failed: %v", err)
			}
			if len(res.Debts) != tt.wantDebts {
				t.Fatalf("debts = %d, want %d: %+v", len(res.Debts), tt.wantDebts, res.Debts)
			}
			if len(res.Skipped) != tt.wantSkipped {
				t.Fatalf("skipped = %d, want %d: %+v", len(res.Skipped), tt.wantSkipped, res.Skipped)
			}
			if tt.validateFunc != nil {
				tt.validateFunc(t, res)
			}
		})
	}
}

func TestCalculate_BalanceClosure(t *testing.T) {
	expenses := []models.Expense{
		usdExpense("e1", "alice@example.com", 300, models.SplitEveryone),
		usdExpense("e2", "bob@example.com", 47.33, models.SplitIndividuals, "alice@example.com", "carol@example.com"),
		usdExpense("e3", "carol@example.com", 19.99, models.SplitIndividuals, "carol@example.com", "bob@example.com", "alice@example.com"),
		usdExpense("e4", "bob@example.com", 100, models.SplitEveryone),
	}

	res, err := Calculate(context.Background(), identity(t), Input{
		Expenses:     expenses,
		Participants: tripmates,
		HomeCurrency: "usd",
	}, Options{})
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}

	var sum float64
	for _, b := range res.Balances {
		sum += b.Balance
	}
	if math.Abs(sum) > 0.01 {
		t.Errorf("sum of balances = %v, want 0", sum)
	}

	// Every debt must be matched by the debtor's negative contribution.
	var debtTotal float64
	for _, d := range res.Debts {
		if d.FromUser == d.ToUser {
			t.Errorf("self debt: %+v", d)
		}
		debtTotal += d.Amount
	}
	var credit float64
	for _, b := range res.Balances {
		if b.Balance > 0 {
			credit += b.Balance
		}
	}
	if debtTotal+0.01 < credit {
		t.Errorf("debts %v do not cover outstanding credit %v", debtTotal, credit)
	}
}

func TestCalculate_NoSplitMatchesEmptyIndividuals(t *testing.T) {
	run := func(method models.SplitMethod) Result {
		res, err := Calculate(context.Background(), identity(t), Input{
			Expenses:     []models.Expense{usdExpense("e1", "carol@example.com", 75, method)},
			Participants: tripmates,
			HomeCurrency: "usd",
		}, Options{})
		if err != nil {
			t.Fatalf("Calculate failed: %v", err)
		}
		return res
	}

	none, individuals := run(models.SplitNone), run(models.SplitIndividuals)
	if len(none.Debts) != 0 || len(individuals.Debts) != 0 {
		t.Fatalf("expected no debts, got %d and %d", len(none.Debts), len(individuals.Debts))
	}
	for key, want := range none.Balances {
		if got := individuals.Balances[key]; got != want {
			t.Errorf("%s: individuals %+v, no split %+v", key, got, want)
		}
	}
}

func TestCalculate_Conversion(t *testing.T) {
	rates, err := currency.ParseRates("usd", "eur=0.5")
	if err != nil {
		t.Fatalf("ParseRates failed: %v", err)
	}

	expenses := []models.Expense{
		{ID: "e1", Amount: 150, Currency: "EUR", PaidBy: "alice@example.com", SplitMethod: models.SplitEveryone},
		{ID: "e2", Amount: 10, Currency: "gbp", PaidBy: "bob@example.com", SplitMethod: models.SplitEveryone},
	}

	res, err := Calculate(context.Background(), rates, Input{
		Expenses:     expenses,
		Participants: tripmates,
		HomeCurrency: "usd",
	}, Options{Concurrency: 1})
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}

	if len(res.Skipped) != 1 || res.Skipped[0].ExpenseID != "e2" || res.Skipped[0].Reason != SkipConversion {
		t.Fatalf("expected e2 skipped for conversion, got %+v", res.Skipped)
	}
	if !errors.Is(res.Skipped[0].Err, currency.ErrUnknownCurrency) {
		t.Errorf("expected ErrUnknownCurrency, got %v", res.Skipped[0].Err)
	}
	// 150 EUR = 300 USD
	assertBalance(t, res.Balances, "u-alice", 300, 100, 200)
	assertBalance(t, res.Balances, "u-bob", 0, 100, -100)
}

func TestCalculate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Calculate(ctx, currency.NewRateTable("usd"), Input{
		Expenses:     []models.Expense{usdExpense("e1", "alice@example.com", 10, models.SplitEveryone)},
		Participants: tripmates,
		HomeCurrency: "usd",
	}, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
