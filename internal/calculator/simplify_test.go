package calculator

import (
	"math"
	"testing"

	"github.com/mmynk/tripsplit/internal/models"
)

func debt(from, to string, amount float64, source string) models.Debt {
	return models.Debt{
		FromUser:        from,
		ToUser:          to,
		Amount:          amount,
		Currency:        "usd",
		Description:     "expense " + source,
		SourceExpenseID: source,
	}
}

func TestSimplify(t *testing.T) {
	tests := []struct {
		name         string
		debts        []models.Debt
		want         int
		validateFunc func(t *testing.T, got []models.Debt)
	}{
		{
			name:  "same direction merges",
			debts: []models.Debt{debt("A", "B", 50, "e1"), debt("A", "B", 30, "e2")},
			want:  1,
			validateFunc: func(t *testing.T, got []models.Debt) {
				if math.Abs(got[0].Amount-80) > 0.01 {
					t.Errorf("amount = %v, want 80", got[0].Amount)
				}
				if got[0].Description != CombinedDescription {
					t.Errorf("description = %q, want %q", got[0].Description, CombinedDescription)
				}
				if len(got[0].SourceExpenseIDs) != 2 {
					t.Errorf("sources = %v, want e1 and e2", got[0].SourceExpenseIDs)
				}
				if got[0].SourceExpenseID != "e1" {
					t.Errorf("source = %s, want e1", got[0].SourceExpenseID)
				}
			},
		},
		{
			name:  "single source keeps its description",
			debts: []models.Debt{debt("A", "B", 12, "e1")},
			want:  1,
			validateFunc: func(t *testing.T, got []models.Debt) {
				if got[0].Description != "expense e1" {
					t.Errorf("description = %q, want %q", got[0].Description, "expense e1")
				}
			},
		},
		{
			name:  "negligible amount is dropped",
			debts: []models.Debt{debt("A", "B", 0.005, "e1")},
			want:  0,
		},
		{
			name:  "exactly epsilon is dropped",
			debts: []models.Debt{debt("A", "B", 0.01, "e1")},
			want:  0,
		},
		{
			name:  "opposite directions are not netted",
			debts: []models.Debt{debt("A", "B", 50, "e1"), debt("B", "A", 20, "e2")},
			want:  2,
		},
		{
			name:  "first appearance order is kept",
			debts: []models.Debt{debt("C", "A", 5, "e1"), debt("B", "A", 5, "e1"), debt("C", "A", 5, "e2")},
			want:  2,
			validateFunc: func(t *testing.T, got []models.Debt) {
				if got[0].FromUser != "C" || got[1].FromUser != "B" {
					t.Errorf("unexpected order: %+v", got)
				}
			},
		},
		{
			name:  "empty input",
			debts: nil,
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Simplify(tt.debts)
			if len(got) != tt.want {
				t.Fatalf("Simplify() returned %d debts, want %d: %+v", len(got), tt.want, got)
			}
			if tt.validateFunc != nil {
				tt.validateFunc(t, got)
			}
		})
	}
}

func TestSimplify_DoesNotMutateInput(t *testing.T) {
	in := []models.Debt{debt("A", "B", 50, "e1"), debt("A", "B", 30, "e2")}
	Simplify(in)
	if in[0].Amount != 50 || in[0].Description != "expense e1" {
		t.Errorf("input mutated: %+v", in[0])
	}
}

func TestNetOpposing(t *testing.T) {
	t.Run("larger side survives with the difference", func(t *testing.T) {
		got := NetOpposing([]models.Debt{debt("A", "B", 50, "e1"), debt("B", "A", 20, "e2")})
		if len(got) != 1 {
			t.Fatalf("expected 1 debt, got %+v", got)
		}
		if got[0].FromUser != "A" || got[0].ToUser != "B" || math.Abs(got[0].Amount-30) > 0.01 {
			t.Errorf("unexpected debt: %+v", got[0])
		}
		if len(got[0].SourceExpenseIDs) != 2 {
			t.Errorf("sources = %v, want both expenses", got[0].SourceExpenseIDs)
		}
	})

	t.Run("direction flips when the reverse is larger", func(t *testing.T) {
		got := NetOpposing([]models.Debt{debt("A", "B", 10, "e1"), debt("B", "A", 25, "e2")})
		if len(got) != 1 || got[0].FromUser != "B" || math.Abs(got[0].Amount-15) > 0.01 {
			t.Errorf("unexpected result: %+v", got)
		}
	})

	t.Run("equal debts cancel", func(t *testing.T) {
		got := NetOpposing([]models.Debt{debt("A", "B", 10, "e1"), debt("B", "A", 10, "e2")})
		if len(got) != 0 {
			t.Errorf("expected no debts, got %+v", got)
		}
	})

	t.Run("unrelated debts pass through", func(t *testing.T) {
		got := NetOpposing([]models.Debt{debt("A", "B", 10, "e1"), debt("C", "B", 10, "e2")})
		if len(got) != 2 {
			t.Errorf("expected 2 debts, got %+v", got)
		}
	})
}
