package models

import (
	"fmt"
	"strings"
)

// SplitMethod is the policy governing how an expense is distributed.
type SplitMethod string

const (
	// SplitNone charges the whole expense to the payer. No debts are created.
	SplitNone SplitMethod = "no_split"
	// SplitEveryone divides the expense evenly across every tripmate.
	SplitEveryone SplitMethod = "everyone"
	// SplitIndividuals divides the expense evenly across SplitWith.
	SplitIndividuals SplitMethod = "individuals"
)

// ParseSplitMethod validates a split method name.
func ParseSplitMethod(s string) (SplitMethod, error) {
	switch m := SplitMethod(strings.ToLower(strings.TrimSpace(s))); m {
	case SplitNone, SplitEveryone, SplitIndividuals:
		return m, nil
	case "":
		return SplitNone, nil
	default:
		return "", fmt.Errorf("unknown split method %q", s)
	}
}

// Expense is a cost logged against a trip.
type Expense struct {
	// ID is unique within the trip (UUID format).
	ID string

	TripID string

	// Amount is the positive amount in Currency.
	Amount float64

	// Currency is the lowercase currency code the amount was paid in.
	Currency string

	// PaidBy is the payer's email.
	PaidBy string

	SplitMethod SplitMethod

	// SplitWith holds tripmate emails. Only meaningful for SplitIndividuals.
	SplitWith []string

	// Description, Type, ExpenseDate and ConsecutiveDays are provenance only;
	// the debt engine does not use them in its math.
	Description     string
	Type            string
	ExpenseDate     int64
	ConsecutiveDays int

	CreatedAt int64
}

// NormalizeCurrency lowercases and trims a currency code.
func NormalizeCurrency(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
