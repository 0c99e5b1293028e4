package models

// Debt represents "FromUser owes ToUser Amount" in the trip's home currency.
// Debts are calculated on every pass and never persisted as-is.
type Debt struct {
	FromUser string
	ToUser   string
	Amount   float64

	// Currency is the home currency the amount is expressed in.
	Currency string

	// Description is the source expense description, or a combined label
	// when several expenses were merged.
	Description string

	// SourceExpenseID is the first expense this debt was derived from.
	SourceExpenseID string

	// SourceExpenseIDs lists every expense merged into this debt, including
	// SourceExpenseID. Settling the debt settles all of them.
	SourceExpenseIDs []string
}

// Sources returns every expense ID the debt was derived from.
func (d Debt) Sources() []string {
	if len(d.SourceExpenseIDs) > 0 {
		return d.SourceExpenseIDs
	}
	if d.SourceExpenseID != "" {
		return []string{d.SourceExpenseID}
	}
	return nil
}

// Balance holds one participant's totals in home-currency units.
type Balance struct {
	// Paid is the total this participant disbursed.
	Paid float64
	// Owed is the total this participant is responsible for.
	Owed float64
	// Balance is Paid - Owed. Positive means others owe this participant.
	Balance float64
}

// SettledDebt is a Debt recorded by a settlement. Immutable once written.
type SettledDebt struct {
	// ID is the unique identifier for the record (UUID format).
	ID string

	TripID string

	Debt

	Settled bool

	// SettledAt and CreatedAt are Unix timestamps in milliseconds.
	SettledAt int64
	CreatedAt int64
}
