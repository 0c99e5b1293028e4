// Package models defines the core domain models for the trip expense tracker.
//
// # Models
//
//   - Trip: a shared context grouping tripmates and expenses
//   - Participant: a tripmate as resolved by the membership directory
//   - User: a registered account; its email is the participant key
//   - Expense: a cost paid by one tripmate and split under a SplitMethod
//   - Debt: a calculated, transient "from owes to" obligation
//   - Balance: per-participant paid/owed totals in the trip's home currency
//   - SettledDebt: a persisted, immutable record of a settled Debt
//
// # Identity
//
// Expenses reference tripmates by email (PaidBy, SplitWith) while balances are
// keyed by user ID. The calculator bridges the two through the membership
// directory; an email that cannot be resolved is used as its own key.
//
// # Amounts
//
// All calculated amounts are float64 in home-currency units. Rounding happens
// only when values are displayed.
package models
