package service

import (
	"github.com/mmynk/tripsplit/internal/calculator"
	"github.com/mmynk/tripsplit/internal/models"
	"github.com/mmynk/tripsplit/internal/session"
)

// Wire messages for the trip and auth services. Timestamps are Unix seconds
// except settled debts, which carry Unix milliseconds.

type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	CreatedAt   int64  `json:"created_at"`
}

type Trip struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	HomeCurrency string `json:"home_currency"`
	CreatedBy    string `json:"created_by"`
	CreatedAt    int64  `json:"created_at"`
}

type Tripmate struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

type Expense struct {
	ID              string   `json:"id"`
	TripID          string   `json:"trip_id"`
	Amount          float64  `json:"amount"`
	Currency        string   `json:"currency"`
	PaidBy          string   `json:"paid_by"`
	SplitMethod     string   `json:"split_method"`
	SplitWith       []string `json:"split_with,omitempty"`
	Description     string   `json:"description,omitempty"`
	Type            string   `json:"type,omitempty"`
	ExpenseDate     int64    `json:"expense_date"`
	ConsecutiveDays int      `json:"consecutive_days,omitempty"`
	CreatedAt       int64    `json:"created_at"`
}

type Debt struct {
	FromUser         string   `json:"from_user"`
	ToUser           string   `json:"to_user"`
	Amount           float64  `json:"amount"`
	Currency         string   `json:"currency"`
	Description      string   `json:"description"`
	SourceExpenseID  string   `json:"source_expense_id"`
	SourceExpenseIDs []string `json:"source_expense_ids"`
}

type Balance struct {
	UserID  string  `json:"user_id"`
	Paid    float64 `json:"paid"`
	Owed    float64 `json:"owed"`
	Balance float64 `json:"balance"`
}

type SettledDebt struct {
	ID string `json:"id"`
	Debt
	Settled   bool  `json:"settled"`
	SettledAt int64 `json:"settled_at"`
	CreatedAt int64 `json:"created_at"`
}

type SkippedExpense struct {
	ExpenseID string `json:"expense_id"`
	Reason    string `json:"reason"`
	Error     string `json:"error"`
}

// TripView is the live debt state of a trip.
type TripView struct {
	TripID       string           `json:"trip_id"`
	HomeCurrency string           `json:"home_currency"`
	Debts        []Debt           `json:"debts"`
	Balances     []Balance        `json:"balances"`
	History      []SettledDebt    `json:"history"`
	Skipped      []SkippedExpense `json:"skipped,omitempty"`
}

type CreateTripRequest struct {
	Name         string `json:"name"`
	HomeCurrency string `json:"home_currency"`
}

type CreateTripResponse struct {
	Trip Trip `json:"trip"`
}

type ListTripsResponse struct {
	Trips []Trip `json:"trips"`
}

type AddTripmateRequest struct {
	TripID string `json:"trip_id"`
	Email  string `json:"email"`
}

type AddTripmateResponse struct {
	Tripmate Tripmate `json:"tripmate"`
}

type ListTripmatesRequest struct {
	TripID string `json:"trip_id"`
}

type ListTripmatesResponse struct {
	Tripmates []Tripmate `json:"tripmates"`
}

type AddExpenseRequest struct {
	TripID   string  `json:"trip_id"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	// PaidBy is the payer's email. Defaults to the caller.
	PaidBy          string   `json:"paid_by"`
	SplitMethod     string   `json:"split_method"`
	SplitWith       []string `json:"split_with"`
	Description     string   `json:"description"`
	Type            string   `json:"type"`
	ExpenseDate     int64    `json:"expense_date"`
	ConsecutiveDays int      `json:"consecutive_days"`
}

type AddExpenseResponse struct {
	Expense Expense  `json:"expense"`
	View    TripView `json:"view"`
}

type DeleteExpenseRequest struct {
	TripID    string `json:"trip_id"`
	ExpenseID string `json:"expense_id"`
}

type ListExpensesRequest struct {
	TripID string `json:"trip_id"`
}

type ListExpensesResponse struct {
	Expenses []Expense `json:"expenses"`
}

type GetDebtsRequest struct {
	TripID string `json:"trip_id"`
}

type SettleUpRequest struct {
	TripID string `json:"trip_id"`
}

type SettleUpResponse struct {
	Settled []SettledDebt `json:"settled"`
	View    TripView      `json:"view"`
}

type GetHistoryRequest struct {
	TripID string `json:"trip_id"`
}

type GetHistoryResponse struct {
	History []SettledDebt `json:"history"`
}

type SetHomeCurrencyRequest struct {
	TripID       string `json:"trip_id"`
	HomeCurrency string `json:"home_currency"`
}

type CloseSessionRequest struct {
	TripID string `json:"trip_id"`
}

type RegisterRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by Register and Login.
type AuthResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

type GetCurrentUserResponse struct {
	User User `json:"user"`
}

func toUser(u *models.User) User {
	return User{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName, CreatedAt: u.CreatedAt}
}

func toTrip(t *models.Trip) Trip {
	return Trip{
		ID:           t.ID,
		Name:         t.Name,
		HomeCurrency: t.HomeCurrency,
		CreatedBy:    t.CreatedBy,
		CreatedAt:    t.CreatedAt,
	}
}

func toTripmate(p models.Participant) Tripmate {
	return Tripmate{UserID: p.UserID, Email: p.Email, DisplayName: p.DisplayName}
}

func toExpense(e *models.Expense) Expense {
	return Expense{
		ID:              e.ID,
		TripID:          e.TripID,
		Amount:          e.Amount,
		Currency:        e.Currency,
		PaidBy:          e.PaidBy,
		SplitMethod:     string(e.SplitMethod),
		SplitWith:       e.SplitWith,
		Description:     e.Description,
		Type:            e.Type,
		ExpenseDate:     e.ExpenseDate,
		ConsecutiveDays: e.ConsecutiveDays,
		CreatedAt:       e.CreatedAt,
	}
}

func toDebt(d models.Debt) Debt {
	return Debt{
		FromUser:         d.FromUser,
		ToUser:           d.ToUser,
		Amount:           d.Amount,
		Currency:         d.Currency,
		Description:      d.Description,
		SourceExpenseID:  d.SourceExpenseID,
		SourceExpenseIDs: d.Sources(),
	}
}

func toSettledDebts(history []models.SettledDebt) []SettledDebt {
	out := make([]SettledDebt, len(history))
	for i, d := range history {
		out[i] = SettledDebt{
			ID:        d.ID,
			Debt:      toDebt(d.Debt),
			Settled:   d.Settled,
			SettledAt: d.SettledAt,
			CreatedAt: d.CreatedAt,
		}
	}
	return out
}

// toTripView flattens a session view. Balances are ordered by participant
// key so responses are stable.
func toTripView(v session.View) TripView {
	out := TripView{
		TripID:       v.TripID,
		HomeCurrency: v.HomeCurrency,
		Debts:        make([]Debt, len(v.Debts)),
		Balances:     make([]Balance, 0, len(v.Balances)),
		History:      toSettledDebts(v.History),
	}
	for i, d := range v.Debts {
		out.Debts[i] = toDebt(d)
	}
	for _, key := range sortedKeys(v.Balances) {
		b := v.Balances[key]
		out.Balances = append(out.Balances, Balance{UserID: key, Paid: b.Paid, Owed: b.Owed, Balance: b.Balance})
	}
	for _, s := range v.Skipped {
		out.Skipped = append(out.Skipped, toSkipped(s))
	}
	return out
}

func toSkipped(s calculator.SkippedExpense) SkippedExpense {
	out := SkippedExpense{ExpenseID: s.ExpenseID, Reason: string(s.Reason)}
	if s.Err != nil {
		out.Error = s.Err.Error()
	}
	return out
}
