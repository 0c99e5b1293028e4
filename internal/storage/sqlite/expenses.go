package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/tripsplit/internal/models"
)

// CreateExpense persists a new expense and its split targets in one transaction.
func (s *SQLiteStore) CreateExpense(ctx context.Context, expense *models.Expense) error {
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO expenses (id, trip_id, amount, currency, paid_by, split_method, description, type, expense_date, consecutive_days, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		expense.ID, expense.TripID, expense.Amount, expense.Currency, expense.PaidBy,
		string(expense.SplitMethod), expense.Description, expense.Type,
		expense.ExpenseDate, expense.ConsecutiveDays, expense.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	for i, email := range expense.SplitWith {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO expense_split_with (expense_id, position, email) VALUES (?, ?, ?)
			 ON CONFLICT (expense_id, email) DO NOTHING`,
			expense.ID, i, models.NormalizeEmail(email),
		)
		if err != nil {
			return fmt.Errorf("failed to insert split target: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteExpense removes an expense from a trip.
func (s *SQLiteStore) DeleteExpense(ctx context.Context, tripID, expenseID string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM expenses WHERE id = ? AND trip_id = ?",
		expenseID, tripID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	return expectRow(res, "expense", expenseID)
}

// ListExpenses returns the trip's expenses ordered by expense date, then creation.
func (s *SQLiteStore) ListExpenses(ctx context.Context, tripID string) ([]models.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, trip_id, amount, currency, paid_by, split_method, description, type, expense_date, consecutive_days, created_at
		 FROM expenses WHERE trip_id = ? ORDER BY expense_date, created_at, id`,
		tripID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}

	var expenses []models.Expense
	index := make(map[string]int)
	for rows.Next() {
		var e models.Expense
		var method string
		if err := rows.Scan(&e.ID, &e.TripID, &e.Amount, &e.Currency, &e.PaidBy, &method,
			&e.Description, &e.Type, &e.ExpenseDate, &e.ConsecutiveDays, &e.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		e.SplitMethod = models.SplitMethod(method)
		index[e.ID] = len(expenses)
		expenses = append(expenses, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}

	// Split targets are read after the expense rows are closed; the store
	// runs on a single connection.
	splitRows, err := s.db.QueryContext(ctx,
		`SELECT w.expense_id, w.email FROM expense_split_with w
		 JOIN expenses e ON e.id = w.expense_id
		 WHERE e.trip_id = ? ORDER BY w.expense_id, w.position`,
		tripID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get split targets: %w", err)
	}
	defer splitRows.Close()

	for splitRows.Next() {
		var expenseID, email string
		if err := splitRows.Scan(&expenseID, &email); err != nil {
			return nil, fmt.Errorf("failed to scan split target: %w", err)
		}
		if i, ok := index[expenseID]; ok {
			expenses[i].SplitWith = append(expenses[i].SplitWith, email)
		}
	}
	if err := splitRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate split targets: %w", err)
	}

	return expenses, nil
}
