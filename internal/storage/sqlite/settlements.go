package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/tripsplit/internal/models"
)

// SaveSettledDebts persists a settlement batch. Either every record and its
// sources are written or, on any error, none are.
func (s *SQLiteStore) SaveSettledDebts(ctx context.Context, tripID string, debts []models.SettledDebt) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UnixMilli()
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

		_, err = tx.ExecContext(ctx,
			`INSERT INTO settled_debts (id, trip_id, from_user, to_user, amount, currency, description, source_expense_id, settled, settled_at, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID, tripID, d.FromUser, d.ToUser, d.Amount, d.Currency, d.Description,
			d.SourceExpenseID, d.Settled, d.SettledAt, d.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert settled debt: %w", err)
		}

		for pos, expenseID := range d.Sources() {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO settled_debt_sources (settled_debt_id, position, expense_id) VALUES (?, ?, ?)
				 ON CONFLICT (settled_debt_id, expense_id) DO NOTHING`,
				d.ID, pos, expenseID,
			)
			if err != nil {
				return fmt.Errorf("failed to insert settled debt source: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListSettledDebts returns the trip's settled debts, most recent first.
func (s *SQLiteStore) ListSettledDebts(ctx context.Context, tripID string) ([]models.SettledDebt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, trip_id, from_user, to_user, amount, currency, description, source_expense_id, settled, settled_at, created_at
		 FROM settled_debts WHERE trip_id = ? AND settled = 1
		 ORDER BY settled_at DESC, created_at DESC, rowid DESC`,
		tripID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list settled debts: %w", err)
	}

	var history []models.SettledDebt
	index := make(map[string]int)
	for rows.Next() {
		var d models.SettledDebt
		if err := rows.Scan(&d.ID, &d.TripID, &d.FromUser, &d.ToUser, &d.Amount, &d.Currency,
			&d.Description, &d.SourceExpenseID, &d.Settled, &d.SettledAt, &d.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan settled debt: %w", err)
		}
		index[d.ID] = len(history)
		history = append(history, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settled debts: %w", err)
	}

	srcRows, err := s.db.QueryContext(ctx,
		`SELECT s.settled_debt_id, s.expense_id FROM settled_debt_sources s
		 JOIN settled_debts d ON d.id = s.settled_debt_id
		 WHERE d.trip_id = ? ORDER BY s.settled_debt_id, s.position`,
		tripID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get settled debt sources: %w", err)
	}
	defer srcRows.Close()

	for srcRows.Next() {
		var debtID, expenseID string
		if err := srcRows.Scan(&debtID, &expenseID); err != nil {
			return nil, fmt.Errorf("failed to scan settled debt source: %w", err)
		}
		if i, ok := index[debtID]; ok {
			history[i].SourceExpenseIDs = append(history[i].SourceExpenseIDs, expenseID)
		}
	}
	if err := srcRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settled debt sources: %w", err)
	}

	return history, nil
}
