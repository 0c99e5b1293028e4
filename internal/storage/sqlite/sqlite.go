// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mmynk/tripsplit/internal/models"
	"github.com/mmynk/tripsplit/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// PRAGMAs are per connection; one connection keeps them in effect and
	// serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateTrip persists a new trip.
func (s *SQLiteStore) CreateTrip(ctx context.Context, trip *models.Trip) error {
	if trip.ID == "" {
		trip.ID = uuid.New().String()
	}
	if trip.CreatedAt == 0 {
		trip.CreatedAt = time.Now().Unix()
	}
	if trip.Name == "" {
		trip.Name = fmt.Sprintf("Trip - %s", time.Unix(trip.CreatedAt, 0).Format("Jan 2, 2006"))
	}
	trip.HomeCurrency = models.NormalizeCurrency(trip.HomeCurrency)

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO trips (id, name, home_currency, created_by, created_at) VALUES (?, ?, ?, ?, ?)",
		trip.ID, trip.Name, trip.HomeCurrency, trip.CreatedBy, trip.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert trip: %w", err)
	}
	return nil
}

// GetTrip retrieves a trip by ID.
func (s *SQLiteStore) GetTrip(ctx context.Context, tripID string) (*models.Trip, error) {
	trip := &models.Trip{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, home_currency, created_by, created_at FROM trips WHERE id = ?",
		tripID,
	).Scan(&trip.ID, &trip.Name, &trip.HomeCurrency, &trip.CreatedBy, &trip.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("trip %s: %w", tripID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}
	return trip, nil
}

// ListTripsForUser returns the trips the user belongs to, newest first.
func (s *SQLiteStore) ListTripsForUser(ctx context.Context, userID string) ([]*models.Trip, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.id, t.name, t.home_currency, t.created_by, t.created_at
		 FROM trips t JOIN tripmates m ON m.trip_id = t.id
		 WHERE m.user_id = ? ORDER BY t.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list trips: %w", err)
	}
	defer rows.Close()

	var trips []*models.Trip
	for rows.Next() {
		trip := &models.Trip{}
		if err := rows.Scan(&trip.ID, &trip.Name, &trip.HomeCurrency, &trip.CreatedBy, &trip.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trip: %w", err)
		}
		trips = append(trips, trip)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trips: %w", err)
	}
	return trips, nil
}

// UpdateHomeCurrency changes the trip's reporting currency.
func (s *SQLiteStore) UpdateHomeCurrency(ctx context.Context, tripID, code string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE trips SET home_currency = ? WHERE id = ?",
		models.NormalizeCurrency(code), tripID,
	)
	if err != nil {
		return fmt.Errorf("failed to update home currency: %w", err)
	}
	return expectRow(res, "trip", tripID)
}

// AddTripmate adds a participant to the trip.
func (s *SQLiteStore) AddTripmate(ctx context.Context, tripID string, p models.Participant) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tripmates (trip_id, email, user_id, display_name, joined_at)
		 VALUES (?, ?, ?, ?, ?) ON CONFLICT (trip_id, email) DO NOTHING`,
		tripID, models.NormalizeEmail(p.Email), p.UserID, p.DisplayName, time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to add tripmate: %w", err)
	}
	return nil
}

// ListTripmates returns the trip's participants in the order they joined.
func (s *SQLiteStore) ListTripmates(ctx context.Context, tripID string) ([]models.Participant, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id, email, display_name FROM tripmates WHERE trip_id = ? ORDER BY joined_at, email",
		tripID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tripmates: %w", err)
	}
	defer rows.Close()

	var mates []models.Participant
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.UserID, &p.Email, &p.DisplayName); err != nil {
			return nil, fmt.Errorf("failed to scan tripmate: %w", err)
		}
		mates = append(mates, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tripmates: %w", err)
	}
	return mates, nil
}

// expectRow turns a zero-row update or delete into storage.ErrNotFound.
func expectRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
	}
	return nil
}
