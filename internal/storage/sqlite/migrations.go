package sqlite

import "database/sql"

// schema contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist.
// Parent tables are created before the tables that reference them.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    display_name TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS trips (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    home_currency TEXT NOT NULL,
    created_by TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS tripmates (
    trip_id TEXT NOT NULL,
    email TEXT NOT NULL,
    user_id TEXT NOT NULL,
    display_name TEXT NOT NULL,
    joined_at INTEGER NOT NULL,
    PRIMARY KEY (trip_id, email),
    FOREIGN KEY (trip_id) REFERENCES trips(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS expenses (
    id TEXT PRIMARY KEY,
    trip_id TEXT NOT NULL,
    amount REAL NOT NULL,
    currency TEXT NOT NULL,
    paid_by TEXT NOT NULL,
    split_method TEXT NOT NULL,
    description TEXT NOT NULL,
    type TEXT NOT NULL,
    expense_date INTEGER NOT NULL,
    consecutive_days INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (trip_id) REFERENCES trips(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS expense_split_with (
    expense_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    email TEXT NOT NULL,
    PRIMARY KEY (expense_id, email),
    FOREIGN KEY (expense_id) REFERENCES expenses(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS settled_debts (
    id TEXT PRIMARY KEY,
    trip_id TEXT NOT NULL,
    from_user TEXT NOT NULL,
    to_user TEXT NOT NULL,
    amount REAL NOT NULL,
    currency TEXT NOT NULL,
    description TEXT NOT NULL,
    source_expense_id TEXT NOT NULL,
    settled INTEGER NOT NULL,
    settled_at INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (trip_id) REFERENCES trips(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS settled_debt_sources (
    settled_debt_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    expense_id TEXT NOT NULL,
    PRIMARY KEY (settled_debt_id, expense_id),
    FOREIGN KEY (settled_debt_id) REFERENCES settled_debts(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_tripmates_user_id ON tripmates(user_id);
CREATE INDEX IF NOT EXISTS idx_expenses_trip_id ON expenses(trip_id);
CREATE INDEX IF NOT EXISTS idx_split_with_expense_id ON expense_split_with(expense_id);
CREATE INDEX IF NOT EXISTS idx_settled_debts_trip ON settled_debts(trip_id, settled, settled_at DESC, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_settled_debt_sources_debt ON settled_debt_sources(settled_debt_id);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
