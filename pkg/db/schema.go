// Package db provides the SQLite balance store for the savings club ledger.
package db

// Schema defines the SQL statements to create database tables.
// Money columns hold decimal strings with two fractional digits.
const Schema = `
-- Members
CREATE TABLE IF NOT EXISTS person (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

-- One row per member, created lazily on first save
CREATE TABLE IF NOT EXISTS personal_balance (
    person_id INTEGER PRIMARY KEY REFERENCES person(id),
    main_savings_balance TEXT NOT NULL DEFAULT '0.00',
    validity_savings_balance TEXT NOT NULL DEFAULT '0.00'
);

-- Exactly two singleton rows, seeded below
CREATE TABLE IF NOT EXISTS group_pool (
    pool_type TEXT PRIMARY KEY CHECK (pool_type IN ('MAIN', 'VALIDITY')),
    balance TEXT NOT NULL DEFAULT '0.00'
);

INSERT OR IGNORE INTO group_pool (pool_type, balance) VALUES ('MAIN', '0.00');
INSERT OR IGNORE INTO group_pool (pool_type, balance) VALUES ('VALIDITY', '0.00');

CREATE TABLE IF NOT EXISTS borrowing (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    person_id INTEGER NOT NULL REFERENCES person(id),
    pool_type TEXT NOT NULL CHECK (pool_type IN ('MAIN', 'VALIDITY')),
    principal TEXT NOT NULL,
    initial_profit_amount TEXT NOT NULL,
    outstanding_amount TEXT NOT NULL,
    status TEXT NOT NULL CHECK (status IN ('OPEN', 'PAID')),
    due_date TIMESTAMP NOT NULL,
    last_payment_at TIMESTAMP,
    last_penalty_applied_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_borrowing_person_pool_status
    ON borrowing(person_id, pool_type, status);

CREATE INDEX IF NOT EXISTS idx_borrowing_status
    ON borrowing(status);

-- Append-only record of funds moved for a member
CREATE TABLE IF NOT EXISTS payment (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    person_id INTEGER NOT NULL REFERENCES person(id),
    type TEXT NOT NULL CHECK (type IN ('UNIT', 'VALIDITY', 'FINE', 'DEBT_PAYMENT')),
    amount TEXT NOT NULL,
    effective_date TEXT,               -- YYYY-MM-DD
    borrowing_id INTEGER,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_payment_person_type
    ON payment(person_id, type);

CREATE TABLE IF NOT EXISTS daily_summary (
    person_id INTEGER NOT NULL REFERENCES person(id),
    date TEXT NOT NULL,                -- YYYY-MM-DD
    validity_paid INTEGER NOT NULL DEFAULT 0,
    units_count INTEGER NOT NULL DEFAULT 0 CHECK (units_count BETWEEN 0 AND 4),
    fine_amount TEXT NOT NULL DEFAULT '0.00',
    PRIMARY KEY (person_id, date)
);

-- Point-in-time snapshots; person_id is NULL for system-wide entries
CREATE TABLE IF NOT EXISTS transaction_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    person_id INTEGER,
    transaction_type TEXT NOT NULL,
    details TEXT NOT NULL,
    amount TEXT NOT NULL,
    main_savings_after TEXT,
    validity_savings_after TEXT,
    main_pool_after TEXT NOT NULL,
    validity_pool_after TEXT NOT NULL,
    main_pool_delta TEXT NOT NULL DEFAULT '0.00',
    validity_pool_delta TEXT NOT NULL DEFAULT '0.00',
    reference TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transaction_log_person
    ON transaction_log(person_id, id);

CREATE INDEX IF NOT EXISTS idx_transaction_log_created
    ON transaction_log(created_at);

-- Export history table
-- Tracks which transaction log entries have been written to Beancount
CREATE TABLE IF NOT EXISTS export_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    log_id INTEGER NOT NULL UNIQUE,
    entry_date TEXT NOT NULL,          -- YYYY-MM-DD
    amount TEXT NOT NULL,
    beancount_file TEXT NOT NULL,
    exported_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Key-value metadata
CREATE TABLE IF NOT EXISTS club_metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

// InitializeSchema initializes the database schema.
// It creates all tables if they don't exist and seeds the group pools.
func InitializeSchema(conn *Connection) error {
	if _, err := conn.Exec(Schema); err != nil {
		return err
	}
	return nil
}
