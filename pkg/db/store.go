package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shunichi-ikebuchi/savings-club/pkg/ledger"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = ledger.ErrRecordNotFound

	// ErrLockOrder is returned when a transaction acquires row locks out of
	// the documented order.
	ErrLockOrder = errors.New("lock acquired out of order")
)

// Lock ranks. A transaction may only acquire locks of equal or higher rank
// than the last one it took.
const (
	rankNone = iota
	rankPerson
	rankPersonalBalance
	rankPool
	rankBorrowing
	rankDailySummary
)

var rankNames = map[int]string{
	rankNone:            "none",
	rankPerson:          "person",
	rankPersonalBalance: "personal_balance",
	rankPool:            "group_pool",
	rankBorrowing:       "borrowing",
	rankDailySummary:    "daily_summary",
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02 15:04:05.000000000"

// Store implements ledger.Store on a SQLite connection.
type Store struct {
	conn *Connection
}

// NewStore creates a new Store instance.
func NewStore(conn *Connection) *Store {
	return &Store{conn: conn}
}

// Transaction runs fn in one BEGIN IMMEDIATE transaction. SQLite has no
// row locks; the database write lock held for the whole transaction gives
// every Lock* call pessimistic semantics.
func (s *Store) Transaction(ctx context.Context, fn func(ledger.Tx) error) error {
	return s.conn.Transaction(ctx, func(sqlTx *sql.Tx) error {
		return fn(&tx{tx: sqlTx})
	})
}

type tx struct {
	tx         *sql.Tx
	rank       int
	savepoints int
}

func (t *tx) acquire(rank int) error {
	if rank < t.rank {
		return fmt.Errorf("%w: %s after %s", ErrLockOrder, rankNames[rank], rankNames[t.rank])
	}
	t.rank = rank
	return nil
}

// Recover runs fn inside a SAVEPOINT.
func (t *tx) Recover(ctx context.Context, name string, fn func() error) error {
	t.savepoints++
	sp := fmt.Sprintf("sp_%d", t.savepoints)
	if _, err := t.tx.ExecContext(ctx, "SAVEPOINT "+sp); err != nil {
		return fmt.Errorf("failed to open savepoint for %s: %w", name, err)
	}

	if err := fn(); err != nil {
		if _, rbErr := t.tx.ExecContext(ctx, "ROLLBACK TO "+sp); rbErr != nil {
			return fmt.Errorf("%s: %v, rollback to savepoint: %w", name, err, rbErr)
		}
		if _, relErr := t.tx.ExecContext(ctx, "RELEASE "+sp); relErr != nil {
			return fmt.Errorf("%s: %v, release savepoint: %w", name, err, relErr)
		}
		return err
	}

	if _, err := t.tx.ExecContext(ctx, "RELEASE "+sp); err != nil {
		return fmt.Errorf("failed to release savepoint for %s: %w", name, err)
	}
	return nil
}

// memberTables lists the tables keyed by person_id that may be cleaned up.
var memberTables = map[string]bool{
	"transaction_log":  true,
	"payment":          true,
	"borrowing":        true,
	"daily_summary":    true,
	"personal_balance": true,
}

// DeleteMemberRows deletes a person's rows from one dependent table.
func (t *tx) DeleteMemberRows(ctx context.Context, table string, personID int64) (int64, error) {
	if !memberTables[table] {
		return 0, fmt.Errorf("table %q is not a member table", table)
	}
	result, err := t.tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE person_id = ?", personID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}

var resettableTables = map[string]bool{
	"transaction_log": true,
	"borrowing":       true,
	"payment":         true,
	"daily_summary":   true,
}

// ClearTable deletes every row of a resettable table.
func (t *tx) ClearTable(ctx context.Context, table string) error {
	if !resettableTables[table] {
		return fmt.Errorf("table %q cannot be cleared", table)
	}
	if _, err := t.tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}
	return nil
}

// ZeroBalances zeroes every personal balance and both group pools.
func (t *tx) ZeroBalances(ctx context.Context) error {
	if _, err := t.tx.ExecContext(ctx, `
		UPDATE personal_balance
		SET main_savings_balance = '0.00', validity_savings_balance = '0.00'
	`); err != nil {
		return fmt.Errorf("failed to zero personal balances: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, `UPDATE group_pool SET balance = '0.00'`); err != nil {
		return fmt.Errorf("failed to zero group pools: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func nullInt(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
