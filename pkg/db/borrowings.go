package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shunichi-ikebuchi/savings-club/pkg/ledger"
)

const borrowingColumns = `
	id, person_id, pool_type, principal, initial_profit_amount, outstanding_amount,
	status, due_date, last_payment_at, last_penalty_applied_at, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBorrowing(row rowScanner) (*ledger.Borrowing, error) {
	var b ledger.Borrowing
	var pool, status string
	var lastPayment, lastPenalty sql.NullTime

	if err := row.Scan(
		&b.ID,
		&b.PersonID,
		&pool,
		&b.Principal,
		&b.InitialProfit,
		&b.Outstanding,
		&status,
		&b.DueDate,
		&lastPayment,
		&lastPenalty,
		&b.CreatedAt,
	); err != nil {
		return nil, err
	}

	b.Pool = ledger.PoolType(pool)
	b.Status = ledger.BorrowingStatus(status)
	b.DueDate = b.DueDate.UTC()
	b.CreatedAt = b.CreatedAt.UTC()
	b.LastPaymentAt = timePtr(lastPayment)
	b.LastPenaltyAppliedAt = timePtr(lastPenalty)
	return &b, nil
}

// GetBorrowing retrieves a borrowing without taking a lock.
func (t *tx) GetBorrowing(ctx context.Context, id int64) (*ledger.Borrowing, error) {
	b, err := scanBorrowing(t.tx.QueryRowContext(ctx,
		`SELECT `+borrowingColumns+` FROM borrowing WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("borrowing %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get borrowing: %w", err)
	}
	return b, nil
}

// LockBorrowing retrieves a borrowing under the lock.
func (t *tx) LockBorrowing(ctx context.Context, id int64) (*ledger.Borrowing, error) {
	if err := t.acquire(rankBorrowing); err != nil {
		return nil, err
	}
	return t.GetBorrowing(ctx, id)
}

// FindOpenBorrowing returns the person's OPEN borrowing in pool, or nil.
func (t *tx) FindOpenBorrowing(ctx context.Context, personID int64, pool ledger.PoolType) (*ledger.Borrowing, error) {
	b, err := scanBorrowing(t.tx.QueryRowContext(ctx, `
		SELECT `+borrowingColumns+`
		FROM borrowing
		WHERE person_id = ? AND pool_type = ? AND status = 'OPEN'
		ORDER BY id
		LIMIT 1
	`, personID, string(pool)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find open borrowing: %w", err)
	}
	return b, nil
}

// ListOpenBorrowings lists OPEN borrowings ordered by ID. A zero personID
// lists every member's.
func (t *tx) ListOpenBorrowings(ctx context.Context, personID int64) ([]ledger.Borrowing, error) {
	query := `SELECT ` + borrowingColumns + ` FROM borrowing WHERE status = 'OPEN'`
	var args []interface{}
	if personID != 0 {
		query += ` AND person_id = ?`
		args = append(args, personID)
	}
	query += ` ORDER BY id`

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list open borrowings: %w", err)
	}
	defer rows.Close()

	borrowings := []ledger.Borrowing{}
	for rows.Next() {
		b, err := scanBorrowing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan borrowing: %w", err)
		}
		borrowings = append(borrowings, *b)
	}
	return borrowings, rows.Err()
}

// InsertBorrowing creates a borrowing and sets its ID.
func (t *tx) InsertBorrowing(ctx context.Context, b *ledger.Borrowing) error {
	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO borrowing (
			person_id, pool_type, principal, initial_profit_amount, outstanding_amount,
			status, due_date, last_payment_at, last_penalty_applied_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		b.PersonID,
		string(b.Pool),
		money(b.Principal),
		money(b.InitialProfit),
		money(b.Outstanding),
		string(b.Status),
		formatTime(b.DueDate),
		nullTime(b.LastPaymentAt),
		nullTime(b.LastPenaltyAppliedAt),
		formatTime(b.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert borrowing: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get borrowing id: %w", err)
	}
	b.ID = id
	return nil
}

// UpdateBorrowing writes the mutable borrowing fields. A PAID borrowing is
// never reopened.
func (t *tx) UpdateBorrowing(ctx context.Context, b *ledger.Borrowing) error {
	if b.Outstanding.IsNegative() {
		return fmt.Errorf("borrowing %d outstanding would become negative", b.ID)
	}
	result, err := t.tx.ExecContext(ctx, `
		UPDATE borrowing
		SET outstanding_amount = ?, status = ?, last_payment_at = ?, last_penalty_applied_at = ?
		WHERE id = ? AND status = 'OPEN'
	`,
		money(b.Outstanding),
		string(b.Status),
		nullTime(b.LastPaymentAt),
		nullTime(b.LastPenaltyAppliedAt),
		b.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update borrowing: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows != 1 {
		return fmt.Errorf("borrowing %d is not open", b.ID)
	}
	return nil
}
