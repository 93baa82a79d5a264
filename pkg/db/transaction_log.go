package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/savings-club/pkg/ledger"
)

const logColumns = `
	id, person_id, transaction_type, details, amount, main_savings_after,
	validity_savings_after, main_pool_after, validity_pool_after, main_pool_delta,
	validity_pool_delta, reference, created_at`

// AppendLog inserts an immutable log entry and sets its ID.
func (t *tx) AppendLog(ctx context.Context, e *ledger.LogEntry) error {
	var mainAfter, validityAfter interface{}
	if e.MainSavingsAfter != nil {
		mainAfter = money(*e.MainSavingsAfter)
	}
	if e.ValiditySavingsAfter != nil {
		validityAfter = money(*e.ValiditySavingsAfter)
	}

	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO transaction_log (
			person_id, transaction_type, details, amount, main_savings_after,
			validity_savings_after, main_pool_after, validity_pool_after, main_pool_delta,
			validity_pool_delta, reference, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		nullInt(e.PersonID),
		string(e.Type),
		string(e.Details),
		money(e.Amount),
		mainAfter,
		validityAfter,
		money(e.MainPoolAfter),
		money(e.ValidityPoolAfter),
		money(e.MainPoolDelta),
		money(e.ValidityPoolDelta),
		e.Reference,
		formatTime(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to append transaction log: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get log id: %w", err)
	}
	e.ID = id
	return nil
}

// ListLog lists log entries newest first.
func (t *tx) ListLog(ctx context.Context, f ledger.HistoryFilter) ([]ledger.LogEntry, error) {
	var where []string
	var args []interface{}

	if f.PersonID != nil {
		where = append(where, "person_id = ?")
		args = append(args, *f.PersonID)
	}
	if len(f.Types) > 0 {
		placeholders := make([]string, len(f.Types))
		for i, lt := range f.Types {
			placeholders[i] = "?"
			args = append(args, string(lt))
		}
		where = append(where, "transaction_type IN ("+strings.Join(placeholders, ", ")+")")
	}
	if !f.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, formatTime(f.Since))
	}
	if !f.Until.IsZero() {
		where = append(where, "created_at < ?")
		args = append(args, formatTime(f.Until))
	}

	query := `SELECT ` + logColumns + ` FROM transaction_log`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transaction log: %w", err)
	}
	defer rows.Close()

	entries := []ledger.LogEntry{}
	for rows.Next() {
		e, err := scanLogEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func scanLogEntry(row rowScanner) (*ledger.LogEntry, error) {
	var e ledger.LogEntry
	var personID sql.NullInt64
	var logType, details string
	var mainAfter, validityAfter decimal.NullDecimal

	if err := row.Scan(
		&e.ID,
		&personID,
		&logType,
		&details,
		&e.Amount,
		&mainAfter,
		&validityAfter,
		&e.MainPoolAfter,
		&e.ValidityPoolAfter,
		&e.MainPoolDelta,
		&e.ValidityPoolDelta,
		&e.Reference,
		&e.CreatedAt,
	); err != nil {
		return nil, err
	}

	if personID.Valid {
		id := personID.Int64
		e.PersonID = &id
	}
	if mainAfter.Valid {
		e.MainSavingsAfter = &mainAfter.Decimal
	}
	if validityAfter.Valid {
		e.ValiditySavingsAfter = &validityAfter.Decimal
	}
	e.Type = ledger.LogType(logType)
	e.Details = []byte(details)
	e.CreatedAt = e.CreatedAt.UTC()
	return &e, nil
}

// PoolDeltas sums the recorded pool deltas. Decimal strings are added in Go
// because SQLite would sum them as floating point.
func (t *tx) PoolDeltas(ctx context.Context, personID *int64) (ledger.Pools, error) {
	pools := ledger.Pools{Main: decimal.Zero, Validity: decimal.Zero}

	query := `SELECT main_pool_delta, validity_pool_delta FROM transaction_log`
	var args []interface{}
	if personID != nil {
		query += ` WHERE person_id = ?`
		args = append(args, *personID)
	}

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return pools, fmt.Errorf("failed to read pool deltas: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var mainDelta, validityDelta decimal.Decimal
		if err := rows.Scan(&mainDelta, &validityDelta); err != nil {
			return pools, fmt.Errorf("failed to scan pool deltas: %w", err)
		}
		pools.Main = pools.Main.Add(mainDelta)
		pools.Validity = pools.Validity.Add(validityDelta)
	}
	if err := rows.Err(); err != nil {
		return pools, fmt.Errorf("failed to read pool deltas: %w", err)
	}
	return pools, nil
}
