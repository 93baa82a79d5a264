package db

import (
	"context"
	"fmt"

	"github.com/shunichi-ikebuchi/savings-club/pkg/ledger"
)

// CountPayments counts a person's payments of one type.
func (t *tx) CountPayments(ctx context.Context, personID int64, pt ledger.PaymentType) (int, error) {
	var count int
	err := t.tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM payment WHERE person_id = ? AND type = ?
	`, personID, string(pt)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count payments: %w", err)
	}
	return count, nil
}

// InsertPayment appends a payment record.
func (t *tx) InsertPayment(ctx context.Context, p *ledger.Payment) error {
	var effective interface{}
	if p.EffectiveDate != "" {
		effective = p.EffectiveDate
	}
	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO payment (person_id, type, amount, effective_date, borrowing_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.PersonID, string(p.Type), money(p.Amount), effective, nullInt(p.BorrowingID), formatTime(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get payment id: %w", err)
	}
	p.ID = id
	return nil
}

// LockDailySummary creates the (person, date) summary if absent and locks it.
func (t *tx) LockDailySummary(ctx context.Context, personID int64, date string) (*ledger.DailySummary, error) {
	if err := t.acquire(rankDailySummary); err != nil {
		return nil, err
	}
	if _, err := t.tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO daily_summary (person_id, date, validity_paid, units_count, fine_amount)
		VALUES (?, ?, 0, 0, '0.00')
	`, personID, date); err != nil {
		return nil, fmt.Errorf("failed to create daily summary: %w", err)
	}

	s := ledger.DailySummary{PersonID: personID, Date: date}
	err := t.tx.QueryRowContext(ctx, `
		SELECT validity_paid, units_count, fine_amount
		FROM daily_summary
		WHERE person_id = ? AND date = ?
	`, personID, date).Scan(&s.ValidityPaid, &s.UnitsCount, &s.FineAmount)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily summary: %w", err)
	}
	return &s, nil
}

// UpdateDailySummary writes a daily summary.
func (t *tx) UpdateDailySummary(ctx context.Context, s *ledger.DailySummary) error {
	if s.UnitsCount < 0 || s.UnitsCount > ledger.MaxDailyUnits {
		return fmt.Errorf("daily summary units %d out of range", s.UnitsCount)
	}
	_, err := t.tx.ExecContext(ctx, `
		UPDATE daily_summary
		SET validity_paid = ?, units_count = ?, fine_amount = ?
		WHERE person_id = ? AND date = ?
	`, s.ValidityPaid, s.UnitsCount, money(s.FineAmount), s.PersonID, s.Date)
	if err != nil {
		return fmt.Errorf("failed to update daily summary: %w", err)
	}
	return nil
}

// TotalUnits sums units across all daily summaries.
func (t *tx) TotalUnits(ctx context.Context) (int64, error) {
	var total int64
	err := t.tx.QueryRowContext(ctx, `SELECT COALESCE(SUM(units_count), 0) FROM daily_summary`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum units: %w", err)
	}
	return total, nil
}
