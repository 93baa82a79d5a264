package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PenaltyApplied describes one compounded borrowing.
type PenaltyApplied struct {
	BorrowingID    int64           `json:"borrowing_id"`
	PersonID       int64           `json:"person_id"`
	Pool           PoolType        `json:"pool_type"`
	Periods        int             `json:"periods"`
	Previous       decimal.Decimal `json:"previous_outstanding"`
	NewOutstanding decimal.Decimal `json:"new_outstanding"`
	Delta          decimal.Decimal `json:"delta"`
}

// PenaltyResult summarizes a sweep.
type PenaltyResult struct {
	Checked   int              `json:"checked"`
	Penalized int              `json:"penalized"`
	Applied   []PenaltyApplied `json:"applied"`
}

// RunPenalties compounds overdue OPEN borrowings by whole elapsed periods.
// Periods are counted from the later of the due date and the last penalty,
// so a second run inside the same period applies nothing.
func (e *Engine) RunPenalties(ctx context.Context) (*PenaltyResult, error) {
	res := &PenaltyResult{}
	err := e.update(ctx, "run_penalties", func(o *op) error {
		tx := o.tx
		*res = PenaltyResult{Applied: []PenaltyApplied{}}

		open, err := tx.ListOpenBorrowings(ctx, 0)
		if err != nil {
			return err
		}
		for _, candidate := range open {
			res.Checked++
			b, err := tx.LockBorrowing(ctx, candidate.ID)
			if err != nil {
				return err
			}
			if b.Status != StatusOpen {
				continue
			}
			periods := e.fullPeriods(b, o.at)
			if periods == 0 {
				continue
			}

			previous := b.Outstanding
			b.Outstanding = e.policy.Compound(previous, periods)
			at := o.at
			b.LastPenaltyAppliedAt = &at
			if err := tx.UpdateBorrowing(ctx, b); err != nil {
				return err
			}

			applied := PenaltyApplied{
				BorrowingID:    b.ID,
				PersonID:       b.PersonID,
				Pool:           b.Pool,
				Periods:        periods,
				Previous:       previous,
				NewOutstanding: b.Outstanding,
				Delta:          b.Outstanding.Sub(previous),
			}
			err = e.appendLog(ctx, o, &LogEntry{
				PersonID:          personRef(b.PersonID),
				Type:              LogPenalty,
				Amount:            applied.Delta,
				MainPoolDelta:     decimal.Zero,
				ValidityPoolDelta: decimal.Zero,
			}, map[string]interface{}{
				"borrowing_id":         b.ID,
				"pool_type":            b.Pool,
				"periods":              periods,
				"previous_outstanding": formatAmount(previous),
				"new_outstanding":      formatAmount(b.Outstanding),
				"delta":                formatAmount(applied.Delta),
			}, nil)
			if err != nil {
				return err
			}

			res.Penalized++
			res.Applied = append(res.Applied, applied)
			o.changed(personRef(b.PersonID), ChangePenalty)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// fullPeriods counts whole pool periods elapsed past the penalty anchor.
func (e *Engine) fullPeriods(b *Borrowing, now time.Time) int {
	if !now.After(b.DueDate) {
		return 0
	}
	anchor := b.DueDate
	if b.LastPenaltyAppliedAt != nil && b.LastPenaltyAppliedAt.After(anchor) {
		anchor = *b.LastPenaltyAppliedAt
	}
	days := int(now.Sub(anchor) / (24 * time.Hour))
	if days <= 0 {
		return 0
	}
	return days / e.policy.PeriodDays(b.Pool)
}

// RunPenaltyWorker runs the sweep every interval until ctx is done.
func (e *Engine) RunPenaltyWorker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.logger.Info("penalty worker started", "interval", interval.String())
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("penalty worker stopped")
			return
		case <-ticker.C:
			res, err := e.RunPenalties(ctx)
			if err != nil {
				e.logger.Error("penalty sweep failed", "error", err)
				continue
			}
			if res.Penalized > 0 {
				e.logger.Info("penalty sweep applied", "checked", res.Checked, "penalized", res.Penalized)
			}
		}
	}
}
