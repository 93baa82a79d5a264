package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// BorrowRequest takes a debt against a group pool.
type BorrowRequest struct {
	PersonID int64
	Pool     PoolType
	Amount   decimal.Decimal
	// AdminOverride skips the eligibility checks but never the group fund
	// check. It requires a valid Credential.
	AdminOverride bool
	Credential    Credential
}

// BorrowResult describes a new OPEN borrowing.
type BorrowResult struct {
	BorrowingID int64           `json:"borrowing_id"`
	Pool        PoolType        `json:"pool_type"`
	Principal   decimal.Decimal `json:"principal"`
	Interest    decimal.Decimal `json:"interest"`
	Outstanding decimal.Decimal `json:"outstanding"`
	DueDate     time.Time       `json:"due_date"`
	PoolBalance decimal.Decimal `json:"pool_balance"`
}

// RepayRequest pays part or all of a borrowing.
type RepayRequest struct {
	PersonID    int64
	BorrowingID int64
	Amount      decimal.Decimal
}

// RepayResult reports the borrowing after a repayment.
type RepayResult struct {
	BorrowingID    int64           `json:"borrowing_id"`
	Paid           decimal.Decimal `json:"paid_amount"`
	NewOutstanding decimal.Decimal `json:"new_outstanding"`
	Status         BorrowingStatus `json:"status"`
	PoolBalance    decimal.Decimal `json:"pool_balance"`
}

// PayFullRequest settles the person's open borrowing in a pool.
type PayFullRequest struct {
	PersonID int64
	Pool     PoolType
}

// Borrow creates an OPEN borrowing. The pool is debited by the principal
// only; interest is a receivable, not a fund movement.
func (e *Engine) Borrow(ctx context.Context, req BorrowRequest) (*BorrowResult, error) {
	if !req.Pool.Valid() {
		return nil, newError(KindInvalidPoolType, "pool type must be MAIN or VALIDITY, got %q", req.Pool)
	}
	amount := round(req.Amount)
	if !amount.IsPositive() {
		return nil, newError(KindInvalidAmount, "amount must be at least 0.01, got %s", req.Amount)
	}
	if req.AdminOverride {
		if err := e.authorize(req.Credential); err != nil {
			return nil, err
		}
	}

	var res *BorrowResult
	err := e.update(ctx, "borrow", func(o *op) error {
		tx := o.tx
		bal, err := tx.LockPersonalBalance(ctx, req.PersonID)
		if err != nil {
			if errors.Is(err, ErrRecordNotFound) {
				return newError(KindNoPersonalBalance, "person %d has no personal balance", req.PersonID)
			}
			return err
		}
		pool, err := tx.LockPool(ctx, req.Pool)
		if err != nil {
			return err
		}

		if !req.AdminOverride {
			if err := e.checkEligibility(ctx, tx, bal, req.Pool, amount); err != nil {
				return err
			}
		}
		if amount.GreaterThan(pool.Balance) {
			return newError(KindInsufficientGroupFunds, "requested %s but %s pool holds %s",
				formatAmount(amount), req.Pool, formatAmount(pool.Balance))
		}

		interest := e.policy.Interest(amount)
		b := &Borrowing{
			PersonID:      req.PersonID,
			Pool:          req.Pool,
			Principal:     amount,
			InitialProfit: interest,
			Outstanding:   amount.Add(interest),
			Status:        StatusOpen,
			DueDate:       e.dueDate(req.Pool),
			CreatedAt:     o.at,
		}
		if err := tx.InsertBorrowing(ctx, b); err != nil {
			return err
		}
		pool.Balance = pool.Balance.Sub(amount)
		if err := tx.UpdatePool(ctx, pool); err != nil {
			return err
		}

		mainDelta, validityDelta := poolDelta(req.Pool, amount.Neg())
		err = e.appendLog(ctx, o, &LogEntry{
			PersonID:          personRef(req.PersonID),
			Type:              LogBorrow,
			Amount:            amount,
			MainPoolDelta:     mainDelta,
			ValidityPoolDelta: validityDelta,
		}, map[string]interface{}{
			"borrowing_id":   b.ID,
			"pool_type":      req.Pool,
			"principal":      formatAmount(amount),
			"interest":       formatAmount(interest),
			"outstanding":    formatAmount(b.Outstanding),
			"due_date":       e.dateOf(b.DueDate),
			"admin_override": req.AdminOverride,
		}, bal)
		if err != nil {
			return err
		}

		o.changed(personRef(req.PersonID), ChangeBorrowing)
		o.changed(nil, ChangeGroup)
		res = &BorrowResult{
			BorrowingID: b.ID,
			Pool:        req.Pool,
			Principal:   amount,
			Interest:    interest,
			Outstanding: b.Outstanding,
			DueDate:     b.DueDate,
			PoolBalance: pool.Balance,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (e *Engine) checkEligibility(ctx context.Context, tx Tx, bal *PersonalBalance, pool PoolType, amount decimal.Decimal) error {
	count, err := tx.CountPayments(ctx, bal.PersonID, PaymentUnit)
	if err != nil {
		return err
	}
	if count < e.policy.MinUnitPayments {
		return newError(KindInsufficientSavedCount, "%d unit payments recorded, %d required",
			count, e.policy.MinUnitPayments)
	}

	open, err := tx.FindOpenBorrowing(ctx, bal.PersonID, pool)
	if err != nil {
		return err
	}
	if open != nil {
		return newError(KindOpenDebtExists, "borrowing %d is still open in the %s pool", open.ID, pool)
	}

	limit := e.policy.BorrowLimit(bal.Get(pool))
	if amount.GreaterThan(limit) {
		return newError(KindLimitExceeded, "requested %s exceeds limit %s", formatAmount(amount), formatAmount(limit))
	}
	return nil
}

func (e *Engine) dueDate(pool PoolType) time.Time {
	return e.now().AddDate(0, 0, e.policy.PeriodDays(pool))
}

// Repay applies a partial or full repayment. Overpaying is rejected with
// the true outstanding amount rather than capped.
func (e *Engine) Repay(ctx context.Context, req RepayRequest) (*RepayResult, error) {
	amount := round(req.Amount)
	if !amount.IsPositive() {
		return nil, newError(KindInvalidAmount, "amount must be at least 0.01, got %s", req.Amount)
	}

	var res *RepayResult
	err := e.update(ctx, "repay", func(o *op) error {
		tx := o.tx
		peek, err := tx.GetBorrowing(ctx, req.BorrowingID)
		if err != nil {
			if errors.Is(err, ErrRecordNotFound) {
				return newError(KindNotFound, "borrowing %d not found", req.BorrowingID)
			}
			return err
		}
		if peek.PersonID != req.PersonID {
			return newError(KindNotOwner, "borrowing %d does not belong to person %d", req.BorrowingID, req.PersonID)
		}

		r, err := e.settle(ctx, o, peek.Pool, peek.ID, func(b *Borrowing) (decimal.Decimal, error) {
			if b.Status != StatusOpen {
				return decimal.Zero, newError(KindNotOpen, "borrowing %d is %s", b.ID, b.Status)
			}
			if amount.GreaterThan(b.Outstanding) {
				out := b.Outstanding
				return decimal.Zero, &Error{
					Kind:        KindOverpayment,
					Message:     "amount " + formatAmount(amount) + " exceeds outstanding " + formatAmount(out),
					Outstanding: &out,
				}
			}
			return amount, nil
		})
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// PayFull settles the person's single OPEN borrowing in a pool.
func (e *Engine) PayFull(ctx context.Context, req PayFullRequest) (*RepayResult, error) {
	if !req.Pool.Valid() {
		return nil, newError(KindInvalidPoolType, "pool type must be MAIN or VALIDITY, got %q", req.Pool)
	}

	var res *RepayResult
	err := e.update(ctx, "pay_full", func(o *op) error {
		open, err := o.tx.FindOpenBorrowing(ctx, req.PersonID, req.Pool)
		if err != nil {
			return err
		}
		if open == nil {
			return newError(KindNotFound, "person %d has no open borrowing in the %s pool", req.PersonID, req.Pool)
		}

		r, err := e.settle(ctx, o, req.Pool, open.ID, func(b *Borrowing) (decimal.Decimal, error) {
			if b.Status != StatusOpen {
				return decimal.Zero, newError(KindNotFound, "borrowing %d is no longer open", b.ID)
			}
			return b.Outstanding, nil
		})
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// settle locks the pool then the borrowing, asks amountFor how much to pay,
// and applies it.
func (e *Engine) settle(ctx context.Context, o *op, poolType PoolType, borrowingID int64,
	amountFor func(b *Borrowing) (decimal.Decimal, error)) (*RepayResult, error) {
	tx := o.tx
	pool, err := tx.LockPool(ctx, poolType)
	if err != nil {
		return nil, err
	}
	b, err := tx.LockBorrowing(ctx, borrowingID)
	if err != nil {
		return nil, err
	}
	amount, err := amountFor(b)
	if err != nil {
		return nil, err
	}

	at := o.at
	b.Outstanding = b.Outstanding.Sub(amount)
	b.LastPaymentAt = &at
	if b.Outstanding.IsZero() {
		b.Status = StatusPaid
	}
	if err := tx.UpdateBorrowing(ctx, b); err != nil {
		return nil, err
	}
	pool.Balance = pool.Balance.Add(amount)
	if err := tx.UpdatePool(ctx, pool); err != nil {
		return nil, err
	}

	borrowingID = b.ID
	if err := tx.InsertPayment(ctx, &Payment{
		PersonID:    b.PersonID,
		Type:        PaymentDebtPayment,
		Amount:      amount,
		BorrowingID: &borrowingID,
		CreatedAt:   o.at,
	}); err != nil {
		return nil, err
	}

	mainDelta, validityDelta := poolDelta(poolType, amount)
	err = e.appendLog(ctx, o, &LogEntry{
		PersonID:          personRef(b.PersonID),
		Type:              LogRepayment,
		Amount:            amount,
		MainPoolDelta:     mainDelta,
		ValidityPoolDelta: validityDelta,
	}, map[string]interface{}{
		"borrowing_id":    b.ID,
		"pool_type":       poolType,
		"paid":            formatAmount(amount),
		"new_outstanding": formatAmount(b.Outstanding),
		"status":          b.Status,
	}, nil)
	if err != nil {
		return nil, err
	}

	o.changed(personRef(b.PersonID), ChangeRepayment)
	o.changed(nil, ChangeGroup)
	return &RepayResult{
		BorrowingID:    b.ID,
		Paid:           amount,
		NewOutstanding: b.Outstanding,
		Status:         b.Status,
		PoolBalance:    pool.Balance,
	}, nil
}
