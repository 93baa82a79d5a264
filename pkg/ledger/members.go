package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// Statement is a member's current position.
type Statement struct {
	Person     Person          `json:"person"`
	Balance    PersonalBalance `json:"balance"`
	UnitCount  int             `json:"unit_payments"`
	Borrowings []Borrowing     `json:"open_borrowings"`
	Recent     []LogEntry      `json:"recent_transactions"`
}

// AuditResult compares the pool movements recorded in the transaction log
// with the pool balances.
type AuditResult struct {
	Pools      Pools `json:"pools"`
	LogDeltas  Pools `json:"log_deltas"`
	Reconciled bool  `json:"reconciled"`
}

const statementRecent = 20

// ListMembers returns every member.
func (e *Engine) ListMembers(ctx context.Context) ([]Person, error) {
	var people []Person
	err := e.view(ctx, func(tx Tx) error {
		var err error
		people, err = tx.ListPeople(ctx)
		return err
	})
	return people, err
}

// Statement returns a member's balances, open borrowings and recent log.
func (e *Engine) Statement(ctx context.Context, personID int64) (*Statement, error) {
	if personID <= 0 {
		return nil, newError(KindMissingID, "person id is required")
	}
	st := &Statement{}
	err := e.view(ctx, func(tx Tx) error {
		p, err := tx.LockPerson(ctx, personID)
		if err != nil {
			if errors.Is(err, ErrRecordNotFound) {
				return newError(KindNotFound, "person %d not found", personID)
			}
			return err
		}
		st.Person = *p

		bal, err := tx.LockPersonalBalance(ctx, personID)
		switch {
		case errors.Is(err, ErrRecordNotFound):
			st.Balance = PersonalBalance{PersonID: personID, MainSavings: decimal.Zero, ValiditySavings: decimal.Zero}
		case err != nil:
			return err
		default:
			st.Balance = *bal
		}

		if st.UnitCount, err = tx.CountPayments(ctx, personID, PaymentUnit); err != nil {
			return err
		}
		if st.Borrowings, err = tx.ListOpenBorrowings(ctx, personID); err != nil {
			return err
		}
		st.Recent, err = tx.ListLog(ctx, HistoryFilter{PersonID: &personID, Limit: statementRecent})
		return err
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

// History lists transaction log entries, newest first.
func (e *Engine) History(ctx context.Context, f HistoryFilter) ([]LogEntry, error) {
	var entries []LogEntry
	err := e.view(ctx, func(tx Tx) error {
		var err error
		entries, err = tx.ListLog(ctx, f)
		return err
	})
	return entries, err
}

// Audit checks that the sum of logged pool deltas equals the pool balances.
func (e *Engine) Audit(ctx context.Context) (*AuditResult, error) {
	res := &AuditResult{}
	err := e.view(ctx, func(tx Tx) error {
		var err error
		if res.Pools, err = tx.Pools(ctx); err != nil {
			return err
		}
		if res.LogDeltas, err = tx.PoolDeltas(ctx, nil); err != nil {
			return err
		}
		res.Reconciled = res.Pools.Main.Equal(res.LogDeltas.Main) &&
			res.Pools.Validity.Equal(res.LogDeltas.Validity)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !res.Reconciled {
		e.logger.Warn("pool balances do not match transaction log",
			"main_pool", res.Pools.Main.String(), "main_log", res.LogDeltas.Main.String(),
			"validity_pool", res.Pools.Validity.String(), "validity_log", res.LogDeltas.Validity.String())
	}
	return res, nil
}
