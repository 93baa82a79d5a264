package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// SaveRequest buys units and optionally pays the validity fee for a day.
type SaveRequest struct {
	PersonID    int64
	Units       int
	PayValidity bool
	// EffectiveDate defaults to today.
	EffectiveDate *time.Time
}

// SaveResult reports what a save actually applied.
type SaveResult struct {
	PersonID       int64           `json:"person_id"`
	Date           string          `json:"date"`
	UnitsApplied   int             `json:"units_applied"`
	UnitsAmount    decimal.Decimal `json:"units_amount"`
	ValidityAmount decimal.Decimal `json:"validity_amount"`
	Summary        DailySummary    `json:"daily_summary"`
	Balance        PersonalBalance `json:"balance"`
	Pools          Pools           `json:"pools"`
}

// RetroRequest backfills a past day.
type RetroRequest struct {
	PersonID             int64
	Date                 time.Time
	AddUnits             int
	PayValidityIfMissing bool
}

// RetroResult reports what a retroactive fill applied, including the fine.
type RetroResult struct {
	SaveResult
	FineAmount decimal.Decimal `json:"fine_amount"`
}

// Save applies unit purchases and the validity fee for one day. Only what
// actually changed is charged and logged, so repeating a call is safe.
func (e *Engine) Save(ctx context.Context, req SaveRequest) (*SaveResult, error) {
	if req.Units < 0 {
		return nil, newError(KindInvalidUnits, "units must not be negative")
	}
	if req.Units > e.policy.DailyUnitCap {
		return nil, newError(KindDailyCapExceeded, "at most %d units can be saved per day", e.policy.DailyUnitCap)
	}
	date := e.today()
	if req.EffectiveDate != nil {
		date = e.dateOf(*req.EffectiveDate)
	}

	var res *SaveResult
	err := e.update(ctx, "save", func(o *op) error {
		r, err := e.applySavings(ctx, o, savingsInput{
			personID:    req.PersonID,
			date:        date,
			units:       req.Units,
			payValidity: req.PayValidity,
			capKind:     KindDailyCapExceeded,
		})
		if err != nil {
			return err
		}
		res = &r.SaveResult
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// RetroactiveFill adds units or the missing validity fee to a past day.
// Adding units late costs a fixed fine credited to the MAIN pool.
func (e *Engine) RetroactiveFill(ctx context.Context, req RetroRequest) (*RetroResult, error) {
	date := e.dateOf(req.Date)
	if req.Date.IsZero() || date >= e.today() {
		return nil, newError(KindDateNotPast, "date %s is not in the past", date)
	}
	if req.AddUnits == 0 && !req.PayValidityIfMissing {
		return nil, newError(KindNoChangeRequested, "nothing to fill for %s", date)
	}
	if req.AddUnits < 0 || req.AddUnits > e.policy.DailyUnitCap {
		return nil, newError(KindInvalidUnits, "units must be between 0 and %d", e.policy.DailyUnitCap)
	}

	var res *RetroResult
	err := e.update(ctx, "retroactive_fill", func(o *op) error {
		r, err := e.applySavings(ctx, o, savingsInput{
			personID:    req.PersonID,
			date:        date,
			units:       req.AddUnits,
			payValidity: req.PayValidityIfMissing,
			capKind:     KindUnitsCapExceeded,
			retroactive: true,
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

type savingsInput struct {
	personID    int64
	date        string
	units       int
	payValidity bool
	capKind     Kind
	retroactive bool
}

func (e *Engine) applySavings(ctx context.Context, o *op, in savingsInput) (*RetroResult, error) {
	tx := o.tx
	if _, err := tx.LockPerson(ctx, in.personID); err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, newError(KindNotFound, "person %d not found", in.personID)
		}
		return nil, err
	}
	bal, err := tx.EnsurePersonalBalance(ctx, in.personID)
	if err != nil {
		return nil, err
	}

	res := &RetroResult{
		SaveResult: SaveResult{
			PersonID:       in.personID,
			Date:           in.date,
			UnitsAmount:    decimal.Zero,
			ValidityAmount: decimal.Zero,
		},
		FineAmount: decimal.Zero,
	}
	if in.units == 0 && !in.payValidity {
		return e.fillSnapshot(ctx, tx, res, bal, nil)
	}

	mainPool, err := tx.LockPool(ctx, PoolMain)
	if err != nil {
		return nil, err
	}
	var validityPool *GroupPool
	if in.payValidity {
		if validityPool, err = tx.LockPool(ctx, PoolValidity); err != nil {
			return nil, err
		}
	}
	summary, err := tx.LockDailySummary(ctx, in.personID, in.date)
	if err != nil {
		return nil, err
	}

	if summary.UnitsCount+in.units > e.policy.DailyUnitCap {
		return nil, newError(in.capKind, "%d units already saved on %s, cap is %d",
			summary.UnitsCount, in.date, e.policy.DailyUnitCap)
	}

	if in.units > 0 {
		res.UnitsApplied = in.units
		res.UnitsAmount = e.policy.UnitPrice.Mul(decimal.NewFromInt(int64(in.units)))
		summary.UnitsCount += in.units
		bal.MainSavings = bal.MainSavings.Add(res.UnitsAmount)
		mainPool.Balance = mainPool.Balance.Add(res.UnitsAmount)
	}
	if in.payValidity && !summary.ValidityPaid {
		res.ValidityAmount = e.policy.ValidityFee
		summary.ValidityPaid = true
		bal.ValiditySavings = bal.ValiditySavings.Add(res.ValidityAmount)
		validityPool.Balance = validityPool.Balance.Add(res.ValidityAmount)
	}
	if in.retroactive && in.units > 0 && e.policy.RetroFine.IsPositive() {
		res.FineAmount = e.policy.RetroFine
		summary.FineAmount = summary.FineAmount.Add(res.FineAmount)
		mainPool.Balance = mainPool.Balance.Add(res.FineAmount)
	}

	applied := res.UnitsAmount.Add(res.ValidityAmount)
	if applied.IsZero() && res.FineAmount.IsZero() {
		return e.fillSnapshot(ctx, tx, res, bal, summary)
	}

	if err := tx.UpdatePersonalBalance(ctx, bal); err != nil {
		return nil, err
	}
	if err := tx.UpdatePool(ctx, mainPool); err != nil {
		return nil, err
	}
	if validityPool != nil {
		if err := tx.UpdatePool(ctx, validityPool); err != nil {
			return nil, err
		}
	}
	if err := tx.UpdateDailySummary(ctx, summary); err != nil {
		return nil, err
	}

	for i := 0; i < res.UnitsApplied; i++ {
		if err := tx.InsertPayment(ctx, &Payment{
			PersonID:      in.personID,
			Type:          PaymentUnit,
			Amount:        e.policy.UnitPrice,
			EffectiveDate: in.date,
			CreatedAt:     o.at,
		}); err != nil {
			return nil, err
		}
	}
	if res.ValidityAmount.IsPositive() {
		if err := tx.InsertPayment(ctx, &Payment{
			PersonID:      in.personID,
			Type:          PaymentValidity,
			Amount:        res.ValidityAmount,
			EffectiveDate: in.date,
			CreatedAt:     o.at,
		}); err != nil {
			return nil, err
		}
	}

	if res.FineAmount.IsPositive() {
		if err := tx.InsertPayment(ctx, &Payment{
			PersonID:      in.personID,
			Type:          PaymentFine,
			Amount:        res.FineAmount,
			EffectiveDate: in.date,
			CreatedAt:     o.at,
		}); err != nil {
			return nil, err
		}
		err := e.appendLog(ctx, o, &LogEntry{
			PersonID:          personRef(in.personID),
			Type:              LogFine,
			Amount:            res.FineAmount,
			MainPoolDelta:     res.FineAmount,
			ValidityPoolDelta: decimal.Zero,
		}, map[string]interface{}{
			"date":   in.date,
			"units":  in.units,
			"reason": "retroactive entry",
		}, bal)
		if err != nil {
			return nil, err
		}
	}

	if applied.IsPositive() {
		err := e.appendLog(ctx, o, &LogEntry{
			PersonID:          personRef(in.personID),
			Type:              LogSaving,
			Amount:            applied,
			MainPoolDelta:     res.UnitsAmount,
			ValidityPoolDelta: res.ValidityAmount,
		}, map[string]interface{}{
			"date":            in.date,
			"units":           res.UnitsApplied,
			"units_amount":    formatAmount(res.UnitsAmount),
			"validity_amount": formatAmount(res.ValidityAmount),
			"retroactive":     in.retroactive,
		}, bal)
		if err != nil {
			return nil, err
		}
	}

	o.changed(personRef(in.personID), ChangeSavings)
	o.changed(nil, ChangeGroup)
	return e.fillSnapshot(ctx, tx, res, bal, summary)
}

func (e *Engine) fillSnapshot(ctx context.Context, tx Tx, res *RetroResult, bal *PersonalBalance, summary *DailySummary) (*RetroResult, error) {
	pools, err := tx.Pools(ctx)
	if err != nil {
		return nil, err
	}
	res.Balance = *bal
	res.Pools = pools
	if summary != nil {
		res.Summary = *summary
	} else {
		res.Summary = DailySummary{PersonID: res.PersonID, Date: res.Date, FineAmount: decimal.Zero}
	}
	return res, nil
}
