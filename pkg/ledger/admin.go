package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DeleteResult confirms a member deletion. Warnings lists dependent tables
// that could not be cleaned up.
type DeleteResult struct {
	PersonID int64            `json:"person_id"`
	Name     string           `json:"name"`
	Removed  map[string]int64 `json:"removed"`
	Warnings []string         `json:"warnings,omitempty"`
}

// ResetResult confirms a full reset.
type ResetResult struct {
	ClearedTables []string `json:"cleared_tables"`
}

// ShareResult is the value of one saved unit.
type ShareResult struct {
	TotalSavings decimal.Decimal `json:"total_savings"`
	TotalUnits   int64           `json:"total_units"`
	SharePerUnit decimal.Decimal `json:"share_per_unit"`
}

// CreateMember adds a person with a zeroed personal balance.
func (e *Engine) CreateMember(ctx context.Context, name string, cred Credential) (*Person, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, newError(KindInvalidName, "member name must not be empty")
	}
	if err := e.authorize(cred); err != nil {
		return nil, err
	}

	var p *Person
	err := e.update(ctx, "create_member", func(o *op) error {
		var err error
		if p, err = o.tx.InsertPerson(ctx, name, o.at); err != nil {
			return err
		}
		bal, err := o.tx.EnsurePersonalBalance(ctx, p.ID)
		if err != nil {
			return err
		}
		err = e.appendLog(ctx, o, &LogEntry{
			PersonID:          personRef(p.ID),
			Type:              LogMemberCreated,
			Amount:            decimal.Zero,
			MainPoolDelta:     decimal.Zero,
			ValidityPoolDelta: decimal.Zero,
		}, map[string]interface{}{"name": name}, bal)
		if err != nil {
			return err
		}
		o.changed(personRef(p.ID), ChangeMemberCreated)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// DeleteMember removes a person and their dependent rows. Each dependent
// table is cleaned in its own recovery point; a failure there is logged and
// reported as a warning instead of aborting the deletion.
func (e *Engine) DeleteMember(ctx context.Context, personID int64, cred Credential) (*DeleteResult, error) {
	if err := e.authorize(cred); err != nil {
		return nil, err
	}
	if personID <= 0 {
		return nil, newError(KindMissingID, "person id is required")
	}

	var res *DeleteResult
	err := e.update(ctx, "delete_member", func(o *op) error {
		tx := o.tx
		p, err := tx.LockPerson(ctx, personID)
		if err != nil {
			if errors.Is(err, ErrRecordNotFound) {
				return newError(KindNotFound, "person %d not found", personID)
			}
			return err
		}

		res = &DeleteResult{PersonID: p.ID, Name: p.Name, Removed: map[string]int64{}}
		// Pool movements recorded in the member's log rows are carried into
		// the system entry so the log still reconciles with the pools.
		carried := Pools{Main: decimal.Zero, Validity: decimal.Zero}
		for _, table := range memberTables {
			table := table
			err := tx.Recover(ctx, "delete_"+table, func() error {
				if table == "transaction_log" {
					deltas, err := tx.PoolDeltas(ctx, personRef(personID))
					if err != nil {
						return err
					}
					carried = deltas
				}
				n, err := tx.DeleteMemberRows(ctx, table, personID)
				if err != nil {
					return err
				}
				res.Removed[table] = n
				return nil
			})
			if err != nil {
				if table == "transaction_log" {
					carried = Pools{Main: decimal.Zero, Validity: decimal.Zero}
				}
				e.logger.Warn("failed to delete member rows", "table", table, "person_id", personID, "error", err)
				res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %v", table, err))
			}
		}

		if err := tx.DeletePerson(ctx, personID); err != nil {
			return err
		}

		err = e.appendLog(ctx, o, &LogEntry{
			Type:              LogAdminDeleteMember,
			Amount:            decimal.Zero,
			MainPoolDelta:     carried.Main,
			ValidityPoolDelta: carried.Validity,
		}, map[string]interface{}{
			"person_id": p.ID,
			"name":      p.Name,
			"removed":   res.Removed,
			"warnings":  res.Warnings,
		}, nil)
		if err != nil {
			return err
		}
		o.changed(personRef(personID), ChangeMemberDeleted)
		o.changed(nil, ChangeGroup)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ResetAll clears the ledger history and zeroes every balance. It is the one
// operation allowed to destroy the transaction log.
func (e *Engine) ResetAll(ctx context.Context, cred Credential) (*ResetResult, error) {
	if err := e.authorize(cred); err != nil {
		return nil, err
	}

	res := &ResetResult{}
	err := e.update(ctx, "reset_all", func(o *op) error {
		tx := o.tx
		before, err := tx.Pools(ctx)
		if err != nil {
			return err
		}
		for _, table := range resetTables {
			if err := tx.ClearTable(ctx, table); err != nil {
				return err
			}
		}
		if err := tx.ZeroBalances(ctx); err != nil {
			return err
		}
		res.ClearedTables = append([]string(nil), resetTables...)

		err = e.appendLog(ctx, o, &LogEntry{
			Type:              LogAdminReset,
			Amount:            decimal.Zero,
			MainPoolDelta:     decimal.Zero,
			ValidityPoolDelta: decimal.Zero,
		}, map[string]interface{}{
			"cleared_tables":       resetTables,
			"main_pool_before":     formatAmount(before.Main),
			"validity_pool_before": formatAmount(before.Validity),
		}, nil)
		if err != nil {
			return err
		}
		o.changed(nil, ChangeReset)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Share computes the current value of one saved unit.
func (e *Engine) Share(ctx context.Context) (*ShareResult, error) {
	res := &ShareResult{SharePerUnit: decimal.Zero}
	err := e.view(ctx, func(tx Tx) error {
		pools, err := tx.Pools(ctx)
		if err != nil {
			return err
		}
		units, err := tx.TotalUnits(ctx)
		if err != nil {
			return err
		}
		res.TotalSavings = pools.Total()
		res.TotalUnits = units
		if units > 0 {
			res.SharePerUnit = res.TotalSavings.DivRound(decimal.NewFromInt(units), 2)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
