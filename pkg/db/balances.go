package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shunichi-ikebuchi/savings-club/pkg/ledger"
)

// EnsurePersonalBalance creates a zeroed balance row if absent and locks it.
func (t *tx) EnsurePersonalBalance(ctx context.Context, personID int64) (*ledger.PersonalBalance, error) {
	if err := t.acquire(rankPersonalBalance); err != nil {
		return nil, err
	}
	if _, err := t.tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO personal_balance (person_id, main_savings_balance, validity_savings_balance)
		VALUES (?, '0.00', '0.00')
	`, personID); err != nil {
		return nil, fmt.Errorf("failed to create personal balance: %w", err)
	}
	return t.getPersonalBalance(ctx, personID)
}

// LockPersonalBalance retrieves a person's balance row under the lock.
func (t *tx) LockPersonalBalance(ctx context.Context, personID int64) (*ledger.PersonalBalance, error) {
	if err := t.acquire(rankPersonalBalance); err != nil {
		return nil, err
	}
	return t.getPersonalBalance(ctx, personID)
}

func (t *tx) getPersonalBalance(ctx context.Context, personID int64) (*ledger.PersonalBalance, error) {
	b := ledger.PersonalBalance{PersonID: personID}
	err := t.tx.QueryRowContext(ctx, `
		SELECT main_savings_balance, validity_savings_balance
		FROM personal_balance
		WHERE person_id = ?
	`, personID).Scan(&b.MainSavings, &b.ValiditySavings)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("personal balance for person %d: %w", personID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get personal balance: %w", err)
	}
	return &b, nil
}

// UpdatePersonalBalance writes both savings balances.
func (t *tx) UpdatePersonalBalance(ctx context.Context, b *ledger.PersonalBalance) error {
	if b.MainSavings.IsNegative() || b.ValiditySavings.IsNegative() {
		return fmt.Errorf("personal balance for person %d would become negative", b.PersonID)
	}
	_, err := t.tx.ExecContext(ctx, `
		UPDATE personal_balance
		SET main_savings_balance = ?, validity_savings_balance = ?
		WHERE person_id = ?
	`, money(b.MainSavings), money(b.ValiditySavings), b.PersonID)
	if err != nil {
		return fmt.Errorf("failed to update personal balance: %w", err)
	}
	return nil
}

// LockPool retrieves a group pool row under the lock.
func (t *tx) LockPool(ctx context.Context, pool ledger.PoolType) (*ledger.GroupPool, error) {
	if err := t.acquire(rankPool); err != nil {
		return nil, err
	}

	gp := ledger.GroupPool{Type: pool}
	err := t.tx.QueryRowContext(ctx, `
		SELECT balance FROM group_pool WHERE pool_type = ?
	`, string(pool)).Scan(&gp.Balance)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("group pool %s: %w", pool, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group pool: %w", err)
	}
	return &gp, nil
}

// UpdatePool writes a group pool balance.
func (t *tx) UpdatePool(ctx context.Context, gp *ledger.GroupPool) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE group_pool SET balance = ? WHERE pool_type = ?
	`, money(gp.Balance), string(gp.Type))
	if err != nil {
		return fmt.Errorf("failed to update group pool: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows != 1 {
		return fmt.Errorf("group pool %s: %w", gp.Type, ErrNotFound)
	}
	return nil
}

// Pools reads both group pool balances without taking a lock.
func (t *tx) Pools(ctx context.Context) (ledger.Pools, error) {
	var pools ledger.Pools
	rows, err := t.tx.QueryContext(ctx, `SELECT pool_type, balance FROM group_pool`)
	if err != nil {
		return pools, fmt.Errorf("failed to read group pools: %w", err)
	}
	defer rows.Close()

	seen := 0
	for rows.Next() {
		var gp ledger.GroupPool
		var poolType string
		if err := rows.Scan(&poolType, &gp.Balance); err != nil {
			return pools, fmt.Errorf("failed to scan group pool: %w", err)
		}
		switch ledger.PoolType(poolType) {
		case ledger.PoolMain:
			pools.Main = gp.Balance
		case ledger.PoolValidity:
			pools.Validity = gp.Balance
		}
		seen++
	}
	if err := rows.Err(); err != nil {
		return pools, fmt.Errorf("failed to read group pools: %w", err)
	}
	if seen != 2 {
		return pools, fmt.Errorf("expected 2 group pools, found %d", seen)
	}
	return pools, nil
}
