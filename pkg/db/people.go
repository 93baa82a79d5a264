package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/savings-club/pkg/ledger"
)

// LockPerson retrieves a person by ID under the transaction lock.
func (t *tx) LockPerson(ctx context.Context, id int64) (*ledger.Person, error) {
	if err := t.acquire(rankPerson); err != nil {
		return nil, err
	}

	var p ledger.Person
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, name, created_at FROM person WHERE id = ?
	`, id).Scan(&p.ID, &p.Name, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("person %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get person: %w", err)
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}

// InsertPerson creates a person.
func (t *tx) InsertPerson(ctx context.Context, name string, at time.Time) (*ledger.Person, error) {
	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO person (name, created_at) VALUES (?, ?)
	`, name, formatTime(at))
	if err != nil {
		return nil, fmt.Errorf("failed to insert person: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get person id: %w", err)
	}
	return &ledger.Person{ID: id, Name: name, CreatedAt: at.UTC()}, nil
}

// ListPeople retrieves all people ordered by ID.
func (t *tx) ListPeople(ctx context.Context) ([]ledger.Person, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT id, name, created_at FROM person ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list people: %w", err)
	}
	defer rows.Close()

	people := []ledger.Person{}
	for rows.Next() {
		var p ledger.Person
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan person: %w", err)
		}
		p.CreatedAt = p.CreatedAt.UTC()
		people = append(people, p)
	}
	return people, rows.Err()
}

// DeletePerson deletes the person row itself.
func (t *tx) DeletePerson(ctx context.Context, id int64) error {
	result, err := t.tx.ExecContext(ctx, `DELETE FROM person WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete person: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("person %d: %w", id, ErrNotFound)
	}
	return nil
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
