package ledger

import (
	"context"
	"time"
)

// Store runs ledger transactions. Transaction must commit only when fn
// returns nil and roll back wholesale otherwise.
type Store interface {
	Transaction(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is one serializable unit of work against the balance store.
//
// Lock* methods take pessimistic locks and must be called in this order
// within a transaction: person, personal balance, group pool, borrowing,
// daily summary. Implementations reject out-of-order acquisition.
type Tx interface {
	LockPerson(ctx context.Context, id int64) (*Person, error)
	InsertPerson(ctx context.Context, name string, at time.Time) (*Person, error)
	ListPeople(ctx context.Context) ([]Person, error)
	DeletePerson(ctx context.Context, id int64) error

	// EnsurePersonalBalance creates a zeroed row when absent and locks it.
	EnsurePersonalBalance(ctx context.Context, personID int64) (*PersonalBalance, error)
	LockPersonalBalance(ctx context.Context, personID int64) (*PersonalBalance, error)
	UpdatePersonalBalance(ctx context.Context, b *PersonalBalance) error

	LockPool(ctx context.Context, pool PoolType) (*GroupPool, error)
	UpdatePool(ctx context.Context, p *GroupPool) error
	Pools(ctx context.Context) (Pools, error)

	// GetBorrowing reads a borrowing without locking it.
	GetBorrowing(ctx context.Context, id int64) (*Borrowing, error)
	LockBorrowing(ctx context.Context, id int64) (*Borrowing, error)
	// FindOpenBorrowing returns nil when the person has no OPEN borrowing in pool.
	FindOpenBorrowing(ctx context.Context, personID int64, pool PoolType) (*Borrowing, error)
	// ListOpenBorrowings lists OPEN borrowings; personID 0 lists all.
	ListOpenBorrowings(ctx context.Context, personID int64) ([]Borrowing, error)
	InsertBorrowing(ctx context.Context, b *Borrowing) error
	UpdateBorrowing(ctx context.Context, b *Borrowing) error

	CountPayments(ctx context.Context, personID int64, t PaymentType) (int, error)
	InsertPayment(ctx context.Context, p *Payment) error

	// LockDailySummary creates the (person, date) row when absent and locks it.
	LockDailySummary(ctx context.Context, personID int64, date string) (*DailySummary, error)
	UpdateDailySummary(ctx context.Context, s *DailySummary) error
	TotalUnits(ctx context.Context) (int64, error)

	AppendLog(ctx context.Context, e *LogEntry) error
	ListLog(ctx context.Context, f HistoryFilter) ([]LogEntry, error)
	// PoolDeltas sums the pool deltas recorded in the transaction log,
	// optionally for one person only.
	PoolDeltas(ctx context.Context, personID *int64) (Pools, error)

	// DeleteMemberRows removes a person's rows from one dependent table.
	DeleteMemberRows(ctx context.Context, table string, personID int64) (int64, error)
	ClearTable(ctx context.Context, table string) error
	ZeroBalances(ctx context.Context) error

	// Recover runs fn in a nested recovery point. When fn fails only its own
	// writes are undone and the enclosing transaction stays usable.
	Recover(ctx context.Context, name string, fn func() error) error
}

// Dependent tables of a person, in deletion order.
var memberTables = []string{
	"transaction_log",
	"payment",
	"borrowing",
	"daily_summary",
	"personal_balance",
}

// Tables cleared by a full reset.
var resetTables = []string{
	"transaction_log",
	"borrowing",
	"payment",
	"daily_summary",
}
