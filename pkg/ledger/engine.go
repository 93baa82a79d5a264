package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ChangeType names what changed in a committed operation.
type ChangeType string

const (
	ChangeSavings       ChangeType = "savings"
	ChangeBorrowing     ChangeType = "borrowing"
	ChangeRepayment     ChangeType = "repayment"
	ChangePenalty       ChangeType = "penalty"
	ChangeGroup         ChangeType = "group"
	ChangeMemberCreated ChangeType = "member_created"
	ChangeMemberDeleted ChangeType = "member_deleted"
	ChangeReset         ChangeType = "reset"
)

// Change is the advisory event published after commit. PersonID is nil for
// group-wide changes.
type Change struct {
	PersonID  *int64     `json:"subject_person_id,omitempty"`
	Type      ChangeType `json:"change_type"`
	Reference string     `json:"reference"`
	At        time.Time  `json:"at"`
}

// Notifier receives changes after commit. Delivery is best-effort: a
// failing notifier never affects the committed result.
type Notifier interface {
	Notify(ctx context.Context, change Change) error
}

// Config wires an Engine.
type Config struct {
	Store      Store
	Policy     Policy
	Authorizer Authorizer
	Notifier   Notifier
	// Clock defaults to time.Now. All stored timestamps are UTC.
	Clock func() time.Time
	// Location decides calendar days for daily summaries and due dates.
	// Defaults to UTC.
	Location *time.Location
	Logger   *slog.Logger
}

// Engine executes ledger operations.
type Engine struct {
	store    Store
	policy   Policy
	auth     Authorizer
	notifier Notifier
	clock    func() time.Time
	loc      *time.Location
	logger   *slog.Logger
}

// New creates an Engine from cfg.
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("ledger: store is required")
	}
	if err := cfg.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("ledger: invalid policy: %w", err)
	}

	e := &Engine{
		store:    cfg.Store,
		policy:   cfg.Policy,
		auth:     cfg.Authorizer,
		notifier: cfg.Notifier,
		clock:    cfg.Clock,
		loc:      cfg.Location,
		logger:   cfg.Logger,
	}
	if e.auth == nil {
		e.auth = denyAll{}
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	if e.loc == nil {
		e.loc = time.UTC
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e, nil
}

// Policy returns the engine's policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

func (e *Engine) now() time.Time {
	return e.clock().UTC()
}

// today returns the current calendar day in the engine's location.
func (e *Engine) today() string {
	return e.now().In(e.loc).Format(DateLayout)
}

func (e *Engine) dateOf(t time.Time) string {
	return t.In(e.loc).Format(DateLayout)
}

// op carries per-operation state through a transaction.
type op struct {
	tx      Tx
	ref     string
	at      time.Time
	changes []Change
}

func (o *op) changed(personID *int64, t ChangeType) {
	o.changes = append(o.changes, Change{PersonID: personID, Type: t, Reference: o.ref, At: o.at})
}

// update runs fn in one transaction and publishes its changes after commit.
func (e *Engine) update(ctx context.Context, name string, fn func(o *op) error) error {
	o := &op{ref: uuid.NewString(), at: e.now()}
	err := e.store.Transaction(ctx, func(tx Tx) error {
		o.tx = tx
		o.changes = o.changes[:0]
		return fn(o)
	})
	if err != nil {
		if KindOf(err) == KindInternal {
			e.logger.Error("ledger operation failed", "operation", name, "reference", o.ref, "error", err)
		} else {
			e.logger.Debug("ledger operation rejected", "operation", name, "reference", o.ref, "error", err)
		}
		return err
	}

	e.logger.Debug("ledger operation committed", "operation", name, "reference", o.ref)
	e.publish(ctx, o.changes)
	return nil
}

// view runs a read-only fn in a transaction.
func (e *Engine) view(ctx context.Context, fn func(tx Tx) error) error {
	return e.store.Transaction(ctx, fn)
}

func (e *Engine) publish(ctx context.Context, changes []Change) {
	if e.notifier == nil {
		return
	}
	for _, c := range changes {
		if err := e.notifier.Notify(ctx, c); err != nil {
			e.logger.Warn("change notification failed", "change_type", c.Type, "reference", c.Reference, "error", err)
		}
	}
}

// appendLog writes entry with pool snapshots taken after the mutation. bal,
// when set, supplies the personal balance snapshot.
func (e *Engine) appendLog(ctx context.Context, o *op, entry *LogEntry, details interface{}, bal *PersonalBalance) error {
	raw, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to encode log details: %w", err)
	}
	pools, err := o.tx.Pools(ctx)
	if err != nil {
		return err
	}

	entry.Details = raw
	entry.MainPoolAfter = pools.Main
	entry.ValidityPoolAfter = pools.Validity
	if bal != nil {
		main, validity := bal.MainSavings, bal.ValiditySavings
		entry.MainSavingsAfter = &main
		entry.ValiditySavingsAfter = &validity
	}
	entry.Reference = o.ref
	entry.CreatedAt = o.at
	return o.tx.AppendLog(ctx, entry)
}

func poolDelta(pool PoolType, amount decimal.Decimal) (main, validity decimal.Decimal) {
	if pool == PoolValidity {
		return decimal.Zero, amount
	}
	return amount, decimal.Zero
}

func personRef(id int64) *int64 {
	return &id
}
