package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shunichi-ikebuchi/savings-club/pkg/ledger"
)

const (
	dispatchBatch = 50

	// DefaultMaxAttempts is how many failed deliveries an envelope gets
	// before it is dead-lettered.
	DefaultMaxAttempts = 5
)

// Dispatcher drains an Outbox into a target notifier.
type Dispatcher struct {
	outbox *Outbox
	target ledger.Notifier
	logger *slog.Logger

	// MaxAttempts bounds delivery attempts per envelope. Zero retries
	// forever.
	MaxAttempts int
}

// NewDispatcher creates a Dispatcher. A nil logger uses slog.Default.
func NewDispatcher(outbox *Outbox, target ledger.Notifier, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{outbox: outbox, target: target, logger: logger, MaxAttempts: DefaultMaxAttempts}
}

// Drain delivers queued changes in order and returns how many were
// delivered. It stops at the first failed delivery so that later changes
// are never sent ahead of an earlier one, unless that delivery used up its
// last attempt: the envelope is then dead-lettered and draining continues.
func (d *Dispatcher) Drain(ctx context.Context) (int, error) {
	delivered := 0
	for {
		batch, err := d.outbox.Pending(dispatchBatch)
		if err != nil {
			return delivered, err
		}
		if len(batch) == 0 {
			return delivered, nil
		}

		for _, env := range batch {
			if err := ctx.Err(); err != nil {
				return delivered, err
			}
			if err := d.target.Notify(ctx, env.Change); err != nil {
				d.logger.Warn("change delivery failed",
					"outbox_id", env.ID,
					"attempts", env.Attempts+1,
					"error", err)
				dead, ferr := d.outbox.Fail(env.ID, err, d.MaxAttempts)
				if ferr != nil {
					return delivered, ferr
				}
				if !dead {
					return delivered, err
				}
				d.logger.Error("change dead-lettered",
					"outbox_id", env.ID,
					"reference", env.Change.Reference,
					"type", env.Change.Type,
					"error", err)
				continue
			}
			if err := d.outbox.Ack(env.ID); err != nil {
				return delivered, err
			}
			delivered++
		}
	}
}

// Run drains the outbox every interval until ctx is done. It returns an
// error straight away when interval is not positive.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("dispatch interval must be positive, got %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.logger.Info("notification dispatcher started", "interval", interval.String())
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("notification dispatcher stopped")
			return nil
		case <-ticker.C:
			n, err := d.Drain(ctx)
			if err != nil && ctx.Err() == nil {
				d.logger.Debug("outbox drain stopped early", "delivered", n, "error", err)
				continue
			}
			if n > 0 {
				d.logger.Debug("outbox drained", "delivered", n)
			}
		}
	}
}
