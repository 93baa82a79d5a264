// Package notify delivers committed ledger changes to interested parties.
//
// The engine publishes through an Outbox so that a slow or unavailable
// channel never holds up a ledger operation. A Dispatcher drains the outbox
// to the configured channel (Discord, or the log when no channel is set).
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shunichi-ikebuchi/savings-club/pkg/ledger"
)

// LogNotifier writes changes to a structured logger.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier. A nil logger uses slog.Default.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs change at Info level.
func (n *LogNotifier) Notify(ctx context.Context, change ledger.Change) error {
	attrs := []any{
		"change_type", change.Type,
		"reference", change.Reference,
		"at", change.At.Format(time.RFC3339),
	}
	if change.PersonID != nil {
		attrs = append(attrs, "person_id", *change.PersonID)
	}
	n.logger.InfoContext(ctx, "club change", attrs...)
	return nil
}

// Message renders change as a one-line human readable text.
func Message(change ledger.Change) string {
	subject := "group"
	if change.PersonID != nil {
		subject = fmt.Sprintf("member #%d", *change.PersonID)
	}

	var what string
	switch change.Type {
	case ledger.ChangeSavings:
		what = "savings updated"
	case ledger.ChangeBorrowing:
		what = "new borrowing"
	case ledger.ChangeRepayment:
		what = "repayment received"
	case ledger.ChangePenalty:
		what = "penalty applied"
	case ledger.ChangeGroup:
		what = "group pools changed"
	case ledger.ChangeMemberCreated:
		what = "member joined"
	case ledger.ChangeMemberDeleted:
		what = "member removed"
	case ledger.ChangeReset:
		what = "ledger reset"
	default:
		what = string(change.Type)
	}

	return fmt.Sprintf("[%s] %s: %s (ref %s)",
		change.At.UTC().Format("2006-01-02 15:04"), subject, what, change.Reference)
}
