package converter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/shunichi-ikebuchi/savings-club/pkg/beancount"
	"github.com/shunichi-ikebuchi/savings-club/pkg/db"
	"github.com/shunichi-ikebuchi/savings-club/pkg/ledger"
)

// LogSource reads the ledger.
type LogSource interface {
	History(ctx context.Context, f ledger.HistoryFilter) ([]ledger.LogEntry, error)
	ListMembers(ctx context.Context) ([]ledger.Person, error)
}

// ExportTracker remembers which log entries were exported.
type ExportTracker interface {
	GetExportedIDs() (map[int64]bool, error)
	RecordExport(record db.ExportRecord) error
}

// PathResolver resolves month files.
type PathResolver interface {
	GetMonthFilePath(yearMonth string) (string, error)
}

// ExportOptions selects what to export.
type ExportOptions struct {
	// Month limits the export to one YYYY-MM month. Empty exports everything.
	Month string
	// DryRun writes the formatted transactions to Out (default stdout)
	// instead of the files.
	DryRun bool
	Out    io.Writer
}

// ExportResult summarizes an export.
type ExportResult struct {
	Exported        int
	AlreadyExported int
	Skipped         int
	Failed          int
	Files           []string
}

// Exporter appends unexported transaction log entries to monthly Beancount
// files.
type Exporter struct {
	source    LogSource
	tracker   ExportTracker
	repo      beancount.Repository
	resolver  PathResolver
	converter *Converter
	loc       *time.Location
}

// NewExporter creates an Exporter.
func NewExporter(source LogSource, tracker ExportTracker, repo beancount.Repository,
	resolver PathResolver, converter *Converter) *Exporter {
	return &Exporter{
		source:    source,
		tracker:   tracker,
		repo:      repo,
		resolver:  resolver,
		converter: converter,
		loc:       converter.loc,
	}
}

// Export converts and appends every log entry not exported yet.
func (e *Exporter) Export(ctx context.Context, opts ExportOptions) (*ExportResult, error) {
	filter := ledger.HistoryFilter{}
	if opts.Month != "" {
		start, err := time.ParseInLocation("2006-01", opts.Month, e.loc)
		if err != nil {
			return nil, fmt.Errorf("invalid month %q: expected YYYY-MM", opts.Month)
		}
		filter.Since = start
		filter.Until = start.AddDate(0, 1, 0)
	}

	entries, err := e.source.History(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to read transaction log: %w", err)
	}
	// History is newest first; files are written in ledger order.
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

	exported, err := e.tracker.GetExportedIDs()
	if err != nil {
		return nil, fmt.Errorf("failed to get exported IDs: %w", err)
	}

	members, err := e.source.ListMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	names := make(map[int64]string, len(members))
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		names[m.ID] = m.Name
		ids = append(ids, m.ID)
	}

	res := &ExportResult{}
	type pending struct {
		entry ledger.LogEntry
		txn   beancount.Transaction
	}
	byMonth := map[string][]pending{}
	var months []string

	for _, entry := range entries {
		if exported[entry.ID] {
			res.AlreadyExported++
			continue
		}
		var payee string
		if entry.PersonID != nil {
			payee = names[*entry.PersonID]
		}
		txn, ok, err := e.converter.Convert(entry, payee)
		if err != nil {
			slog.Error("Failed to convert log entry", "log_id", entry.ID, "error", err)
			res.Failed++
			continue
		}
		if !ok {
			res.Skipped++
			continue
		}
		month := txn.Date[:7]
		if _, seen := byMonth[month]; !seen {
			months = append(months, month)
		}
		byMonth[month] = append(byMonth[month], pending{entry: entry, txn: txn})
	}

	if len(months) == 0 {
		return res, nil
	}

	if opts.DryRun {
		out := opts.Out
		if out == nil {
			out = os.Stdout
		}
		for _, month := range months {
			for _, p := range byMonth[month] {
				fmt.Fprintln(out, e.converter.FormatTransaction(p.txn))
				res.Exported++
			}
		}
		return res, nil
	}

	first := byMonth[months[0]][0].txn.Date
	if _, err := e.repo.OpenAccounts(first, e.converter.Currency(), e.converter.Accounts(ids)); err != nil {
		return nil, fmt.Errorf("failed to open accounts: %w", err)
	}

	for _, month := range months {
		filePath, err := e.resolver.GetMonthFilePath(month)
		if err != nil {
			slog.Error("Failed to get month file path", "month", month, "error", err)
			res.Failed += len(byMonth[month])
			continue
		}

		written := false
		for _, p := range byMonth[month] {
			formatted := e.converter.FormatTransaction(p.txn)
			comment := fmt.Sprintf("log %d %s", p.entry.ID, p.entry.Type)
			if err := e.repo.AppendTransaction(month, formatted, comment); err != nil {
				slog.Error("Failed to append transaction", "log_id", p.entry.ID, "error", err)
				res.Failed++
				continue
			}
			written = true

			if err := e.tracker.RecordExport(db.ExportRecord{
				LogID:         p.entry.ID,
				EntryDate:     p.txn.Date,
				Amount:        p.entry.Amount,
				BeancountFile: filePath,
			}); err != nil {
				slog.Error("Failed to record export", "log_id", p.entry.ID, "error", err)
			}
			res.Exported++
		}
		if written {
			res.Files = append(res.Files, filePath)
		}
	}

	slog.Info("Export completed",
		"exported", res.Exported,
		"already_exported", res.AlreadyExported,
		"skipped", res.Skipped,
		"failed", res.Failed,
	)
	return res, nil
}
