package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ExportRecord represents one transaction log entry written to Beancount.
type ExportRecord struct {
	ID            int64
	LogID         int64
	EntryDate     string
	Amount        decimal.Decimal
	BeancountFile string
	ExportedAt    time.Time
}

// ExportHistory manages export history operations.
type ExportHistory struct {
	conn *Connection
}

// NewExportHistory creates a new ExportHistory instance.
func NewExportHistory(conn *Connection) *ExportHistory {
	return &ExportHistory{conn: conn}
}

// RecordExport records that a log entry was exported.
// If the entry was already recorded, the file and amount are updated.
func (h *ExportHistory) RecordExport(record ExportRecord) error {
	query := `
		INSERT INTO export_history (log_id, entry_date, amount, beancount_file)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(log_id) DO UPDATE SET
			entry_date = excluded.entry_date,
			amount = excluded.amount,
			beancount_file = excluded.beancount_file,
			exported_at = CURRENT_TIMESTAMP
	`

	_, err := h.conn.Exec(query,
		record.LogID,
		record.EntryDate,
		money(record.Amount),
		record.BeancountFile,
	)
	if err != nil {
		return fmt.Errorf("failed to record export: %w", err)
	}

	return nil
}

// IsExported checks if a log entry has been exported.
func (h *ExportHistory) IsExported(logID int64) (bool, error) {
	var count int
	err := h.conn.QueryRow(`SELECT COUNT(*) FROM export_history WHERE log_id = ?`, logID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check if exported: %w", err)
	}

	return count > 0, nil
}

// GetExportedIDs retrieves all exported log IDs.
// This is useful for bulk filtering.
func (h *ExportHistory) GetExportedIDs() (map[int64]bool, error) {
	rows, err := h.conn.GetDB().Query(`SELECT log_id FROM export_history`)
	if err != nil {
		return nil, fmt.Errorf("failed to get exported IDs: %w", err)
	}
	defer rows.Close()

	ids := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan log ID: %w", err)
		}
		ids[id] = true
	}

	return ids, rows.Err()
}

// Stats represents export and ledger statistics.
type Stats struct {
	TotalMembers    int
	OpenBorrowings  int
	LogEntries      int
	ExportedEntries int
	LastExport      sql.NullString
}

// GetStats retrieves export and ledger statistics.
func (h *ExportHistory) GetStats() (*Stats, error) {
	var stats Stats

	err := h.conn.QueryRow(`SELECT COUNT(*) FROM person`).Scan(&stats.TotalMembers)
	if err != nil {
		return nil, fmt.Errorf("failed to get member count: %w", err)
	}

	err = h.conn.QueryRow(`SELECT COUNT(*) FROM borrowing WHERE status = 'OPEN'`).Scan(&stats.OpenBorrowings)
	if err != nil {
		return nil, fmt.Errorf("failed to get open borrowing count: %w", err)
	}

	err = h.conn.QueryRow(`SELECT COUNT(*) FROM transaction_log`).Scan(&stats.LogEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to get log entry count: %w", err)
	}

	err = h.conn.QueryRow(`SELECT COUNT(*) FROM export_history`).Scan(&stats.ExportedEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to get export count: %w", err)
	}

	err = h.conn.QueryRow(`SELECT MAX(exported_at) FROM export_history`).Scan(&stats.LastExport)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get last export time: %w", err)
	}

	return &stats, nil
}

// GetMetadata retrieves a metadata value.
func (h *ExportHistory) GetMetadata(key string) (string, error) {
	var value string
	err := h.conn.QueryRow(`SELECT value FROM club_metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get metadata: %w", err)
	}

	return value, nil
}

// SetMetadata sets a metadata value.
func (h *ExportHistory) SetMetadata(key, value string) error {
	query := `
		INSERT INTO club_metadata (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`

	if _, err := h.conn.Exec(query, key, value); err != nil {
		return fmt.Errorf("failed to set metadata: %w", err)
	}

	return nil
}
