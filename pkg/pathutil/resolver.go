// Package pathutil provides centralized path management for the club's data directory.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathResolver manages paths for the ledger database, the notification
// outbox, and exported Beancount files.
type PathResolver struct {
	databasePath string
	outboxPath   string
	exportDir    string
}

// Config represents the configuration for PathResolver.
type Config struct {
	// Root is the club data directory (e.g., /var/lib/club)
	Root string
	// DatabasePath is the path to the SQLite ledger database
	DatabasePath string
	// OutboxPath is the path to the bbolt notification outbox
	OutboxPath string
	// ExportDir is the root directory for exported Beancount files
	ExportDir string
}

// New creates a new PathResolver with the given configuration.
// Empty paths default to {Root}/club.db, {Root}/outbox.db and {Root}/beancount.
func New(config Config) *PathResolver {
	dbPath := config.DatabasePath
	if dbPath == "" {
		dbPath = filepath.Join(config.Root, "club.db")
	}

	outboxPath := config.OutboxPath
	if outboxPath == "" {
		outboxPath = filepath.Join(config.Root, "outbox.db")
	}

	exportDir := config.ExportDir
	if exportDir == "" {
		exportDir = filepath.Join(config.Root, "beancount")
	}

	return &PathResolver{
		databasePath: dbPath,
		outboxPath:   outboxPath,
		exportDir:    exportDir,
	}
}

// GetDatabasePath returns the database file path.
func (p *PathResolver) GetDatabasePath() string {
	return p.databasePath
}

// GetOutboxPath returns the notification outbox file path.
func (p *PathResolver) GetOutboxPath() string {
	return p.outboxPath
}

// GetExportDir returns the Beancount export directory.
func (p *PathResolver) GetExportDir() string {
	return p.exportDir
}

// GetYearDir returns the export directory for a year.
// Example: /var/lib/club/beancount/2025
func (p *PathResolver) GetYearDir(year string) string {
	return filepath.Join(p.exportDir, year)
}

// GetMonthFilePath returns the export file path for a month.
// yearMonth should be in YYYY-MM format.
// Example: /var/lib/club/beancount/2025/2025-01.beancount
func (p *PathResolver) GetMonthFilePath(yearMonth string) (string, error) {
	parts := strings.Split(yearMonth, "-")
	if len(parts) != 2 || len(parts[0]) != 4 || len(parts[1]) != 2 {
		return "", fmt.Errorf("invalid year-month format: %s. Expected YYYY-MM", yearMonth)
	}

	filename := fmt.Sprintf("%s.beancount", yearMonth)
	return filepath.Join(p.GetYearDir(parts[0]), filename), nil
}

// EnsureDir creates a directory if it doesn't exist.
// It creates all parent directories as needed (like mkdir -p).
func (p *PathResolver) EnsureDir(dirPath string) error {
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dirPath, err)
	}
	return nil
}

// EnsureParentDir ensures the parent directory of a file exists.
func (p *PathResolver) EnsureParentDir(filePath string) error {
	return p.EnsureDir(filepath.Dir(filePath))
}

// FileExists checks if a file exists.
func (p *PathResolver) FileExists(filePath string) bool {
	_, err := os.Stat(filePath)
	return err == nil
}
