// Package cmd provides CLI commands for the savings club.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/shunichi-ikebuchi/savings-club/pkg/config"
	"github.com/shunichi-ikebuchi/savings-club/pkg/db"
	"github.com/shunichi-ikebuchi/savings-club/pkg/ledger"
	"github.com/shunichi-ikebuchi/savings-club/pkg/notify"
	"github.com/shunichi-ikebuchi/savings-club/pkg/pathutil"
)

var (
	cfgFile    string
	debug      bool
	credential string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "club",
	Short: "Run a savings-and-lending club ledger",
	Long: `club keeps the books of a savings-and-lending club in SQLite.

It supports:
- Serving the ledger over HTTP with a background penalty sweep
- Managing members and the admin reset
- Exporting the transaction log to Beancount files
- Auditing pool balances against the transaction log

Example:
  club serve
  club member add "Alice" --credential $CLUB_CREDENTIAL
  club export --month 2025-03`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Setup logging
		logLevel := slog.LevelInfo
		if debug {
			logLevel = slog.LevelDebug
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: logLevel,
		}))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&credential, "credential", os.Getenv("CLUB_CREDENTIAL"),
		"admin credential for admin commands (default $CLUB_CREDENTIAL)")

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(memberCmd)
	rootCmd.AddCommand(penaltiesCmd)
	rootCmd.AddCommand(shareCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statsCmd)
}

// Helper function to get config file path.
func getConfigFile() string {
	if cfgFile != "" {
		return cfgFile
	}
	return "" // Will use default .env loading
}

// Helper function to handle errors and exit.
func exitOnError(err error, msg string) {
	if err != nil {
		slog.Error(msg, "error", err)
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
		os.Exit(1)
	}
}

// club bundles what every command needs.
type club struct {
	cfg    *config.Config
	paths  *pathutil.PathResolver
	conn   *db.Connection
	engine *ledger.Engine
	loc    *time.Location
}

// openClub loads the club and builds an engine that logs its changes.
func openClub() *club {
	c := loadClub()
	c.buildEngine(slog.Default(), nil)
	return c
}

// loadClub loads configuration and opens the database.
func loadClub() *club {
	cfg, err := config.Load(getConfigFile())
	exitOnError(err, "failed to load configuration")

	if err := cfg.Validate([]string{"club", "root"}, []string{"club", "timezone"}); err != nil {
		exitOnError(err, "invalid configuration")
	}
	if cfg.Debug && !debug {
		debug = true
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	paths := pathutil.New(pathutil.Config{
		Root:         cfg.Club.Root,
		DatabasePath: cfg.Club.DBPath,
		OutboxPath:   cfg.Club.OutboxPath,
		ExportDir:    cfg.Club.ExportDir,
	})

	loc, err := cfg.Location()
	exitOnError(err, "invalid configuration")

	dbPath := paths.GetDatabasePath()
	exitOnError(paths.EnsureParentDir(dbPath), "failed to create data directory")
	slog.Debug("Opening database", "path", dbPath)
	conn, err := db.Open(dbPath)
	exitOnError(err, "failed to open database")

	return &club{cfg: cfg, paths: paths, conn: conn, loc: loc}
}

// buildEngine creates the ledger engine. A nil notifier logs changes.
func (c *club) buildEngine(logger *slog.Logger, notifier ledger.Notifier) {
	policy, err := c.cfg.Policy()
	exitOnError(err, "failed to load policy")

	auth, err := c.cfg.Authorizer()
	exitOnError(err, "failed to build admin authorizer")
	if auth == nil {
		logger.Warn("no admin credential configured, admin operations are disabled")
	}

	if notifier == nil {
		notifier = notify.NewLogNotifier(logger)
	}

	c.engine, err = ledger.New(ledger.Config{
		Store:      db.NewStore(c.conn),
		Policy:     policy,
		Authorizer: auth,
		Notifier:   notifier,
		Location:   c.loc,
		Logger:     logger,
	})
	exitOnError(err, "failed to create ledger")
}

func (c *club) Close() {
	if err := c.conn.Close(); err != nil {
		slog.Warn("failed to close database", "error", err)
	}
}

func adminCredential() ledger.Credential {
	return ledger.Credential(credential)
}
