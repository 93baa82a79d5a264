package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shunichi-ikebuchi/savings-club/pkg/api"
	"github.com/shunichi-ikebuchi/savings-club/pkg/ledger"
	"github.com/shunichi-ikebuchi/savings-club/pkg/notify"
)

var (
	serveAddr        string
	dispatchInterval time.Duration
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the ledger over HTTP",
	Long: `Serve the ledger over HTTP.

This command also:
1. Runs the penalty sweep every PENALTY_INTERVAL
2. Queues change notifications in a durable outbox
3. Delivers them to Discord, or to the log when Discord is not configured

Example:
  club serve
  club serve --addr :9090`,
	Run: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default $HTTP_ADDR or :8080)")
	serveCmd.Flags().DurationVar(&dispatchInterval, "dispatch-interval", 5*time.Second, "notification outbox drain interval")
}

func runServe(cmd *cobra.Command, args []string) {
	if dispatchInterval <= 0 {
		exitOnError(fmt.Errorf("must be positive, got %s", dispatchInterval), "invalid --dispatch-interval")
	}

	c := loadClub()
	defer c.Close()

	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	outboxPath := c.paths.GetOutboxPath()
	exitOnError(c.paths.EnsureParentDir(outboxPath), "failed to create outbox directory")
	outbox, err := notify.OpenOutbox(outboxPath)
	exitOnError(err, "failed to open notification outbox")
	defer outbox.Close()

	var target ledger.Notifier = notify.NewLogNotifier(logger)
	if c.cfg.Discord.Enabled() {
		discord, err := notify.NewDiscordNotifier(c.cfg.Discord.BotToken, c.cfg.Discord.ChannelID)
		exitOnError(err, "failed to set up Discord notifications")
		target = discord
		logger.Info("discord notifications enabled", "channel_id", c.cfg.Discord.ChannelID)
	}

	c.buildEngine(logger, outbox)

	addr := serveAddr
	if addr == "" {
		addr = c.cfg.Server.Addr
	}
	server := &http.Server{
		Addr:         addr,
		Handler:      api.NewServer(c.engine, c.loc, logger).Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.engine.RunPenaltyWorker(ctx, c.cfg.Server.PenaltyInterval)
	}()
	go func() {
		defer wg.Done()
		if err := notify.NewDispatcher(outbox, target, logger).Run(ctx, dispatchInterval); err != nil {
			logger.Error("notification dispatcher failed", "error", err)
		}
	}()

	// Graceful shutdown.
	go func() {
		<-ctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}()

	logger.Info("starting savings club server",
		"addr", addr,
		"database", c.paths.GetDatabasePath(),
		"penalty_interval", c.cfg.Server.PenaltyInterval.String())

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		stop()
		wg.Wait()
		exitOnError(err, "server error")
	}

	wg.Wait()
	logger.Info("server stopped")
}
