package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/keepwarm"
)

// runCmd pings without the dashboard.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Ping on an interval without the dashboard",
	Long: `Ping the configured target on its interval until interrupted.

This is the lightweight mode for hosts that only need the target kept warm:
no HTTP server is started and logged response excerpts are limited to 200
characters. Results are still written to the journal when journal_path or
JOURNAL_PATH is set.

Example:
  keepwarm run -c keepwarm.yaml
  PING_URL=https://my-app.onrender.com PING_INTERVAL=300 keepwarm run`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	addConfigFlag(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, target, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	opts := []keepwarm.Option{
		keepwarm.WithLogger(logger),
		keepwarm.WithExcerptLimit(keepwarm.LightweightExcerptLimit),
	}

	jr, err := openJournal(cfg, logger)
	if err != nil {
		return err
	}
	if jr != nil {
		defer jr.Close()
		// the configuration never changes in this mode
		opts = append(opts, keepwarm.WithResultCallback(jr.Recorder(func() string {
			return target.URL
		}, logger)))
	}

	ctrl, err := keepwarm.New(target, opts...)
	if err != nil {
		return fmt.Errorf("failed to create controller: %w", err)
	}
	defer ctrl.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := ctrl.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}
