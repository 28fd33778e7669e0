package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/keepwarm"
	"github.com/jpalmerr/keepwarm/config"
	"github.com/jpalmerr/keepwarm/dashboard"
	"github.com/jpalmerr/keepwarm/internal/journal"
	"github.com/jpalmerr/keepwarm/internal/server"
)

// serveCmd starts pinging together with the dashboard server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start pinging and serve the dashboard",
	Long: `Start the keepwarm dashboard server.

The server will:
  - Load configuration from the YAML file (if given) and the environment
  - Start pinging the target, unless autostart is false
  - Serve the dashboard UI and control API on the configured port

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  keepwarm serve -c keepwarm.yaml
  PING_URL=https://my-app.onrender.com keepwarm serve --port 8080`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	addConfigFlag(serveCmd)
	serveCmd.Flags().Int("port", 0, "dashboard port (overrides config and PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, target, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.Port = port
	}

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	var ctrl *keepwarm.Controller

	opts := []keepwarm.Option{keepwarm.WithLogger(logger)}

	jr, err := openJournal(cfg, logger)
	if err != nil {
		return err
	}
	if jr != nil {
		defer jr.Close()
		// ctrl is assigned before any ping can run
		opts = append(opts, keepwarm.WithResultCallback(jr.Recorder(func() string {
			return ctrl.Configuration().URL
		}, logger)))
	}

	ctrl, err = keepwarm.New(target, opts...)
	if err != nil {
		return fmt.Errorf("failed to create controller: %w", err)
	}
	defer ctrl.Close()

	logger.Info("config loaded",
		"url", target.URL,
		"method", target.Method,
		"interval", target.Interval.String(),
		"max_history", target.MaxHistory,
	)

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.NewServer(ctrl, cfg.Port, dashboard.Assets, cfg.Title, logger)
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	if cfg.AutostartEnabled() {
		if err := ctrl.Start(ctx); err != nil {
			return fmt.Errorf("failed to start pinging: %w", err)
		}
	} else {
		logger.Info("autostart disabled, waiting for start from the dashboard")
	}

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

// openJournal opens the result journal when one is configured.
// It returns nil when journaling is disabled.
func openJournal(cfg *config.Config, logger *slog.Logger) (*journal.Journal, error) {
	if cfg.JournalPath == "" {
		return nil, nil
	}
	jr, err := journal.Open(cfg.JournalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	logger.Info("journal enabled", "path", cfg.JournalPath)
	return jr, nil
}
