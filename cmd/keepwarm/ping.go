package main

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/keepwarm"
)

// errPingFailed makes the command exit non-zero after the result is printed.
var errPingFailed = errors.New("ping failed")

// pingCmd sends a single ping.
var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Send one ping and print the result",
	Long: `Send a single ping to the configured target and print the result as JSON.

Exit codes:
  0 - The target answered with a 2xx status
  1 - The ping failed (non-2xx status, timeout or connection error)

Example:
  keepwarm ping -c keepwarm.yaml
  PING_URL=https://my-app.onrender.com/health PING_METHOD=GET keepwarm ping`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)

	addConfigFlag(pingCmd)
}

func runPing(cmd *cobra.Command, args []string) error {
	cfg, target, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	executor := keepwarm.NewExecutor(nil, logger, keepwarm.LightweightExcerptLimit)
	defer executor.Close()

	result := executor.Ping(context.Background(), keepwarm.BuildRequest(target), keepwarm.TriggerManual)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}

	if !result.Success {
		cmd.SilenceErrors = true
		return errPingFailed
	}
	return nil
}
