package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/keepwarm"
)

// validateCmd validates a config file without pinging.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a keepwarm configuration file without pinging anything.

This command parses the YAML, expands environment variables, applies the
environment overrides and prints the effective configuration, including the
clamped interval. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  keepwarm validate -c keepwarm.yaml
  keepwarm validate --config /etc/keepwarm/keepwarm.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	addConfigFlag(validateCmd)
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, target, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Target:      %s %s\n", target.Method, target.URL)
	fmt.Fprintf(out, "  Interval:    %s", target.Interval)
	if raw := cfg.Interval.Duration(); raw != 0 && raw < keepwarm.MinInterval {
		fmt.Fprintf(out, " (raised from %s)", raw)
	}
	fmt.Fprintf(out, "\n")
	fmt.Fprintf(out, "  Max history: %d\n", target.MaxHistory)
	fmt.Fprintf(out, "  Headers:     %d\n", len(target.Headers))
	fmt.Fprintf(out, "  Body:        %s\n", target.Body.Kind())
	fmt.Fprintf(out, "  Port:        %d\n", cfg.Port)
	if cfg.JournalPath != "" {
		fmt.Fprintf(out, "  Journal:     %s\n", cfg.JournalPath)
	}
	if cfg.LogFile != "" {
		fmt.Fprintf(out, "  Log file:    %s (rotated at %d MB, %d backups)\n", cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogBackups)
	}

	return nil
}
