package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/keepwarm/internal/journal"
)

// reportCmd summarizes the result journal.
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize journaled ping results",
	Long: `Print a summary of the ping results recorded in the journal.

The journal is written by serve and run when journal_path or JOURNAL_PATH is
set. It is independent of the in-memory history shown on the dashboard,
which always starts empty.

Example:
  keepwarm report --journal pings.db
  keepwarm report --journal pings.db --since 7d --prune 720h`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().String("journal", "", "path to the journal database (required)")
	reportCmd.Flags().String("since", "24h", "summarize results newer than this (e.g. 90m, 24h, 7d)")
	reportCmd.Flags().String("prune", "", "delete results older than this before reporting")
	_ = reportCmd.MarkFlagRequired("journal")
}

func runReport(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("journal")
	sinceFlag, _ := cmd.Flags().GetString("since")
	pruneFlag, _ := cmd.Flags().GetString("prune")

	window, err := parseWindow(sinceFlag)
	if err != nil {
		return fmt.Errorf("invalid --since: %w", err)
	}

	jr, err := journal.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer jr.Close()

	ctx := context.Background()
	now := time.Now()
	out := cmd.OutOrStdout()

	if pruneFlag != "" {
		keep, err := parseWindow(pruneFlag)
		if err != nil {
			return fmt.Errorf("invalid --prune: %w", err)
		}
		removed, err := jr.Prune(ctx, now.Add(-keep))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Pruned %d results older than %s\n", removed, keep)
	}

	s, err := jr.Summary(ctx, now.Add(-window))
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Pings since %s\n", s.Since.Format(time.RFC3339))
	if s.Total == 0 {
		fmt.Fprintf(out, "  No pings recorded.\n")
		return nil
	}
	fmt.Fprintf(out, "  Total:        %d\n", s.Total)
	fmt.Fprintf(out, "  Successful:   %d\n", s.Successes)
	fmt.Fprintf(out, "  Failed:       %d\n", s.Failures)
	fmt.Fprintf(out, "  Success rate: %.1f%%\n", s.SuccessRate)
	fmt.Fprintf(out, "  Avg latency:  %.0f ms\n", s.AvgLatencyMs)
	fmt.Fprintf(out, "  Max latency:  %d ms\n", s.MaxLatencyMs)
	fmt.Fprintf(out, "  First:        %s\n", s.FirstAt.Format(time.RFC3339))
	fmt.Fprintf(out, "  Last:         %s\n", s.LastAt.Format(time.RFC3339))
	return nil
}

// parseWindow parses a Go duration, additionally accepting a whole number of
// days such as "7d".
func parseWindow(s string) (time.Duration, error) {
	var d time.Duration
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid day count %q", s)
		}
		d = time.Duration(n) * 24 * time.Hour
	} else {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return 0, err
		}
		d = parsed
	}
	if d <= 0 {
		return 0, fmt.Errorf("window must be positive, got %q", s)
	}
	return d, nil
}
