package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/jpalmerr/keepwarm"
	"github.com/jpalmerr/keepwarm/config"
)

// addConfigFlag registers the optional --config flag on cmd.
func addConfigFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", "", "path to config file (environment only if omitted)")
}

// loadConfig reads the config file named by --config, if any, applies the
// environment overrides and builds the SDK configuration.
func loadConfig(cmd *cobra.Command) (*config.Config, keepwarm.Configuration, error) {
	cfg := config.Default()

	configFile, _ := cmd.Flags().GetString("config")
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, keepwarm.Configuration{}, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	if err := config.ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, keepwarm.Configuration{}, fmt.Errorf("invalid environment override: %w", err)
	}

	target, err := config.BuildConfiguration(cfg)
	if err != nil {
		return nil, keepwarm.Configuration{}, err
	}

	return cfg, target, nil
}

// newLogger creates a JSON logger for CLI use. When the config names a log
// file, lines are written to both stderr and that file, which is rotated by
// size; the returned close function releases the file.
func newLogger(cfg *config.Config) (*slog.Logger, func() error, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, nil, err
	}

	var out io.Writer = os.Stderr
	closeFn := func() error { return nil }

	if cfg.LogFile != "" {
		rotator := newLogFile(cfg)
		out = io.MultiWriter(os.Stderr, rotator)
		closeFn = rotator.Close
	}

	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: level,
	}))
	return logger, closeFn, nil
}

// newLogFile returns the size-rotated writer for cfg.LogFile. The file is
// opened on first write.
func newLogFile(cfg *config.Config) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogBackups,
	}
}
