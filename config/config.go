// Package config provides YAML and environment configuration for keepwarm.
//
// This package enables running keepwarm as a standalone binary with a
// configuration file and environment overrides, as an alternative to the
// programmatic SDK approach.
//
// Example configuration:
//
//	title: Resume API
//	port: 5000
//
//	url: https://${API_HOST:-api.example.com}/evaluate
//	method: POST
//	interval: 3m
//	max_history: 100
//
//	headers:
//	  Content-Type: application/json
//	  Authorization: Bearer ${API_TOKEN}
//
//	body:
//	  job_description: Software Engineer
//	  resume_data:
//	    skills: [Go, SQL]
//
// Mapping keys in body keep the order they are written in.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultPort is the dashboard port when none is configured.
	DefaultPort = 5000

	// DefaultLogLevel is used when no log level is configured.
	DefaultLogLevel = "info"

	// DefaultLogMaxSizeMB is the size at which the log file is rotated.
	DefaultLogMaxSizeMB = 1

	// DefaultLogBackups is the number of rotated log files kept.
	DefaultLogBackups = 5
)

// Body types accepted by the body_type key.
const (
	// BodyTypeStructured encodes body according to the Content-Type header.
	BodyTypeStructured = "structured"

	// BodyTypeRaw sends body, which must be a string, unchanged.
	BodyTypeRaw = "raw"
)

// Config is the root configuration structure for keepwarm.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML, or [Default] when no
// file is used, then [ApplyEnv] for environment overrides.
type Config struct {
	// Title is the dashboard title. Defaults to "Keep Warm" if not set.
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 5000.
	Port int `yaml:"port"`

	// URL is the endpoint to keep warm.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	URL string `yaml:"url"`

	// Method is the HTTP method. Defaults to POST.
	Method string `yaml:"method"`

	// Headers are sent with every ping.
	// Values support environment variable substitution.
	Headers map[string]string `yaml:"headers"`

	// Body is the request payload: any YAML value.
	Body yaml.Node `yaml:"body"`

	// BodyType is "structured" (default) or "raw".
	BodyType string `yaml:"body_type"`

	// Interval is the time between pings. Accepts duration strings like
	// "3m" or a plain number of seconds. Values below one minute are raised
	// to one minute. Defaults to 3m.
	Interval Duration `yaml:"interval"`

	// MaxHistory bounds the in-memory ping history. Defaults to 100.
	MaxHistory int `yaml:"max_history"`

	// LogLevel is one of debug, info, warn or error. Defaults to info.
	LogLevel string `yaml:"log_level"`

	// LogFile, if set, receives a copy of every log line. The file is
	// rotated once it reaches LogMaxSizeMB.
	LogFile string `yaml:"log_file"`

	// LogMaxSizeMB is the rotation size of LogFile in megabytes. Defaults to 1.
	LogMaxSizeMB int `yaml:"log_max_size_mb"`

	// LogBackups is how many rotated copies of LogFile are kept. Defaults to 5.
	LogBackups int `yaml:"log_backups"`

	// JournalPath, if set, enables the SQLite result journal at that path.
	JournalPath string `yaml:"journal_path"`

	// Autostart starts pinging when the server starts. Defaults to true.
	Autostart *bool `yaml:"autostart"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
//
// A bare integer is read as seconds.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := parseDuration(s)
	if err != nil {
		return err
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return parsed, nil
}

// AutostartEnabled reports whether pinging should start with the server.
func (c *Config) AutostartEnabled() bool {
	return c.Autostart == nil || *c.Autostart
}

// Level returns the configured log level.
func (c *Config) Level() (slog.Level, error) {
	return ParseLevel(c.LogLevel)
}

// ParseLevel parses a log level name. Besides the slog names it accepts
// "warning" and "critical".
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return slog.LevelInfo, nil
	case "warning":
		return slog.LevelWarn, nil
	case "critical", "fatal":
		return slog.LevelError, nil
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in URL and Header values. Defaults are
// applied for Port, Method, Interval, MaxHistory and LogLevel. The URL is
// not required here because it may come from the environment; it is checked
// by [BuildConfiguration].
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = DefaultLogMaxSizeMB
	}
	if c.LogBackups == 0 {
		c.LogBackups = DefaultLogBackups
	}
	if c.BodyType == "" {
		c.BodyType = BodyTypeStructured
	}
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.URL != "" {
		expanded, err := expandEnvVars(c.URL)
		if err != nil {
			return fmt.Errorf("url: %w", err)
		}
		c.URL = expanded
	}

	for k, v := range c.Headers {
		expanded, err := expandEnvVars(v)
		if err != nil {
			return fmt.Errorf("headers[%s]: %w", k, err)
		}
		c.Headers[k] = expanded
	}

	return c.validate()
}

// validate checks the values that do not depend on the environment.
func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.Interval.Duration() < 0 {
		return fmt.Errorf("interval cannot be negative, got %s", c.Interval.Duration())
	}
	if c.MaxHistory < 0 {
		return fmt.Errorf("max_history must be at least 1, got %d", c.MaxHistory)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if c.LogMaxSizeMB < 0 {
		return fmt.Errorf("log_max_size_mb cannot be negative, got %d", c.LogMaxSizeMB)
	}
	if c.LogBackups < 0 {
		return fmt.Errorf("log_backups cannot be negative, got %d", c.LogBackups)
	}

	switch c.BodyType {
	case BodyTypeStructured:
	case BodyTypeRaw:
		if c.Body.Kind != 0 && (c.Body.Kind != yaml.ScalarNode || c.Body.ShortTag() == "!!null") {
			return fmt.Errorf("body_type raw requires body to be a string")
		}
	default:
		return fmt.Errorf("body_type must be %q or %q, got %q", BodyTypeStructured, BodyTypeRaw, c.BodyType)
	}

	return nil
}
