package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jpalmerr/keepwarm"
)

// Environment variables read by [ApplyEnv].
const (
	EnvURL         = "PING_URL"
	EnvMethod      = "PING_METHOD"
	EnvInterval    = "PING_INTERVAL"
	EnvData        = "PING_DATA"
	EnvHeaders     = "PING_HEADERS"
	EnvMaxHistory  = "MAX_HISTORY"
	EnvLogLevel    = "LOG_LEVEL"
	EnvLogFile     = "LOG_FILE"
	EnvPort        = "PORT"
	EnvJournalPath = "JOURNAL_PATH"
)

// LookupFunc reports the value of an environment variable and whether it is
// set. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides cfg with any environment variables that are set.
//
// PING_INTERVAL and MAX_HISTORY must be integers; a PING_INTERVAL of zero or
// less selects the one minute floor. PING_DATA must be JSON and
// PING_HEADERS must be a JSON object whose entries are merged over the
// configured headers. A malformed value is an error and leaves cfg only
// partially updated, so callers should discard it.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	if v, ok := lookup(EnvURL); ok {
		cfg.URL = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvMethod); ok {
		cfg.Method = strings.ToUpper(strings.TrimSpace(v))
	}

	if v, ok := lookup(EnvInterval); ok {
		secs, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: expected whole seconds, got %q", EnvInterval, v)
		}
		cfg.Interval = Duration(time.Duration(secs) * time.Second)
		if secs <= 0 {
			cfg.Interval = Duration(keepwarm.MinInterval)
		}
	}

	if v, ok := lookup(EnvMaxHistory); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: expected an integer, got %q", EnvMaxHistory, v)
		}
		cfg.MaxHistory = n
	}

	if v, ok := lookup(EnvLogLevel); ok {
		cfg.LogLevel = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvLogFile); ok {
		cfg.LogFile = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvJournalPath); ok {
		cfg.JournalPath = strings.TrimSpace(v)
	}

	if v, ok := lookup(EnvPort); ok {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: expected an integer, got %q", EnvPort, v)
		}
		cfg.Port = port
	}

	if v, ok := lookup(EnvData); ok {
		body, err := keepwarm.ParseJSONBody(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvData, err)
		}
		cfg.Body = yaml.Node{}
		if node := body.Node(); node != nil {
			cfg.Body = *node
		}
		cfg.BodyType = BodyTypeStructured
	}

	if v, ok := lookup(EnvHeaders); ok {
		var headers map[string]string
		if err := json.Unmarshal([]byte(v), &headers); err != nil {
			return fmt.Errorf("%s: expected a JSON object of strings: %w", EnvHeaders, err)
		}
		cfg.Headers = keepwarm.MergeHeaders(cfg.Headers, headers)
	}

	return cfg.validate()
}
