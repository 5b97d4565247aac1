package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig holds all agent-level configuration loaded from environment variables.
type AppConfig struct {
	// Port is the localhost port the agent listens on. Defaults to 8917.
	Port int `envconfig:"PORT" default:"8917"`

	// UpstreamURL is the base URL of the TruckFixGo API the agent proxies to.
	UpstreamURL string `envconfig:"TFG_UPSTREAM_URL" default:"https://app.truckfixgo.com"`

	// DataDir is the root data directory. Defaults to ~/.tfg-agent.
	DataDir string `envconfig:"TFG_AGENT_DATA_DIR"`

	// LogLevel sets the minimum log level (debug, info, warn, error). Defaults to info.
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// UpstreamTimeout bounds every upstream call. The original design left
	// fetches unbounded; a device agent cannot afford a handler pinned open
	// by a stalled radio link, so the gap is closed here.
	UpstreamTimeout time.Duration `envconfig:"TFG_UPSTREAM_TIMEOUT" default:"30s"`

	// ProbeInterval is how often the connectivity watcher probes upstream.
	ProbeInterval time.Duration `envconfig:"TFG_PROBE_INTERVAL" default:"15s"`

	// ProbePath is the upstream path probed by the connectivity watcher.
	ProbePath string `envconfig:"TFG_PROBE_PATH" default:"/health"`

	// SweepInterval is how often queued requests are replayed regardless of
	// connectivity transitions.
	SweepInterval time.Duration `envconfig:"TFG_SWEEP_INTERVAL" default:"5m"`

	// AllowedOrigins is a comma-separated list of page origins allowed to
	// call the agent. Defaults to the upstream origin.
	AllowedOrigins string `envconfig:"TFG_ALLOWED_ORIGINS"`
}

// Load reads AppConfig from environment variables using envconfig.
// DataDir defaults to ~/.tfg-agent if not set.
func Load() (*AppConfig, error) {
	var c AppConfig
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		c.DataDir = filepath.Join(home, ".tfg-agent")
	}
	if c.AllowedOrigins == "" {
		c.AllowedOrigins = c.UpstreamURL
	}
	return &c, nil
}

// SlogLevel converts the LogLevel string to a slog.Level.
// Unknown values default to slog.LevelInfo.
func (c *AppConfig) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogDir returns the path to the log directory (<data>/logs).
func (c *AppConfig) LogDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// DBPath returns the path to the agent's SQLite database.
func (c *AppConfig) DBPath() string {
	return filepath.Join(c.DataDir, "agent.db")
}

// ManifestFile returns the path to the agent manifest YAML file.
func (c *AppConfig) ManifestFile() string {
	return filepath.Join(c.DataDir, "agent.yaml")
}

// Origins returns the allowed page origins as a slice.
func (c *AppConfig) Origins() []string {
	parts := strings.Split(c.AllowedOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
