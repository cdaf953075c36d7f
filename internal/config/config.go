package config

import (
	"fmt"
	"os"
	"time"

	"github.com/winctx/winctx/pkg/environ"
	"github.com/winctx/winctx/pkg/window"
)

// Config holds all service configuration
type Config struct {
	// Journal configuration (context event history)
	Journal JournalConfig

	// Adapter behavior configuration
	Adapter AdapterConfig

	// Bus call configuration
	Bus BusConfig

	// Environment probe configuration
	Probe ProbeConfig

	// Detection overrides (same precedence as the env vars)
	Overrides environ.PartialOverrides

	// Daemon process configuration
	Daemon DaemonConfig

	// Status web server configuration
	Web WebConfig

	// Logging configuration
	Log LogConfig
}

// JournalConfig holds journal-related configuration
type JournalConfig struct {
	Enabled bool   // Whether context/lifecycle events are recorded
	Path    string // Path to SQLite journal file
}

// AdapterConfig holds adapter behavior configuration
type AdapterConfig struct {
	PollInterval    time.Duration // How often polling adapters query the backend
	MinPollInterval time.Duration // Minimum allowed poll interval
	MaxPollInterval time.Duration // Maximum allowed poll interval
	ExitDelay       time.Duration // How long a self-terminating adapter lingers before exit
}

// BusConfig holds D-Bus call behavior configuration
type BusConfig struct {
	CallTimeout   time.Duration // Per-call timeout
	RetryAttempts int           // Attempts for transient call errors
	RetryBackoff  time.Duration // Base backoff between attempts
}

// ProbeConfig holds environment probe configuration
type ProbeConfig struct {
	SettleDelay time.Duration // Wait before the process-table session fallback
}

// DaemonConfig holds daemon process configuration
type DaemonConfig struct {
	PIDFile string // Path to PID file; empty means the per-family default
}

// WebConfig holds status web server configuration
type WebConfig struct {
	Enabled bool   // Whether to serve the status endpoints
	Host    string // Host to bind to
	Port    int    // Port to listen on
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string // zerolog level name
	File  string // Log file path; empty means stderr
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Journal: JournalConfig{
			Enabled: true,
			Path:    "", // Empty means use default ~/.local/share/winctx/journal.db
		},
		Adapter: AdapterConfig{
			PollInterval:    250 * time.Millisecond,
			MinPollInterval: 50 * time.Millisecond,
			MaxPollInterval: 5 * time.Second,
			ExitDelay:       2 * time.Second,
		},
		Bus: BusConfig{
			CallTimeout:   3 * time.Second,
			RetryAttempts: 3,
			RetryBackoff:  500 * time.Millisecond,
		},
		Probe: ProbeConfig{
			SettleDelay: 3 * time.Second,
		},
		Daemon: DaemonConfig{
			PIDFile: "", // Empty means use the per-family default
		},
		Web: WebConfig{
			Enabled: false,
			Host:    "localhost",
			Port:    10000 + os.Getuid(), // Default port based on user ID
		},
		Log: LogConfig{
			Level: "info",
			File:  "",
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Adapter.PollInterval < c.Adapter.MinPollInterval {
		return fmt.Errorf("poll interval (%v) cannot be less than minimum (%v)",
			c.Adapter.PollInterval, c.Adapter.MinPollInterval)
	}

	if c.Adapter.PollInterval > c.Adapter.MaxPollInterval {
		return fmt.Errorf("poll interval (%v) cannot be greater than maximum (%v)",
			c.Adapter.PollInterval, c.Adapter.MaxPollInterval)
	}

	if c.Adapter.ExitDelay < 0 {
		return fmt.Errorf("exit delay cannot be negative")
	}

	if c.Bus.CallTimeout <= 0 {
		return fmt.Errorf("bus call timeout must be positive, got %v", c.Bus.CallTimeout)
	}

	if c.Bus.RetryAttempts < 1 {
		return fmt.Errorf("bus retry attempts must be at least 1, got %d", c.Bus.RetryAttempts)
	}

	if c.Web.Port < 1 || c.Web.Port > 65535 {
		return fmt.Errorf("web port must be between 1 and 65535, got %d", c.Web.Port)
	}

	if c.Web.Host == "" {
		return fmt.Errorf("web host cannot be empty")
	}

	return nil
}

// PIDFileFor returns the PID file path for an adapter family,
// defaulting to a per-user path in /tmp.
func (c *Config) PIDFileFor(kind window.Kind) string {
	if c.Daemon.PIDFile != "" {
		return c.Daemon.PIDFile
	}
	return fmt.Sprintf("/tmp/winctx-%s-%d.pid", kind, os.Getuid())
}

// LogFileFor returns the log file path a detached adapter family
// writes to when no explicit log file is configured.
func (c *Config) LogFileFor(kind window.Kind) string {
	if c.Log.File != "" {
		return c.Log.File
	}
	return fmt.Sprintf("/tmp/winctx-%s-%d.log", kind, os.Getuid())
}

// SetPollInterval sets the poll interval with validation
func (c *Config) SetPollInterval(interval time.Duration) error {
	if interval < c.Adapter.MinPollInterval {
		return fmt.Errorf("poll interval cannot be less than %v", c.Adapter.MinPollInterval)
	}
	if interval > c.Adapter.MaxPollInterval {
		return fmt.Errorf("poll interval cannot be greater than %v", c.Adapter.MaxPollInterval)
	}
	c.Adapter.PollInterval = interval
	return nil
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf(`Configuration:
  Journal:
    Enabled: %v
    Path: %s
  Adapter:
    Poll Interval: %v
    Exit Delay: %v
  Bus:
    Call Timeout: %v
    Retry Attempts: %d
    Retry Backoff: %v
  Overrides:
    Desktop Env: %s
    Window Manager: %s
  Daemon:
    PID File: %s
  Web:
    Enabled: %v
    Host: %s
    Port: %d
  Log:
    Level: %s
    File: %s`,
		c.Journal.Enabled,
		c.Journal.Path,
		c.Adapter.PollInterval,
		c.Adapter.ExitDelay,
		c.Bus.CallTimeout,
		c.Bus.RetryAttempts,
		c.Bus.RetryBackoff,
		c.Overrides.DesktopEnv,
		c.Overrides.WindowManager,
		c.Daemon.PIDFile,
		c.Web.Enabled,
		c.Web.Host,
		c.Web.Port,
		c.Log.Level,
		c.Log.File,
	)
}

// New creates a configuration from defaults, the config file, and
// environment variables, in increasing priority
func New() (*Config, error) {
	cfg := Default()

	if err := LoadFile(cfg, DefaultPath()); err != nil {
		return nil, err
	}

	LoadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
