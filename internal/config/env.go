package config

import (
	"os"
	"strconv"
	"time"
)

// LoadFromEnv loads configuration from environment variables
// Environment variables override defaults and config-file values
func LoadFromEnv(cfg *Config) {
	// Journal configuration
	if path := os.Getenv("WINCTX_JOURNAL_PATH"); path != "" {
		cfg.Journal.Path = path
	}

	if enabled := os.Getenv("WINCTX_JOURNAL"); enabled != "" {
		if val, err := strconv.ParseBool(enabled); err == nil {
			cfg.Journal.Enabled = val
		}
	}

	// Adapter configuration
	if poll := os.Getenv("WINCTX_POLL_INTERVAL"); poll != "" {
		if interval, err := time.ParseDuration(poll); err == nil {
			if interval >= cfg.Adapter.MinPollInterval && interval <= cfg.Adapter.MaxPollInterval {
				cfg.Adapter.PollInterval = interval
			}
		}
	}

	if delay := os.Getenv("WINCTX_EXIT_DELAY"); delay != "" {
		if d, err := time.ParseDuration(delay); err == nil && d >= 0 {
			cfg.Adapter.ExitDelay = d
		}
	}

	// Bus configuration
	if timeout := os.Getenv("WINCTX_BUS_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil && d > 0 {
			cfg.Bus.CallTimeout = d
		}
	}

	// Daemon configuration
	if pidFile := os.Getenv("WINCTX_PID_FILE"); pidFile != "" {
		cfg.Daemon.PIDFile = pidFile
	}

	// Web configuration
	if enabled := os.Getenv("WINCTX_WEB"); enabled != "" {
		if val, err := strconv.ParseBool(enabled); err == nil {
			cfg.Web.Enabled = val
		}
	}

	if webHost := os.Getenv("WINCTX_WEB_HOST"); webHost != "" {
		cfg.Web.Host = webHost
	}

	if webPort := os.Getenv("WINCTX_WEB_PORT"); webPort != "" {
		if port, err := strconv.Atoi(webPort); err == nil && port > 0 && port <= 65535 {
			cfg.Web.Port = port
		}
	}

	// Log configuration
	if level := os.Getenv("WINCTX_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}

	if file := os.Getenv("WINCTX_LOG_FILE"); file != "" {
		cfg.Log.File = file
	}

	// Detection overrides: the dedicated env vars beat the config
	// file, consistent with the probe's own resolver.
	if de := os.Getenv("WINCTX_OVERRIDE_DESKTOP_ENV"); de != "" {
		cfg.Overrides.DesktopEnv = de
	}

	if wm := os.Getenv("WINCTX_OVERRIDE_WINDOW_MGR"); wm != "" {
		cfg.Overrides.WindowManager = wm
	}
}
