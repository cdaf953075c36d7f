package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/winctx/winctx/pkg/environ"
)

// DefaultPath returns where the config file is expected:
// $XDG_CONFIG_HOME/winctx/config.yaml, falling back to ~/.config.
func DefaultPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "winctx", "config.yaml")
}

// fileConfig mirrors Config with optional fields so absent keys leave
// existing values alone. Durations are strings in time.ParseDuration
// syntax.
type fileConfig struct {
	Journal struct {
		Enabled *bool  `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"journal"`
	Adapter struct {
		PollInterval string `yaml:"poll_interval"`
		ExitDelay    string `yaml:"exit_delay"`
	} `yaml:"adapter"`
	Bus struct {
		CallTimeout   string `yaml:"call_timeout"`
		RetryAttempts *int   `yaml:"retry_attempts"`
		RetryBackoff  string `yaml:"retry_backoff"`
	} `yaml:"bus"`
	Probe struct {
		SettleDelay string `yaml:"settle_delay"`
	} `yaml:"probe"`
	Overrides environ.PartialOverrides `yaml:"overrides"`
	Daemon    struct {
		PIDFile string `yaml:"pid_file"`
	} `yaml:"daemon"`
	Web struct {
		Enabled *bool  `yaml:"enabled"`
		Host    string `yaml:"host"`
		Port    *int   `yaml:"port"`
	} `yaml:"web"`
	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`
}

// LoadFile merges the YAML file at path into cfg. A missing file is
// fine; a malformed one is an error.
func LoadFile(cfg *Config, path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "failed to read config file")
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return errors.Wrapf(err, "failed to parse config file %s", path)
	}

	if fc.Journal.Enabled != nil {
		cfg.Journal.Enabled = *fc.Journal.Enabled
	}
	if fc.Journal.Path != "" {
		cfg.Journal.Path = fc.Journal.Path
	}

	if err := applyDuration(&cfg.Adapter.PollInterval, fc.Adapter.PollInterval, "adapter.poll_interval"); err != nil {
		return err
	}
	if err := applyDuration(&cfg.Adapter.ExitDelay, fc.Adapter.ExitDelay, "adapter.exit_delay"); err != nil {
		return err
	}

	if err := applyDuration(&cfg.Bus.CallTimeout, fc.Bus.CallTimeout, "bus.call_timeout"); err != nil {
		return err
	}
	if fc.Bus.RetryAttempts != nil {
		cfg.Bus.RetryAttempts = *fc.Bus.RetryAttempts
	}
	if err := applyDuration(&cfg.Bus.RetryBackoff, fc.Bus.RetryBackoff, "bus.retry_backoff"); err != nil {
		return err
	}

	if err := applyDuration(&cfg.Probe.SettleDelay, fc.Probe.SettleDelay, "probe.settle_delay"); err != nil {
		return err
	}

	if fc.Overrides.DesktopEnv != "" {
		cfg.Overrides.DesktopEnv = fc.Overrides.DesktopEnv
	}
	if fc.Overrides.WindowManager != "" {
		cfg.Overrides.WindowManager = fc.Overrides.WindowManager
	}

	if fc.Daemon.PIDFile != "" {
		cfg.Daemon.PIDFile = fc.Daemon.PIDFile
	}

	if fc.Web.Enabled != nil {
		cfg.Web.Enabled = *fc.Web.Enabled
	}
	if fc.Web.Host != "" {
		cfg.Web.Host = fc.Web.Host
	}
	if fc.Web.Port != nil {
		cfg.Web.Port = *fc.Web.Port
	}

	if fc.Log.Level != "" {
		cfg.Log.Level = fc.Log.Level
	}
	if fc.Log.File != "" {
		cfg.Log.File = fc.Log.File
	}

	return nil
}

func applyDuration(dst *time.Duration, raw, key string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return errors.Wrapf(err, "invalid duration for %s", key)
	}
	*dst = d
	return nil
}
