package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/winctx/winctx/internal/config"
	"github.com/winctx/winctx/internal/hub"
	"github.com/winctx/winctx/internal/logging"
	"github.com/winctx/winctx/internal/service"
	"github.com/winctx/winctx/pkg/adapters/kwin"
	"github.com/winctx/winctx/pkg/environ"
	"github.com/winctx/winctx/pkg/window"
)

const name = "winctx-kwin"

func main() {
	// The comm rename keeps the service recognizable in process
	// listings that truncate to the kernel's 15-character limit.
	_ = kwin.SetProcessName()

	if len(os.Args) > 1 && os.Args[1] == "setup" {
		os.Exit(runSetup(os.Args[2:]))
	}

	var opts service.Options
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	service.AddFlags(fs, &opts)

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printUsage(fs)
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
		os.Exit(2)
	}

	code := service.Run(window.KindKwin, opts, buildAdapter)
	os.Exit(code)
}

func buildAdapter(cfg *config.Config, h *hub.Hub, log zerolog.Logger) (service.Adapter, error) {
	return kwin.New(h, cfg.Bus.CallTimeout, log)
}

// runSetup installs and enables the companion KWin script, then
// verifies KWin loaded it. Run once per machine, or again after a
// Plasma major upgrade.
func runSetup(args []string) int {
	fs := pflag.NewFlagSet(name+" setup", pflag.ContinueOnError)
	var configPath, logLevel, kdeVersion string
	fs.StringVar(&configPath, "config", "", "configuration file path")
	fs.StringVar(&logLevel, "log-level", "info", "log level: trace, debug, info, warn or error")
	fs.StringVar(&kdeVersion, "kde-version", "", "Plasma major version (5 or 6), detected when empty")

	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			fmt.Printf("Usage:\n  %s setup [flags]\n\nFlags:\n%s", name, fs.FlagUsages())
			return 0
		}
		fmt.Fprintf(os.Stderr, "%s setup: %v\n", name, err)
		return 2
	}

	cfg, err := service.Load(service.Options{ConfigPath: configPath, LogLevel: logLevel})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s setup: %v\n", name, err)
		return 1
	}
	logging.Setup(cfg.Log.Level, os.Stderr)
	log := logging.WithComponent("kwin-setup")

	if kdeVersion == "" {
		probe := environ.NewProbe()
		probe.Overrides = environ.Resolver{FromConfig: cfg.Overrides}.Resolve()
		kdeVersion = probe.Detect().DEMajorVer
		log.Info().Str("kde_version", kdeVersion).Msg("detected Plasma major version")
	}

	adapter, err := kwin.New(hub.New(), cfg.Bus.CallTimeout, log)
	if err != nil {
		log.Error().Err(err).Msg("cannot reach the session bus")
		return 1
	}
	defer adapter.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := adapter.Setup(ctx, kdeVersion); err != nil {
		log.Error().Err(err).Msg("KWin script setup failed")
		return 1
	}
	fmt.Println("KWin script installed and loaded")
	return 0
}

func printUsage(fs *pflag.FlagSet) {
	fmt.Printf(`%s tracks the focused window on KDE Plasma Wayland and
publishes it on the session bus as org.winctx.Plasma.

A companion KWin script reports focus changes over the service's
NotifyActiveWindow method; install it once with "%s setup".
The service verifies the script is loaded at startup and re-enables
it when needed.

The service exits cleanly (status 0) when the session is not Plasma
Wayland. When the window manager cannot be identified at all it
refuses to guess and exits with status 1.

Usage:
  %s [flags]
  %s setup [flags]

Flags:
%s`, name, name, name, name, fs.FlagUsages())
}
