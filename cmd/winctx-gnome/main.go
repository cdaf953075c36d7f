package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/winctx/winctx/internal/config"
	"github.com/winctx/winctx/internal/hub"
	"github.com/winctx/winctx/internal/service"
	"github.com/winctx/winctx/pkg/adapters/gnome"
	"github.com/winctx/winctx/pkg/window"
)

const name = "winctx-gnome"

func main() {
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

	code := service.Run(window.KindGnome, opts, buildAdapter)
	os.Exit(code)
}

func buildAdapter(cfg *config.Config, h *hub.Hub, log zerolog.Logger) (service.Adapter, error) {
	return gnome.New(h, cfg.Adapter.PollInterval, cfg.Bus.CallTimeout, log)
}

func printUsage(fs *pflag.FlagSet) {
	fmt.Printf(`%s tracks the focused window on GNOME Wayland through the
Focused Window D-Bus shell extension and publishes it on the session
bus as org.winctx.Gnome.

The service exits cleanly (status 0) when the session is not GNOME
Wayland, so it is safe to enable under every desktop. It exits with
status 1 when the shell extension is not installed or not enabled.

Usage:
  %s [flags]

Flags:
%s`, name, name, fs.FlagUsages())
}
