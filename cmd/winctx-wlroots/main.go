package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/winctx/winctx/internal/config"
	"github.com/winctx/winctx/internal/hub"
	"github.com/winctx/winctx/internal/service"
	"github.com/winctx/winctx/pkg/adapters/wlroots"
	"github.com/winctx/winctx/pkg/window"
)

const name = "winctx-wlroots"

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

	code := service.Run(window.KindWlroots, opts, buildAdapter)
	os.Exit(code)
}

func buildAdapter(cfg *config.Config, h *hub.Hub, log zerolog.Logger) (service.Adapter, error) {
	return wlroots.New(h, log)
}

func printUsage(fs *pflag.FlagSet) {
	fmt.Printf(`%s tracks the focused window on wlroots-based Wayland
compositors (Sway, Hyprland, Wayfire, river and others) through the
foreign-toplevel-management protocol and publishes it on the session
bus as org.winctx.Wlroots.

This is the fallback family: it runs on any Wayland session that is
not claimed by a more specific adapter. It exits cleanly (status 0)
on X11 sessions and on sessions owned by the GNOME, KDE or COSMIC
services, and with status 1 when the compositor does not speak the
foreign-toplevel protocol.

Usage:
  %s [flags]

Flags:
%s`, name, name, fs.FlagUsages())
}
