package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/winctx/winctx/internal/config"
	"github.com/winctx/winctx/internal/hub"
	"github.com/winctx/winctx/internal/service"
	"github.com/winctx/winctx/pkg/adapters/cosmic"
	"github.com/winctx/winctx/pkg/window"
)

const name = "winctx-cosmic"

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

	code := service.Run(window.KindCosmic, opts, buildAdapter)
	os.Exit(code)
}

func buildAdapter(cfg *config.Config, h *hub.Hub, log zerolog.Logger) (service.Adapter, error) {
	return cosmic.New(h, log)
}

func printUsage(fs *pflag.FlagSet) {
	fmt.Printf(`%s tracks the focused window under COSMIC through the
compositor's toplevel-info protocol and publishes it on the session
bus as org.winctx.Cosmic.

The service exits cleanly (status 0) when the session is not COSMIC,
so it is safe to enable under every desktop. It exits with status 1
when the compositor does not speak the toplevel-info protocol.

Usage:
  %s [flags]

Flags:
%s`, name, name, fs.FlagUsages())
}
