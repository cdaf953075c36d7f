// Package provider selects and connects the window-context source
// for the current session: the in-process X11 poller on X11 sessions,
// or the owning family's context service over the session bus on
// Wayland.
package provider

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/winctx/winctx/internal/busio"
	"github.com/winctx/winctx/pkg/adapters/x11"
	"github.com/winctx/winctx/pkg/environ"
	"github.com/winctx/winctx/pkg/window"
)

// DefaultXPollInterval is the X11 property poll cadence when no
// interval is configured.
const DefaultXPollInterval = 300 * time.Millisecond

// Options tunes the connection. Zero values use defaults.
type Options struct {
	// XPollInterval is the active-window poll cadence on X11.
	XPollInterval time.Duration

	// Bus configures session-bus calls to the Wayland family
	// services.
	Bus busio.Options
}

// SelectKind maps a detected environment to the one adapter family
// that owns it. Detection failure is an error, never a guess: the
// window-manager sentinel means no family can be trusted to match.
func SelectKind(env environ.Info) (window.Kind, error) {
	if env.Unidentified() {
		return "", errors.Errorf("window manager is %s; refusing to guess a context source", environ.WMUnidentified)
	}
	switch env.SessionType {
	case environ.SessionX11:
		return window.KindX11, nil
	case environ.SessionWayland:
	default:
		return "", errors.Errorf("session type %q has no window context source", env.SessionType)
	}
	switch {
	case env.DesktopEnv == "gnome":
		return window.KindGnome, nil
	case env.WindowManager == "kwin_wayland":
		return window.KindKwin, nil
	case env.DesktopEnv == "cosmic":
		return window.KindCosmic, nil
	}
	return window.KindWlroots, nil
}

// New connects the context source for the detected environment.
func New(env environ.Info, opts Options, log zerolog.Logger) (window.Provider, error) {
	kind, err := SelectKind(env)
	if err != nil {
		return nil, err
	}
	if kind == window.KindX11 {
		poll := opts.XPollInterval
		if poll <= 0 {
			poll = DefaultXPollInterval
		}
		return x11.New(poll, log)
	}
	return busio.Dial(kind, opts.Bus, log)
}
