// Package kwin tracks the focused window on KWin Wayland. The flow
// is inverted relative to the other families: a script injected into
// KWin (the external collaborator installed by Setup) calls
// NotifyActiveWindow on this project's bus service for every focus
// change, and this adapter only verifies the script is present and
// relays its pushes into the hub.
package kwin

import (
	"context"
	"os"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/winctx/winctx/internal/hub"
	"github.com/winctx/winctx/pkg/window"
)

// ScriptName is the ID the companion script is installed under.
const ScriptName = "winctx-notifyactivewindow"

const (
	kwinBusName    = "org.kde.KWin"
	kwinPath       = "/KWin"
	scriptingPath  = "/Scripting"
	scriptingIface = "org.kde.kwin.Scripting"
)

// processName must fit the kernel's 15-character comm limit.
const processName = "winctx-kwin-svc"

const (
	scriptCheckAttempts = 5
	scriptCheckDelay    = 3 * time.Second
)

// Adapter verifies the KWin-side script and relays its notifications.
type Adapter struct {
	hub         *hub.Hub
	conn        *dbus.Conn
	callTimeout time.Duration
	log         zerolog.Logger
}

// New connects to the session bus.
func New(h *hub.Hub, callTimeout time.Duration, log zerolog.Logger) (*Adapter, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to session bus")
	}
	return &Adapter{
		hub:         h,
		conn:        conn,
		callTimeout: callTimeout,
		log:         log,
	}, nil
}

// Close drops the bus connection.
func (a *Adapter) Close() error { return a.conn.Close() }

// SetProcessName renames the process comm so the service is
// recognizable in the process table.
func SetProcessName() error {
	return os.WriteFile("/proc/self/comm", []byte(processName), 0o644)
}

// Notify receives one focus change pushed by the KWin script. Wire it
// into the bus service's notify handler before starting the service.
func (a *Adapter) Notify(caption, resourceClass, resourceName string) {
	a.hub.Publish(window.Context{
		AppID:      resourceName,
		AppClass:   resourceClass,
		Title:      caption,
		ObservedAt: time.Now(),
		Source:     window.KindKwin,
	})
}

// Run confirms the KWin script is loaded, nudges KWin to re-announce
// the current window, and then waits: focus data arrives through
// Notify, not through anything this loop does.
func (a *Adapter) Run(ctx context.Context) error {
	if err := a.ensureScript(ctx); err != nil {
		return err
	}
	if err := a.reconfigure(ctx); err != nil {
		a.log.Warn().Err(err).Msg("kwin reconfigure nudge failed")
	}
	<-ctx.Done()
	return nil
}

// ensureScript polls KWin's scripting interface for the companion
// script. Right after login KWin can take a while to load scripts, so
// it retries with reconfigure nudges in between before giving up.
func (a *Adapter) ensureScript(ctx context.Context) error {
	var lastErr error
	for i := 0; i < scriptCheckAttempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(scriptCheckDelay):
			}
			if err := a.reconfigure(ctx); err != nil {
				a.log.Debug().Err(err).Msg("kwin reconfigure failed")
			}
		}

		loaded, err := a.isScriptLoaded(ctx)
		if err != nil {
			lastErr = err
			a.log.Warn().Err(err).Msg("cannot query KWin scripting")
			continue
		}
		if loaded {
			a.log.Info().Str("script", ScriptName).Msg("KWin script is loaded")
			return nil
		}
		lastErr = nil
	}
	if lastErr != nil {
		return errors.Wrap(lastErr, "KWin scripting interface unreachable; is this a KWin session?")
	}
	return errors.Errorf("KWin script %s is not loaded; run 'winctx-kwin setup' to install it", ScriptName)
}

func (a *Adapter) isScriptLoaded(ctx context.Context) (bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()

	var loaded bool
	err := a.conn.Object(kwinBusName, scriptingPath).
		CallWithContext(callCtx, scriptingIface+".isScriptLoaded", 0, ScriptName).
		Store(&loaded)
	if err != nil {
		return false, err
	}
	return loaded, nil
}

func (a *Adapter) reconfigure(ctx context.Context) error {
	callCtx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()

	return a.conn.Object(kwinBusName, kwinPath).
		CallWithContext(callCtx, "org.kde.KWin.reconfigure", 0).
		Err
}
