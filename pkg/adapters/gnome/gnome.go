// Package gnome tracks the focused window on GNOME Wayland through
// the Focused Window shell extension, which exposes a Get method on
// the org.gnome.Shell bus name. GNOME offers no compositor protocol
// for toplevel tracking, so the extension is a hard requirement.
package gnome

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/winctx/winctx/internal/busio"
	"github.com/winctx/winctx/internal/hub"
	"github.com/winctx/winctx/pkg/window"
)

const (
	shellBusName   = "org.gnome.Shell"
	extensionPath  = "/org/gnome/shell/extensions/FocusedWindow"
	extensionIface = "org.gnome.shell.extensions.FocusedWindow"
	methodGet      = extensionIface + ".Get"
)

// Consecutive-failure limits before the poll loop gives up. A missing
// extension will not heal on its own, so it gets fewer chances than a
// transient call failure.
const (
	backendMissingLimit = 3
	transientLimit      = 10
)

// shellWindow is the extension's JSON reply, reduced to the fields
// the context needs.
type shellWindow struct {
	Title           string `json:"title"`
	WmClass         string `json:"wm_class"`
	WmClassInstance string `json:"wm_class_instance"`
}

// Adapter polls the shell extension and publishes focus changes into
// the hub. The extension has no change signal, so polling is the only
// mechanism; the hub deduplicates, so consumers still see push
// semantics.
type Adapter struct {
	hub         *hub.Hub
	conn        *dbus.Conn
	obj         dbus.BusObject
	poll        time.Duration
	callTimeout time.Duration
	log         zerolog.Logger
}

// New connects to the session bus and binds the extension object.
func New(h *hub.Hub, pollInterval, callTimeout time.Duration, log zerolog.Logger) (*Adapter, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to session bus")
	}
	return &Adapter{
		hub:         h,
		conn:        conn,
		obj:         conn.Object(shellBusName, extensionPath),
		poll:        pollInterval,
		callTimeout: callTimeout,
		log:         log,
	}, nil
}

// Close drops the bus connection.
func (a *Adapter) Close() error { return a.conn.Close() }

// Run polls the extension until ctx ends. A non-nil return means the
// backend is gone for good: the extension is missing or the shell has
// stopped answering past the failure limits.
func (a *Adapter) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.poll)
	defer ticker.Stop()

	missing := 0
	transient := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		err := a.pollOnce(ctx)
		switch {
		case err == nil:
			missing = 0
			transient = 0
		case busio.IsBackendMissing(err):
			missing++
			a.log.Warn().Err(err).Int("consecutive", missing).Msg("focused-window extension not answering")
			if missing >= backendMissingLimit {
				return errors.Wrap(err, "the Focused Window shell extension is not available; install and enable it for window context on GNOME Wayland")
			}
		default:
			transient++
			a.log.Warn().Err(err).Int("consecutive", transient).Msg("focused-window poll failed")
			if transient >= transientLimit {
				return errors.Wrap(err, "gnome-shell stopped answering focused-window calls")
			}
		}
	}
}

func (a *Adapter) pollOnce(ctx context.Context) error {
	callCtx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()

	var payload string
	err := a.obj.CallWithContext(callCtx, methodGet, 0).Store(&payload)
	if err != nil {
		if isNoFocus(err) {
			a.hub.Clear()
			return nil
		}
		return err
	}

	var win shellWindow
	if err := json.Unmarshal([]byte(payload), &win); err != nil {
		return errors.Wrap(err, "malformed reply from the focused-window extension")
	}

	a.hub.Publish(window.Context{
		AppID:      win.WmClassInstance,
		AppClass:   win.WmClass,
		Title:      win.Title,
		ObservedAt: time.Now(),
		Source:     window.KindGnome,
	})
	return nil
}

// isNoFocus recognizes the extension's "No window in focus" error,
// which is a state report, not a failure.
func isNoFocus(err error) bool {
	return err != nil && strings.Contains(err.Error(), "No window in focus")
}
