// Package wlroots tracks the focused window on wlroots compositors
// through zwlr_foreign_toplevel_manager_v1, the foreign toplevel
// management protocol implemented by Sway, Hyprland, Wayfire, river
// and most other wlroots-based compositors. It is the fallback family
// for Wayland sessions that are neither GNOME, KDE nor COSMIC.
package wlroots

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/winctx/winctx/internal/hub"
	"github.com/winctx/winctx/internal/wayland"
	"github.com/winctx/winctx/pkg/window"
)

const managerInterface = "zwlr_foreign_toplevel_manager_v1"

// zwlr_foreign_toplevel_manager_v1.
const (
	managerEvtToplevel uint16 = 0
	managerEvtFinished uint16 = 1
)

// zwlr_foreign_toplevel_handle_v1.
const (
	handleReqDestroy uint16 = 7

	handleEvtTitle  uint16 = 0
	handleEvtAppID  uint16 = 1
	handleEvtState  uint16 = 4
	handleEvtClosed uint16 = 6
)

// stateActivated is the toplevel state enum value for keyboard focus.
const stateActivated = 2

type toplevel struct {
	appID string
	title string
}

// Adapter tracks every announced toplevel and publishes the activated
// one into the hub. All events are handled on the Run goroutine, so
// the bookkeeping map needs no locking.
type Adapter struct {
	hub  *hub.Hub
	conn *wayland.Conn
	log  zerolog.Logger

	toplevels map[uint32]*toplevel
	activeID  uint32
	hasActive bool
}

// New connects to the compositor socket named by the session
// environment.
func New(h *hub.Hub, log zerolog.Logger) (*Adapter, error) {
	conn, err := wayland.Dial(log)
	if err != nil {
		return nil, err
	}
	return newAdapter(conn, h, log), nil
}

func newAdapter(conn *wayland.Conn, h *hub.Hub, log zerolog.Logger) *Adapter {
	return &Adapter{
		hub:       h,
		conn:      conn,
		log:       log,
		toplevels: make(map[uint32]*toplevel),
	}
}

// Close terminates the compositor connection.
func (a *Adapter) Close() error {
	return a.conn.Close()
}

// Run binds the toplevel manager and dispatches compositor events
// until ctx ends or the connection fails. A compositor that does not
// advertise the protocol is reported as an error, so the service
// exits as unavailable instead of idling silently.
func (a *Adapter) Run(ctx context.Context) error {
	reg, err := a.conn.GetRegistry()
	if err != nil {
		return err
	}
	if err := a.conn.Roundtrip(ctx); err != nil {
		return errors.Wrap(err, "wayland registry roundtrip failed")
	}

	mgr, ok := reg.Find(managerInterface)
	if !ok {
		return errors.Errorf("compositor does not advertise %s; toplevel tracking is unavailable here", managerInterface)
	}
	if _, err := reg.Bind(mgr, mgr.Version, a.managerEvent); err != nil {
		return err
	}
	if err := a.conn.Roundtrip(ctx); err != nil {
		return errors.Wrap(err, "toplevel listing roundtrip failed")
	}
	a.log.Info().
		Uint32("protocol_version", mgr.Version).
		Int("toplevels", len(a.toplevels)).
		Msg("tracking wlroots toplevels")

	for {
		if err := a.conn.Dispatch(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (a *Adapter) managerEvent(opcode uint16, args *wayland.Args) error {
	switch opcode {
	case managerEvtToplevel:
		id, err := args.Uint32()
		if err != nil {
			return err
		}
		a.toplevels[id] = &toplevel{}
		a.conn.Register(id, func(op uint16, ev *wayland.Args) error {
			return a.handleEvent(id, op, ev)
		})
	case managerEvtFinished:
		return errors.New("compositor finished the foreign toplevel protocol")
	}
	return nil
}

func (a *Adapter) handleEvent(id uint32, opcode uint16, args *wayland.Args) error {
	t := a.toplevels[id]
	if t == nil {
		return nil
	}
	switch opcode {
	case handleEvtTitle:
		s, err := args.String()
		if err != nil {
			return err
		}
		t.title = s
		a.republish(id, t)
	case handleEvtAppID:
		s, err := args.String()
		if err != nil {
			return err
		}
		t.appID = s
		a.republish(id, t)
	case handleEvtState:
		b, err := args.Array()
		if err != nil {
			return err
		}
		// Deactivation is implicit in the next window's activation,
		// so states without the flag are ignored.
		if activated(wayland.UintArray(b)) {
			a.activeID = id
			a.hasActive = true
			a.publish(t)
		}
	case handleEvtClosed:
		a.removeToplevel(id)
	}
	return nil
}

// republish pushes identity changes of the already focused window,
// covering title updates that arrive without a new activation.
func (a *Adapter) republish(id uint32, t *toplevel) {
	if a.hasActive && a.activeID == id {
		a.publish(t)
	}
}

func (a *Adapter) publish(t *toplevel) {
	appID := t.appID
	if appID == "" {
		appID = window.NoWlrAppClass
	}
	title := t.title
	if title == "" {
		title = window.NoWlrTitle
	}
	a.hub.Publish(window.Context{
		AppID:      appID,
		AppClass:   appID,
		Title:      title,
		ObservedAt: time.Now(),
		Source:     window.KindWlroots,
	})
}

// removeToplevel destroys the handle of a closed window. The last
// published context stays current until another window activates.
func (a *Adapter) removeToplevel(id uint32) {
	delete(a.toplevels, id)
	if err := a.conn.Send(wayland.NewRequest(id, handleReqDestroy)); err != nil {
		a.log.Warn().Err(err).Msg("failed to destroy toplevel handle")
	}
	a.conn.Deregister(id)
	if a.hasActive && a.activeID == id {
		a.hasActive = false
	}
}

func activated(states []uint32) bool {
	for _, s := range states {
		if s == stateActivated {
			return true
		}
	}
	return false
}
