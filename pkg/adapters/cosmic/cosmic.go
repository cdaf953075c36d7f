// Package cosmic tracks the focused window on the COSMIC desktop
// through the compositor's zcosmic_toplevel_info_v1 protocol.
//
// Protocol version 1 delivers title, app_id and state on the cosmic
// handle itself. Version 2 deprecated that path: identity events
// moved to ext_foreign_toplevel_list_v1 handles and the cosmic handle
// kept state and lifecycle, so the adapter pairs the two objects per
// window.
package cosmic

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/winctx/winctx/internal/hub"
	"github.com/winctx/winctx/internal/wayland"
	"github.com/winctx/winctx/pkg/window"
)

const (
	infoInterface = "zcosmic_toplevel_info_v1"
	listInterface = "ext_foreign_toplevel_list_v1"
)

// zcosmic_toplevel_info_v1.
const (
	infoReqGetCosmicToplevel uint16 = 1

	infoEvtToplevel uint16 = 0
	infoEvtFinished uint16 = 1
)

// zcosmic_toplevel_handle_v1.
const (
	cosmicReqDestroy uint16 = 0

	cosmicEvtClosed uint16 = 0
	cosmicEvtTitle  uint16 = 2
	cosmicEvtAppID  uint16 = 3
	cosmicEvtState  uint16 = 8
)

// ext_foreign_toplevel_list_v1.
const (
	listEvtToplevel uint16 = 0
	listEvtFinished uint16 = 1
)

// ext_foreign_toplevel_handle_v1.
const (
	foreignReqDestroy uint16 = 0

	foreignEvtTitle uint16 = 2
	foreignEvtAppID uint16 = 3
)

// stateActivated is the toplevel_state enum value for keyboard focus.
const stateActivated = 2

type toplevel struct {
	appID string
	title string
}

// Adapter speaks the toplevel protocols over one compositor
// connection and publishes the activated window into the hub. All
// events are handled on the Run goroutine, so the bookkeeping maps
// need no locking.
type Adapter struct {
	hub  *hub.Hub
	conn *wayland.Conn
	log  zerolog.Logger

	infoVersion uint32
	infoID      uint32

	// Keyed by the identity handle: the foreign handle from the ext
	// list on protocol v2 and later, the cosmic handle itself on v1.
	toplevels map[uint32]*toplevel

	// v2 and later only: cosmic state handle to its paired foreign
	// identity handle.
	cosmicToForeign map[uint32]uint32

	activeKey uint32
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
		hub:             h,
		conn:            conn,
		log:             log,
		toplevels:       make(map[uint32]*toplevel),
		cosmicToForeign: make(map[uint32]uint32),
	}
}

// Close terminates the compositor connection.
func (a *Adapter) Close() error {
	return a.conn.Close()
}

// Run binds the toplevel protocols and dispatches compositor events
// until ctx ends or the connection fails. A compositor that does not
// advertise the cosmic toplevel protocol is reported as an error, so
// the service exits as unavailable instead of idling silently.
func (a *Adapter) Run(ctx context.Context) error {
	reg, err := a.conn.GetRegistry()
	if err != nil {
		return err
	}
	if err := a.conn.Roundtrip(ctx); err != nil {
		return errors.Wrap(err, "wayland registry roundtrip failed")
	}

	info, ok := reg.Find(infoInterface)
	if !ok {
		return errors.Errorf("compositor does not advertise %s; not a COSMIC session?", infoInterface)
	}
	a.infoVersion = info.Version
	a.infoID, err = reg.Bind(info, info.Version, a.infoEvent)
	if err != nil {
		return err
	}
	if a.infoVersion >= 2 {
		list, ok := reg.Find(listInterface)
		if !ok {
			return errors.Errorf("compositor advertises %s v%d but not %s", infoInterface, a.infoVersion, listInterface)
		}
		if _, err := reg.Bind(list, list.Version, a.listEvent); err != nil {
			return err
		}
	}
	if err := a.conn.Roundtrip(ctx); err != nil {
		return errors.Wrap(err, "toplevel listing roundtrip failed")
	}
	a.log.Info().
		Uint32("protocol_version", a.infoVersion).
		Int("toplevels", len(a.toplevels)).
		Msg("tracking cosmic toplevels")

	for {
		if err := a.conn.Dispatch(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (a *Adapter) infoEvent(opcode uint16, args *wayland.Args) error {
	switch opcode {
	case infoEvtToplevel:
		// Deprecated since protocol v2; v1 compositors announce each
		// window with a server-created cosmic handle.
		id, err := args.Uint32()
		if err != nil {
			return err
		}
		a.toplevels[id] = &toplevel{}
		a.conn.Register(id, func(op uint16, ev *wayland.Args) error {
			return a.cosmicEvent(id, op, ev)
		})
	case infoEvtFinished:
		return errors.New("compositor finished the cosmic toplevel info protocol")
	}
	return nil
}

func (a *Adapter) listEvent(opcode uint16, args *wayland.Args) error {
	switch opcode {
	case listEvtToplevel:
		foreignID, err := args.Uint32()
		if err != nil {
			return err
		}
		return a.addForeign(foreignID)
	case listEvtFinished:
		return errors.New("compositor finished the foreign toplevel list protocol")
	}
	return nil
}

// addForeign registers a newly announced window and requests the
// cosmic handle that will carry its state events.
func (a *Adapter) addForeign(foreignID uint32) error {
	a.toplevels[foreignID] = &toplevel{}
	a.conn.Register(foreignID, func(op uint16, ev *wayland.Args) error {
		return a.foreignEvent(foreignID, op, ev)
	})
	var cosmicID uint32
	cosmicID = a.conn.NewID(func(op uint16, ev *wayland.Args) error {
		return a.cosmicEvent(cosmicID, op, ev)
	})
	a.cosmicToForeign[cosmicID] = foreignID
	req := wayland.NewRequest(a.infoID, infoReqGetCosmicToplevel).
		PutUint32(cosmicID).
		PutUint32(foreignID)
	return a.conn.Send(req)
}

func (a *Adapter) foreignEvent(foreignID uint32, opcode uint16, args *wayland.Args) error {
	t := a.toplevels[foreignID]
	if t == nil {
		return nil
	}
	switch opcode {
	case foreignEvtTitle:
		s, err := args.String()
		if err != nil {
			return err
		}
		t.title = s
		a.republish(foreignID, t)
	case foreignEvtAppID:
		s, err := args.String()
		if err != nil {
			return err
		}
		t.appID = s
		a.republish(foreignID, t)
	}
	return nil
}

func (a *Adapter) cosmicEvent(cosmicID uint32, opcode uint16, args *wayland.Args) error {
	switch opcode {
	case cosmicEvtClosed:
		a.removeToplevel(cosmicID)
	case cosmicEvtTitle, cosmicEvtAppID:
		// Identity arrives on the foreign handle from v2 on.
		if a.infoVersion >= 2 {
			return nil
		}
		s, err := args.String()
		if err != nil {
			return err
		}
		if t := a.toplevels[cosmicID]; t != nil {
			if opcode == cosmicEvtTitle {
				t.title = s
			} else {
				t.appID = s
			}
			a.republish(cosmicID, t)
		}
	case cosmicEvtState:
		b, err := args.Array()
		if err != nil {
			return err
		}
		a.stateChanged(cosmicID, wayland.UintArray(b))
	}
	return nil
}

// stateChanged publishes the window as current when its state carries
// the activated flag. Deactivation is implicit in the next window's
// activation, so states without the flag are ignored.
func (a *Adapter) stateChanged(cosmicID uint32, states []uint32) {
	if !activated(states) {
		return
	}
	key := cosmicID
	if a.infoVersion >= 2 {
		foreignID, ok := a.cosmicToForeign[cosmicID]
		if !ok {
			return
		}
		key = foreignID
	}
	t := a.toplevels[key]
	if t == nil {
		return
	}
	a.activeKey = key
	a.hasActive = true
	a.publish(t)
}

// republish pushes identity changes of the already focused window,
// covering title updates that arrive without a new activation.
func (a *Adapter) republish(key uint32, t *toplevel) {
	if a.hasActive && a.activeKey == key {
		a.publish(t)
	}
}

func (a *Adapter) publish(t *toplevel) {
	appID := t.appID
	if appID == "" {
		appID = window.NoCosmicAppClass
	}
	title := t.title
	if title == "" {
		title = window.NoCosmicTitle
	}
	a.hub.Publish(window.Context{
		AppID:      appID,
		AppClass:   appID,
		Title:      title,
		ObservedAt: time.Now(),
		Source:     window.KindCosmic,
	})
}

// removeToplevel destroys both handles of a closed window. The last
// published context stays current until another window activates.
func (a *Adapter) removeToplevel(cosmicID uint32) {
	key := cosmicID
	if a.infoVersion >= 2 {
		if foreignID, ok := a.cosmicToForeign[cosmicID]; ok {
			key = foreignID
			delete(a.cosmicToForeign, cosmicID)
			if err := a.conn.Send(wayland.NewRequest(foreignID, foreignReqDestroy)); err != nil {
				a.log.Warn().Err(err).Msg("failed to destroy foreign toplevel handle")
			}
			a.conn.Deregister(foreignID)
		}
	} else {
		a.conn.Deregister(cosmicID)
	}
	delete(a.toplevels, key)
	if err := a.conn.Send(wayland.NewRequest(cosmicID, cosmicReqDestroy)); err != nil {
		a.log.Warn().Err(err).Msg("failed to destroy cosmic toplevel handle")
	}
	if a.hasActive && a.activeKey == key {
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
