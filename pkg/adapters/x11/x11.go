// Package x11 reads the active window directly from the X server.
// Unlike the Wayland families there is no bus service in between: the
// consumer links this provider and queries the X server in process.
package x11

import (
	"context"
	"encoding/binary"
	"strings"
	"time"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/winctx/winctx/pkg/window"
)

const (
	activeWindowAttempts = 5
	activeWindowDelay    = 20 * time.Millisecond
)

var atomNames = []string{
	"_NET_ACTIVE_WINDOW",
	"_NET_WM_NAME",
	"WM_NAME",
	"WM_CLASS",
	"UTF8_STRING",
}

// Provider queries the X server for the focused window. Focus changes
// are observed by polling: the EWMH active-window property is cheap
// to read and carries no subscription state to lose.
type Provider struct {
	conn  *xgb.Conn
	root  xproto.Window
	atoms map[string]xproto.Atom
	poll  time.Duration
	log   zerolog.Logger
}

// New connects to the X server named by DISPLAY and interns the atoms
// the provider reads.
func New(pollInterval time.Duration, log zerolog.Logger) (*Provider, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to the X server")
	}

	setup := xproto.Setup(conn)
	p := &Provider{
		conn:  conn,
		root:  setup.DefaultScreen(conn).Root,
		atoms: make(map[string]xproto.Atom, len(atomNames)),
		poll:  pollInterval,
		log:   log,
	}

	for _, name := range atomNames {
		reply, err := xproto.InternAtom(conn, false, uint16(len(name)), name).Reply()
		if err != nil {
			conn.Close()
			return nil, errors.Wrapf(err, "failed to intern atom %s", name)
		}
		p.atoms[name] = reply.Atom
	}

	return p, nil
}

// Kind identifies this provider's adapter family.
func (p *Provider) Kind() window.Kind { return window.KindX11 }

// Close drops the X connection.
func (p *Provider) Close() error {
	p.conn.Close()
	return nil
}

// Current resolves the focused window and reads its class and title.
// ok is false when no window holds focus.
func (p *Provider) Current(ctx context.Context) (window.Context, bool, error) {
	wid, err := p.activeWindow()
	if err != nil {
		return window.Context{}, false, err
	}
	if wid == 0 {
		return window.Context{}, false, nil
	}

	instance, class := p.windowClass(wid)
	return window.Context{
		AppID:      instance,
		AppClass:   class,
		Title:      p.windowTitle(wid),
		ObservedAt: time.Now(),
		Source:     window.KindX11,
	}, true, nil
}

// Watch polls for focus changes and delivers each new context to fn
// until ctx ends.
func (p *Provider) Watch(ctx context.Context, fn func(window.Context)) error {
	ticker := time.NewTicker(p.poll)
	defer ticker.Stop()

	var last window.Context
	var have bool
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		current, ok, err := p.Current(ctx)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if have && current.Same(last) {
			continue
		}
		last = current
		have = true
		fn(current)
	}
}

// activeWindow resolves the focused top-level window, preferring the
// EWMH active-window property and falling back to the input focus
// walked up to its top-level parent. During a focus handoff neither
// may name a usable window yet, so it retries briefly. A zero return
// with nil error means nothing is focused.
func (p *Provider) activeWindow() (xproto.Window, error) {
	var lastErr error
	for i := 0; i < activeWindowAttempts; i++ {
		wid, err := p.activeFromProperty()
		if err != nil {
			lastErr = err
		} else if wid != 0 && p.hasName(wid) {
			return wid, nil
		}

		wid, err = p.activeFromInputFocus()
		if err != nil {
			lastErr = err
		} else if wid != 0 && wid != p.root {
			top := p.topLevelParent(wid)
			if top != 0 && p.hasName(top) {
				return top, nil
			}
		}

		time.Sleep(activeWindowDelay)
	}
	if lastErr != nil {
		return 0, errors.Wrap(lastErr, "X server queries failing")
	}
	return 0, nil
}

func (p *Provider) activeFromProperty() (xproto.Window, error) {
	data, err := p.property(p.root, p.atoms["_NET_ACTIVE_WINDOW"], xproto.AtomWindow, 1)
	if err != nil {
		return 0, err
	}
	if len(data) < 4 {
		return 0, nil
	}
	return xproto.Window(binary.LittleEndian.Uint32(data)), nil
}

func (p *Provider) activeFromInputFocus() (xproto.Window, error) {
	reply, err := xproto.GetInputFocus(p.conn).Reply()
	if err != nil {
		return 0, err
	}
	return reply.Focus, nil
}

func (p *Provider) topLevelParent(wid xproto.Window) xproto.Window {
	for {
		reply, err := xproto.QueryTree(p.conn, wid).Reply()
		if err != nil || reply.Parent == p.root || reply.Parent == 0 {
			return wid
		}
		wid = reply.Parent
	}
}

func (p *Provider) hasName(wid xproto.Window) bool {
	data, _ := p.property(wid, p.atoms["_NET_WM_NAME"], p.atoms["UTF8_STRING"], 1)
	if len(data) > 0 {
		return true
	}
	data, _ = p.property(wid, p.atoms["WM_NAME"], xproto.AtomString, 1)
	return len(data) > 0
}

func (p *Provider) windowTitle(wid xproto.Window) string {
	data, err := p.property(wid, p.atoms["_NET_WM_NAME"], p.atoms["UTF8_STRING"], 256)
	if err == nil && len(data) > 0 {
		return strings.TrimRight(string(data), "\x00")
	}
	data, err = p.property(wid, p.atoms["WM_NAME"], xproto.AtomString, 256)
	if err == nil && len(data) > 0 {
		return strings.TrimRight(string(data), "\x00")
	}
	return ""
}

func (p *Provider) windowClass(wid xproto.Window) (instance, class string) {
	data, err := p.property(wid, p.atoms["WM_CLASS"], xproto.AtomString, 256)
	if err != nil {
		return "", ""
	}
	return parseWMClass(data)
}

func (p *Provider) property(wid xproto.Window, atom, typ xproto.Atom, length uint32) ([]byte, error) {
	reply, err := xproto.GetProperty(p.conn, false, wid, atom, typ, 0, length).Reply()
	if err != nil {
		return nil, err
	}
	return reply.Value, nil
}

// parseWMClass splits the WM_CLASS property into its NUL-separated
// instance and class strings.
func parseWMClass(data []byte) (instance, class string) {
	if len(data) == 0 {
		return "", ""
	}
	parts := strings.Split(strings.TrimRight(string(data), "\x00"), "\x00")
	if len(parts) >= 1 {
		instance = parts[0]
	}
	if len(parts) >= 2 {
		class = parts[1]
	}
	return instance, class
}
