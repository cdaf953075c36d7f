// Package busio carries the window context over the D-Bus session
// bus: each Wayland-side adapter publishes a per-family service, and
// consumers dial whichever family owns the current session.
package busio

import (
	"github.com/godbus/dbus/v5"

	"github.com/winctx/winctx/pkg/window"
)

// Method and signal members. The interface name equals the bus name.
const (
	MethodGetActiveWindow     = "GetActiveWindow"
	MethodNotifyActiveWindow  = "NotifyActiveWindow"
	SignalActiveWindowChanged = "ActiveWindowChanged"
)

// Keys of the GetActiveWindow reply dictionary.
const (
	keyAppID    = "app_id"
	keyAppClass = "app_class"
	keyTitle    = "window_title"
	keyFresh    = "fresh"
)

// Identity is one family's addresses on the session bus.
type Identity struct {
	BusName   string
	Path      dbus.ObjectPath
	Interface string
}

// The KWin family keeps the historical "Plasma" service name.
var identities = map[window.Kind]Identity{
	window.KindGnome:   {BusName: "org.winctx.Gnome", Path: "/org/winctx/Gnome", Interface: "org.winctx.Gnome"},
	window.KindKwin:    {BusName: "org.winctx.Plasma", Path: "/org/winctx/Plasma", Interface: "org.winctx.Plasma"},
	window.KindCosmic:  {BusName: "org.winctx.Cosmic", Path: "/org/winctx/Cosmic", Interface: "org.winctx.Cosmic"},
	window.KindWlroots: {BusName: "org.winctx.Wlroots", Path: "/org/winctx/Wlroots", Interface: "org.winctx.Wlroots"},
}

// IdentityFor returns the bus identity for an adapter family. The X11
// family has none: it reads the X server directly, in process.
func IdentityFor(kind window.Kind) (Identity, bool) {
	id, ok := identities[kind]
	return id, ok
}
