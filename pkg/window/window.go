package window

import (
	"context"
	"errors"
	"time"
)

// Kind names one adapter family. Exactly one non-X11 kind is expected
// to be active per session; gating at startup enforces it.
type Kind string

const (
	KindX11     Kind = "x11"
	KindGnome   Kind = "gnome"
	KindKwin    Kind = "kwin"
	KindCosmic  Kind = "cosmic"
	KindWlroots Kind = "wlroots"
)

// Kinds lists every adapter family, X11 first.
func Kinds() []Kind {
	return []Kind{KindX11, KindGnome, KindKwin, KindCosmic, KindWlroots}
}

// Context is one normalized "current window" fact. Updates are total
// replacements; there is no diffing between successive values.
type Context struct {
	// AppID is the stable application identifier (Wayland app_id,
	// X11 WM_CLASS instance, KWin resource name).
	AppID string

	// AppClass is the application class (X11 WM_CLASS class, KWin
	// resource class). Equal to AppID where the backend only has one
	// identifier.
	AppClass string

	// Title is the current window title. May be empty.
	Title string

	// ObservedAt is when the underlying focus event was seen, not when
	// it was relayed.
	ObservedAt time.Time

	// Source is the adapter family that produced this value.
	Source Kind
}

// Same reports whether two contexts describe the same window state,
// ignoring observation time and source.
func (c Context) Same(o Context) bool {
	return c.AppID == o.AppID && c.AppClass == o.AppClass && c.Title == o.Title
}

// Placeholder strings the services report before any focus event has
// been observed. Consumers treat these as "no current context".
const (
	NoCosmicAppClass = "ERR_no_cosmic_app_class"
	NoCosmicTitle    = "ERR_no_cosmic_wdw_title"
	NoWlrAppClass    = "ERR_no_wlr_app_class"
	NoWlrTitle       = "ERR_no_wlr_wdw_title"
	NoKwinData       = "NO_DATA"
)

// IsPlaceholder reports whether s is one of the pre-focus placeholder
// values rather than a real application identifier or title.
func IsPlaceholder(s string) bool {
	switch s {
	case NoCosmicAppClass, NoCosmicTitle, NoWlrAppClass, NoWlrTitle, NoKwinData:
		return true
	}
	return false
}

// Placeholder returns the context a family's service reports before
// its first focus event. Families without historical placeholder
// strings report empty fields.
func Placeholder(kind Kind) Context {
	switch kind {
	case KindCosmic:
		return Context{AppID: NoCosmicAppClass, AppClass: NoCosmicAppClass, Title: NoCosmicTitle, Source: kind}
	case KindWlroots:
		return Context{AppID: NoWlrAppClass, AppClass: NoWlrAppClass, Title: NoWlrTitle, Source: kind}
	case KindKwin:
		return Context{AppID: NoKwinData, AppClass: NoKwinData, Title: NoKwinData, Source: kind}
	}
	return Context{Source: kind}
}

// ErrStale is returned by providers whose last known context can no
// longer be trusted: the value is still reported, but the event source
// behind it has gone quiet or disconnected.
var ErrStale = errors.New("window context is stale")

// Provider is the consumer-side interface to the current window
// context, regardless of which adapter family serves the session.
type Provider interface {
	// Current returns the latest context. ok is false when no focus
	// event has been observed yet. ErrStale flags a value that is
	// still reported but whose event source has gone quiet; any other
	// error means the backing connection is down.
	Current(ctx context.Context) (Context, bool, error)

	// Watch delivers each context change to fn until ctx is done.
	// Callbacks run sequentially in event order.
	Watch(ctx context.Context, fn func(Context)) error

	// Kind identifies the adapter family behind this provider.
	Kind() Kind

	// Close releases the underlying connection.
	Close() error
}
