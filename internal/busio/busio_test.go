package busio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"

	"github.com/winctx/winctx/internal/hub"
	"github.com/winctx/winctx/pkg/window"
)

func TestIdentityFor(t *testing.T) {
	tests := []struct {
		kind    window.Kind
		busName string
		path    dbus.ObjectPath
	}{
		{window.KindGnome, "org.winctx.Gnome", "/org/winctx/Gnome"},
		{window.KindKwin, "org.winctx.Plasma", "/org/winctx/Plasma"},
		{window.KindCosmic, "org.winctx.Cosmic", "/org/winctx/Cosmic"},
		{window.KindWlroots, "org.winctx.Wlroots", "/org/winctx/Wlroots"},
	}
	for _, tt := range tests {
		id, ok := IdentityFor(tt.kind)
		if !ok {
			t.Errorf("IdentityFor(%s) ok = false, want true", tt.kind)
			continue
		}
		if id.BusName != tt.busName {
			t.Errorf("IdentityFor(%s).BusName = %s, want %s", tt.kind, id.BusName, tt.busName)
		}
		if id.Path != tt.path {
			t.Errorf("IdentityFor(%s).Path = %s, want %s", tt.kind, id.Path, tt.path)
		}
		if id.Interface != id.BusName {
			t.Errorf("IdentityFor(%s).Interface = %s, want %s", tt.kind, id.Interface, id.BusName)
		}
	}
}

func TestIdentityForX11(t *testing.T) {
	if _, ok := IdentityFor(window.KindX11); ok {
		t.Error("IdentityFor(x11) ok = true, want false")
	}
}

func TestIsBackendMissing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"service unknown", dbus.Error{Name: "org.freedesktop.DBus.Error.ServiceUnknown"}, true},
		{"no owner", dbus.Error{Name: "org.freedesktop.DBus.Error.NameHasNoOwner"}, true},
		{"unknown method", dbus.Error{Name: "org.freedesktop.DBus.Error.UnknownMethod"}, true},
		{"unknown object", dbus.Error{Name: "org.freedesktop.DBus.Error.UnknownObject"}, true},
		{"timeout", dbus.Error{Name: "org.freedesktop.DBus.Error.NoReply"}, false},
		{"plain error", errors.New("broken"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBackendMissing(tt.err); got != tt.want {
				t.Errorf("IsBackendMissing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWithRetrySucceedsEventually(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("withRetry() error = %v, want nil", err)
	}
	if calls != 3 {
		t.Errorf("fn called %d times, want 3", calls)
	}
}

func TestWithRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), 5, time.Millisecond, func() error {
		calls++
		return dbus.Error{Name: "org.freedesktop.DBus.Error.ServiceUnknown"}
	})
	if err == nil {
		t.Fatal("withRetry() error = nil, want error")
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return errors.New("transient")
	})
	if err == nil {
		t.Fatal("withRetry() error = nil, want error")
	}
	if calls != 3 {
		t.Errorf("fn called %d times, want 3", calls)
	}
}

func TestWithRetryStopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := withRetry(ctx, 10, time.Minute, func() error {
		calls++
		cancel()
		return errors.New("transient")
	})
	if err == nil {
		t.Fatal("withRetry() error = nil, want error")
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}

func TestOptionsWithDefaults(t *testing.T) {
	got := Options{}.withDefaults()
	want := DefaultOptions()
	if got != want {
		t.Errorf("withDefaults() = %+v, want %+v", got, want)
	}

	custom := Options{CallTimeout: time.Second, RetryAttempts: 1, RetryBackoff: time.Millisecond}
	if got := custom.withDefaults(); got != custom {
		t.Errorf("withDefaults() = %+v, want %+v", got, custom)
	}
}

func TestGetActiveWindowBeforeFirstEvent(t *testing.T) {
	h := hub.New()
	srv, err := NewServer(h, window.KindCosmic, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	reply, dbusErr := contextObject{srv: srv}.GetActiveWindow()
	if dbusErr != nil {
		t.Fatalf("GetActiveWindow() error = %v", dbusErr)
	}
	if got := reply[keyAppClass].Value(); got != window.NoCosmicAppClass {
		t.Errorf("app_class = %v, want %v", got, window.NoCosmicAppClass)
	}
	if got := reply[keyTitle].Value(); got != window.NoCosmicTitle {
		t.Errorf("window_title = %v, want %v", got, window.NoCosmicTitle)
	}
	if got := reply[keyFresh].Value(); got != true {
		t.Errorf("fresh = %v, want true", got)
	}
}

func TestGetActiveWindowReportsCurrent(t *testing.T) {
	h := hub.New()
	srv, err := NewServer(h, window.KindWlroots, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	h.Publish(window.Context{AppID: "firefox", AppClass: "firefox", Title: "Downloads"})
	h.MarkStale("compositor gone")

	reply, dbusErr := contextObject{srv: srv}.GetActiveWindow()
	if dbusErr != nil {
		t.Fatalf("GetActiveWindow() error = %v", dbusErr)
	}
	if got := reply[keyAppID].Value(); got != "firefox" {
		t.Errorf("app_id = %v, want firefox", got)
	}
	if got := reply[keyTitle].Value(); got != "Downloads" {
		t.Errorf("window_title = %v, want Downloads", got)
	}
	if got := reply[keyFresh].Value(); got != false {
		t.Errorf("fresh = %v, want false after MarkStale", got)
	}
}

func TestNewServerRejectsX11(t *testing.T) {
	if _, err := NewServer(hub.New(), window.KindX11, zerolog.Nop()); err == nil {
		t.Error("NewServer(x11) error = nil, want error")
	}
}

func TestContextFromSignal(t *testing.T) {
	sig := &dbus.Signal{Body: []interface{}{"kitty", "kitty", "~/src"}}
	got, ok := contextFromSignal(sig, window.KindWlroots)
	if !ok {
		t.Fatal("contextFromSignal() ok = false, want true")
	}
	if got.AppID != "kitty" || got.AppClass != "kitty" || got.Title != "~/src" {
		t.Errorf("contextFromSignal() = %+v", got)
	}
	if got.Source != window.KindWlroots {
		t.Errorf("Source = %s, want %s", got.Source, window.KindWlroots)
	}
	if got.ObservedAt.IsZero() {
		t.Error("ObservedAt is zero")
	}
}

func TestContextFromSignalRejectsMalformed(t *testing.T) {
	bad := []*dbus.Signal{
		{Body: []interface{}{"only-two", "fields"}},
		{Body: []interface{}{"a", "b", 3}},
		{Body: nil},
	}
	for i, sig := range bad {
		if _, ok := contextFromSignal(sig, window.KindGnome); ok {
			t.Errorf("contextFromSignal(#%d) ok = true, want false", i)
		}
	}
}
