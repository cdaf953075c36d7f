package gnome

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"

	"github.com/winctx/winctx/internal/hub"
	"github.com/winctx/winctx/pkg/window"
)

// fakeShell scripts the extension's replies. Past the end of the
// script the last reply repeats.
type fakeShell struct {
	dbus.BusObject
	replies []*dbus.Call
	calls   int
}

func (f *fakeShell) CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...interface{}) *dbus.Call {
	i := f.calls
	f.calls++
	if i >= len(f.replies) {
		i = len(f.replies) - 1
	}
	return f.replies[i]
}

func reply(body string) *dbus.Call {
	return &dbus.Call{Body: []interface{}{body}}
}

func replyErr(err error) *dbus.Call {
	return &dbus.Call{Err: err}
}

func testAdapter(h *hub.Hub, replies ...*dbus.Call) *Adapter {
	return &Adapter{
		hub:         h,
		obj:         &fakeShell{replies: replies},
		poll:        time.Millisecond,
		callTimeout: time.Second,
		log:         zerolog.Nop(),
	}
}

func TestPollPublishesFocusedWindow(t *testing.T) {
	h := hub.New()
	a := testAdapter(h, reply(`{"title":"Inbox","wm_class":"Evolution","wm_class_instance":"evolution","pid":4242}`))

	if err := a.pollOnce(context.Background()); err != nil {
		t.Fatalf("pollOnce() error = %v", err)
	}

	got, ok := h.Current()
	if !ok {
		t.Fatal("Current() ok = false, want true")
	}
	if got.AppID != "evolution" || got.AppClass != "Evolution" || got.Title != "Inbox" {
		t.Errorf("Current() = %+v", got)
	}
	if got.Source != window.KindGnome {
		t.Errorf("Source = %s, want %s", got.Source, window.KindGnome)
	}
}

func TestPollClearsOnNoFocus(t *testing.T) {
	h := hub.New()
	h.Publish(window.Context{AppClass: "Evolution", Title: "Inbox"})

	noFocus := dbus.Error{
		Name: "org.gnome.gjs.JSError.Error",
		Body: []interface{}{"Error: No window in focus"},
	}
	a := testAdapter(h, replyErr(noFocus))

	if err := a.pollOnce(context.Background()); err != nil {
		t.Fatalf("pollOnce() error = %v", err)
	}
	if _, ok := h.Current(); ok {
		t.Error("Current() ok = true, want cleared context")
	}
	if !h.Fresh() {
		t.Error("Fresh() = false, no-focus is current information")
	}
}

func TestPollRejectsMalformedReply(t *testing.T) {
	h := hub.New()
	a := testAdapter(h, reply(`{"title": truncated`))

	if err := a.pollOnce(context.Background()); err == nil {
		t.Error("pollOnce() error = nil, want parse error")
	}
	if _, ok := h.Current(); ok {
		t.Error("Current() ok = true after malformed reply")
	}
}

func TestRunFailsWhenExtensionMissing(t *testing.T) {
	missing := dbus.Error{
		Name: "org.freedesktop.DBus.Error.ServiceUnknown",
		Body: []interface{}{"The name org.gnome.Shell was not provided by any .service files"},
	}
	a := testAdapter(hub.New(), replyErr(missing))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := a.Run(ctx)
	if err == nil {
		t.Fatal("Run() error = nil, want missing-extension error")
	}
	if !strings.Contains(err.Error(), "Focused Window") {
		t.Errorf("Run() error = %v, want install guidance", err)
	}
}

func TestRunRecoversFromTransientFailure(t *testing.T) {
	h := hub.New()
	transient := dbus.Error{
		Name: "org.freedesktop.DBus.Error.NoReply",
		Body: []interface{}{"Did not receive a reply"},
	}
	a := testAdapter(h,
		replyErr(transient),
		reply(`{"title":"Shell","wm_class":"Kitty","wm_class_instance":"kitty"}`),
	)

	updates, cancelSub := h.Subscribe()
	defer cancelSub()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	runErr := make(chan error, 1)
	go func() { runErr <- a.Run(ctx) }()

	select {
	case got := <-updates:
		if got.AppClass != "Kitty" {
			t.Errorf("published context = %+v", got)
		}
	case <-ctx.Done():
		t.Fatal("no context published after transient failure")
	}

	cancel()
	if err := <-runErr; err != nil {
		t.Errorf("Run() error = %v, want nil after cancel", err)
	}
}

func TestIsNoFocus(t *testing.T) {
	noFocus := dbus.Error{
		Name: "org.gnome.gjs.JSError.Error",
		Body: []interface{}{"Error: No window in focus"},
	}
	if !isNoFocus(noFocus) {
		t.Error("isNoFocus() = false for the extension's no-focus error")
	}
	other := dbus.Error{
		Name: "org.freedesktop.DBus.Error.NoReply",
		Body: []interface{}{"Did not receive a reply"},
	}
	if isNoFocus(other) {
		t.Error("isNoFocus() = true for an unrelated error")
	}
	if isNoFocus(nil) {
		t.Error("isNoFocus(nil) = true")
	}
}
