package hub

import (
	"testing"
	"time"

	"github.com/winctx/winctx/pkg/window"
)

func ctxFor(appID, title string) window.Context {
	return window.Context{
		AppID:      appID,
		AppClass:   appID,
		Title:      title,
		ObservedAt: time.Now(),
		Source:     window.KindWlroots,
	}
}

func TestPublishAndCurrent(t *testing.T) {
	h := New()

	if _, ok := h.Current(); ok {
		t.Error("Current() ok = true on an empty hub, want false")
	}
	if !h.Fresh() {
		t.Error("Fresh() = false on an empty hub, want true")
	}

	h.Publish(ctxFor("org.gnome.TextEditor", "Draft"))
	got, ok := h.Current()
	if !ok {
		t.Fatal("Current() ok = false after Publish, want true")
	}
	if got.AppID != "org.gnome.TextEditor" || got.Title != "Draft" {
		t.Errorf("Current() = %+v, want the published context", got)
	}
}

func TestSubscribeReceivesChanges(t *testing.T) {
	h := New()
	ch, cancel := h.Subscribe()
	defer cancel()

	h.Publish(ctxFor("firefox", "Tab one"))
	select {
	case got := <-ch:
		if got.AppID != "firefox" {
			t.Errorf("received AppID = %q, want firefox", got.AppID)
		}
	case <-time.After(time.Second):
		t.Fatal("no update received after Publish")
	}
}

func TestSubscribeSeesCurrentImmediately(t *testing.T) {
	h := New()
	h.Publish(ctxFor("kitty", "zsh"))

	ch, cancel := h.Subscribe()
	defer cancel()

	select {
	case got := <-ch:
		if got.AppID != "kitty" {
			t.Errorf("initial context AppID = %q, want kitty", got.AppID)
		}
	case <-time.After(time.Second):
		t.Fatal("new subscriber did not receive the current context")
	}
}

func TestDuplicatePublishDoesNotNotify(t *testing.T) {
	h := New()
	h.Publish(ctxFor("firefox", "Tab one"))

	ch, cancel := h.Subscribe()
	defer cancel()
	<-ch // drain the initial snapshot

	h.Publish(ctxFor("firefox", "Tab one"))
	select {
	case got := <-ch:
		t.Errorf("received %+v for an unchanged context, want silence", got)
	case <-time.After(50 * time.Millisecond):
	}

	h.Publish(ctxFor("firefox", "Tab two"))
	select {
	case got := <-ch:
		if got.Title != "Tab two" {
			t.Errorf("received Title = %q, want Tab two", got.Title)
		}
	case <-time.After(time.Second):
		t.Fatal("no update received after a real change")
	}
}

func TestSlowSubscriberGetsLatest(t *testing.T) {
	h := New()
	ch, cancel := h.Subscribe()
	defer cancel()

	// Never reading between publishes: each publish must replace the
	// pending item instead of blocking.
	h.Publish(ctxFor("a", "one"))
	h.Publish(ctxFor("b", "two"))
	h.Publish(ctxFor("c", "three"))

	got := <-ch
	if got.AppID != "c" {
		t.Errorf("lagging subscriber got AppID = %q, want the latest c", got.AppID)
	}
}

func TestStaleness(t *testing.T) {
	h := New()
	h.Publish(ctxFor("firefox", "Tab one"))

	h.MarkStale("event source disconnected")
	if h.Fresh() {
		t.Error("Fresh() = true after MarkStale, want false")
	}
	if got := h.StaleReason(); got != "event source disconnected" {
		t.Errorf("StaleReason() = %q, want the recorded reason", got)
	}

	// The value survives staleness; only the freshness flag drops.
	if got, ok := h.Current(); !ok || got.AppID != "firefox" {
		t.Errorf("Current() = %+v ok=%v, want the stale value kept", got, ok)
	}

	h.Publish(ctxFor("firefox", "Tab one"))
	if !h.Fresh() {
		t.Error("Fresh() = false after re-publish, want true")
	}
}

func TestRepublishAfterStaleNotifies(t *testing.T) {
	h := New()
	h.Publish(ctxFor("firefox", "Tab one"))

	ch, cancel := h.Subscribe()
	defer cancel()
	<-ch

	h.MarkStale("source restart")
	h.Publish(ctxFor("firefox", "Tab one"))

	// Same value, but subscribers must learn the context is live again.
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no notification after the context became fresh again")
	}
}

func TestClear(t *testing.T) {
	h := New()
	h.Publish(ctxFor("firefox", "Tab one"))

	ch, cancel := h.Subscribe()
	defer cancel()
	<-ch

	h.Clear()
	if _, ok := h.Current(); ok {
		t.Error("Current() ok = true after Clear, want false")
	}
	if !h.Fresh() {
		t.Error("Fresh() = false after Clear, want true: no focus is current information")
	}

	select {
	case got := <-ch:
		if got.AppID != "" || got.Title != "" {
			t.Errorf("clear notification = %+v, want a zero context", got)
		}
	case <-time.After(time.Second):
		t.Fatal("no notification after Clear")
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	h := New()
	_, cancel := h.Subscribe()

	cancel()
	cancel()
	if n := h.Subscribers(); n != 0 {
		t.Errorf("Subscribers() = %d after cancel, want 0", n)
	}

	// Publishing after cancellation must not panic on the closed sub.
	h.Publish(ctxFor("firefox", "Tab one"))
}
