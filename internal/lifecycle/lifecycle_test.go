package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/winctx/winctx/pkg/environ"
	"github.com/winctx/winctx/pkg/window"
)

func gnomeWayland() environ.Info {
	return environ.Info{
		SessionType:   environ.SessionWayland,
		DesktopEnv:    "gnome",
		WindowManager: "gnome-shell",
	}
}

func newTestLifecycle(kind window.Kind) (*Lifecycle, *bool) {
	l := New(kind, zerolog.Nop())
	slept := false
	l.Sleep = func(time.Duration) { slept = true }
	return l, &slept
}

func TestGateMatchProceeds(t *testing.T) {
	l, slept := newTestLifecycle(window.KindGnome)

	if !l.Gate(gnomeWayland()) {
		t.Fatal("Gate() = false for a matching environment, want true")
	}
	if got := l.State(); got != StateStarting {
		t.Errorf("State() = %q after a passed gate, want %q", got, StateStarting)
	}
	if *slept {
		t.Error("Gate slept on a match, want no delay")
	}

	l.Activate()
	if !l.Active() {
		t.Error("Active() = false after Activate, want true")
	}
	if got := l.ExitCode(); got != ExitOK {
		t.Errorf("ExitCode() = %d while active, want %d", got, ExitOK)
	}
}

func TestGateMismatchSelfTerminates(t *testing.T) {
	// On a GNOME Wayland session, every other family must step aside
	// with a success status.
	for _, kind := range []window.Kind{window.KindX11, window.KindKwin, window.KindCosmic, window.KindWlroots} {
		t.Run(string(kind), func(t *testing.T) {
			l, slept := newTestLifecycle(kind)

			if l.Gate(gnomeWayland()) {
				t.Fatalf("Gate() = true for %s on a GNOME session, want false", kind)
			}
			if got := l.State(); got != StateSelfTerminated {
				t.Errorf("State() = %q, want %q", got, StateSelfTerminated)
			}
			if got := l.ExitCode(); got != ExitOK {
				t.Errorf("ExitCode() = %d for a benign mismatch, want %d", got, ExitOK)
			}
			if !*slept {
				t.Error("self-termination skipped the exit delay")
			}
			if l.Detail() == "" {
				t.Error("Detail() is empty, want the mismatch reason")
			}
		})
	}
}

func TestGateHonorsForcedWindowManager(t *testing.T) {
	// An override can name kwin_wayland on what is really a GNOME
	// session. The kwin gate keys on the window manager alone, so it
	// proceeds; failing later at backend connect is the override
	// author's problem, not the gate's.
	l, _ := newTestLifecycle(window.KindKwin)
	env := gnomeWayland()
	env.WindowManager = "kwin_wayland"

	if !l.Gate(env) {
		t.Fatal("Gate() = false for a forced kwin_wayland window manager, want true")
	}
	if got := l.State(); got != StateStarting {
		t.Errorf("State() = %q after a passed gate, want %q", got, StateStarting)
	}
}

func TestWlrootsGateClaimsUnownedWaylandSessions(t *testing.T) {
	// The wlroots family is the generic Wayland fallback: it proceeds
	// on any compositor no desktop-keyed family owns, and steps aside
	// where gnome, cosmic, or kwin runs its own context service.
	wayland := func(desktop, wm string) environ.Info {
		return environ.Info{
			SessionType:   environ.SessionWayland,
			DesktopEnv:    desktop,
			WindowManager: wm,
		}
	}
	cases := []struct {
		name string
		env  environ.Info
		want bool
	}{
		{"sway", wayland("sway", "sway"), true},
		{"hyprland", wayland("hyprland", "Hyprland"), true},
		{"labwc", wayland("labwc", "labwc"), true},
		{"gnome", gnomeWayland(), false},
		{"cosmic", wayland("cosmic", "cosmic-comp"), false},
		{"kde", wayland("kde", "kwin_wayland"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l, _ := newTestLifecycle(window.KindWlroots)
			if got := l.Gate(tc.env); got != tc.want {
				t.Fatalf("Gate() = %v on %s, want %v", got, tc.name, tc.want)
			}
			if !tc.want {
				if got := l.State(); got != StateSelfTerminated {
					t.Errorf("State() = %q for an owned session, want %q", got, StateSelfTerminated)
				}
			}
		})
	}

	l, _ := newTestLifecycle(window.KindWlroots)
	env := wayland("sway", "sway")
	env.SessionType = environ.SessionX11
	if l.Gate(env) {
		t.Error("Gate() = true for wlroots on an x11 session, want false")
	}
}

func TestGateSentinelFails(t *testing.T) {
	// Families that need a confirmed window manager identity must fail
	// loudly on the sentinel rather than guess.
	env := environ.Info{
		SessionType:   environ.SessionWayland,
		DesktopEnv:    environ.DesktopUnknown,
		WindowManager: environ.WMUnidentified,
	}
	for _, kind := range []window.Kind{window.KindKwin, window.KindWlroots} {
		t.Run(string(kind), func(t *testing.T) {
			l, slept := newTestLifecycle(kind)

			if l.Gate(env) {
				t.Fatal("Gate() = true against the unidentified sentinel, want false")
			}
			if got := l.State(); got != StateFailed {
				t.Errorf("State() = %q, want %q: an unresolved environment is not a benign mismatch", got, StateFailed)
			}
			if got := l.ExitCode(); got != ExitFailure {
				t.Errorf("ExitCode() = %d, want %d", got, ExitFailure)
			}
			if *slept {
				t.Error("failure path slept, the exit delay is for self-termination only")
			}
		})
	}
}

func TestFailAfterActive(t *testing.T) {
	l, _ := newTestLifecycle(window.KindGnome)
	l.Activate()

	backendErr := errors.New("extension not reachable")
	l.Fail(backendErr)

	if got := l.State(); got != StateFailed {
		t.Errorf("State() = %q, want %q", got, StateFailed)
	}
	if !errors.Is(l.Err(), backendErr) {
		t.Errorf("Err() = %v, want the recorded backend error", l.Err())
	}
	if got := l.ExitCode(); got != ExitFailure {
		t.Errorf("ExitCode() = %d, want %d", got, ExitFailure)
	}
}

func TestTerminalStatesAreFinal(t *testing.T) {
	l, _ := newTestLifecycle(window.KindCosmic)
	l.SelfTerminate("wrong session")

	l.Activate()
	if got := l.State(); got != StateSelfTerminated {
		t.Errorf("State() = %q after Activate on a terminal lifecycle, want %q", got, StateSelfTerminated)
	}

	l.Fail(errors.New("late error"))
	if got := l.State(); got != StateSelfTerminated {
		t.Errorf("State() = %q, want the first terminal state kept", got)
	}
	if got := l.ExitCode(); got != ExitOK {
		t.Errorf("ExitCode() = %d, want %d from the surviving state", got, ExitOK)
	}
}

func TestOnTransitionHook(t *testing.T) {
	l, _ := newTestLifecycle(window.KindGnome)

	type change struct {
		from, to State
	}
	var seen []change
	l.OnTransition = func(from, to State, detail string) {
		seen = append(seen, change{from, to})
	}

	l.Activate()
	l.Fail(errors.New("backend gone"))

	want := []change{
		{StateStarting, StateActive},
		{StateActive, StateFailed},
	}
	if len(seen) != len(want) {
		t.Fatalf("observed %d transitions, want %d", len(seen), len(want))
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("transition %d = %v, want %v", i, seen[i], want[i])
		}
	}
}
