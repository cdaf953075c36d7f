// Package lifecycle implements the startup gate and state machine
// shared by every adapter process: confirm this is the right adapter
// for the session, then run, self-terminate, or fail.
package lifecycle

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/winctx/winctx/pkg/environ"
	"github.com/winctx/winctx/pkg/window"
)

// State of an adapter. Transitions only move forward:
// Starting → Active, or Starting/Active → SelfTerminated | Failed.
// There is no way back to Starting; a restart is a new process.
type State string

const (
	StateStarting       State = "starting"
	StateActive         State = "active"
	StateSelfTerminated State = "self_terminated"
	StateFailed         State = "failed"
)

// Process exit codes. Self-termination exits 0 so service supervisors
// treat the wrong-adapter case as a normal, completed run.
const (
	ExitOK      = 0
	ExitFailure = 1
)

// DefaultExitDelay is how long a self-terminating adapter lingers
// before exiting. A crash-loop detector sees a short-lived service as
// failing; the pause keeps supervisors from flagging the benign case.
const DefaultExitDelay = 2 * time.Second

// verdict of the environment gate.
type verdict int

const (
	verdictProceed verdict = iota
	verdictMismatch
	verdictUnresolved
)

// evaluate decides whether an adapter family belongs in the detected
// environment. A mismatch is benign (some other adapter owns this
// session). Unresolved means detection produced the window manager
// sentinel where the family needs a confirmed identity, so the adapter
// can neither confirm nor rule itself out.
func evaluate(kind window.Kind, env environ.Info) (verdict, string) {
	switch kind {
	case window.KindX11:
		if env.SessionType != environ.SessionX11 {
			return verdictMismatch, "session type " + env.SessionType + " is not x11"
		}
	case window.KindGnome:
		if env.SessionType != environ.SessionWayland {
			return verdictMismatch, "session type " + env.SessionType + " is not wayland"
		}
		if env.DesktopEnv != "gnome" {
			return verdictMismatch, "desktop environment " + env.DesktopEnv + " is not gnome"
		}
	case window.KindKwin:
		if env.SessionType != environ.SessionWayland {
			return verdictMismatch, "session type " + env.SessionType + " is not wayland"
		}
		if env.WindowManager == environ.WMUnidentified {
			return verdictUnresolved, "window manager could not be identified"
		}
		if env.WindowManager != "kwin_wayland" {
			return verdictMismatch, "window manager " + env.WindowManager + " is not kwin_wayland"
		}
	case window.KindCosmic:
		if env.SessionType != environ.SessionWayland {
			return verdictMismatch, "session type " + env.SessionType + " is not wayland"
		}
		if env.DesktopEnv != "cosmic" {
			return verdictMismatch, "desktop environment " + env.DesktopEnv + " is not cosmic"
		}
	case window.KindWlroots:
		if env.SessionType != environ.SessionWayland {
			return verdictMismatch, "session type " + env.SessionType + " is not wayland"
		}
		// Fallback family: it claims any Wayland session that no
		// desktop-keyed family owns.
		if env.DesktopEnv == "gnome" || env.DesktopEnv == "cosmic" {
			return verdictMismatch, "desktop environment " + env.DesktopEnv + " has its own context service"
		}
		if env.WindowManager == environ.WMUnidentified {
			return verdictUnresolved, "window manager could not be identified"
		}
		if env.WindowManager == "kwin_wayland" {
			return verdictMismatch, "window manager kwin_wayland has its own context service"
		}
	}
	return verdictProceed, ""
}

// Lifecycle tracks one adapter's state. Safe for concurrent use.
type Lifecycle struct {
	// ExitDelay overrides DefaultExitDelay when positive.
	ExitDelay time.Duration

	// Sleep defaults to time.Sleep; tests replace it.
	Sleep func(time.Duration)

	// OnTransition, when set, observes every state change. Called
	// outside the lock.
	OnTransition func(from, to State, detail string)

	mu     sync.Mutex
	kind   window.Kind
	state  State
	detail string
	err    error
	log    zerolog.Logger
}

func New(kind window.Kind, log zerolog.Logger) *Lifecycle {
	return &Lifecycle{
		kind:  kind,
		state: StateStarting,
		log:   log,
	}
}

// Gate runs the environment check and reports whether the adapter
// should proceed. On a benign mismatch it transitions to
// SelfTerminated and lingers for the exit delay; on an unresolved
// environment it transitions to Failed. Either way the caller is
// expected to exit with ExitCode().
func (l *Lifecycle) Gate(env environ.Info) bool {
	v, reason := evaluate(l.kind, env)
	switch v {
	case verdictProceed:
		return true
	case verdictUnresolved:
		l.log.Error().
			Str("adapter", string(l.kind)).
			Str("window_manager", env.WindowManager).
			Msg("environment unresolved, refusing to guess")
		l.transition(StateFailed, reason, nil)
		return false
	default:
		l.log.Info().
			Str("adapter", string(l.kind)).
			Str("reason", reason).
			Msg("not the adapter for this session, exiting cleanly")
		l.transition(StateSelfTerminated, reason, nil)
		l.sleep(l.exitDelay())
		return false
	}
}

// Activate marks the adapter live. Only valid from Starting; a
// terminal state stays put.
func (l *Lifecycle) Activate() {
	l.transition(StateActive, "", nil)
}

// Fail records a genuine error. Valid from Starting or Active.
func (l *Lifecycle) Fail(err error) {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	l.transition(StateFailed, detail, err)
}

// SelfTerminate records a benign exit for reasons discovered after the
// gate, then lingers for the exit delay.
func (l *Lifecycle) SelfTerminate(reason string) {
	if l.transition(StateSelfTerminated, reason, nil) {
		l.sleep(l.exitDelay())
	}
}

func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Detail returns the reason recorded with the current state.
func (l *Lifecycle) Detail() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.detail
}

// Err returns the failure error, if any.
func (l *Lifecycle) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Active reports whether the adapter may publish context updates.
func (l *Lifecycle) Active() bool {
	return l.State() == StateActive
}

// Terminal reports whether the adapter has reached a final state.
func (l *Lifecycle) Terminal() bool {
	s := l.State()
	return s == StateSelfTerminated || s == StateFailed
}

// ExitCode maps the final state to a process exit status: 0 for a
// normal run or a benign self-termination, 1 for failure.
func (l *Lifecycle) ExitCode() int {
	if l.State() == StateFailed {
		return ExitFailure
	}
	return ExitOK
}

// transition applies a forward state change, returning whether it took
// effect. The first terminal state wins; later transitions are
// ignored.
func (l *Lifecycle) transition(to State, detail string, err error) bool {
	l.mu.Lock()
	from := l.state
	if from == StateSelfTerminated || from == StateFailed {
		l.mu.Unlock()
		return false
	}
	if to == StateActive && from != StateStarting {
		l.mu.Unlock()
		return false
	}
	l.state = to
	l.detail = detail
	l.err = err
	hook := l.OnTransition
	l.mu.Unlock()

	if hook != nil {
		hook(from, to, detail)
	}
	return true
}

func (l *Lifecycle) exitDelay() time.Duration {
	if l.ExitDelay > 0 {
		return l.ExitDelay
	}
	return DefaultExitDelay
}

func (l *Lifecycle) sleep(d time.Duration) {
	if l.Sleep != nil {
		l.Sleep(d)
		return
	}
	time.Sleep(d)
}
