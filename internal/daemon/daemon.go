// Package daemon handles the process side of an adapter service:
// single-instance locking through the PID file, and detaching into
// the background.
package daemon

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// childEnv marks a process as the detached child, so the service
// entry point knows not to detach again.
const childEnv = "WINCTX_DAEMON_CHILD"

// Detached reports whether this process is already the detached
// child.
func Detached() bool {
	return os.Getenv(childEnv) == "1"
}

// Detach re-executes the current binary as a session leader with
// stdout and stderr appended to logPath. The caller is expected to
// exit once this returns the child PID.
func Detach(logPath string) (int, error) {
	exe, err := os.Executable()
	if err != nil {
		return 0, errors.Wrap(err, "cannot resolve executable path")
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, errors.Wrapf(err, "cannot open daemon log %s", logPath)
	}
	defer logFile.Close()
	devnull, err := os.OpenFile(os.DevNull, os.O_RDONLY, 0)
	if err != nil {
		return 0, errors.Wrap(err, "cannot open /dev/null")
	}
	defer devnull.Close()

	proc, err := os.StartProcess(exe, os.Args, &os.ProcAttr{
		Env:   append(os.Environ(), childEnv+"=1"),
		Files: []*os.File{devnull, logFile, logFile},
		Sys:   &syscall.SysProcAttr{Setsid: true},
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to start detached process")
	}
	pid := proc.Pid
	_ = proc.Release()
	return pid, nil
}

// Daemon owns one family's PID file.
type Daemon struct {
	pidFile string
	lock    *os.File
}

func New(pidFile string) *Daemon {
	return &Daemon{pidFile: pidFile}
}

// Acquire creates the PID file and takes an exclusive flock on it, so
// a second instance of the same family fails fast instead of fighting
// over the bus name. The lock is held until Release or process exit.
func (d *Daemon) Acquire() error {
	f, err := os.OpenFile(d.pidFile, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return errors.Wrapf(err, "cannot open pid file %s", d.pidFile)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		pid, _ := d.ReadPID()
		f.Close()
		if pid > 0 {
			return errors.Errorf("another instance is already running (pid %d)", pid)
		}
		return errors.Wrapf(err, "pid file %s is locked", d.pidFile)
	}
	if err := f.Truncate(0); err != nil {
		f.Close()
		return errors.Wrapf(err, "cannot truncate pid file %s", d.pidFile)
	}
	if _, err := fmt.Fprintf(f, "%d", os.Getpid()); err != nil {
		f.Close()
		return errors.Wrapf(err, "cannot write pid file %s", d.pidFile)
	}
	d.lock = f
	return nil
}

// Release drops the lock and removes the PID file. Safe to call more
// than once.
func (d *Daemon) Release() error {
	if d.lock == nil {
		return nil
	}
	rmErr := os.Remove(d.pidFile)
	d.lock.Close()
	d.lock = nil
	if rmErr != nil && !os.IsNotExist(rmErr) {
		return errors.Wrapf(rmErr, "cannot remove pid file %s", d.pidFile)
	}
	return nil
}

// ReadPID returns the recorded PID, or 0 when no PID file exists.
func (d *Daemon) ReadPID() (int, error) {
	data, err := os.ReadFile(d.pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "failed to read PID file")
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, errors.Errorf("invalid PID in file %s", d.pidFile)
	}
	return pid, nil
}

// IsRunning probes whether the recorded process is alive. A stale PID
// file is cleaned up along the way.
func (d *Daemon) IsRunning() (bool, int, error) {
	pid, err := d.ReadPID()
	if err != nil {
		return false, 0, err
	}
	if pid == 0 {
		return false, 0, nil
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false, 0, nil
	}
	if err := process.Signal(syscall.Signal(0)); err != nil {
		_ = os.Remove(d.pidFile)
		return false, 0, nil
	}
	return true, pid, nil
}

// Stop signals the recorded process to terminate.
func (d *Daemon) Stop() error {
	running, pid, err := d.IsRunning()
	if err != nil {
		return errors.Wrap(err, "error checking service status")
	}
	if !running {
		return errors.New("service is not running or the PID file is stale")
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return errors.Wrap(err, "failed to find process")
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return errors.Wrapf(err, "failed to signal pid %d", pid)
	}
	return nil
}
