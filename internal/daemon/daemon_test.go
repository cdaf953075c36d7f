package daemon

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testDaemon(t *testing.T) *Daemon {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "winctx-test.pid"))
}

func TestAcquireWritesPID(t *testing.T) {
	d := testDaemon(t)
	if err := d.Acquire(); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer d.Release()

	pid, err := d.ReadPID()
	if err != nil {
		t.Fatalf("ReadPID() error = %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("ReadPID() = %d, want %d", pid, os.Getpid())
	}
}

func TestAcquireConflict(t *testing.T) {
	d := testDaemon(t)
	if err := d.Acquire(); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer d.Release()

	second := New(d.pidFile)
	err := second.Acquire()
	if err == nil {
		second.Release()
		t.Fatal("second Acquire() error = nil, want already-running error")
	}
	if !strings.Contains(err.Error(), "already running") {
		t.Errorf("second Acquire() error = %v, want already-running error", err)
	}
}

func TestReleaseRemovesPIDFile(t *testing.T) {
	d := testDaemon(t)
	if err := d.Acquire(); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if err := d.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if _, err := os.Stat(d.pidFile); !os.IsNotExist(err) {
		t.Errorf("pid file still exists after Release: %v", err)
	}
	// A second Release is a no-op.
	if err := d.Release(); err != nil {
		t.Errorf("second Release() error = %v", err)
	}
}

func TestReadPIDMissingFile(t *testing.T) {
	d := testDaemon(t)
	pid, err := d.ReadPID()
	if err != nil {
		t.Fatalf("ReadPID() error = %v", err)
	}
	if pid != 0 {
		t.Errorf("ReadPID() = %d, want 0 for missing file", pid)
	}
}

func TestReadPIDGarbage(t *testing.T) {
	d := testDaemon(t)
	if err := os.WriteFile(d.pidFile, []byte("not-a-pid"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := d.ReadPID(); err == nil {
		t.Error("ReadPID() error = nil, want parse error")
	}
}

func TestIsRunningSelf(t *testing.T) {
	d := testDaemon(t)
	if err := d.Acquire(); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer d.Release()

	running, pid, err := d.IsRunning()
	if err != nil {
		t.Fatalf("IsRunning() error = %v", err)
	}
	if !running || pid != os.Getpid() {
		t.Errorf("IsRunning() = %v, %d, want true, %d", running, pid, os.Getpid())
	}
}

func TestIsRunningCleansStalePIDFile(t *testing.T) {
	d := testDaemon(t)
	// A PID far above any real pid_max makes the liveness probe fail
	// with "no such process".
	if err := os.WriteFile(d.pidFile, []byte("999999999"), 0o644); err != nil {
		t.Fatal(err)
	}
	running, _, err := d.IsRunning()
	if err != nil {
		t.Fatalf("IsRunning() error = %v", err)
	}
	if running {
		t.Error("IsRunning() = true for a dead PID")
	}
	if _, err := os.Stat(d.pidFile); !os.IsNotExist(err) {
		t.Error("stale pid file was not removed")
	}
}

func TestDetached(t *testing.T) {
	if Detached() {
		t.Error("Detached() = true without the marker variable")
	}
	t.Setenv(childEnv, "1")
	if !Detached() {
		t.Error("Detached() = false with the marker variable set")
	}
}
