package environ

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// taskCommLen is the kernel's TASK_COMM_LEN minus the trailing NUL: a
// process name read from /proc is at most this many bytes, so longer
// binary names arrive truncated.
const taskCommLen = 15

// Process is one entry from the process table.
type Process struct {
	PID     int
	Comm    string // short name, truncated by the kernel to taskCommLen
	Cmdline string // full command line, NUL bytes replaced by spaces
}

// ProcessLister enumerates running processes. The procfs implementation
// is the default; tests inject fixed tables.
type ProcessLister interface {
	Processes() ([]Process, error)
}

// ProcfsLister reads the process table from /proc (or another root,
// for tests).
type ProcfsLister struct {
	Root string // defaults to "/proc"
}

func (l ProcfsLister) Processes() ([]Process, error) {
	root := l.Root
	if root == "" {
		root = "/proc"
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var procs []Process
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}

		p := Process{PID: pid}

		statData, err := os.ReadFile(filepath.Join(root, entry.Name(), "stat"))
		if err != nil {
			continue
		}
		stat := string(statData)
		start := strings.Index(stat, "(")
		end := strings.LastIndex(stat, ")")
		if start != -1 && end > start {
			p.Comm = stat[start+1 : end]
		}

		if cmdData, err := os.ReadFile(filepath.Join(root, entry.Name(), "cmdline")); err == nil {
			p.Cmdline = strings.TrimSpace(strings.ReplaceAll(string(cmdData), "\x00", " "))
		}

		procs = append(procs, p)
	}
	return procs, nil
}

// StaticLister serves a fixed process table, for tests.
type StaticLister struct {
	Procs []Process
}

func (l StaticLister) Processes() ([]Process, error) {
	return l.Procs, nil
}

// runningExact reports whether a process with exactly the given short
// name is running, compared case-insensitively (pgrep -x -i semantics).
func runningExact(procs []Process, name string) bool {
	for _, p := range procs {
		if strings.EqualFold(p.Comm, name) {
			return true
		}
	}
	return false
}

// runningWrapped is the relaxed second pass for platforms that wrap
// binaries: the visible process name gains a prefix and loses its tail
// to the kernel's short-name truncation (".gnome-shell-wrapped" shows
// up as ".gnome-shell-wr"), so an exact match can never succeed. It
// matches name as a case-insensitive substring of the comm, bounded to
// comm lengths at or below taskCommLen.
func runningWrapped(procs []Process, name string) bool {
	lowered := strings.ToLower(name)
	for _, p := range procs {
		if len(p.Comm) > taskCommLen {
			continue
		}
		if strings.Contains(strings.ToLower(p.Comm), lowered) {
			return true
		}
	}
	return false
}

// anyMentions reports whether any process's name or command line
// contains the given word, case-insensitively. Used for the last-ditch
// session-type scan on systems that never set XDG_SESSION_TYPE.
func anyMentions(procs []Process, word string) bool {
	lowered := strings.ToLower(word)
	for _, p := range procs {
		if strings.Contains(strings.ToLower(p.Comm), lowered) {
			return true
		}
		if strings.Contains(strings.ToLower(p.Cmdline), lowered) {
			return true
		}
	}
	return false
}
