package environ

import (
	"os/exec"
	"regexp"
	"strings"
)

// Version lookup fallbacks, reported instead of a number when the
// check itself went wrong.
const (
	verNoLogic       = "no_logic_for_DE"
	verGnomeCheckErr = "gnome_ver_check_err"
	verKDECheckErr   = "kde_ver_check_err"
	verLXQtCheckErr  = "lxqt_ver_check_err"
)

var (
	gnomeShellVerRx  = regexp.MustCompile(`GNOME Shell (\d+)\.`)
	lxqtSessionVerRx = regexp.MustCompile(`lxqt-session (\d+\.\d+\.\d+)`)
)

// desktopMajorVersion resolves the major version of desktop
// environments whose behavior differs meaningfully across releases
// (GNOME, KDE Plasma, LXQt). Everything else gets the no-logic marker.
func (p *Probe) desktopMajorVersion(desktop string, getenv func(string) string) string {
	var ver string
	switch desktop {
	case "gnome":
		ver = p.gnomeVersion()
	case "kde":
		ver = p.kdeVersion(getenv)
	case "lxqt":
		ver = p.lxqtVersion()
	}
	if ver == "" {
		return verNoLogic
	}
	return ver
}

func (p *Probe) gnomeVersion() string {
	out, err := p.run("gnome-shell", "--version")
	if err != nil {
		return verGnomeCheckErr
	}
	if m := gnomeShellVerRx.FindSubmatch(out); m != nil {
		return string(m[1])
	}
	return ""
}

// kdeVersion trusts KDE_SESSION_VERSION when it carries a known value
// and otherwise sniffs which kpackagetool generation is on PATH. KDE 4
// shipped the tool without a version suffix.
func (p *Probe) kdeVersion(getenv func(string) string) string {
	switch v := getenv("KDE_SESSION_VERSION"); v {
	case "3", "4", "5", "6":
		return v
	}
	if _, err := p.lookPath("kpackagetool6"); err == nil {
		return "6"
	}
	if _, err := p.lookPath("kpackagetool5"); err == nil {
		return "5"
	}
	if _, err := p.lookPath("kpackagetool"); err == nil {
		return "4"
	}
	return verKDECheckErr
}

func (p *Probe) lxqtVersion() string {
	out, err := p.run("lxqt-session", "--version")
	if err != nil {
		return verLXQtCheckErr
	}
	if m := lxqtSessionVerRx.FindSubmatch(out); m != nil {
		major, _, _ := strings.Cut(string(m[1]), ".")
		return major
	}
	return ""
}

func (p *Probe) run(name string, args ...string) ([]byte, error) {
	if p.Runner != nil {
		return p.Runner(name, args...)
	}
	return exec.Command(name, args...).Output()
}

func (p *Probe) lookPath(name string) (string, error) {
	if p.LookPath != nil {
		return p.LookPath(name)
	}
	return exec.LookPath(name)
}
