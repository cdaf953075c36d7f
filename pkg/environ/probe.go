package environ

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/winctx/winctx/internal/logging"
)

// sessionSettleDelay is how long to wait before falling back to a
// process-table scan for the session type. Sessions started straight
// from a TTY can take a moment to bring the compositor up.
const sessionSettleDelay = 3 * time.Second

// Probe detects the current environment. The zero value uses the live
// system; tests inject fixtures through the exported fields. Detect is
// a pure function of those inputs: it reads files, env vars and the
// process table, and performs no writes.
type Probe struct {
	// Overrides short-circuits detection for the fields it sets.
	Overrides PartialOverrides

	// Getenv defaults to os.Getenv.
	Getenv func(string) string

	// Procs defaults to ProcfsLister reading /proc.
	Procs ProcessLister

	// ReleaseRoot is the filesystem root holding etc/os-release and
	// friends. Defaults to "/".
	ReleaseRoot string

	// HomeDir defaults to os.UserHomeDir, for the LXQt session config
	// and the qtile socket probe.
	HomeDir string

	// Runner executes external version lookups (gnome-shell --version
	// and the like). Defaults to exec.Command(...).Output().
	Runner func(name string, args ...string) ([]byte, error)

	// LookPath defaults to exec.LookPath.
	LookPath func(string) (string, error)

	// SettleDelay overrides sessionSettleDelay when positive.
	SettleDelay time.Duration

	// Sleep defaults to time.Sleep; tests replace it so the session
	// settle delay does not slow them down.
	Sleep func(time.Duration)

	// FileExists defaults to an os.Stat check.
	FileExists func(string) bool

	// ReadFile defaults to os.ReadFile.
	ReadFile func(string) ([]byte, error)

	// Log receives detection diagnostics; nil disables them.
	Log *zerolog.Logger
}

// NewProbe returns a Probe wired to the live system, with overrides
// resolved from the environment.
func NewProbe() *Probe {
	log := logging.WithComponent("environ")
	return &Probe{
		Overrides: Resolver{}.Resolve(),
		Log:       &log,
	}
}

// Detect computes the environment info. It never fails: fields that
// cannot be resolved get their documented fallback values, and
// WindowManager worst-cases to the WMUnidentified sentinel.
func (p *Probe) Detect() Info {
	log := zerolog.Nop()
	if p.Log != nil {
		log = *p.Log
	}
	getenv := p.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	lister := p.Procs
	if lister == nil {
		lister = ProcfsLister{}
	}

	rel := readReleaseFiles(p.releaseRoot())

	var info Info
	info.DistroID = p.distroID(rel)
	info.DistroVer = distroVersion(rel, info.DistroID)
	info.VariantID = variantID(rel)
	info.SessionType = p.sessionType(getenv, lister, log)

	procs, err := lister.Processes()
	if err != nil {
		log.Warn().Err(err).Msg("could not read the process table")
	}

	info.DesktopEnv = p.desktopEnv(getenv, procs, log)
	info.DEMajorVer = p.desktopMajorVersion(info.DesktopEnv, getenv)
	info.WindowManager = p.windowManager(info, procs, log)
	return info
}

func (p *Probe) distroID(rel releaseFiles) string {
	raw := rel.value(osReleasePath, "ID=", "NAME=", "PRETTY_NAME=")
	if raw == "" {
		raw = rel.value(lsbReleasePath, "DISTRIB_ID=", "DISTRIB_DESCRIPTION=")
	}
	if raw == "" && rel.has(archReleasePath) {
		raw = "arch"
	}
	if raw == "" && p.fileExists(filepath.Join(p.releaseRoot(), nixosMarkerPath)) {
		raw = "nixos"
	}
	if id := lookupAlias(distroAliases, raw); id != "" {
		return id
	}
	return strings.ToLower(raw)
}

func distroVersion(rel releaseFiles, distroID string) string {
	var ver string
	if rel.has(osReleasePath) {
		ver = rel.value(osReleasePath, "VERSION_ID=")
	} else if rel.has(lsbReleasePath) {
		ver = rel.value(lsbReleasePath, "DISTRIB_RELEASE=")
	}
	if ver != "" {
		return ver
	}
	// Rolling Arch-family releases never carry VERSION_ID.
	if archFamilyDistros[distroID] {
		return "arch_btw"
	}
	return "notfound"
}

func variantID(rel releaseFiles) string {
	var variant string
	if rel.has(osReleasePath) {
		variant = rel.value(osReleasePath, "VARIANT_ID=")
	} else if rel.has(lsbReleasePath) {
		variant = rel.value(lsbReleasePath, "DISTRIB_DESCRIPTION=")
	}
	if variant == "" {
		return "notfound"
	}
	return variant
}

func (p *Probe) sessionType(getenv func(string) string, lister ProcessLister, log zerolog.Logger) string {
	st := strings.ToLower(getenv("XDG_SESSION_TYPE"))
	if st == SessionX11 || st == SessionWayland {
		return st
	}
	if st == "" {
		log.Warn().Msg("XDG_SESSION_TYPE is not set; not a graphical environment?")
	} else {
		// Seen when a session is started straight from a TTY without a
		// login manager: XDG_SESSION_TYPE comes up as 'tty'.
		log.Warn().Str("value", st).Msg("XDG_SESSION_TYPE has an unexpected value")
	}

	if wd := getenv("WAYLAND_DISPLAY"); strings.HasPrefix(wd, "wayland") {
		return SessionWayland
	}
	if getenv("DISPLAY") != "" {
		return SessionX11
	}

	// Archaic distros may never set the session vars at all. Let the
	// session settle, then look for compositor hints in the process
	// table. The wayland check runs second and wins when both match.
	p.sleep(p.settleDelay())
	procs, err := lister.Processes()
	if err != nil {
		log.Error().Err(err).Msg("session type detection failed")
		return SessionUnknown
	}
	st = SessionUnknown
	if anyMentions(procs, "xorg") {
		st = SessionX11
	}
	if anyMentions(procs, "wayland") {
		st = SessionWayland
	}
	if st == SessionUnknown {
		log.Error().Msg("could not determine session type")
	}
	return st
}

func (p *Probe) desktopEnv(getenv func(string) string, procs []Process, log zerolog.Logger) string {
	if p.Overrides.DesktopEnv != "" {
		return p.Overrides.DesktopEnv
	}

	raw := getenv("XDG_CURRENT_DESKTOP")
	if raw == "" {
		raw = getenv("XDG_SESSION_DESKTOP")
	}
	if raw == "" {
		raw = getenv("DESKTOP_SESSION")
	}
	// A colon-separated XDG_CURRENT_DESKTOP lists the primary desktop
	// environment first.
	if i := strings.IndexByte(raw, ':'); i >= 0 {
		raw = raw[:i]
	}

	if raw == "" && p.qtileRunning(getenv) {
		raw = "qtile"
	}
	if raw == "" {
		log.Error().Msg("desktop environment not found in XDG_CURRENT_DESKTOP, XDG_SESSION_DESKTOP or DESKTOP_SESSION")
	}

	// Unity must be caught before the table maps "Ubuntu" to GNOME.
	if strings.Contains(strings.ToLower(raw), "unity") {
		return "unity"
	}

	if raw != "" {
		if id := lookupAlias(desktopAliases, raw); id != "" {
			return id
		}
		log.Error().Str("desktop", raw).Msg("desktop environment missing from the alias table; using the raw value")
		return raw
	}

	// Double-check for identifiable desktop processes before giving up.
	for _, chk := range desktopProcessChecks {
		for _, name := range chk.processes {
			if runningExact(procs, name) {
				log.Warn().Str("desktop", chk.desktop).Msg("desktop environment identified from running processes")
				return chk.desktop
			}
		}
	}
	return DesktopUnknown
}

// qtileRunning detects Qtile when the session env vars are unset, via
// its socket under the cache dir or a qtile DESKTOP_SESSION value.
func (p *Probe) qtileRunning(getenv func(string) string) bool {
	if strings.Contains(getenv("DESKTOP_SESSION"), "qtile") {
		return true
	}
	cache := getenv("XDG_CACHE_HOME")
	if cache == "" {
		cache = filepath.Join(p.homeDir(), ".cache")
	}
	for _, display := range []string{getenv("DISPLAY"), getenv("WAYLAND_DISPLAY")} {
		if display == "" {
			continue
		}
		if p.fileExists(filepath.Join(cache, "qtile", "qtilesocket."+display)) {
			return true
		}
	}
	return false
}

func (p *Probe) windowManager(info Info, procs []Process, log zerolog.Logger) string {
	if p.Overrides.WindowManager != "" {
		return p.Overrides.WindowManager
	}

	// Exact pass, scoped to the detected desktop environment first.
	if wms, ok := windowManagersFor(info.DesktopEnv); ok {
		for _, wm := range wms {
			if runningExact(procs, wm) {
				return Canonicalize(wm)
			}
		}
	}

	if info.DesktopEnv == "lxqt" {
		if wm := p.lxqtWindowManager(procs, log); wm != "" {
			return Canonicalize(wm)
		}
	}

	// Exact pass over every known window manager.
	for _, e := range deWindowManagers {
		for _, wm := range e.wms {
			if runningExact(procs, wm) {
				return Canonicalize(wm)
			}
		}
	}

	// Relaxed pass for platforms that wrap binaries: the wrapper
	// prefix plus kernel truncation defeats exact matching, so retry
	// with bounded substring matching.
	if wrappedBinaryPlatform(info.DistroID) {
		if wms, ok := windowManagersFor(info.DesktopEnv); ok {
			for _, wm := range wms {
				if runningWrapped(procs, wm) {
					log.Debug().Str("window_manager", wm).Msg("window manager matched through the wrapped-binary fallback")
					return Canonicalize(wm)
				}
			}
		}
		for _, e := range deWindowManagers {
			for _, wm := range e.wms {
				if runningWrapped(procs, wm) {
					log.Debug().Str("window_manager", wm).Msg("window manager matched through the wrapped-binary fallback")
					return Canonicalize(wm)
				}
			}
		}
	}

	// Last resort: infer from the desktop environment. A guess, not a
	// confirmation.
	if wm := inferredWM(info.DesktopEnv, info.SessionType); wm != "" {
		log.Warn().Str("window_manager", wm).Msg("window manager inferred from the desktop environment, not confirmed")
		return wm
	}

	return WMUnidentified
}

// lxqtWindowManager consults ~/.config/lxqt/session.conf, which names
// the window manager LXQt was configured to launch.
func (p *Probe) lxqtWindowManager(procs []Process, log zerolog.Logger) string {
	path := filepath.Join(p.homeDir(), ".config", "lxqt", "session.conf")
	data, err := p.readFile(path)
	if err != nil {
		log.Debug().Str("path", path).Msg("no LXQt session config")
		return ""
	}
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "window_manager=") && !strings.HasPrefix(line, "compositor=") {
			continue
		}
		_, value, _ := strings.Cut(line, "=")
		name := filepath.Base(strings.TrimSpace(value))
		// Miriway's launcher name differs from its running process.
		if name == "miriway" && runningExact(procs, "miriway-shell") {
			return "miriway-shell"
		}
		if runningExact(procs, name) {
			return name
		}
		// The config may be outdated; let the global scan decide.
		break
	}
	return ""
}

// wrappedBinaryPlatform reports whether the distro is known to wrap
// binaries so that process names gain a prefix and lose their tail.
func wrappedBinaryPlatform(distroID string) bool {
	return distroID == "nixos"
}

func (p *Probe) releaseRoot() string {
	if p.ReleaseRoot != "" {
		return p.ReleaseRoot
	}
	return "/"
}

func (p *Probe) homeDir() string {
	if p.HomeDir != "" {
		return p.HomeDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}

func (p *Probe) fileExists(path string) bool {
	if p.FileExists != nil {
		return p.FileExists(path)
	}
	_, err := os.Stat(path)
	return err == nil
}

func (p *Probe) readFile(path string) ([]byte, error) {
	if p.ReadFile != nil {
		return p.ReadFile(path)
	}
	return os.ReadFile(path)
}

func (p *Probe) settleDelay() time.Duration {
	if p.SettleDelay > 0 {
		return p.SettleDelay
	}
	return sessionSettleDelay
}

func (p *Probe) sleep(d time.Duration) {
	if p.Sleep != nil {
		p.Sleep(d)
		return
	}
	time.Sleep(d)
}
