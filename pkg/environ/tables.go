package environ

import "regexp"

// alias maps a name pattern seen in the wild to the simplified
// identifier the rest of the system keys on. Order matters: the first
// matching pattern wins, so more specific entries sit above the
// generic ones they would otherwise shadow.
type alias struct {
	pattern *regexp.Regexp
	id      string
}

func rx(expr string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + expr)
}

// distroAliases simplifies distro names found in release files.
var distroAliases = []alias{
	{rx(`Debian.*`), "debian"},
	{rx(`Fedora.*`), "fedora"},
	{rx(`LMDE.*`), "lmde"},
	{rx(`Manjaro`), "manjaro"},
	{rx(`KDE.*Neon`), "neon"},
	{rx(`Linux.*Mint`), "mint"},
	{rx(`openSUSE.*Tumbleweed`), "opensuse-tumbleweed"},
	{rx(`Peppermint.*`), "peppermint"},
	{rx(`Pop!_OS`), "pop"},
	{rx(`Red.*Hat.*`), "rhel"},
	{rx(`Rocky.*`), "rocky"},
	{rx(`Ubuntu`), "ubuntu"},
	{rx(`Ultramarine.*Linux`), "ultramarine"},
	{rx(`Zorin.*`), "zorin"},
}

// archFamilyDistros never carry VERSION_ID in their release files.
var archFamilyDistros = map[string]bool{
	"arch":        true,
	"arcolinux":   true,
	"endeavouros": true,
	"garuda":      true,
	"manjaro":     true,
}

// desktopAliases simplifies desktop-environment names from the session
// env vars. "Unity" must stay above "Ubuntu" so Unity sessions are not
// misread as GNOME; the unity substring is additionally special-cased
// before this table is consulted.
var desktopAliases = []alias{
	{rx(`Budgie`), "budgie"},
	{rx(`Cinnamon`), "cinnamon"},
	{rx(`COSMIC`), "cosmic"},
	{rx(`Cutefish`), "cutefish"},
	{rx(`DDE`), "dde"},
	{rx(`Deepin`), "deepin"},
	{rx(`Enlightenment`), "enlightenment"},
	{rx(`GNOME`), "gnome"},
	{rx(`Hyprland`), "hyprland"},
	{rx(`i3`), "i3"},
	{rx(`i3wm`), "i3"},
	{rx(`IceWM`), "icewm"},
	{rx(`KDE`), "kde"},
	{rx(`LXDE`), "lxde"},
	{rx(`LXQt`), "lxqt"},
	{rx(`MATE`), "mate"},
	{rx(`Miracle-WM`), "miracle-wm"},
	{rx(`miracle-wm:mir`), "miracle-wm"},
	{rx(`Miriway`), "miriway"},
	{rx(`Niri`), "niri"},
	{rx(`Pantheon`), "pantheon"},
	{rx(`Plasma`), "kde"},
	{rx(`qtile:wlroots`), "qtile"},
	{rx(`Qtile`), "qtile"},
	// 'qtilewaylan' is the value seen in real life (typo in Qtile?);
	// the corrected spelling is matched too in case it gets fixed.
	{rx(`qtilewaylan`), "qtile"},
	{rx(`qtilewayland`), "qtile"},
	{rx(`qtilex11`), "qtile"},
	{rx(`Sway`), "sway"},
	{rx(`SwayWM`), "sway"},
	{rx(`Trinity`), "trinity"},
	{rx(`UKUI`), "ukui"},
	{rx(`Unity`), "unity"},
	{rx(`Ubuntu`), "gnome"},
	{rx(`Wayfire`), "wayfire"},
	{rx(`WindowMaker`), "wmaker"},
	{rx(`Xfce`), "xfce"},
}

func lookupAlias(table []alias, raw string) string {
	for _, a := range table {
		if a.pattern.MatchString(raw) {
			return a.id
		}
	}
	return ""
}

// desktopProcessChecks confirms a desktop environment from running
// processes when no session env var identified one. Checked in order.
var desktopProcessChecks = []struct {
	desktop   string
	processes []string
}{
	{"kde", []string{"plasmashell", "kwin_ft", "kwin_wayland", "kwin_x11", "kwin"}},
	{"gnome", []string{"gnome-shell"}},
	{"miracle-wm", []string{"miracle-wm"}},
	{"sway", []string{"sway", "swaywm"}},
	{"hyprland", []string{"hyprland"}},
}

// deWindowManagers maps a desktop environment to the window-manager
// process names it is known to run, most likely first. List entries are
// tried in order; the first one found running wins.
var deWindowManagers = []struct {
	desktop string
	wms     []string
}{
	// Older KDE may just use the 'kwin' process name.
	{"kde", []string{"kwin_wayland", "kwin_x11", "kwin"}},
	// Older GNOME may run 'mutter' separately from 'gnome-shell'.
	{"gnome", []string{"mutter", "gnome-shell"}},
	// LXQt often uses Openbox but can pair with many compositors.
	{"lxqt", []string{
		"openbox",
		"labwc",
		"sway",
		"hyprland",
		"kwin_wayland",
		"wayfire",
		"river",
		"niri",
		"miriway",
		"miriway-shell",
	}},
	{"awesome", []string{"awesome"}},
	{"cinnamon", []string{"cinnamon"}},
	{"cosmic", []string{"cosmic-comp"}},
	{"dwm", []string{"dwm"}},
	// The Hyprland process name is capitalized, which is unusual.
	{"hyprland", []string{"Hyprland"}},
	{"i3", []string{"i3"}},
	{"i3-gaps", []string{"i3"}},
	{"miracle-wm", []string{"miracle-wm"}},
	{"openbox", []string{"openbox"}},
	{"pantheon", []string{"gala"}},
	{"sway", []string{"sway"}},
	{"xfce", []string{"xfwm4"}},
}

func windowManagersFor(desktop string) ([]string, bool) {
	for _, e := range deWindowManagers {
		if e.desktop == desktop {
			return e.wms, true
		}
	}
	return nil, false
}

// canonicalWM collapses synonym binaries onto one canonical compositor
// name so adapter gating never has to special-case them.
var canonicalWM = map[string]string{
	"mutter": "gnome-shell",
}

// Canonicalize returns the canonical compositor name for wm.
func Canonicalize(wm string) string {
	if c, ok := canonicalWM[wm]; ok {
		return c
	}
	return wm
}

// inferredWM is the desktop-env to compositor inference used as a last
// resort when no window-manager process was found. This is a guess,
// not a confirmation.
func inferredWM(desktop, sessionType string) string {
	switch desktop {
	case "gnome":
		return "gnome-shell"
	case "kde":
		if sessionType == SessionX11 {
			return "kwin_x11"
		}
		return "kwin_wayland"
	case "cosmic":
		return "cosmic-comp"
	case "pantheon":
		return "gala"
	case "xfce":
		return "xfwm4"
	case "hyprland":
		return "Hyprland"
	case "sway", "i3", "dwm", "awesome", "cinnamon", "openbox", "miracle-wm":
		return desktop
	}
	return ""
}
