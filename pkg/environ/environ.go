package environ

import "fmt"

// Session type values.
const (
	SessionX11     = "x11"
	SessionWayland = "wayland"
	SessionUnknown = "unknown"
)

// DesktopUnknown is used when no desktop environment signal resolved.
const DesktopUnknown = "unknown"

// WMUnidentified is the sentinel stored in WindowManager when every
// detection method came up empty. Consumers must treat it as a hard
// detection failure, never as a compositor name.
const WMUnidentified = "WM_unidentified_by_logic"

// Info is the detected environment. Values are recomputed on demand by
// Probe.Detect and never mutated in place.
type Info struct {
	DistroID      string
	DistroVer     string
	VariantID     string
	SessionType   string
	DesktopEnv    string
	DEMajorVer    string
	WindowManager string
}

// Unidentified reports whether window-manager detection failed.
func (i Info) Unidentified() bool {
	return i.WindowManager == WMUnidentified
}

// String renders the info in the one-field-per-line layout the
// `winctx env` command prints.
func (i Info) String() string {
	return fmt.Sprintf(
		"DISTRO_ID     = %q\n"+
			"DISTRO_VER    = %q\n"+
			"VARIANT_ID    = %q\n"+
			"SESSION_TYPE  = %q\n"+
			"DESKTOP_ENV   = %q\n"+
			"DE_MAJ_VER    = %q\n"+
			"WINDOW_MGR    = %q",
		i.DistroID, i.DistroVer, i.VariantID,
		i.SessionType, i.DesktopEnv, i.DEMajorVer, i.WindowManager)
}
