package environ

import "os"

// Override environment variables. When set, the value is used verbatim
// for the corresponding field and every detection step for that field
// is skipped. An invalid value still wins: the caller asked for it.
const (
	EnvOverrideDesktop = "WINCTX_OVERRIDE_DESKTOP_ENV"
	EnvOverrideWM      = "WINCTX_OVERRIDE_WINDOW_MGR"
)

// PartialOverrides carries explicit user-supplied values that replace
// detection for the fields that are set. The zero value overrides
// nothing.
type PartialOverrides struct {
	DesktopEnv    string `yaml:"desktop_env"`
	WindowManager string `yaml:"window_manager"`
}

// Empty reports whether no field is overridden.
func (o PartialOverrides) Empty() bool {
	return o.DesktopEnv == "" && o.WindowManager == ""
}

// Merge fills unset fields of o from fallback, leaving set fields
// alone. Used to combine the env-var form with the config-file form;
// both have identical precedence, so the caller decides which is
// primary by merge direction.
func (o PartialOverrides) Merge(fallback PartialOverrides) PartialOverrides {
	if o.DesktopEnv == "" {
		o.DesktopEnv = fallback.DesktopEnv
	}
	if o.WindowManager == "" {
		o.WindowManager = fallback.WindowManager
	}
	return o
}

// Resolver reads the recognized override inputs. Environment variables
// are read through Getenv (os.Getenv by default); config-level
// overrides arrive pre-parsed in FromConfig.
type Resolver struct {
	Getenv     func(string) string
	FromConfig PartialOverrides
}

// Resolve returns the effective overrides: env vars merged over the
// config-supplied values.
func (r Resolver) Resolve() PartialOverrides {
	getenv := r.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	env := PartialOverrides{
		DesktopEnv:    getenv(EnvOverrideDesktop),
		WindowManager: getenv(EnvOverrideWM),
	}
	return env.Merge(r.FromConfig)
}
