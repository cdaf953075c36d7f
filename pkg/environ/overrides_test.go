package environ

import "testing"

func TestResolverEnvOverConfig(t *testing.T) {
	env := map[string]string{
		EnvOverrideWM: "kwin_wayland",
	}
	r := Resolver{
		Getenv: func(key string) string { return env[key] },
		FromConfig: PartialOverrides{
			DesktopEnv:    "kde",
			WindowManager: "kwin_x11",
		},
	}

	got := r.Resolve()
	if got.WindowManager != "kwin_wayland" {
		t.Errorf("WindowManager = %q, want the env var to beat the config", got.WindowManager)
	}
	if got.DesktopEnv != "kde" {
		t.Errorf("DesktopEnv = %q, want the config value to fill the gap", got.DesktopEnv)
	}
}

func TestResolverEmpty(t *testing.T) {
	r := Resolver{Getenv: func(string) string { return "" }}
	if got := r.Resolve(); !got.Empty() {
		t.Errorf("Resolve() = %+v, want empty", got)
	}
}

func TestPartialOverridesMerge(t *testing.T) {
	a := PartialOverrides{DesktopEnv: "gnome"}
	b := PartialOverrides{DesktopEnv: "kde", WindowManager: "kwin_wayland"}

	got := a.Merge(b)
	if got.DesktopEnv != "gnome" {
		t.Errorf("DesktopEnv = %q, want the set field kept", got.DesktopEnv)
	}
	if got.WindowManager != "kwin_wayland" {
		t.Errorf("WindowManager = %q, want the unset field filled", got.WindowManager)
	}
}
