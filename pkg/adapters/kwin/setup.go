package kwin

import (
	"archive/zip"
	"context"
	"embed"
	"os"
	"os/exec"
	"path"
	"time"

	"github.com/pkg/errors"
)

//go:embed scripts
var scriptFS embed.FS

const (
	setupVerifyAttempts = 6
	setupVerifyDelay    = 5 * time.Second
)

// Setup installs and enables the companion KWin script for the given
// Plasma major version, then nudges KWin until it reports the script
// loaded. kpackagetool and kwriteconfig are versioned binaries, so
// the caller passes the major version detection resolved.
func (a *Adapter) Setup(ctx context.Context, kdeMajorVer string) error {
	switch kdeMajorVer {
	case "5", "6":
	default:
		return errors.Errorf("unsupported KDE major version %q for the KWin script", kdeMajorVer)
	}

	pkgPath, err := buildScriptPackage(kdeMajorVer)
	if err != nil {
		return err
	}
	defer os.Remove(pkgPath)

	kpackagetool := "kpackagetool" + kdeMajorVer
	kwriteconfig := "kwriteconfig" + kdeMajorVer

	// Remove any previous install first; failure just means there
	// was nothing to remove.
	if exec.CommandContext(ctx, kpackagetool, "-t", "KWin/Script", "-r", ScriptName).Run() == nil {
		a.log.Debug().Msg("removed existing KWin script")
	}

	out, err := exec.CommandContext(ctx, kpackagetool, "-t", "KWin/Script", "-i", pkgPath).CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "failed to install the KWin script: %s", out)
	}
	a.log.Info().Str("script", ScriptName).Msg("installed the KWin script")

	out, err = exec.CommandContext(ctx, kwriteconfig,
		"--file", "kwinrc", "--group", "Plugins",
		"--key", ScriptName+"Enabled", "true").CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "failed to enable the KWin script: %s", out)
	}

	// Right after login KWin may need several reconfigure nudges
	// before it activates a newly installed script.
	for i := 0; i < setupVerifyAttempts; i++ {
		if err := a.reconfigure(ctx); err != nil {
			a.log.Warn().Err(err).Msg("kwin reconfigure failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(setupVerifyDelay):
		}

		loaded, err := a.isScriptLoaded(ctx)
		if err != nil {
			a.log.Warn().Err(err).Msg("cannot query KWin scripting")
			continue
		}
		if loaded {
			a.log.Info().Msg("KWin reports the script loaded")
			return nil
		}
	}
	return errors.Errorf("KWin never reported script %s as loaded", ScriptName)
}

// buildScriptPackage zips the embedded script tree for one Plasma
// version into the .kwinscript layout kpackagetool installs from.
// The caller removes the returned file.
func buildScriptPackage(kdeMajorVer string) (string, error) {
	root := path.Join("scripts", "kde"+kdeMajorVer)

	tmp, err := os.CreateTemp("", ScriptName+"-*.kwinscript")
	if err != nil {
		return "", errors.Wrap(err, "failed to create script package file")
	}

	zw := zip.NewWriter(tmp)
	for _, name := range []string{"contents/code/main.js", "metadata.json"} {
		data, err := scriptFS.ReadFile(path.Join(root, name))
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			return "", errors.Wrapf(err, "embedded script file %s missing", name)
		}
		w, err := zw.Create(name)
		if err == nil {
			_, err = w.Write(data)
		}
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			return "", errors.Wrapf(err, "failed to package %s", name)
		}
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", errors.Wrap(err, "failed to finalize script package")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", errors.Wrap(err, "failed to write script package")
	}
	return tmp.Name(), nil
}
