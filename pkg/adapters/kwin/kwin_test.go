package kwin

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/winctx/winctx/internal/hub"
	"github.com/winctx/winctx/pkg/window"
)

func TestNotifyPublishesContext(t *testing.T) {
	h := hub.New()
	a := &Adapter{hub: h, log: zerolog.Nop()}

	a.Notify("Dolphin - Home", "org.kde.dolphin", "dolphin")

	got, ok := h.Current()
	if !ok {
		t.Fatal("Current() ok = false, want true")
	}
	if got.AppID != "dolphin" {
		t.Errorf("AppID = %q, want dolphin", got.AppID)
	}
	if got.AppClass != "org.kde.dolphin" {
		t.Errorf("AppClass = %q, want org.kde.dolphin", got.AppClass)
	}
	if got.Title != "Dolphin - Home" {
		t.Errorf("Title = %q, want the caption", got.Title)
	}
	if got.Source != window.KindKwin {
		t.Errorf("Source = %s, want %s", got.Source, window.KindKwin)
	}
}

func TestProcessNameFitsCommLimit(t *testing.T) {
	if len(processName) > 15 {
		t.Errorf("processName %q is %d bytes, kernel comm limit is 15", processName, len(processName))
	}
}

func TestSetupRejectsUnknownVersion(t *testing.T) {
	a := &Adapter{log: zerolog.Nop()}
	for _, ver := range []string{"4", "7", "", "kde_ver_check_err"} {
		if err := a.Setup(context.Background(), ver); err == nil {
			t.Errorf("Setup(%q) error = nil, want version error", ver)
		}
	}
}

func TestBuildScriptPackage(t *testing.T) {
	for _, ver := range []string{"5", "6"} {
		t.Run("kde"+ver, func(t *testing.T) {
			pkgPath, err := buildScriptPackage(ver)
			if err != nil {
				t.Fatalf("buildScriptPackage(%q) error = %v", ver, err)
			}
			defer os.Remove(pkgPath)

			zr, err := zip.OpenReader(pkgPath)
			if err != nil {
				t.Fatalf("OpenReader() error = %v", err)
			}
			defer zr.Close()

			files := make(map[string]string)
			for _, f := range zr.File {
				rc, err := f.Open()
				if err != nil {
					t.Fatalf("open %s: %v", f.Name, err)
				}
				data, err := io.ReadAll(rc)
				rc.Close()
				if err != nil {
					t.Fatalf("read %s: %v", f.Name, err)
				}
				files[f.Name] = string(data)
			}

			script, ok := files["contents/code/main.js"]
			if !ok {
				t.Fatal("package missing contents/code/main.js")
			}
			if !strings.Contains(script, "NotifyActiveWindow") {
				t.Error("script does not call NotifyActiveWindow")
			}
			if !strings.Contains(script, "org.winctx.Plasma") {
				t.Error("script does not target the context service")
			}

			meta, ok := files["metadata.json"]
			if !ok {
				t.Fatal("package missing metadata.json")
			}
			if !strings.Contains(meta, ScriptName) {
				t.Error("metadata does not carry the script ID")
			}
		})
	}
}
