package environ

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	osReleasePath   = "etc/os-release"
	lsbReleasePath  = "etc/lsb-release"
	archReleasePath = "etc/arch-release"
	nixosMarkerPath = "etc/NIXOS"
)

// releaseFiles holds the raw lines of the OS release metadata files,
// keyed by their path relative to the filesystem root.
type releaseFiles map[string][]string

func readReleaseFiles(root string) releaseFiles {
	paths := []string{osReleasePath, lsbReleasePath, archReleasePath}
	contents := make(releaseFiles)
	for _, path := range paths {
		data, err := os.ReadFile(filepath.Join(root, path))
		if err != nil {
			continue
		}
		contents[path] = strings.Split(string(data), "\n")
	}
	return contents
}

// value returns the first "<prefix>value" line's value from the named
// file, with surrounding whitespace and quotes stripped. Prefixes are
// tried in order; a matching line with an empty value does not stop
// the search.
func (r releaseFiles) value(path string, prefixes ...string) string {
	lines, ok := r[path]
	if !ok {
		return ""
	}
	for _, prefix := range prefixes {
		for _, line := range lines {
			if !strings.HasPrefix(line, prefix) {
				continue
			}
			v := strings.Trim(strings.TrimSpace(line[len(prefix):]), `"`)
			if v != "" {
				return v
			}
		}
	}
	return ""
}

func (r releaseFiles) has(path string) bool {
	_, ok := r[path]
	return ok
}
