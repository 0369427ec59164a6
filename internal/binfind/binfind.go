// Package binfind locates the node executable inside a release directory.
//
// Releases ship as node-<version>-<os>-<arch>, with versions of up to four
// dotted numeric segments (2.0.4.1). The newest executable wins.
package binfind

import (
	"os"
	"path/filepath"
	"regexp"
	"runtime"

	version "github.com/hashicorp/go-version"
)

var releaseName = regexp.MustCompile(`^node-(\d+(?:\.\d+)*)-([a-z0-9]+)-([a-z0-9]+)$`)

// Finder resolves the node binary. Override, when set, is used as-is.
type Finder struct {
	Dir      string
	Override string
	GOOS     string
	GOARCH   string
}

// New returns a Finder for the host platform.
func New(dir, override string) *Finder {
	return &Finder{Dir: dir, Override: override, GOOS: runtime.GOOS, GOARCH: runtime.GOARCH}
}

// Find returns the path of the newest matching executable, or false when
// none is present.
func (f *Finder) Find() (string, bool) {
	if f.Override != "" {
		if isExecutable(f.Override) {
			return f.Override, true
		}
		return "", false
	}
	if f.Dir == "" {
		return "", false
	}

	entries, err := os.ReadDir(f.Dir)
	if err != nil {
		return "", false
	}

	var (
		best    string
		bestVer *version.Version
	)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ver, ok := f.match(e.Name())
		if !ok {
			continue
		}
		path := filepath.Join(f.Dir, e.Name())
		if !isExecutable(path) {
			continue
		}
		if best == "" || ver.GreaterThan(bestVer) {
			best, bestVer = path, ver
		}
	}
	return best, best != ""
}

// Version extracts the dotted version from a release file name.
func Version(name string) (string, bool) {
	m := releaseName.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return "", false
	}
	return m[1], true
}

func (f *Finder) match(name string) (*version.Version, bool) {
	m := releaseName.FindStringSubmatch(name)
	if m == nil {
		return nil, false
	}
	if f.GOOS != "" && m[2] != f.GOOS {
		return nil, false
	}
	if f.GOARCH != "" && m[3] != f.GOARCH {
		return nil, false
	}
	ver, err := version.NewVersion(m[1])
	if err != nil {
		return nil, false
	}
	return ver, true
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return info.Mode().Perm()&0o111 != 0
}
