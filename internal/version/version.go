// Package version resolves the build metadata reported by the asuslink
// CLI: the release version, the commit it was built from, and the
// toolchain/platform of the binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"time"
)

// Stamped at release time via ldflags:
//
//	go build -ldflags="-X github.com/muurk/asuslink/internal/version.Version=v1.2.3 \
//	                   -X github.com/muurk/asuslink/internal/version.Commit=abc123"
//
// Unstamped builds fall back to the VCS details Go embeds in the binary,
// or to a dated dev version when those are absent too.
var (
	Version = ""
	Commit  = ""
)

// Info is the resolved build metadata.
type Info struct {
	Version  string
	Commit   string
	Go       string // toolchain, e.g. "go1.24.0"
	Platform string // GOOS/GOARCH
}

var get = sync.OnceValue(resolveInfo)

// Get returns the build metadata, resolving it on first use.
func Get() Info {
	return get()
}

// Full returns the one-line form used by --version output.
func Full() string {
	info := Get()
	return fmt.Sprintf("%s (commit: %s)", info.Version, info.Commit)
}

func resolveInfo() Info {
	info := Info{
		Version:  Version,
		Commit:   Commit,
		Go:       runtime.Version(),
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
	}

	if info.Version == "" || info.Commit == "" {
		fillFromBuildInfo(&info)
	}
	if info.Version == "" {
		info.Version = fmt.Sprintf("dev-%s", time.Now().Format("20060102-150405"))
	}
	if info.Commit == "" {
		info.Commit = "unknown"
	}
	return info
}

// fillFromBuildInfo completes missing fields from the VCS settings Go
// embeds when building inside a git checkout.
func fillFromBuildInfo(info *Info) {
	build, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	var revision, modified, vcsTime string
	for _, setting := range build.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			modified = setting.Value
		case "vcs.time":
			vcsTime = setting.Value
		}
	}

	if info.Commit == "" && revision != "" {
		if len(revision) > 7 {
			revision = revision[:7]
		}
		info.Commit = revision
		if modified == "true" {
			info.Commit += "-dirty"
		}
	}

	// Build info carries no tags, so an unstamped version becomes a dev
	// version dated by the commit.
	if info.Version == "" && vcsTime != "" {
		if t, err := time.Parse(time.RFC3339, vcsTime); err == nil {
			info.Version = fmt.Sprintf("dev-%s", t.Format("20060102"))
		}
	}
}
