// Package version reports the running build. Release builds set the
// variables with ldflags:
//
//	go build -ldflags "-X github.com/jmylchreest/codecredit-api/internal/version.Version=1.0.0 ..."
//
// Without ldflags the commit and dirty flag come from the VCS stamp the Go
// toolchain embeds.
package version

import (
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
)

// Set via ldflags.
var (
	Version = "0.0.0-dev"
	Commit  = "unknown"
	Date    = "unknown" // RFC3339
	Dirty   = "false"
)

// Info describes the running build.
type Info struct {
	Version   string
	Commit    string
	Date      string
	Dirty     bool
	GoVersion string
	Platform  string
}

// Get returns the build info.
func Get() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		Dirty:     Dirty == "true",
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if info.Commit == "unknown" {
		if bi, ok := debug.ReadBuildInfo(); ok {
			applyVCS(&info, bi.Settings)
		}
	}
	return info
}

func applyVCS(info *Info, settings []debug.BuildSetting) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if len(s.Value) > 12 {
				info.Commit = s.Value[:12]
			} else if s.Value != "" {
				info.Commit = s.Value
			}
		case "vcs.time":
			if info.Date == "unknown" {
				info.Date = s.Value
			}
		case "vcs.modified":
			info.Dirty = info.Dirty || s.Value == "true"
		}
	}
}

// Short is the version with a -dirty suffix for modified trees.
func (i Info) Short() string {
	if i.Dirty {
		return i.Version + "-dirty"
	}
	return i.Version
}

// UserAgent returns the User-Agent sent to the execution gateway.
func (i Info) UserAgent() string {
	return fmt.Sprintf("codecredit-api/%s (%s)", i.Short(), i.Platform)
}

// LogValue groups the build fields under one log attribute.
func (i Info) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("version", i.Short()),
		slog.String("commit", i.Commit),
		slog.String("built", i.Date),
		slog.String("go_version", i.GoVersion),
		slog.String("platform", i.Platform),
	)
}
