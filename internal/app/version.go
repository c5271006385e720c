package app

import (
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"strings"
)

// Overridden at link time, for example
// -ldflags "-X github.com/tejashwikalptaru/playqueue/internal/app.version=v1.2.0".
var (
	version = "dev"
	commit  = ""
	built   = ""
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string
	Commit    string
	Built     string
	Modified  bool
	GoVersion string
}

// ReadBuildInfo merges the link-time values with the VCS stamp the Go
// toolchain embeds. Link-time values win.
func ReadBuildInfo() BuildInfo {
	info := BuildInfo{
		Version:   version,
		Commit:    commit,
		Built:     built,
		GoVersion: runtime.Version(),
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "" {
				info.Commit = s.Value
			}
		case "vcs.time":
			if info.Built == "" {
				info.Built = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}

// ShortCommit returns the first 12 characters of the commit hash.
func (b BuildInfo) ShortCommit() string {
	if len(b.Commit) > 12 {
		return b.Commit[:12]
	}
	return b.Commit
}

func (b BuildInfo) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "playqueue %s", b.Version)

	var details []string
	if c := b.ShortCommit(); c != "" {
		if b.Modified {
			c += "-dirty"
		}
		details = append(details, "commit "+c)
	}
	if b.Built != "" {
		details = append(details, "built "+b.Built)
	}
	details = append(details, b.GoVersion)
	fmt.Fprintf(&sb, " (%s)", strings.Join(details, ", "))
	return sb.String()
}

// LogValue implements slog.LogValuer.
func (b BuildInfo) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("version", b.Version),
		slog.String("commit", b.ShortCommit()),
		slog.Bool("modified", b.Modified),
		slog.String("go", b.GoVersion),
	)
}
