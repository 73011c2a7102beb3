// Package version reports the build identity of the varsync binary.
package version

import (
	"fmt"
	"runtime/debug"
	"strings"
	"time"
)

const defaultModule = "pkt.systems/varsync"

// buildVersion is set via -ldflags "-X pkt.systems/varsync/internal/version.buildVersion=...".
var buildVersion = ""

// Info describes the running build.
type Info struct {
	Module    string
	Version   string
	Revision  string
	Time      time.Time
	Dirty     bool
	GoVersion string
}

// String renders the info on one line.
func (i Info) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", i.Module, i.Version)
	if i.Revision != "" {
		fmt.Fprintf(&b, " (%s", i.Revision)
		if i.Dirty {
			b.WriteString(", dirty")
		}
		b.WriteString(")")
	}
	if i.GoVersion != "" {
		fmt.Fprintf(&b, " %s", i.GoVersion)
	}
	return b.String()
}

// Read collects the build info of the running binary.
func Read() Info {
	info, _ := debug.ReadBuildInfo()
	return fromBuildInfo(info)
}

// Current returns the version string without a dirty suffix.
func Current() string {
	return Read().Version
}

// UserAgent is sent on the websocket handshake.
func UserAgent() string {
	return "varsync/" + Current()
}

func fromBuildInfo(info *debug.BuildInfo) Info {
	out := Info{Module: defaultModule, Version: "v0.0.0-unknown"}
	if info != nil {
		if path := strings.TrimSpace(info.Main.Path); path != "" {
			out.Module = path
		}
		out.GoVersion = info.GoVersion
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				out.Revision = setting.Value
			case "vcs.time":
				if parsed, err := time.Parse(time.RFC3339, setting.Value); err == nil {
					out.Time = parsed.UTC()
				}
			case "vcs.modified":
				out.Dirty = setting.Value == "true"
			}
		}
		if v := strings.TrimSpace(info.Main.Version); v != "" && v != "(devel)" {
			out.Version = v
		} else if pseudo := out.pseudo(); pseudo != "" {
			out.Version = pseudo
		}
	}
	if v := strings.TrimSpace(buildVersion); v != "" {
		out.Version = v
	}
	out.Version = strings.TrimSuffix(out.Version, "+dirty")
	return out
}

// pseudo builds a Go-style pseudo version from VCS stamps.
func (i Info) pseudo() string {
	if i.Revision == "" || i.Time.IsZero() {
		return ""
	}
	rev := i.Revision
	if len(rev) > 12 {
		rev = rev[:12]
	}
	return "v0.0.0-" + i.Time.Format("20060102150405") + "-" + rev
}
