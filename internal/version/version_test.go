package version

import (
	"runtime/debug"
	"strings"
	"testing"
	"time"
)

func TestBuildVersionWins(t *testing.T) {
	old := buildVersion
	buildVersion = "v1.2.3+dirty"
	t.Cleanup(func() { buildVersion = old })

	if got := Current(); got != "v1.2.3" {
		t.Fatalf("expected build version, got %q", got)
	}
	if got := UserAgent(); got != "varsync/v1.2.3" {
		t.Fatalf("unexpected user agent %q", got)
	}
}

func TestPseudoVersionFromVCS(t *testing.T) {
	ts := time.Date(2025, time.January, 2, 3, 4, 5, 0, time.UTC)
	info := &debug.BuildInfo{
		GoVersion: "go1.25.2",
		Main:      debug.Module{Path: "pkt.systems/varsync", Version: "(devel)"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "1234567890abcdef"},
			{Key: "vcs.time", Value: ts.Format(time.RFC3339)},
			{Key: "vcs.modified", Value: "true"},
		},
	}
	got := fromBuildInfo(info)
	if got.Version != "v0.0.0-20250102030405-1234567890ab" {
		t.Fatalf("unexpected version %q", got.Version)
	}
	if !got.Dirty || !got.Time.Equal(ts) {
		t.Fatalf("unexpected info %+v", got)
	}
	if s := got.String(); !strings.Contains(s, "dirty") || !strings.HasPrefix(s, "pkt.systems/varsync ") {
		t.Fatalf("unexpected string %q", s)
	}
}

func TestMissingBuildInfo(t *testing.T) {
	got := fromBuildInfo(nil)
	if got.Module != defaultModule || got.Version != "v0.0.0-unknown" {
		t.Fatalf("unexpected fallback %+v", got)
	}
}
