package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pkt.systems/varsync/internal/appconfig"
)

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	names := map[string]bool{}
	for _, cmd := range root.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"run", "init-config", "version"} {
		if !names[want] {
			t.Fatalf("expected root command to include %s", want)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}
	if fields := strings.Fields(out.String()); len(fields) != 2 {
		t.Fatalf("expected module and version, got %q", out.String())
	}
}

func TestInitConfigCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	root := newRootCmd()
	root.SetArgs([]string{"init-config", "-c", path})
	if err := root.Execute(); err != nil {
		t.Fatalf("init-config: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file: %v", err)
	}
	cfg, err := appconfig.Load(path)
	if err != nil {
		t.Fatalf("load written config: %v", err)
	}
	if cfg.ConfigVersion != appconfig.CurrentConfigVersion {
		t.Fatalf("unexpected config version %d", cfg.ConfigVersion)
	}

	root = newRootCmd()
	root.SetArgs([]string{"init-config", "-c", path})
	if err := root.Execute(); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}
}

func TestSessionConfigMapping(t *testing.T) {
	cfg, err := appconfig.DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	cfg.Bookmarks.InsertEpsilon = 2
	got := sessionConfig(cfg, "abc", "wss://host:1/ws/abc")
	if got.ID != "abc" || got.ServerURL != "wss://host:1/ws/abc" {
		t.Fatalf("unexpected identity %+v", got)
	}
	if got.ConnectTimeout != 5*time.Second || got.ReportInterval != 100*time.Millisecond {
		t.Fatalf("unexpected timings %+v", got)
	}
	if got.RetryInitialInterval() != 5500*time.Millisecond {
		t.Fatalf("unexpected retry interval %v", got.RetryInitialInterval())
	}
	if got.Bookmarks.InsertEpsilon != 2 || got.Bookmarks.RemoveEpsilon != 0.1 {
		t.Fatalf("unexpected bookmarks config %+v", got.Bookmarks)
	}
	if got.Skip.MaxSeekWait != 5*time.Second || got.Skip.MaxHistory != 100 {
		t.Fatalf("unexpected skip config %+v", got.Skip)
	}
}
