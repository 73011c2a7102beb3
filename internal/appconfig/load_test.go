package appconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadRejectsUnsupportedConfigVersion(t *testing.T) {
	path := writeConfig(t, `
config_version: 3
server:
  host: archive.local
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unsupported config_version") {
		t.Fatalf("expected config_version error, got %v", err)
	}
}

func TestLoadRequiresConfigVersion(t *testing.T) {
	path := writeConfig(t, `
server:
  host: archive.local
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "config_version is required") {
		t.Fatalf("expected config_version error, got %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def, _ := DefaultConfig()
	if cfg.Server != def.Server || cfg.Bookmarks != def.Bookmarks {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
	if cfg.Bookmarks.InsertEpsilon != 3.0 || cfg.Bookmarks.RemoveEpsilon != 0.1 {
		t.Fatalf("unexpected epsilons %+v", cfg.Bookmarks)
	}
}

func TestLoadOverridesAndKeepsDefaults(t *testing.T) {
	t.Setenv("VARSYNC_TEST_RUNTIME", "/run/test")
	path := writeConfig(t, `
config_version: 1
server:
  host: archive.local
  port: 8443
bookmarks:
  insert_epsilon: 1.5
mpv:
  socket: $VARSYNC_TEST_RUNTIME/mpv.sock
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Host != "archive.local" || cfg.Server.Port != 8443 || cfg.Server.Scheme != "wss" {
		t.Fatalf("unexpected server config %+v", cfg.Server)
	}
	if cfg.Bookmarks.InsertEpsilon != 1.5 || cfg.Bookmarks.RemoveEpsilon != 0.1 {
		t.Fatalf("unexpected bookmarks config %+v", cfg.Bookmarks)
	}
	if cfg.MPV.Socket != "/run/test/mpv.sock" {
		t.Fatalf("expected expanded socket path, got %q", cfg.MPV.Socket)
	}
	if cfg.Session.ReportIntervalMS != 100 {
		t.Fatalf("expected default report interval, got %d", cfg.Session.ReportIntervalMS)
	}
}

func TestLoadRejectsInvalidServer(t *testing.T) {
	cases := map[string]string{
		"unsupported server.scheme": "server:\n  scheme: http\n",
		"server.port":               "server:\n  port: 70000\n",
		"server.path":               "server:\n  path: /ws?x=1\n",
		"reconnect.jitter":          "reconnect:\n  jitter: 1.5\n",
	}
	for want, body := range cases {
		path := writeConfig(t, "config_version: 1\n"+body)
		if _, err := Load(path); err == nil || !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q error, got %v", want, err)
		}
	}
}

func TestServerURL(t *testing.T) {
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	if got := cfg.ServerURL("abc"); got != "wss://127.0.0.1:19000/ws/abc" {
		t.Fatalf("unexpected url %q", got)
	}
	cfg.Server.Path = ""
	cfg.Server.Host = "::1"
	if got := cfg.ServerURL("abc"); got != "wss://[::1]:19000/abc" {
		t.Fatalf("unexpected url %q", got)
	}
	if Millis(250) != 250*time.Millisecond {
		t.Fatalf("unexpected millis conversion")
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("FOO", "bar")
	value := expandEnv("$FOO/$UID/$GID/$MISSING")
	if !strings.HasPrefix(value, "bar/") {
		t.Fatalf("expected env expansion, got %q", value)
	}
	if strings.Contains(value, "$UID") || strings.Contains(value, "$GID") {
		t.Fatalf("expected UID/GID expansion, got %q", value)
	}
	if !strings.HasSuffix(value, "/$MISSING") {
		t.Fatalf("expected missing vars to remain, got %q", value)
	}
}

func TestWriteDefaultRespectsOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	written, err := WriteDefault(path, false)
	if err != nil {
		t.Fatalf("write default: %v", err)
	}
	if written != path {
		t.Fatalf("expected path %q, got %q", path, written)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config to exist: %v", err)
	}
	if _, err := WriteDefault(path, false); err == nil {
		t.Fatalf("expected error when config exists")
	}
	if _, err := WriteDefault(path, true); err != nil {
		t.Fatalf("expected overwrite to succeed: %v", err)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
