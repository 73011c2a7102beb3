package appconfig

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("server.scheme", cfg.Server.Scheme)
	v.SetDefault("server.host", cfg.Server.Host)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.path", cfg.Server.Path)
	v.SetDefault("server.insecure_skip_verify", cfg.Server.InsecureSkipVerify)
	v.SetDefault("session.id", cfg.Session.ID)
	v.SetDefault("session.connect_timeout_ms", cfg.Session.ConnectTimeoutMS)
	v.SetDefault("session.report_interval_ms", cfg.Session.ReportIntervalMS)
	v.SetDefault("session.keepalive_interval_ms", cfg.Session.KeepaliveIntervalMS)
	v.SetDefault("reconnect.max_interval_ms", cfg.Reconnect.MaxIntervalMS)
	v.SetDefault("reconnect.multiplier", cfg.Reconnect.Multiplier)
	v.SetDefault("reconnect.jitter", cfg.Reconnect.Jitter)
	v.SetDefault("seek.poll_interval_ms", cfg.Seek.PollIntervalMS)
	v.SetDefault("seek.max_wait_ms", cfg.Seek.MaxWaitMS)
	v.SetDefault("bookmarks.insert_epsilon", cfg.Bookmarks.InsertEpsilon)
	v.SetDefault("bookmarks.remove_epsilon", cfg.Bookmarks.RemoveEpsilon)
	v.SetDefault("skip.max_history", cfg.Skip.MaxHistory)
	v.SetDefault("skip.threshold", cfg.Skip.Threshold)
	v.SetDefault("skip.poll_interval_ms", cfg.Skip.PollIntervalMS)
	v.SetDefault("skip.max_wait_ms", cfg.Skip.MaxWaitMS)
	v.SetDefault("mpv.socket", cfg.MPV.Socket)
	v.SetDefault("mpv.request_timeout_ms", cfg.MPV.RequestTimeoutMS)
	v.SetDefault("status.addr", cfg.Status.Addr)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.InConfig("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	switch cfg.Server.Scheme {
	case "ws", "wss":
	default:
		return fmt.Errorf("unsupported server.scheme %q", cfg.Server.Scheme)
	}
	if strings.TrimSpace(cfg.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", cfg.Server.Port)
	}
	if strings.ContainsAny(cfg.Server.Path, "?#") {
		return fmt.Errorf("server.path must not include query or fragment")
	}
	if cfg.Bookmarks.InsertEpsilon <= 0 || cfg.Bookmarks.RemoveEpsilon <= 0 {
		return fmt.Errorf("bookmarks epsilons must be positive")
	}
	if cfg.Reconnect.Multiplier < 1 {
		return fmt.Errorf("reconnect.multiplier must be at least 1")
	}
	if cfg.Reconnect.Jitter < 0 || cfg.Reconnect.Jitter >= 1 {
		return fmt.Errorf("reconnect.jitter must be in [0, 1)")
	}
	return nil
}

// ServerURL renders the websocket URL for a session. The session id becomes
// the last path segment.
func (c Config) ServerURL(sessionID string) string {
	u := url.URL{
		Scheme: c.Server.Scheme,
		Host:   net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port)),
		Path:   path.Join("/", c.Server.Path, sessionID),
	}
	return u.String()
}

// Millis converts a millisecond config value to a duration.
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.Server.Host = expandEnv(cfg.Server.Host)
	cfg.MPV.Socket = expandEnv(cfg.MPV.Socket)
	cfg.Status.Addr = expandEnv(cfg.Status.Addr)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
