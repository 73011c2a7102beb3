package appconfig

import (
	"os"
	"path/filepath"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int             `mapstructure:"config_version" yaml:"config_version"`
	Server        ServerConfig    `mapstructure:"server" yaml:"server"`
	Session       SessionConfig   `mapstructure:"session" yaml:"session"`
	Reconnect     ReconnectConfig `mapstructure:"reconnect" yaml:"reconnect"`
	Seek          SeekConfig      `mapstructure:"seek" yaml:"seek"`
	Bookmarks     BookmarksConfig `mapstructure:"bookmarks" yaml:"bookmarks"`
	Skip          SkipConfig      `mapstructure:"skip" yaml:"skip"`
	MPV           MPVConfig       `mapstructure:"mpv" yaml:"mpv"`
	Status        StatusConfig    `mapstructure:"status" yaml:"status"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// ServerConfig locates the archive peer's websocket endpoint.
type ServerConfig struct {
	Scheme             string `mapstructure:"scheme" yaml:"scheme"`
	Host               string `mapstructure:"host" yaml:"host"`
	Port               int    `mapstructure:"port" yaml:"port"`
	Path               string `mapstructure:"path" yaml:"path"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify"`
}

// SessionConfig controls connection timing. Durations are in milliseconds.
type SessionConfig struct {
	ID                  string `mapstructure:"id" yaml:"id"`
	ConnectTimeoutMS    int    `mapstructure:"connect_timeout_ms" yaml:"connect_timeout_ms"`
	ReportIntervalMS    int    `mapstructure:"report_interval_ms" yaml:"report_interval_ms"`
	KeepaliveIntervalMS int    `mapstructure:"keepalive_interval_ms" yaml:"keepalive_interval_ms"`
}

// ReconnectConfig shapes the reconnect backoff.
type ReconnectConfig struct {
	MaxIntervalMS int     `mapstructure:"max_interval_ms" yaml:"max_interval_ms"`
	Multiplier    float64 `mapstructure:"multiplier" yaml:"multiplier"`
	Jitter        float64 `mapstructure:"jitter" yaml:"jitter"`
}

// SeekConfig bounds peer-requested seeks on a file that is still loading.
type SeekConfig struct {
	PollIntervalMS int `mapstructure:"poll_interval_ms" yaml:"poll_interval_ms"`
	MaxWaitMS      int `mapstructure:"max_wait_ms" yaml:"max_wait_ms"`
}

// BookmarksConfig holds the fuzzy match windows in seconds.
type BookmarksConfig struct {
	InsertEpsilon float64 `mapstructure:"insert_epsilon" yaml:"insert_epsilon"`
	RemoveEpsilon float64 `mapstructure:"remove_epsilon" yaml:"remove_epsilon"`
}

// SkipConfig tunes the jump history.
type SkipConfig struct {
	MaxHistory     int     `mapstructure:"max_history" yaml:"max_history"`
	Threshold      float64 `mapstructure:"threshold" yaml:"threshold"`
	PollIntervalMS int     `mapstructure:"poll_interval_ms" yaml:"poll_interval_ms"`
	MaxWaitMS      int     `mapstructure:"max_wait_ms" yaml:"max_wait_ms"`
}

// MPVConfig locates the mpv IPC socket.
type MPVConfig struct {
	Socket           string `mapstructure:"socket" yaml:"socket"`
	RequestTimeoutMS int    `mapstructure:"request_timeout_ms" yaml:"request_timeout_ms"`
}

// StatusConfig configures the optional metrics/health listener.
type StatusConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		runtimeDir = os.TempDir()
	}
	return Config{
		ConfigVersion: CurrentConfigVersion,
		Server: ServerConfig{
			Scheme:             "wss",
			Host:               "127.0.0.1",
			Port:               19000,
			Path:               "/ws",
			InsecureSkipVerify: true,
		},
		Session: SessionConfig{
			ConnectTimeoutMS:    5000,
			ReportIntervalMS:    100,
			KeepaliveIntervalMS: 15000,
		},
		Reconnect: ReconnectConfig{
			MaxIntervalMS: 30000,
			Multiplier:    1.5,
			Jitter:        0.2,
		},
		Seek: SeekConfig{
			PollIntervalMS: 100,
			MaxWaitMS:      30000,
		},
		Bookmarks: BookmarksConfig{
			InsertEpsilon: 3.0,
			RemoveEpsilon: 0.1,
		},
		Skip: SkipConfig{
			MaxHistory:     100,
			Threshold:      1.0,
			PollIntervalMS: 100,
			MaxWaitMS:      5000,
		},
		MPV: MPVConfig{
			Socket:           filepath.Join(runtimeDir, "mpv.sock"),
			RequestTimeoutMS: 1000,
		},
		Status: StatusConfig{
			Addr: "",
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".varsync", "config.yaml"), nil
}
