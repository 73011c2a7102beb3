package session

import (
	"time"

	"pkt.systems/pslog"
	"pkt.systems/varsync/internal/bookmarks"
	"pkt.systems/varsync/internal/eventbus"
	"pkt.systems/varsync/internal/metrics"
	"pkt.systems/varsync/internal/skip"
	"pkt.systems/varsync/internal/transport"
	"pkt.systems/varsync/schema"
)

// Player is the host playback engine.
type Player interface {
	Seek(seconds float64) error
	Position() (float64, bool)
	FileLoaded() bool
	MediaURL() string
	Extras() PlayerExtras
}

// PlayerExtras carries the optional fields of a player-state report.
type PlayerExtras struct {
	SubDelay        float64
	LoadedSubtitles []string
}

// UI renders bookmark markers and on-screen notifications.
type UI interface {
	bookmarks.Listener
	Notify(n schema.Notification)
}

// Config tunes a session. Zero values select the defaults.
type Config struct {
	ID schema.SessionID
	// ServerURL is shown in the cannot-connect notification.
	ServerURL string

	ConnectTimeout    time.Duration
	RetryMaxInterval  time.Duration
	RetryMultiplier   float64
	RetryJitter       float64
	ReportInterval    time.Duration
	KeepaliveInterval time.Duration
	SeekPollInterval  time.Duration
	SeekMaxWait       time.Duration

	Bookmarks bookmarks.Config
	Skip      skip.Config
}

const (
	DefaultConnectTimeout   = 5 * time.Second
	DefaultRetryMaxInterval = 30 * time.Second
	DefaultRetryMultiplier  = 1.5
	DefaultReportInterval   = 100 * time.Millisecond
	DefaultSeekPollInterval = 100 * time.Millisecond
	DefaultSeekMaxWait      = 30 * time.Second

	// retrySlack is added to the connect timeout for the first retry delay so a
	// dial that is about to time out is not raced.
	retrySlack = 500 * time.Millisecond
)

func (c Config) withDefaults() Config {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.RetryMaxInterval <= 0 {
		c.RetryMaxInterval = DefaultRetryMaxInterval
	}
	if c.RetryMultiplier < 1 {
		c.RetryMultiplier = DefaultRetryMultiplier
	}
	if c.RetryJitter < 0 {
		c.RetryJitter = 0
	}
	if c.ReportInterval <= 0 {
		c.ReportInterval = DefaultReportInterval
	}
	if c.SeekPollInterval <= 0 {
		c.SeekPollInterval = DefaultSeekPollInterval
	}
	if c.SeekMaxWait <= 0 {
		c.SeekMaxWait = DefaultSeekMaxWait
	}
	return c
}

// RetryInitialInterval is the delay before the first reconnect attempt.
func (c Config) RetryInitialInterval() time.Duration {
	return c.withDefaults().ConnectTimeout + retrySlack
}

// Deps captures the collaborators of a session.
type Deps struct {
	Transport transport.Transport
	Player    Player
	UI        UI
	Bus       *eventbus.Bus
	Metrics   *metrics.Metrics
	Logger    pslog.Logger
}
