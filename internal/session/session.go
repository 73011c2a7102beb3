// Package session keeps a player's bookmarks and live position in sync with the
// archive peer.
//
// A Session is an actor: Run owns every piece of mutable state, and transport
// events, timer callbacks and public requests are all executed one at a time on
// the Run goroutine, in arrival order.
package session

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"pkt.systems/pslog"
	"pkt.systems/varsync/internal/bookmarks"
	"pkt.systems/varsync/internal/eventbus"
	"pkt.systems/varsync/internal/logx"
	"pkt.systems/varsync/internal/metrics"
	"pkt.systems/varsync/internal/skip"
	"pkt.systems/varsync/internal/tasks"
	"pkt.systems/varsync/internal/transport"
	"pkt.systems/varsync/schema"
)

// NewID returns a random session identifier.
func NewID() schema.SessionID {
	return schema.SessionID(uuid.NewString())
}

// Session is a sync session bound to one player.
type Session struct {
	cfg       Config
	id        schema.SessionID
	transport transport.Transport
	player    Player
	ui        UI
	bus       *eventbus.Bus
	metrics   *metrics.Metrics
	log       pslog.Logger

	calls chan func()
	done  chan struct{}
	ctx   context.Context

	tasks   *tasks.Set
	store   *bookmarks.Store
	nav     *skip.Navigator
	backoff *backoff.ExponentialBackOff

	state         schema.ConnState
	wantConnected bool
	retry         tasks.Handle
	report        tasks.Handle
	keepalive     tasks.Handle
	pendingSeek   tasks.Handle
	metaFilename  string
}

// New constructs a session. Run must be started before any other method is
// called.
func New(cfg Config, deps Deps) (*Session, error) {
	if deps.Transport == nil {
		return nil, errors.New("transport is required")
	}
	if deps.Player == nil {
		return nil, errors.New("player is required")
	}
	cfg = cfg.withDefaults()
	if cfg.ID == "" {
		cfg.ID = NewID()
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	logger = logger.With("session", cfg.ID)
	s := &Session{
		cfg:       cfg,
		id:        cfg.ID,
		transport: deps.Transport,
		player:    deps.Player,
		ui:        deps.UI,
		bus:       deps.Bus,
		metrics:   deps.Metrics,
		log:       logger,
		calls:     make(chan func()),
		done:      make(chan struct{}),
		ctx:       context.Background(),
	}
	if s.ui == nil {
		s.ui = nopUI{}
	}
	s.tasks = tasks.NewSet(s.post, logger)
	s.store = bookmarks.NewStore(cfg.Bookmarks, &storeListener{s: s}, logger)
	skipCfg := cfg.Skip
	userOnSeek := skipCfg.OnSeek
	skipCfg.OnSeek = func(target float64, outcome skip.SeekOutcome) {
		s.metrics.Seek(outcome.String())
		if userOnSeek != nil {
			userOnSeek(target, outcome)
		}
	}
	s.nav = skip.New(skipCfg, deps.Player, s.tasks, logger)
	s.backoff = backoff.NewExponentialBackOff()
	s.backoff.InitialInterval = cfg.RetryInitialInterval()
	s.backoff.MaxInterval = cfg.RetryMaxInterval
	s.backoff.Multiplier = cfg.RetryMultiplier
	s.backoff.RandomizationFactor = cfg.RetryJitter
	s.backoff.Reset()
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() schema.SessionID {
	return s.id
}

// Run executes the session loop until ctx is cancelled. Every armed task is
// cancelled and the transport disconnected before Run returns.
func (s *Session) Run(ctx context.Context) error {
	s.ctx = ctx
	defer close(s.done)
	defer s.teardown()
	s.log.Info("session loop start")
	events := s.transport.Events()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("session loop stop")
			return nil
		case fn := <-s.calls:
			fn()
		case ev, ok := <-events:
			if !ok {
				s.log.Warn("transport event channel closed")
				events = nil
				s.onLinkDown("transport closed")
				continue
			}
			s.handleTransportEvent(ev)
		}
	}
}

func (s *Session) post(fn func()) bool {
	select {
	case s.calls <- fn:
		return true
	case <-s.done:
		return false
	}
}

// do runs fn on the session loop and waits for it to finish.
func (s *Session) do(fn func()) error {
	finished := make(chan struct{})
	if !s.post(func() {
		defer close(finished)
		fn()
	}) {
		return schema.ErrSessionClosed
	}
	select {
	case <-finished:
		return nil
	case <-s.done:
		return schema.ErrSessionClosed
	}
}

// Status is a point-in-time view of a session.
type Status struct {
	ID        schema.SessionID
	State     schema.ConnState
	MediaURL  string
	Bookmarks int
	History   int
	Cursor    int
	Seeking   bool
	Tasks     []string
}

// Status returns a snapshot of the session state.
func (s *Session) Status() (Status, error) {
	var st Status
	err := s.do(func() {
		st = Status{
			ID:        s.id,
			State:     s.state,
			MediaURL:  s.store.URL(),
			Bookmarks: s.store.Len(),
			History:   len(s.nav.History()),
			Cursor:    s.nav.Cursor(),
			Seeking:   s.nav.Seeking(),
			Tasks:     s.tasks.Names(),
		}
	})
	return st, err
}

// Connect opens the transport and keeps reconnecting until Disconnect.
func (s *Session) Connect() error {
	return s.do(s.connect)
}

// Disconnect cancels all armed tasks and closes the transport.
func (s *Session) Disconnect() error {
	return s.do(s.disconnect)
}

// SkipBackward steps back through the jump history.
func (s *Session) SkipBackward() error {
	return s.do(s.nav.SkipBackward)
}

// SkipForward steps forward through the jump history.
func (s *Session) SkipForward() error {
	return s.do(s.nav.SkipForward)
}

// FileChanged rebinds the bookmark store and jump history to the player's
// current media.
func (s *Session) FileChanged() error {
	return s.do(func() { s.syncMedia(s.mediaURL(), true) })
}

func (s *Session) connect() {
	s.wantConnected = true
	if s.state != schema.StateDisconnected {
		return
	}
	s.log.Info("session connecting")
	s.openTransport()
	if s.retry == nil {
		s.armRetry()
	}
}

func (s *Session) openTransport() {
	s.setState(schema.StateConnecting)
	if err := s.transport.Connect(s.ctx); err != nil {
		s.log.Warn("transport connect failed", "err", err)
		s.setState(schema.StateDisconnected)
	}
}

func (s *Session) armRetry() {
	if s.retry != nil {
		s.retry.Cancel()
	}
	delay := s.backoff.NextBackOff()
	if delay <= 0 {
		delay = s.backoff.InitialInterval
	}
	s.log.Trace("reconnect armed", "delay", delay)
	s.retry = s.tasks.After("reconnect", delay, s.retryConnecting)
}

func (s *Session) retryConnecting() {
	s.retry = nil
	if !s.wantConnected || s.state == schema.StateConnected {
		return
	}
	s.metrics.Reconnect()
	s.log.Info("session reconnecting")
	s.ui.Notify(schema.Notification{
		Kind:        schema.NotifyError,
		Title:       "Cannot connect to varchive server, please launch the varchive server first. retrying...",
		Description: s.cfg.ServerURL,
		Timeout:     3 * time.Second,
	})
	s.openTransport()
	s.armRetry()
}

func (s *Session) disconnect() {
	s.log.Info("session disconnecting")
	s.wantConnected = false
	s.stopAll()
	s.transport.Disconnect()
	s.setState(schema.StateDisconnected)
}

func (s *Session) stopAll() {
	s.nav.Abort()
	s.tasks.CancelAll()
	s.retry = nil
	s.report = nil
	s.keepalive = nil
	s.pendingSeek = nil
}

func (s *Session) teardown() {
	s.wantConnected = false
	s.stopAll()
	s.transport.Disconnect()
	if s.state != schema.StateDisconnected {
		s.setState(schema.StateDisconnected)
	}
}

func (s *Session) setState(state schema.ConnState) {
	if s.state == state {
		return
	}
	s.log.Debug("session state", "from", s.state.String(), "to", state.String())
	s.state = state
	s.metrics.SetConnected(state == schema.StateConnected)
	s.publish(schema.SessionEvent{Type: schema.EventState, State: state})
}

func (s *Session) handleTransportEvent(ev transport.Event) {
	switch ev.Kind {
	case transport.EventConnected:
		s.onConnected(ev)
	case transport.EventDisconnected:
		s.log.Info("transport disconnected", "reason", ev.Reason, "code", ev.Code)
		s.onLinkDown("disconnected")
	case transport.EventCancelled:
		s.log.Info("transport cancelled")
		s.onLinkDown("cancelled")
	case transport.EventError:
		s.log.Warn("transport error", "err", ev.Err)
		s.onLinkDown("error")
	case transport.EventText:
		s.handleText(ev.Text)
	case transport.EventBinary:
		s.log.Debug("binary frame ignored", "bytes", len(ev.Data))
		s.metrics.Dropped("binary")
	}
}

func (s *Session) onConnected(ev transport.Event) {
	if !s.wantConnected {
		s.transport.Disconnect()
		return
	}
	s.log.Info("transport connected", "headers", len(ev.Headers))
	if s.retry != nil {
		s.retry.Cancel()
		s.retry = nil
	}
	s.backoff.Reset()
	s.setState(schema.StateConnected)
	s.syncMedia(s.mediaURL(), false)
	s.nav.Reset()
	s.sendConnectionInfo()
	if s.report != nil {
		s.report.Cancel()
	}
	s.report = s.tasks.Every("player-report", s.cfg.ReportInterval, s.sendPlayerInfo)
	if s.keepalive != nil {
		s.keepalive.Cancel()
		s.keepalive = nil
	}
	if s.cfg.KeepaliveInterval > 0 {
		s.keepalive = s.tasks.Every("keepalive", s.cfg.KeepaliveInterval, s.sendPing)
	}
}

func (s *Session) onLinkDown(reason string) {
	if s.report != nil {
		s.report.Cancel()
		s.report = nil
	}
	if s.keepalive != nil {
		s.keepalive.Cancel()
		s.keepalive = nil
	}
	s.setState(schema.StateDisconnected)
	if s.wantConnected && s.retry == nil {
		s.log.Debug("reconnect scheduled", "reason", reason)
		s.armRetry()
	}
}

func (s *Session) sendPing() bool {
	if s.state != schema.StateConnected {
		return false
	}
	if err := s.transport.Ping(); err != nil {
		s.log.Warn("keepalive ping failed", "err", err)
	}
	return false
}

// mediaURL returns the player's current media URL with percent-encoding
// removed.
func (s *Session) mediaURL() string {
	raw := s.player.MediaURL()
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}

// syncMedia rebinds the store and navigator when the player switched files. A
// deferred peer seek survives the switch; its own deadline bounds it.
func (s *Session) syncMedia(current string, force bool) {
	if !force && current == s.store.URL() {
		return
	}
	logx.WithMedia(s.log, current).Info("media changed")
	s.store.Reset(current)
	s.nav.Reset()
}

// isNetworkResource reports whether mediaURL points at a remote stream rather
// than a local file.
func isNetworkResource(mediaURL string) bool {
	u, err := url.Parse(mediaURL)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "", "file":
		return false
	default:
		return true
	}
}

func (s *Session) publish(ev schema.SessionEvent) {
	if s.bus == nil {
		return
	}
	ev.SessionID = s.id
	if ev.MediaURL == "" {
		ev.MediaURL = s.store.URL()
	}
	s.bus.Publish(ev)
}

type storeListener struct {
	s *Session
}

func (l *storeListener) InsertMarker(index int, timestamp float64, tip string) {
	l.s.ui.InsertMarker(index, timestamp, tip)
}

func (l *storeListener) RemoveMarker(index int) {
	l.s.ui.RemoveMarker(index)
}

func (l *storeListener) RetipMarker(index int, tip string) {
	l.s.ui.RetipMarker(index, tip)
}

func (l *storeListener) ClearMarkers() {
	l.s.ui.ClearMarkers()
}

func (l *storeListener) Redraw() {
	l.s.ui.Redraw()
}

func (l *storeListener) BookmarksChanged(change schema.BookmarkChange) {
	l.s.metrics.SetBookmarks(change.Total)
	l.s.ui.BookmarksChanged(change)
	l.s.publish(schema.SessionEvent{Type: schema.EventBookmarks, Bookmarks: change})
}

type nopUI struct{}

func (nopUI) InsertMarker(int, float64, string)      {}
func (nopUI) RemoveMarker(int)                       {}
func (nopUI) RetipMarker(int, string)                {}
func (nopUI) ClearMarkers()                          {}
func (nopUI) Redraw()                                {}
func (nopUI) BookmarksChanged(schema.BookmarkChange) {}
func (nopUI) Notify(schema.Notification)             {}
