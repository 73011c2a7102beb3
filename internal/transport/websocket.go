package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pkt.systems/pslog"
	"pkt.systems/varsync/schema"
)

const (
	defaultHandshakeTimeout = 5 * time.Second
	defaultWriteTimeout     = 5 * time.Second
	defaultEventBuffer      = 64
)

// WebSocketConfig configures a WebSocket transport.
type WebSocketConfig struct {
	URL                string
	HandshakeTimeout   time.Duration
	WriteTimeout       time.Duration
	InsecureSkipVerify bool
	EventBuffer        int
	// Header is sent with the opening handshake.
	Header http.Header
}

// WebSocket implements Transport over gorilla/websocket. Each Connect starts a
// new generation; events from replaced connections are dropped.
type WebSocket struct {
	cfg    WebSocketConfig
	dialer *websocket.Dialer
	log    pslog.Logger

	events    chan Event
	closed    chan struct{}
	closeOnce sync.Once

	mu   sync.Mutex
	conn *websocket.Conn
	gen  uint64

	writeMu sync.Mutex
}

// NewWebSocket constructs an unconnected WebSocket transport.
func NewWebSocket(cfg WebSocketConfig, logger pslog.Logger) *WebSocket {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = defaultEventBuffer
	}
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: cfg.HandshakeTimeout,
	}
	if cfg.InsecureSkipVerify {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // archive server uses a self-signed certificate
	}
	return &WebSocket{
		cfg:    cfg,
		dialer: dialer,
		log:    logger.With("ws_url", cfg.URL),
		events: make(chan Event, cfg.EventBuffer),
		closed: make(chan struct{}),
	}
}

// Events implements Transport.
func (w *WebSocket) Events() <-chan Event {
	return w.events
}

// Connect implements Transport. Any existing connection is replaced.
func (w *WebSocket) Connect(ctx context.Context) error {
	select {
	case <-w.closed:
		return errors.New("transport closed")
	default:
	}
	w.mu.Lock()
	w.gen++
	gen := w.gen
	old := w.conn
	w.conn = nil
	w.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	w.log.Debug("websocket dial start", "gen", gen)
	go w.dial(ctx, gen)
	return nil
}

func (w *WebSocket) dial(ctx context.Context, gen uint64) {
	conn, resp, err := w.dialer.DialContext(ctx, w.cfg.URL, w.cfg.Header)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			w.emit(gen, Event{Kind: EventCancelled, Err: err})
			return
		}
		if resp != nil {
			err = fmt.Errorf("%w (http status %d)", err, resp.StatusCode)
		}
		w.emit(gen, Event{Kind: EventError, Err: err})
		return
	}
	w.mu.Lock()
	if gen != w.gen {
		w.mu.Unlock()
		_ = conn.Close()
		return
	}
	w.conn = conn
	w.mu.Unlock()

	var headers http.Header
	if resp != nil {
		headers = resp.Header
	}
	w.emit(gen, Event{Kind: EventConnected, Headers: headers})
	w.readLoop(conn, gen)
}

func (w *WebSocket) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			w.release(conn, gen)
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				w.emit(gen, Event{Kind: EventDisconnected, Reason: closeErr.Text, Code: closeErr.Code})
			} else {
				w.emit(gen, Event{Kind: EventError, Err: err})
			}
			return
		}
		switch messageType {
		case websocket.TextMessage:
			w.emit(gen, Event{Kind: EventText, Text: string(data)})
		case websocket.BinaryMessage:
			w.emit(gen, Event{Kind: EventBinary, Data: data})
		}
	}
}

func (w *WebSocket) release(conn *websocket.Conn, gen uint64) {
	w.mu.Lock()
	if w.gen == gen && w.conn == conn {
		w.conn = nil
	}
	w.mu.Unlock()
	_ = conn.Close()
}

func (w *WebSocket) emit(gen uint64, ev Event) {
	w.mu.Lock()
	current := gen == w.gen
	w.mu.Unlock()
	if !current {
		w.log.Trace("websocket stale event dropped", "kind", ev.Kind.String(), "gen", gen)
		return
	}
	select {
	case w.events <- ev:
	case <-w.closed:
	}
}

// Disconnect implements Transport. Events from the closed connection are not
// delivered.
func (w *WebSocket) Disconnect() {
	w.mu.Lock()
	w.gen++
	conn := w.conn
	w.conn = nil
	w.mu.Unlock()
	if conn == nil {
		return
	}
	w.writeMu.Lock()
	deadline := time.Now().Add(w.cfg.WriteTimeout)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	w.writeMu.Unlock()
	_ = conn.Close()
	w.log.Debug("websocket disconnected")
}

// Close disconnects and releases any goroutine blocked on event delivery.
func (w *WebSocket) Close() error {
	w.Disconnect()
	w.closeOnce.Do(func() { close(w.closed) })
	return nil
}

func (w *WebSocket) current() *websocket.Conn {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn
}

// Send implements Transport.
func (w *WebSocket) Send(text string) error {
	conn := w.current()
	if conn == nil {
		return schema.ErrNotConnected
	}
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(w.cfg.WriteTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, []byte(text))
}

// Ping implements Transport.
func (w *WebSocket) Ping() error {
	conn := w.current()
	if conn == nil {
		return schema.ErrNotConnected
	}
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(w.cfg.WriteTimeout))
}
