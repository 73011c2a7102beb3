// Package mpvipc drives an mpv player over its JSON IPC socket
// (--input-ipc-server).
package mpvipc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"pkt.systems/pslog"
	"pkt.systems/varsync/internal/session"
)

// DefaultRequestTimeout bounds a single IPC round trip.
const DefaultRequestTimeout = time.Second

var (
	// ErrClosed is returned once the IPC connection is gone.
	ErrClosed = errors.New("mpv ipc closed")
	// ErrTimeout is returned when mpv does not answer in time.
	ErrTimeout = errors.New("mpv ipc timeout")
)

// Config controls the IPC client.
type Config struct {
	SocketPath     string
	RequestTimeout time.Duration
}

// Client is a session.Player backed by mpv.
type Client struct {
	conn    net.Conn
	timeout time.Duration
	log     pslog.Logger

	writeMu sync.Mutex
	nextID  atomic.Int64

	mu      sync.Mutex
	pending map[int64]chan response
	closed  bool

	events chan Event
	done   chan struct{}
}

// Event is an mpv event. Args carries the arguments of a client-message, as
// sent by "script-message" key bindings.
type Event struct {
	Name string
	Args []string
}

// EventClientMessage is the event mpv emits for "script-message".
const EventClientMessage = "client-message"

type response struct {
	err  string
	data gjson.Result
}

var _ session.Player = (*Client)(nil)

// Dial connects to the mpv IPC socket.
func Dial(ctx context.Context, cfg Config, logger pslog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SocketPath) == "" {
		return nil, errors.New("mpv socket path is required")
	}
	if logger == nil {
		logger = pslog.Ctx(ctx)
	}
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", cfg.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("dial mpv ipc %s: %w", cfg.SocketPath, err)
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	c := &Client{
		conn:    conn,
		timeout: timeout,
		log:     logger.With("mpv_socket", cfg.SocketPath),
		pending: make(map[int64]chan response),
		events:  make(chan Event, 32),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	c.log.Debug("mpv ipc connected")
	return c, nil
}

// Events yields mpv events such as "file-loaded", "end-file" and
// "client-message". The channel closes when the connection ends.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close terminates the IPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) readLoop() {
	defer c.shutdown()
	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if !gjson.Valid(line) {
			c.log.Debug("mpv ipc line ignored", "line", line)
			continue
		}
		if name := gjson.Get(line, "event"); name.Exists() {
			ev := Event{Name: name.String()}
			for _, arg := range gjson.Get(line, "args").Array() {
				ev.Args = append(ev.Args, arg.String())
			}
			select {
			case c.events <- ev:
			default:
				c.log.Trace("mpv event dropped", "event", ev.Name)
			}
			continue
		}
		id := gjson.Get(line, "request_id")
		if !id.Exists() {
			continue
		}
		c.mu.Lock()
		ch := c.pending[id.Int()]
		delete(c.pending, id.Int())
		c.mu.Unlock()
		if ch != nil {
			ch <- response{err: gjson.Get(line, "error").String(), data: gjson.Get(line, "data")}
		}
	}
	if err := scanner.Err(); err != nil {
		c.log.Debug("mpv ipc read ended", "err", err)
	}
}

func (c *Client) shutdown() {
	c.mu.Lock()
	c.closed = true
	for id, ch := range c.pending {
		delete(c.pending, id)
		close(ch)
	}
	c.mu.Unlock()
	close(c.events)
	close(c.done)
	c.log.Debug("mpv ipc disconnected")
}

// Command sends an IPC command and waits for its reply.
func (c *Client) Command(args ...any) (gjson.Result, error) {
	id := c.nextID.Add(1)
	payload, err := sjson.Set("", "command", args)
	if err == nil {
		payload, err = sjson.Set(payload, "request_id", id)
	}
	if err != nil {
		return gjson.Result{}, fmt.Errorf("encode mpv command: %w", err)
	}
	ch := make(chan response, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return gjson.Result{}, ErrClosed
	}
	c.pending[id] = ch
	c.mu.Unlock()

	c.writeMu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	_, err = c.conn.Write([]byte(payload + "\n"))
	c.writeMu.Unlock()
	if err != nil {
		c.forget(id)
		return gjson.Result{}, fmt.Errorf("write mpv command: %w", err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	select {
	case resp, ok := <-ch:
		if !ok {
			return gjson.Result{}, ErrClosed
		}
		if resp.err != "success" {
			return resp.data, fmt.Errorf("mpv %v: %s", args[0], resp.err)
		}
		return resp.data, nil
	case <-timer.C:
		c.forget(id)
		return gjson.Result{}, ErrTimeout
	}
}

func (c *Client) forget(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) property(name string) (gjson.Result, error) {
	return c.Command("get_property", name)
}

// Seek jumps to an absolute position in seconds.
func (c *Client) Seek(seconds float64) error {
	_, err := c.Command("seek", seconds, "absolute")
	return err
}

// Position returns the playback position, false when mpv has none.
func (c *Client) Position() (float64, bool) {
	data, err := c.property("time-pos")
	if err != nil || data.Type != gjson.Number {
		return 0, false
	}
	return data.Float(), true
}

// FileLoaded reports whether mpv has a file open and is not idle.
func (c *Client) FileLoaded() bool {
	idle, err := c.property("idle-active")
	if err != nil || idle.Bool() {
		return false
	}
	_, err = c.property("duration")
	return err == nil
}

// MediaURL returns the URL of the open media, empty when nothing is open.
// Local paths become file:// URLs, relative ones resolved against mpv's
// working directory.
func (c *Client) MediaURL() string {
	data, err := c.property("path")
	if err != nil {
		return ""
	}
	p := data.String()
	if p == "" || strings.Contains(p, "://") {
		return p
	}
	if !filepath.IsAbs(p) {
		wd, err := c.property("working-directory")
		if err != nil || wd.String() == "" {
			c.log.Debug("relative media path left unresolved", "path", p, "err", err)
			return p
		}
		p = filepath.Join(wd.String(), p)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(p)}).String()
}

// Extras collects the optional player-state fields.
func (c *Client) Extras() session.PlayerExtras {
	var extras session.PlayerExtras
	if delay, err := c.property("sub-delay"); err == nil {
		extras.SubDelay = delay.Float()
	}
	if tracks, err := c.property("track-list"); err == nil {
		tracks.ForEach(func(_, track gjson.Result) bool {
			if track.Get("type").String() != "sub" {
				return true
			}
			name := track.Get("external-filename").String()
			if name == "" {
				name = track.Get("title").String()
			}
			if name != "" {
				extras.LoadedSubtitles = append(extras.LoadedSubtitles, name)
			}
			return true
		})
	}
	return extras
}
