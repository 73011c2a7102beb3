// Package console renders bookmark markers and on-screen notifications to the
// process log. It stands in for a player's slider and OSD when varsync runs
// beside a headless player.
package console

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/varsync/internal/session"
	"pkt.systems/varsync/schema"
)

// Marker is a rendered slider marker.
type Marker struct {
	Timestamp float64
	Tip       string
}

// UI implements session.UI on top of a logger.
type UI struct {
	log pslog.Logger

	mu      sync.Mutex
	markers []Marker
	redraws int
}

var _ session.UI = (*UI)(nil)

// New constructs a UI that writes to logger.
func New(logger pslog.Logger) *UI {
	return &UI{log: logger}
}

// Markers returns a copy of the current markers in slider order.
func (u *UI) Markers() []Marker {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]Marker(nil), u.markers...)
}

// Redraws returns how many times the slider was redrawn.
func (u *UI) Redraws() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.redraws
}

func (u *UI) InsertMarker(index int, timestamp float64, tip string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if index < 0 || index > len(u.markers) {
		index = len(u.markers)
	}
	u.markers = append(u.markers, Marker{})
	copy(u.markers[index+1:], u.markers[index:])
	u.markers[index] = Marker{Timestamp: timestamp, Tip: tip}
}

func (u *UI) RemoveMarker(index int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if index < 0 || index >= len(u.markers) {
		return
	}
	u.markers = append(u.markers[:index], u.markers[index+1:]...)
}

func (u *UI) RetipMarker(index int, tip string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if index < 0 || index >= len(u.markers) {
		return
	}
	u.markers[index].Tip = tip
}

func (u *UI) ClearMarkers() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.markers = nil
}

func (u *UI) Redraw() {
	u.mu.Lock()
	u.redraws++
	count := len(u.markers)
	u.mu.Unlock()
	u.log.Trace("slider redraw", "markers", count)
}

// BookmarksChanged shows the change the way a player OSD would.
func (u *UI) BookmarksChanged(change schema.BookmarkChange) {
	u.log.Info(FormatBookmarkChange(change), "action", string(change.Action), "total", change.Total)
}

// Notify logs the notification at a level matching its kind.
func (u *UI) Notify(n schema.Notification) {
	fields := []any{"kind", string(n.Kind)}
	if n.Description != "" {
		fields = append(fields, "detail", n.Description)
	}
	if n.Timeout > 0 {
		fields = append(fields, "timeout", n.Timeout.Round(time.Millisecond))
	}
	switch n.Kind {
	case schema.NotifyError:
		u.log.Error(n.Title, fields...)
	case schema.NotifyWarning:
		u.log.Warn(n.Title, fields...)
	default:
		u.log.Info(n.Title, fields...)
	}
}

// FormatBookmarkChange renders an OSD line such as "Bookmark 2/5 marked: Intro".
func FormatBookmarkChange(change schema.BookmarkChange) string {
	title, _, _ := strings.Cut(change.Tip, "\n")
	var b strings.Builder
	switch change.Action {
	case schema.BookmarkCleared:
		b.WriteString("Bookmarks cleared")
	case schema.BookmarkLoaded:
		fmt.Fprintf(&b, "%d bookmarks loaded", change.Total)
	case schema.BookmarkRemoved:
		fmt.Fprintf(&b, "Bookmark %d removed, %d left", change.Position, change.Total)
		if title != "" {
			b.WriteString(": ")
			b.WriteString(title)
		}
	default:
		fmt.Fprintf(&b, "Bookmark %d/%d %s", change.Position, change.Total, verb(change.Action))
		if title != "" {
			b.WriteString(": ")
			b.WriteString(title)
		}
	}
	return b.String()
}

func verb(action schema.BookmarkAction) string {
	switch action {
	case schema.BookmarkMarked:
		return "marked"
	case schema.BookmarkRetip:
		return "edited"
	}
	return string(action)
}
