package console

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/varsync/schema"
)

type logEntry struct {
	Level   string
	Message string
	Fields  map[string]any
}

type logCapture struct {
	buf bytes.Buffer
}

func (c *logCapture) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

func (c *logCapture) entries(t *testing.T) []logEntry {
	t.Helper()
	var out []logEntry
	for _, line := range strings.Split(strings.TrimSpace(c.buf.String()), "\n") {
		if line == "" {
			continue
		}
		payload := map[string]any{}
		if err := json.Unmarshal([]byte(line), &payload); err != nil {
			t.Fatalf("parse log entry %q: %v", line, err)
		}
		entry := logEntry{Fields: payload}
		if value, ok := payload["level"].(string); ok {
			entry.Level = value
		} else if value, ok := payload["lvl"].(string); ok {
			entry.Level = value
		}
		if value, ok := payload["message"].(string); ok {
			entry.Message = value
		} else if value, ok := payload["msg"].(string); ok {
			entry.Message = value
		}
		out = append(out, entry)
	}
	return out
}

func newCaptureUI() (*UI, *logCapture) {
	capture := &logCapture{}
	logger := pslog.NewWithOptions(capture, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		MinLevel:      pslog.InfoLevel,
		VerboseFields: true,
	})
	return New(logger), capture
}

func TestMarkersFollowListenerCalls(t *testing.T) {
	ui, _ := newCaptureUI()
	ui.InsertMarker(0, 20, "b")
	ui.InsertMarker(0, 10, "a")
	ui.InsertMarker(2, 30, "c")
	ui.RetipMarker(1, "b2")
	ui.RemoveMarker(0)
	ui.RemoveMarker(9)
	ui.Redraw()

	got := ui.Markers()
	want := []Marker{{Timestamp: 20, Tip: "b2"}, {Timestamp: 30, Tip: "c"}}
	if len(got) != len(want) {
		t.Fatalf("unexpected markers %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("marker %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if ui.Redraws() != 1 {
		t.Fatalf("expected one redraw")
	}
	ui.ClearMarkers()
	if len(ui.Markers()) != 0 {
		t.Fatalf("expected no markers after clear")
	}
}

func TestNotifyUsesKindLevel(t *testing.T) {
	ui, capture := newCaptureUI()
	ui.Notify(schema.Notification{Kind: schema.NotifyError, Title: "Cannot connect", Description: "wss://host", Timeout: 3 * time.Second})
	ui.Notify(schema.Notification{Kind: schema.NotifyWarning, Title: "Careful"})
	ui.Notify(schema.Notification{Kind: schema.NotifySuccess, Title: "Saved"})

	entries := capture.entries(t)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	prefixes := []string{"e", "w", "i"}
	titles := []string{"Cannot connect", "Careful", "Saved"}
	for i, entry := range entries {
		if !strings.HasPrefix(strings.ToLower(entry.Level), prefixes[i]) {
			t.Fatalf("entry %d level = %q", i, entry.Level)
		}
		if entry.Message != titles[i] {
			t.Fatalf("entry %d message = %q", i, entry.Message)
		}
	}
	if entries[0].Fields["detail"] != "wss://host" {
		t.Fatalf("expected detail field, got %+v", entries[0].Fields)
	}
}

func TestFormatBookmarkChange(t *testing.T) {
	cases := []struct {
		change schema.BookmarkChange
		want   string
	}{
		{schema.BookmarkChange{Action: schema.BookmarkMarked, Position: 2, Total: 5, Tip: "Intro\nopening"}, "Bookmark 2/5 marked: Intro"},
		{schema.BookmarkChange{Action: schema.BookmarkRetip, Position: 1, Total: 1, Tip: "\nno title"}, "Bookmark 1/1 edited"},
		{schema.BookmarkChange{Action: schema.BookmarkRemoved, Position: 3, Total: 2, Tip: "Outro\n"}, "Bookmark 3 removed, 2 left: Outro"},
		{schema.BookmarkChange{Action: schema.BookmarkCleared}, "Bookmarks cleared"},
		{schema.BookmarkChange{Action: schema.BookmarkLoaded, Total: 4}, "4 bookmarks loaded"},
	}
	for _, tc := range cases {
		if got := FormatBookmarkChange(tc.change); got != tc.want {
			t.Fatalf("FormatBookmarkChange(%+v) = %q, want %q", tc.change, got, tc.want)
		}
	}
}

func TestBookmarksChangedLogs(t *testing.T) {
	ui, capture := newCaptureUI()
	ui.BookmarksChanged(schema.BookmarkChange{Action: schema.BookmarkMarked, Position: 1, Total: 1, Tip: "A\nB"})
	entries := capture.entries(t)
	if len(entries) != 1 || entries[0].Message != "Bookmark 1/1 marked: A" {
		t.Fatalf("unexpected entries %+v", entries)
	}
	if entries[0].Fields["action"] != "mark" {
		t.Fatalf("expected action field, got %+v", entries[0].Fields)
	}
}
