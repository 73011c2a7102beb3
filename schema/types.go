package schema

import "strings"

// SessionID identifies a sync session with the archive peer.
type SessionID string

// TypePath is the ordered routing path of an envelope, coarse to fine.
type TypePath []string

// String renders the path in dotted form for logs.
func (p TypePath) String() string {
	return strings.Join(p, ".")
}

// Segment returns the segment at idx or "" when the path is too short.
func (p TypePath) Segment(idx int) string {
	if idx < 0 || idx >= len(p) {
		return ""
	}
	return p[idx]
}

// Routing domains (TypePath[0]).
const (
	DomainServer  = "server"
	DomainArchive = "varchive"
	DomainPlugin  = "plugin"
)

// Routes (TypePath[1]).
const (
	RouteSeek          = "seek"
	RouteBookmarks     = "bookmarks"
	RouteNotification  = "notification"
	RouteConnection    = "connection"
	RoutePlayerInfo    = "playerInfo"
	RoutePlugin        = "plugin"
	RouteOpenInArchive = "openInVarchive"
)

// Bookmark operations (TypePath[2]).
const (
	BookmarkSync   = "info"
	BookmarkInsert = "insert"
	BookmarkRemove = "remove"
	BookmarkClear  = "clear"
	BookmarkEdited = "edited"
	BookmarkFetch  = "fetch"
)

// PluginEventConnectionReceived is emitted once the peer assigned a meta filename.
const PluginEventConnectionReceived = "iina.varchive-connection-received"

// ConnState is the lifecycle state of the transport connection.
type ConnState int

const (
	// StateDisconnected means no connection is open or being opened.
	StateDisconnected ConnState = iota
	// StateConnecting means a dial is in flight.
	StateConnecting
	// StateConnected means the transport reported a completed handshake.
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// BookmarkRecord is a single bookmark anchored to a media URL.
type BookmarkRecord struct {
	Timestamp   float64
	Title       string
	Description string
}

// Tip renders the display annotation shown next to a marker.
func (r BookmarkRecord) Tip() string {
	return JoinTip(r.Title, r.Description)
}

// JoinTip renders a title/description pair as a marker annotation.
func JoinTip(title, description string) string {
	return title + "\n" + description
}
