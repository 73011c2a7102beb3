package schema

// SessionEventType identifies the payload of a SessionEvent.
type SessionEventType string

const (
	// EventState carries a connection state transition.
	EventState SessionEventType = "state"
	// EventPlugin carries a plugin event emitted to extension hooks.
	EventPlugin SessionEventType = "plugin"
	// EventNotification carries a notification surfaced to the user.
	EventNotification SessionEventType = "notification"
	// EventBookmarks carries a bookmark change.
	EventBookmarks SessionEventType = "bookmarks"
)

// SessionEvent is published by a sync session to its listeners.
type SessionEvent struct {
	Type         SessionEventType
	SessionID    SessionID
	MediaURL     string
	State        ConnState
	Plugin       PluginInfo
	Notification Notification
	Bookmarks    BookmarkChange
}
