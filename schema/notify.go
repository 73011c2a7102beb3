package schema

import (
	"fmt"
	"time"
)

// NotificationKind classifies an on-screen status notification.
type NotificationKind string

const (
	NotifySuccess      NotificationKind = "success"
	NotifyWarning      NotificationKind = "warning"
	NotifyError        NotificationKind = "error"
	NotifyNotification NotificationKind = "notification"
)

// ParseNotificationKind maps a wire value to a NotificationKind.
func ParseNotificationKind(value string) (NotificationKind, error) {
	switch kind := NotificationKind(value); kind {
	case NotifySuccess, NotifyWarning, NotifyError, NotifyNotification:
		return kind, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownNotification, value)
}

// Notification is a titled status message surfaced to the user.
type Notification struct {
	Kind        NotificationKind
	Title       string
	Description string
	// Timeout overrides the display duration when non-zero.
	Timeout time.Duration
}

// BookmarkAction describes a bookmark change for on-screen display.
type BookmarkAction string

const (
	BookmarkMarked  BookmarkAction = "mark"
	BookmarkRemoved BookmarkAction = "remove"
	BookmarkCleared BookmarkAction = "clear"
	BookmarkRetip   BookmarkAction = "edit"
	BookmarkLoaded  BookmarkAction = "load"
)

// BookmarkChange describes a bookmark mutation. Position is 1-based; zero when
// the change affects the whole set.
type BookmarkChange struct {
	Action   BookmarkAction
	Position int
	Total    int
	Tip      string
}
