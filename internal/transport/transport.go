// Package transport defines the bidirectional message channel a sync session
// runs over, and a websocket implementation of it.
package transport

import (
	"context"
	"net/http"
)

// EventKind identifies a transport event.
type EventKind int

const (
	EventConnected EventKind = iota
	EventDisconnected
	EventText
	EventBinary
	EventError
	EventCancelled
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventText:
		return "text"
	case EventBinary:
		return "binary"
	case EventError:
		return "error"
	case EventCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Event is delivered on the transport's event channel.
type Event struct {
	Kind    EventKind
	Headers http.Header
	Reason  string
	Code    int
	Text    string
	Data    []byte
	Err     error
}

// Transport is a message channel to the archive peer. Connect starts a
// connection attempt and returns immediately; its outcome arrives on Events.
type Transport interface {
	Connect(ctx context.Context) error
	Disconnect()
	Send(text string) error
	Ping() error
	Events() <-chan Event
}
