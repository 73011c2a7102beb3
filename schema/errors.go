package schema

import "errors"

var (
	// ErrDecode indicates a malformed envelope or payload record.
	ErrDecode = errors.New("decode failed")
	// ErrStaleUpdate indicates a message tagged with a media URL other than the active one.
	ErrStaleUpdate = errors.New("stale update")
	// ErrRangeRejected indicates a bookmark mutation index outside the store bounds.
	ErrRangeRejected = errors.New("index out of range")
	// ErrLengthMismatch indicates bookmark arrays of differing lengths in a full sync.
	ErrLengthMismatch = errors.New("bookmark arrays length mismatch")
	// ErrTimestampMismatch indicates a remove request whose timestamp differs from the stored one.
	ErrTimestampMismatch = errors.New("timestamp mismatch")
	// ErrEncode indicates an outbound record that could not be serialized.
	ErrEncode = errors.New("encode failed")
	// ErrNotConnected indicates an outbound message was attempted without a connection.
	ErrNotConnected = errors.New("not connected")
	// ErrSessionClosed indicates the session loop is no longer running.
	ErrSessionClosed = errors.New("session closed")
	// ErrUnknownNotification indicates a notification kind outside the known set.
	ErrUnknownNotification = errors.New("unknown notification kind")
)
