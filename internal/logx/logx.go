package logx

import (
	"context"

	"pkt.systems/pslog"
	"pkt.systems/varsync/schema"
)

type contextKey int

const (
	sessionKey contextKey = iota
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithSession annotates the logger with the session id if present and not
// already recorded on the context.
func WithSession(ctx context.Context, sessionID schema.SessionID) pslog.Logger {
	log := pslog.Ctx(ctx)
	if sessionID != "" {
		if current, ok := ctx.Value(sessionKey).(schema.SessionID); ok && current == sessionID {
			return log
		}
		log = log.With("session", sessionID)
	}
	return log
}

// WithMedia annotates the logger with the active media URL when available.
func WithMedia(log pslog.Logger, mediaURL string) pslog.Logger {
	if mediaURL != "" {
		log = log.With("media", mediaURL)
	}
	return log
}

// WithRoute annotates the logger with an envelope type path.
func WithRoute(log pslog.Logger, path schema.TypePath) pslog.Logger {
	if len(path) > 0 {
		log = log.With("route", path.String())
	}
	return log
}

// ContextWithSession stores the session marker on the context for log de-duplication.
func ContextWithSession(ctx context.Context, sessionID schema.SessionID) context.Context {
	if ctx == nil || sessionID == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionKey, sessionID)
}

// ContextWithSessionLogger attaches the logger and session marker to the context.
func ContextWithSessionLogger(ctx context.Context, log pslog.Logger, sessionID schema.SessionID) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithSession(ctx, sessionID)
}
