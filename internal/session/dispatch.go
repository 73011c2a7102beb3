package session

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"pkt.systems/varsync/internal/envelope"
	"pkt.systems/varsync/internal/logx"
	"pkt.systems/varsync/schema"
)

func (s *Session) handleText(text string) {
	env, err := envelope.Decode(text)
	if err != nil {
		s.log.Warn("inbound envelope dropped", "err", err)
		s.metrics.Dropped("decode")
		return
	}
	log := logx.WithRoute(s.log, env.Type)
	route := env.Type.Segment(1)
	s.metrics.Received(route)
	log.Trace("inbound envelope", "bytes", len(env.Message))
	switch route {
	case schema.RouteSeek:
		s.handleSeek(env)
	case schema.RouteBookmarks:
		s.syncMedia(s.mediaURL(), false)
		s.handleBookmarks(env)
	case schema.RouteNotification:
		s.handleNotification(env)
	case schema.RouteConnection:
		s.metaFilename = env.Message
		log.Info("peer assigned meta filename", "meta_filename", env.Message)
		if err := s.emitEvent(schema.PluginEventConnectionReceived); err != nil {
			log.Warn("plugin event not mirrored", "err", err)
		}
	default:
		log.Warn("unhandled envelope")
		s.metrics.Dropped("unhandled")
	}
}

func (s *Session) handleSeek(env envelope.Envelope) {
	target, err := strconv.ParseFloat(strings.TrimSpace(env.Message), 64)
	if err != nil {
		s.log.Warn("seek position dropped", "message", env.Message, "err", err)
		s.metrics.Dropped("decode")
		return
	}
	if s.pendingSeek != nil {
		s.pendingSeek.Cancel()
		s.pendingSeek = nil
	}
	if s.player.FileLoaded() {
		s.seekTo(target)
		return
	}
	deadline := time.Now().Add(s.cfg.SeekMaxWait)
	s.log.Debug("seek deferred until file loads", "target", target)
	s.pendingSeek = s.tasks.Every("deferred-seek", s.cfg.SeekPollInterval, func() bool {
		if s.player.FileLoaded() {
			s.pendingSeek = nil
			s.seekTo(target)
			return true
		}
		if time.Now().After(deadline) {
			s.pendingSeek = nil
			s.log.Warn("deferred seek abandoned", "target", target, "waited", s.cfg.SeekMaxWait)
			s.metrics.Dropped("seek_timeout")
			return true
		}
		return false
	})
}

func (s *Session) seekTo(target float64) {
	if err := s.player.Seek(target); err != nil {
		s.log.Warn("seek failed", "target", target, "err", err)
		return
	}
	s.log.Debug("seek issued", "target", target)
}

func (s *Session) handleBookmarks(env envelope.Envelope) {
	op := env.Type.Segment(2)
	var err error
	switch op {
	case schema.BookmarkSync:
		var info schema.BookmarkInfo
		if err = envelope.DecodeRecord(env.Message, &info); err == nil {
			err = s.store.ApplyFullSync(info)
		}
	case schema.BookmarkInsert:
		var update schema.BookmarkUpdate
		if err = envelope.DecodeRecord(env.Message, &update); err == nil {
			if err = update.ValidateInsert(); err == nil {
				err = s.store.ApplyInsert(update.CurrentURL, *update.Index, *update.Timestamp, update.Tip())
			}
		}
	case schema.BookmarkEdited:
		var update schema.BookmarkUpdate
		if err = envelope.DecodeRecord(env.Message, &update); err == nil {
			if err = update.ValidateEdit(); err == nil {
				err = s.store.ApplyEdit(update.CurrentURL, *update.Index, update.Tip())
			}
		}
	case schema.BookmarkRemove:
		var info schema.TimestampInfo
		if err = envelope.DecodeRecord(env.Message, &info); err == nil {
			if err = info.Validate(); err == nil {
				err = s.store.ApplyRemove(info.CurrentURL, *info.Index, *info.Timestamp)
			}
		}
	case schema.BookmarkClear:
		var info schema.URLInfo
		if err = envelope.DecodeRecord(env.Message, &info); err == nil {
			err = s.store.ApplyClear(info.CurrentURL)
		}
	default:
		s.log.Warn("unhandled bookmark operation", "op", op)
		s.metrics.Dropped("unhandled")
		return
	}
	s.reportStoreError(op, err)
}

func (s *Session) reportStoreError(op string, err error) {
	switch {
	case err == nil:
	case errors.Is(err, schema.ErrStaleUpdate):
		s.log.Debug("stale bookmark update ignored", "op", op, "err", err)
		s.metrics.Dropped("stale")
	case errors.Is(err, schema.ErrRangeRejected), errors.Is(err, schema.ErrTimestampMismatch):
		s.log.Debug("bookmark mutation rejected", "op", op, "err", err)
		s.metrics.Dropped("rejected")
	default:
		s.log.Warn("bookmark update dropped", "op", op, "err", err)
		s.metrics.Dropped("decode")
	}
}

func (s *Session) handleNotification(env envelope.Envelope) {
	var info schema.NotificationInfo
	if err := envelope.DecodeRecord(env.Message, &info); err != nil {
		s.log.Warn("notification dropped", "err", err)
		s.metrics.Dropped("decode")
		return
	}
	if info.CurrentURL != s.mediaURL() {
		s.log.Debug("stale notification ignored", "url", info.CurrentURL)
		s.metrics.Dropped("stale")
		return
	}
	kind, err := schema.ParseNotificationKind(info.Type)
	if err != nil {
		s.log.Warn("notification dropped", "err", err)
		s.metrics.Dropped("decode")
		return
	}
	if info.Title == nil || info.Description == nil {
		s.log.Warn("notification dropped", "err", "title or description missing")
		s.metrics.Dropped("decode")
		return
	}
	n := schema.Notification{Kind: kind, Title: *info.Title, Description: *info.Description}
	if info.Timeout != nil && *info.Timeout > 0 {
		n.Timeout = time.Duration(*info.Timeout * float64(time.Second))
	}
	s.ui.Notify(n)
	s.publish(schema.SessionEvent{Type: schema.EventNotification, Notification: n})
}
