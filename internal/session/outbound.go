package session

import (
	"fmt"
	"strconv"

	"pkt.systems/varsync/internal/bookmarks"
	"pkt.systems/varsync/internal/envelope"
	"pkt.systems/varsync/schema"
)

// ProposeInsert asks the peer to bookmark pos. It reports false when a bookmark
// already sits within the insert window before pos. The store only changes once
// the peer confirms the insert.
func (s *Session) ProposeInsert(pos float64, preview string) (bool, error) {
	var (
		planned bool
		err     error
	)
	if doErr := s.do(func() {
		s.syncMedia(s.mediaURL(), false)
		var plan bookmarks.InsertPlan
		plan, planned = s.store.PlanInsert(pos)
		if !planned {
			s.log.Debug("insert refused, bookmark nearby", "pos", pos)
			return
		}
		info := schema.NewTimestampInfo(s.store.URL(), plan.Index, plan.Timestamp)
		err = s.sendRecord([]string{schema.DomainServer, schema.RouteBookmarks, schema.BookmarkInsert, preview}, info)
	}); doErr != nil {
		return false, doErr
	}
	return planned, err
}

// ProposeRemove asks the peer to drop the bookmark nearest pos.
func (s *Session) ProposeRemove(pos float64) (bookmarks.RemoveOutcome, error) {
	var (
		outcome bookmarks.RemoveOutcome
		err     error
	)
	if doErr := s.do(func() {
		s.syncMedia(s.mediaURL(), false)
		var plan bookmarks.RemovePlan
		plan, outcome = s.store.PlanRemove(pos)
		if outcome != bookmarks.RemoveMatched {
			s.log.Debug("remove refused", "pos", pos, "outcome", outcome.String())
			return
		}
		info := schema.NewTimestampInfo(s.store.URL(), plan.Index, plan.Timestamp)
		err = s.sendRecord([]string{schema.DomainServer, schema.RouteBookmarks, schema.BookmarkRemove}, info)
	}); doErr != nil {
		return outcome, doErr
	}
	return outcome, err
}

// ProposeClear asks the peer to drop every bookmark of the current media. It
// sends nothing when the store is already empty.
func (s *Session) ProposeClear() error {
	var err error
	if doErr := s.do(func() {
		s.syncMedia(s.mediaURL(), false)
		if s.store.Len() == 0 {
			return
		}
		err = s.sendRecord([]string{schema.DomainServer, schema.RouteBookmarks, schema.BookmarkClear}, schema.URLInfo{CurrentURL: s.store.URL()})
	}); doErr != nil {
		return doErr
	}
	return err
}

// FetchBookmarks asks the peer to push the full bookmark set.
func (s *Session) FetchBookmarks() error {
	var err error
	if doErr := s.do(func() {
		s.syncMedia(s.mediaURL(), false)
		err = s.sendRecord([]string{schema.DomainServer, schema.RouteBookmarks, schema.BookmarkFetch}, schema.URLInfo{CurrentURL: s.store.URL()})
	}); doErr != nil {
		return doErr
	}
	return err
}

// SendArchiveInfo forwards an info option together with a playback position.
func (s *Session) SendArchiveInfo(option string, pos float64) error {
	var err error
	if doErr := s.do(func() {
		path := []string{schema.DomainServer, option, strconv.FormatFloat(pos, 'f', -1, 64)}
		err = s.sendRecord(path, schema.URLInfo{CurrentURL: s.mediaURL()})
	}); doErr != nil {
		return doErr
	}
	return err
}

// OpenInArchive asks the peer to reveal the current media.
func (s *Session) OpenInArchive() error {
	var err error
	if doErr := s.do(func() {
		err = s.sendRecord([]string{schema.DomainServer, schema.RouteOpenInArchive}, schema.URLInfo{CurrentURL: s.mediaURL()})
	}); doErr != nil {
		return doErr
	}
	return err
}

// EmitEvent publishes a plugin event to local hooks and mirrors it to the peer.
func (s *Session) EmitEvent(name string) error {
	var err error
	if doErr := s.do(func() { err = s.emitEvent(name) }); doErr != nil {
		return doErr
	}
	return err
}

func (s *Session) emitEvent(name string) error {
	info := schema.PluginInfo{
		CurrentURL:   s.mediaURL(),
		MetaFilename: s.metaFilename,
		Event:        name,
	}
	s.publish(schema.SessionEvent{Type: schema.EventPlugin, Plugin: info})
	if s.state != schema.StateConnected {
		return nil
	}
	return s.sendRecord([]string{schema.DomainArchive, schema.RoutePlugin, "event"}, info)
}

func (s *Session) sendConnectionInfo() {
	if err := s.sendRecord([]string{schema.DomainServer, schema.RouteConnection}, schema.URLInfo{CurrentURL: s.store.URL()}); err != nil {
		s.log.Warn("connection announce failed", "err", err)
	}
}

// sendPlayerInfo samples the player, feeds the navigator and reports the state
// to the peer. It never stops the report task.
func (s *Session) sendPlayerInfo() bool {
	if s.state != schema.StateConnected {
		return false
	}
	current := s.mediaURL()
	s.syncMedia(current, false)
	pos, ok := s.player.Position()
	if ok {
		s.nav.Record(pos)
	} else {
		pos = -1
	}
	extras := s.player.Extras()
	subs := extras.LoadedSubtitles
	if subs == nil {
		subs = []string{}
	}
	info := schema.PlayerInfo{
		CurrentURL:        current,
		IsNetworkResource: isNetworkResource(current),
		Pos:               pos,
		SubDelay:          extras.SubDelay,
		LoadedSubtitles:   subs,
	}
	if err := s.sendRecord([]string{schema.DomainArchive, schema.RoutePlayerInfo}, info); err != nil {
		s.log.Debug("player report failed", "err", err)
	}
	return false
}

func (s *Session) sendRecord(path []string, record any) error {
	if s.state != schema.StateConnected {
		return schema.ErrNotConnected
	}
	text := envelope.EncodeRecord(path, record)
	if text == "" {
		s.metrics.Dropped("encode")
		return fmt.Errorf("%w: %s", schema.ErrEncode, path[1])
	}
	if err := s.transport.Send(text); err != nil {
		return err
	}
	s.metrics.Sent(path[1])
	return nil
}
