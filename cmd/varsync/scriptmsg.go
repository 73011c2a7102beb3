package main

import (
	"errors"
	"fmt"
	"strings"

	"pkt.systems/pslog"
	"pkt.systems/varsync/internal/bookmarks"
)

// Script messages accepted from mpv key bindings, e.g. in input.conf:
//
//	Ctrl+LEFT  script-message varsync-skip-backward
//	Ctrl+RIGHT script-message varsync-skip-forward
//	b          script-message varsync-bookmark-add
const (
	msgPrefix         = "varsync-"
	msgSkipBackward   = "varsync-skip-backward"
	msgSkipForward    = "varsync-skip-forward"
	msgBookmarkAdd    = "varsync-bookmark-add"
	msgBookmarkRemove = "varsync-bookmark-remove"
	msgBookmarkClear  = "varsync-bookmark-clear"
	msgBookmarkFetch  = "varsync-bookmark-fetch"
	msgArchiveInfo    = "varsync-archive-info"
	msgOpenInArchive  = "varsync-open-in-archive"
	msgEvent          = "varsync-event"
	msgConnect        = "varsync-connect"
	msgDisconnect     = "varsync-disconnect"

	defaultPreview = "false"
)

var (
	errUnknownMessage = errors.New("unknown script message")
	errNoPosition     = errors.New("player has no playback position")
)

// controller is the part of a session driven by the player.
type controller interface {
	Connect() error
	Disconnect() error
	FileChanged() error
	SkipBackward() error
	SkipForward() error
	ProposeInsert(pos float64, preview string) (bool, error)
	ProposeRemove(pos float64) (bookmarks.RemoveOutcome, error)
	ProposeClear() error
	FetchBookmarks() error
	SendArchiveInfo(option string, pos float64) error
	OpenInArchive() error
	EmitEvent(name string) error
}

type positioner interface {
	Position() (float64, bool)
}

// handleScriptMessage runs the session operation named by a client-message.
// Messages without the varsync- prefix belong to other scripts and are ignored.
func handleScriptMessage(ctl controller, player positioner, args []string, logger pslog.Logger) error {
	if len(args) == 0 || !strings.HasPrefix(args[0], msgPrefix) {
		return nil
	}
	name, rest := args[0], args[1:]
	arg := func(i int) string {
		if i < len(rest) {
			return rest[i]
		}
		return ""
	}
	position := func() (float64, error) {
		pos, ok := player.Position()
		if !ok {
			return 0, errNoPosition
		}
		return pos, nil
	}
	logger.Debug("script message", "message", name, "args", len(rest))

	switch name {
	case msgSkipBackward:
		return ctl.SkipBackward()
	case msgSkipForward:
		return ctl.SkipForward()
	case msgBookmarkAdd:
		pos, err := position()
		if err != nil {
			return err
		}
		preview := arg(0)
		if preview == "" {
			preview = defaultPreview
		}
		planned, err := ctl.ProposeInsert(pos, preview)
		if err != nil {
			return err
		}
		if !planned {
			logger.Info("bookmark not added, one already sits nearby", "pos", pos)
		}
		return nil
	case msgBookmarkRemove:
		pos, err := position()
		if err != nil {
			return err
		}
		outcome, err := ctl.ProposeRemove(pos)
		if err != nil {
			return err
		}
		if outcome != bookmarks.RemoveMatched {
			logger.Info("no bookmark removed", "pos", pos, "outcome", outcome.String())
		}
		return nil
	case msgBookmarkClear:
		return ctl.ProposeClear()
	case msgBookmarkFetch:
		return ctl.FetchBookmarks()
	case msgArchiveInfo:
		option := arg(0)
		if option == "" {
			return fmt.Errorf("%s: info option required", name)
		}
		pos, err := position()
		if err != nil {
			return err
		}
		return ctl.SendArchiveInfo(option, pos)
	case msgOpenInArchive:
		return ctl.OpenInArchive()
	case msgEvent:
		event := arg(0)
		if event == "" {
			return fmt.Errorf("%s: event name required", name)
		}
		return ctl.EmitEvent(event)
	case msgConnect:
		return ctl.Connect()
	case msgDisconnect:
		return ctl.Disconnect()
	default:
		return fmt.Errorf("%w: %s", errUnknownMessage, name)
	}
}
