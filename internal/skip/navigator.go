// Package skip keeps a bounded history of large playback position jumps and lets
// the user step backward and forward through it.
//
// Ordinary playback progression never enters the history; only discontinuities
// larger than the skip threshold are recorded, as (before, after) pairs. Seeks
// issued by the navigator itself are excluded by suspending Record until the
// player reports a position near the seek target.
package skip

import (
	"math"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/varsync/internal/tasks"
)

const (
	DefaultMaxHistory    = 100
	DefaultSkipThreshold = 1.0
	DefaultPollInterval  = 100 * time.Millisecond
	DefaultMaxSeekWait   = 5 * time.Second
)

// Player is the playback surface the navigator drives.
type Player interface {
	Seek(seconds float64) error
	Position() (float64, bool)
}

// SeekOutcome reports how a navigator seek finished.
type SeekOutcome int

const (
	SeekConverged SeekOutcome = iota
	SeekTimedOut
	SeekCancelled
	SeekFailed
)

func (o SeekOutcome) String() string {
	switch o {
	case SeekConverged:
		return "converged"
	case SeekTimedOut:
		return "timed_out"
	case SeekCancelled:
		return "cancelled"
	case SeekFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Config tunes the navigator. Zero values select the defaults.
type Config struct {
	MaxHistory    int
	SkipThreshold float64
	PollInterval  time.Duration
	MaxSeekWait   time.Duration
	// OnSeek observes every finished seek.
	OnSeek func(target float64, outcome SeekOutcome)
}

func (c Config) withDefaults() Config {
	if c.MaxHistory <= 0 {
		c.MaxHistory = DefaultMaxHistory
	}
	if c.SkipThreshold <= 0 {
		c.SkipThreshold = DefaultSkipThreshold
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.MaxSeekWait <= 0 {
		c.MaxSeekWait = DefaultMaxSeekWait
	}
	return c
}

// Navigator is the skip history state machine. It is not safe for concurrent
// use; callers and the scheduler must share one owner goroutine.
type Navigator struct {
	cfg    Config
	player Player
	sched  tasks.Scheduler
	log    pslog.Logger

	history []float64
	cursor  int
	lastPos float64
	hasLast bool

	seeking bool
	target  float64
	polls   int
	poll    tasks.Handle
}

// New constructs a Navigator in the live state.
func New(cfg Config, player Player, sched tasks.Scheduler, logger pslog.Logger) *Navigator {
	return &Navigator{
		cfg:    cfg.withDefaults(),
		player: player,
		sched:  sched,
		log:    logger,
		cursor: -1,
	}
}

// History returns a copy of the recorded positions, oldest first.
func (n *Navigator) History() []float64 {
	return append([]float64(nil), n.history...)
}

// Cursor returns the navigation index, -1 when at the live position.
func (n *Navigator) Cursor() int {
	return n.cursor
}

// LastPos returns the last accepted sample and whether one exists.
func (n *Navigator) LastPos() (float64, bool) {
	return n.lastPos, n.hasLast
}

// Seeking reports whether a navigator seek is awaiting convergence.
func (n *Navigator) Seeking() bool {
	return n.seeking
}

// Record feeds a playback position sample.
func (n *Navigator) Record(pos float64) {
	if n.seeking || pos < 0 {
		return
	}
	if !n.hasLast {
		n.lastPos = pos
		n.hasLast = true
		return
	}
	offset := pos - n.lastPos
	if math.Abs(offset) <= n.cfg.SkipThreshold {
		n.lastPos = pos
		return
	}
	n.push(n.lastPos)
	n.push(pos)
	if n.log != nil {
		n.log.Debug("skip recorded", "from", n.lastPos, "to", pos, "history", len(n.history))
	}
	n.lastPos = pos
	n.cursor = -1
}

func (n *Navigator) push(pos float64) {
	if len(n.history) >= n.cfg.MaxHistory {
		n.history = append(n.history[:0], n.history[1:]...)
	}
	n.history = append(n.history, pos)
}

// SkipBackward seeks to the previous history entry, staying on the oldest one
// once reached.
func (n *Navigator) SkipBackward() {
	if len(n.history) == 0 {
		return
	}
	switch n.cursor {
	case 0:
	case -1:
		n.cursor = len(n.history) - 1
	default:
		n.cursor--
	}
	n.issueSeek(n.history[n.cursor])
}

// SkipForward seeks to the next history entry. It does nothing until a backward
// step has placed the cursor, and stays on the newest entry once reached.
func (n *Navigator) SkipForward() {
	if len(n.history) == 0 || n.cursor == -1 {
		return
	}
	if n.cursor < len(n.history)-1 {
		n.cursor++
	}
	n.issueSeek(n.history[n.cursor])
}

func (n *Navigator) issueSeek(target float64) {
	n.cancelPoll(SeekCancelled)
	n.seeking = true
	n.target = target
	n.polls = 0
	if err := n.player.Seek(target); err != nil {
		if n.log != nil {
			n.log.Warn("skip seek failed", "target", target, "err", err)
		}
		n.seeking = false
		n.report(target, SeekFailed)
		return
	}
	if n.log != nil {
		n.log.Debug("skip seek issued", "target", target, "cursor", n.cursor)
	}
	n.poll = n.sched.Every("skip-converge", n.cfg.PollInterval, n.checkConverged)
}

func (n *Navigator) checkConverged() bool {
	if !n.seeking {
		n.poll = nil
		return true
	}
	n.polls++
	live, ok := n.player.Position()
	if ok && math.Abs(n.target-live) < n.cfg.SkipThreshold {
		n.finish(n.target, SeekConverged)
		return true
	}
	if time.Duration(n.polls)*n.cfg.PollInterval >= n.cfg.MaxSeekWait {
		if ok && live >= 0 {
			n.finish(live, SeekTimedOut)
		} else {
			n.finish(n.target, SeekTimedOut)
		}
		return true
	}
	return false
}

func (n *Navigator) finish(lastPos float64, outcome SeekOutcome) {
	target := n.target
	n.seeking = false
	n.lastPos = lastPos
	n.hasLast = true
	n.poll = nil
	if n.log != nil && outcome != SeekConverged {
		n.log.Warn("skip seek did not converge", "target", target, "outcome", outcome.String(), "polls", n.polls)
	}
	n.report(target, outcome)
}

func (n *Navigator) cancelPoll(outcome SeekOutcome) {
	if n.poll != nil {
		n.poll.Cancel()
		n.poll = nil
	}
	if n.seeking {
		n.seeking = false
		n.report(n.target, outcome)
	}
}

// Abort cancels a pending convergence poll and returns to the live state.
func (n *Navigator) Abort() {
	n.cancelPoll(SeekCancelled)
}

// Reset aborts any seek and forgets the history.
func (n *Navigator) Reset() {
	n.Abort()
	n.history = nil
	n.cursor = -1
	n.hasLast = false
	n.lastPos = 0
}

func (n *Navigator) report(target float64, outcome SeekOutcome) {
	if n.cfg.OnSeek != nil {
		n.cfg.OnSeek(target, outcome)
	}
}
