// Package bookmarks holds the ordered bookmark set of the active media file.
//
// The remote archive is authoritative: Plan* methods only compute what to ask the
// peer for, and Apply* methods mutate local state once the peer confirms.
package bookmarks

import (
	"fmt"

	"pkt.systems/pslog"
	"pkt.systems/varsync/schema"
)

// Listener mirrors store mutations onto the player UI.
type Listener interface {
	InsertMarker(index int, timestamp float64, tip string)
	RemoveMarker(index int)
	RetipMarker(index int, tip string)
	ClearMarkers()
	Redraw()
	BookmarksChanged(change schema.BookmarkChange)
}

// Config selects the fuzzy matching window per call site.
type Config struct {
	InsertEpsilon float64
	RemoveEpsilon float64
}

// DefaultConfig returns the coarse insert / tight remove windows.
func DefaultConfig() Config {
	return Config{InsertEpsilon: CoarseEpsilon, RemoveEpsilon: TightEpsilon}
}

// InsertPlan is the index and rounded timestamp of a proposed bookmark.
type InsertPlan struct {
	Index     int
	Timestamp float64
}

// RemovePlan identifies the stored bookmark a remove request targets.
type RemovePlan struct {
	Index     int
	Timestamp float64
}

// RemoveOutcome reports how a removal proposal resolved.
type RemoveOutcome int

const (
	RemoveMatched RemoveOutcome = iota
	RemoveEmpty
	RemoveNotFound
)

func (o RemoveOutcome) String() string {
	switch o {
	case RemoveMatched:
		return "matched"
	case RemoveEmpty:
		return "empty"
	case RemoveNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Store keeps timestamps sorted by insertion position with an index-aligned tip
// slice. It is not safe for concurrent use.
type Store struct {
	cfg        Config
	url        string
	timestamps []float64
	tips       []string
	listener   Listener
	log        pslog.Logger
}

// NewStore constructs an empty store. A nil listener discards UI updates.
func NewStore(cfg Config, listener Listener, logger pslog.Logger) *Store {
	if cfg.InsertEpsilon <= 0 {
		cfg.InsertEpsilon = CoarseEpsilon
	}
	if cfg.RemoveEpsilon <= 0 {
		cfg.RemoveEpsilon = TightEpsilon
	}
	if listener == nil {
		listener = nopListener{}
	}
	return &Store{cfg: cfg, listener: listener, log: logger}
}

// URL returns the active media URL.
func (s *Store) URL() string {
	return s.url
}

// Len returns the number of bookmarks.
func (s *Store) Len() int {
	return len(s.timestamps)
}

// Timestamps returns a copy of the ordered timestamps.
func (s *Store) Timestamps() []float64 {
	return append([]float64(nil), s.timestamps...)
}

// Tips returns a copy of the marker annotations.
func (s *Store) Tips() []string {
	return append([]string(nil), s.tips...)
}

// Reset drops all bookmarks and binds the store to a new media URL.
func (s *Store) Reset(url string) {
	s.url = url
	s.timestamps = nil
	s.tips = nil
	s.listener.ClearMarkers()
	s.listener.Redraw()
}

// FindInsertionIndex searches the stored timestamps.
func (s *Store) FindInsertionIndex(pos float64) int {
	return FindInsertionIndex(s.timestamps, pos)
}

// PlanInsert computes the insert request for pos. It returns false when the
// preceding bookmark already sits within the insert window.
func (s *Store) PlanInsert(pos float64) (InsertPlan, bool) {
	rounded := RoundToHundredths(pos)
	index := s.FindInsertionIndex(rounded)
	if index > 0 && FuzzyEqual(s.timestamps[index-1], rounded, s.cfg.InsertEpsilon) {
		return InsertPlan{}, false
	}
	return InsertPlan{Index: index, Timestamp: rounded}, true
}

// PlanRemove finds the bookmark nearest pos within the remove window. The slots
// either side of the insertion index are probed because the rounded target can
// land next to, rather than on, the stored value.
func (s *Store) PlanRemove(pos float64) (RemovePlan, RemoveOutcome) {
	if len(s.timestamps) == 0 {
		return RemovePlan{}, RemoveEmpty
	}
	rounded := RoundToHundredths(pos)
	index := s.FindInsertionIndex(rounded)
	for _, probe := range []int{index - 1, index, index + 1} {
		if probe < 0 || probe >= len(s.timestamps) {
			continue
		}
		if FuzzyEqual(s.timestamps[probe], rounded, s.cfg.RemoveEpsilon) {
			return RemovePlan{Index: probe, Timestamp: s.timestamps[probe]}, RemoveMatched
		}
	}
	return RemovePlan{}, RemoveNotFound
}

func (s *Store) checkURL(url string) error {
	if url != s.url {
		return fmt.Errorf("%w: got %q, active %q", schema.ErrStaleUpdate, url, s.url)
	}
	return nil
}

// ApplyFullSync replaces the whole set with the peer's state. Prior state is
// left untouched when the payload is inconsistent.
func (s *Store) ApplyFullSync(info schema.BookmarkInfo) error {
	if err := s.checkURL(info.CurrentURL); err != nil {
		return err
	}
	records, err := info.Records()
	if err != nil {
		return err
	}
	timestamps := make([]float64, len(records))
	tips := make([]string, len(records))
	for i, rec := range records {
		timestamps[i] = rec.Timestamp
		tips[i] = rec.Tip()
	}
	s.timestamps = timestamps
	s.tips = tips
	s.listener.ClearMarkers()
	for i := range s.timestamps {
		s.listener.InsertMarker(i, s.timestamps[i], s.tips[i])
	}
	s.listener.Redraw()
	s.listener.BookmarksChanged(schema.BookmarkChange{Action: schema.BookmarkLoaded, Total: len(s.timestamps)})
	if s.log != nil {
		s.log.Debug("bookmarks synced", "count", len(s.timestamps))
	}
	return nil
}

// ApplyInsert inserts a confirmed bookmark at index.
func (s *Store) ApplyInsert(url string, index int, timestamp float64, tip string) error {
	if err := s.checkURL(url); err != nil {
		return err
	}
	if index < 0 || index > len(s.timestamps) {
		return fmt.Errorf("%w: insert at %d of %d", schema.ErrRangeRejected, index, len(s.timestamps))
	}
	s.timestamps = insertAt(s.timestamps, index, timestamp)
	s.tips = insertAt(s.tips, index, tip)
	s.listener.InsertMarker(index, timestamp, tip)
	s.listener.Redraw()
	s.listener.BookmarksChanged(schema.BookmarkChange{Action: schema.BookmarkMarked, Position: index + 1, Total: len(s.timestamps), Tip: tip})
	return nil
}

// ApplyRemove removes the bookmark at index. The stored timestamp must match
// so a remove that raced another mutation does not drop the wrong bookmark.
func (s *Store) ApplyRemove(url string, index int, timestamp float64) error {
	if err := s.checkURL(url); err != nil {
		return err
	}
	if index < 0 || index >= len(s.timestamps) {
		return fmt.Errorf("%w: remove at %d of %d", schema.ErrRangeRejected, index, len(s.timestamps))
	}
	if s.timestamps[index] != timestamp {
		return fmt.Errorf("%w: index %d holds %v, not %v", schema.ErrTimestampMismatch, index, s.timestamps[index], timestamp)
	}
	tip := s.tips[index]
	s.timestamps = removeAt(s.timestamps, index)
	s.tips = removeAt(s.tips, index)
	s.listener.RemoveMarker(index)
	s.listener.Redraw()
	s.listener.BookmarksChanged(schema.BookmarkChange{Action: schema.BookmarkRemoved, Position: index + 1, Total: len(s.timestamps), Tip: tip})
	return nil
}

// ApplyEdit replaces the annotation at index.
func (s *Store) ApplyEdit(url string, index int, tip string) error {
	if err := s.checkURL(url); err != nil {
		return err
	}
	if index < 0 || index >= len(s.timestamps) {
		return fmt.Errorf("%w: edit at %d of %d", schema.ErrRangeRejected, index, len(s.timestamps))
	}
	s.tips[index] = tip
	s.listener.RetipMarker(index, tip)
	s.listener.Redraw()
	s.listener.BookmarksChanged(schema.BookmarkChange{Action: schema.BookmarkRetip, Position: index + 1, Total: len(s.timestamps), Tip: tip})
	return nil
}

// ApplyClear drops every bookmark.
func (s *Store) ApplyClear(url string) error {
	if err := s.checkURL(url); err != nil {
		return err
	}
	s.timestamps = nil
	s.tips = nil
	s.listener.ClearMarkers()
	s.listener.Redraw()
	s.listener.BookmarksChanged(schema.BookmarkChange{Action: schema.BookmarkCleared})
	return nil
}

func insertAt[T any](items []T, index int, value T) []T {
	items = append(items, value)
	copy(items[index+1:], items[index:])
	items[index] = value
	return items
}

func removeAt[T any](items []T, index int) []T {
	return append(items[:index], items[index+1:]...)
}

type nopListener struct{}

func (nopListener) InsertMarker(int, float64, string)      {}
func (nopListener) RemoveMarker(int)                       {}
func (nopListener) RetipMarker(int, string)                {}
func (nopListener) ClearMarkers()                          {}
func (nopListener) Redraw()                                {}
func (nopListener) BookmarksChanged(schema.BookmarkChange) {}
