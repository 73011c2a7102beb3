package schema

import "fmt"

// URLInfo tags a request with the active media URL only.
type URLInfo struct {
	CurrentURL string `json:"currentURL"`
}

// PluginInfo is published to extension hooks and mirrored to the peer.
type PluginInfo struct {
	CurrentURL   string `json:"currentURL"`
	MetaFilename string `json:"metaFilename"`
	Event        string `json:"event"`
}

// PlayerInfo is the periodic player-state report.
type PlayerInfo struct {
	CurrentURL        string   `json:"currentURL"`
	IsNetworkResource bool     `json:"isNetworkResource"`
	Pos               float64  `json:"pos"`
	SubDelay          float64  `json:"subDelay"`
	LoadedSubtitles   []string `json:"loadedSubtitles"`
}

// TimestampInfo carries an index/timestamp pair for insert and remove requests.
type TimestampInfo struct {
	CurrentURL string   `json:"currentURL"`
	Index      *int     `json:"index,omitempty"`
	Timestamp  *float64 `json:"timestamp,omitempty"`
}

// NewTimestampInfo builds a fully populated TimestampInfo.
func NewTimestampInfo(url string, index int, timestamp float64) TimestampInfo {
	return TimestampInfo{CurrentURL: url, Index: &index, Timestamp: &timestamp}
}

// Validate reports whether the index and timestamp are present.
func (t TimestampInfo) Validate() error {
	if t.Index == nil {
		return fmt.Errorf("%w: index missing", ErrDecode)
	}
	if t.Timestamp == nil {
		return fmt.Errorf("%w: timestamp missing", ErrDecode)
	}
	return nil
}

// BookmarkInfo is the full bookmark state pushed by the peer.
type BookmarkInfo struct {
	CurrentURL   string     `json:"currentURL"`
	Timestamps   []*float64 `json:"timestamps"`
	Titles       []*string  `json:"titles"`
	Descriptions []*string  `json:"descriptions"`
}

// Records converts the parallel arrays into bookmark records. Every array must be
// present, of equal length, and free of null elements.
func (b BookmarkInfo) Records() ([]BookmarkRecord, error) {
	if b.Timestamps == nil || b.Titles == nil || b.Descriptions == nil {
		return nil, fmt.Errorf("%w: bookmark arrays missing", ErrDecode)
	}
	if len(b.Titles) != len(b.Timestamps) || len(b.Descriptions) != len(b.Timestamps) {
		return nil, fmt.Errorf("%w: timestamps=%d titles=%d descriptions=%d", ErrLengthMismatch, len(b.Timestamps), len(b.Titles), len(b.Descriptions))
	}
	records := make([]BookmarkRecord, 0, len(b.Timestamps))
	for i := range b.Timestamps {
		if b.Timestamps[i] == nil || b.Titles[i] == nil || b.Descriptions[i] == nil {
			return nil, fmt.Errorf("%w: null element at %d", ErrDecode, i)
		}
		records = append(records, BookmarkRecord{
			Timestamp:   *b.Timestamps[i],
			Title:       *b.Titles[i],
			Description: *b.Descriptions[i],
		})
	}
	return records, nil
}

// BookmarkUpdate carries a single inserted or edited bookmark.
type BookmarkUpdate struct {
	CurrentURL  string   `json:"currentURL"`
	Index       *int     `json:"index"`
	Timestamp   *float64 `json:"timestamp,omitempty"`
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
}

// ValidateInsert reports whether every field an insert needs is present.
func (u BookmarkUpdate) ValidateInsert() error {
	if u.Timestamp == nil {
		return fmt.Errorf("%w: timestamp missing", ErrDecode)
	}
	return u.ValidateEdit()
}

// ValidateEdit reports whether every field an edit needs is present.
func (u BookmarkUpdate) ValidateEdit() error {
	switch {
	case u.Index == nil:
		return fmt.Errorf("%w: index missing", ErrDecode)
	case u.Title == nil:
		return fmt.Errorf("%w: title missing", ErrDecode)
	case u.Description == nil:
		return fmt.Errorf("%w: description missing", ErrDecode)
	}
	return nil
}

// Tip renders the marker annotation for the update.
func (u BookmarkUpdate) Tip() string {
	var title, description string
	if u.Title != nil {
		title = *u.Title
	}
	if u.Description != nil {
		description = *u.Description
	}
	return JoinTip(title, description)
}

// NotificationInfo is a status notification pushed by the peer.
type NotificationInfo struct {
	CurrentURL  string   `json:"currentURL"`
	Type        string   `json:"type"`
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Timeout     *float64 `json:"timeout,omitempty"`
}
