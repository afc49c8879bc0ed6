package domain

import (
	"slices"
	"time"
)

// MergedSourceID is the id of the virtual source that aggregates chapters from
// several real sources under one manga entry.
const MergedSourceID int64 = 6969

// SourceKind classifies a source id.
type SourceKind int

const (
	// SourceKindRegular is a real content source.
	SourceKindRegular SourceKind = iota
	// SourceKindMerged is the virtual merged source. Manga on it reference
	// manga of regular sources and must be restored after them.
	SourceKindMerged
)

func (k SourceKind) String() string {
	switch k {
	case SourceKindRegular:
		return "regular"
	case SourceKindMerged:
		return "merged"
	default:
		return "unknown"
	}
}

// SourceKindOf returns the kind of the given source id.
func SourceKindOf(source int64) SourceKind {
	if source == MergedSourceID {
		return SourceKindMerged
	}
	return SourceKindRegular
}

// UpdateStrategy controls whether library updates poll a manga.
type UpdateStrategy int

const (
	// UpdateStrategyAlwaysUpdate polls the manga on every library update.
	UpdateStrategyAlwaysUpdate UpdateStrategy = iota
	// UpdateStrategyOnlyFetchOnce fetches the manga once and never again.
	UpdateStrategyOnlyFetchOnce
)

// Publication status values as reported by sources.
const (
	StatusUnknown = iota
	StatusOngoing
	StatusCompleted
	StatusLicensed
	StatusPublishingFinished
	StatusCancelled
	StatusOnHiatus
)

// Manga is a library entry. (Source, URL) is unique among live entries.
type Manga struct {
	ID     int64  `json:"id"`
	Source int64  `json:"source"`
	URL    string `json:"url"`

	// Descriptive fields provided by the source.
	Title        string   `json:"title"`
	Artist       string   `json:"artist,omitempty"`
	Author       string   `json:"author,omitempty"`
	Description  string   `json:"description,omitempty"`
	Genre        []string `json:"genre,omitempty"`
	Status       int      `json:"status"`
	ThumbnailURL string   `json:"thumbnail_url,omitempty"`

	Favorite    bool `json:"favorite"`
	Initialized bool `json:"initialized"`

	LastUpdate    time.Time `json:"last_update"`
	NextUpdate    time.Time `json:"next_update"`
	FetchInterval int       `json:"fetch_interval"`

	ViewerFlags        int64          `json:"viewer_flags"`
	ChapterFlags       int64          `json:"chapter_flags"`
	CoverLastModified  time.Time      `json:"cover_last_modified"`
	DateAdded          time.Time      `json:"date_added"`
	UpdateStrategy     UpdateStrategy `json:"update_strategy"`
	FilteredScanlators []string       `json:"filtered_scanlators,omitempty"`
}

// Kind returns the source kind of the manga.
func (m *Manga) Kind() SourceKind {
	return SourceKindOf(m.Source)
}

// AdoptLive merges the live row into m, which carries backup data.
// The live id, source-provided descriptive fields and scheduling state win;
// favorite and initialized are sticky once set on either side. Timestamps
// and scanlator filters the backup leaves unset keep their live values.
func (m *Manga) AdoptLive(live *Manga) {
	m.ID = live.ID
	m.Favorite = m.Favorite || live.Favorite
	m.Initialized = m.Initialized || live.Initialized

	m.Title = live.Title
	m.Artist = live.Artist
	m.Author = live.Author
	m.Description = live.Description
	m.Genre = slices.Clone(live.Genre)
	m.Status = live.Status
	m.ThumbnailURL = live.ThumbnailURL

	m.NextUpdate = live.NextUpdate
	m.FetchInterval = live.FetchInterval

	if m.LastUpdate.IsZero() {
		m.LastUpdate = live.LastUpdate
	}
	if m.CoverLastModified.IsZero() {
		m.CoverLastModified = live.CoverLastModified
	}
	if m.DateAdded.IsZero() {
		m.DateAdded = live.DateAdded
	}
	if m.FilteredScanlators == nil {
		m.FilteredScanlators = slices.Clone(live.FilteredScanlators)
	}
}
