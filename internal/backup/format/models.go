// Package format defines the backup data model shared by the archive and
// protobuf decoders, the exporter and the restore pipeline.
//
// Timestamps are Unix milliseconds on the wire; zero means "unset".
package format

import (
	"time"

	"github.com/shelfsy/shelfsy-server/internal/domain"
	"github.com/shelfsy/shelfsy-server/internal/normalize"
)

// Backup is a fully decoded backup.
type Backup struct {
	// Manifest is nil for legacy protobuf backups.
	Manifest *Manifest `json:"-"`

	Categories    []Category    `json:"categories" validate:"dive"`
	SavedSearches []SavedSearch `json:"saved_searches" validate:"dive"`
	Feeds         []Feed        `json:"feeds" validate:"dive"`
	Sources       []Source      `json:"sources"`
	BrokenSources []Source      `json:"broken_sources"`
	Manga         []Manga       `json:"manga" validate:"dive"`
}

// Manga is one library entry with everything attached to it.
type Manga struct {
	Source       int64    `json:"source"`
	URL          string   `json:"url" validate:"required"`
	Title        string   `json:"title"`
	Artist       string   `json:"artist,omitempty"`
	Author       string   `json:"author,omitempty"`
	Description  string   `json:"description,omitempty"`
	Genre        []string `json:"genre,omitempty"`
	Status       int      `json:"status"`
	ThumbnailURL string   `json:"thumbnail_url,omitempty"`

	Favorite           bool     `json:"favorite"`
	DateAdded          int64    `json:"date_added"`
	LastUpdate         int64    `json:"last_update,omitempty"`
	CoverLastModified  int64    `json:"cover_last_modified,omitempty"`
	Viewer             int64    `json:"viewer,omitempty"` // legacy, folded into ViewerFlags
	ViewerFlags        int64    `json:"viewer_flags"`
	ChapterFlags       int64    `json:"chapter_flags"`
	UpdateStrategy     int      `json:"update_strategy"`
	FilteredScanlators []string `json:"filtered_scanlators,omitempty"`

	Chapters      []Chapter `json:"chapters,omitempty" validate:"dive"`
	Categories    []int64   `json:"categories,omitempty"` // category orders
	Tracking      []Track   `json:"tracking,omitempty" validate:"dive"`
	History       []History `json:"history,omitempty" validate:"dive"`
	BrokenHistory []History `json:"broken_history,omitempty" validate:"dive"`

	MergedReferences []MergedReference `json:"merged_references,omitempty" validate:"dive"`
	FlatMetadata     *FlatMetadata     `json:"flat_metadata,omitempty"`
	CustomInfo       *CustomInfo       `json:"custom_info,omitempty"`

	// Kind is derived from Source when the backup is normalized.
	Kind domain.SourceKind `json:"-"`
}

// Chapter is a backed up chapter.
type Chapter struct {
	URL           string  `json:"url" validate:"required"`
	Name          string  `json:"name"`
	Scanlator     string  `json:"scanlator,omitempty"`
	Read          bool    `json:"read"`
	Bookmark      bool    `json:"bookmark"`
	LastPageRead  int64   `json:"last_page_read"`
	DateFetch     int64   `json:"date_fetch"`
	DateUpload    int64   `json:"date_upload"`
	ChapterNumber float64 `json:"chapter_number"`
	SourceOrder   int64   `json:"source_order"`
}

// Category is a backed up category. Manga reference it by Order.
type Category struct {
	Name  string `json:"name" validate:"required"`
	Order int64  `json:"order"`
	Flags int64  `json:"flags"`
}

// History is a read record. Both the standard and the legacy ("broken")
// history lists use this shape.
type History struct {
	URL          string `json:"url" validate:"required"`
	LastRead     int64  `json:"last_read"`
	ReadDuration int64  `json:"read_duration"` // milliseconds
}

// Track is per-service sync state.
type Track struct {
	SyncID          int64   `json:"sync_id" validate:"min=1"`
	MediaID         int64   `json:"media_id"`
	LibraryID       int64   `json:"library_id"`
	Title           string  `json:"title"`
	LastChapterRead float64 `json:"last_chapter_read"`
	TotalChapters   int64   `json:"total_chapters"`
	Score           float64 `json:"score"`
	Status          int64   `json:"status"`
	StartDate       int64   `json:"start_date"`
	FinishDate      int64   `json:"finish_date"`
	TrackingURL     string  `json:"tracking_url"`
}

// SavedSearch is a backed up saved search.
type SavedSearch struct {
	Source  int64  `json:"source"`
	Name    string `json:"name" validate:"required"`
	Query   string `json:"query,omitempty"`
	Filters string `json:"filters,omitempty"` // JSON
}

// Feed is a backed up feed entry. A nil SavedSearch means "latest".
type Feed struct {
	Source      int64        `json:"source"`
	Global      bool         `json:"global"`
	SavedSearch *SavedSearch `json:"saved_search,omitempty"`
}

// Source maps a source id to its display name.
type Source struct {
	SourceID int64  `json:"source_id"`
	Name     string `json:"name"`
}

// MergedReference links a merged manga to one of its parts by url.
type MergedReference struct {
	IsInfoManga       bool   `json:"is_info_manga"`
	GetChapterUpdates bool   `json:"get_chapter_updates"`
	ChapterSortMode   int    `json:"chapter_sort_mode"`
	ChapterPriority   int    `json:"chapter_priority"`
	DownloadChapters  bool   `json:"download_chapters"`
	MergeURL          string `json:"merge_url" validate:"required"`
	MangaURL          string `json:"manga_url" validate:"required"`
	MangaSourceID     int64  `json:"manga_source_id"`
}

// FlatMetadata is backed up search metadata.
type FlatMetadata struct {
	Uploader     string        `json:"uploader,omitempty"`
	Extra        string        `json:"extra"`
	IndexedExtra string        `json:"indexed_extra,omitempty"`
	ExtraVersion int           `json:"extra_version"`
	Tags         []SearchTag   `json:"tags,omitempty"`
	Titles       []SearchTitle `json:"titles,omitempty"`
}

// SearchTag is a backed up metadata tag.
type SearchTag struct {
	Namespace string `json:"namespace,omitempty"`
	Name      string `json:"name"`
	Type      int    `json:"type"`
}

// SearchTitle is a backed up alternative title.
type SearchTitle struct {
	Title string `json:"title"`
	Type  int    `json:"type"`
}

// CustomInfo carries user overrides. Nil fields are not overridden.
type CustomInfo struct {
	Title        *string  `json:"title,omitempty"`
	Author       *string  `json:"author,omitempty"`
	Artist       *string  `json:"artist,omitempty"`
	ThumbnailURL *string  `json:"thumbnail_url,omitempty"`
	Description  *string  `json:"description,omitempty"`
	Genre        []string `json:"genre,omitempty"`
	Status       *int     `json:"status,omitempty"`
}

// Normalize prepares a decoded backup for restore: it classifies every manga
// by source kind, folds legacy fields and cleans free-form text.
func (b *Backup) Normalize() {
	for i := range b.Manga {
		m := &b.Manga[i]
		m.Kind = domain.SourceKindOf(m.Source)
		if m.ViewerFlags == 0 && m.Viewer != 0 {
			m.ViewerFlags = m.Viewer
		}
		m.Viewer = 0
		m.Title = normalize.Text(m.Title)
		m.Genre = normalize.Genres(m.Genre)
	}
	for i := range b.Categories {
		b.Categories[i].Name = normalize.Text(b.Categories[i].Name)
	}
}

// SourceNames returns the id to name lookup used when attributing errors.
// Broken sources are applied first so live sources win.
func (b *Backup) SourceNames() map[int64]string {
	names := make(map[int64]string, len(b.BrokenSources)+len(b.Sources))
	for _, s := range b.BrokenSources {
		names[s.SourceID] = s.Name
	}
	for _, s := range b.Sources {
		names[s.SourceID] = s.Name
	}
	return names
}

// FromMillis converts wire milliseconds to time, mapping 0 to the zero time.
func FromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// ToMillis is the inverse of FromMillis.
func ToMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
