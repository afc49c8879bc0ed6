package format

import (
	"slices"
	"time"

	"github.com/shelfsy/shelfsy-server/internal/domain"
)

// ToDomain returns the live manga row seeded from the backup record.
// Initialized is derived from whether the source description was fetched.
func (m *Manga) ToDomain() *domain.Manga {
	return &domain.Manga{
		Source:             m.Source,
		URL:                m.URL,
		Title:              m.Title,
		Artist:             m.Artist,
		Author:             m.Author,
		Description:        m.Description,
		Genre:              slices.Clone(m.Genre),
		Status:             m.Status,
		ThumbnailURL:       m.ThumbnailURL,
		Favorite:           m.Favorite,
		Initialized:        m.Description != "",
		LastUpdate:         FromMillis(m.LastUpdate),
		ViewerFlags:        m.ViewerFlags,
		ChapterFlags:       m.ChapterFlags,
		CoverLastModified:  FromMillis(m.CoverLastModified),
		DateAdded:          FromMillis(m.DateAdded),
		UpdateStrategy:     domain.UpdateStrategy(m.UpdateStrategy),
		FilteredScanlators: slices.Clone(m.FilteredScanlators),
	}
}

// MangaFromDomain builds the backup record of a live manga without its
// attached entities.
func MangaFromDomain(m *domain.Manga) Manga {
	return Manga{
		Source:             m.Source,
		URL:                m.URL,
		Title:              m.Title,
		Artist:             m.Artist,
		Author:             m.Author,
		Description:        m.Description,
		Genre:              slices.Clone(m.Genre),
		Status:             m.Status,
		ThumbnailURL:       m.ThumbnailURL,
		Favorite:           m.Favorite,
		DateAdded:          ToMillis(m.DateAdded),
		LastUpdate:         ToMillis(m.LastUpdate),
		CoverLastModified:  ToMillis(m.CoverLastModified),
		ViewerFlags:        m.ViewerFlags,
		ChapterFlags:       m.ChapterFlags,
		UpdateStrategy:     int(m.UpdateStrategy),
		FilteredScanlators: slices.Clone(m.FilteredScanlators),
		Kind:               m.Kind(),
	}
}

// ToDomain returns the chapter row for mangaID.
func (c *Chapter) ToDomain(mangaID int64) domain.Chapter {
	return domain.Chapter{
		MangaID:       mangaID,
		URL:           c.URL,
		Name:          c.Name,
		Scanlator:     c.Scanlator,
		ChapterNumber: c.ChapterNumber,
		SourceOrder:   c.SourceOrder,
		Read:          c.Read,
		Bookmark:      c.Bookmark,
		LastPageRead:  c.LastPageRead,
		DateFetch:     FromMillis(c.DateFetch),
		DateUpload:    FromMillis(c.DateUpload),
	}
}

// ChapterFromDomain builds the backup record of a chapter.
func ChapterFromDomain(c *domain.Chapter) Chapter {
	return Chapter{
		URL:           c.URL,
		Name:          c.Name,
		Scanlator:     c.Scanlator,
		Read:          c.Read,
		Bookmark:      c.Bookmark,
		LastPageRead:  c.LastPageRead,
		DateFetch:     ToMillis(c.DateFetch),
		DateUpload:    ToMillis(c.DateUpload),
		ChapterNumber: c.ChapterNumber,
		SourceOrder:   c.SourceOrder,
	}
}

// ReadTime returns LastRead and ReadDuration as time values.
func (h *History) ReadTime() (time.Time, time.Duration) {
	return FromMillis(h.LastRead), time.Duration(h.ReadDuration) * time.Millisecond
}

// HistoryFromDomain builds a history record for the chapter at url.
func HistoryFromDomain(url string, h *domain.History) History {
	return History{
		URL:          url,
		LastRead:     ToMillis(h.LastRead),
		ReadDuration: h.TimeRead.Milliseconds(),
	}
}

// ToDomain returns the track row for mangaID.
func (t *Track) ToDomain(mangaID int64) domain.Track {
	return domain.Track{
		MangaID:         mangaID,
		SyncID:          t.SyncID,
		RemoteID:        t.MediaID,
		LibraryID:       t.LibraryID,
		Title:           t.Title,
		LastChapterRead: t.LastChapterRead,
		TotalChapters:   t.TotalChapters,
		Status:          t.Status,
		Score:           t.Score,
		TrackingURL:     t.TrackingURL,
		StartDate:       FromMillis(t.StartDate),
		FinishDate:      FromMillis(t.FinishDate),
	}
}

// TrackFromDomain builds the backup record of a track.
func TrackFromDomain(t *domain.Track) Track {
	return Track{
		SyncID:          t.SyncID,
		MediaID:         t.RemoteID,
		LibraryID:       t.LibraryID,
		Title:           t.Title,
		LastChapterRead: t.LastChapterRead,
		TotalChapters:   t.TotalChapters,
		Score:           t.Score,
		Status:          t.Status,
		StartDate:       ToMillis(t.StartDate),
		FinishDate:      ToMillis(t.FinishDate),
		TrackingURL:     t.TrackingURL,
	}
}

// ToDomain returns the category row.
func (c *Category) ToDomain() domain.Category {
	return domain.Category{Name: c.Name, Order: c.Order, Flags: c.Flags}
}

// CategoryFromDomain builds the backup record of a category.
func CategoryFromDomain(c *domain.Category) Category {
	return Category{Name: c.Name, Order: c.Order, Flags: c.Flags}
}

// ToDomain returns the saved search row.
func (s *SavedSearch) ToDomain() domain.SavedSearch {
	return domain.SavedSearch{Source: s.Source, Name: s.Name, Query: s.Query, FiltersJSON: s.Filters}
}

// SavedSearchFromDomain builds the backup record of a saved search.
func SavedSearchFromDomain(s *domain.SavedSearch) SavedSearch {
	return SavedSearch{Source: s.Source, Name: s.Name, Query: s.Query, Filters: s.FiltersJSON}
}

// ToDomain returns the reference row joining mergeID to mangaID.
func (r *MergedReference) ToDomain(mergeID int64, mangaID *int64) domain.MergedMangaReference {
	return domain.MergedMangaReference{
		IsInfoManga:       r.IsInfoManga,
		GetChapterUpdates: r.GetChapterUpdates,
		ChapterSortMode:   r.ChapterSortMode,
		ChapterPriority:   r.ChapterPriority,
		DownloadChapters:  r.DownloadChapters,
		MergeID:           mergeID,
		MergeURL:          r.MergeURL,
		MangaID:           mangaID,
		MangaURL:          r.MangaURL,
		MangaSourceID:     r.MangaSourceID,
	}
}

// MergedReferenceFromDomain builds the backup record of a reference.
func MergedReferenceFromDomain(r *domain.MergedMangaReference) MergedReference {
	return MergedReference{
		IsInfoManga:       r.IsInfoManga,
		GetChapterUpdates: r.GetChapterUpdates,
		ChapterSortMode:   r.ChapterSortMode,
		ChapterPriority:   r.ChapterPriority,
		DownloadChapters:  r.DownloadChapters,
		MergeURL:          r.MergeURL,
		MangaURL:          r.MangaURL,
		MangaSourceID:     r.MangaSourceID,
	}
}

// ToDomain returns the metadata keyed to mangaID.
func (f *FlatMetadata) ToDomain(mangaID int64) domain.FlatMetadata {
	out := domain.FlatMetadata{
		Metadata: domain.SearchMetadata{
			MangaID:      mangaID,
			Uploader:     f.Uploader,
			Extra:        f.Extra,
			IndexedExtra: f.IndexedExtra,
			ExtraVersion: f.ExtraVersion,
		},
	}
	for _, t := range f.Tags {
		out.Tags = append(out.Tags, domain.SearchTag(t))
	}
	for _, t := range f.Titles {
		out.Titles = append(out.Titles, domain.SearchTitle(t))
	}
	return out
}

// FlatMetadataFromDomain builds the backup record of a manga's metadata.
func FlatMetadataFromDomain(f *domain.FlatMetadata) *FlatMetadata {
	out := &FlatMetadata{
		Uploader:     f.Metadata.Uploader,
		Extra:        f.Metadata.Extra,
		IndexedExtra: f.Metadata.IndexedExtra,
		ExtraVersion: f.Metadata.ExtraVersion,
	}
	for _, t := range f.Tags {
		out.Tags = append(out.Tags, SearchTag(t))
	}
	for _, t := range f.Titles {
		out.Titles = append(out.Titles, SearchTitle(t))
	}
	return out
}

// ToDomain returns the overrides keyed to mangaID.
func (c *CustomInfo) ToDomain(mangaID int64) domain.CustomMangaInfo {
	return domain.CustomMangaInfo{
		MangaID:      mangaID,
		Title:        c.Title,
		Author:       c.Author,
		Artist:       c.Artist,
		ThumbnailURL: c.ThumbnailURL,
		Description:  c.Description,
		Genre:        slices.Clone(c.Genre),
		Status:       c.Status,
	}
}

// CustomInfoFromDomain builds the backup record of a manga's overrides.
func CustomInfoFromDomain(c *domain.CustomMangaInfo) *CustomInfo {
	return &CustomInfo{
		Title:        c.Title,
		Author:       c.Author,
		Artist:       c.Artist,
		ThumbnailURL: c.ThumbnailURL,
		Description:  c.Description,
		Genre:        slices.Clone(c.Genre),
		Status:       c.Status,
	}
}
