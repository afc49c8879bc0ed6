package tachibk

import (
	"compress/gzip"
	"io"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/shelfsy/shelfsy-server/internal/backup/format"
)

// Encode writes b as a gzip-compressed protobuf backup.
func Encode(w io.Writer, b *format.Backup) error {
	zw := gzip.NewWriter(w)
	if _, err := zw.Write(Marshal(b)); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// Marshal encodes b without compression. Zero values are omitted, as the
// producing apps do, except favorite which defaults to true on read.
func Marshal(b *format.Backup) []byte {
	var out []byte
	for i := range b.Manga {
		out = appendMessage(out, backupManga, marshalManga(&b.Manga[i]))
	}
	for _, c := range b.Categories {
		var m []byte
		m = appendString(m, categoryName, c.Name)
		m = appendInt(m, categoryOrder, c.Order)
		m = appendInt(m, categoryFlags, c.Flags)
		out = appendMessage(out, backupCategories, m)
	}
	for _, s := range b.BrokenSources {
		out = appendMessage(out, backupBrokenSources, marshalSource(s, 1))
	}
	for _, s := range b.Sources {
		out = appendMessage(out, backupSources, marshalSource(s, 0))
	}
	for _, s := range b.SavedSearches {
		out = appendMessage(out, backupSavedSearches, marshalSavedSearch(s))
	}
	for _, fd := range b.Feeds {
		var m []byte
		m = appendInt(m, feedSource, fd.Source)
		m = appendBool(m, feedGlobal, fd.Global)
		if fd.SavedSearch != nil {
			m = appendMessage(m, feedSavedSearch, marshalSavedSearch(*fd.SavedSearch))
		}
		out = appendMessage(out, backupFeeds, m)
	}
	return out
}

func marshalManga(m *format.Manga) []byte {
	var b []byte
	b = appendInt(b, mangaSource, m.Source)
	b = appendString(b, mangaURL, m.URL)
	b = appendString(b, mangaTitle, m.Title)
	b = appendString(b, mangaArtist, m.Artist)
	b = appendString(b, mangaAuthor, m.Author)
	b = appendString(b, mangaDescription, m.Description)
	for _, g := range m.Genre {
		b = protowire.AppendTag(b, mangaGenre, protowire.BytesType)
		b = protowire.AppendString(b, g)
	}
	b = appendInt(b, mangaStatus, int64(m.Status))
	b = appendString(b, mangaThumbnailURL, m.ThumbnailURL)
	b = appendInt(b, mangaDateAdded, m.DateAdded)
	b = appendInt(b, mangaViewer, m.Viewer)
	for _, c := range m.Chapters {
		b = appendMessage(b, mangaChapters, marshalChapter(c))
	}
	for _, order := range m.Categories {
		b = protowire.AppendTag(b, mangaCategories, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(order))
	}
	for _, t := range m.Tracking {
		b = appendMessage(b, mangaTracking, marshalTrack(t))
	}
	b = protowire.AppendTag(b, mangaFavorite, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeBool(m.Favorite))
	b = appendInt(b, mangaChapterFlags, m.ChapterFlags)
	for _, h := range m.BrokenHistory {
		b = appendMessage(b, mangaBrokenHistory, marshalHistory(h, 1))
	}
	b = appendInt(b, mangaViewerFlags, m.ViewerFlags)
	for _, h := range m.History {
		b = appendMessage(b, mangaHistory, marshalHistory(h, 0))
	}
	b = appendInt(b, mangaUpdateStrategy, int64(m.UpdateStrategy))
	for _, r := range m.MergedReferences {
		b = appendMessage(b, mangaMerged, marshalMerged(r))
	}
	if m.FlatMetadata != nil {
		b = appendMessage(b, mangaFlatMetadata, marshalFlatMetadata(m.FlatMetadata))
	}
	if c := m.CustomInfo; c != nil {
		if c.Status != nil {
			b = protowire.AppendTag(b, mangaCustomStatus, protowire.VarintType)
			b = protowire.AppendVarint(b, uint64(int64(*c.Status)))
		}
		b = appendStringPtr(b, mangaCustomTitle, c.Title)
		b = appendStringPtr(b, mangaCustomArtist, c.Artist)
		b = appendStringPtr(b, mangaCustomAuthor, c.Author)
		b = appendStringPtr(b, mangaCustomDescription, c.Description)
		for _, g := range c.Genre {
			b = protowire.AppendTag(b, mangaCustomGenre, protowire.BytesType)
			b = protowire.AppendString(b, g)
		}
		b = appendStringPtr(b, mangaCustomThumbnail, c.ThumbnailURL)
	}
	return b
}

func marshalChapter(c format.Chapter) []byte {
	var b []byte
	b = appendString(b, chapterURL, c.URL)
	b = appendString(b, chapterName, c.Name)
	b = appendString(b, chapterScanlator, c.Scanlator)
	b = appendBool(b, chapterRead, c.Read)
	b = appendBool(b, chapterBookmark, c.Bookmark)
	b = appendInt(b, chapterLastPageRead, c.LastPageRead)
	b = appendInt(b, chapterDateFetch, c.DateFetch)
	b = appendInt(b, chapterDateUpload, c.DateUpload)
	b = appendFloat(b, chapterChapterNumber, c.ChapterNumber)
	b = appendInt(b, chapterSourceOrder, c.SourceOrder)
	return b
}

// marshalHistory writes BackupHistory, or BrokenBackupHistory with shift 1.
func marshalHistory(h format.History, shift protowire.Number) []byte {
	var b []byte
	b = appendString(b, historyURL-shift, h.URL)
	b = appendInt(b, historyLastRead-shift, h.LastRead)
	b = appendInt(b, historyReadDuration-shift, h.ReadDuration)
	return b
}

func marshalTrack(t format.Track) []byte {
	var b []byte
	b = appendInt(b, trackSyncID, t.SyncID)
	b = appendInt(b, trackLibraryID, t.LibraryID)
	b = appendString(b, trackTrackingURL, t.TrackingURL)
	b = appendString(b, trackTitle, t.Title)
	b = appendFloat(b, trackLastChapterRead, t.LastChapterRead)
	b = appendInt(b, trackTotalChapters, t.TotalChapters)
	b = appendFloat(b, trackScore, t.Score)
	b = appendInt(b, trackStatus, t.Status)
	b = appendInt(b, trackStartDate, t.StartDate)
	b = appendInt(b, trackFinishDate, t.FinishDate)
	b = appendInt(b, trackMediaID, t.MediaID)
	return b
}

// marshalSource writes BackupSource, or BrokenBackupSource with shift 1.
func marshalSource(s format.Source, shift protowire.Number) []byte {
	var b []byte
	b = appendString(b, sourceName-shift, s.Name)
	b = appendInt(b, sourceID-shift, s.SourceID)
	return b
}

func marshalSavedSearch(s format.SavedSearch) []byte {
	var b []byte
	b = appendString(b, savedSearchName, s.Name)
	b = appendString(b, savedSearchQuery, s.Query)
	b = appendString(b, savedSearchFilters, s.Filters)
	b = appendInt(b, savedSearchSource, s.Source)
	return b
}

func marshalMerged(r format.MergedReference) []byte {
	var b []byte
	b = appendBool(b, mergedIsInfoManga, r.IsInfoManga)
	b = appendBool(b, mergedGetChapterUpdates, r.GetChapterUpdates)
	b = appendInt(b, mergedChapterSortMode, int64(r.ChapterSortMode))
	b = appendInt(b, mergedChapterPriority, int64(r.ChapterPriority))
	b = appendBool(b, mergedDownloadChapters, r.DownloadChapters)
	b = appendString(b, mergedMergeURL, r.MergeURL)
	b = appendString(b, mergedMangaURL, r.MangaURL)
	b = appendInt(b, mergedMangaSourceID, r.MangaSourceID)
	return b
}

func marshalFlatMetadata(fm *format.FlatMetadata) []byte {
	var meta []byte
	meta = appendString(meta, metaUploader, fm.Uploader)
	meta = appendString(meta, metaExtra, fm.Extra)
	meta = appendString(meta, metaIndexedExtra, fm.IndexedExtra)
	meta = appendInt(meta, metaExtraVersion, int64(fm.ExtraVersion))

	b := appendMessage(nil, flatMetadata, meta)
	for _, t := range fm.Tags {
		var tag []byte
		tag = appendString(tag, tagNamespace, t.Namespace)
		tag = appendString(tag, tagName, t.Name)
		tag = appendInt(tag, tagType, int64(t.Type))
		b = appendMessage(b, flatTags, tag)
	}
	for _, t := range fm.Titles {
		var title []byte
		title = appendString(title, titleTitle, t.Title)
		title = appendInt(title, titleType, int64(t.Type))
		b = appendMessage(b, flatTitles, title)
	}
	return b
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendStringPtr(b []byte, num protowire.Number, s *string) []byte {
	if s == nil {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, *s)
}

func appendInt(b []byte, num protowire.Number, v int64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, 1)
}

func appendFloat(b []byte, num protowire.Number, v float64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, math.Float32bits(float32(v)))
}
