package tachibk

import (
	"compress/gzip"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/shelfsy/shelfsy-server/internal/backup/format"
)

// maxDecompressedSize bounds the protobuf payload read from a gzip stream.
const maxDecompressedSize = 1 << 30

// Decode reads a gzip-compressed protobuf backup.
func Decode(r io.Reader) (*format.Backup, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", format.ErrCorruptedBackup, err)
	}
	defer zr.Close()

	data, err := io.ReadAll(io.LimitReader(zr, maxDecompressedSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", format.ErrCorruptedBackup, err)
	}
	if len(data) > maxDecompressedSize {
		return nil, fmt.Errorf("%w: payload exceeds %d bytes", format.ErrCorruptedBackup, maxDecompressedSize)
	}
	return Unmarshal(data)
}

// Unmarshal decodes an uncompressed protobuf backup.
func Unmarshal(data []byte) (*format.Backup, error) {
	b := &format.Backup{}
	err := walk(data, func(f field) error {
		switch f.num {
		case backupManga:
			m, err := decodeManga(f.b)
			if err != nil {
				return fmt.Errorf("manga %d: %w", len(b.Manga), err)
			}
			b.Manga = append(b.Manga, m)
		case backupCategories:
			c, err := decodeCategory(f.b)
			if err != nil {
				return err
			}
			b.Categories = append(b.Categories, c)
		case backupBrokenSources:
			s, err := decodeSource(f.b, true)
			if err != nil {
				return err
			}
			b.BrokenSources = append(b.BrokenSources, s)
		case backupSources:
			s, err := decodeSource(f.b, false)
			if err != nil {
				return err
			}
			b.Sources = append(b.Sources, s)
		case backupSavedSearches:
			s, err := decodeSavedSearch(f.b)
			if err != nil {
				return err
			}
			b.SavedSearches = append(b.SavedSearches, s)
		case backupFeeds:
			fd, err := decodeFeed(f.b)
			if err != nil {
				return err
			}
			b.Feeds = append(b.Feeds, fd)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", format.ErrCorruptedBackup, err)
	}
	return b, nil
}

//nolint:gocyclo // One case per wire field.
func decodeManga(data []byte) (format.Manga, error) {
	// Writers omit default values and favorite defaults to true.
	m := format.Manga{Favorite: true}
	var custom format.CustomInfo
	hasCustom := false

	err := walk(data, func(f field) error {
		switch f.num {
		case mangaSource:
			m.Source = f.int64()
		case mangaURL:
			m.URL = f.string()
		case mangaTitle:
			m.Title = f.string()
		case mangaArtist:
			m.Artist = f.string()
		case mangaAuthor:
			m.Author = f.string()
		case mangaDescription:
			m.Description = f.string()
		case mangaGenre:
			m.Genre = append(m.Genre, f.string())
		case mangaStatus:
			m.Status = f.int()
		case mangaThumbnailURL:
			m.ThumbnailURL = f.string()
		case mangaDateAdded:
			m.DateAdded = f.int64()
		case mangaViewer:
			m.Viewer = f.int64()
		case mangaChapters:
			c, err := decodeChapter(f.b)
			if err != nil {
				return err
			}
			m.Chapters = append(m.Chapters, c)
		case mangaCategories:
			orders, err := f.int64s()
			if err != nil {
				return err
			}
			m.Categories = append(m.Categories, orders...)
		case mangaTracking:
			t, err := decodeTrack(f.b)
			if err != nil {
				return err
			}
			m.Tracking = append(m.Tracking, t)
		case mangaFavorite:
			m.Favorite = f.bool()
		case mangaChapterFlags:
			m.ChapterFlags = f.int64()
		case mangaBrokenHistory:
			h, err := decodeHistory(f.b, true)
			if err != nil {
				return err
			}
			m.BrokenHistory = append(m.BrokenHistory, h)
		case mangaViewerFlags:
			m.ViewerFlags = f.int64()
		case mangaHistory:
			h, err := decodeHistory(f.b, false)
			if err != nil {
				return err
			}
			m.History = append(m.History, h)
		case mangaUpdateStrategy:
			m.UpdateStrategy = f.int()
		case mangaMerged:
			r, err := decodeMerged(f.b)
			if err != nil {
				return err
			}
			m.MergedReferences = append(m.MergedReferences, r)
		case mangaFlatMetadata:
			fm, err := decodeFlatMetadata(f.b)
			if err != nil {
				return err
			}
			m.FlatMetadata = fm
		case mangaCustomStatus:
			status := f.int()
			custom.Status = &status
			hasCustom = true
		case mangaCustomTitle:
			custom.Title = ptr(f.string())
			hasCustom = true
		case mangaCustomArtist:
			custom.Artist = ptr(f.string())
			hasCustom = true
		case mangaCustomAuthor:
			custom.Author = ptr(f.string())
			hasCustom = true
		case mangaCustomDescription:
			custom.Description = ptr(f.string())
			hasCustom = true
		case mangaCustomGenre:
			custom.Genre = append(custom.Genre, f.string())
			hasCustom = true
		case mangaCustomThumbnail:
			custom.ThumbnailURL = ptr(f.string())
			hasCustom = true
		}
		return nil
	})
	if hasCustom {
		m.CustomInfo = &custom
	}
	return m, err
}

func decodeChapter(data []byte) (format.Chapter, error) {
	var c format.Chapter
	err := walk(data, func(f field) error {
		switch f.num {
		case chapterURL:
			c.URL = f.string()
		case chapterName:
			c.Name = f.string()
		case chapterScanlator:
			c.Scanlator = f.string()
		case chapterRead:
			c.Read = f.bool()
		case chapterBookmark:
			c.Bookmark = f.bool()
		case chapterLastPageRead:
			c.LastPageRead = f.int64()
		case chapterDateFetch:
			c.DateFetch = f.int64()
		case chapterDateUpload:
			c.DateUpload = f.int64()
		case chapterChapterNumber:
			c.ChapterNumber = f.float32()
		case chapterSourceOrder:
			c.SourceOrder = f.int64()
		}
		return nil
	})
	return c, err
}

func decodeCategory(data []byte) (format.Category, error) {
	var c format.Category
	err := walk(data, func(f field) error {
		switch f.num {
		case categoryName:
			c.Name = f.string()
		case categoryOrder:
			c.Order = f.int64()
		case categoryFlags:
			c.Flags = f.int64()
		}
		return nil
	})
	return c, err
}

// decodeHistory decodes BackupHistory, or BrokenBackupHistory when broken
// is set.
func decodeHistory(data []byte, broken bool) (format.History, error) {
	var h format.History
	shift := protowire.Number(0)
	if broken {
		shift = 1
	}
	err := walk(data, func(f field) error {
		switch f.num + shift {
		case historyURL:
			h.URL = f.string()
		case historyLastRead:
			h.LastRead = f.int64()
		case historyReadDuration:
			h.ReadDuration = f.int64()
		}
		return nil
	})
	return h, err
}

func decodeTrack(data []byte) (format.Track, error) {
	var t format.Track
	var mediaIDInt int64
	err := walk(data, func(f field) error {
		switch f.num {
		case trackSyncID:
			t.SyncID = f.int64()
		case trackLibraryID:
			t.LibraryID = f.int64()
		case trackMediaIDInt:
			mediaIDInt = f.int64()
		case trackTrackingURL:
			t.TrackingURL = f.string()
		case trackTitle:
			t.Title = f.string()
		case trackLastChapterRead:
			t.LastChapterRead = f.float32()
		case trackTotalChapters:
			t.TotalChapters = f.int64()
		case trackScore:
			t.Score = f.float32()
		case trackStatus:
			t.Status = f.int64()
		case trackStartDate:
			t.StartDate = f.int64()
		case trackFinishDate:
			t.FinishDate = f.int64()
		case trackMediaID:
			t.MediaID = f.int64()
		}
		return nil
	})
	if t.MediaID == 0 {
		t.MediaID = mediaIDInt
	}
	return t, err
}

// decodeSource decodes BackupSource, or BrokenBackupSource when broken is set.
func decodeSource(data []byte, broken bool) (format.Source, error) {
	var s format.Source
	shift := protowire.Number(0)
	if broken {
		shift = 1
	}
	err := walk(data, func(f field) error {
		switch f.num + shift {
		case sourceName:
			s.Name = f.string()
		case sourceID:
			s.SourceID = f.int64()
		}
		return nil
	})
	return s, err
}

func decodeSavedSearch(data []byte) (format.SavedSearch, error) {
	var s format.SavedSearch
	err := walk(data, func(f field) error {
		switch f.num {
		case savedSearchName:
			s.Name = f.string()
		case savedSearchQuery:
			s.Query = f.string()
		case savedSearchFilters:
			s.Filters = f.string()
		case savedSearchSource:
			s.Source = f.int64()
		}
		return nil
	})
	return s, err
}

func decodeFeed(data []byte) (format.Feed, error) {
	var fd format.Feed
	err := walk(data, func(f field) error {
		switch f.num {
		case feedSource:
			fd.Source = f.int64()
		case feedGlobal:
			fd.Global = f.bool()
		case feedSavedSearch:
			s, err := decodeSavedSearch(f.b)
			if err != nil {
				return err
			}
			fd.SavedSearch = &s
		}
		return nil
	})
	return fd, err
}

func decodeMerged(data []byte) (format.MergedReference, error) {
	var r format.MergedReference
	err := walk(data, func(f field) error {
		switch f.num {
		case mergedIsInfoManga:
			r.IsInfoManga = f.bool()
		case mergedGetChapterUpdates:
			r.GetChapterUpdates = f.bool()
		case mergedChapterSortMode:
			r.ChapterSortMode = f.int()
		case mergedChapterPriority:
			r.ChapterPriority = f.int()
		case mergedDownloadChapters:
			r.DownloadChapters = f.bool()
		case mergedMergeURL:
			r.MergeURL = f.string()
		case mergedMangaURL:
			r.MangaURL = f.string()
		case mergedMangaSourceID:
			r.MangaSourceID = f.int64()
		}
		return nil
	})
	return r, err
}

func decodeFlatMetadata(data []byte) (*format.FlatMetadata, error) {
	fm := &format.FlatMetadata{}
	err := walk(data, func(f field) error {
		switch f.num {
		case flatMetadata:
			return walk(f.b, func(f field) error {
				switch f.num {
				case metaUploader:
					fm.Uploader = f.string()
				case metaExtra:
					fm.Extra = f.string()
				case metaIndexedExtra:
					fm.IndexedExtra = f.string()
				case metaExtraVersion:
					fm.ExtraVersion = f.int()
				}
				return nil
			})
		case flatTags:
			var tag format.SearchTag
			err := walk(f.b, func(f field) error {
				switch f.num {
				case tagNamespace:
					tag.Namespace = f.string()
				case tagName:
					tag.Name = f.string()
				case tagType:
					tag.Type = f.int()
				}
				return nil
			})
			fm.Tags = append(fm.Tags, tag)
			return err
		case flatTitles:
			var title format.SearchTitle
			err := walk(f.b, func(f field) error {
				switch f.num {
				case titleTitle:
					title.Title = f.string()
				case titleType:
					title.Type = f.int()
				}
				return nil
			})
			fm.Titles = append(fm.Titles, title)
			return err
		}
		return nil
	})
	return fm, err
}

func ptr[T any](v T) *T {
	return &v
}
