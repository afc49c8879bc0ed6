// Package tachibk reads and writes gzip-compressed protobuf library backups
// (".tachibk" / ".proto.gz") on top of the protowire primitives.
//
// The message layout is fixed by the apps that produce these files, so the
// field numbers below are the wire contract. Unknown fields are skipped.
// Two legacy messages number their first field 0, which protowire.ConsumeTag
// rejects, so tags are decoded by hand.
package tachibk

import (
	"errors"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Backup.
const (
	backupManga         protowire.Number = 1
	backupCategories    protowire.Number = 2
	backupBrokenSources protowire.Number = 100
	backupSources       protowire.Number = 101
	backupSavedSearches protowire.Number = 600
	backupFeeds         protowire.Number = 610
)

// BackupManga.
const (
	mangaSource            protowire.Number = 1
	mangaURL               protowire.Number = 2
	mangaTitle             protowire.Number = 3
	mangaArtist            protowire.Number = 4
	mangaAuthor            protowire.Number = 5
	mangaDescription       protowire.Number = 6
	mangaGenre             protowire.Number = 7
	mangaStatus            protowire.Number = 8
	mangaThumbnailURL      protowire.Number = 9
	mangaDateAdded         protowire.Number = 13
	mangaViewer            protowire.Number = 14
	mangaChapters          protowire.Number = 16
	mangaCategories        protowire.Number = 17
	mangaTracking          protowire.Number = 18
	mangaFavorite          protowire.Number = 100
	mangaChapterFlags      protowire.Number = 101
	mangaBrokenHistory     protowire.Number = 102
	mangaViewerFlags       protowire.Number = 103
	mangaHistory           protowire.Number = 104
	mangaUpdateStrategy    protowire.Number = 105
	mangaMerged            protowire.Number = 600
	mangaFlatMetadata      protowire.Number = 601
	mangaCustomStatus      protowire.Number = 800
	mangaCustomTitle       protowire.Number = 801
	mangaCustomArtist      protowire.Number = 802
	mangaCustomAuthor      protowire.Number = 803
	mangaCustomDescription protowire.Number = 804
	mangaCustomGenre       protowire.Number = 805
	mangaCustomThumbnail   protowire.Number = 806
)

// BackupChapter.
const (
	chapterURL           protowire.Number = 1
	chapterName          protowire.Number = 2
	chapterScanlator     protowire.Number = 3
	chapterRead          protowire.Number = 4
	chapterBookmark      protowire.Number = 5
	chapterLastPageRead  protowire.Number = 6
	chapterDateFetch     protowire.Number = 7
	chapterDateUpload    protowire.Number = 8
	chapterChapterNumber protowire.Number = 9
	chapterSourceOrder   protowire.Number = 10
)

// BackupCategory.
const (
	categoryName  protowire.Number = 1
	categoryOrder protowire.Number = 2
	categoryFlags protowire.Number = 100
)

// BackupHistory. BrokenBackupHistory shifts every number down by one.
const (
	historyURL          protowire.Number = 1
	historyLastRead     protowire.Number = 2
	historyReadDuration protowire.Number = 3
)

// BackupTracking.
const (
	trackSyncID          protowire.Number = 1
	trackLibraryID       protowire.Number = 2
	trackMediaIDInt      protowire.Number = 3
	trackTrackingURL     protowire.Number = 4
	trackTitle           protowire.Number = 5
	trackLastChapterRead protowire.Number = 6
	trackTotalChapters   protowire.Number = 7
	trackScore           protowire.Number = 8
	trackStatus          protowire.Number = 9
	trackStartDate       protowire.Number = 10
	trackFinishDate      protowire.Number = 11
	trackMediaID         protowire.Number = 100
)

// BackupSource. BrokenBackupSource shifts both numbers down by one.
const (
	sourceName protowire.Number = 1
	sourceID   protowire.Number = 2
)

// BackupSavedSearch.
const (
	savedSearchName    protowire.Number = 1
	savedSearchQuery   protowire.Number = 2
	savedSearchFilters protowire.Number = 3
	savedSearchSource  protowire.Number = 4
)

// BackupFeed.
const (
	feedSource      protowire.Number = 1
	feedGlobal      protowire.Number = 2
	feedSavedSearch protowire.Number = 3
)

// BackupMergedMangaReference.
const (
	mergedIsInfoManga       protowire.Number = 1
	mergedGetChapterUpdates protowire.Number = 2
	mergedChapterSortMode   protowire.Number = 3
	mergedChapterPriority   protowire.Number = 4
	mergedDownloadChapters  protowire.Number = 5
	mergedMergeURL          protowire.Number = 6
	mergedMangaURL          protowire.Number = 7
	mergedMangaSourceID     protowire.Number = 8
)

// BackupFlatMetadata and its children.
const (
	flatMetadata protowire.Number = 1
	flatTags     protowire.Number = 2
	flatTitles   protowire.Number = 3

	metaUploader     protowire.Number = 1
	metaExtra        protowire.Number = 2
	metaIndexedExtra protowire.Number = 3
	metaExtraVersion protowire.Number = 4

	tagNamespace protowire.Number = 1
	tagName      protowire.Number = 2
	tagType      protowire.Number = 3

	titleTitle protowire.Number = 1
	titleType  protowire.Number = 2
)

var errMalformed = errors.New("malformed protobuf")

// field is one decoded key/value pair. Scalars land in v, length-delimited
// payloads in b.
type field struct {
	num protowire.Number
	typ protowire.Type
	v   uint64
	b   []byte
}

func (f field) int64() int64     { return int64(f.v) }
func (f field) int() int         { return int(int64(f.v)) }
func (f field) bool() bool       { return f.v != 0 }
func (f field) string() string   { return string(f.b) }
func (f field) float32() float64 { return float64(math.Float32frombits(uint32(f.v))) }

// int64s returns the values of a repeated integer field, which writers may
// emit packed or one element per tag.
func (f field) int64s() ([]int64, error) {
	if f.typ != protowire.BytesType {
		return []int64{f.int64()}, nil
	}
	var out []int64
	b := f.b
	for len(b) > 0 {
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		out = append(out, int64(v))
		b = b[n:]
	}
	return out, nil
}

// walk calls fn for every field of the message in b.
func walk(b []byte, fn func(f field) error) error {
	for len(b) > 0 {
		tag, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		num, typ := protowire.DecodeTag(tag)
		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.v, n = protowire.ConsumeVarint(b)
		case protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(b)
			f.v = uint64(v)
		case protowire.Fixed64Type:
			f.v, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			f.b, n = protowire.ConsumeBytes(b)
		case protowire.StartGroupType:
			n = protowire.ConsumeFieldValue(num, typ, b)
		default:
			return errMalformed
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}
