package tachibk_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/shelfsy/shelfsy-server/internal/backup/format"
	"github.com/shelfsy/shelfsy-server/internal/backup/tachibk"
	"github.com/shelfsy/shelfsy-server/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func fullBackup() *format.Backup {
	return &format.Backup{
		Categories:    []format.Category{{Name: "Reading", Order: 1, Flags: 64}, {Name: "Default"}},
		SavedSearches: []format.SavedSearch{{Source: 7, Name: "Romance", Query: "love", Filters: `[]`}},
		Feeds: []format.Feed{
			{Source: 7, Global: true},
			{Source: 7, SavedSearch: &format.SavedSearch{Source: 7, Name: "Romance", Query: "love"}},
		},
		Sources:       []format.Source{{SourceID: 7, Name: "Source Seven"}},
		BrokenSources: []format.Source{{SourceID: 8, Name: "Retired"}},
		Manga: []format.Manga{
			{
				Source: 7, URL: "/title/1", Title: "First", Artist: "A", Author: "B",
				Description: "Desc", Genre: []string{"Drama", "Romance"}, Status: domain.StatusOngoing,
				ThumbnailURL: "https://img/1.jpg", Favorite: true, DateAdded: 1_690_000_000_000,
				ViewerFlags: 2, ChapterFlags: 4, UpdateStrategy: 1,
				Chapters: []format.Chapter{
					{URL: "/c/1", Name: "Ch. 1", Scanlator: "grp", Read: true, Bookmark: true, LastPageRead: 12,
						DateFetch: 1_690_000_000_001, DateUpload: 1_680_000_000_000, ChapterNumber: 1.5, SourceOrder: 3},
				},
				Categories:    []int64{1},
				Tracking:      []format.Track{{SyncID: 2, MediaID: 5_000_000_000, LibraryID: 9, Title: "t", LastChapterRead: 12, TotalChapters: 40, Score: 7.5, Status: 1, StartDate: 1, FinishDate: 2, TrackingURL: "https://t"}},
				History:       []format.History{{URL: "/c/1", LastRead: 1_690_000_100_000, ReadDuration: 30_000}},
				BrokenHistory: []format.History{{URL: "/c/0", LastRead: 1_600_000_000_000, ReadDuration: 1}},
				FlatMetadata: &format.FlatMetadata{
					Uploader: "up", Extra: "{}", IndexedExtra: "idx", ExtraVersion: 2,
					Tags:   []format.SearchTag{{Namespace: "female", Name: "glasses", Type: 1}},
					Titles: []format.SearchTitle{{Title: "Alt", Type: 1}},
				},
				CustomInfo: &format.CustomInfo{Title: ptr("Mine"), Status: ptr(0), Genre: []string{"Custom"}},
			},
			{
				Source: domain.MergedSourceID, URL: "/merged", Title: "Merged", Favorite: false,
				MergedReferences: []format.MergedReference{{
					IsInfoManga: true, GetChapterUpdates: true, ChapterSortMode: 1, ChapterPriority: 2,
					DownloadChapters: true, MergeURL: "/merged", MangaURL: "/title/1", MangaSourceID: 7,
				}},
			},
		},
	}
}

func TestRoundTrip(t *testing.T) {
	in := fullBackup()

	var buf bytes.Buffer
	require.NoError(t, tachibk.Encode(&buf, in))

	out, err := tachibk.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestUnmarshal_FavoriteDefaultsTrue(t *testing.T) {
	var manga []byte
	manga = protowire.AppendTag(manga, 2, protowire.BytesType)
	manga = protowire.AppendString(manga, "/m")

	var data []byte
	data = protowire.AppendTag(data, 1, protowire.BytesType)
	data = protowire.AppendBytes(data, manga)

	b, err := tachibk.Unmarshal(data)
	require.NoError(t, err)
	require.Len(t, b.Manga, 1)
	assert.True(t, b.Manga[0].Favorite)
	assert.Nil(t, b.Manga[0].CustomInfo)
}

func TestUnmarshal_PackedCategories(t *testing.T) {
	var packed []byte
	packed = protowire.AppendVarint(packed, 1)
	packed = protowire.AppendVarint(packed, 300)

	var manga []byte
	manga = protowire.AppendTag(manga, 17, protowire.BytesType)
	manga = protowire.AppendBytes(manga, packed)
	manga = protowire.AppendTag(manga, 17, protowire.VarintType)
	manga = protowire.AppendVarint(manga, 5)

	var data []byte
	data = protowire.AppendTag(data, 1, protowire.BytesType)
	data = protowire.AppendBytes(data, manga)

	b, err := tachibk.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 300, 5}, b.Manga[0].Categories)
}

func TestUnmarshal_SkipsUnknownFields(t *testing.T) {
	var data []byte
	data = protowire.AppendTag(data, 999, protowire.BytesType)
	data = protowire.AppendString(data, "future")
	data = protowire.AppendTag(data, 998, protowire.Fixed64Type)
	data = protowire.AppendFixed64(data, 42)
	data = append(data, tachibk.Marshal(fullBackup())...)

	b, err := tachibk.Unmarshal(data)
	require.NoError(t, err)
	assert.Len(t, b.Manga, 2)
}

func TestUnmarshal_Truncated(t *testing.T) {
	data := tachibk.Marshal(fullBackup())

	_, err := tachibk.Unmarshal(data[:len(data)-3])
	assert.ErrorIs(t, err, format.ErrCorruptedBackup)
}

func TestDecode_NotGzip(t *testing.T) {
	_, err := tachibk.Decode(bytes.NewReader([]byte("plain text")))
	assert.ErrorIs(t, err, format.ErrCorruptedBackup)
}
