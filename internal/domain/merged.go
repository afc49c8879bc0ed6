package domain

// MergedMangaReference links a merged manga to one of the real manga whose
// chapters it aggregates. The merged manga references itself as well.
type MergedMangaReference struct {
	ID int64 `json:"id"`

	IsInfoManga       bool  `json:"is_info_manga"`
	GetChapterUpdates bool  `json:"get_chapter_updates"`
	ChapterSortMode   int   `json:"chapter_sort_mode"`
	ChapterPriority   int   `json:"chapter_priority"`
	DownloadChapters  bool  `json:"download_chapters"`

	MergeID  int64  `json:"merge_id"`
	MergeURL string `json:"merge_url"`

	MangaID       *int64 `json:"manga_id,omitempty"`
	MangaURL      string `json:"manga_url"`
	MangaSourceID int64  `json:"manga_source_id"`
}

// SameLink reports whether two references join the same merge and manga urls.
func (r *MergedMangaReference) SameLink(other *MergedMangaReference) bool {
	return r.MergeURL == other.MergeURL && r.MangaURL == other.MangaURL
}
