package domain

import "time"

// Chapter is a single readable unit of a manga. (MangaID, URL) is unique.
type Chapter struct {
	ID      int64  `json:"id"`
	MangaID int64  `json:"manga_id"`
	URL     string `json:"url"`

	Name          string  `json:"name"`
	Scanlator     string  `json:"scanlator,omitempty"`
	ChapterNumber float64 `json:"chapter_number"`
	SourceOrder   int64   `json:"source_order"`

	Read         bool  `json:"read"`
	Bookmark     bool  `json:"bookmark"`
	LastPageRead int64 `json:"last_page_read"`

	DateFetch  time.Time `json:"date_fetch"`
	DateUpload time.Time `json:"date_upload"`
}
