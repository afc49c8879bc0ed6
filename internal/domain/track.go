package domain

import "time"

// Track is the sync state of a manga on one tracking service.
// (MangaID, SyncID) is unique.
type Track struct {
	ID              int64     `json:"id"`
	MangaID         int64     `json:"manga_id"`
	SyncID          int64     `json:"sync_id"`
	RemoteID        int64     `json:"remote_id"`
	LibraryID       int64     `json:"library_id"`
	Title           string    `json:"title"`
	LastChapterRead float64   `json:"last_chapter_read"`
	TotalChapters   int64     `json:"total_chapters"`
	Status          int64     `json:"status"`
	Score           float64   `json:"score"`
	TrackingURL     string    `json:"tracking_url"`
	StartDate       time.Time `json:"start_date"`
	FinishDate      time.Time `json:"finish_date"`
}
