package domain

import "time"

// History records when a chapter was last read and for how long in total.
type History struct {
	ID        int64         `json:"id"`
	ChapterID int64         `json:"chapter_id"`
	LastRead  time.Time     `json:"last_read"`
	TimeRead  time.Duration `json:"time_read"`
}

// MergeMax folds other into h keeping the latest read time and the longest read duration.
func (h *History) MergeMax(lastRead time.Time, timeRead time.Duration) {
	if lastRead.After(h.LastRead) {
		h.LastRead = lastRead
	}
	if timeRead > h.TimeRead {
		h.TimeRead = timeRead
	}
}
