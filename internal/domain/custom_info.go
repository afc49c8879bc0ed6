package domain

// CustomMangaInfo holds user overrides of a manga's descriptive fields.
// Nil pointers mean "no override".
type CustomMangaInfo struct {
	MangaID      int64    `json:"manga_id"`
	Title        *string  `json:"title,omitempty"`
	Author       *string  `json:"author,omitempty"`
	Artist       *string  `json:"artist,omitempty"`
	ThumbnailURL *string  `json:"thumbnail_url,omitempty"`
	Description  *string  `json:"description,omitempty"`
	Genre        []string `json:"genre,omitempty"`
	Status       *int     `json:"status,omitempty"`
}

// IsEmpty reports whether no field is overridden.
func (c *CustomMangaInfo) IsEmpty() bool {
	return c.Title == nil && c.Author == nil && c.Artist == nil &&
		c.ThumbnailURL == nil && c.Description == nil && c.Genre == nil && c.Status == nil
}

// WithMangaID returns a copy keyed to id.
func (c CustomMangaInfo) WithMangaID(id int64) CustomMangaInfo {
	c.MangaID = id
	return c
}

// Apply overlays the overrides onto m.
func (c *CustomMangaInfo) Apply(m *Manga) {
	if c.Title != nil {
		m.Title = *c.Title
	}
	if c.Author != nil {
		m.Author = *c.Author
	}
	if c.Artist != nil {
		m.Artist = *c.Artist
	}
	if c.ThumbnailURL != nil {
		m.ThumbnailURL = *c.ThumbnailURL
	}
	if c.Description != nil {
		m.Description = *c.Description
	}
	if c.Genre != nil {
		m.Genre = c.Genre
	}
	if c.Status != nil {
		m.Status = *c.Status
	}
}
