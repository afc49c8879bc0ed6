// Package search provides full-text search over the manga library using Bleve.
package search

import (
	"strconv"

	"github.com/shelfsy/shelfsy-server/internal/normalize"
	"github.com/shelfsy/shelfsy-server/internal/store"
)

// MangaDocument is the structure indexed for each library manga.
// Titles from flat metadata and user overrides are denormalized into it so a
// single query finds a manga under any of its names.
type MangaDocument struct {
	ID        string   `json:"id"`
	MangaID   int64    `json:"manga_id"`
	Source    int64    `json:"source"`
	Title     string   `json:"title"`
	AltTitles []string `json:"alt_titles,omitempty"`

	Author      string `json:"author,omitempty"`
	Artist      string `json:"artist,omitempty"`
	Description string `json:"description,omitempty"`

	// Genres are normalized keys for exact filtering.
	Genres []string `json:"genres,omitempty"`
	// Tags are "namespace:name" pairs from flat metadata.
	Tags []string `json:"tags,omitempty"`

	Status    int   `json:"status"`
	Favorite  bool  `json:"favorite"`
	DateAdded int64 `json:"date_added"` // Unix millis
}

// DocumentID returns the index document id of a manga.
func DocumentID(mangaID int64) string {
	return strconv.FormatInt(mangaID, 10)
}

// ToMap converts the document to a map with lowercase field names matching
// the index mapping.
func (d *MangaDocument) ToMap() map[string]any {
	m := map[string]any{
		"id":         d.ID,
		"source":     strconv.FormatInt(d.Source, 10),
		"title":      d.Title,
		"status":     d.Status,
		"favorite":   d.Favorite,
		"date_added": d.DateAdded,
	}

	if len(d.AltTitles) > 0 {
		m["alt_titles"] = d.AltTitles
	}
	if d.Author != "" {
		m["author"] = d.Author
	}
	if d.Artist != "" {
		m["artist"] = d.Artist
	}
	if d.Description != "" {
		m["description"] = d.Description
	}
	if len(d.Genres) > 0 {
		m["genres"] = d.Genres
	}
	if len(d.Tags) > 0 {
		m["tags"] = d.Tags
	}

	return m
}

// NewMangaDocument builds the document for an indexed manga.
func NewMangaDocument(im *store.IndexedManga) *MangaDocument {
	m := im.Manga
	doc := &MangaDocument{
		ID:          DocumentID(m.ID),
		MangaID:     m.ID,
		Source:      m.Source,
		Title:       m.Title,
		AltTitles:   im.Titles,
		Author:      m.Author,
		Artist:      m.Artist,
		Description: descriptionText(m.Description),
		Tags:        im.Tags,
		Status:      m.Status,
		Favorite:    m.Favorite,
	}
	if !m.DateAdded.IsZero() {
		doc.DateAdded = m.DateAdded.UnixMilli()
	}
	for _, g := range normalize.Genres(m.Genre) {
		doc.Genres = append(doc.Genres, normalize.Name(g))
	}
	return doc
}
