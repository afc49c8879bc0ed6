package domain

// SearchMetadata is the flattened, source specific metadata of a manga.
type SearchMetadata struct {
	MangaID      int64  `json:"manga_id"`
	Uploader     string `json:"uploader,omitempty"`
	Extra        string `json:"extra"`
	IndexedExtra string `json:"indexed_extra,omitempty"`
	ExtraVersion int    `json:"extra_version"`
}

// SearchTag is a namespaced tag attached to a manga's metadata.
type SearchTag struct {
	Namespace string `json:"namespace,omitempty"`
	Name      string `json:"name"`
	Type      int    `json:"type"`
}

// SearchTitle is an alternative title of a manga.
type SearchTitle struct {
	Title string `json:"title"`
	Type  int    `json:"type"`
}

// FlatMetadata bundles a manga's metadata with its tags and titles.
type FlatMetadata struct {
	Metadata SearchMetadata `json:"metadata"`
	Tags     []SearchTag    `json:"tags,omitempty"`
	Titles   []SearchTitle  `json:"titles,omitempty"`
}

// ForManga returns a copy of the metadata re-keyed to mangaID.
func (f FlatMetadata) ForManga(mangaID int64) FlatMetadata {
	f.Metadata.MangaID = mangaID
	return f
}

// TagStrings renders tags as "namespace:name" (or just name).
func (f *FlatMetadata) TagStrings() []string {
	out := make([]string, 0, len(f.Tags))
	for _, t := range f.Tags {
		if t.Namespace == "" {
			out = append(out, t.Name)
			continue
		}
		out = append(out, t.Namespace+":"+t.Name)
	}
	return out
}
