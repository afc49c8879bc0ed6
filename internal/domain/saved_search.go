package domain

// SavedSearch is a named, persisted query against one source.
type SavedSearch struct {
	ID          int64  `json:"id"`
	Source      int64  `json:"source"`
	Name        string `json:"name"`
	Query       string `json:"query,omitempty"`
	FiltersJSON string `json:"filters_json,omitempty"`
}

// SameAs reports whether two saved searches describe the same query.
// Ids are ignored.
func (s *SavedSearch) SameAs(other *SavedSearch) bool {
	return s.Source == other.Source &&
		s.Name == other.Name &&
		s.Query == other.Query &&
		s.FiltersJSON == other.FiltersJSON
}

// FeedSavedSearch is an entry of the browse feed. A nil SavedSearchID means
// the feed shows the source's latest updates.
type FeedSavedSearch struct {
	ID            int64  `json:"id"`
	Source        int64  `json:"source"`
	SavedSearchID *int64 `json:"saved_search_id,omitempty"`
	Global        bool   `json:"global"`
}

// IsLatest reports whether the feed entry shows latest updates rather than a saved search.
func (f *FeedSavedSearch) IsLatest() bool {
	return f.SavedSearchID == nil
}

// SameAs reports whether two feed entries point at the same thing.
func (f *FeedSavedSearch) SameAs(other *FeedSavedSearch) bool {
	if f.Source != other.Source || f.Global != other.Global {
		return false
	}
	if f.SavedSearchID == nil || other.SavedSearchID == nil {
		return f.SavedSearchID == nil && other.SavedSearchID == nil
	}
	return *f.SavedSearchID == *other.SavedSearchID
}
