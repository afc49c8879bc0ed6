package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/shelfsy/shelfsy-server/internal/normalize"
)

// SearchParams configures a search query.
type SearchParams struct {
	Query string

	// Filters
	Genres       []string // Any of these genres (normalized before matching)
	Tags         []string // Any of these "namespace:name" tags
	Source       int64    // Only this source; 0 means all
	FavoriteOnly bool

	// Pagination
	Limit  int
	Offset int

	// Sorting
	SortBy    string // "relevance", "title", "added"
	SortOrder string // "asc", "desc"

	IncludeFacets bool
	Highlight     bool
}

// DefaultSearchParams returns sensible defaults.
func DefaultSearchParams() SearchParams {
	return SearchParams{
		Limit:         20,
		SortBy:        "relevance",
		SortOrder:     "desc",
		IncludeFacets: true,
		Highlight:     true,
	}
}

// SearchResult represents the search results.
type SearchResult struct {
	Query  string       `json:"query"`
	Total  uint64       `json:"total"`
	TookMs int64        `json:"took_ms"`
	Hits   []SearchHit  `json:"hits"`
	Facets SearchFacets `json:"facets,omitzero"`
}

// SearchHit represents a single search result.
type SearchHit struct {
	MangaID    int64             `json:"manga_id"`
	Score      float64           `json:"score"`
	Title      string            `json:"title"`
	Author     string            `json:"author,omitempty"`
	Artist     string            `json:"artist,omitempty"`
	Source     int64             `json:"source"`
	Highlights map[string]string `json:"highlights,omitempty"`
}

// SearchFacets contains facet counts.
type SearchFacets struct {
	Genres []FacetCount `json:"genres,omitempty"`
	Tags   []FacetCount `json:"tags,omitempty"`
}

// FacetCount represents a facet value and its count.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Search executes a search query.
func (s *SearchIndex) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req := bleve.NewSearchRequestOptions(buildSearchQuery(params), params.Limit, params.Offset, false)
	addSorting(req, params)

	if params.IncludeFacets {
		req.AddFacet("genres", bleve.NewFacetRequest("genres", 20))
		req.AddFacet("tags", bleve.NewFacetRequest("tags", 20))
	}
	if params.Highlight {
		req.Highlight = bleve.NewHighlight()
		req.Highlight.AddField("title")
		req.Highlight.AddField("alt_titles")
	}
	req.Fields = []string{"title", "author", "artist", "source"}

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &SearchResult{
		Query:  params.Query,
		Total:  res.Total,
		TookMs: res.Took.Milliseconds(),
		Hits:   make([]SearchHit, 0, len(res.Hits)),
	}

	for _, hit := range res.Hits {
		h := SearchHit{Score: hit.Score}
		h.MangaID, _ = strconv.ParseInt(hit.ID, 10, 64)
		if v, ok := hit.Fields["title"].(string); ok {
			h.Title = v
		}
		if v, ok := hit.Fields["author"].(string); ok {
			h.Author = v
		}
		if v, ok := hit.Fields["artist"].(string); ok {
			h.Artist = v
		}
		if v, ok := hit.Fields["source"].(string); ok {
			h.Source, _ = strconv.ParseInt(v, 10, 64)
		}
		if len(hit.Fragments) > 0 {
			h.Highlights = make(map[string]string)
			for field, fragments := range hit.Fragments {
				if len(fragments) > 0 {
					h.Highlights[field] = fragments[0]
				}
			}
		}
		result.Hits = append(result.Hits, h)
	}

	if params.IncludeFacets {
		result.Facets = SearchFacets{
			Genres: facetCounts(res, "genres"),
			Tags:   facetCounts(res, "tags"),
		}
	}

	return result, nil
}

// buildSearchQuery constructs the Bleve query from params.
func buildSearchQuery(params SearchParams) query.Query {
	var queries []query.Query

	if params.Query != "" {
		titleMatch := bleve.NewMatchQuery(params.Query)
		titleMatch.SetField("title")
		titleMatch.SetBoost(3.0)

		altMatch := bleve.NewMatchQuery(params.Query)
		altMatch.SetField("alt_titles")
		altMatch.SetBoost(2.0)

		peopleMatch := bleve.NewDisjunctionQuery(
			fieldMatch(params.Query, "author"),
			fieldMatch(params.Query, "artist"),
		)
		peopleMatch.SetBoost(1.0)

		descMatch := bleve.NewMatchQuery(params.Query)
		descMatch.SetField("description")
		descMatch.SetBoost(0.3)

		// Typo tolerance on the title
		fuzzy := bleve.NewFuzzyQuery(strings.ToLower(params.Query))
		fuzzy.SetFuzziness(1)
		fuzzy.SetField("title")
		fuzzy.SetBoost(0.8)

		textQueries := []query.Query{titleMatch, altMatch, peopleMatch, descMatch, fuzzy}

		// Prefix query for autocomplete (minimum 2 chars)
		if len(params.Query) >= 2 {
			prefix := bleve.NewPrefixQuery(strings.ToLower(params.Query))
			prefix.SetField("title")
			prefix.SetBoost(0.5)
			textQueries = append(textQueries, prefix)
		}

		queries = append(queries, bleve.NewDisjunctionQuery(textQueries...))
	}

	if len(params.Genres) > 0 {
		genreQueries := make([]query.Query, len(params.Genres))
		for i, g := range params.Genres {
			genreQueries[i] = termQuery(normalize.Name(g), "genres")
		}
		queries = append(queries, bleve.NewDisjunctionQuery(genreQueries...))
	}

	if len(params.Tags) > 0 {
		tagQueries := make([]query.Query, len(params.Tags))
		for i, tag := range params.Tags {
			tagQueries[i] = termQuery(tag, "tags")
		}
		queries = append(queries, bleve.NewDisjunctionQuery(tagQueries...))
	}

	if params.Source != 0 {
		queries = append(queries, termQuery(strconv.FormatInt(params.Source, 10), "source"))
	}

	if params.FavoriteOnly {
		fav := bleve.NewBoolFieldQuery(true)
		fav.SetField("favorite")
		queries = append(queries, fav)
	}

	switch len(queries) {
	case 0:
		return bleve.NewMatchAllQuery()
	case 1:
		return queries[0]
	default:
		return bleve.NewConjunctionQuery(queries...)
	}
}

func fieldMatch(text, field string) query.Query {
	q := bleve.NewMatchQuery(text)
	q.SetField(field)
	return q
}

func termQuery(term, field string) query.Query {
	q := bleve.NewTermQuery(term)
	q.SetField(field)
	return q
}

// addSorting configures sort order.
func addSorting(req *bleve.SearchRequest, params SearchParams) {
	desc := params.SortOrder == "desc"
	switch params.SortBy {
	case "title":
		if desc {
			req.SortBy([]string{"-title"})
		} else {
			req.SortBy([]string{"title"})
		}
	case "added":
		if params.SortOrder == "asc" {
			req.SortBy([]string{"date_added"})
		} else {
			req.SortBy([]string{"-date_added"})
		}
	default:
		req.SortBy([]string{"-_score"})
	}
}

func facetCounts(res *bleve.SearchResult, field string) []FacetCount {
	facet, ok := res.Facets[field]
	if !ok || facet.Terms == nil {
		return nil
	}
	var out []FacetCount
	for _, term := range facet.Terms.Terms() {
		out = append(out, FacetCount{Value: term.Term, Count: term.Count})
	}
	return out
}
