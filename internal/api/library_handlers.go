package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/shelfsy/shelfsy-server/internal/auth"
	domainerrors "github.com/shelfsy/shelfsy-server/internal/errors"
	"github.com/shelfsy/shelfsy-server/internal/search"
	"github.com/shelfsy/shelfsy-server/internal/store"
)

func (s *Server) registerLibraryRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "libraryStats",
		Method:      http.MethodGet,
		Path:        "/api/v1/library/stats",
		Summary:     "Library statistics",
		Description: "Counts manga, chapters and related records, with the library checkpoint",
		Tags:        []string{"Library"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleLibraryStats)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchLibrary",
		Method:      http.MethodGet,
		Path:        "/api/v1/library/search",
		Summary:     "Search library",
		Description: "Full-text search over restored manga, honoring custom info overrides",
		Tags:        []string{"Library", "Search"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleSearch)

	huma.Register(s.api, huma.Operation{
		OperationID: "reindexLibrary",
		Method:      http.MethodPost,
		Path:        "/api/v1/admin/search/reindex",
		Summary:     "Rebuild search index",
		Tags:        []string{"Admin", "Search"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleReindex)
}

// LibraryStatsOutput wraps library statistics.
type LibraryStatsOutput struct {
	Body *store.LibraryStats
}

// SearchInput contains parameters for searching the library.
type SearchInput struct {
	Query     string `query:"q" validate:"max=200,nocontrol" doc:"Search query; empty matches everything"`
	Genres    string `query:"genres" validate:"max=500,nocontrol" doc:"Comma-separated genres, any of which must match"`
	Tags      string `query:"tags" validate:"max=500,nocontrol" doc:"Comma-separated namespace:name tags"`
	Source    int64  `query:"source" validate:"gte=0" doc:"Only manga from this source id"`
	Favorites bool   `query:"favorites" doc:"Only library favorites"`
	Limit     int    `query:"limit" validate:"omitempty,gte=1,lte=100" doc:"Max results (default 20)"`
	Offset    int    `query:"offset" validate:"gte=0" doc:"Pagination offset"`
	Sort      string `query:"sort" validate:"omitempty,oneof=relevance title added" doc:"relevance, title or added"`
	Order     string `query:"order" validate:"omitempty,oneof=asc desc" doc:"asc or desc"`
	Facets    bool   `query:"facets" doc:"Include genre and tag facets"`
}

// SearchOutput wraps the search response for Huma.
type SearchOutput struct {
	Body *search.SearchResult
}

// ReindexOutput reports a rebuilt index.
type ReindexOutput struct {
	Body struct {
		Indexed int `json:"indexed" doc:"Documents written"`
	}
}

func (s *Server) handleLibraryStats(ctx context.Context, _ *struct{}) (*LibraryStatsOutput, error) {
	if _, err := s.RequireScope(ctx, auth.ScopeRead); err != nil {
		return nil, toAPIError(err)
	}

	stats, err := s.services.Library.GetLibraryStats(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to read library stats", err)
	}
	return &LibraryStatsOutput{Body: stats}, nil
}

func (s *Server) handleSearch(ctx context.Context, input *SearchInput) (*SearchOutput, error) {
	if _, err := s.RequireScope(ctx, auth.ScopeRead); err != nil {
		return nil, toAPIError(err)
	}
	if err := s.validator.Validate(input); err != nil {
		return nil, toAPIError(err)
	}
	if s.services.Search == nil {
		return nil, toAPIError(domainerrors.Internal("search index is not available"))
	}

	params := search.DefaultSearchParams()
	params.Query = strings.TrimSpace(input.Query)
	params.Genres = splitCSV(input.Genres)
	params.Tags = splitCSV(input.Tags)
	params.Source = input.Source
	params.FavoriteOnly = input.Favorites
	params.Offset = input.Offset
	params.IncludeFacets = input.Facets
	if input.Limit > 0 {
		params.Limit = input.Limit
	}
	if input.Sort != "" {
		params.SortBy = input.Sort
	}
	if input.Order != "" {
		params.SortOrder = input.Order
	}

	s.logger.Debug("search request received", "query", params.Query, "limit", params.Limit)

	result, err := s.services.Search.Search(ctx, params)
	if err != nil {
		return nil, huma.Error500InternalServerError("search failed", err)
	}
	return &SearchOutput{Body: result}, nil
}

func (s *Server) handleReindex(ctx context.Context, _ *struct{}) (*ReindexOutput, error) {
	if _, err := s.RequireScope(ctx, auth.ScopeRestore); err != nil {
		return nil, toAPIError(err)
	}
	if s.services.Reindexer == nil {
		return nil, toAPIError(domainerrors.Internal("search index is not available"))
	}

	n, err := s.services.Reindexer.ReindexAll(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("reindex failed", err)
	}
	s.logger.Info("search index rebuilt", "documents", n)

	out := &ReindexOutput{}
	out.Body.Indexed = n
	return out, nil
}

func splitCSV(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
