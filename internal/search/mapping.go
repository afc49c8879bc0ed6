package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve index mapping for manga documents.
//
// Titles use the standard analyzer rather than English stemming: manga titles
// are frequently romanized and stemming mangles them. Genres, tags and the
// source id are keywords for exact filtering and faceting.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = standard.Name

	docMapping := bleve.NewDocumentMapping()

	// --- Text fields ---

	titleFieldMapping := bleve.NewTextFieldMapping()
	titleFieldMapping.Analyzer = standard.Name
	titleFieldMapping.Store = true
	titleFieldMapping.IncludeTermVectors = true // For highlighting
	docMapping.AddFieldMappingsAt("title", titleFieldMapping)

	altTitlesFieldMapping := bleve.NewTextFieldMapping()
	altTitlesFieldMapping.Analyzer = standard.Name
	altTitlesFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("alt_titles", altTitlesFieldMapping)

	authorFieldMapping := bleve.NewTextFieldMapping()
	authorFieldMapping.Analyzer = simple.Name
	authorFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("author", authorFieldMapping)

	artistFieldMapping := bleve.NewTextFieldMapping()
	artistFieldMapping.Analyzer = simple.Name
	artistFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("artist", artistFieldMapping)

	// Description - searchable but not stored (too large)
	descFieldMapping := bleve.NewTextFieldMapping()
	descFieldMapping.Analyzer = standard.Name
	descFieldMapping.Store = false
	docMapping.AddFieldMappingsAt("description", descFieldMapping)

	// --- Keyword fields ---

	idFieldMapping := bleve.NewTextFieldMapping()
	idFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("id", idFieldMapping)

	sourceFieldMapping := bleve.NewTextFieldMapping()
	sourceFieldMapping.Analyzer = keyword.Name
	sourceFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("source", sourceFieldMapping)

	genresFieldMapping := bleve.NewTextFieldMapping()
	genresFieldMapping.Analyzer = keyword.Name
	genresFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("genres", genresFieldMapping)

	tagsFieldMapping := bleve.NewTextFieldMapping()
	tagsFieldMapping.Analyzer = keyword.Name
	tagsFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("tags", tagsFieldMapping)

	// --- Numeric and boolean fields ---

	statusFieldMapping := bleve.NewNumericFieldMapping()
	statusFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("status", statusFieldMapping)

	dateAddedFieldMapping := bleve.NewNumericFieldMapping()
	dateAddedFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("date_added", dateAddedFieldMapping)

	favoriteFieldMapping := bleve.NewBooleanFieldMapping()
	favoriteFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("favorite", favoriteFieldMapping)

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}
