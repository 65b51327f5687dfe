package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve mapping for library documents.
//
// Title and author get English stemming and term vectors for highlighting.
// Tags and identifiers are keywords so filters and facets match exactly.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	docMapping.AddFieldMappingsAt("title", textField(en.AnalyzerName, true, true))
	docMapping.AddFieldMappingsAt("author", textField(en.AnalyzerName, true, true))
	docMapping.AddFieldMappingsAt("description", textField(en.AnalyzerName, false, false))
	docMapping.AddFieldMappingsAt("publisher", textField(simple.Name, true, false))

	docMapping.AddFieldMappingsAt("id", textField(keyword.Name, true, false))
	docMapping.AddFieldMappingsAt("isbn", textField(keyword.Name, false, false))

	// Tags are already normalized ("science fiction"), keep them whole.
	docMapping.AddFieldMappingsAt("tags", textField(keyword.Name, true, true))

	for _, name := range []string{"user_book_no", "publish_year", "created_at"} {
		numeric := bleve.NewNumericFieldMapping()
		numeric.Store = true
		docMapping.AddFieldMappingsAt(name, numeric)
	}

	indexMapping.AddDocumentMapping("_default", docMapping)
	return indexMapping
}

func textField(analyzer string, store, termVectors bool) *mapping.FieldMapping {
	fm := bleve.NewTextFieldMapping()
	fm.Analyzer = analyzer
	fm.Store = store
	fm.IncludeTermVectors = termVectors
	return fm
}
