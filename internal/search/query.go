package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// DefaultLimit is the page size when Params.Limit is unset.
const DefaultLimit = 20

// Params configures a library search.
type Params struct {
	Query string
	Tags  []string // every tag must match

	MinYear int
	MaxYear int

	Limit  int
	Offset int

	SortBy    string // relevance, title, author, recent, number
	SortOrder string // asc, desc

	Facets    bool // include tag counts
	Highlight bool
}

// Result is one page of matches.
type Result struct {
	Query  string       `json:"query"`
	Total  uint64       `json:"total"`
	TookMs int64        `json:"tookMs"`
	Hits   []Hit        `json:"hits"`
	Tags   []FacetCount `json:"tags,omitempty"`
}

// Hit is a matching book.
type Hit struct {
	ID         string            `json:"id"`
	UserBookNo int64             `json:"userBookNo,omitzero"`
	Title      string            `json:"title"`
	Author     string            `json:"author,omitempty"`
	Publisher  string            `json:"publisher,omitempty"`
	Tags       []string          `json:"tags,omitempty"`
	Score      float64           `json:"score"`
	Highlights map[string]string `json:"highlights,omitempty"`
}

// FacetCount is a tag and the number of matching books carrying it.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

var storedFields = []string{"id", "user_book_no", "title", "author", "publisher", "tags"}

// Search runs a query against the index.
func (s *Index) Search(ctx context.Context, params Params) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := params.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	req := bleve.NewSearchRequestOptions(buildQuery(params), limit, max(params.Offset, 0), false)
	req.Fields = storedFields
	addSorting(req, params)

	if params.Facets {
		req.AddFacet("tags", bleve.NewFacetRequest("tags", 20))
	}
	if params.Highlight {
		req.Highlight = bleve.NewHighlight()
		req.Highlight.AddField("title")
		req.Highlight.AddField("author")
	}

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &Result{
		Query:  params.Query,
		Total:  res.Total,
		TookMs: res.Took.Milliseconds(),
		Hits:   make([]Hit, 0, len(res.Hits)),
	}

	for _, h := range res.Hits {
		hit := Hit{ID: h.ID, Score: h.Score}
		hit.Title, _ = h.Fields["title"].(string)
		hit.Author, _ = h.Fields["author"].(string)
		hit.Publisher, _ = h.Fields["publisher"].(string)
		if no, ok := h.Fields["user_book_no"].(float64); ok {
			hit.UserBookNo = int64(no)
		}
		hit.Tags = stringList(h.Fields["tags"])

		if len(h.Fragments) > 0 {
			hit.Highlights = make(map[string]string, len(h.Fragments))
			for field, fragments := range h.Fragments {
				if len(fragments) > 0 {
					hit.Highlights[field] = fragments[0]
				}
			}
		}
		result.Hits = append(result.Hits, hit)
	}

	if facet, ok := res.Facets["tags"]; ok && facet.Terms != nil {
		for _, term := range facet.Terms.Terms() {
			result.Tags = append(result.Tags, FacetCount{Value: term.Term, Count: term.Count})
		}
	}

	return result, nil
}

// buildQuery matches the text against title, author and description, with
// fuzzy and prefix variants on the title, and ANDs in the filters.
func buildQuery(params Params) query.Query {
	var queries []query.Query

	if text := strings.TrimSpace(params.Query); text != "" {
		titleMatch := bleve.NewMatchQuery(text)
		titleMatch.SetField("title")
		titleMatch.SetBoost(3.0)

		authorMatch := bleve.NewMatchQuery(text)
		authorMatch.SetField("author")
		authorMatch.SetBoost(2.0)

		descMatch := bleve.NewMatchQuery(text)
		descMatch.SetField("description")
		descMatch.SetBoost(0.5)

		isbn := bleve.NewTermQuery(strings.ReplaceAll(text, "-", ""))
		isbn.SetField("isbn")
		isbn.SetBoost(5.0)

		fuzzy := bleve.NewFuzzyQuery(strings.ToLower(text))
		fuzzy.SetFuzziness(1)
		fuzzy.SetField("title")
		fuzzy.SetBoost(0.8)

		textQueries := []query.Query{titleMatch, authorMatch, descMatch, isbn, fuzzy}

		if len(text) >= 2 {
			prefix := bleve.NewPrefixQuery(strings.ToLower(text))
			prefix.SetField("title")
			prefix.SetBoost(0.5)
			textQueries = append(textQueries, prefix)
		}

		queries = append(queries, bleve.NewDisjunctionQuery(textQueries...))
	}

	for _, tag := range params.Tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		tq := bleve.NewTermQuery(tag)
		tq.SetField("tags")
		queries = append(queries, tq)
	}

	if params.MinYear > 0 || params.MaxYear > 0 {
		lo := float64(params.MinYear)
		hi := float64(params.MaxYear)
		if params.MaxYear == 0 {
			hi = 9999
		}
		inclusive := true
		years := bleve.NewNumericRangeInclusiveQuery(&lo, &hi, &inclusive, &inclusive)
		years.SetField("publish_year")
		queries = append(queries, years)
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

func addSorting(req *bleve.SearchRequest, params Params) {
	desc := params.SortOrder == "desc"
	field := func(name string) string {
		if desc {
			return "-" + name
		}
		return name
	}

	switch params.SortBy {
	case "title":
		req.SortBy([]string{field("title")})
	case "author":
		req.SortBy([]string{field("author"), field("title")})
	case "number":
		req.SortBy([]string{field("user_book_no")})
	case "recent":
		if params.SortOrder == "asc" {
			req.SortBy([]string{"created_at"})
		} else {
			req.SortBy([]string{"-created_at"})
		}
	default:
		req.SortBy([]string{"-_score"})
	}
}

// stringList reads a stored multi-value field, which Bleve returns as a
// string for one value and a slice for several.
func stringList(v any) []string {
	switch vv := v.(type) {
	case string:
		return []string{vv}
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
