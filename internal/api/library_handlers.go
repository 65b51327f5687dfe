package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/recoread/recoread-client/internal/client"
	"github.com/recoread/recoread-client/internal/domain"
	domainerrors "github.com/recoread/recoread-client/internal/errors"
	"github.com/recoread/recoread-client/internal/search"
	"github.com/recoread/recoread-client/internal/sse"
)

func (s *Server) registerLibraryRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "searchLibrary",
		Method:      http.MethodGet,
		Path:        "/api/library/search",
		Summary:     "Search the local library index",
		Description: "Full-text search over the books indexed by the last sync",
		Tags:        []string{"Library"},
	}, s.handleSearchLibrary)

	huma.Register(s.api, huma.Operation{
		OperationID: "syncLibrary",
		Method:      http.MethodPost,
		Path:        "/api/library/sync",
		Summary:     "Re-index the library",
		Description: "Pages through the backend library and replaces the local index",
		Tags:        []string{"Library"},
	}, s.handleSyncLibrary)
}

// LibrarySearchInput contains parameters for searching the local index.
type LibrarySearchInput struct {
	Query  string `query:"q" maxLength:"200" doc:"Search text; omit to list"`
	Tag    string `query:"tag" maxLength:"100" doc:"Only books carrying this tag"`
	Limit  int    `query:"limit" default:"20" minimum:"1" maximum:"100" doc:"Page size"`
	Offset int    `query:"offset" minimum:"0" doc:"Pagination offset"`
	Sort   string `query:"sort" default:"relevance" enum:"relevance,title,author,recent,number" doc:"Sort order"`
	Order  string `query:"order" enum:"asc,desc" doc:"Sort direction; recent defaults to newest first, the rest to ascending"`
}

// LibrarySearchOutput wraps the matches for Huma.
type LibrarySearchOutput struct {
	Body *search.Result
}

func (s *Server) handleSearchLibrary(ctx context.Context, input *LibrarySearchInput) (*LibrarySearchOutput, error) {
	if s.index == nil {
		return nil, apiError(&domainerrors.Error{Code: domainerrors.CodeUnavailable, Message: "Library index is not configured"})
	}

	params := search.Params{
		Query:     strings.TrimSpace(input.Query),
		Limit:     input.Limit,
		Offset:    input.Offset,
		SortBy:    input.Sort,
		SortOrder: input.Order,
		Facets:    true,
		Highlight: true,
	}
	if tag := strings.TrimSpace(input.Tag); tag != "" {
		params.Tags = []string{tag}
	}

	result, err := s.index.Search(ctx, params)
	if err != nil {
		return nil, apiError(domainerrors.Wrap(err, domainerrors.CodeInternal, "Library search failed"))
	}
	return &LibrarySearchOutput{Body: result}, nil
}

// LibrarySyncResponse reports a finished sync.
type LibrarySyncResponse struct {
	Books int `json:"books" doc:"Number of books now indexed"`
}

// LibrarySyncOutput wraps the sync report for Huma.
type LibrarySyncOutput struct {
	Body LibrarySyncResponse
}

func (s *Server) handleSyncLibrary(ctx context.Context, _ *struct{}) (*LibrarySyncOutput, error) {
	if s.index == nil {
		return nil, apiError(&domainerrors.Error{Code: domainerrors.CodeUnavailable, Message: "Library index is not configured"})
	}

	n, err := s.index.Sync(ctx, LibraryPages(s.backend))
	if err != nil {
		return nil, apiError(err)
	}

	if s.events != nil {
		s.events.Emit(sse.NewLibrarySyncedEvent(n))
	}
	return &LibrarySyncOutput{Body: LibrarySyncResponse{Books: n}}, nil
}

// LibraryPager lists library pages.
type LibraryPager interface {
	ListBooks(ctx context.Context, params client.ListBooksParams) (*domain.Page[domain.Book], error)
}

// LibraryPages adapts the backend listing to the index's page source, oldest
// books first so pages stay stable while new books are added.
func LibraryPages(backend LibraryPager) search.PageFunc {
	return func(ctx context.Context, page, size int) (*domain.Page[domain.Book], error) {
		return backend.ListBooks(ctx, client.ListBooksParams{Page: page, Size: size, Sort: "createdAt,asc"})
	}
}
