package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/recoread/recoread-client/internal/catalog"
	domainerrors "github.com/recoread/recoread-client/internal/errors"
)

func (s *Server) registerCatalogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "searchCatalog",
		Method:      http.MethodGet,
		Path:        "/api/catalog/search",
		Summary:     "Search the external catalog",
		Description: "Debounced per session: a newer query from the same X-Session-ID supersedes this one, which then fails with 409.",
		Tags:        []string{"Catalog"},
	}, s.handleSearchCatalog)
}

// CatalogSearchInput is one keystroke's worth of search box input.
type CatalogSearchInput struct {
	SessionID string `header:"X-Session-ID" doc:"UI session; omit to start a new one"`
	Query     string `query:"q" maxLength:"200" doc:"Search text; fewer than 2 characters returns no items"`
}

// CatalogSearchResponse lists catalog hits.
type CatalogSearchResponse struct {
	Query string         `json:"query"`
	Items []catalog.Item `json:"items"`
}

// CatalogSearchOutput wraps catalog hits for Huma.
type CatalogSearchOutput struct {
	SessionID string `header:"X-Session-ID"`
	Body      CatalogSearchResponse
}

func (s *Server) handleSearchCatalog(ctx context.Context, input *CatalogSearchInput) (*CatalogSearchOutput, error) {
	controller, sessionID := s.sessions.controller(input.SessionID)

	items, err := controller.Search(ctx, input.Query)
	if errors.Is(err, catalog.ErrSuperseded) {
		conflict := apiError(domainerrors.Conflict("Search superseded by a newer query"))
		return nil, huma.ErrorWithHeaders(conflict, http.Header{"X-Session-ID": {sessionID}})
	}
	if err != nil {
		return nil, apiError(err)
	}

	return &CatalogSearchOutput{
		SessionID: sessionID,
		Body:      CatalogSearchResponse{Query: input.Query, Items: items},
	}, nil
}
