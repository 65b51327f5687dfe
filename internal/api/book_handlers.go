package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/recoread/recoread-client/internal/client"
	"github.com/recoread/recoread-client/internal/domain"
	domainerrors "github.com/recoread/recoread-client/internal/errors"
	"github.com/recoread/recoread-client/internal/recommend"
	"github.com/recoread/recoread-client/internal/reconcile"
	"github.com/recoread/recoread-client/internal/sse"
)

// Where a reading state came from.
const (
	SourceBackend = "backend"
	SourceCache   = "cache"
)

func (s *Server) registerBookRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getBook",
		Method:      http.MethodGet,
		Path:        "/api/books/{ref}",
		Summary:     "Get book",
		Description: "Returns a book by global ID or by per-user number (no:12)",
		Tags:        []string{"Books"},
	}, s.handleGetBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "getReadingState",
		Method:      http.MethodGet,
		Path:        "/api/books/{ref}/reading-state",
		Summary:     "Get reading state",
		Description: "Returns the reconciled reading state. When the backend is unreachable the cached value is returned as provisional.",
		Tags:        []string{"Reading"},
	}, s.handleGetReadingState)

	huma.Register(s.api, huma.Operation{
		OperationID:   "recordReadingEvent",
		Method:        http.MethodPost,
		Path:          "/api/books/{ref}/reading-events",
		Summary:       "Record reading event",
		Description:   "Posts a reading event and returns the resulting state",
		Tags:          []string{"Reading"},
		DefaultStatus: http.StatusCreated,
	}, s.handleRecordReadingEvent)

	huma.Register(s.api, huma.Operation{
		OperationID: "getRecommendations",
		Method:      http.MethodGet,
		Path:        "/api/books/{ref}/recommendations",
		Summary:     "Get scored recommendations",
		Description: "Returns recommendations for a book with match scores",
		Tags:        []string{"Books"},
	}, s.handleGetRecommendations)
}

// BookRefInput addresses one book.
type BookRefInput struct {
	Ref string `path:"ref" minLength:"1" maxLength:"128" doc:"Book ID, or no:{n} for the per-user number"`
}

// BookOutput wraps a book for Huma.
type BookOutput struct {
	Body *domain.Book
}

func (s *Server) handleGetBook(ctx context.Context, input *BookRefInput) (*BookOutput, error) {
	book, err := s.resolveBook(ctx, input.Ref)
	if err != nil {
		return nil, apiError(err)
	}
	return &BookOutput{Body: book}, nil
}

// ReadingStateInput addresses the book whose state is wanted.
type ReadingStateInput struct {
	Ref  string `path:"ref" minLength:"1" maxLength:"128" doc:"Book ID, or no:{n}"`
	View bool   `query:"view" doc:"Record an OPENED event, as when a detail view mounts"`
}

// ReadingStateResponse is the reconciled state of one book.
type ReadingStateResponse struct {
	BookID      string               `json:"bookId" doc:"Global book ID"`
	State       *domain.ReadingState `json:"state" doc:"Latest progress, null when the book has none"`
	Provisional bool                 `json:"provisional" doc:"True when the state is the cached value and the backend could not confirm it"`
	Source      string               `json:"source" enum:"backend,cache" doc:"Where the state came from"`
	Error       string               `json:"error,omitempty" doc:"Why the backend could not be reached"`
}

// ReadingStateOutput wraps the reading state for Huma.
type ReadingStateOutput struct {
	Body ReadingStateResponse
}

func (s *Server) handleGetReadingState(ctx context.Context, input *ReadingStateInput) (*ReadingStateOutput, error) {
	bookID, err := s.resolveBookID(ctx, input.Ref)
	if err != nil {
		return nil, apiError(err)
	}

	viewer := reconcile.NewViewer(s.backend, s.cache, reconcile.Options{Logger: s.logger, SkipOpened: !input.View})
	defer viewer.Unmount()

	painted := viewer.Mount(ctx, bookID)
	snap, err := viewer.Wait(ctx)
	if err != nil {
		return nil, apiError(err)
	}

	if snap.Err != nil {
		// Without a cached value, or after the session ended, there is
		// nothing worth showing.
		if !painted.Provisional || domainerrors.CodeOf(snap.Err) == domainerrors.CodeUnauthorized {
			return nil, apiError(snap.Err)
		}
		s.logger.Debug("serving cached reading state", "book_id", bookID, "error", snap.Err)
		return &ReadingStateOutput{Body: ReadingStateResponse{
			BookID:      bookID,
			State:       snap.State,
			Provisional: true,
			Source:      SourceCache,
			Error:       domainerrors.Message(snap.Err),
		}}, nil
	}

	return &ReadingStateOutput{Body: ReadingStateResponse{
		BookID: bookID,
		State:  snap.State,
		Source: SourceBackend,
	}}, nil
}

// RecordEventInput is a reading event for one book.
type RecordEventInput struct {
	Ref  string `path:"ref" minLength:"1" maxLength:"128" doc:"Book ID, or no:{n}"`
	Body domain.NewReadingEvent
}

// RecordEventResponse is the stored event and the state it produced.
type RecordEventResponse struct {
	Event *domain.ReadingEvent `json:"event"`
	State *domain.ReadingState `json:"state"`
}

// RecordEventOutput wraps the recorded event for Huma.
type RecordEventOutput struct {
	Body RecordEventResponse
}

func (s *Server) handleRecordReadingEvent(ctx context.Context, input *RecordEventInput) (*RecordEventOutput, error) {
	if err := s.validate.Validate(&input.Body); err != nil {
		return nil, apiError(err)
	}

	book, err := s.resolveBook(ctx, input.Ref)
	if err != nil {
		return nil, apiError(err)
	}

	viewer := reconcile.NewViewer(s.backend, s.cache, reconcile.Options{Logger: s.logger, SkipOpened: true})
	defer viewer.Unmount()

	// Let the initial load settle so it cannot overwrite the recorded state.
	viewer.Mount(ctx, book.ID.String())
	if _, err := viewer.Wait(ctx); err != nil {
		return nil, apiError(err)
	}
	viewer.SetPageCount(book.PageCount)

	event, err := viewer.Record(ctx, input.Body)
	if err != nil {
		return nil, apiError(err)
	}

	if s.events != nil {
		s.events.Emit(sse.NewReadingEventRecorded(book.ID.String(), event))
	}

	return &RecordEventOutput{Body: RecordEventResponse{
		Event: event,
		State: viewer.Snapshot().State,
	}}, nil
}

// RecommendationsInput selects a book and how many recommendations to ask for.
type RecommendationsInput struct {
	Ref   string `path:"ref" minLength:"1" maxLength:"128" doc:"Book ID, or no:{n}"`
	Limit int    `query:"limit" default:"3" minimum:"1" maximum:"20" doc:"Number of recommendations"`
}

// RecommendationsOutput wraps the scored recommendations for Huma.
type RecommendationsOutput struct {
	Body recommend.Ranking
}

func (s *Server) handleGetRecommendations(ctx context.Context, input *RecommendationsInput) (*RecommendationsOutput, error) {
	bookID, err := s.resolveBookID(ctx, input.Ref)
	if err != nil {
		return nil, apiError(err)
	}

	limit := input.Limit
	if limit <= 0 {
		limit = client.DefaultRecommendationLimit
	}

	set, err := s.backend.Recommendations(ctx, bookID, limit)
	if err != nil {
		return nil, apiError(err)
	}
	return &RecommendationsOutput{Body: recommend.Rank(set)}, nil
}

func parseRef(ref string) (domain.BookRef, error) {
	parsed, err := domain.ParseBookRef(ref)
	if err != nil {
		return domain.BookRef{}, domainerrors.Validation(err.Error())
	}
	return parsed, nil
}

func (s *Server) resolveBook(ctx context.Context, ref string) (*domain.Book, error) {
	parsed, err := parseRef(ref)
	if err != nil {
		return nil, err
	}
	return s.backend.ResolveBook(ctx, parsed)
}

// resolveBookID avoids a backend round trip when ref is already a global ID.
func (s *Server) resolveBookID(ctx context.Context, ref string) (string, error) {
	parsed, err := parseRef(ref)
	if err != nil {
		return "", err
	}
	if !parsed.IsNumber() {
		return parsed.ID, nil
	}
	book, err := s.backend.ResolveBook(ctx, parsed)
	if err != nil {
		return "", err
	}
	return book.ID.String(), nil
}
