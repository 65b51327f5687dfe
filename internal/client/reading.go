package client

import (
	"context"
	"net/http"
	"net/url"
	"slices"
	"strconv"

	"github.com/recoread/recoread-client/internal/domain"
)

// DefaultHistoryLimit is how many events ReadingHistory asks for by default.
const DefaultHistoryLimit = 50

// CreateReadingEvent appends a reading event for a book.
func (c *Client) CreateReadingEvent(ctx context.Context, bookID string, event domain.NewReadingEvent) (*domain.ReadingEvent, error) {
	if err := c.validate.Validate(event); err != nil {
		return nil, err
	}

	path := "/books/" + escape(bookID) + "/reading-events"
	resp, err := c.do(ctx, request{op: "reading.create_event", method: http.MethodPost, path: path, body: event})
	if err != nil {
		return nil, err
	}

	var out domain.ReadingEvent
	if err := resp.decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListReadingEvents returns a book's reading events, newest first.
func (c *Client) ListReadingEvents(ctx context.Context, bookID string) ([]domain.ReadingEvent, error) {
	path := "/books/" + escape(bookID) + "/reading-events"
	resp, err := c.do(ctx, request{op: "reading.list_events", method: http.MethodGet, path: path})
	if err != nil {
		return nil, err
	}
	return decodeEvents(resp)
}

// LatestReadingState returns the backend's derived state for a book.
// A 204, an empty body or a state with every field null means there is no
// state yet and yields (nil, nil).
func (c *Client) LatestReadingState(ctx context.Context, bookID string) (*domain.ReadingState, error) {
	path := "/books/" + escape(bookID) + "/reading-state"
	resp, err := c.do(ctx, request{op: "reading.latest_state", method: http.MethodGet, path: path})
	if err != nil {
		return nil, err
	}
	if resp.empty() {
		return nil, nil
	}

	var state domain.ReadingState
	if err := resp.decode(&state); err != nil {
		return nil, err
	}
	if state.IsEmpty() {
		return nil, nil
	}
	if state.BookID == "" {
		state.BookID = domain.ID(bookID)
	}
	return &state, nil
}

// ReadingHistory returns recent events across all books, newest first.
// A non-positive limit uses DefaultHistoryLimit.
func (c *Client) ReadingHistory(ctx context.Context, limit int) ([]domain.ReadingEvent, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))

	resp, err := c.do(ctx, request{op: "reading.history", method: http.MethodGet, path: "/reading/history", query: q})
	if err != nil {
		return nil, err
	}
	return decodeEvents(resp)
}

func decodeEvents(resp *response) ([]domain.ReadingEvent, error) {
	events := []domain.ReadingEvent{}
	if err := resp.decode(&events); err != nil {
		return nil, err
	}
	slices.SortStableFunc(events, func(a, b domain.ReadingEvent) int {
		return b.CreatedAt.Compare(a.CreatedAt.Time)
	})
	return events, nil
}
