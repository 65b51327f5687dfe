package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/recoread/recoread-client/internal/domain"
	domainerrors "github.com/recoread/recoread-client/internal/errors"
	"github.com/recoread/recoread-client/internal/recommend"
)

// DefaultRecommendationLimit is used when the caller passes a limit <= 0.
const DefaultRecommendationLimit = 3

// Recommendations fetches suggestions computed against a book. The backend
// has answered in several shapes over time; all of them are normalized.
func (c *Client) Recommendations(ctx context.Context, bookID string, limit int) (*domain.RecommendationSet, error) {
	if limit <= 0 {
		limit = DefaultRecommendationLimit
	}

	resp, err := c.do(ctx, request{
		op:     "recommendations.get",
		method: http.MethodGet,
		path:   "/books/" + escape(bookID) + "/recommendations",
		query:  url.Values{"limit": {strconv.Itoa(limit)}},
	})
	if err != nil {
		return nil, err
	}

	set, err := recommend.Normalize(resp.body)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "decode response")
	}
	return set, nil
}
