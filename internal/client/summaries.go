package client

import (
	"context"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/recoread/recoread-client/internal/domain"
	domainerrors "github.com/recoread/recoread-client/internal/errors"
)

// GenerateSummary asks the backend to summarize text for a book.
//
// Each book has a local cooldown that starts when a summary is generated or
// when the backend answers 429 or 503. A request within the cooldown is
// refused without a network call and reports the cooldown message. Other
// failures leave the cooldown untouched so the caller can retry at once.
func (c *Client) GenerateSummary(ctx context.Context, bookID, text string) (*domain.Summary, error) {
	req := domain.NewSummary{OriginalText: strings.TrimSpace(text)}
	if err := c.validate.Validate(req); err != nil {
		if utf8.RuneCountInString(req.OriginalText) > domain.MaxSummaryInput {
			return nil, domainerrors.Validation(domainerrors.MsgSummaryTooLong)
		}
		return nil, err
	}

	if wait := c.summaryLimiter.Remaining(bookID); wait > 0 {
		return nil, cooldownError(wait)
	}

	path := "/books/" + escape(bookID) + "/summary"
	resp, err := c.do(ctx, request{op: "summaries.generate", method: http.MethodPost, path: path, body: req})
	if err != nil {
		var apiErr *domainerrors.Error
		if !domainerrors.As(err, &apiErr) {
			return nil, err
		}
		switch {
		case apiErr.Status == http.StatusTooManyRequests || apiErr.Status == http.StatusServiceUnavailable:
			c.summaryLimiter.Penalize(bookID)
			limited := cooldownError(c.summaryLimiter.Remaining(bookID))
			limited.Status = apiErr.Status
			return nil, limited
		case apiErr.Status == http.StatusBadRequest && strings.Contains(strings.ToLower(domainerrors.Message(apiErr)), "long"):
			tooLong := domainerrors.Validation(domainerrors.MsgSummaryTooLong)
			tooLong.Status = http.StatusBadRequest
			return nil, tooLong
		}
		return nil, err
	}

	c.summaryLimiter.Spend(bookID)

	var summary domain.Summary
	if err := resp.decode(&summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// ListSummaries returns every summary generated for a book.
func (c *Client) ListSummaries(ctx context.Context, bookID string) ([]domain.Summary, error) {
	path := "/books/" + escape(bookID) + "/summaries"
	resp, err := c.do(ctx, request{op: "summaries.list", method: http.MethodGet, path: path})
	if err != nil {
		return nil, err
	}

	summaries := []domain.Summary{}
	if err := resp.decode(&summaries); err != nil {
		return nil, err
	}
	return summaries, nil
}

func cooldownError(retryAfter time.Duration) *domainerrors.Error {
	err := domainerrors.RateLimited(domainerrors.MsgSummaryCooldown)
	err.RetryAfter = retryAfter
	return err
}
