package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// ReadingEventKind is the action a reading event records.
type ReadingEventKind string

// Reading event kinds.
const (
	ReadingOpened   ReadingEventKind = "OPENED"
	ReadingProgress ReadingEventKind = "PROGRESS"
	ReadingFinished ReadingEventKind = "FINISHED"
)

// ParseReadingEventKind accepts the kind names case-insensitively.
func ParseReadingEventKind(s string) (ReadingEventKind, error) {
	switch ReadingEventKind(strings.ToUpper(strings.TrimSpace(s))) {
	case ReadingOpened:
		return ReadingOpened, nil
	case ReadingProgress:
		return ReadingProgress, nil
	case ReadingFinished:
		return ReadingFinished, nil
	default:
		return "", fmt.Errorf("unknown reading event kind %q", s)
	}
}

// ReadingEvent is the immutable record of a reading action.
// Events are append-only; ReadingState derives from them server-side.
type ReadingEvent struct {
	ID                ID               `json:"id"`
	BookID            ID               `json:"bookId"`
	BookTitle         string           `json:"bookTitle,omitempty"`
	BookCoverImageURL string           `json:"bookCoverImageUrl,omitempty"`
	EventType         ReadingEventKind `json:"eventType"`
	Page              *int             `json:"page,omitempty"`
	ProgressPercent   *int             `json:"progressPercent,omitempty"`
	DurationSeconds   *int             `json:"durationSeconds,omitempty"`
	Note              string           `json:"note,omitempty"`
	CreatedAt         Time             `json:"createdAt,omitzero"`
}

// NewReadingEvent is the payload for logging a reading action.
type NewReadingEvent struct {
	EventType       ReadingEventKind `json:"eventType" validate:"required,oneof=OPENED PROGRESS FINISHED"`
	Page            *int             `json:"page,omitempty" validate:"omitempty,gte=0"`
	ProgressPercent *int             `json:"progressPercent,omitempty" validate:"omitempty,gte=0,lte=100"`
	DurationSeconds *int             `json:"durationSeconds,omitempty" validate:"omitempty,gte=0"`
	Note            string           `json:"note,omitempty" validate:"max=2000"`
}

// ReadingState is the latest known progress for a book.
// The backend computes it from the event log; the client mirrors it locally.
type ReadingState struct {
	BookID          ID     `json:"bookId,omitempty"`
	ProgressPercent *int   `json:"progressPercent,omitempty"`
	Page            *int   `json:"page,omitempty"`
	Note            string `json:"note,omitempty"`
	UpdatedAt       Time   `json:"updatedAt,omitzero"`
}

// IsEmpty reports whether the state carries no progress information.
func (s *ReadingState) IsEmpty() bool {
	return s == nil || (s.ProgressPercent == nil && s.Page == nil && s.Note == "" && s.UpdatedAt.IsZero())
}

// Clone returns a deep copy of the state.
func (s *ReadingState) Clone() *ReadingState {
	if s == nil {
		return nil
	}
	c := *s
	if s.ProgressPercent != nil {
		c.ProgressPercent = Int(*s.ProgressPercent)
	}
	if s.Page != nil {
		c.Page = Int(*s.Page)
	}
	return &c
}

// Int returns a pointer to v.
func Int(v int) *int {
	return &v
}

// PercentForPage converts a page number to a progress percentage.
// Returns false when the page count is unknown.
func PercentForPage(page, pageCount int) (int, bool) {
	if pageCount <= 0 {
		return 0, false
	}
	pct := int(math.Round(float64(max(page, 0)) / float64(pageCount) * 100))
	return clamp(pct, 0, 100), true
}

// PageForPercent converts a progress percentage to an approximate page.
// Returns false when the page count is unknown.
func PageForPercent(percent, pageCount int) (int, bool) {
	if pageCount <= 0 {
		return 0, false
	}
	pct := clamp(percent, 0, 100)
	page := int(math.Round(float64(pct) / 100 * float64(pageCount)))
	return clamp(page, 0, pageCount), true
}

// Complete fills in whichever of page and percent is missing when the
// book's page count allows it. FINISHED events always report 100%.
func (e *NewReadingEvent) Complete(pageCount int) {
	if e.EventType == ReadingFinished {
		e.ProgressPercent = Int(100)
		if pageCount > 0 {
			e.Page = Int(pageCount)
		}
		return
	}

	switch {
	case e.Page != nil && e.ProgressPercent == nil:
		if pct, ok := PercentForPage(*e.Page, pageCount); ok {
			e.ProgressPercent = Int(pct)
		}
	case e.ProgressPercent != nil && e.Page == nil:
		if page, ok := PageForPercent(*e.ProgressPercent, pageCount); ok {
			e.Page = Int(page)
		}
	}
}

// StateAfter returns the reading state implied by logging e for bookID at now.
func (e *NewReadingEvent) StateAfter(bookID string, now time.Time) ReadingState {
	st := ReadingState{
		BookID:    ID(bookID),
		Note:      e.Note,
		UpdatedAt: NewTime(now),
	}
	if e.ProgressPercent != nil {
		st.ProgressPercent = Int(*e.ProgressPercent)
	}
	if e.Page != nil {
		st.Page = Int(*e.Page)
	}
	return st
}

func clamp(n, lo, hi int) int {
	return max(lo, min(hi, n))
}

