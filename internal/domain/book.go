package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxTags is the most tags a book may carry.
const MaxTags = 3

// Book is a title in the user's library.
// It is addressable by its global ID or by its per-user sequence number.
type Book struct {
	ID            ID       `json:"id"`
	UserBookNo    int64    `json:"userBookNo,omitzero"`
	GoogleBooksID string   `json:"googleBooksId,omitempty"`
	Title         string   `json:"title"`
	Author        string   `json:"author,omitempty"`
	Publisher     string   `json:"publisher,omitempty"`
	PublishedDate string   `json:"publishedDate,omitempty"`
	Description   string   `json:"description,omitempty"`
	CoverImageURL string   `json:"coverImageUrl,omitempty"`
	ISBN10        string   `json:"isbn10,omitempty"`
	ISBN13        string   `json:"isbn13,omitempty"`
	PageCount     int      `json:"pageCount,omitzero"`
	Tags          []string `json:"tags"`
	CreatedAt     Time     `json:"createdAt,omitzero"`
	UpdatedAt     Time     `json:"updatedAt,omitzero"`
}

// NewBook is the payload for adding a book, either manually or from a catalog volume.
type NewBook struct {
	GoogleBooksID string   `json:"googleBooksId,omitempty"`
	Title         string   `json:"title" validate:"notblank,max=500"`
	Author        string   `json:"author,omitempty"`
	Publisher     string   `json:"publisher,omitempty"`
	PublishedDate string   `json:"publishedDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Description   string   `json:"description,omitempty"`
	CoverImageURL string   `json:"coverImageUrl,omitempty"`
	ISBN10        string   `json:"isbn10,omitempty" validate:"max=10"`
	ISBN13        string   `json:"isbn13,omitempty" validate:"max=13"`
	PageCount     int      `json:"pageCount,omitzero" validate:"gte=0"`
	Tags          []string `json:"tags" validate:"max=3,dive,required"`
}

// Page is one page of a paginated backend listing.
type Page[T any] struct {
	Content       []T   `json:"content"`
	Number        int   `json:"number"`
	Size          int   `json:"size"`
	TotalPages    int   `json:"totalPages"`
	TotalElements int64 `json:"totalElements"`
	First         bool  `json:"first"`
	Last          bool  `json:"last"`
}

// NormalizeTags lower-cases, trims and deduplicates tags, keeping at most MaxTags.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, min(len(tags), MaxTags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
		if len(out) == MaxTags {
			break
		}
	}
	return out
}

// BookRef addresses a book by global ID or by per-user sequence number.
// Exactly one of ID and No is set.
type BookRef struct {
	ID string
	No int64
}

// ParseBookRef accepts "no:12", "#12" or a global ID.
func ParseBookRef(s string) (BookRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return BookRef{}, fmt.Errorf("empty book reference")
	}

	var digits string
	switch {
	case strings.HasPrefix(s, "no:"):
		digits = s[len("no:"):]
	case strings.HasPrefix(s, "#"):
		digits = s[1:]
	default:
		return BookRef{ID: s}, nil
	}

	no, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || no <= 0 {
		return BookRef{}, fmt.Errorf("invalid book number %q", digits)
	}
	return BookRef{No: no}, nil
}

// IsNumber reports whether the reference uses the per-user sequence number.
func (r BookRef) IsNumber() bool {
	return r.ID == "" && r.No > 0
}

func (r BookRef) String() string {
	if r.IsNumber() {
		return "no:" + strconv.FormatInt(r.No, 10)
	}
	return r.ID
}
