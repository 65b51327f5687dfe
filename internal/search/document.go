// Package search keeps a local full-text index of the user's library using
// Bleve, so books can be found offline by title, author, description or tag.
package search

import (
	"strconv"
	"strings"

	"github.com/recoread/recoread-client/internal/domain"
)

// Document is a library book as stored in the index.
// Field names in the index are snake_case; see ToMap.
type Document struct {
	ID          string
	UserBookNo  int64
	Title       string
	Author      string
	Publisher   string
	Description string
	ISBN        []string
	Tags        []string
	PublishYear int
	CreatedAt   int64 // Unix ms
}

// NewDocument builds the index document for a book.
func NewDocument(b domain.Book) *Document {
	doc := &Document{
		ID:          b.ID.String(),
		UserBookNo:  b.UserBookNo,
		Title:       b.Title,
		Author:      b.Author,
		Publisher:   b.Publisher,
		Description: b.Description,
		Tags:        domain.NormalizeTags(b.Tags),
		PublishYear: publishYear(b.PublishedDate),
	}
	for _, isbn := range []string{b.ISBN10, b.ISBN13} {
		if isbn != "" {
			doc.ISBN = append(doc.ISBN, isbn)
		}
	}
	if !b.CreatedAt.IsZero() {
		doc.CreatedAt = b.CreatedAt.UnixMilli()
	}
	return doc
}

// ToMap converts the document to the field map Bleve indexes, so names match
// the mapping exactly and empty fields are left out.
func (d *Document) ToMap() map[string]any {
	m := map[string]any{
		"id":    d.ID,
		"title": d.Title,
	}
	if d.UserBookNo > 0 {
		m["user_book_no"] = float64(d.UserBookNo)
	}
	if d.Author != "" {
		m["author"] = d.Author
	}
	if d.Publisher != "" {
		m["publisher"] = d.Publisher
	}
	if d.Description != "" {
		m["description"] = d.Description
	}
	if len(d.ISBN) > 0 {
		m["isbn"] = d.ISBN
	}
	if len(d.Tags) > 0 {
		m["tags"] = d.Tags
	}
	if d.PublishYear > 0 {
		m["publish_year"] = float64(d.PublishYear)
	}
	if d.CreatedAt > 0 {
		m["created_at"] = float64(d.CreatedAt)
	}
	return m
}

// publishYear extracts the leading year of a YYYY[-MM[-DD]] date.
func publishYear(date string) int {
	date = strings.TrimSpace(date)
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil || year <= 0 {
		return 0
	}
	return year
}
