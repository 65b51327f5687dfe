package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/recoread/recoread-client/internal/domain"
)

func TestToNewBook(t *testing.T) {
	vol := domain.CatalogVolume{
		ID: "zyTCAlFPjgYC",
		VolumeInfo: domain.VolumeInfo{
			Title:         "The Left Hand of Darkness",
			Authors:       domain.StringList{"Ursula K. Le Guin"},
			Publisher:     "Ace",
			PublishedDate: "1969",
			Description:   "<p>A <b>groundbreaking</b> novel.</p>",
			PageCount:     304,
			Categories:    []string{"Fiction / Science Fiction / General", "Fiction"},
			IndustryIdentifiers: []domain.IndustryIdentifier{
				{Type: "ISBN_10", Identifier: "0441478123"},
				{Type: "ISBN_13", Identifier: "9780441478125"},
				{Type: "OTHER", Identifier: "OCLC:123"},
			},
			ImageLinks: &domain.ImageLinks{SmallThumbnail: "http://books.example/small.jpg"},
		},
	}

	book := ToNewBook(vol)

	assert.Equal(t, "zyTCAlFPjgYC", book.GoogleBooksID)
	assert.Equal(t, "The Left Hand of Darkness", book.Title)
	assert.Equal(t, "Ursula K. Le Guin", book.Author)
	assert.Equal(t, "1969-01-01", book.PublishedDate)
	assert.Equal(t, "0441478123", book.ISBN10)
	assert.Equal(t, "9780441478125", book.ISBN13)
	assert.Equal(t, 304, book.PageCount)
	assert.Equal(t, "https://books.example/small.jpg", book.CoverImageURL)
	assert.Equal(t, []string{"fiction", "science fiction", "general"}, book.Tags)
	assert.Contains(t, book.Description, "**groundbreaking**")
	assert.NotContains(t, book.Description, "<p>")
}

func TestToNewBook_Untitled(t *testing.T) {
	book := ToNewBook(domain.CatalogVolume{ID: "x"})
	assert.Equal(t, "Untitled", book.Title)
	assert.Empty(t, book.Tags)
	assert.Empty(t, book.PublishedDate)
}

func TestNormalizePublishedDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2004-05-17", "2004-05-17"},
		{"2004-05", "2004-05-01"},
		{"2004", "2004-01-01"},
		{" 1999 ", "1999-01-01"},
		{"2011-03-04T00:00:00Z", "2011-03-04"},
		{"March 4, 2011", "2011-03-04"},
		{"Mar 4, 2011", "2011-03-04"},
		{"circa 1850", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePublishedDate(tt.in))
		})
	}
}

func TestTagsFromCategories(t *testing.T) {
	// "Cafe" + combining acute composes to the same tag as the precomposed form.
	tags := TagsFromCategories([]string{"Cafe\u0301 / Culture", "Caf\u00e9", "Travel", "Food"})
	assert.Equal(t, []string{"caf\u00e9", "culture", "travel"}, tags)
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "First para. Second & last.", PlainText("<p>First para.</p><p>Second &amp; last.</p>"))
	assert.Equal(t, "no markup", PlainText("  no   markup "))
	assert.Empty(t, PlainText(""))
}

func TestNewItem(t *testing.T) {
	item := NewItem(domain.CatalogVolume{
		ID: "v1",
		VolumeInfo: domain.VolumeInfo{
			Authors:     domain.StringList{"A. Author", "B. Author"},
			Description: "<p>" + "Long description here" + "</p>",
			ImageLinks:  &domain.ImageLinks{Thumbnail: "http://img/t.jpg", SmallThumbnail: "http://img/s.jpg"},
		},
	})

	assert.Equal(t, "v1", item.ID)
	assert.Equal(t, "Untitled", item.Title)
	assert.Equal(t, "A. Author, B. Author", item.Authors)
	assert.Equal(t, "https://img/t.jpg", item.Cover)
	assert.Equal(t, "Long…", item.Snippet(4))
	assert.Equal(t, "Long description here", item.Snippet(0))
}
