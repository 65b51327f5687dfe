package catalog

import (
	"regexp"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	"github.com/recoread/recoread-client/internal/domain"
)

// ToNewBook converts a catalog volume into the payload for adding it to the library.
func ToNewBook(v domain.CatalogVolume) domain.NewBook {
	info := v.VolumeInfo

	book := domain.NewBook{
		GoogleBooksID: v.ID,
		Title:         strings.TrimSpace(info.Title),
		Author:        info.Authors.Join(),
		Publisher:     strings.TrimSpace(info.Publisher),
		PublishedDate: NormalizePublishedDate(info.PublishedDate),
		Description:   htmlToMarkdown(strings.TrimSpace(info.Description)),
		CoverImageURL: info.CoverURL(),
		PageCount:     max(info.PageCount, 0),
		Tags:          TagsFromCategories(info.Categories),
	}
	if book.Title == "" {
		book.Title = untitled
	}

	for _, ident := range info.IndustryIdentifiers {
		switch ident.Type {
		case "ISBN_10":
			book.ISBN10 = ident.Identifier
		case "ISBN_13":
			book.ISBN13 = ident.Identifier
		}
	}
	return book
}

// TagsFromCategories splits hierarchical categories ("Fiction / Fantasy")
// into individual tags, normalized and capped at domain.MaxTags.
func TagsFromCategories(categories []string) []string {
	var parts []string
	for _, c := range categories {
		parts = append(parts, strings.Split(norm.NFC.String(c), "/")...)
	}
	return domain.NormalizeTags(parts)
}

var (
	fullDate  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	yearMonth = regexp.MustCompile(`^\d{4}-\d{2}$`)
	yearOnly  = regexp.MustCompile(`^\d{4}$`)
)

// Layouts tried for free-form catalog dates.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2006/01/02",
	"January 2006",
}

// NormalizePublishedDate coerces catalog dates to YYYY-MM-DD.
// Partial dates pad to the first month or day; unparseable input yields "".
func NormalizePublishedDate(s string) string {
	raw := strings.TrimSpace(s)
	switch {
	case raw == "":
		return ""
	case fullDate.MatchString(raw):
		return raw
	case yearMonth.MatchString(raw):
		return raw + "-01"
	case yearOnly.MatchString(raw):
		return raw + "-01-01"
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC().Format(time.DateOnly)
		}
	}
	return ""
}

// htmlTagPattern matches the tags catalog descriptions commonly carry.
var htmlTagPattern = regexp.MustCompile(`<(p|br|div|span|b|i|strong|em|a|ul|ol|li|h[1-6]|blockquote)[\s>/]`)

func containsHTML(s string) bool {
	return htmlTagPattern.MatchString(strings.ToLower(s))
}

// htmlToMarkdown converts HTML descriptions to Markdown and returns plain
// text unchanged.
func htmlToMarkdown(s string) string {
	if s == "" || !containsHTML(s) {
		return s
	}

	markdown, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		return s
	}
	return strings.TrimSpace(markdown)
}

var whitespace = regexp.MustCompile(`\s+`)

// PlainText strips markup from s, for one-line terminal display.
func PlainText(s string) string {
	if s == "" {
		return ""
	}

	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
	}

	var buf strings.Builder
	collectText(doc, &buf)
	return strings.TrimSpace(whitespace.ReplaceAllString(buf.String(), " "))
}

func collectText(n *html.Node, buf *strings.Builder) {
	if n.Type == html.TextNode {
		buf.WriteString(n.Data)
	}
	if n.Type == html.ElementNode {
		switch n.Data {
		case "p", "div", "br", "li", "h1", "h2", "h3", "h4", "h5", "h6":
			buf.WriteString(" ")
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, buf)
	}
	if n.Type == html.ElementNode {
		switch n.Data {
		case "p", "div", "li":
			buf.WriteString(" ")
		}
	}
}
