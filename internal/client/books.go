package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/recoread/recoread-client/internal/domain"
	domainerrors "github.com/recoread/recoread-client/internal/errors"
)

// Listing defaults.
const (
	DefaultPageSize = 12
	DefaultSort     = "createdAt,desc"
)

// ListBooksParams filters and pages the library listing.
type ListBooksParams struct {
	Search string
	Tag    string
	Page   int
	Size   int    // default: 12
	Sort   string // default: createdAt,desc
}

func (p ListBooksParams) query() url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(max(p.Page, 0)))
	size := p.Size
	if size <= 0 {
		size = DefaultPageSize
	}
	q.Set("size", strconv.Itoa(size))
	sort := p.Sort
	if sort == "" {
		sort = DefaultSort
	}
	q.Set("sort", sort)
	if s := strings.TrimSpace(p.Search); s != "" {
		q.Set("search", s)
	}
	if t := strings.TrimSpace(p.Tag); t != "" {
		q.Set("tag", t)
	}
	return q
}

// ListBooks returns one page of the library.
func (c *Client) ListBooks(ctx context.Context, params ListBooksParams) (*domain.Page[domain.Book], error) {
	resp, err := c.do(ctx, request{op: "books.list", method: http.MethodGet, path: "/books", query: params.query()})
	if err != nil {
		return nil, err
	}

	var page domain.Page[domain.Book]
	if err := resp.decode(&page); err != nil {
		return nil, err
	}
	return &page, nil
}

// LibraryCount returns the total number of books, read from a one-item page.
func (c *Client) LibraryCount(ctx context.Context) (int64, error) {
	page, err := c.ListBooks(ctx, ListBooksParams{Size: 1})
	if err != nil {
		return 0, err
	}
	return page.TotalElements, nil
}

// CreateBook adds a book to the library. Tags are normalized before validation.
func (c *Client) CreateBook(ctx context.Context, book domain.NewBook) (*domain.Book, error) {
	book.Title = strings.TrimSpace(book.Title)
	book.Tags = domain.NormalizeTags(book.Tags)
	if err := c.validate.Validate(book); err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, request{op: "books.create", method: http.MethodPost, path: "/books", body: book})
	if err != nil {
		return nil, err
	}
	return decodeBook(resp)
}

// GetBook fetches a book by its global ID.
func (c *Client) GetBook(ctx context.Context, bookID string) (*domain.Book, error) {
	resp, err := c.do(ctx, request{op: "books.get", method: http.MethodGet, path: "/books/" + escape(bookID)})
	if err != nil {
		return nil, err
	}
	return decodeBook(resp)
}

// GetBookByUserNo fetches a book by its per-user sequence number.
func (c *Client) GetBookByUserNo(ctx context.Context, no int64) (*domain.Book, error) {
	path := "/books/no/" + strconv.FormatInt(no, 10)
	resp, err := c.do(ctx, request{op: "books.get_by_no", method: http.MethodGet, path: path})
	if err != nil {
		return nil, err
	}
	return decodeBook(resp)
}

// ResolveBook fetches a book by whichever identifier ref carries.
func (c *Client) ResolveBook(ctx context.Context, ref domain.BookRef) (*domain.Book, error) {
	if ref.IsNumber() {
		return c.GetBookByUserNo(ctx, ref.No)
	}
	if ref.ID == "" {
		return nil, domainerrors.Validation("book reference is empty")
	}
	return c.GetBook(ctx, ref.ID)
}

// DeleteBook removes a book. A 409 means dependent records (reading
// history, summaries) still exist; it is reported as a blocking-dependency
// error and the book is left in place.
func (c *Client) DeleteBook(ctx context.Context, bookID string) error {
	_, err := c.do(ctx, request{op: "books.delete", method: http.MethodDelete, path: "/books/" + escape(bookID)})
	if err == nil {
		return nil
	}

	var apiErr *domainerrors.Error
	if domainerrors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
		blocked := domainerrors.BlockingDependency(apiErr.BackendMessage)
		blocked.Status = http.StatusConflict
		return blocked
	}
	return err
}

// Tags returns every distinct tag in the library.
func (c *Client) Tags(ctx context.Context) ([]string, error) {
	resp, err := c.do(ctx, request{op: "books.tags", method: http.MethodGet, path: "/books/tags"})
	if err != nil {
		return nil, err
	}

	tags := []string{}
	if err := resp.decode(&tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// SearchCatalog queries the external catalog through the backend.
func (c *Client) SearchCatalog(ctx context.Context, query string, maxResults int) (*domain.CatalogSearchResponse, error) {
	q := url.Values{}
	q.Set("q", query)
	if maxResults > 0 {
		q.Set("maxResults", strconv.Itoa(maxResults))
	}

	resp, err := c.do(ctx, request{op: "books.search_catalog", method: http.MethodPost, path: "/books/search", query: q})
	if err != nil {
		return nil, err
	}

	var out domain.CatalogSearchResponse
	if err := resp.decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func decodeBook(resp *response) (*domain.Book, error) {
	if resp.empty() {
		return nil, domainerrors.Internal("backend returned an empty book")
	}
	var book domain.Book
	if err := resp.decode(&book); err != nil {
		return nil, err
	}
	return &book, nil
}
