package search

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recoread/recoread-client/internal/domain"
)

func setupTestIndex(t *testing.T) *Index {
	t.Helper()

	index, err := Open(Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })
	return index
}

func library() []domain.Book {
	return []domain.Book{
		{
			ID: "b1", UserBookNo: 1, Title: "Dune", Author: "Frank Herbert",
			PublishedDate: "1965-08-01", ISBN13: "9780441013593",
			Tags:      []string{"Science Fiction", "classic"},
			CreatedAt: domain.NewTime(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		},
		{
			ID: "b2", UserBookNo: 2, Title: "Dune Messiah", Author: "Frank Herbert",
			PublishedDate: "1969",
			Tags:          []string{"science fiction"},
			CreatedAt:     domain.NewTime(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)),
		},
		{
			ID: "b3", UserBookNo: 3, Title: "Emma", Author: "Jane Austen",
			PublishedDate: "1815-12-23", Description: "A comedy of manners.",
			Tags:      []string{"classic", "romance"},
			CreatedAt: domain.NewTime(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
		},
	}
}

func indexLibrary(t *testing.T, index *Index) {
	t.Helper()
	var docs []*Document
	for _, b := range library() {
		docs = append(docs, NewDocument(b))
	}
	require.NoError(t, index.IndexBooks(docs))
}

func hitIDs(r *Result) []string {
	ids := make([]string, 0, len(r.Hits))
	for _, h := range r.Hits {
		ids = append(ids, h.ID)
	}
	return ids
}

func TestNewDocument(t *testing.T) {
	doc := NewDocument(library()[0])

	assert.Equal(t, 1965, doc.PublishYear)
	assert.Equal(t, []string{"9780441013593"}, doc.ISBN)
	assert.Equal(t, []string{"science fiction", "classic"}, doc.Tags)
	assert.Equal(t, int64(1704067200000), doc.CreatedAt)

	m := doc.ToMap()
	assert.Equal(t, float64(1), m["user_book_no"])
	assert.NotContains(t, m, "description")
	assert.NotContains(t, m, "publisher")
}

func TestIndex_Count(t *testing.T) {
	index := setupTestIndex(t)

	count, err := index.Count()
	require.NoError(t, err)
	assert.Zero(t, count)

	indexLibrary(t, index)
	count, err = index.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)

	require.NoError(t, index.DeleteBook("b3"))
	count, err = index.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}

func TestIndex_Search(t *testing.T) {
	index := setupTestIndex(t)
	indexLibrary(t, index)
	ctx := context.Background()

	tests := []struct {
		name   string
		params Params
		want   []string
	}{
		{"title", Params{Query: "dune"}, []string{"b1", "b2"}},
		{"author", Params{Query: "Austen"}, []string{"b3"}},
		{"description", Params{Query: "manners"}, []string{"b3"}},
		{"title prefix", Params{Query: "mess"}, []string{"b2"}},
		{"isbn with dashes", Params{Query: "978-0441013593"}, []string{"b1"}},
		{"tag filter", Params{Tags: []string{"Classic"}}, []string{"b1", "b3"}},
		{"query and tag", Params{Query: "dune", Tags: []string{"classic"}}, []string{"b1"}},
		{"year range", Params{MinYear: 1900}, []string{"b1", "b2"}},
		{"no match", Params{Query: "zzzzqqq"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := index.Search(ctx, tt.params)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, hitIDs(result))
			assert.Equal(t, uint64(len(tt.want)), result.Total)
		})
	}
}

func TestIndex_Search_StoredFields(t *testing.T) {
	index := setupTestIndex(t)
	indexLibrary(t, index)

	result, err := index.Search(context.Background(), Params{Query: "emma", Highlight: true})
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)

	hit := result.Hits[0]
	assert.Equal(t, "Emma", hit.Title)
	assert.Equal(t, "Jane Austen", hit.Author)
	assert.Equal(t, int64(3), hit.UserBookNo)
	assert.ElementsMatch(t, []string{"classic", "romance"}, hit.Tags)
	assert.Contains(t, hit.Highlights, "title")
}

func TestIndex_Search_Sorting(t *testing.T) {
	index := setupTestIndex(t)
	indexLibrary(t, index)
	ctx := context.Background()

	byNumber, err := index.Search(ctx, Params{SortBy: "number"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b1", "b2", "b3"}, hitIDs(byNumber))

	recent, err := index.Search(ctx, Params{SortBy: "recent"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b3", "b2", "b1"}, hitIDs(recent))

	paged, err := index.Search(ctx, Params{SortBy: "number", Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"b2"}, hitIDs(paged))
	assert.Equal(t, uint64(3), paged.Total)
}

func TestIndex_Search_TagFacets(t *testing.T) {
	index := setupTestIndex(t)
	indexLibrary(t, index)

	result, err := index.Search(context.Background(), Params{Facets: true})
	require.NoError(t, err)

	counts := map[string]int{}
	for _, f := range result.Tags {
		counts[f.Value] = f.Count
	}
	assert.Equal(t, map[string]int{"science fiction": 2, "classic": 2, "romance": 1}, counts)
}

func pagesOf(pages ...[]domain.Book) PageFunc {
	return func(_ context.Context, page, size int) (*domain.Page[domain.Book], error) {
		if page >= len(pages) {
			return &domain.Page[domain.Book]{Number: page, Size: size, Last: true}, nil
		}
		return &domain.Page[domain.Book]{
			Content:    pages[page],
			Number:     page,
			Size:       size,
			TotalPages: len(pages),
			Last:       page == len(pages)-1,
		}, nil
	}
}

func TestIndex_Sync(t *testing.T) {
	index := setupTestIndex(t)
	require.NoError(t, index.IndexBook(NewDocument(domain.Book{ID: "gone", Title: "Deleted upstream"})))

	books := library()
	n, err := index.Sync(context.Background(), pagesOf(books[:2], books[2:]))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	count, err := index.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)

	result, err := index.Search(context.Background(), Params{Query: "deleted"})
	require.NoError(t, err)
	assert.Empty(t, result.Hits)
}

func TestIndex_Sync_FailureKeepsIndex(t *testing.T) {
	index := setupTestIndex(t)
	indexLibrary(t, index)

	boom := errors.New("backend down")
	first := pagesOf(library()[:1])
	_, err := index.Sync(context.Background(), func(ctx context.Context, page, size int) (*domain.Page[domain.Book], error) {
		if page == 0 {
			p, _ := first(ctx, page, size)
			p.Last = false
			p.TotalPages = 2
			return p, nil
		}
		return nil, boom
	})
	require.ErrorIs(t, err, boom)

	count, err := index.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)
}

func TestOpen_Persists(t *testing.T) {
	dir := t.TempDir()

	index, err := Open(Options{DataPath: dir})
	require.NoError(t, err)
	indexLibrary(t, index)
	require.NoError(t, index.Close())

	reopened, err := Open(Options{DataPath: dir})
	require.NoError(t, err)
	defer reopened.Close()

	count, err := reopened.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)
}

func TestOpen_MappingVersionChangeRebuilds(t *testing.T) {
	dir := t.TempDir()

	index, err := Open(Options{DataPath: dir})
	require.NoError(t, err)
	indexLibrary(t, index)
	require.NoError(t, index.Close())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "library.version"), []byte("0"), 0o644))

	rebuilt, err := Open(Options{DataPath: dir})
	require.NoError(t, err)
	defer rebuilt.Close()

	count, err := rebuilt.Count()
	require.NoError(t, err)
	assert.Zero(t, count)

	version, err := os.ReadFile(filepath.Join(dir, "library.version"))
	require.NoError(t, err)
	assert.Equal(t, mappingVersion, string(version))
}
