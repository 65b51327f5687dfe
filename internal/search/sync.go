package search

import (
	"context"
	"fmt"

	"github.com/recoread/recoread-client/internal/domain"
)

// syncPageSize is the page size requested from the backend during Sync.
const syncPageSize = 100

// PageFunc fetches one zero-based page of the library.
type PageFunc func(ctx context.Context, page, size int) (*domain.Page[domain.Book], error)

// Sync pages through the whole library and replaces the index contents with
// it. Nothing is replaced if any page fails. It returns the number of books
// indexed.
func (s *Index) Sync(ctx context.Context, fetch PageFunc) (int, error) {
	var docs []*Document
	for page := 0; ; page++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		p, err := fetch(ctx, page, syncPageSize)
		if err != nil {
			return 0, fmt.Errorf("fetch library page %d: %w", page, err)
		}
		for _, b := range p.Content {
			if b.ID == "" {
				continue
			}
			docs = append(docs, NewDocument(b))
		}

		if p.Last || len(p.Content) == 0 || (p.TotalPages > 0 && page+1 >= p.TotalPages) {
			break
		}
	}

	if err := s.Replace(docs); err != nil {
		return 0, err
	}
	s.logger.Info("library index synced", "books", len(docs))
	return len(docs), nil
}
