package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/do/v2"

	"github.com/recoread/recoread-client/internal/api"
	"github.com/recoread/recoread-client/internal/catalog"
	"github.com/recoread/recoread-client/internal/di/providers"
	"github.com/recoread/recoread-client/internal/search"
)

// snippetLength bounds the description shown under each catalog hit.
const snippetLength = 120

func runSearch(ctx context.Context, e *env, args []string) error {
	query, err := restAsText(newFlags("search"), args)
	if err != nil {
		return err
	}
	if query == "" {
		return errUsage
	}

	controller := catalog.NewController(e.client, providers.CatalogOptions(e.cfg, e.log))
	items, err := controller.Search(ctx, query)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		if len([]rune(query)) < catalog.MinQueryLength {
			fmt.Fprintf(e.out, "Type at least %d characters\n", catalog.MinQueryLength)
		} else {
			fmt.Fprintln(e.out, "No results")
		}
		return nil
	}

	for i, item := range items {
		line := fmt.Sprintf("%2d. %s", i+1, item.Title)
		if item.Authors != "" {
			line += " by " + item.Authors
		}
		fmt.Fprintln(e.out, line)
		if snippet := item.Snippet(snippetLength); snippet != "" {
			fmt.Fprintf(e.out, "    %s\n", snippet)
		}
	}
	fmt.Fprintln(e.out, "import one with: recoread import -pick N", query)
	return nil
}

func runFind(ctx context.Context, e *env, args []string) error {
	fs := newFlags("find")
	tag := fs.String("tag", "", "only books with this tag")
	limit := fs.Int("limit", search.DefaultLimit, "maximum results")
	sortBy := fs.String("sort", "relevance", "relevance, title, author, recent or number")
	query, err := restAsText(fs, args)
	if err != nil {
		return err
	}

	index := do.MustInvoke[*providers.SearchIndexHandle](e.injector)
	if n, err := index.Count(); err == nil && n == 0 {
		fmt.Fprintln(e.out, "The local index is empty; run: recoread sync")
		return nil
	}

	params := search.Params{Query: query, Limit: *limit, SortBy: *sortBy, Facets: true}
	if t := strings.TrimSpace(*tag); t != "" {
		params.Tags = []string{t}
	}

	result, err := index.Search(ctx, params)
	if err != nil {
		return err
	}
	if len(result.Hits) == 0 {
		fmt.Fprintln(e.out, "No matches")
		return nil
	}

	tw := newTable(e.out)
	for _, hit := range result.Hits {
		line := hit.Title
		if hit.Author != "" {
			line += " by " + hit.Author
		}
		fmt.Fprintf(tw, "#%d\t%s\t%s\n", hit.UserBookNo, line, strings.Join(hit.Tags, ", "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(e.out, "%d of %d matches\n", len(result.Hits), result.Total)
	if len(result.Tags) > 0 {
		facets := make([]string, 0, len(result.Tags))
		for _, f := range result.Tags {
			facets = append(facets, fmt.Sprintf("%s (%d)", f.Value, f.Count))
		}
		fmt.Fprintf(e.out, "tags: %s\n", strings.Join(facets, ", "))
	}
	return nil
}

func runSync(ctx context.Context, e *env, args []string) error {
	if err := parse(newFlags("sync"), args); err != nil {
		return err
	}

	index := do.MustInvoke[*providers.SearchIndexHandle](e.injector)
	n, err := index.Sync(ctx, api.LibraryPages(e.client))
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Indexed %d books\n", n)
	return nil
}
