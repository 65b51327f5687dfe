package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/do/v2"

	"github.com/recoread/recoread-client/internal/catalog"
	"github.com/recoread/recoread-client/internal/client"
	"github.com/recoread/recoread-client/internal/di/providers"
	"github.com/recoread/recoread-client/internal/domain"
	domainerrors "github.com/recoread/recoread-client/internal/errors"
	"github.com/recoread/recoread-client/internal/reconcile"
)

func runBooks(ctx context.Context, e *env, args []string) error {
	fs := newFlags("books")
	search := fs.String("search", "", "title or author filter")
	tag := fs.String("tag", "", "tag filter")
	page := fs.Int("page", 0, "page number, from 0")
	size := fs.Int("size", 12, "page size")
	sortBy := fs.String("sort", "", "sort field and direction, e.g. title,asc")
	if err := parse(fs, args); err != nil {
		return err
	}

	result, err := e.client.ListBooks(ctx, client.ListBooksParams{
		Search: *search,
		Tag:    *tag,
		Page:   *page,
		Size:   *size,
		Sort:   *sortBy,
	})
	if err != nil {
		return err
	}

	if len(result.Content) == 0 {
		fmt.Fprintln(e.out, "No books")
		return nil
	}

	tw := newTable(e.out)
	for _, b := range result.Content {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", bookNo(b), bookLine(b), strings.Join(b.Tags, ", "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "page %d of %d, %d books\n", result.Number+1, max(result.TotalPages, 1), result.TotalElements)
	return nil
}

func runCount(ctx context.Context, e *env, args []string) error {
	if err := parse(newFlags("count"), args); err != nil {
		return err
	}
	n, err := e.client.LibraryCount(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, n)
	return nil
}

func runTags(ctx context.Context, e *env, args []string) error {
	if err := parse(newFlags("tags"), args); err != nil {
		return err
	}
	tags, err := e.client.Tags(ctx)
	if err != nil {
		return err
	}
	for _, t := range tags {
		fmt.Fprintln(e.out, t)
	}
	return nil
}

// runShow paints the cached reading state first, then the backend's answer.
func runShow(ctx context.Context, e *env, args []string) error {
	ref, err := oneArg(newFlags("show"), args)
	if err != nil {
		return err
	}
	book, err := e.resolve(ctx, ref)
	if err != nil {
		return err
	}

	fmt.Fprintf(e.out, "%s  %s\n", bookNo(*book), bookLine(*book))
	if book.Publisher != "" || book.PublishedDate != "" {
		fmt.Fprintf(e.out, "  %s\n", strings.TrimSpace(book.Publisher+" "+book.PublishedDate))
	}
	if book.PageCount > 0 {
		fmt.Fprintf(e.out, "  %d pages\n", book.PageCount)
	}
	if len(book.Tags) > 0 {
		fmt.Fprintf(e.out, "  tags: %s\n", strings.Join(book.Tags, ", "))
	}
	if desc := catalog.PlainText(book.Description); desc != "" {
		fmt.Fprintf(e.out, "  %s\n", desc)
	}

	cache := do.MustInvoke[*providers.ReadingCacheHandle](e.injector)
	viewer := reconcile.NewViewer(e.client, cache, reconcile.Options{Logger: e.log.Logger})
	defer viewer.Unmount()
	defer func() { _ = viewer.Settle(ctx) }()

	painted := viewer.Mount(ctx, book.ID.String())
	if painted.Provisional {
		fmt.Fprintf(e.out, "progress (cached): %s\n", describeState(painted.State))
	}

	snap, err := viewer.Wait(ctx)
	if err != nil {
		return err
	}
	if snap.Err != nil {
		if !painted.Provisional || domainerrors.CodeOf(snap.Err) == domainerrors.CodeUnauthorized {
			return snap.Err
		}
		fmt.Fprintf(e.out, "backend unreachable (%s), showing cached progress\n", domainerrors.Message(snap.Err))
		return nil
	}
	fmt.Fprintf(e.out, "progress: %s\n", describeState(snap.State))
	return nil
}

func runAdd(ctx context.Context, e *env, args []string) error {
	fs := newFlags("add")
	title := fs.String("title", "", "title (required)")
	author := fs.String("author", "", "author")
	publisher := fs.String("publisher", "", "publisher")
	published := fs.String("published", "", "publication date (YYYY, YYYY-MM or YYYY-MM-DD)")
	isbn := fs.String("isbn", "", "ISBN-10 or ISBN-13")
	pages := fs.Int("pages", 0, "page count")
	tags := fs.String("tags", "", "comma-separated tags (at most 3)")
	description := fs.String("description", "", "description")
	if err := parse(fs, args); err != nil {
		return err
	}

	nb := domain.NewBook{
		Title:         *title,
		Author:        strings.TrimSpace(*author),
		Publisher:     strings.TrimSpace(*publisher),
		PublishedDate: catalog.NormalizePublishedDate(*published),
		Description:   strings.TrimSpace(*description),
		PageCount:     *pages,
		Tags:          strings.Split(*tags, ","),
	}
	if *published != "" && nb.PublishedDate == "" {
		return domainerrors.Validation(fmt.Sprintf("unrecognized publication date %q", *published))
	}
	switch digits := strings.ReplaceAll(strings.TrimSpace(*isbn), "-", ""); len(digits) {
	case 0:
	case 10:
		nb.ISBN10 = digits
	case 13:
		nb.ISBN13 = digits
	default:
		return domainerrors.Validation("ISBN must have 10 or 13 digits")
	}

	book, err := e.client.CreateBook(ctx, nb)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Added %s  %s\n", bookNo(*book), bookLine(*book))
	return nil
}

// runImport searches the catalog and adds the chosen volume.
func runImport(ctx context.Context, e *env, args []string) error {
	fs := newFlags("import")
	pick := fs.Int("pick", 1, "which result to import, from 1")
	query, err := restAsText(fs, args)
	if err != nil {
		return err
	}
	if query == "" || *pick < 1 {
		return errUsage
	}

	items, err := e.catalogController().Search(ctx, query)
	if err != nil {
		return err
	}
	if len(items) < *pick {
		return domainerrors.NotFound(fmt.Sprintf("the catalog returned %d results for %q", len(items), query))
	}

	book, err := e.client.CreateBook(ctx, catalog.ToNewBook(items[*pick-1].Raw))
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Imported %s  %s\n", bookNo(*book), bookLine(*book))
	return nil
}

func runDelete(ctx context.Context, e *env, args []string) error {
	fs := newFlags("delete")
	yes := fs.Bool("yes", false, "confirm the deletion")
	ref, err := oneArg(fs, args)
	if err != nil {
		return err
	}

	book, err := e.resolve(ctx, ref)
	if err != nil {
		return err
	}
	if !*yes {
		fmt.Fprintf(e.out, "Would delete %s  %s; rerun with --yes to confirm\n", bookNo(*book), bookLine(*book))
		return nil
	}

	err = e.client.DeleteBook(ctx, book.ID.String())
	if errors.Is(err, domainerrors.ErrBlockingDependency) {
		fmt.Fprintf(e.out, "Kept %s: %s\n", bookNo(*book), domainerrors.Message(err))
		return err
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(e.out, "Deleted %s  %s\n", bookNo(*book), bookLine(*book))
	return nil
}

func (e *env) resolve(ctx context.Context, ref string) (*domain.Book, error) {
	parsed, err := domain.ParseBookRef(ref)
	if err != nil {
		return nil, domainerrors.Validation(err.Error())
	}
	return e.client.ResolveBook(ctx, parsed)
}

func (e *env) catalogController() *catalog.Controller {
	opts := providers.CatalogOptions(e.cfg, e.log)
	// A single command line is one keystroke; there is nothing to coalesce.
	opts.Debounce = -1
	return catalog.NewController(e.client, opts)
}
