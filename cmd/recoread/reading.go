package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/samber/do/v2"

	"github.com/recoread/recoread-client/internal/catalog"
	"github.com/recoread/recoread-client/internal/di/providers"
	"github.com/recoread/recoread-client/internal/domain"
	domainerrors "github.com/recoread/recoread-client/internal/errors"
	"github.com/recoread/recoread-client/internal/recommend"
	"github.com/recoread/recoread-client/internal/reconcile"
)

func runLog(ctx context.Context, e *env, args []string) error {
	fs := newFlags("log")
	page := fs.Int("page", -1, "current page")
	percent := fs.Int("percent", -1, "progress percent")
	finished := fs.Bool("finished", false, "mark the book finished")
	note := fs.String("note", "", "note")
	minutes := fs.Int("minutes", 0, "time spent reading, in minutes")
	ref, err := oneArg(fs, args)
	if err != nil {
		return err
	}

	event := domain.NewReadingEvent{EventType: domain.ReadingProgress, Note: *note}
	switch {
	case *finished:
		event.EventType = domain.ReadingFinished
	case *page < 0 && *percent < 0:
		return domainerrors.Validation("give -page, -percent or -finished")
	}
	if *page >= 0 {
		event.Page = domain.Int(*page)
	}
	if *percent >= 0 {
		event.ProgressPercent = domain.Int(*percent)
	}
	if *minutes > 0 {
		event.DurationSeconds = domain.Int(*minutes * 60)
	}

	book, err := e.resolve(ctx, ref)
	if err != nil {
		return err
	}

	cache := do.MustInvoke[*providers.ReadingCacheHandle](e.injector)
	viewer := reconcile.NewViewer(e.client, cache, reconcile.Options{Logger: e.log.Logger, SkipOpened: true})
	defer viewer.Unmount()

	viewer.Mount(ctx, book.ID.String())
	if _, err := viewer.Wait(ctx); err != nil {
		return err
	}
	viewer.SetPageCount(book.PageCount)

	if _, err := viewer.Record(ctx, event); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "%s  %s: %s\n", bookNo(*book), book.Title, describeState(viewer.Snapshot().State))
	return nil
}

func runEvents(ctx context.Context, e *env, args []string) error {
	ref, err := oneArg(newFlags("events"), args)
	if err != nil {
		return err
	}
	book, err := e.resolve(ctx, ref)
	if err != nil {
		return err
	}

	events, err := e.client.ListReadingEvents(ctx, book.ID.String())
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Fprintln(e.out, "No reading events")
		return nil
	}
	for _, ev := range events {
		ev.BookTitle = ""
		fmt.Fprintln(e.out, describeEvent(ev))
	}
	return nil
}

func runHistory(ctx context.Context, e *env, args []string) error {
	fs := newFlags("history")
	limit := fs.Int("limit", 20, "number of events")
	if err := parse(fs, args); err != nil {
		return err
	}

	events, err := e.client.ReadingHistory(ctx, *limit)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Fprintln(e.out, "No reading activity")
		return nil
	}
	for _, ev := range events {
		fmt.Fprintln(e.out, describeEvent(ev))
	}
	return nil
}

func runSummarize(ctx context.Context, e *env, args []string) error {
	fs := newFlags("summarize")
	text := fs.String("text", "", "text to summarize (read from stdin when empty)")
	ref, err := oneArg(fs, args)
	if err != nil {
		return err
	}

	input := *text
	if input == "" {
		raw, err := io.ReadAll(io.LimitReader(e.in, domain.MaxSummaryInput*4+1))
		if err != nil {
			return err
		}
		input = string(raw)
	}

	book, err := e.resolve(ctx, ref)
	if err != nil {
		return err
	}

	summary, err := e.client.GenerateSummary(ctx, book.ID.String(), input)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, summary.SummaryText)
	return nil
}

func runSummaries(ctx context.Context, e *env, args []string) error {
	ref, err := oneArg(newFlags("summaries"), args)
	if err != nil {
		return err
	}
	book, err := e.resolve(ctx, ref)
	if err != nil {
		return err
	}

	summaries, err := e.client.ListSummaries(ctx, book.ID.String())
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Fprintln(e.out, "No summaries")
		return nil
	}
	for i, s := range summaries {
		if i > 0 {
			fmt.Fprintln(e.out)
		}
		if !s.CreatedAt.IsZero() {
			fmt.Fprintln(e.out, s.CreatedAt.Local().Format("2006-01-02 15:04"))
		}
		fmt.Fprintln(e.out, s.SummaryText)
	}
	return nil
}

func runRecommend(ctx context.Context, e *env, args []string) error {
	fs := newFlags("recommend")
	limit := fs.Int("limit", 0, "number of recommendations")
	ref, err := oneArg(fs, args)
	if err != nil {
		return err
	}
	book, err := e.resolve(ctx, ref)
	if err != nil {
		return err
	}

	set, err := e.client.Recommendations(ctx, book.ID.String(), *limit)
	if err != nil {
		return err
	}
	ranking := recommend.Rank(set)
	if len(ranking.Items) == 0 {
		fmt.Fprintln(e.out, "No recommendations")
		return nil
	}

	tw := newTable(e.out)
	for _, item := range ranking.Items {
		score := "-"
		if item.HasScore {
			score = fmt.Sprintf("%d%%", item.Score)
		}
		why := item.Reason
		if len(item.SharedTags) > 0 {
			why = strings.TrimSpace(why + " [" + strings.Join(item.SharedTags, ", ") + "]")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", score, bookLine(item.Book), catalog.PlainText(why))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if ranking.ScoredCount > 0 {
		fmt.Fprintf(e.out, "average match %d%% over %d scored\n", ranking.Average, ranking.ScoredCount)
	}
	return nil
}
