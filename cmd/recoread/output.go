package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/recoread/recoread-client/internal/domain"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func bookNo(b domain.Book) string {
	if b.UserBookNo > 0 {
		return "#" + strconv.FormatInt(b.UserBookNo, 10)
	}
	return b.ID.String()
}

func bookLine(b domain.Book) string {
	line := b.Title
	if b.Author != "" {
		line += " by " + b.Author
	}
	return line
}

// describeState renders a reading state on one line.
func describeState(st *domain.ReadingState) string {
	if st.IsEmpty() {
		return "not started"
	}

	var parts []string
	if st.ProgressPercent != nil {
		parts = append(parts, strconv.Itoa(*st.ProgressPercent)+"%")
	}
	if st.Page != nil {
		parts = append(parts, "page "+strconv.Itoa(*st.Page))
	}
	if st.Note != "" {
		parts = append(parts, strconv.Quote(st.Note))
	}
	if !st.UpdatedAt.IsZero() {
		parts = append(parts, "updated "+st.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	return strings.Join(parts, ", ")
}

func describeEvent(ev domain.ReadingEvent) string {
	var b strings.Builder
	if !ev.CreatedAt.IsZero() {
		b.WriteString(ev.CreatedAt.Local().Format("2006-01-02 15:04") + "  ")
	}
	b.WriteString(string(ev.EventType))
	if ev.ProgressPercent != nil {
		fmt.Fprintf(&b, " %d%%", *ev.ProgressPercent)
	}
	if ev.Page != nil {
		fmt.Fprintf(&b, " p.%d", *ev.Page)
	}
	if ev.DurationSeconds != nil {
		fmt.Fprintf(&b, " (%d min)", *ev.DurationSeconds/60)
	}
	if ev.BookTitle != "" {
		b.WriteString("  " + ev.BookTitle)
	}
	if ev.Note != "" {
		b.WriteString("  " + strconv.Quote(ev.Note))
	}
	return b.String()
}
