package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dmitrijs2005/toastit/internal/models"
	"github.com/dmitrijs2005/toastit/internal/selector"
	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/muesli/reflow/truncate"
)

const listLayout = "Mon 02 Jan 15:04"

var (
	bold    = color.New(color.Bold)
	faint   = color.New(color.Faint)
	green   = color.New(color.FgGreen)
	yellow  = color.New(color.FgYellow)
	red     = color.New(color.FgRed)
	cyan    = color.New(color.FgCyan)
	magenta = color.New(color.FgMagenta, color.Bold)
)

// preview shortens s to at most n cells, ANSI-aware.
func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if n <= 0 {
		return s
	}
	return truncate.StringWithTail(s, uint(n), "…")
}

func formatWhen(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(listLayout)
}

type lifecycled interface {
	Lifecycle() models.Lifecycle
}

// stateText describes progress for tracked stubs and status for the rest.
func stateText(s models.Stub, now time.Time) string {
	if s.IsArchived() {
		return faint.Sprint("archived")
	}
	if t, ok := s.(lifecycled); ok {
		l := t.Lifecycle()
		switch {
		case l.Completed:
			return green.Sprint("done")
		case l.Started:
			pct := l.CompletionPercentage(now)
			if !l.DueBy.IsZero() && now.After(l.DueBy) {
				return red.Sprint("overdue " + pct)
			}
			return yellow.Sprint("started " + pct)
		}
		return "todo"
	}
	if s.EntryKind() == models.KindEvent {
		if s.Done() {
			return green.Sprint("done")
		}
		if !s.When().IsZero() && now.After(s.When()) {
			return faint.Sprint("past")
		}
		return cyan.Sprint("upcoming")
	}
	return ""
}

// renderStubs prints an indexed table of stubs.
func renderStubs[S models.Stub](w io.Writer, items []selector.Indexed[S], now time.Time, width int) {
	if len(items) == 0 {
		_, _ = fmt.Fprintln(w, faint.Sprint("(nothing here)"))
		return
	}

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold.Sprint("#"), bold.Sprint("Name"), bold.Sprint("When"), bold.Sprint("State"), bold.Sprint("Tags"))
	for _, it := range items {
		s := it.Item
		tbl.AddRow(
			it.Index,
			preview(s.Title(), width),
			formatWhen(s.When()),
			stateText(s, now),
			faint.Sprint(strings.Join(s.TagList(), ",")),
		)
	}
	tbl.RightAlign(0)

	_, _ = fmt.Fprintln(w, tbl)
}

// stubLine is the one-line form used for command results and the calendar.
func stubLine(s models.Stub) string {
	line := fmt.Sprintf("%s %s", magenta.Sprintf("[%s]", s.EntryKind()), s.Title())
	if w := s.When(); !w.IsZero() {
		line += " " + faint.Sprint(w.Local().Format("15:04"))
	}
	return line
}

// renderEntry prints the full record of an entry as its editable document.
func renderEntry(w io.Writer, e models.Entry) error {
	fm, body := documentFor(e)
	doc, err := encodeDocument(fm, body)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(w, bold.Sprint(e.Identity().ID))
	_, err = fmt.Fprintln(w, strings.TrimRight(string(doc), "\n"))
	return err
}
