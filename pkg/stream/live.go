package stream

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/mattn/go-runewidth"

	"github.com/dkoosis/mdreport/pkg/render"
	"github.com/dkoosis/mdreport/pkg/report"
)

// maxLogLines caps the diagnostic lines echoed under a failing test.
const maxLogLines = 12

// Live decorates a listener with a terminal view: one line per finished test
// and a footer with the run-count sentence that is redrawn in place. It keeps
// its own collector so the view never blocks on the decorated listener.
type Live struct {
	mu    sync.Mutex
	next  report.Listener
	tw    *termWriter
	theme render.Theme
	c     *report.Collector
}

var (
	_ report.Listener       = (*Live)(nil)
	_ report.CollectedAdder = (*Live)(nil)
)

// NewLive wraps next. A nil next only shows the view.
func NewLive(next report.Listener, out io.Writer, width, height int, theme render.Theme) *Live {
	l := &Live{
		next:  next,
		tw:    newTermWriter(out, width, height),
		theme: theme,
	}
	l.c = report.NewCollector(nil, report.WithCommitHook(l.printRecord))
	return l
}

// SessionStart implements report.Listener.
func (l *Live) SessionStart(collected int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.c.SessionStart(collected)
	if l.next != nil {
		l.next.SessionStart(collected)
	}
	l.redraw()
}

// AddCollected implements report.CollectedAdder.
func (l *Live) AddCollected(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.c.AddCollected(n)
	if a, ok := l.next.(report.CollectedAdder); ok {
		a.AddCollected(n)
	}
	l.redraw()
}

// LogReport implements report.Listener.
func (l *Live) LogReport(r report.PhaseResult) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.c.Record(r)
	var err error
	if l.next != nil {
		err = l.next.LogReport(r)
	}
	l.redraw()
	return err
}

// SessionFinish implements report.Listener. The footer is replaced by the
// final run-count sentence.
func (l *Live) SessionFinish() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.c.SessionFinish()

	l.tw.EraseFooter()
	l.tw.PrintLine(l.theme.Muted.Render("  " + strings.Repeat("─", 44)))
	l.tw.PrintLine("  " + l.theme.Bold.Render(l.runCount()))

	if l.next != nil {
		return l.next.SessionFinish()
	}
	return nil
}

// printRecord runs as the collector's commit hook, with l.mu held by the
// caller of Record.
func (l *Live) printRecord(rec report.TestRecord) {
	icon, style := l.theme.Outcome(rec.Result.Key())
	dur := report.FormatDuration(rec.Duration)
	idWidth := max(10, l.tw.width-runewidth.StringWidth(dur)-8)
	id := runewidth.FillRight(runewidth.Truncate(rec.TestID, idWidth, "..."), idWidth)

	l.tw.EraseFooter()
	l.tw.PrintLine(fmt.Sprintf("  %s %s  %s", style.Render(icon), id, l.theme.Muted.Render(dur)))

	switch rec.Result {
	case report.LabelFailed, report.LabelError:
		l.printLogs(rec.Logs)
	}
}

func (l *Live) printLogs(logs []string) {
	var lines []string
	for _, entry := range logs {
		if entry == report.NoLogOutput {
			continue
		}
		for _, line := range strings.Split(strings.TrimRight(entry, "\n"), "\n") {
			if strings.TrimSpace(line) != "" {
				lines = append(lines, line)
			}
		}
	}
	for i, line := range lines {
		if i == maxLogLines {
			l.tw.PrintLine(l.theme.Muted.Render(fmt.Sprintf("      ... %d more lines in the report", len(lines)-maxLogLines)))
			return
		}
		l.tw.PrintLine(l.theme.Muted.Render("      " + truncateToWidth(line, l.tw.width-6)))
	}
}

func (l *Live) runCount() string {
	var s string
	l.c.Update(func(d *report.Data) { s = report.RunCount(d) })
	return s
}

func (l *Live) redraw() {
	lines := []string{"  " + l.runCount()}
	if n := l.c.Pending(); n > 0 {
		lines = append(lines, fmt.Sprintf("  %d running", n))
	}
	l.tw.EraseFooter()
	l.tw.DrawFooter(lines)
}
