package render

import (
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
)

// maxFailures caps the failing tests listed in the terminal summary.
const maxFailures = 10

// Terminal renders the outcome summary as styled terminal output via lipgloss.
type Terminal struct {
	theme Theme
	width int
}

// NewTerminal creates a terminal renderer with the given theme.
func NewTerminal(theme Theme, width int) *Terminal {
	if width <= 0 {
		width = 80
	}
	return &Terminal{theme: theme, width: width}
}

// Render formats the title, run count, non-zero counters and the worst tests.
func (t *Terminal) Render(b *Bag) (string, error) {
	var sb strings.Builder
	sb.WriteString(t.theme.Bold.Render(b.Title))
	sb.WriteString("\n  ")
	sb.WriteString(t.theme.Muted.Render(b.RunCount))
	sb.WriteString("\n")

	for _, c := range b.Outcomes {
		if c.Value == 0 {
			continue
		}
		icon, style := t.theme.Outcome(c.Key)
		sb.WriteString("  ")
		sb.WriteString(style.Render(icon + " " + c.Label + ": " + strconv.Itoa(c.Value)))
		sb.WriteString("\n")
	}

	var failing []Row
	for _, r := range b.Tests {
		switch strings.ToLower(r.Result) {
		case "failed", "error":
			failing = append(failing, r)
		}
	}
	if len(failing) == 0 {
		return sb.String(), nil
	}

	sb.WriteString(t.theme.Bold.Render("Failures"))
	sb.WriteString("\n")
	for i, r := range failing {
		if i == maxFailures {
			sb.WriteString(t.theme.Muted.Render("  ... and " + strconv.Itoa(len(failing)-maxFailures) + " more"))
			sb.WriteString("\n")
			break
		}
		icon, style := t.theme.Outcome(strings.ToLower(r.Result))
		suffix := "  " + r.DurationText
		name := runewidth.Truncate(r.TestID, t.width-4-runewidth.StringWidth(suffix), "...")
		sb.WriteString("  ")
		sb.WriteString(style.Render(icon))
		sb.WriteString(" ")
		sb.WriteString(t.theme.Primary.Render(name))
		sb.WriteString(t.theme.Muted.Render(suffix))
		sb.WriteString("\n")
	}
	return sb.String(), nil
}
