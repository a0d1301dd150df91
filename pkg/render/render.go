// Package render turns a report snapshot into output documents: the Markdown
// report, a JSON sidecar and a terminal summary.
package render

import (
	"slices"
	"strings"
	"time"

	"github.com/dkoosis/mdreport/pkg/report"
)

// Renderer converts a data bag into a text document.
type Renderer interface {
	Render(b *Bag) (string, error)
}

// Row is one test in the results table.
type Row struct {
	TestID       string         `json:"test_id"`
	Result       string         `json:"result"`
	Duration     time.Duration  `json:"-"`
	Seconds      float64        `json:"duration"`
	DurationText string         `json:"duration_text"`
	Logs         []string       `json:"logs"`
	Extras       []report.Extra `json:"extras"`
	Collapsed    bool           `json:"collapsed"`
}

// EnvEntry is one environment key/value pair.
type EnvEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Bag is the data handed to templates.
type Bag struct {
	RunID             string                   `json:"run_id,omitempty"`
	Title             string                   `json:"title"`
	Date              string                   `json:"date"`
	Time              string                   `json:"time"`
	RunCount          string                   `json:"run_count"`
	RunningState      string                   `json:"running_state"`
	Outcomes          []report.Counter         `json:"outcomes"`
	Tests             []Row                    `json:"tests"`
	AdditionalSummary report.AdditionalSummary `json:"additional_summary"`
	TotalDuration     float64                  `json:"total_duration"`
	TotalDurationText string                   `json:"total_duration_text"`
	RenderCollapsed   []string                 `json:"render_collapsed"`
	InitialSort       string                   `json:"initial_sort"`
	Environment       []EnvEntry               `json:"environment"`
}

// NewBag builds the template data from a snapshot taken at now.
func NewBag(d *report.Data, now time.Time) *Bag {
	b := &Bag{
		Title:             d.Title,
		Date:              now.Format("02-Jan-2006"),
		Time:              now.Format("15:04:05"),
		RunCount:          report.RunCount(d),
		RunningState:      string(d.State),
		Outcomes:          d.Counters(),
		AdditionalSummary: d.AdditionalSummary,
		TotalDuration:     d.TotalDuration.Seconds(),
		TotalDurationText: report.FormatDuration(d.TotalDuration),
		RenderCollapsed:   slices.Clone(d.RenderCollapsed),
		InitialSort:       d.InitialSort,
	}

	for _, rec := range d.Tests() {
		b.Tests = append(b.Tests, Row{
			TestID:       rec.TestID,
			Result:       string(rec.Result),
			Duration:     rec.Duration,
			Seconds:      rec.Duration.Seconds(),
			DurationText: report.FormatDuration(rec.Duration),
			Logs:         rec.Logs,
			Extras:       rec.Extras,
			Collapsed:    isCollapsed(rec.Result, d.RenderCollapsed),
		})
	}
	SortRows(b.Tests, d.InitialSort)

	keys := make([]string, 0, len(d.Environment))
	for k := range d.Environment {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		b.Environment = append(b.Environment, EnvEntry{Key: k, Value: d.Environment[k]})
	}
	return b
}

// isCollapsed reports whether a row with label starts folded.
func isCollapsed(label report.Label, collapsed []string) bool {
	for _, c := range collapsed {
		switch c {
		case "none":
			return false
		case "all":
			return true
		}
		if strings.EqualFold(c, string(label)) {
			return true
		}
	}
	return false
}
