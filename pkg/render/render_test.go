package render

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoosis/mdreport/pkg/report"
)

var fixedNow = time.Date(2024, time.March, 5, 14, 7, 9, 0, time.UTC)

func sampleData() *report.Data {
	d := report.NewData()
	d.Title = "Nightly"
	d.State = report.StateFinished
	d.TotalDuration = 3 * time.Second
	d.Environment = map[string]string{"Python": "3.12", "Platform": "linux"}
	d.AdditionalSummary.Prefix = []string{"Built from main."}
	for _, l := range []report.Label{report.LabelPassed, report.LabelFailed} {
		d.Increment(l)
	}
	d.AddTest(report.TestRecord{TestID: "t::pass", Result: report.LabelPassed, Duration: time.Second, Logs: []string{report.NoLogOutput}})
	d.AddTest(report.TestRecord{
		TestID:   "t::fail|pipe",
		Result:   report.LabelFailed,
		Duration: 2 * time.Second,
		Logs:     []string{"assert 1 == 2\n"},
		Extras:   []report.Extra{report.URL("https://example.com", "site")},
	})
	return d
}

func TestNewBag(t *testing.T) {
	t.Parallel()

	b := NewBag(sampleData(), fixedNow)

	assert.Equal(t, "05-Mar-2024", b.Date)
	assert.Equal(t, "14:07:09", b.Time)
	assert.Equal(t, "2 tests took 00:00:03.", b.RunCount)
	assert.Equal(t, "finished", b.RunningState)
	assert.InDelta(t, 3.0, b.TotalDuration, 1e-9)
	require.Len(t, b.Tests, 2)
	assert.Equal(t, "t::fail|pipe", b.Tests[0].TestID, "failures sort first")
	assert.Equal(t, []EnvEntry{{"Platform", "linux"}, {"Python", "3.12"}}, b.Environment)
}

func TestIsCollapsed(t *testing.T) {
	t.Parallel()

	assert.False(t, isCollapsed(report.LabelPassed, nil))
	assert.True(t, isCollapsed(report.LabelPassed, []string{"passed"}))
	assert.False(t, isCollapsed(report.LabelFailed, []string{"passed"}))
	assert.True(t, isCollapsed(report.LabelFailed, []string{"all"}))
	assert.False(t, isCollapsed(report.LabelFailed, []string{"none", "all"}))
}

func TestSortRows(t *testing.T) {
	t.Parallel()

	rows := func() []Row {
		return []Row{
			{TestID: "b", Result: "Passed", Duration: 3 * time.Second},
			{TestID: "c", Result: "Error", Duration: time.Second},
			{TestID: "a", Result: "Skipped", Duration: 2 * time.Second},
		}
	}
	ids := func(rs []Row) []string {
		out := make([]string, len(rs))
		for i, r := range rs {
			out[i] = r.TestID
		}
		return out
	}

	tests := []struct {
		column string
		want   []string
	}{
		{SortResult, []string{"c", "a", "b"}},
		{"-" + SortResult, []string{"b", "a", "c"}},
		{SortTestID, []string{"a", "b", "c"}},
		{SortDuration, []string{"b", "a", "c"}},
		{"-" + SortDuration, []string{"c", "a", "b"}},
		{SortOriginal, []string{"b", "c", "a"}},
		{"-" + SortOriginal, []string{"a", "c", "b"}},
		{"bogus", []string{"c", "a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			t.Parallel()
			rs := rows()
			SortRows(rs, tt.column)
			if diff := cmp.Diff(tt.want, ids(rs)); diff != "" {
				t.Errorf("SortRows(%q) mismatch (-want +got):\n%s", tt.column, diff)
			}
		})
	}
}

func TestMarkdown_Builtin(t *testing.T) {
	t.Parallel()

	md, err := LoadTemplate(nil, "")
	require.NoError(t, err)
	assert.Equal(t, "builtin:"+DefaultTemplate, md.Source())

	out, err := md.Render(NewBag(sampleData(), fixedNow))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "# Nightly\n"))
	assert.Contains(t, out, "Report generated on 05-Mar-2024 at 14:07:09.")
	assert.Contains(t, out, "Built from main.")
	assert.Contains(t, out, "2 tests took 00:00:03.")
	assert.Contains(t, out, "| Failed | 1 |")
	assert.Contains(t, out, `| Failed | t::fail\|pipe | 00:00:02 |`)
	assert.Contains(t, out, "| Platform | linux |")
	assert.Contains(t, out, "- [site](https://example.com)")
	assert.Contains(t, out, "```text\nassert 1 == 2\n```")
	assert.Contains(t, out, "<details open>")
}

func TestMarkdown_Idempotent(t *testing.T) {
	t.Parallel()

	md, err := LoadTemplate(nil, DefaultTemplate)
	require.NoError(t, err)
	d := sampleData()

	first, err := md.Render(NewBag(d, fixedNow))
	require.NoError(t, err)
	second, err := md.Render(NewBag(d, fixedNow))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestMarkdown_NoTests(t *testing.T) {
	t.Parallel()

	md, err := LoadTemplate(nil, "")
	require.NoError(t, err)
	out, err := md.Render(NewBag(report.NewData(), fixedNow))
	require.NoError(t, err)
	assert.Contains(t, out, "No tests ran.")
	assert.Contains(t, out, "0 test collected.")
}

func TestLoadTemplate_SearchDirsFirst(t *testing.T) {
	t.Parallel()

	empty := t.TempDir()
	custom := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(custom, DefaultTemplate), []byte("{{ .Title }}: {{ .RunCount }}"), 0o644))

	md, err := LoadTemplate([]string{empty, custom}, DefaultTemplate)
	require.NoError(t, err)
	out, err := md.Render(NewBag(sampleData(), fixedNow))
	require.NoError(t, err)
	assert.Equal(t, "Nightly: 2 tests took 00:00:03.", out)
}

func TestLoadTemplate_Errors(t *testing.T) {
	t.Parallel()

	_, err := LoadTemplate([]string{t.TempDir()}, "missing.tmpl")
	assert.True(t, errors.Is(err, ErrTemplateNotFound))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.tmpl"), []byte("{{ .Title "), 0o644))
	_, err = LoadTemplate([]string{dir}, "bad.tmpl")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrTemplateNotFound))
}

func TestCell(t *testing.T) {
	t.Parallel()
	assert.Equal(t, `a\|b<br>c`, cell("a|b\nc"))
}

func TestCodeBlock(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "```go\nx\n```", codeBlock("go", "x\n"))
	assert.Equal(t, "````\nuse ``` here\n````", codeBlock("", "use ``` here"))
}

func TestExtra(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   report.Extra
		want string
	}{
		{report.URL("https://x.test", "x"), "- [x](https://x.test)"},
		{report.Image("aGk=", "shot", "image/png", "png"), "![shot](data:image/png;base64,aGk=)"},
		{report.Image("https://x.test/a.png", "", "image/png", "png"), "![image](https://x.test/a.png)"},
		{report.JSON(`{"a":1}`, "payload"), "**payload**\n\n```json\n{\"a\":1}\n```"},
		{report.Text("hello", "note"), "**note**\n\n```\nhello\n```"},
		{report.HTML("<b>x</b>"), "<b>x</b>"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, extra(tt.in))
	}
}

func TestJSON_Render(t *testing.T) {
	t.Parallel()

	b := NewBag(sampleData(), fixedNow)
	b.RunID = "run-1"
	out, err := NewJSON().Render(b)
	require.NoError(t, err)

	var decoded struct {
		Version string `json:"version"`
		RunID   string `json:"run_id"`
		Tests   []Row  `json:"tests"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "1.0", decoded.Version)
	assert.Equal(t, "run-1", decoded.RunID)
	require.Len(t, decoded.Tests, 2)
	assert.InDelta(t, 2.0, decoded.Tests[0].Seconds, 1e-9)
}

func TestTerminal_Render(t *testing.T) {
	t.Parallel()

	out, err := NewTerminal(MonoTheme(), 40).Render(NewBag(sampleData(), fixedNow))
	require.NoError(t, err)

	assert.Contains(t, out, "Nightly")
	assert.Contains(t, out, "x Failed: 1")
	assert.Contains(t, out, "+ Passed: 1")
	assert.NotContains(t, out, "Skipped")
	assert.Contains(t, out, "Failures")
	assert.Contains(t, out, "x t::fail|pipe  00:00:02")
}

func TestThemeByName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "orca", ThemeByName("orca").Name)
	assert.Equal(t, "mono", ThemeByName("mono").Name)
	assert.Equal(t, "default", ThemeByName("nope").Name)
}
