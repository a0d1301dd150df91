package report

import (
	"maps"
	"slices"
	"strings"
	"time"
)

// RunState is the session progress shown in the run-count sentence.
type RunState string

const (
	StateNotStarted RunState = "not_started"
	StateStarted    RunState = "started"
	StateFinished   RunState = "finished"
)

// Defaults for optional report settings.
const (
	DefaultTitle       = "Test Report"
	DefaultInitialSort = "result"
)

// Counter is the running count for one outcome kind.
type Counter struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value int    `json:"value"`
}

// defaultCounters lists the known outcome kinds in display order.
var defaultCounters = []Counter{
	{Key: "failed", Label: "Failed"},
	{Key: "passed", Label: "Passed"},
	{Key: "skipped", Label: "Skipped"},
	{Key: "xfailed", Label: "Expected failures"},
	{Key: "xpassed", Label: "Unexpected passes"},
	{Key: "error", Label: "Errors"},
	{Key: "rerun", Label: "Reruns"},
}

// TestRecord is the finalized entry for one test.
type TestRecord struct {
	TestID   string        `json:"test_id"`
	Result   Label         `json:"result"`
	Duration time.Duration `json:"duration"`
	Extras   []Extra       `json:"extras"`
	Logs     []string      `json:"logs"`
}

// AdditionalSummary holds free-form text blocks shown around the summary.
type AdditionalSummary struct {
	Prefix  []string `json:"prefix"`
	Summary []string `json:"summary"`
	Postfix []string `json:"postfix"`
}

// Data is the aggregate store: outcome counters, durations, session state and
// the finalized record of every test. It does no locking; the Collector
// serializes access.
type Data struct {
	Title             string
	Environment       map[string]string
	AdditionalSummary AdditionalSummary
	Collected         int
	TotalDuration     time.Duration
	State             RunState
	RenderCollapsed   []string
	InitialSort       string

	counters []Counter
	index    map[string]int
	tests    map[string]TestRecord
	order    []string
}

// NewData returns an empty store with the default counters.
func NewData() *Data {
	d := &Data{
		Title:       DefaultTitle,
		Environment: make(map[string]string),
		State:       StateNotStarted,
		InitialSort: DefaultInitialSort,
		counters:    slices.Clone(defaultCounters),
		index:       make(map[string]int, len(defaultCounters)),
		tests:       make(map[string]TestRecord),
	}
	for i, c := range d.counters {
		d.index[c.Key] = i
	}
	return d
}

// Increment bumps the counter for label, creating it for unknown labels.
func (d *Data) Increment(label Label) {
	key := label.Key()
	i, ok := d.index[key]
	if !ok {
		d.counters = append(d.counters, Counter{Key: key, Label: capitalize(key)})
		i = len(d.counters) - 1
		d.index[key] = i
	}
	d.counters[i].Value++
}

// Count returns the value of the counter for key ("passed", "xfailed", ...).
func (d *Data) Count(key string) int {
	if i, ok := d.index[strings.ToLower(key)]; ok {
		return d.counters[i].Value
	}
	return 0
}

// Counters returns a copy of the counters in display order.
func (d *Data) Counters() []Counter {
	return slices.Clone(d.counters)
}

// AddTest stores rec under its test id, replacing any earlier record.
// A replaced record keeps its original position.
func (d *Data) AddTest(rec TestRecord) {
	if _, ok := d.tests[rec.TestID]; !ok {
		d.order = append(d.order, rec.TestID)
	}
	d.tests[rec.TestID] = rec
}

// Test returns the record for id.
func (d *Data) Test(id string) (TestRecord, bool) {
	rec, ok := d.tests[id]
	return rec, ok
}

// Tests returns the records in first-commit order.
func (d *Data) Tests() []TestRecord {
	out := make([]TestRecord, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.tests[id])
	}
	return out
}

// Len returns the number of finalized tests.
func (d *Data) Len() int {
	return len(d.tests)
}

// Clone returns a deep copy suitable for rendering outside the lock.
func (d *Data) Clone() *Data {
	c := *d
	c.Environment = maps.Clone(d.Environment)
	c.AdditionalSummary = AdditionalSummary{
		Prefix:  slices.Clone(d.AdditionalSummary.Prefix),
		Summary: slices.Clone(d.AdditionalSummary.Summary),
		Postfix: slices.Clone(d.AdditionalSummary.Postfix),
	}
	c.RenderCollapsed = slices.Clone(d.RenderCollapsed)
	c.counters = slices.Clone(d.counters)
	c.index = maps.Clone(d.index)
	c.order = slices.Clone(d.order)
	c.tests = make(map[string]TestRecord, len(d.tests))
	for id, rec := range d.tests {
		rec.Extras = slices.Clone(rec.Extras)
		rec.Logs = slices.Clone(rec.Logs)
		c.tests[id] = rec
	}
	return &c
}
