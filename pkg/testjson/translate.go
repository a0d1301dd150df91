package testjson

import (
	"context"
	"io"
	"strings"

	"github.com/dkoosis/mdreport/pkg/report"
)

// framing lines are printed by the test runner itself, not by the test.
var framing = []string{
	"=== RUN", "=== PAUSE", "=== CONT", "=== NAME",
	"--- PASS:", "--- FAIL:", "--- SKIP:",
}

// Translator turns go test -json events into per-test setup, call and
// teardown results and forwards them to a listener. Go tests have no
// separate fixture phases, so setup and teardown always pass in zero time.
type Translator struct {
	listener report.Listener
	output   map[string][]string
	builds   map[string][]string
	ran      map[string]bool
	finished int
	err      error
}

// NewTranslator returns a translator feeding l.
func NewTranslator(l report.Listener) *Translator {
	return &Translator{
		listener: l,
		output:   make(map[string][]string),
		builds:   make(map[string][]string),
		ran:      make(map[string]bool),
	}
}

// TestID is the report id of a test: "package::Test".
func TestID(pkg, test string) string {
	if test == "" {
		return pkg
	}
	return pkg + "::" + test
}

// Handle processes one event. Listener errors do not stop translation; the
// first one is kept for Err.
func (t *Translator) Handle(e TestEvent) {
	switch e.Action {
	case ActionRun:
		if e.Test == "" {
			return
		}
		t.ran[e.Package] = true
		if a, ok := t.listener.(report.CollectedAdder); ok {
			a.AddCollected(1)
		}
	case ActionOutput:
		if isFraming(e.Output) {
			return
		}
		key := TestID(e.Package, e.Test)
		t.output[key] = append(t.output[key], e.Output)
	case ActionBuildOutput:
		t.builds[e.ImportPath] = append(t.builds[e.ImportPath], e.Output)
	case ActionPass, ActionFail, ActionSkip:
		if e.Test != "" {
			t.finish(e)
			return
		}
		if e.Action == ActionFail && (e.FailedBuild != "" || !t.ran[e.Package]) {
			t.buildFailure(e)
		}
		delete(t.output, e.Package)
	}
}

// Err returns the first listener error seen.
func (t *Translator) Err() error { return t.err }

// Finished returns the number of tests translated so far.
func (t *Translator) Finished() int { return t.finished }

func (t *Translator) finish(e TestEvent) {
	id := TestID(e.Package, e.Test)
	out := strings.Join(t.output[id], "")
	delete(t.output, id)

	call := report.PhaseResult{
		TestID:   id,
		Phase:    report.PhaseCall,
		Outcome:  outcomeOf(e.Action),
		Duration: elapsed(e),
	}
	if out != "" {
		call.Sections = []report.Section{{Header: "Captured stdout call", Content: out}}
		if e.Action != ActionPass {
			call.LongRepr = strings.TrimRight(out, "\n")
		}
	}

	t.finished++
	t.emit(
		report.PhaseResult{TestID: id, Phase: report.PhaseSetup, Outcome: report.OutcomePassed},
		call,
		report.PhaseResult{TestID: id, Phase: report.PhaseTeardown, Outcome: report.OutcomePassed},
	)
}

// buildFailure reports a package that failed before any test ran as a setup
// error, the way a broken fixture is reported.
func (t *Translator) buildFailure(e TestEvent) {
	lines := t.builds[e.FailedBuild]
	lines = append(lines, t.output[e.Package]...)
	text := strings.TrimRight(strings.Join(lines, ""), "\n")
	if text == "" {
		text = "package " + e.Package + " failed"
	}

	t.emit(
		report.PhaseResult{TestID: e.Package, Phase: report.PhaseSetup, Outcome: report.OutcomeFailed, Duration: elapsed(e), LongRepr: text},
		report.PhaseResult{TestID: e.Package, Phase: report.PhaseTeardown, Outcome: report.OutcomePassed},
	)
}

func (t *Translator) emit(results ...report.PhaseResult) {
	for _, r := range results {
		if err := t.listener.LogReport(r); err != nil && t.err == nil {
			t.err = err
		}
	}
}

func outcomeOf(action string) report.Outcome {
	switch action {
	case ActionPass:
		return report.OutcomePassed
	case ActionSkip:
		return report.OutcomeSkipped
	default:
		return report.OutcomeFailed
	}
}

func isFraming(line string) bool {
	trimmed := strings.TrimLeft(line, " \t")
	for _, p := range framing {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	return false
}

// Translate streams go test -json from r into l. It returns the number of
// malformed lines skipped and the first read or listener error.
func Translate(ctx context.Context, r io.Reader, l report.Listener) (int, error) {
	tr := NewTranslator(l)
	malformed, err := Stream(ctx, r, tr.Handle)
	if err != nil {
		return malformed, err
	}
	return malformed, tr.Err()
}
