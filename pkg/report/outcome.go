package report

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Label is the human outcome shown in the report.
type Label string

const (
	LabelPassed  Label = "Passed"
	LabelFailed  Label = "Failed"
	LabelSkipped Label = "Skipped"
	LabelError   Label = "Error"
	LabelXPassed Label = "XPassed"
	LabelXFailed Label = "XFailed"
	LabelRerun   Label = "Rerun"
)

// Key returns the counter key for the label ("XPassed" -> "xpassed").
func (l Label) Key() string {
	return strings.ToLower(string(l))
}

// Classify maps a raw phase result to its report label. First match wins:
// a failed setup, teardown or collect phase is an Error even for xfail tests;
// then the xfail marker; then the title-cased raw outcome.
func Classify(r PhaseResult) Label {
	if isError(r) {
		return LabelError
	}
	if r.XFail {
		switch r.Outcome {
		case OutcomePassed, OutcomeFailed:
			return LabelXPassed
		case OutcomeSkipped:
			return LabelXFailed
		}
	}
	return Label(capitalize(string(r.Outcome)))
}

// capitalize upper-cases the first rune and lower-cases the rest, so
// "foo bar" becomes "Foo bar". Casers carry state, so they are built per call.
func capitalize(s string) string {
	s = cases.Lower(language.Und).String(s)
	_, n := utf8.DecodeRuneInString(s)
	return cases.Upper(language.Und).String(s[:n]) + s[n:]
}

func isError(r PhaseResult) bool {
	switch r.Phase {
	case PhaseSetup, PhaseTeardown, PhaseCollect:
		return r.Outcome == OutcomeFailed
	}
	return false
}
