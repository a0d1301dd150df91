// Package report aggregates test lifecycle events into a report summary.
//
// A test runner reports one PhaseResult per (test, phase). The Collector
// buffers them until the teardown phase resolves, classifies the outcome and
// commits one TestRecord per test into Data, the aggregate store that
// renderers consume.
package report

import "time"

// Phase names the step of a test's lifecycle a result belongs to.
type Phase string

const (
	PhaseSetup    Phase = "setup"
	PhaseCall     Phase = "call"
	PhaseTeardown Phase = "teardown"
	PhaseCollect  Phase = "collect"
)

// Outcome is the raw result token reported by the runner.
type Outcome string

const (
	OutcomePassed  Outcome = "passed"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
	OutcomeRerun   Outcome = "rerun"
)

// Section is one captured diagnostic block, e.g. "Captured stdout call".
type Section struct {
	Header  string `json:"header"`
	Content string `json:"content"`
}

// PhaseResult is one observation for a (TestID, Phase) pair.
type PhaseResult struct {
	TestID   string
	Phase    Phase
	Outcome  Outcome
	Duration time.Duration

	// LongRepr is the long-form failure text; empty when the phase passed.
	LongRepr string
	Sections []Section

	// XFail marks a test declared as expected to fail.
	XFail       bool
	XFailReason string

	// Rerun is the attempt number for rerun outcomes, zero otherwise.
	Rerun int

	Extras []Extra
}

// Listener receives the lifecycle events of one test session.
// Events arrive sequentially from a single runner.
type Listener interface {
	SessionStart(collected int)
	LogReport(r PhaseResult) error
	SessionFinish() error
}

// CollectedAdder is implemented by listeners that accept items discovered
// after the session started, as streaming sources announce them.
type CollectedAdder interface {
	AddCollected(n int)
}
