// Package testjson reads go test -json NDJSON streams and translates them
// into test phase results.
package testjson

import "time"

// Actions emitted by go test -json.
const (
	ActionStart  = "start"
	ActionRun    = "run"
	ActionPause  = "pause"
	ActionCont   = "cont"
	ActionPass   = "pass"
	ActionFail   = "fail"
	ActionSkip   = "skip"
	ActionOutput = "output"
	ActionBench  = "bench"

	ActionBuildOutput = "build-output"
	ActionBuildFail   = "build-fail"
)

// TestEvent represents a single event from go test -json output.
type TestEvent struct {
	Time    time.Time `json:"Time"`
	Action  string    `json:"Action"`
	Package string    `json:"Package"`
	Test    string    `json:"Test"`
	Elapsed float64   `json:"Elapsed"`
	Output  string    `json:"Output"`

	// Build events (Go 1.24+) name the package being built in ImportPath;
	// a package fail event names its failed build in FailedBuild.
	ImportPath  string `json:"ImportPath,omitempty"`
	FailedBuild string `json:"FailedBuild,omitempty"`
}

// ProcessFunc handles one decoded event.
type ProcessFunc func(TestEvent)

// IsAction reports whether s is a go test -json action.
func IsAction(s string) bool {
	switch s {
	case ActionStart, ActionRun, ActionPause, ActionCont, ActionPass,
		ActionFail, ActionSkip, ActionOutput, ActionBench,
		ActionBuildOutput, ActionBuildFail:
		return true
	}
	return false
}

func elapsed(e TestEvent) time.Duration {
	return time.Duration(e.Elapsed * float64(time.Second))
}
