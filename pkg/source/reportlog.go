// Package source replays recorded test sessions into a report.Listener.
// Two recordings are understood: pytest-reportlog JSON lines and
// go test -json.
package source

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dkoosis/mdreport/pkg/report"
)

// Report types written by pytest-reportlog.
const (
	TypeSessionStart  = "SessionStart"
	TypeSessionFinish = "SessionFinish"
	TypeCollectReport = "CollectReport"
	TypeTestReport    = "TestReport"
	TypeWarning       = "WarningMessage"
)

// collectorTypes are collection nodes that contain tests rather than being one.
var collectorTypes = map[string]bool{
	"Session":         true,
	"Dir":             true,
	"Directory":       true,
	"Package":         true,
	"Module":          true,
	"Class":           true,
	"Instance":        true,
	"DoctestModule":   true,
	"DoctestTextfile": true,
}

// Entry is one decoded reportlog line. Fields not needed for the report are
// not decoded.
type Entry struct {
	Type     string          `json:"$report_type"`
	NodeID   string          `json:"nodeid"`
	When     string          `json:"when"`
	Outcome  string          `json:"outcome"`
	Duration float64         `json:"duration"`
	LongRepr json.RawMessage `json:"longrepr"`
	Sections [][2]string     `json:"sections"`
	WasXFail *string         `json:"wasxfail"`
	Rerun    int             `json:"rerun"`
	Extras   []report.Extra  `json:"extras"`
	Result   []struct {
		NodeID string `json:"nodeid"`
		Type   string `json:"type"`
	} `json:"result"`
	ExitStatus int `json:"exitstatus"`
}

// DecodeEntry parses one reportlog line.
func DecodeEntry(line []byte) (Entry, error) {
	var e Entry
	if err := json.Unmarshal(line, &e); err != nil {
		return Entry{}, fmt.Errorf("decode reportlog line: %w", err)
	}
	if e.Type == "" {
		return Entry{}, fmt.Errorf("decode reportlog line: missing $report_type")
	}
	return e, nil
}

// Leaves counts the test items among a CollectReport's results.
func (e Entry) Leaves() int {
	n := 0
	for _, r := range e.Result {
		if !collectorTypes[r.Type] {
			n++
		}
	}
	return n
}

// PhaseResult converts a TestReport entry.
func (e Entry) PhaseResult() report.PhaseResult {
	r := report.PhaseResult{
		TestID:   e.NodeID,
		Phase:    report.Phase(e.When),
		Outcome:  report.Outcome(e.Outcome),
		Duration: seconds(e.Duration),
		LongRepr: LongReprText(e.LongRepr),
		Rerun:    e.Rerun,
		Extras:   e.Extras,
	}
	for _, s := range e.Sections {
		r.Sections = append(r.Sections, report.Section{Header: s[0], Content: s[1]})
	}
	if e.WasXFail != nil {
		r.XFail = true
		r.XFailReason = *e.WasXFail
	}
	return r
}

// CollectError converts a failed CollectReport into the results of a test
// whose setup failed, so the broken module shows up as an error.
func (e Entry) CollectError() []report.PhaseResult {
	id := e.NodeID
	if id == "" {
		id = "<collection>"
	}
	text := LongReprText(e.LongRepr)
	if text == "" {
		text = "collection failed"
	}
	return []report.PhaseResult{
		{TestID: id, Phase: report.PhaseSetup, Outcome: report.OutcomeFailed, Duration: seconds(e.Duration), LongRepr: text},
		{TestID: id, Phase: report.PhaseTeardown, Outcome: report.OutcomePassed},
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

type fileLoc struct {
	Path    string `json:"path"`
	Lineno  int    `json:"lineno"`
	Message string `json:"message"`
}

func (l *fileLoc) String() string {
	if l == nil || l.Path == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d: %s", l.Path, l.Lineno, l.Message)
}

type reprTraceback struct {
	Entries []struct {
		Data struct {
			Lines   []string `json:"lines"`
			FileLoc *fileLoc `json:"reprfileloc"`
		} `json:"data"`
	} `json:"reprentries"`
}

func (tb *reprTraceback) text() string {
	if tb == nil {
		return ""
	}
	var blocks []string
	for _, entry := range tb.Entries {
		lines := append([]string(nil), entry.Data.Lines...)
		if loc := entry.Data.FileLoc.String(); loc != "" {
			lines = append(lines, "", loc)
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	return strings.Join(blocks, "\n\n")
}

// LongReprText renders a serialized longrepr as text. pytest writes it as
// null, a plain string, a [path, lineno, reason] triple for skips, or an
// exception object with a traceback.
func LongReprText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}

	var triple []any
	if json.Unmarshal(raw, &triple) == nil {
		if len(triple) == 3 {
			return fmt.Sprintf("%v:%v: %v", triple[0], triple[1], triple[2])
		}
		return fmt.Sprint(triple...)
	}

	var exc struct {
		Crash     *fileLoc          `json:"reprcrash"`
		Traceback *reprTraceback    `json:"reprtraceback"`
		Chain     []json.RawMessage `json:"chain"`
	}
	if json.Unmarshal(raw, &exc) != nil {
		return string(raw)
	}

	if len(exc.Chain) > 0 {
		var parts []string
		for _, link := range exc.Chain {
			var elem []json.RawMessage
			if json.Unmarshal(link, &elem) != nil || len(elem) == 0 {
				continue
			}
			var tb reprTraceback
			if json.Unmarshal(elem[0], &tb) == nil {
				if t := tb.text(); t != "" {
					parts = append(parts, t)
				}
			}
			if len(elem) > 2 {
				var descr string
				if json.Unmarshal(elem[2], &descr) == nil && descr != "" {
					parts = append(parts, descr)
				}
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "\n\n")
		}
	}
	if t := exc.Traceback.text(); t != "" {
		return t
	}
	return exc.Crash.String()
}
