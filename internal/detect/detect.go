// Package detect sniffs input to determine the event stream format.
package detect

import (
	"bytes"
	"encoding/json"

	"github.com/dkoosis/mdreport/pkg/testjson"
)

// Format represents a recognized input format.
type Format int

const (
	Unknown    Format = iota
	ReportLog         // pytest-reportlog JSON lines
	GoTestJSON        // go test -json NDJSON stream
)

// String returns the name used on the command line.
func (f Format) String() string {
	switch f {
	case ReportLog:
		return "reportlog"
	case GoTestJSON:
		return "gotest"
	default:
		return "unknown"
	}
}

// Parse maps a command-line format name to a Format. "auto" and unknown
// names return Unknown.
func Parse(name string) Format {
	switch name {
	case "reportlog":
		return ReportLog
	case "gotest", "gotestjson":
		return GoTestJSON
	default:
		return Unknown
	}
}

// Sniff examines the first bytes of input to determine format.
// Returns the detected format. Input must contain at least the first line.
func Sniff(data []byte) Format {
	data = bytes.TrimLeft(data, " \t\r\n")
	if len(data) == 0 || data[0] != '{' {
		return Unknown
	}

	// Both formats are one JSON object per line; only the first is probed.
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		data = data[:i]
	}

	var probe struct {
		ReportType *string `json:"$report_type"`
		Action     string  `json:"Action"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return Unknown
	}
	if probe.ReportType != nil {
		return ReportLog
	}
	if testjson.IsAction(probe.Action) {
		return GoTestJSON
	}
	return Unknown
}
