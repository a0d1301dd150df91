package report

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// NoLogOutput is the single log line used when a result captured nothing.
const NoLogOutput = "No log output captured."

const bannerWidth = 80

// ProcessLogs assembles the log lines shown for one result: the long failure
// text, then each captured section under a banner. Sections are omitted for
// reruns.
func ProcessLogs(r PhaseResult) []string {
	var log []string
	if r.LongRepr != "" {
		log = append(log, r.LongRepr+"\n")
	}
	if r.Outcome != OutcomeRerun {
		for _, s := range r.Sections {
			log = append(log, banner(" "+s.Header+" ", bannerWidth, '-')+"\n"+s.Content)
			// Log sections get one trailing blank line, call-phase log
			// sections two.
			if strings.Contains(s.Header, "log") {
				log = append(log, "")
				if strings.Contains(s.Header, "call") {
					log = append(log, "")
				}
			}
		}
	}
	if len(log) == 0 {
		log = append(log, NoLogOutput)
	}
	return log
}

// banner centers text in width columns padded with fill. Odd padding puts
// the extra column on the right.
func banner(text string, width int, fill rune) string {
	pad := width - runewidth.StringWidth(text)
	if pad <= 0 {
		return text
	}
	left := pad / 2
	return strings.Repeat(string(fill), left) + text + strings.Repeat(string(fill), pad-left)
}
