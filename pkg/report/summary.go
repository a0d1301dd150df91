package report

import (
	"fmt"
	"math"
	"time"
)

// runCountKeys are the counters that count as a completed test.
var runCountKeys = []string{"passed", "failed", "xpassed", "xfailed"}

// RunCount returns the progress sentence for the report header.
func RunCount(d *Data) string {
	counts := 0
	for _, k := range runCountKeys {
		counts += d.Count(k)
	}

	switch d.State {
	case StateFinished:
		return fmt.Sprintf("%d %s took %s.", counts, plural(counts), FormatDuration(d.TotalDuration))
	case StateStarted:
		// Pluralized on the collected count, not the finished one.
		return fmt.Sprintf("%d/%d %s done.", counts, d.Collected, plural(d.Collected))
	default:
		return fmt.Sprintf("%d %s collected.", counts, plural(counts))
	}
}

func plural(n int) string {
	if n > 1 {
		return "tests"
	}
	return "test"
}

// FormatDuration renders d as whole milliseconds below one second and as
// HH:MM:SS otherwise. Rounding is half-to-even.
func FormatDuration(d time.Duration) string {
	secs := d.Seconds()
	if secs < 1 {
		return fmt.Sprintf("%d ms", int64(math.RoundToEven(secs*1000)))
	}
	hours := math.Floor(secs / 3600)
	rem := math.Mod(secs, 3600)
	minutes := math.Floor(rem / 60)
	seconds := math.RoundToEven(math.Mod(rem, 60))
	return fmt.Sprintf("%02d:%02d:%02d", int64(hours), int64(minutes), int64(seconds))
}
