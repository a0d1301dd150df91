package render

import (
	"cmp"
	"slices"
	"strings"
)

// Sort columns accepted as the initial sort.
const (
	SortResult   = "result"
	SortTestID   = "testId"
	SortDuration = "duration"
	SortOriginal = "original"
)

// resultRank orders results worst first.
var resultRank = map[string]int{
	"error":   0,
	"failed":  1,
	"rerun":   2,
	"xfailed": 3,
	"xpassed": 4,
	"skipped": 5,
	"passed":  6,
}

// SortRows orders rows by column in place. A leading "-" reverses the
// order; unknown columns sort by result. Ties keep their original order.
func SortRows(rows []Row, column string) {
	desc := strings.HasPrefix(column, "-")
	column = strings.TrimPrefix(column, "-")

	var less func(a, b Row) int
	switch column {
	case SortOriginal:
		if desc {
			slices.Reverse(rows)
		}
		return
	case SortTestID:
		less = func(a, b Row) int { return cmp.Compare(a.TestID, b.TestID) }
	case SortDuration:
		// Longest first.
		less = func(a, b Row) int { return cmp.Compare(b.Duration, a.Duration) }
	default:
		less = func(a, b Row) int { return cmp.Compare(rank(a.Result), rank(b.Result)) }
	}
	if desc {
		asc := less
		less = func(a, b Row) int { return asc(b, a) }
	}
	slices.SortStableFunc(rows, less)
}

func rank(result string) int {
	if r, ok := resultRank[strings.ToLower(result)]; ok {
		return r
	}
	return len(resultRank)
}
