// Package version reports build metadata stamped in by the linker.
package version

import "fmt"

// These variables are populated by the Go linker (LDFLAGS) at build time.
var (
	Version    = "dev"     // Default value if not built with LDFLAGS
	CommitHash = "unknown" // Default value
	BuildDate  = "unknown" // Default value
)

// String returns the one-line version banner.
func String() string {
	return fmt.Sprintf("mdreport %s (commit %s, built %s)", Version, CommitHash, BuildDate)
}
