// Package buildinfo carries release metadata stamped in by the linker, e.g.
// -ldflags "-X github.com/cleared-dev/proforma/internal/buildinfo.Version=v0.3.0".
package buildinfo

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)
