// Package buildinfo carries build metadata injected via -ldflags:
//
//	-X 'github.com/filegate/filegate/core/buildinfo.Version=v0.3.1'
//	-X 'github.com/filegate/filegate/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/filegate/filegate/core/buildinfo.Date=2026-08-01T12:00:00Z'
//
// The defaults identify local dev builds.
package buildinfo

var (
	// Version is the release tag of the build.
	Version = "dev"
	// Commit is the VCS revision the binary was built from.
	Commit = "local"
	// Date is the build timestamp in RFC3339.
	Date = ""
)
