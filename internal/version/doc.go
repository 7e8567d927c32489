// Package version holds the build metadata of shim-install and shim-patchd.
//
// Version, Commit and BuildTime are set with -ldflags "-X" at release time.
package version
