package version

import (
	"fmt"
	"runtime"
)

var (
	// Version is the release of the installer and its bundled shim, overridden via ldflags.
	Version = "0.1.0"
	// Commit is the short git SHA embedded at build time (or "none").
	Commit = "none"
	// BuildTime is the UTC build timestamp embedded at build time.
	BuildTime = "unknown"
)

// Short returns only the semantic version string.
func Short() string {
	return Version
}

// Full returns the version line printed by program's version subcommand.
func Full(program string) string {
	return fmt.Sprintf("%s %s (commit: %s, built at: %s, %s/%s)",
		program, Version, Commit, BuildTime, runtime.GOOS, runtime.GOARCH)
}

// KV returns build metadata as logger key-value pairs.
func KV() []any {
	return []any{"version", Version, "commit", Commit}
}
