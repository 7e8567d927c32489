package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/oshokin/shim-installer/internal/logger"
)

// DefaultExecutable is the patcher executable looked up on PATH.
const DefaultExecutable = "patcher"

// errNotExecutable is returned when the configured patcher is not a runnable file.
var errNotExecutable = errors.New("not an executable file")

// ProbeOptions tells Probe where to look for an engine.
type ProbeOptions struct {
	// Address of a shim-patchd daemon; takes precedence over the executable.
	Address string
	// PatcherPath is an explicit patcher executable. Empty means DefaultExecutable on PATH.
	PatcherPath string
	// Timeout bounds each engine call.
	Timeout time.Duration
}

// Probe locates a patch engine once. It never fails: a missing engine is an
// Unavailable result carrying the reason.
func Probe(ctx context.Context, opts *ProbeOptions) *Availability {
	if opts == nil {
		opts = new(ProbeOptions)
	}

	if opts.Address != "" {
		return probeRemote(ctx, opts)
	}

	return probeExec(ctx, opts)
}

// probeRemote connects to the daemon and checks its health.
func probeRemote(ctx context.Context, opts *ProbeOptions) *Availability {
	remote, err := Dial(opts.Address, WithCallTimeout(opts.Timeout))
	if err != nil {
		return NewUnavailable(opts.Address, err.Error())
	}

	if err = remote.Ping(ctx); err != nil {
		_ = remote.Close()

		return NewUnavailable(opts.Address, err.Error())
	}

	logger.DebugKV(ctx, "Remote patch engine is serving", "address", opts.Address)

	availability := NewAvailable(remote, opts.Address)
	availability.closer = remote.Close

	return availability
}

// probeExec resolves the patcher executable.
func probeExec(ctx context.Context, opts *ProbeOptions) *Availability {
	location := opts.PatcherPath
	if location == "" {
		location = DefaultExecutable
	}

	path, err := lookPatcher(opts.PatcherPath)
	if err != nil {
		return NewUnavailable(location, err.Error())
	}

	logger.DebugKV(ctx, "Found patcher executable", "path", path)

	return NewAvailable(NewExec(path, opts.Timeout), path)
}

// lookPatcher returns the absolute path of the patcher executable.
func lookPatcher(explicit string) (string, error) {
	if explicit == "" {
		return exec.LookPath(DefaultExecutable)
	}

	path, err := filepath.Abs(explicit)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}

	if info.IsDir() {
		return "", fmt.Errorf("%s: %w", path, errNotExecutable)
	}

	// An absolute path is checked directly: the executable bit on Unix, PATHEXT on Windows.
	return exec.LookPath(path)
}
