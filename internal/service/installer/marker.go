package installer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/shim-installer/internal/logger"
)

const (
	// markerPrefix starts the name of every install marker in the temporary directory.
	markerPrefix = "shim-install-"

	// markerLifetime is the period after which a marker is considered stale
	// even if a process with the recorded PID exists.
	markerLifetime = 30 * time.Minute

	// markerFileMode is the permission of the marker file.
	markerFileMode = 0o600
)

// errInstallerRunning indicates that another installer is working on the same package.
var errInstallerRunning = errors.New("another installer is running on this package")

// markerPath returns the marker location for packageDir. Markers live in the
// temporary directory so a killed installer never leaves files in the package.
func markerPath(packageDir string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(packageDir)))

	return filepath.Join(os.TempDir(), markerPrefix+hex.EncodeToString(sum[:8])+".lock")
}

// acquireMarker creates the marker for packageDir and returns a function removing it.
// A marker left behind by a process that no longer exists is replaced.
func acquireMarker(ctx context.Context, packageDir string) (func(), error) {
	path := markerPath(packageDir)

	if isInstallerRunningNow(ctx, path) {
		return nil, fmt.Errorf("%s: %w", path, errInstallerRunning)
	}

	marker, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, markerFileMode)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%s: %w", path, errInstallerRunning)
		}

		return nil, fmt.Errorf("create install marker: %w", err)
	}

	_, err = marker.WriteString(strconv.Itoa(os.Getpid()))
	if closeErr := marker.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(path)

		return nil, fmt.Errorf("write install marker: %w", err)
	}

	release := func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.WarnKV(ctx, "Unable to remove install marker", "path", path, "error", err)
		}
	}

	return release, nil
}

// isInstallerRunningNow checks the marker at path and removes it when it looks stale.
func isInstallerRunningNow(ctx context.Context, path string) bool {
	contents, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false
	}

	if err != nil {
		logger.Infof(ctx, "Unable to read install marker: %v", err)
		return true
	}

	info, err := os.Stat(path)
	if err != nil {
		return true
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err == nil && time.Since(info.ModTime()) <= markerLifetime && isProcessAlive(pid) {
		return true
	}

	logger.InfoKV(ctx, "Removing stale install marker", "path", path)

	return os.Remove(path) != nil
}

// isProcessAlive reports whether a process with pid exists.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	process, err := ps.FindProcess(pid)
	if err != nil {
		// Unable to tell, so assume the owner is still there.
		return true
	}

	return process != nil
}
