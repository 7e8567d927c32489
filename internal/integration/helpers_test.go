package integration

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/shim-installer/internal/manifest"
	"github.com/oshokin/shim-installer/internal/service/patchd"
)

// fakePatcherScript records the request next to the binary and appends a marker,
// failing for binaries whose content mentions BROKEN.
const fakePatcherScript = `#!/bin/sh
cat > "$2.request"
if grep -q BROKEN "$2"; then
  echo "checksum table not found" >&2
  exit 3
fi
printf '+patched' >> "$2"
echo '{"status":"patched","message":"2 checks removed"}'
`

const sampleManifest = `<?xml version="1.0" encoding="utf-8"?>
<manifest xmlns:android="http://schemas.android.com/apk/res/android" package="com.mediocre.smashhit">
  <application android:label="Smash Hit">
    <activity android:name="android.app.NativeActivity">
      <meta-data ` + manifest.LibNameDeclaration + `/>
    </activity>
  </application>
</manifest>
`

var architectures = []string{"armeabi-v7a", "arm64-v8a"}

// skipWithoutShell skips tests relying on the POSIX fake patcher.
func skipWithoutShell(t *testing.T) {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("the fake patcher is a POSIX shell script")
	}
}

// writeFile creates parent directories and writes contents to path.
func writeFile(t *testing.T, path, contents string, mode os.FileMode) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), mode))
}

// readFile returns the contents of path.
func readFile(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	return string(data)
}

// newPackage extracts a fake application package with both original binaries.
func newPackage(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, manifest.Filename), sampleManifest, 0o644)
	writeFile(t, filepath.Join(dir, "classes.dex"), "dex", 0o644)

	for _, arch := range architectures {
		writeFile(t, filepath.Join(dir, "lib", arch, "libsmashhit.so"), "ELF-"+arch, 0o755)
		writeFile(t, filepath.Join(dir, "lib", arch, "libfmod.so"), "fmod-"+arch, 0o755)
	}

	return dir
}

// newLibraryTree builds the bundled shim libraries.
func newLibraryTree(t *testing.T) string {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "libs")

	for _, arch := range architectures {
		writeFile(t, filepath.Join(dir, arch, "libshim.so"), "shim-"+arch, 0o755)
		writeFile(t, filepath.Join(dir, arch, "libfmod.so"), "fmod-shim-"+arch, 0o755)
	}

	return dir
}

// newPatcher writes the fake patcher executable.
func newPatcher(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "patcher")
	writeFile(t, path, fakePatcherScript, 0o755)

	return path
}

// startPatchd runs shim-patchd on an ephemeral port and returns its address.
func startPatchd(t *testing.T, patcherPath string) string {
	t.Helper()

	// Create cancellable context for server lifecycle.
	ctx, cancel := context.WithCancel(context.Background())

	ready := make(chan string, 1)
	done := make(chan error, 1)

	go func() {
		options := &patchd.Options{
			ListenAddress: "127.0.0.1:0",
			PatcherPath:   patcherPath,
			Ready: func(address string) {
				ready <- address
			},
		}

		done <- patchd.Run(ctx, options)
	}()

	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	select {
	case address := <-ready:
		return address
	case err := <-done:
		require.FailNow(t, "shim-patchd exited early", "error: %v", err)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "shim-patchd did not start")
	}

	return ""
}
