package fileutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestReplace_Existing swaps contents and keeps permissions.
func TestReplace_Existing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "AndroidManifest.xml")
	require.NoError(t, os.WriteFile(path, []byte("before"), 0o640))

	require.NoError(t, Replace(path, []byte("after")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "after", string(data))

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		require.Equal(t, os.FileMode(0o640), info.Mode().Perm())
	}

	// No temporary or backup files are left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

// TestReplace_Missing creates the file.
func TestReplace_Missing(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "libsmashhit.so")

	require.NoError(t, Replace(path, []byte{0x7f, 'E', 'L', 'F'}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, []byte{0x7f, 'E', 'L', 'F'}, data)
}

// TestReplace_MissingDirectory fails when the parent does not exist.
func TestReplace_MissingDirectory(t *testing.T) {
	t.Parallel()

	require.Error(t, Replace(filepath.Join(t.TempDir(), "missing", "file"), []byte("x")))
}
