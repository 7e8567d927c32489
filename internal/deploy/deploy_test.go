package deploy

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeFile creates parent directories and writes contents to path.
func writeFile(t *testing.T, path, contents string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

// readFile returns the contents of path.
func readFile(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	return string(data)
}

// newTrees prepares a library tree and a package lib directory with one shared and one unrelated file.
func newTrees(t *testing.T) (source, target string) {
	t.Helper()

	source = filepath.Join(t.TempDir(), "libs")
	writeFile(t, filepath.Join(source, "armeabi-v7a", "libshim.so"), "shim-v7a")
	writeFile(t, filepath.Join(source, "arm64-v8a", "libshim.so"), "shim-v8a")

	pkg := t.TempDir()
	target = filepath.Join(pkg, "lib")
	writeFile(t, filepath.Join(target, "arm64-v8a", "libshim.so"), "stale")
	writeFile(t, filepath.Join(target, "arm64-v8a", "libsmashhit.so"), "original")

	return source, target
}

// TestRun_MergeOverwrite checks merge non-destructiveness and overwrite correctness.
func TestRun_MergeOverwrite(t *testing.T) {
	t.Parallel()

	source, target := newTrees(t)

	report, err := Run(context.Background(), source, target, nil)
	require.NoError(t, err)
	require.Equal(t, 2, report.Files)
	require.Zero(t, report.Skipped)
	require.EqualValues(t, len("shim-v7a")+len("shim-v8a"), report.Bytes)

	require.Equal(t, "shim-v7a", readFile(t, filepath.Join(target, "armeabi-v7a", "libshim.so")))
	require.Equal(t, "shim-v8a", readFile(t, filepath.Join(target, "arm64-v8a", "libshim.so")))
	require.Equal(t, "original", readFile(t, filepath.Join(target, "arm64-v8a", "libsmashhit.so")))

	// Source tree is not modified.
	require.Equal(t, "shim-v8a", readFile(t, filepath.Join(source, "arm64-v8a", "libshim.so")))
}

// TestRun_Rerun ensures merging twice gives the same tree.
func TestRun_Rerun(t *testing.T) {
	t.Parallel()

	source, target := newTrees(t)

	_, err := Run(context.Background(), source, target, nil)
	require.NoError(t, err)

	_, err = Run(context.Background(), source, target, nil)
	require.NoError(t, err)

	require.Equal(t, "shim-v8a", readFile(t, filepath.Join(target, "arm64-v8a", "libshim.so")))
	require.Equal(t, "original", readFile(t, filepath.Join(target, "arm64-v8a", "libsmashhit.so")))
}

// TestRun_CreatesTargetDirectory creates lib/ when the package has none yet.
func TestRun_CreatesTargetDirectory(t *testing.T) {
	t.Parallel()

	source, _ := newTrees(t)
	target := filepath.Join(t.TempDir(), "lib")

	report, err := Run(context.Background(), source, target, nil)
	require.NoError(t, err)
	require.Equal(t, 2, report.Files)
	require.Equal(t, "shim-v7a", readFile(t, filepath.Join(target, "armeabi-v7a", "libshim.so")))
}

// TestRun_SkipPolicy keeps existing files.
func TestRun_SkipPolicy(t *testing.T) {
	t.Parallel()

	source, target := newTrees(t)

	report, err := Run(context.Background(), source, target, &Options{Policy: Skip})
	require.NoError(t, err)
	require.Equal(t, 1, report.Files)
	require.Equal(t, 1, report.Skipped)

	require.Equal(t, "stale", readFile(t, filepath.Join(target, "arm64-v8a", "libshim.so")))
	require.Equal(t, "shim-v7a", readFile(t, filepath.Join(target, "armeabi-v7a", "libshim.so")))
}

// TestRun_FailPolicy aborts on the first conflict.
func TestRun_FailPolicy(t *testing.T) {
	t.Parallel()

	source, target := newTrees(t)

	_, err := Run(context.Background(), source, target, &Options{Policy: Fail})
	require.ErrorIs(t, err, ErrConflict)
	require.Equal(t, "stale", readFile(t, filepath.Join(target, "arm64-v8a", "libshim.so")))
}

// TestRun_MissingSource fails with ErrSourceMissing.
func TestRun_MissingSource(t *testing.T) {
	t.Parallel()

	_, target := newTrees(t)

	_, err := Run(context.Background(), filepath.Join(t.TempDir(), "missing"), target, nil)
	require.ErrorIs(t, err, ErrSourceMissing)
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestRun_MissingTarget fails when the package directory does not exist.
func TestRun_MissingTarget(t *testing.T) {
	t.Parallel()

	source, _ := newTrees(t)

	_, err := Run(context.Background(), source, filepath.Join(t.TempDir(), "missing", "lib"), nil)
	require.ErrorIs(t, err, ErrTargetMissing)
}

// TestRun_Progress renders a bar to the provided writer.
func TestRun_Progress(t *testing.T) {
	t.Parallel()

	source, target := newTrees(t)

	var buf bytes.Buffer

	_, err := Run(context.Background(), source, target, &Options{Progress: &buf})
	require.NoError(t, err)
	require.NotZero(t, buf.Len())
}

// TestRun_Canceled stops before copying when the context is done.
func TestRun_Canceled(t *testing.T) {
	t.Parallel()

	source, target := newTrees(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, source, target, nil)
	require.ErrorIs(t, err, context.Canceled)
}

// TestPolicy_String names every policy.
func TestPolicy_String(t *testing.T) {
	t.Parallel()

	require.Equal(t, "overwrite", Overwrite.String())
	require.Equal(t, "skip", Skip.String())
	require.Equal(t, "fail", Fail.String())
	require.Equal(t, "policy(7)", Policy(7).String())
}
