package manifest

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleManifest = `<?xml version="1.0" encoding="utf-8" standalone="no"?>
<manifest xmlns:android="http://schemas.android.com/apk/res/android" package="com.mediocre.smashhit">
    <application android:label="@string/app_name">
        <activity android:name="android.app.NativeActivity">
            <meta-data ` + LibNameDeclaration + `/>
        </activity>
    </application>
</manifest>
`

// writeManifest stores contents as AndroidManifest.xml in a fresh package directory.
func writeManifest(t *testing.T, contents string) (packageDir, path string) {
	t.Helper()

	packageDir = t.TempDir()
	path = filepath.Join(packageDir, Filename)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	return packageDir, path
}

// TestSubstitute_Exactness replaces the single occurrence and keeps all other bytes.
func TestSubstitute_Exactness(t *testing.T) {
	t.Parallel()

	content := []byte(sampleManifest)

	rewritten, result, err := Substitute(content, []byte(LibNameDeclaration), []byte(ShimDeclaration))
	require.NoError(t, err)
	require.Equal(t, 1, result.Replaced)
	require.False(t, result.AlreadyRewritten)

	require.Equal(t, 0, bytes.Count(rewritten, []byte(LibNameDeclaration)))
	require.Equal(t, 1, bytes.Count(rewritten, []byte(ShimDeclaration)))

	// Everything around the declaration is untouched.
	index := bytes.Index(content, []byte(LibNameDeclaration))
	require.Equal(t, content[:index], rewritten[:index])
	require.Equal(t,
		content[index+len(LibNameDeclaration):],
		rewritten[index+len(ShimDeclaration):],
	)
}

// TestSubstitute_Multiple replaces every occurrence.
func TestSubstitute_Multiple(t *testing.T) {
	t.Parallel()

	content := []byte("a=" + LibNameDeclaration + "\nb=" + LibNameDeclaration)

	rewritten, result, err := Substitute(content, []byte(LibNameDeclaration), []byte(ShimDeclaration))
	require.NoError(t, err)
	require.Equal(t, 2, result.Replaced)
	require.Equal(t, "a="+ShimDeclaration+"\nb="+ShimDeclaration, string(rewritten))
}

// TestSubstitute_Missing rejects manifests without either declaration.
func TestSubstitute_Missing(t *testing.T) {
	t.Parallel()

	_, _, err := Substitute([]byte("<manifest/>"), []byte(LibNameDeclaration), []byte(ShimDeclaration))
	require.ErrorIs(t, err, ErrDeclarationNotFound)

	_, _, err = Substitute([]byte("<manifest/>"), nil, []byte(ShimDeclaration))
	require.Error(t, err)
}

// TestRewrite_Idempotent checks a second run leaves the manifest byte-identical.
func TestRewrite_Idempotent(t *testing.T) {
	t.Parallel()

	packageDir, path := writeManifest(t, sampleManifest)

	result, err := RewriteLibName(context.Background(), packageDir)
	require.NoError(t, err)
	require.Equal(t, 1, result.Replaced)

	once, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, strings.Replace(sampleManifest, LibNameDeclaration, ShimDeclaration, 1), string(once))

	result, err = RewriteLibName(context.Background(), packageDir)
	require.NoError(t, err)
	require.True(t, result.AlreadyRewritten)
	require.Zero(t, result.Replaced)

	twice, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, once, twice)
}

// TestRewrite_Missing reports unreadable manifests and unknown packages.
func TestRewrite_Missing(t *testing.T) {
	t.Parallel()

	_, err := RewriteLibName(context.Background(), t.TempDir())
	require.ErrorIs(t, err, os.ErrNotExist)

	packageDir, path := writeManifest(t, "<manifest/>")

	_, err = RewriteLibName(context.Background(), packageDir)
	require.ErrorIs(t, err, ErrDeclarationNotFound)

	// Content is untouched on failure.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "<manifest/>", string(data))
}

// TestPreview lists the removed and added lines without writing.
func TestPreview(t *testing.T) {
	t.Parallel()

	_, path := writeManifest(t, sampleManifest)

	diff, err := Preview(path, []byte(LibNameDeclaration), []byte(ShimDeclaration))
	require.NoError(t, err)
	require.Equal(t,
		"-             <meta-data "+LibNameDeclaration+"/>\n"+
			"+             <meta-data "+ShimDeclaration+"/>\n",
		diff,
	)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, sampleManifest, string(data))

	// Nothing to preview once rewritten.
	require.NoError(t, os.WriteFile(path, []byte(strings.ReplaceAll(sampleManifest, LibNameDeclaration, ShimDeclaration)), 0o644))

	diff, err = Preview(path, []byte(LibNameDeclaration), []byte(ShimDeclaration))
	require.NoError(t, err)
	require.Empty(t, diff)
}
