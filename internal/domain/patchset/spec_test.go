package patchset

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// TestSpec_Validate checks blank names and identifiers are rejected.
func TestSpec_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, Default().Validate())
	require.NoError(t, Spec{"antitamper": {"checksum", "signature"}}.Validate())

	require.Error(t, Spec{}.Validate())
	require.Error(t, Spec{"": nil}.Validate())
	require.Error(t, Spec{"antitamper": {"checksum", ""}}.Validate())
}

// TestSpec_Clone ensures nil lists become empty and copies are independent.
func TestSpec_Clone(t *testing.T) {
	t.Parallel()

	original := Spec{"antitamper": nil, "debug": {"a"}}
	cloned := original.Clone()

	if diff := cmp.Diff(Spec{"antitamper": {}, "debug": {"a"}}, cloned); diff != "" {
		t.Errorf("Clone mismatch (-want +got):\n%s", diff)
	}

	require.NotNil(t, cloned["antitamper"])
	require.Empty(t, cloned["antitamper"])

	cloned["debug"][0] = "b"
	require.Equal(t, "a", original["debug"][0])
	require.Equal(t, []string{"antitamper", "debug"}, cloned.Names())
}

// TestValidateArchitecture accepts Android ABI names only.
func TestValidateArchitecture(t *testing.T) {
	t.Parallel()

	for _, arch := range DefaultArchitectures() {
		require.NoError(t, ValidateArchitecture(arch))
	}

	require.ErrorIs(t, ValidateArchitecture("arm64"), ErrUnknownArchitecture)
}

// TestResolveTargets builds absolute per-ABI binary paths.
func TestResolveTargets(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	targets, err := ResolveTargets(dir, DefaultArchitectures(), DefaultBinary)
	require.NoError(t, err)

	want := []Target{
		{Architecture: "armeabi-v7a", Path: filepath.Join(dir, "lib", "armeabi-v7a", "libsmashhit.so")},
		{Architecture: "arm64-v8a", Path: filepath.Join(dir, "lib", "arm64-v8a", "libsmashhit.so")},
	}
	if diff := cmp.Diff(want, targets); diff != "" {
		t.Errorf("ResolveTargets mismatch (-want +got):\n%s", diff)
	}
}

// TestParseOutcome round-trips the wire names.
func TestParseOutcome(t *testing.T) {
	t.Parallel()

	for _, outcome := range []Outcome{OutcomePatched, OutcomeUnchanged} {
		parsed, err := ParseOutcome(outcome.String())
		require.NoError(t, err)
		require.Equal(t, outcome, parsed)
	}

	_, err := ParseOutcome("unknown")
	require.Error(t, err)
}
