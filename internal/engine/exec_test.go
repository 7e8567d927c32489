package engine

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/shim-installer/internal/domain/patchset"
)

// TestExec_Patched applies the spec and sends it as JSON.
func TestExec_Patched(t *testing.T) {
	t.Parallel()

	engine := NewExec(writeFakePatcher(t), time.Minute)
	binary := writeBinary(t, "libsmashhit.so")

	outcome, err := engine.PatchBinary(context.Background(), binary, patchset.Default())
	require.NoError(t, err)
	require.Equal(t, patchset.OutcomePatched, outcome)

	data, err := os.ReadFile(binary)
	require.NoError(t, err)
	require.Equal(t, "ELF+patched", string(data))

	request, err := os.ReadFile(binary + ".request")
	require.NoError(t, err)
	require.JSONEq(t, `{"binary":"`+binary+`","patches":{"antitamper":[]}}`, string(request))
}

// TestExec_Unchanged reports that nothing needed patching.
func TestExec_Unchanged(t *testing.T) {
	t.Parallel()

	engine := NewExec(writeFakePatcher(t), time.Minute)
	binary := writeBinary(t, "same.so")

	outcome, err := engine.PatchBinary(context.Background(), binary, patchset.Spec{"antitamper": {"checksum"}})
	require.NoError(t, err)
	require.Equal(t, patchset.OutcomeUnchanged, outcome)

	data, err := os.ReadFile(binary)
	require.NoError(t, err)
	require.Equal(t, "ELF", string(data))
}

// TestExec_Failed surfaces the patcher's stderr.
func TestExec_Failed(t *testing.T) {
	t.Parallel()

	engine := NewExec(writeFakePatcher(t), time.Minute)

	_, err := engine.PatchBinary(context.Background(), writeBinary(t, "fail.so"), patchset.Default())
	require.ErrorIs(t, err, ErrPatcherFailed)
	require.Contains(t, err.Error(), "pattern not found")
}

// TestExec_BadOutput rejects non-JSON answers.
func TestExec_BadOutput(t *testing.T) {
	t.Parallel()

	engine := NewExec(writeFakePatcher(t), time.Minute)

	_, err := engine.PatchBinary(context.Background(), writeBinary(t, "garbage.so"), patchset.Default())
	require.ErrorIs(t, err, errBadPatcherOutput)
}

// TestExec_MissingExecutable fails like any other engine error.
func TestExec_MissingExecutable(t *testing.T) {
	t.Parallel()

	engine := NewExec("/nonexistent/patcher", 0)

	_, err := engine.PatchBinary(context.Background(), writeBinary(t, "libsmashhit.so"), patchset.Default())
	require.ErrorIs(t, err, ErrPatcherFailed)
}
