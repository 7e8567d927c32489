package patchd

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestResolveListenAddress prefers the override, then the configured address.
func TestResolveListenAddress(t *testing.T) {
	t.Parallel()

	require.Equal(t, ":9090", resolveListenAddress("10.0.0.1:50061", ":9090"))
	require.Equal(t, "10.0.0.1:50061", resolveListenAddress("10.0.0.1:50061", ""))
	require.Equal(t, DefaultListenAddress, resolveListenAddress("", ""))
}

// TestRun_NoPatcher refuses to start without a local patcher.
func TestRun_NoPatcher(t *testing.T) {
	t.Parallel()

	err := Run(context.Background(), &Options{
		PatcherPath:   filepath.Join(t.TempDir(), "patcher"),
		ListenAddress: "127.0.0.1:0",
	})
	require.ErrorIs(t, err, ErrPatcherUnavailable)
}

// TestRun_MissingConfig fails for an explicit settings file that does not exist.
func TestRun_MissingConfig(t *testing.T) {
	t.Parallel()

	err := Run(context.Background(), &Options{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)
}
