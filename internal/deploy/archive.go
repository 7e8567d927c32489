package deploy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mholt/archiver/v3"

	"github.com/oshokin/shim-installer/internal/domain/patchset"
	"github.com/oshokin/shim-installer/internal/logger"
)

// ErrUnsupportedArchive is returned when the library tree is a file in an unknown format.
var ErrUnsupportedArchive = errors.New("unsupported library archive")

// IsArchive reports whether path has an extension that archiver can extract.
func IsArchive(path string) bool {
	format, err := archiver.ByExtension(path)
	if err != nil {
		return false
	}

	_, ok := format.(archiver.Unarchiver)

	return ok
}

// CheckSource verifies that source is a directory or an extractable archive.
func CheckSource(source string) error {
	info, err := os.Stat(source)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", source, ErrSourceMissing, err)
	}

	if info.IsDir() {
		return nil
	}

	if !IsArchive(source) {
		return fmt.Errorf("%s: %w", source, ErrUnsupportedArchive)
	}

	return nil
}

// Unpack returns a directory holding the library tree found at source.
// Directories are returned unchanged. Archives (zip, tar.gz, tar.xz and the
// other formats archiver knows) are extracted into a scratch directory which
// cleanup removes. A lone top-level folder that is not an architecture name,
// such as libs/, is treated as the tree root.
func Unpack(ctx context.Context, source string) (dir string, cleanup func(), err error) {
	cleanup = func() {}

	if err = CheckSource(source); err != nil {
		return "", cleanup, err
	}

	if info, statErr := os.Stat(source); statErr == nil && info.IsDir() {
		return source, cleanup, nil
	}

	scratchDir, err := os.MkdirTemp("", "shim-libs-")
	if err != nil {
		return "", cleanup, fmt.Errorf("create scratch directory: %w", err)
	}

	cleanup = func() {
		if removeErr := os.RemoveAll(scratchDir); removeErr != nil {
			logger.DebugKV(ctx, "Unable to remove scratch directory", "path", scratchDir, "error", removeErr)
		}
	}

	logger.DebugKV(ctx, "Unpacking library archive", "archive", source, "scratch_dir", scratchDir)

	if err = archiver.Unarchive(source, scratchDir); err != nil {
		cleanup()
		return "", func() {}, fmt.Errorf("unpack %s: %w", source, err)
	}

	root, err := archiveRoot(scratchDir)
	if err != nil {
		cleanup()
		return "", func() {}, err
	}

	return root, cleanup, nil
}

// archiveRoot descends into a single wrapping folder.
func archiveRoot(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read unpacked archive: %w", err)
	}

	if len(entries) != 1 || !entries[0].IsDir() {
		return dir, nil
	}

	name := entries[0].Name()
	if patchset.ValidateArchitecture(name) == nil {
		return dir, nil
	}

	return filepath.Join(dir, name), nil
}
