package manifest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/shim-installer/internal/fileutil"
	"github.com/oshokin/shim-installer/internal/logger"
)

const (
	// Filename is the manifest location relative to the package root.
	Filename = "AndroidManifest.xml"

	// LibNameDeclaration names the original native entry point as the activity library.
	LibNameDeclaration = `android:name="android.app.lib_name" android:value="smashhit"`

	// ShimDeclaration makes the activity load libshim.so instead.
	ShimDeclaration = `android:name="android.app.lib_name" android:value="shim"`
)

var (
	// ErrDeclarationNotFound is returned when neither the original nor the
	// rewritten declaration is present, which means the package is not the
	// one the shim was built for.
	ErrDeclarationNotFound = errors.New("native library declaration not found in manifest")
	// errEmptyPattern is returned when asked to replace an empty byte string.
	errEmptyPattern = errors.New("substitution pattern must not be empty")
)

// Result describes the outcome of a substitution.
type Result struct {
	// Replaced is the number of occurrences replaced.
	Replaced int
	// AlreadyRewritten is true when nothing was replaced because the
	// replacement is already present.
	AlreadyRewritten bool
}

// Substitute returns content with every occurrence of from replaced by to.
// All other bytes are kept as they are. When from is absent but to is present the
// content is returned unchanged, which makes repeated runs no-ops.
func Substitute(content, from, to []byte) ([]byte, *Result, error) {
	if len(from) == 0 {
		return nil, nil, errEmptyPattern
	}

	count := bytes.Count(content, from)
	if count == 0 {
		if len(to) > 0 && bytes.Contains(content, to) {
			return content, &Result{AlreadyRewritten: true}, nil
		}

		return nil, nil, ErrDeclarationNotFound
	}

	return bytes.ReplaceAll(content, from, to), &Result{Replaced: count}, nil
}

// Rewrite substitutes from with to inside the manifest at path and writes it back in place.
func Rewrite(ctx context.Context, path string, from, to []byte) (*Result, error) {
	path = filepath.Clean(path)

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	rewritten, result, err := Substitute(content, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if result.AlreadyRewritten {
		logger.InfoKV(ctx, "Manifest already declares the shim", "path", path)
		return result, nil
	}

	if result.Replaced > 1 {
		logger.WarnKV(ctx, "Native library declaration found more than once", "path", path, "count", result.Replaced)
	}

	if err = fileutil.Replace(path, rewritten); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	logger.InfoKV(ctx, "Manifest rewritten", "path", path, "replaced", result.Replaced)

	return result, nil
}

// RewriteLibName switches the package at packageDir from the original library to the shim.
func RewriteLibName(ctx context.Context, packageDir string) (*Result, error) {
	return Rewrite(ctx, filepath.Join(packageDir, Filename), []byte(LibNameDeclaration), []byte(ShimDeclaration))
}
