package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"code.cloudfoundry.org/bytefmt"
	"github.com/otiai10/copy"

	"github.com/oshokin/shim-installer/internal/logger"
)

// Policy decides what happens when a source file already exists in the target.
type Policy int

const (
	// Overwrite replaces the existing file with the source file.
	Overwrite Policy = iota
	// Skip keeps the existing file.
	Skip
	// Fail aborts the merge with ErrConflict.
	Fail
)

// String returns the policy name used in logs.
func (p Policy) String() string {
	switch p {
	case Overwrite:
		return "overwrite"
	case Skip:
		return "skip"
	case Fail:
		return "fail"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

var (
	// ErrSourceMissing is returned when the library tree does not exist or is not a directory.
	ErrSourceMissing = errors.New("library tree not found")
	// ErrTargetMissing is returned when the parent of the target directory does not exist.
	ErrTargetMissing = errors.New("target parent directory not found")
	// ErrConflict is returned under the Fail policy when a file already exists in the target.
	ErrConflict = errors.New("file already exists in target")
)

// Options tunes a merge.
type Options struct {
	// Policy resolves conflicts; the zero value is Overwrite.
	Policy Policy
	// Progress receives a byte progress bar when non-nil.
	Progress io.Writer
}

// Report summarizes a finished merge.
type Report struct {
	// Files is the number of regular files written to the target.
	Files int
	// Skipped is the number of files left untouched because of the Skip policy.
	Skipped int
	// Bytes is the total amount of data written.
	Bytes int64
}

// Run merges every file and directory under sourceTree into targetDir.
// Directories are created as needed, including targetDir itself; its parent must exist.
// A failure part way through leaves already merged files in place, so the caller can
// simply run the merge again.
func Run(ctx context.Context, sourceTree, targetDir string, opts *Options) (*Report, error) {
	if opts == nil {
		opts = new(Options)
	}

	info, err := os.Stat(sourceTree)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", sourceTree, ErrSourceMissing, err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory: %w", sourceTree, ErrSourceMissing)
	}

	parent := filepath.Dir(filepath.Clean(targetDir))
	if info, err = os.Stat(parent); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", parent, ErrTargetMissing, err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory: %w", parent, ErrTargetMissing)
	}

	total, err := treeSize(sourceTree)
	if err != nil {
		return nil, fmt.Errorf("measure library tree: %w", err)
	}

	logger.DebugKV(ctx, "Merging library tree",
		"source", sourceTree, "target", targetDir, "policy", opts.Policy, "size", bytefmt.ByteSize(uint64(total)))

	report := new(Report)

	bar := newProgress(opts.Progress, total)
	defer bar.finish()

	copyOptions := copy.Options{
		OnDirExists: func(_, _ string) copy.DirExistsAction {
			return copy.Merge
		},
		Skip: func(srcinfo os.FileInfo, _, dest string) (bool, error) {
			if err := ctx.Err(); err != nil {
				return false, err
			}

			if srcinfo.IsDir() {
				return false, nil
			}

			skip, err := resolveConflict(opts.Policy, dest)
			if err != nil {
				return false, err
			}

			if skip {
				report.Skipped++
				logger.DebugKV(ctx, "Keeping existing file", "path", dest)

				return true, nil
			}

			report.Files++

			return false, nil
		},
		WrapReader: func(src io.Reader) io.Reader {
			return bar.wrap(&countingReader{reader: src, total: &report.Bytes})
		},
		Sync: true,
	}

	if err = copy.Copy(sourceTree, targetDir, copyOptions); err != nil {
		return report, fmt.Errorf("merge %s into %s: %w", sourceTree, targetDir, err)
	}

	logger.InfoKV(ctx, "Library tree merged",
		"files", report.Files, "skipped", report.Skipped, "size", bytefmt.ByteSize(uint64(report.Bytes)))

	return report, nil
}

// resolveConflict reports whether dest must be skipped under policy.
func resolveConflict(policy Policy, dest string) (bool, error) {
	if policy == Overwrite {
		return false, nil
	}

	_, err := os.Lstat(dest)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("stat %s: %w", dest, err)
	}

	if policy == Skip {
		return true, nil
	}

	return false, fmt.Errorf("%s: %w", dest, ErrConflict)
}

// treeSize sums the sizes of the regular files under root.
func treeSize(root string) (int64, error) {
	var total int64

	err := filepath.WalkDir(root, func(_ string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !entry.Type().IsRegular() {
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			return err
		}

		total += info.Size()

		return nil
	})

	return total, err
}

// countingReader adds the number of bytes read to total.
type countingReader struct {
	reader io.Reader
	total  *int64
}

// Read implements io.Reader.
func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	*r.total += int64(n)

	return n, err
}
