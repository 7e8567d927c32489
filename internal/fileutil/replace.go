package fileutil

import (
	"bytes"
	"crypto"
	"crypto/sha512"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"
)

// DefaultFileMode is used for files that do not exist yet.
const DefaultFileMode os.FileMode = 0o644

// Replace swaps the contents of path for data through a sibling temporary file,
// so readers observe either the old or the new contents, never a truncated file.
// The current permission bits are kept; a missing file is created with DefaultFileMode.
func Replace(path string, data []byte) error {
	path = filepath.Clean(path)
	mode := DefaultFileMode

	info, err := os.Stat(path)
	switch {
	case err == nil:
		mode = info.Mode().Perm()
	case errors.Is(err, os.ErrNotExist):
		// The updater renames the existing file out of the way, so one has to exist.
		var created *os.File

		if created, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY, mode); err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}

		if err = created.Close(); err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
	default:
		return fmt.Errorf("stat %s: %w", path, err)
	}

	checksum := sha512.Sum512(data)

	options := goupdate.Options{
		TargetPath: path,
		TargetMode: mode,
		Checksum:   checksum[:],
		Hash:       crypto.SHA512,
	}

	if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}

	oldFileName := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".old")
	if _, err = os.Stat(oldFileName); err == nil {
		_ = os.Remove(oldFileName)
	}

	return nil
}
