package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	diffpatch "github.com/sergi/go-diff/diffmatchpatch"
)

// Preview returns a line diff of what Rewrite would change in the manifest at path.
// It writes nothing; an empty string means the manifest is already rewritten.
func Preview(path string, from, to []byte) (string, error) {
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("read manifest: %w", err)
	}

	rewritten, result, err := Substitute(content, from, to)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}

	if result.AlreadyRewritten {
		return "", nil
	}

	return lineDiff(string(content), string(rewritten)), nil
}

// lineDiff renders the changed lines of before and after, prefixed with - and +.
func lineDiff(before, after string) string {
	dmp := diffpatch.New()

	beforeChars, afterChars, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(beforeChars, afterChars, false), lines)

	var builder strings.Builder

	for _, diff := range diffs {
		var prefix string

		switch diff.Type {
		case diffpatch.DiffDelete:
			prefix = "- "
		case diffpatch.DiffInsert:
			prefix = "+ "
		default:
			continue
		}

		for line := range strings.Lines(diff.Text) {
			builder.WriteString(prefix)
			builder.WriteString(strings.TrimRight(line, "\r\n"))
			builder.WriteByte('\n')
		}
	}

	return builder.String()
}
