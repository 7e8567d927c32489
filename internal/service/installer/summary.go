package installer

import (
	"fmt"
	"io"
	"os"

	"code.cloudfoundry.org/bytefmt"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/oshokin/shim-installer/internal/deploy"
	"github.com/oshokin/shim-installer/internal/engine"
	"github.com/oshokin/shim-installer/internal/manifest"
	"github.com/oshokin/shim-installer/internal/patch"
)

// palette colors the summary; every color is disabled when the output is not a terminal.
type palette struct {
	ok    *color.Color
	warn  *color.Color
	fail  *color.Color
	faint *color.Color
}

// newPalette returns colors suitable for w.
func newPalette(w io.Writer) *palette {
	p := &palette{
		ok:    color.New(color.FgGreen),
		warn:  color.New(color.FgYellow),
		fail:  color.New(color.FgRed),
		faint: color.New(color.Faint),
	}

	if !isTerminal(w) {
		for _, c := range []*color.Color{p.ok, p.warn, p.fail, p.faint} {
			c.DisableColor()
		}
	}

	return p
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// summary collects what a run did for the final report.
type summary struct {
	packageDir string
	deploy     *deploy.Report
	manifest   *manifest.Result
	patch      *patch.Report
}

// write renders the summary to w.
func (s *summary) write(w io.Writer) {
	p := newPalette(w)

	_, _ = fmt.Fprintf(w, "Shim installed into %s\n", s.packageDir)

	if s.deploy != nil {
		_, _ = fmt.Fprintf(w, "  libraries: %s %d files, %s\n",
			p.ok.Sprint("merged"), s.deploy.Files, bytefmt.ByteSize(uint64(s.deploy.Bytes)))
	}

	if s.manifest != nil {
		if s.manifest.AlreadyRewritten {
			_, _ = fmt.Fprintf(w, "  manifest:  %s\n", p.faint.Sprint("already declares the shim"))
		} else {
			_, _ = fmt.Fprintf(w, "  manifest:  %s\n", p.ok.Sprint("rewritten"))
		}
	}

	// The missing-engine notice has already been printed once.
	if s.patch == nil || s.patch.Engine != engine.Available {
		return
	}

	for _, result := range s.patch.Results {
		var status string

		switch result.Status {
		case patch.Succeeded:
			status = p.ok.Sprint(result.Status)
		case patch.Unchanged:
			status = p.faint.Sprint(result.Status)
		case patch.Failed:
			status = p.fail.Sprintf("%s: %v", result.Status, result.Err)
		default:
			status = p.warn.Sprint(result.Status)
		}

		_, _ = fmt.Fprintf(w, "  %-12s %s\n", result.Target.Architecture+":", status)
	}
}
