package deploy

import (
	"io"

	"github.com/cheggaaa/pb/v3"
)

// progress renders copied bytes; the zero value is a no-op.
type progress struct {
	bar *pb.ProgressBar
}

// newProgress starts a byte progress bar on w, or returns a no-op when w is nil.
func newProgress(w io.Writer, total int64) *progress {
	if w == nil || total <= 0 {
		return new(progress)
	}

	bar := pb.New64(total).
		SetTemplate(pb.Full).
		Set(pb.Bytes, true).
		SetWriter(w)

	return &progress{bar: bar.Start()}
}

// wrap proxies reads through the bar.
func (p *progress) wrap(r io.Reader) io.Reader {
	if p.bar == nil {
		return r
	}

	return p.bar.NewProxyReader(r)
}

// finish stops the bar.
func (p *progress) finish() {
	if p.bar != nil {
		p.bar.Finish()
	}
}
