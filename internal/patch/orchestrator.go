package patch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/oshokin/shim-installer/internal/domain/patchset"
	"github.com/oshokin/shim-installer/internal/engine"
	"github.com/oshokin/shim-installer/internal/logger"
)

const (
	// NoticeEngineMissing is emitted once when no patch engine is available.
	NoticeEngineMissing = "The patcher could not be found, so you will need to patch %s against anti-tamper manually."

	// WarningPartialFailure is emitted once when at least one binary failed to patch.
	WarningPartialFailure = "Failed to patch some binaries."
)

// Status is the per-target progress of a patch run.
type Status int

const (
	// Pending means the target has not been attempted.
	Pending Status = iota
	// Succeeded means the engine patched the binary.
	Succeeded
	// Unchanged means the engine found nothing to patch.
	Unchanged
	// Failed means the engine or the target itself failed.
	Failed
)

// String returns the status name used in logs and summaries.
func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Succeeded:
		return "patched"
	case Unchanged:
		return "unchanged"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// errBinaryMissing is returned when a target binary does not exist.
var errBinaryMissing = errors.New("binary not found")

// Result is the outcome for a single binary.
type Result struct {
	// Target is the binary the result refers to.
	Target patchset.Target
	// Status is where the target ended up.
	Status Status
	// Err holds the failure reason when Status is Failed.
	Err error
}

// Report is the outcome of a whole patch run.
type Report struct {
	// Engine is the probed engine state.
	Engine engine.State
	// EngineLocation is where the engine was found or looked for.
	EngineLocation string
	// Results holds one entry per target, in target order. All are Pending when
	// the engine is unavailable.
	Results []Result
}

// Failed returns the results that failed.
func (r *Report) Failed() []Result {
	var failed []Result

	for _, result := range r.Results {
		if result.Status == Failed {
			failed = append(failed, result)
		}
	}

	return failed
}

// HasFailures reports whether any target failed.
func (r *Report) HasFailures() bool {
	return len(r.Failed()) > 0
}

// Options tunes Apply.
type Options struct {
	// Notices receives the missing-engine notice and the partial-failure warning
	// whatever the log level. Nil sends them through the logger instead.
	Notices io.Writer
}

// notice emits the missing-engine notice exactly once.
func (o *Options) notice(ctx context.Context, binary string) {
	if o != nil && o.Notices != nil {
		_, _ = fmt.Fprintf(o.Notices, "Note: "+NoticeEngineMissing+"\n", binary)
		return
	}

	logger.Infof(ctx, NoticeEngineMissing, binary)
}

// warning emits the partial-failure warning exactly once.
func (o *Options) warning(ctx context.Context) {
	if o != nil && o.Notices != nil {
		_, _ = fmt.Fprintln(o.Notices, "Warning: "+WarningPartialFailure)
		return
	}

	logger.Warn(ctx, WarningPartialFailure)
}

// Apply requests spec for every target from the probed engine.
// When the engine is unavailable a single notice naming binary is emitted and
// no target is attempted. Engine failures are contained per target.
func Apply(
	ctx context.Context,
	availability *engine.Availability,
	targets []patchset.Target,
	binary string,
	spec patchset.Spec,
	opts *Options,
) *Report {
	report := &Report{
		Results: make([]Result, 0, len(targets)),
	}

	for _, target := range targets {
		report.Results = append(report.Results, Result{Target: target, Status: Pending})
	}

	if !availability.IsAvailable() {
		report.Engine = engine.Unavailable

		if availability != nil {
			report.EngineLocation = availability.Location
			logger.DebugKV(ctx, "Patch engine unavailable", "location", availability.Location, "reason", availability.Reason)
		}

		opts.notice(ctx, binary)

		return report
	}

	report.Engine = engine.Available
	report.EngineLocation = availability.Location

	for i := range report.Results {
		result := &report.Results[i]
		result.Status, result.Err = patchTarget(ctx, availability.Engine, result.Target, spec)

		if result.Err != nil {
			logger.DebugKV(ctx, "Binary not patched",
				"architecture", result.Target.Architecture, "path", result.Target.Path, "error", result.Err)

			continue
		}

		logger.InfoKV(ctx, "Binary processed",
			"architecture", result.Target.Architecture, "status", result.Status)
	}

	if report.HasFailures() {
		opts.warning(ctx)
	}

	return report
}

// patchTarget runs the engine against a single binary.
func patchTarget(ctx context.Context, eng engine.Engine, target patchset.Target, spec patchset.Spec) (Status, error) {
	if err := ctx.Err(); err != nil {
		return Failed, err
	}

	info, err := os.Stat(target.Path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return Failed, fmt.Errorf("%s: %w", target.Path, errBinaryMissing)
	case err != nil:
		return Failed, fmt.Errorf("stat %s: %w", target.Path, err)
	case info.IsDir():
		return Failed, fmt.Errorf("%s is a directory: %w", target.Path, errBinaryMissing)
	}

	outcome, err := eng.PatchBinary(ctx, target.Path, spec)
	if err != nil {
		return Failed, err
	}

	switch outcome {
	case patchset.OutcomePatched:
		return Succeeded, nil
	case patchset.OutcomeUnchanged:
		return Unchanged, nil
	default:
		return Failed, fmt.Errorf("engine returned %s outcome", outcome)
	}
}
