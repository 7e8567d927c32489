package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/oshokin/shim-installer/internal/domain/patchset"
	"github.com/oshokin/shim-installer/internal/logger"
)

//nolint:gochecknoglobals // Shared codec configuration.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrPatcherFailed is returned when the patcher exits unsuccessfully.
var ErrPatcherFailed = errors.New("patcher failed")

// errBadPatcherOutput is returned when the patcher answers with something unparsable.
var errBadPatcherOutput = errors.New("unexpected patcher output")

// execRequest is written to the patcher's standard input.
type execRequest struct {
	// Binary is the absolute path of the library to patch.
	Binary string `json:"binary"`
	// Patches maps patch set names to sub-patches; an empty list means all of them.
	Patches patchset.Spec `json:"patches"`
}

// execResponse is read from the patcher's standard output.
type execResponse struct {
	// Status is "patched" or "unchanged".
	Status string `json:"status"`
	// Message is optional free text from the patcher.
	Message string `json:"message,omitempty"`
}

// Exec runs an external patcher executable once per binary:
//
//	patcher patch <binary>
//
// with the JSON encoded request on stdin. A zero exit status with a JSON
// response on stdout is success; anything else is a failure whose stderr
// becomes the error text.
type Exec struct {
	// path is the patcher executable.
	path string
	// timeout bounds a single invocation; zero disables it.
	timeout time.Duration
}

// NewExec creates an engine backed by the patcher executable at path.
func NewExec(path string, timeout time.Duration) *Exec {
	return &Exec{
		path:    path,
		timeout: timeout,
	}
}

// Path returns the patcher executable.
func (e *Exec) Path() string {
	return e.path
}

// PatchBinary runs the patcher against the binary at path.
func (e *Exec) PatchBinary(ctx context.Context, path string, spec patchset.Spec) (patchset.Outcome, error) {
	payload, err := json.Marshal(&execRequest{
		Binary:  path,
		Patches: spec.Clone(),
	})
	if err != nil {
		return patchset.OutcomeUnknown, fmt.Errorf("encode patch request: %w", err)
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, e.path, "patch", path)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.DebugKV(ctx, "Running patcher", "patcher", e.path, "binary", path, "patch_sets", spec.Names())

	if err = cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}

		return patchset.OutcomeUnknown, fmt.Errorf("%w: %s", ErrPatcherFailed, detail)
	}

	var response execResponse
	if err = json.Unmarshal(stdout.Bytes(), &response); err != nil {
		return patchset.OutcomeUnknown, fmt.Errorf("%w: %w", errBadPatcherOutput, err)
	}

	outcome, err := patchset.ParseOutcome(response.Status)
	if err != nil {
		return patchset.OutcomeUnknown, fmt.Errorf("%w: %w", errBadPatcherOutput, err)
	}

	if response.Message != "" {
		logger.DebugKV(ctx, "Patcher message", "binary", path, "message", response.Message)
	}

	return outcome, nil
}
