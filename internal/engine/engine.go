package engine

import (
	"context"

	"github.com/oshokin/shim-installer/internal/domain/patchset"
)

// Engine applies patch specs to binaries in place.
type Engine interface {
	// PatchBinary applies spec to the binary at path.
	// It reports OutcomeUnchanged when no modification was needed.
	PatchBinary(ctx context.Context, path string, spec patchset.Spec) (patchset.Outcome, error)
}

// State tells whether a patch engine can be used.
type State int

const (
	// Unavailable means no engine could be located.
	Unavailable State = iota
	// Available means Availability.Engine is ready for use.
	Available
)

// String returns the state name used in logs.
func (s State) String() string {
	if s == Available {
		return "available"
	}

	return "unavailable"
}

// Availability is the result of probing for a patch engine.
type Availability struct {
	// State tells whether Engine is usable.
	State State
	// Engine is set only when State is Available.
	Engine Engine
	// Location describes where the engine was found, or where it was looked for.
	Location string
	// Reason explains why the engine is unavailable.
	Reason string

	// closer releases resources held by Engine.
	closer func() error
}

// IsAvailable reports whether an engine was found.
func (a *Availability) IsAvailable() bool {
	return a != nil && a.State == Available && a.Engine != nil
}

// Close releases resources held by the engine, such as a gRPC connection.
func (a *Availability) Close() error {
	if a == nil || a.closer == nil {
		return nil
	}

	return a.closer()
}

// NewAvailable wraps a ready engine.
func NewAvailable(engine Engine, location string) *Availability {
	return &Availability{
		State:    Available,
		Engine:   engine,
		Location: location,
	}
}

// NewUnavailable records why no engine could be used.
func NewUnavailable(location, reason string) *Availability {
	return &Availability{
		State:    Unavailable,
		Location: location,
		Reason:   reason,
	}
}
