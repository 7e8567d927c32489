package patchset

import (
	"errors"
	"fmt"
)

// Outcome is what a patch engine reports after a successful invocation.
type Outcome int

const (
	// OutcomeUnknown is the zero value and never a valid engine answer.
	OutcomeUnknown Outcome = iota
	// OutcomePatched means the binary was modified.
	OutcomePatched
	// OutcomeUnchanged means the engine found nothing to change.
	OutcomeUnchanged
)

// errUnknownOutcome is returned when parsing an unrecognized outcome name.
var errUnknownOutcome = errors.New("unknown patch outcome")

// String returns the wire name of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomePatched:
		return "patched"
	case OutcomeUnchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// ParseOutcome converts a wire name back to an Outcome.
func ParseOutcome(s string) (Outcome, error) {
	switch s {
	case "patched":
		return OutcomePatched, nil
	case "unchanged":
		return OutcomeUnchanged, nil
	default:
		return OutcomeUnknown, fmt.Errorf("%q: %w", s, errUnknownOutcome)
	}
}
