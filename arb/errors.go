package arb

import "fmt"

// SpecError reports a semantically invalid waveform spec: the wrong
// optional field for the requested form, a non-positive count, or a
// degenerate range.
type SpecError struct {
	// Reason describes the fault
	Reason string

	// Index is the offending sample index, when one exists
	Index int
}

func (e *SpecError) Error() string {
	if e.Index > 0 {
		return fmt.Sprintf("spec error: %s (sample %d)", e.Reason, e.Index)
	}
	return "spec error: " + e.Reason
}

// ParseError reports a malformed waveform file.  Line is 1-indexed into
// the input text so the offending line can be located directly.
type ParseError struct {
	// Reason describes the fault
	Reason string

	// Line is the 1-indexed line number, zero when the whole input
	// is at fault (e.g. empty)
	Line int

	// Text is the offending line, when one exists
	Text string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error on line %d: %s: %q", e.Line, e.Reason, e.Text)
	}
	return "parse error: " + e.Reason
}
