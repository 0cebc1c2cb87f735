package oscilloscope

import "fmt"

// FormatError reports a malformed or mismatched binary capture payload.
// It is terminal for the decode that raised it; retrying the transfer
// is the transport's business.
type FormatError struct {
	// Reason is a human description of the fault
	Reason string

	// Length is the payload length in bytes, when relevant
	Length int

	// ElemLen is the element size in bytes, when relevant
	ElemLen int

	// Points is the record length the metadata promised
	Points int

	// Decoded is the element count actually present, when it disagrees
	Decoded int
}

func (e *FormatError) Error() string {
	s := "format error: " + e.Reason
	if e.Length > 0 {
		s += fmt.Sprintf(" (payload %d bytes", e.Length)
		if e.ElemLen > 0 {
			s += fmt.Sprintf(", element size %d", e.ElemLen)
		}
		s += ")"
	}
	if e.Decoded > 0 {
		s += fmt.Sprintf("; decoded %d elements, expected %d", e.Decoded, e.Points)
	}
	return s
}
