package arb

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// a line of input that survived comment and blank stripping
type line struct {
	num  int // 1-indexed position in the original text
	text string
}

// stripComment removes a trailing // comment and surrounding space.
func stripComment(s string) string {
	if i := strings.Index(s, "//"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func dataLines(text string) []line {
	raw := strings.Split(text, "\n")
	out := make([]line, 0, len(raw))
	for i, s := range raw {
		s = stripComment(s)
		if s == "" {
			continue
		}
		out = append(out, line{num: i + 1, text: s})
	}
	return out
}

// Decode parses waveform file text, detecting which of the three forms
// it is by structure.  The matchers run in a fixed priority order: a
// first line of "Rate = <number>" selects the rate-header form, a first
// line of two comma-separated numbers selects the pair form, and a bare
// number selects the voltage-only form.  Once a form is selected, every
// remaining line must conform; a deviating line is a *ParseError, never
// a reason to try the next matcher.
//
// A voltage-only file carries no timing at all, so the returned spec
// assumes DefaultSampleRate.
func Decode(text string) (Spec, error) {
	var s Spec
	lines := dataLines(text)
	if len(lines) == 0 {
		return s, &ParseError{Reason: "empty input"}
	}
	if rate, ok := matchRateHeader(lines[0]); ok {
		return decodeRateHeader(rate, lines[0], lines[1:])
	}
	if _, _, ok := matchPair(lines[0]); ok {
		return decodePairs(lines)
	}
	return decodeVoltages(lines)
}

// DecodeFile reads and decodes a waveform file from disk.
func DecodeFile(path string) (Spec, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return Spec{}, err
	}
	return Decode(string(buf))
}

// matchRateHeader recognizes "Rate = <number>".
func matchRateHeader(l line) (float64, bool) {
	if !strings.HasPrefix(l.text, "Rate") {
		return 0, false
	}
	_, after, found := strings.Cut(l.text, "=")
	if !found {
		return 0, false
	}
	rate, err := strconv.ParseFloat(strings.TrimSpace(after), 64)
	if err != nil {
		return 0, false
	}
	return rate, true
}

// matchPair recognizes "<number>,<number>" with exactly one comma.
func matchPair(l line) (float64, float64, bool) {
	first, second, found := strings.Cut(l.text, ",")
	if !found || strings.Contains(second, ",") {
		return 0, 0, false
	}
	t, err := strconv.ParseFloat(strings.TrimSpace(first), 64)
	if err != nil {
		return 0, 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(second), 64)
	if err != nil {
		return 0, 0, false
	}
	return t, v, true
}

// validated runs Validate on a decoded spec and recasts any spec fault
// as a parse fault anchored at the line that introduced it.  A file
// that decodes to an invalid spec is a malformed file; the caller never
// sees a spec fault for text it did not build itself.
func validated(s Spec, at line) (Spec, error) {
	err := s.Validate()
	if err == nil {
		return s, nil
	}
	var se *SpecError
	if errors.As(err, &se) {
		reason := se.Reason
		if se.Index > 0 {
			reason = fmt.Sprintf("%s (sample %d)", se.Reason, se.Index)
		}
		return s, &ParseError{Reason: reason, Line: at.num, Text: at.text}
	}
	return s, err
}

func decodeRateHeader(rate float64, hdr line, lines []line) (Spec, error) {
	s := Spec{SampleRate: rate}
	if len(lines) == 0 {
		return s, &ParseError{Reason: "rate header with no sample lines"}
	}
	s.Values = make([]float64, 0, len(lines))
	for _, l := range lines {
		v, err := strconv.ParseFloat(l.text, 64)
		if err != nil {
			return s, &ParseError{Reason: "expected a single voltage", Line: l.num, Text: l.text}
		}
		s.Values = append(s.Values, v)
	}
	return validated(s, hdr)
}

func decodePairs(lines []line) (Spec, error) {
	s := Spec{
		Times:  make([]float64, 0, len(lines)),
		Values: make([]float64, 0, len(lines)),
	}
	for i, l := range lines {
		t, v, ok := matchPair(l)
		if !ok {
			return s, &ParseError{Reason: "expected a time,voltage pair", Line: l.num, Text: l.text}
		}
		if i > 0 && t <= s.Times[i-1] {
			return s, &ParseError{Reason: "time column must be strictly increasing", Line: l.num, Text: l.text}
		}
		s.Times = append(s.Times, t)
		s.Values = append(s.Values, v)
	}
	return validated(s, lines[0])
}

func decodeVoltages(lines []line) (Spec, error) {
	s := Spec{SampleRate: DefaultSampleRate}
	s.Values = make([]float64, 0, len(lines))
	for _, l := range lines {
		v, err := strconv.ParseFloat(l.text, 64)
		if err != nil {
			return s, &ParseError{Reason: "expected a single voltage", Line: l.num, Text: l.text}
		}
		s.Values = append(s.Values, v)
	}
	return validated(s, lines[0])
}
