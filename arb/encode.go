package arb

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'G', -1, 64)
}

// Encode renders the spec in the requested file form.  Samples are
// never reordered, and the numeric formatting is lossless under Decode.
// A form that needs a field the spec does not carry is a *SpecError:
// RateHeader requires a sample rate, TimeVoltagePairs requires explicit
// times; VoltageOnly is always legal.
func Encode(s Spec, form Form) (string, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}
	b := strings.Builder{}
	switch form {
	case RateHeader:
		if s.SampleRate == 0 {
			return "", &SpecError{Reason: "RateHeader form requires a sample rate, spec has explicit times"}
		}
		b.WriteString("Rate = ")
		b.WriteString(formatFloat(s.SampleRate))
		b.WriteString("  // Sample rate for the ARB file in Hz\n")
		for _, v := range s.Values {
			b.WriteString(formatFloat(v))
			b.WriteByte('\n')
		}
	case TimeVoltagePairs:
		if len(s.Times) == 0 {
			return "", &SpecError{Reason: "TimeVoltagePairs form requires explicit times, spec has a sample rate"}
		}
		for i, v := range s.Values {
			b.WriteString(formatFloat(s.Times[i]))
			b.WriteByte(',')
			b.WriteString(formatFloat(v))
			b.WriteByte('\n')
		}
	case VoltageOnly:
		for _, v := range s.Values {
			b.WriteString(formatFloat(v))
			b.WriteByte('\n')
		}
	default:
		return "", &SpecError{Reason: "unknown file form"}
	}
	return b.String(), nil
}

// WriteFile encodes the spec and persists it to path atomically: the
// text lands in a temp file in the destination directory and is renamed
// into place, so a half-written ARB file can never be loaded into the
// generator.
func WriteFile(path string, s Spec, form Form) error {
	text, err := Encode(s, form)
	if err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(path), ".arb-*.csv")
	if err != nil {
		return err
	}
	tmp := f.Name()
	_, err = f.WriteString(text)
	if err2 := f.Close(); err == nil {
		err = err2
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
