// Package arb converts between in-memory arbitrary waveform specs and
// the three text file formats the waveform generator accepts:
//
//	Form 1 (RateHeader):       "Rate = <Hz>" header, one voltage per line
//	Form 2 (TimeVoltagePairs): "<time>,<voltage>" per line, time ascending
//	Form 3 (VoltageOnly):      one voltage per line, rate set out of band
//
// Lines are newline separated, unquoted; "//" begins a comment.  Values
// are formatted so they survive a decode without precision loss.
package arb

// DefaultSampleRate is assumed when a file carries neither a rate
// header nor timestamps.  100 kSa/s, the generator's own default.
const DefaultSampleRate = 100000.0

// Form identifies one of the three accepted file encodings.
type Form int

const (
	// RateHeader is form 1, a Rate header followed by voltages
	RateHeader Form = iota

	// TimeVoltagePairs is form 2, time,voltage per line
	TimeVoltagePairs

	// VoltageOnly is form 3, bare voltages
	VoltageOnly
)

func (f Form) String() string {
	switch f {
	case RateHeader:
		return "RateHeader"
	case TimeVoltagePairs:
		return "TimeVoltagePairs"
	default:
		return "VoltageOnly"
	}
}

// Spec is an arbitrary waveform: an ordered sample sequence with its
// playback timing given either by a sample rate or by explicit
// per-sample timestamps, never both.
type Spec struct {
	// SampleRate is the playback rate in Hz, zero when Times is used
	SampleRate float64

	// Values is the ordered sample sequence in volts
	Values []float64

	// Times holds per-sample timestamps in seconds, strictly
	// increasing and the same length as Values; empty when
	// SampleRate is used
	Times []float64
}

// Validate checks the spec invariants: at least one sample, and exactly
// one of SampleRate/Times present with Times strictly increasing.
func (s Spec) Validate() error {
	if len(s.Values) < 1 {
		return &SpecError{Reason: "spec must contain at least one sample"}
	}
	hasRate := s.SampleRate != 0
	hasTimes := len(s.Times) > 0
	if hasRate == hasTimes {
		return &SpecError{Reason: "exactly one of sample rate and explicit times must be present"}
	}
	if hasRate && s.SampleRate < 0 {
		return &SpecError{Reason: "sample rate must be positive"}
	}
	if hasTimes {
		if len(s.Times) != len(s.Values) {
			return &SpecError{Reason: "times and values must be the same length"}
		}
		for i := 1; i < len(s.Times); i++ {
			if s.Times[i] <= s.Times[i-1] {
				return &SpecError{Reason: "times must be strictly increasing", Index: i}
			}
		}
	}
	return nil
}

// Rate returns the playback sample rate in Hz.  For a timestamped spec
// it is derived from the mean time delta, the same rule the bench
// scripts used when handing a two-column file to the generator.
func (s Spec) Rate() (float64, error) {
	if err := s.Validate(); err != nil {
		return 0, err
	}
	if s.SampleRate != 0 {
		return s.SampleRate, nil
	}
	if len(s.Times) < 2 {
		return 0, &SpecError{Reason: "cannot derive a rate from fewer than two timestamps"}
	}
	span := s.Times[len(s.Times)-1] - s.Times[0]
	mean := span / float64(len(s.Times)-1)
	return 1 / mean, nil
}
