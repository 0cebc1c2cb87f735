package mxo

import (
	"fmt"
)

// Coupling is the channel input coupling.
type Coupling int

const (
	// DC coupling passes the full signal
	DC Coupling = iota

	// AC coupling blocks the DC component
	AC

	// GND disconnects the input and grounds the channel
	GND
)

func (c Coupling) scpi() string {
	switch c {
	case AC:
		return "AC"
	case GND:
		return "GND"
	default:
		return "DC"
	}
}

func (c Coupling) valid() bool { return c >= DC && c <= GND }

// TriggerMode controls when the scope sweeps.
type TriggerMode int

const (
	// Auto sweeps even without a trigger event
	Auto TriggerMode = iota

	// Normal sweeps only on trigger events
	Normal

	// Single arms for exactly one sweep
	Single
)

func (m TriggerMode) scpi() string {
	switch m {
	case Normal:
		return "NORMAL"
	case Single:
		return "SINGLE"
	default:
		return "AUTO"
	}
}

func (m TriggerMode) valid() bool { return m >= Auto && m <= Single }

// Slope is the trigger edge direction.
type Slope int

const (
	// Positive triggers on rising edges
	Positive Slope = iota

	// Negative triggers on falling edges
	Negative
)

func (s Slope) scpi() string {
	if s == Negative {
		return "NEG"
	}
	return "POS"
}

// Function is a waveform generator output shape.
type Function int

const (
	// Sinusoid output
	Sinusoid Function = iota

	// Square output with adjustable duty cycle
	Square

	// Ramp output with adjustable symmetry
	Ramp

	// Pulse output with adjustable width
	Pulse

	// Noise output
	Noise

	// DCLevel constant output
	DCLevel

	// Arbitrary plays a user waveform file
	Arbitrary
)

func (f Function) scpi() string {
	switch f {
	case Square:
		return "SQUare"
	case Ramp:
		return "RAMP"
	case Pulse:
		return "PULSe"
	case Noise:
		return "NOISe"
	case DCLevel:
		return "DC"
	case Arbitrary:
		return "ARBitrary"
	default:
		return "SINusoid"
	}
}

func (f Function) valid() bool { return f >= Sinusoid && f <= Arbitrary }

// ParseFunction maps a mnemonic (case-folded prefix form accepted) to a
// Function, for the HTTP layer which traffics in strings.
func ParseFunction(s string) (Function, error) {
	for f := Sinusoid; f <= Arbitrary; f++ {
		if equalsFold(s, f.scpi()) || equalsFold(s, f.String()) {
			return f, nil
		}
	}
	return 0, fmt.Errorf("mxo: unknown function %q", s)
}

func (f Function) String() string {
	switch f {
	case Square:
		return "square"
	case Ramp:
		return "ramp"
	case Pulse:
		return "pulse"
	case Noise:
		return "noise"
	case DCLevel:
		return "dc"
	case Arbitrary:
		return "arbitrary"
	default:
		return "sinusoid"
	}
}

func equalsFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// RunMode controls arbitrary waveform playback.
type RunMode int

const (
	// Repetitive loops the waveform
	Repetitive RunMode = iota

	// SingleShot plays it once per trigger
	SingleShot
)

func (r RunMode) scpi() string {
	if r == SingleShot {
		return "SINGle"
	}
	return "REPetitive"
}

// AcqType is the acquisition processing mode.
type AcqType int

const (
	// NormalAcq takes samples as they come
	NormalAcq AcqType = iota

	// Average accumulates a running average over sweeps
	Average

	// Peak keeps min/max detail
	Peak

	// HighRes trades bandwidth for vertical resolution
	HighRes
)

func (a AcqType) scpi() string {
	switch a {
	case Average:
		return "AVERAGE"
	case Peak:
		return "PEAK"
	case HighRes:
		return "HRESOLUTION"
	default:
		return "NORMAL"
	}
}

func (a AcqType) valid() bool { return a >= NormalAcq && a <= HighRes }

// ChannelSettings configures one analog input channel.  The zero value
// is not useful; construct with the fields you mean.
type ChannelSettings struct {
	// Enabled displays and acquires the channel
	Enabled bool

	// Coupling is the input coupling
	Coupling Coupling

	// RangeVolts is the full vertical range in volts (10 divisions)
	RangeVolts float64

	// OffsetVolts is the vertical offset in volts
	OffsetVolts float64
}

func (c ChannelSettings) validate() error {
	if !c.Coupling.valid() {
		return fmt.Errorf("mxo: coupling out of range: %d", c.Coupling)
	}
	if c.RangeVolts <= 0 {
		return fmt.Errorf("mxo: channel range must be positive, got %G", c.RangeVolts)
	}
	return nil
}

// TriggerSettings configures the edge trigger.
type TriggerSettings struct {
	Mode TriggerMode

	// Source is the trigger channel, 1..4
	Source int

	// LevelVolts is the trigger threshold
	LevelVolts float64

	Slope Slope
}

func (t TriggerSettings) validate() error {
	if !t.Mode.valid() {
		return fmt.Errorf("mxo: trigger mode out of range: %d", t.Mode)
	}
	return checkChannel(t.Source)
}

// TimebaseSettings configures the horizontal axis.
type TimebaseSettings struct {
	// ScaleSecondsPerDiv is the horizontal scale
	ScaleSecondsPerDiv float64

	// PositionSeconds is the horizontal (trigger) offset
	PositionSeconds float64
}

func (t TimebaseSettings) validate() error {
	if t.ScaleSecondsPerDiv <= 0 {
		return fmt.Errorf("mxo: timebase scale must be positive, got %G", t.ScaleSecondsPerDiv)
	}
	return nil
}

// GeneratorSettings configures the built-in function generator.
type GeneratorSettings struct {
	Function Function

	// FrequencyHz of the output, ignored for DC
	FrequencyHz float64

	// AmplitudeVpp is the peak-to-peak output voltage
	AmplitudeVpp float64

	// OffsetVolts is the DC offset
	OffsetVolts float64

	// DutyCyclePct applies to Square
	DutyCyclePct float64

	// SymmetryPct applies to Ramp
	SymmetryPct float64

	// WidthSeconds applies to Pulse
	WidthSeconds float64

	// Enabled turns the output connector on
	Enabled bool
}

func (g GeneratorSettings) validate() error {
	if !g.Function.valid() {
		return fmt.Errorf("mxo: function out of range: %d", g.Function)
	}
	if g.Function != DCLevel && g.FrequencyHz <= 0 {
		return fmt.Errorf("mxo: frequency must be positive, got %G", g.FrequencyHz)
	}
	return nil
}

// ArbitrarySettings configures arbitrary waveform playback.
type ArbitrarySettings struct {
	// SampleRateHz overrides the rate carried by the waveform when
	// nonzero
	SampleRateHz float64

	// InstrumentPath is where the file lands on the scope's disk
	InstrumentPath string

	RunMode RunMode
}

// DefaultInstrumentPath is where uploaded waveforms live on the scope.
const DefaultInstrumentPath = "/home/storage/userData/arb_waveform.csv"

// AcquisitionSettings configures the capture engine.
type AcquisitionSettings struct {
	// Points is the record length
	Points int

	// SampleRateHz is the digitizer rate
	SampleRateHz float64

	Type AcqType

	// Averages applies when Type == Average
	Averages int
}

func (a AcquisitionSettings) validate() error {
	if a.Points < 1 {
		return fmt.Errorf("mxo: record length must be at least 1, got %d", a.Points)
	}
	if a.SampleRateHz <= 0 {
		return fmt.Errorf("mxo: sample rate must be positive, got %G", a.SampleRateHz)
	}
	if !a.Type.valid() {
		return fmt.Errorf("mxo: acquisition type out of range: %d", a.Type)
	}
	if a.Type == Average && a.Averages < 1 {
		return fmt.Errorf("mxo: averaging requires at least 1 average, got %d", a.Averages)
	}
	return nil
}

func checkChannel(ch int) error {
	if ch < 1 || ch > 4 {
		return fmt.Errorf("mxo: channel must be between 1 and 4, got %d", ch)
	}
	return nil
}
