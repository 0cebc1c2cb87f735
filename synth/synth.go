// Package synth converts 2-D intensity sources (camera frames, images)
// into 1-D arbitrary waveform specs for generator playback.
//
// The conversion is a fixed deterministic pipeline: scan the grid in a
// chosen order, aggregate each scanned unit, optionally expand values
// into timed pulses, map intensities onto a voltage range, and resample
// to the requested length.  No randomness lives here; picking which
// sources to convert is the caller's concern.
package synth

import (
	"gonum.org/v1/gonum/interp"

	"github.com/oscilab/scopehal/arb"
)

// ScanOrder is the grid traversal direction.
type ScanOrder int

const (
	// RowMajor scans across each row, top to bottom
	RowMajor ScanOrder = iota

	// ColMajor scans down each column, left to right
	ColMajor
)

// Aggregation is the rule that turns scanned cells into samples.
type Aggregation int

const (
	// Concatenate emits every cell value in scan order
	Concatenate Aggregation = iota

	// Mean emits one sample per scanned line, the mean of its cells
	Mean
)

// DefaultThreshold is the binarization cut used for the pulse-train
// conversions of handwriting images.
const DefaultThreshold = 0.35

// Source is a bounded 2-D intensity grid.  Every cell is expected to
// lie in [Lo, Hi]; values outside are clamped during voltage mapping
// rather than extrapolated.
type Source struct {
	// Grid is the intensity data, Grid[row][col], rectangular
	Grid [][]float64

	// Lo and Hi are the known intensity bounds of the source
	Lo, Hi float64
}

func (s Source) validate() error {
	if len(s.Grid) == 0 || len(s.Grid[0]) == 0 {
		return &arb.SpecError{Reason: "source grid must be non-empty"}
	}
	w := len(s.Grid[0])
	for _, row := range s.Grid {
		if len(row) != w {
			return &arb.SpecError{Reason: "source grid must be rectangular"}
		}
	}
	if s.Hi <= s.Lo {
		return &arb.SpecError{Reason: "source intensity range is degenerate"}
	}
	return nil
}

// PulseShape expands each scanned intensity into a flat-top pulse
// followed by a gap at the source floor, the image-to-pulse-train
// behavior used for playing handwriting digits through the generator.
// All durations share the unit of DT.
type PulseShape struct {
	// PixelTime is the on-duration per scanned value
	PixelTime float64

	// GapTime is the floor-level spacing after each value
	GapTime float64

	// DT is the time step; PixelTime/DT steps on, GapTime/DT steps off
	DT float64
}

// Policy fixes every free parameter of a conversion.
type Policy struct {
	// Scan is the traversal order
	Scan ScanOrder

	// Aggregate is the per-unit aggregation rule
	Aggregate Aggregation

	// Pulse, when non-nil, expands aggregated samples into pulses
	Pulse *PulseShape

	// TargetCount is the exact output length; the natural sample
	// sequence is linearly resampled to reach it.  Zero keeps the
	// natural length.
	TargetCount int

	// VoltsLo and VoltsHi bound the output voltage range
	VoltsLo, VoltsHi float64

	// SampleRate is the playback rate recorded in the output spec.
	// Zero picks 1/Pulse.DT when a pulse shape is set, otherwise the
	// generator default.
	SampleRate float64
}

// Synthesize converts a source grid into an arbitrary waveform spec
// under the given policy.  The output always carries an explicit sample
// rate, since playback rate is the physical knob for this use; it never
// carries per-sample times.  Deterministic for a fixed (source, policy).
func Synthesize(src Source, policy Policy) (arb.Spec, error) {
	var out arb.Spec
	if err := src.validate(); err != nil {
		return out, err
	}
	if policy.TargetCount < 0 {
		return out, &arb.SpecError{Reason: "target sample count must not be negative"}
	}
	if policy.VoltsHi <= policy.VoltsLo {
		return out, &arb.SpecError{Reason: "target voltage range is degenerate"}
	}

	samples := scan(src.Grid, policy.Scan, policy.Aggregate)
	if policy.Pulse != nil {
		samples = expandPulses(samples, *policy.Pulse, src.Lo)
	}
	for i, v := range samples {
		samples[i] = mapVoltage(v, src.Lo, src.Hi, policy.VoltsLo, policy.VoltsHi)
	}
	if policy.TargetCount > 0 {
		var err error
		samples, err = Resample(samples, policy.TargetCount)
		if err != nil {
			return out, err
		}
	}

	rate := policy.SampleRate
	if rate == 0 {
		if policy.Pulse != nil && policy.Pulse.DT > 0 {
			rate = 1 / policy.Pulse.DT
		} else {
			rate = arb.DefaultSampleRate
		}
	}
	out.SampleRate = rate
	out.Values = samples
	return out, nil
}

// scan flattens the grid per the traversal order and aggregation rule.
func scan(grid [][]float64, order ScanOrder, agg Aggregation) []float64 {
	rows := len(grid)
	cols := len(grid[0])
	var out []float64
	switch order {
	case ColMajor:
		if agg == Mean {
			out = make([]float64, 0, cols)
			for c := 0; c < cols; c++ {
				sum := 0.0
				for r := 0; r < rows; r++ {
					sum += grid[r][c]
				}
				out = append(out, sum/float64(rows))
			}
			return out
		}
		out = make([]float64, 0, rows*cols)
		for c := 0; c < cols; c++ {
			for r := 0; r < rows; r++ {
				out = append(out, grid[r][c])
			}
		}
		return out
	default: // RowMajor
		if agg == Mean {
			out = make([]float64, 0, rows)
			for r := 0; r < rows; r++ {
				sum := 0.0
				for c := 0; c < cols; c++ {
					sum += grid[r][c]
				}
				out = append(out, sum/float64(cols))
			}
			return out
		}
		out = make([]float64, 0, rows*cols)
		for r := 0; r < rows; r++ {
			out = append(out, grid[r]...)
		}
		return out
	}
}

// expandPulses turns each value into stepsOn copies followed by
// stepsGap samples at the source floor.
func expandPulses(values []float64, p PulseShape, floor float64) []float64 {
	stepsOn := int(p.PixelTime / p.DT)
	stepsGap := int(p.GapTime / p.DT)
	if stepsOn < 1 {
		stepsOn = 1
	}
	if stepsGap < 0 {
		stepsGap = 0
	}
	out := make([]float64, 0, len(values)*(stepsOn+stepsGap))
	for _, v := range values {
		for i := 0; i < stepsOn; i++ {
			out = append(out, v)
		}
		for i := 0; i < stepsGap; i++ {
			out = append(out, floor)
		}
	}
	return out
}

// mapVoltage affinely maps v from [srcLo, srcHi] onto [lo, hi],
// clamping at the edges.  Lossy but deterministic: out-of-range
// intensities saturate rather than producing voltages the generator
// would reject.
func mapVoltage(v, srcLo, srcHi, lo, hi float64) float64 {
	out := lo + (v-srcLo)*(hi-lo)/(srcHi-srcLo)
	if out < lo {
		return lo
	}
	if out > hi {
		return hi
	}
	return out
}

// Resample stretches or compresses values to exactly n samples by
// linear interpolation over the sample index.  A single input value
// simply repeats.
func Resample(values []float64, n int) ([]float64, error) {
	if n < 1 {
		return nil, &arb.SpecError{Reason: "target sample count must be at least 1"}
	}
	if len(values) == n {
		return values, nil
	}
	if len(values) == 1 {
		out := make([]float64, n)
		for i := range out {
			out[i] = values[0]
		}
		return out, nil
	}
	xs := make([]float64, len(values))
	for i := range xs {
		xs[i] = float64(i)
	}
	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, values); err != nil {
		return nil, err
	}
	out := make([]float64, n)
	if n == 1 {
		out[0] = values[0]
		return out, nil
	}
	scale := float64(len(values)-1) / float64(n-1)
	for i := range out {
		out[i] = pl.Predict(float64(i) * scale)
	}
	return out, nil
}

// Binarize thresholds a grid in place to {lo, hi}: cells above the cut
// become hi, the rest lo.  The cut is expressed as a fraction of the
// source range, matching the handwriting pipeline's 0.35 cut on [0,1]
// normalized pixels.
func Binarize(src Source, frac float64) Source {
	cut := src.Lo + frac*(src.Hi-src.Lo)
	for _, row := range src.Grid {
		for i, v := range row {
			if v > cut {
				row[i] = src.Hi
			} else {
				row[i] = src.Lo
			}
		}
	}
	return src
}
