// Package oscilloscope provides type definitions and decoding for
// oscilloscope waveform captures.
//
// A capture arrives as a flat binary payload of 32-bit IEEE-754 floats
// plus the metadata needed to place each sample on the time and voltage
// axes.  Decode turns the pair into a Waveform; the axis math lives in
// SampleTime and ScaleVoltage so the scaling conventions can be tested
// (and swapped) without touching the decoder.
package oscilloscope

import (
	"encoding/binary"
	"math"
)

// DivisionsVisible is the number of horizontal (and vertical) divisions
// on the instrument graticule.  Ten for every scope we own.
const DivisionsVisible = 10

// ByteOrder describes the endianness the instrument reports for binary
// data transfers (FORMat:BORDer).
type ByteOrder int

const (
	// LSBFirst is little-endian transfer order
	LSBFirst ByteOrder = iota

	// MSBFirst is big-endian transfer order
	MSBFirst
)

func (b ByteOrder) String() string {
	if b == MSBFirst {
		return "MSBFirst"
	}
	return "LSBFirst"
}

func (b ByteOrder) order() binary.ByteOrder {
	if b == MSBFirst {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// ElementFormat describes the binary encoding of a single sample.
type ElementFormat int

// Float32 is the REAL,32 transfer format.  It is the only format the
// decoder speaks; scopes that ship WORD or BYTE data need their own path.
const Float32 ElementFormat = iota

// Size returns the width of one element in bytes.
func (e ElementFormat) Size() int {
	return 4
}

// AcquisitionMetadata carries everything needed to scale a raw capture
// payload into physical units.
type AcquisitionMetadata struct {
	// TimePerDiv is the horizontal scale in seconds per division
	TimePerDiv float64

	// Points is the record length the instrument reported for the capture
	Points int

	// HorizontalOffset is the trigger position offset in seconds;
	// the time axis is centered on it
	HorizontalOffset float64

	// VoltsPerDiv is the vertical scale in volts per division
	VoltsPerDiv float64

	// VerticalOffset is the channel offset in volts
	VerticalOffset float64

	// ByteOrder is the endianness of the payload
	ByteOrder ByteOrder

	// Format is the binary encoding of each element
	Format ElementFormat

	// RawCodes indicates the payload contains unscaled converter codes
	// rather than volts.  The MXO44 sends volts directly for REAL,32
	// transfers, so this is false in the ordinary path; scopes that ship
	// codes get ScaleVoltage applied to each sample.
	RawCodes bool
}

// Validate checks the metadata invariants.  The error is a *FormatError
// so callers see the same taxonomy as payload faults.
func (m AcquisitionMetadata) Validate() error {
	if m.Points < 1 {
		return &FormatError{Reason: "points must be at least 1", Points: m.Points}
	}
	if m.TimePerDiv <= 0 {
		return &FormatError{Reason: "time per division must be strictly positive", Points: m.Points}
	}
	if m.VoltsPerDiv <= 0 {
		return &FormatError{Reason: "volts per division must be strictly positive", Points: m.Points}
	}
	return nil
}

// TimeStep returns the sample spacing in seconds, the full capture span
// divided by the record length.
func (m AcquisitionMetadata) TimeStep() float64 {
	return m.TimePerDiv * DivisionsVisible / float64(m.Points)
}

// SampleTime computes the timestamp of sample i for a capture window
// centered on the horizontal offset.  Sample points/2 lands exactly on
// the offset; sample 0 is half the capture span before it.
func SampleTime(m AcquisitionMetadata, i int) float64 {
	dt := m.TimeStep()
	return m.HorizontalOffset + (float64(i)-float64(m.Points)/2)*dt
}

// ScaleVoltage converts a raw converter code to volts.  The sign
// convention is code*(voltsPerDiv/DivisionsVisible) - verticalOffset:
// a positive channel offset moves the trace down, matching the front
// panel.  Not applied when the instrument already reports volts.
func ScaleVoltage(code, voltsPerDiv, verticalOffset float64) float64 {
	return code*(voltsPerDiv/DivisionsVisible) - verticalOffset
}

// Sample is a single point of a capture in physical units.
type Sample struct {
	// Time is the timestamp in seconds relative to the trigger
	Time float64 `json:"time"`

	// Voltage is the sample value in volts
	Voltage float64 `json:"voltage"`
}

// Waveform is an immutable, ordered capture record.  The index of a
// sample is its acquisition order.
type Waveform struct {
	// Meta is the metadata the waveform was decoded under
	Meta AcquisitionMetadata `json:"meta"`

	// Samples is the decoded data, length == Meta.Points
	Samples []Sample `json:"samples"`
}

// Decode converts a raw binary capture payload into a Waveform.
//
// The payload must be a flat array of 32-bit IEEE-754 floats in the
// byte order given by the metadata, and must contain exactly
// meta.Points elements.  Anything else is a *FormatError; there is no
// truncation or padding, and no retry.  Decode is pure: the same
// (meta, raw) pair always yields the same Waveform.
func Decode(meta AcquisitionMetadata, raw []byte) (Waveform, error) {
	var wf Waveform
	if err := meta.Validate(); err != nil {
		return wf, err
	}
	size := meta.Format.Size()
	if len(raw)%size != 0 {
		return wf, &FormatError{
			Reason:  "payload length is not a multiple of the element size",
			Length:  len(raw),
			ElemLen: size,
			Points:  meta.Points,
		}
	}
	n := len(raw) / size
	if n != meta.Points {
		return wf, &FormatError{
			Reason:  "decoded element count disagrees with the reported record length",
			Length:  len(raw),
			ElemLen: size,
			Points:  meta.Points,
			Decoded: n,
		}
	}
	ord := meta.ByteOrder.order()
	samples := make([]Sample, n)
	for i := 0; i < n; i++ {
		bits := ord.Uint32(raw[i*size:])
		v := float64(math.Float32frombits(bits))
		if meta.RawCodes {
			v = ScaleVoltage(v, meta.VoltsPerDiv, meta.VerticalOffset)
		}
		samples[i] = Sample{Time: SampleTime(meta, i), Voltage: v}
	}
	wf.Meta = meta
	wf.Samples = samples
	return wf, nil
}
