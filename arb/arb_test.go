package arb

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rateSpec() Spec {
	return Spec{
		SampleRate: 1e6,
		Values:     []float64{0, 0.5, 1, 0.5, 0, -0.5, -1, -0.5},
	}
}

func timesSpec() Spec {
	return Spec{
		Times:  []float64{0, 1e-6, 2e-6, 3.5e-6},
		Values: []float64{0.25, 0.5, -0.125, 1},
	}
}

func TestRoundTripRateHeader(t *testing.T) {
	in := rateSpec()
	text, err := Encode(in, RateHeader)
	require.NoError(t, err)
	out, err := Decode(text)
	require.NoError(t, err)
	assert.Equal(t, in.SampleRate, out.SampleRate)
	assert.Equal(t, in.Values, out.Values)
	assert.Empty(t, out.Times)
}

func TestRoundTripTimeVoltagePairs(t *testing.T) {
	in := timesSpec()
	text, err := Encode(in, TimeVoltagePairs)
	require.NoError(t, err)
	out, err := Decode(text)
	require.NoError(t, err)
	assert.Equal(t, in.Times, out.Times)
	assert.Equal(t, in.Values, out.Values)
	assert.Zero(t, out.SampleRate)
}

func TestRoundTripVoltageOnlyPreservesValues(t *testing.T) {
	in := rateSpec()
	text, err := Encode(in, VoltageOnly)
	require.NoError(t, err)
	out, err := Decode(text)
	require.NoError(t, err)
	assert.Equal(t, in.Values, out.Values)
	// timing is out of band for form 3; the decoder assumes the default
	assert.Equal(t, DefaultSampleRate, out.SampleRate)
}

func TestRoundTripAwkwardFloats(t *testing.T) {
	in := Spec{
		SampleRate: 123456.789,
		Values:     []float64{1.0 / 3.0, math.Pi, 1e-300, -2.2250738585072014e-308},
	}
	text, err := Encode(in, RateHeader)
	require.NoError(t, err)
	out, err := Decode(text)
	require.NoError(t, err)
	for i := range in.Values {
		assert.InEpsilon(t, in.Values[i], out.Values[i], 1e-9)
	}
}

func TestFormDetectionRateHeader(t *testing.T) {
	out, err := Decode("Rate = 500000\n0.1\n0.2\n0.3\n")
	require.NoError(t, err)
	assert.Equal(t, 500000.0, out.SampleRate)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, out.Values)
	assert.Empty(t, out.Times)
}

func TestFormDetectionPairs(t *testing.T) {
	out, err := Decode("0.0,0.5\n1e-6,0.6\n2e-6,0.4\n")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1e-6, 2e-6}, out.Times)
	assert.Equal(t, []float64{0.5, 0.6, 0.4}, out.Values)
}

func TestDecodeTrailingCommentsIgnored(t *testing.T) {
	text := "Rate = 250000  // Sample rate for the ARB file in Hz\n// full scale\n1\n0 // off\n"
	out, err := Decode(text)
	require.NoError(t, err)
	assert.Equal(t, 250000.0, out.SampleRate)
	assert.Equal(t, []float64{1, 0}, out.Values)
}

func TestDecodeEmptyInput(t *testing.T) {
	_, err := Decode("")
	var pe *ParseError
	require.ErrorAs(t, err, &pe)

	_, err = Decode("\n// only a comment\n\n")
	require.ErrorAs(t, err, &pe)
}

func TestDecodeMalformedLineCarriesLineNumber(t *testing.T) {
	_, err := Decode("Rate = 500000\n0.1\nbogus\n0.3\n")
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 3, pe.Line)
	assert.Equal(t, "bogus", pe.Text)
}

func TestDecodeInvalidSpecIsParseError(t *testing.T) {
	// the file parsed but describes an impossible waveform; the caller
	// handed us text, so the fault surfaces as a parse error anchored
	// at the offending line, not a spec error
	_, err := Decode("Rate = 0\n0.1\n0.2\n")
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 1, pe.Line)
	assert.Contains(t, pe.Reason, "rate")

	_, err = Decode("Rate = -250000\n0.1\n0.2\n")
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 1, pe.Line)
}

func TestDecodeNonMonotonicTimes(t *testing.T) {
	_, err := Decode("0,0.5\n2e-6,0.6\n1e-6,0.4\n")
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 3, pe.Line)
}

func TestDecodeMixedShapeRejected(t *testing.T) {
	// pair form selected by the first line; a bare voltage later is a
	// parse error, not a reason to re-detect
	_, err := Decode("0,0.5\n0.6\n")
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 2, pe.Line)
}

func TestEncodeFormFieldMismatch(t *testing.T) {
	var se *SpecError
	_, err := Encode(timesSpec(), RateHeader)
	require.ErrorAs(t, err, &se)

	_, err = Encode(rateSpec(), TimeVoltagePairs)
	require.ErrorAs(t, err, &se)
}

func TestValidateRejectsDegenerateSpecs(t *testing.T) {
	var se *SpecError
	cases := []Spec{
		{},
		{SampleRate: 1e6},
		{Values: []float64{1}},
		{SampleRate: 1e6, Times: []float64{0}, Values: []float64{1}},
		{Times: []float64{0, 0}, Values: []float64{1, 2}},
		{Times: []float64{0}, Values: []float64{1, 2}},
	}
	for i, s := range cases {
		err := s.Validate()
		require.ErrorAs(t, err, &se, "case %d", i)
	}
}

func TestEncodeNeverReorders(t *testing.T) {
	in := Spec{SampleRate: 1e3, Values: []float64{3, 1, 2}}
	text, err := Encode(in, VoltageOnly)
	require.NoError(t, err)
	assert.Equal(t, "3\n1\n2\n", text)
}

func TestRateDerivedFromTimes(t *testing.T) {
	s := Spec{Times: []float64{0, 1e-6, 2e-6, 3e-6}, Values: []float64{0, 1, 0, 1}}
	rate, err := s.Rate()
	require.NoError(t, err)
	assert.InEpsilon(t, 1e6, rate, 1e-9)
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wave.csv")
	require.NoError(t, WriteFile(path, rateSpec(), RateHeader))

	out, err := DecodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, rateSpec().Values, out.Values)

	// no temp droppings left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, strings.HasPrefix(entries[0].Name(), ".arb-"))
}

func TestWriteFileRejectsBadSpecWithoutCreating(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wave.csv")
	err := WriteFile(path, Spec{}, VoltageOnly)
	var se *SpecError
	require.ErrorAs(t, err, &se)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
