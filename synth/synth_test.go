package synth

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oscilab/scopehal/arb"
)

func bytesSource() Source {
	return Source{
		Grid: [][]float64{
			{0, 128, 255},
			{255, 128, 0},
		},
		Lo: 0,
		Hi: 255,
	}
}

func bipolar(count int) Policy {
	return Policy{
		Scan:        RowMajor,
		Aggregate:   Concatenate,
		TargetCount: count,
		VoltsLo:     -1,
		VoltsHi:     1,
	}
}

func TestVoltageMappingEndpointsAndMidpoint(t *testing.T) {
	spec, err := Synthesize(bytesSource(), bipolar(6))
	require.NoError(t, err)
	require.Len(t, spec.Values, 6)
	assert.Equal(t, -1.0, spec.Values[0])
	assert.Equal(t, 1.0, spec.Values[2])
	assert.InDelta(t, 0.00392, spec.Values[1], 1e-5)
}

func TestVoltageMappingClampsOutOfRange(t *testing.T) {
	src := bytesSource()
	src.Grid[0][0] = -40
	src.Grid[0][2] = 300
	spec, err := Synthesize(src, bipolar(6))
	require.NoError(t, err)
	assert.Equal(t, -1.0, spec.Values[0])
	assert.Equal(t, 1.0, spec.Values[2])
}

func TestResampleHitsTargetCountExactly(t *testing.T) {
	in := make([]float64, 28)
	for i := range in {
		in[i] = float64(i)
	}
	out, err := Resample(in, 56)
	require.NoError(t, err)
	require.Len(t, out, 56)
	// linear interpolation of a ramp stays a nondecreasing ramp with
	// the original endpoints
	assert.Equal(t, 0.0, out[0])
	assert.InDelta(t, 27.0, out[55], 1e-12)
	for i := 1; i < len(out); i++ {
		if out[i] < out[i-1] {
			t.Fatalf("resampled ramp decreases at %d: %G < %G", i, out[i], out[i-1])
		}
	}
}

func TestResampleDownAndIdentityAndSingleton(t *testing.T) {
	in := []float64{0, 1, 2, 3}
	out, err := Resample(in, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 3}, out)

	out, err = Resample(in, 4)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	out, err = Resample([]float64{7}, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{7, 7, 7}, out)
}

func TestScanOrders(t *testing.T) {
	src := bytesSource()
	rm := scan(src.Grid, RowMajor, Concatenate)
	assert.Equal(t, []float64{0, 128, 255, 255, 128, 0}, rm)
	cm := scan(src.Grid, ColMajor, Concatenate)
	assert.Equal(t, []float64{0, 255, 128, 128, 255, 0}, cm)
}

func TestMeanAggregation(t *testing.T) {
	src := bytesSource()
	rows := scan(src.Grid, RowMajor, Mean)
	require.Len(t, rows, 2)
	assert.InDelta(t, (0+128+255)/3.0, rows[0], 1e-12)
	cols := scan(src.Grid, ColMajor, Mean)
	require.Len(t, cols, 3)
	assert.InDelta(t, 127.5, cols[0], 1e-12)
}

func TestPulseExpansion(t *testing.T) {
	src := Source{Grid: [][]float64{{1, 0}}, Lo: 0, Hi: 1}
	p := bipolar(12)
	p.VoltsLo = 0
	p.Pulse = &PulseShape{PixelTime: 5, GapTime: 1, DT: 1}
	spec, err := Synthesize(src, p)
	require.NoError(t, err)
	require.Len(t, spec.Values, 12)
	// first pixel: 5 on at full scale plus 1 gap at the floor
	assert.Equal(t, []float64{1, 1, 1, 1, 1, 0}, spec.Values[:6])
	// second pixel is dark: everything at the floor
	assert.Equal(t, []float64{0, 0, 0, 0, 0, 0}, spec.Values[6:])
	// rate defaults to 1/DT
	assert.Equal(t, 1.0, spec.SampleRate)
}

func TestSynthesizeZeroCountKeepsNaturalLength(t *testing.T) {
	spec, err := Synthesize(bytesSource(), bipolar(0))
	require.NoError(t, err)
	// 2x3 grid concatenated row-major: one sample per cell
	require.Len(t, spec.Values, 6)
}

func TestSynthesizeDeterministic(t *testing.T) {
	a, err := Synthesize(bytesSource(), bipolar(17))
	require.NoError(t, err)
	b, err := Synthesize(bytesSource(), bipolar(17))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSynthesizeAlwaysEmitsRate(t *testing.T) {
	p := bipolar(6)
	p.SampleRate = 2e6
	spec, err := Synthesize(bytesSource(), p)
	require.NoError(t, err)
	assert.Equal(t, 2e6, spec.SampleRate)
	assert.Empty(t, spec.Times)
	require.NoError(t, spec.Validate())

	p.SampleRate = 0
	spec, err = Synthesize(bytesSource(), p)
	require.NoError(t, err)
	assert.Equal(t, arb.DefaultSampleRate, spec.SampleRate)
}

func TestSynthesizeRejectsBadPolicy(t *testing.T) {
	var se *arb.SpecError
	_, err := Synthesize(bytesSource(), bipolar(-1))
	require.ErrorAs(t, err, &se)

	p := bipolar(10)
	p.VoltsLo, p.VoltsHi = 1, 1
	_, err = Synthesize(bytesSource(), p)
	require.ErrorAs(t, err, &se)

	_, err = Synthesize(Source{Lo: 0, Hi: 1}, bipolar(10))
	require.ErrorAs(t, err, &se)

	ragged := Source{Grid: [][]float64{{1, 2}, {3}}, Lo: 0, Hi: 1}
	_, err = Synthesize(ragged, bipolar(10))
	require.ErrorAs(t, err, &se)
}

func TestBinarize(t *testing.T) {
	src := Source{Grid: [][]float64{{0.1, 0.36, 0.9}}, Lo: 0, Hi: 1}
	out := Binarize(src, DefaultThreshold)
	assert.Equal(t, []float64{0, 1, 1}, out.Grid[0])
}

func TestFromImageLuminanceRange(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 2, 1))
	img.SetGray(0, 0, color.Gray{Y: 0})
	img.SetGray(1, 0, color.Gray{Y: 255})
	src := FromImage(img)
	assert.Equal(t, 0.0, src.Grid[0][0])
	assert.Equal(t, 255.0, src.Grid[0][1])
	assert.Equal(t, 0.0, src.Lo)
	assert.Equal(t, 255.0, src.Hi)
}
