package oscilloscope

import (
	"bytes"
	"encoding/binary"
	"math"
	"strings"
	"testing"
)

func meta1000() AcquisitionMetadata {
	return AcquisitionMetadata{
		TimePerDiv:  1e-6,
		Points:      1000,
		VoltsPerDiv: 0.1,
		ByteOrder:   LSBFirst,
		Format:      Float32,
	}
}

func payload(order binary.ByteOrder, values []float32) []byte {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		order.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func ramp(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i)
	}
	return out
}

func TestSampleTimeCentersWindow(t *testing.T) {
	m := meta1000()
	t0 := SampleTime(m, 0)
	tLast := SampleTime(m, 999)
	if math.Abs(t0 - -5e-6) > 1e-18 {
		t.Errorf("expected first sample at -5e-6 s, got %G", t0)
	}
	if math.Abs(tLast-4.99e-6) > 1e-18 {
		t.Errorf("expected last sample at 4.99e-6 s, got %G", tLast)
	}
}

func TestSampleTimeHonorsHorizontalOffset(t *testing.T) {
	m := meta1000()
	m.HorizontalOffset = 2e-6
	mid := SampleTime(m, 500)
	if math.Abs(mid-2e-6) > 1e-18 {
		t.Errorf("expected center sample at the horizontal offset, got %G", mid)
	}
}

func TestScaleVoltageSignConvention(t *testing.T) {
	// 10 divisions full scale at 0.5 V/div, code 20 => 1 V before offset
	v := ScaleVoltage(20, 0.5, 0.25)
	if math.Abs(v-0.75) > 1e-15 {
		t.Errorf("expected 0.75 V, got %G", v)
	}
}

func TestDecodeRoundTripsValues(t *testing.T) {
	vals := []float32{0.5, -0.25, 0.125, 1.5}
	m := meta1000()
	m.Points = len(vals)
	wf, err := Decode(m, payload(binary.LittleEndian, vals))
	if err != nil {
		t.Fatal(err)
	}
	for i, s := range wf.Samples {
		if s.Voltage != float64(vals[i]) {
			t.Errorf("sample %d: expected %G, got %G", i, vals[i], s.Voltage)
		}
	}
}

func TestDecodeBigEndian(t *testing.T) {
	vals := []float32{1, 2, 3}
	m := meta1000()
	m.Points = 3
	m.ByteOrder = MSBFirst
	wf, err := Decode(m, payload(binary.BigEndian, vals))
	if err != nil {
		t.Fatal(err)
	}
	if wf.Samples[2].Voltage != 3 {
		t.Errorf("expected 3 V, got %G", wf.Samples[2].Voltage)
	}
}

func TestDecodeRawCodesApplyScaling(t *testing.T) {
	m := meta1000()
	m.Points = 1
	m.VoltsPerDiv = 1.0
	m.VerticalOffset = 0.5
	m.RawCodes = true
	wf, err := Decode(m, payload(binary.LittleEndian, []float32{10}))
	if err != nil {
		t.Fatal(err)
	}
	// 10 * (1/10) - 0.5
	if math.Abs(wf.Samples[0].Voltage-0.5) > 1e-15 {
		t.Errorf("expected 0.5 V, got %G", wf.Samples[0].Voltage)
	}
}

func TestDecodeRejectsRaggedPayload(t *testing.T) {
	m := meta1000()
	raw := payload(binary.LittleEndian, ramp(1000))
	_, err := Decode(m, raw[:len(raw)-1])
	if err == nil {
		t.Fatal("expected an error for a payload that is not a multiple of 4 bytes")
	}
	if _, ok := err.(*FormatError); !ok {
		t.Errorf("expected *FormatError, got %T", err)
	}
}

func TestDecodeRejectsCountMismatch(t *testing.T) {
	m := meta1000()
	_, err := Decode(m, payload(binary.LittleEndian, ramp(999)))
	fe, ok := err.(*FormatError)
	if !ok {
		t.Fatalf("expected *FormatError, got %v", err)
	}
	if fe.Decoded != 999 || fe.Points != 1000 {
		t.Errorf("expected the error to carry 999/1000, got %d/%d", fe.Decoded, fe.Points)
	}
}

func TestDecodeRejectsBadMetadata(t *testing.T) {
	cases := []AcquisitionMetadata{
		{TimePerDiv: 1e-6, Points: 0, VoltsPerDiv: 1},
		{TimePerDiv: 0, Points: 10, VoltsPerDiv: 1},
		{TimePerDiv: 1e-6, Points: 10, VoltsPerDiv: 0},
	}
	for i, m := range cases {
		if _, err := Decode(m, nil); err == nil {
			t.Errorf("case %d: expected invalid metadata to be rejected", i)
		}
	}
}

func TestDecodeDeterministic(t *testing.T) {
	m := meta1000()
	raw := payload(binary.LittleEndian, ramp(1000))
	a, err := Decode(m, raw)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Decode(m, raw)
	if err != nil {
		t.Fatal(err)
	}
	for i := range a.Samples {
		if a.Samples[i] != b.Samples[i] {
			t.Fatalf("sample %d differs between identical decodes", i)
		}
	}
}

func TestEncodeCSVShape(t *testing.T) {
	m := meta1000()
	m.Points = 2
	wf, err := Decode(m, payload(binary.LittleEndian, []float32{0.5, -0.5}))
	if err != nil {
		t.Fatal(err)
	}
	buf := bytes.Buffer{}
	err = wf.EncodeCSV(&buf)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	// 6 comment lines, 1 column header, 2 samples
	if len(lines) != 9 {
		t.Fatalf("expected 9 lines, got %d", len(lines))
	}
	if lines[6] != "Time (s),Voltage (V)" {
		t.Errorf("unexpected column header %q", lines[6])
	}
	if !strings.HasSuffix(lines[7], ",0.5") {
		t.Errorf("unexpected first data line %q", lines[7])
	}
}
