package scpi

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/oscilab/scopehal/comm"
)

// duplex is a fake instrument connection: reads drain the canned
// response, writes accumulate for inspection.
type duplex struct {
	in  bytes.Buffer
	out bytes.Buffer
}

func (d *duplex) Read(b []byte) (int, error)  { return d.in.Read(b) }
func (d *duplex) Write(b []byte) (int, error) { return d.out.Write(b) }
func (d *duplex) Close() error                { return nil }

func fakeSCPI(response []byte) (*SCPI, *duplex) {
	d := &duplex{}
	d.in.Write(response)
	maker := func() (io.ReadWriteCloser, error) { return d, nil }
	pool := comm.NewPool(1, time.Hour, maker)
	return &SCPI{Pool: pool}, d
}

func TestReadStringStripsTerminators(t *testing.T) {
	s, d := fakeSCPI([]byte("MXO44\r\n"))
	resp, err := s.ReadString("*IDN?")
	if err != nil {
		t.Fatal(err)
	}
	if resp != "MXO44" {
		t.Errorf("expected MXO44, got %q", resp)
	}
	if d.out.String() != "*IDN?\n" {
		t.Errorf("expected terminated command on the wire, got %q", d.out.String())
	}
}

func TestWriteHandshakingAcceptsZero(t *testing.T) {
	s, d := fakeSCPI([]byte("0,\"No error\"\n"))
	s.Handshaking = true
	err := s.Write("CHAN1:STAT ON")
	if err != nil {
		t.Fatal(err)
	}
	wire := d.out.String()
	if wire != "*CLS; CHAN1:STAT ON ;:SYSTem:ERRor?\n" {
		t.Errorf("unexpected wire format %q", wire)
	}
}

func TestWriteHandshakingSurfacesDeviceError(t *testing.T) {
	s, _ := fakeSCPI([]byte("-113,\"Undefined header\"\n"))
	s.Handshaking = true
	err := s.Write("BOGUS:CMD")
	if err == nil {
		t.Fatal("expected the device error to propagate")
	}
}

func TestReadBinaryBlock(t *testing.T) {
	payload := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	resp := append([]byte("#212"), payload...)
	resp = append(resp, '\n')
	s, d := fakeSCPI(resp)
	got, err := s.ReadBinaryBlock("CHAN:DATA?")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("payload mismatch: %v", got)
	}
	if d.out.String() != "CHAN:DATA?\n" {
		t.Errorf("unexpected command on the wire %q", d.out.String())
	}
}

func TestReadBinaryBlockRejectsMissingHash(t *testing.T) {
	s, _ := fakeSCPI([]byte("12345678\n"))
	_, err := s.ReadBinaryBlock("CHAN:DATA?")
	if err == nil {
		t.Fatal("expected an error for a response without the # marker")
	}
}

func TestReadBinaryBlockRejectsShortResponse(t *testing.T) {
	s, _ := fakeSCPI([]byte("#"))
	_, err := s.ReadBinaryBlock("CHAN:DATA?")
	if err == nil {
		t.Fatal("expected an error for a truncated response")
	}
}
