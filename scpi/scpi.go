// Package scpi provides primitives for working with devices that
// have SCPI interfaces
package scpi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/oscilab/scopehal/comm"
)

const (
	timeout = 5 * time.Second

	tcpFrameSize = 1500

	// opcPollHz caps how hard we hammer *OPC? while waiting for a
	// long acquisition to finish
	opcPollHz = 10
)

// Transport is the command/query channel the waveform pipeline consumes.
// SCPI satisfies it; tests satisfy it with canned responses.
type Transport interface {
	// Write sends a command to the device
	Write(cmds ...string) error

	// ReadString sends a query and returns the response as text
	ReadString(cmds ...string) (string, error)

	// ReadBinaryBlock sends a query and returns the binary block payload
	ReadBinaryBlock(cmd string) ([]byte, error)
}

// SCPI is a type for encapsulating SCPI communication
type SCPI struct {
	Pool *comm.Pool

	// Handshaking indicates if the communication shall use handshaking,
	// where an error query is sent with every message
	// to ensure the device accepted the input
	Handshaking bool
}

// Write sends a command to the device.  if s.Handshaking == true,
// it also requests an error response and checks that it is OK.
// it is assumed this is used for set operations and not get.
func (s *SCPI) Write(cmds ...string) error {
	conn, err := s.Pool.Get()
	if err != nil {
		return err
	}
	defer func() { s.Pool.ReturnWithError(conn, err) }()
	// the timeout wraps the bare conn so the deadline reaches it;
	// the terminator goes on top
	var wrap io.ReadWriter
	wrap, err = comm.NewTimeout(conn, timeout)
	if err != nil {
		return err
	}
	wrap = comm.NewTerminator(wrap, '\n', '\n')
	if s.Handshaking {
		cmds = append([]string{"*CLS;"}, cmds...)
		cmds = append(cmds, ";:SYSTem:ERRor?")
	}
	str := strings.Join(cmds, " ")
	_, err = io.WriteString(wrap, str)
	if err != nil {
		return err
	}
	if s.Handshaking {
		buf := make([]byte, tcpFrameSize)
		n, err := wrap.Read(buf)
		if err != nil {
			return err
		}
		str := string(buf[:n])
		if !okErrResponse(str) {
			return fmt.Errorf("%s", str)
		}
	}
	return nil
}

// WriteRead is write, but with a read call after.  It is assumed that
// "get" calls use this underlying mechanism
func (s *SCPI) WriteRead(cmds ...string) ([]byte, error) {
	var resp []byte
	conn, err := s.Pool.Get()
	if err != nil {
		return resp, err
	}
	defer func() { s.Pool.ReturnWithError(conn, err) }()
	var wrap io.ReadWriter
	wrap, err = comm.NewTimeout(conn, timeout)
	if err != nil {
		return resp, err
	}
	wrap = comm.NewTerminator(wrap, '\n', '\n')
	if s.Handshaking {
		cmds = append([]string{"*CLS;"}, cmds...)
		cmds = append(cmds, ";:SYSTem:ERRor?")
	}
	str := strings.Join(cmds, " ")
	_, err = io.WriteString(wrap, str)
	if err != nil {
		return resp, err
	}
	buf := make([]byte, tcpFrameSize)
	n, err := wrap.Read(buf)
	if err != nil {
		return resp, err
	}
	resp = buf[:n]
	if s.Handshaking {
		pieces := bytes.Split(resp, []byte{';'})
		errS := string(pieces[len(pieces)-1])
		if !okErrResponse(errS) {
			return resp, fmt.Errorf("%s", errS)
		}
		return bytes.Join(pieces[:len(pieces)-1], []byte{}), nil
	}
	return resp, err
}

// ReadString sends a command to the device, then reads the response
// and returns it as a decoded ASCII or UTF-8 string
func (s *SCPI) ReadString(cmds ...string) (string, error) {
	resp, err := s.WriteRead(cmds...)
	if err == nil && len(resp) > 0 {
		if resp[len(resp)-1] == '\n' {
			resp = resp[:len(resp)-1]
		}
		if len(resp) > 0 && resp[len(resp)-1] == '\r' {
			resp = resp[:len(resp)-1]
		}
	}
	return string(resp), err
}

// ReadFloat sends a command to the device, then reads the
// response and parses it as a floating point value
func (s *SCPI) ReadFloat(cmds ...string) (float64, error) {
	resp, err := s.ReadString(cmds...)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(resp, 64)
}

// ReadBool sends a command to the device, then reads the
// response and parses it as a boolean
func (s *SCPI) ReadBool(cmds ...string) (bool, error) {
	resp, err := s.ReadString(cmds...)
	if err != nil {
		return false, err
	}
	return strconv.ParseBool(resp)
}

// ReadInt sends a command to the device, then reads the
// response and parses it as an integer
func (s *SCPI) ReadInt(cmds ...string) (int, error) {
	resp, err := s.ReadString(cmds...)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(resp)
}

// ReadBinaryBlock sends a query and reads an IEEE 488.2 definite-length
// block response: '#', one digit giving the length of the length field,
// the payload length in ASCII, then the raw payload and a trailing
// newline.  Handshaking is never used on the binary path; mixing an
// error query into a block transfer corrupts the framing.
func (s *SCPI) ReadBinaryBlock(cmd string) ([]byte, error) {
	var ret []byte
	conn, err := s.Pool.Get()
	if err != nil {
		return ret, err
	}
	defer func() { s.Pool.ReturnWithError(conn, err) }()
	_, err = conn.Write(append([]byte(cmd), '\n'))
	if err != nil {
		return ret, err
	}
	buf := make([]byte, tcpFrameSize)
	n, err := conn.Read(buf)
	if err != nil {
		return ret, err
	}
	if n < 2 {
		err = fmt.Errorf("scpi: block response was only %d bytes, expected >2", n)
		return ret, err
	}
	if buf[0] != '#' {
		err = fmt.Errorf("scpi: first byte in block response was %q, expected #", buf[0])
		return ret, err
	}
	ndigits := int(buf[1]) - '0'
	if ndigits < 1 || ndigits > 9 {
		err = fmt.Errorf("scpi: block length field digit %q out of range", buf[1])
		return ret, err
	}
	upper := 2 + ndigits
	dataBuf := buf[:n]
	if len(dataBuf) < upper {
		err = fmt.Errorf("scpi: block header truncated at %d bytes", n)
		return ret, err
	}
	nbytes, err := strconv.Atoi(string(dataBuf[2:upper]))
	if err != nil {
		return ret, err
	}
	dataBuf = dataBuf[upper:]
	for len(dataBuf) < nbytes+1 { // +1 for the trailing terminator
		buf := make([]byte, tcpFrameSize)
		n, err = conn.Read(buf)
		if err != nil {
			return ret, err
		}
		dataBuf = append(dataBuf, buf[:n]...)
	}
	return dataBuf[:nbytes], nil
}

// WriteBlock sends a command followed by an IEEE 488.2 definite-length
// block, the upload mirror of ReadBinaryBlock.  Used for MMEMory:DATA
// file transfers to the instrument.
func (s *SCPI) WriteBlock(prefix string, payload []byte) error {
	conn, err := s.Pool.Get()
	if err != nil {
		return err
	}
	defer func() { s.Pool.ReturnWithError(conn, err) }()
	lenS := strconv.Itoa(len(payload))
	msg := make([]byte, 0, len(prefix)+len(payload)+len(lenS)+4)
	msg = append(msg, prefix...)
	msg = append(msg, '#')
	msg = append(msg, strconv.Itoa(len(lenS))...)
	msg = append(msg, lenS...)
	msg = append(msg, payload...)
	msg = append(msg, '\n')
	_, err = conn.Write(msg)
	return err
}

// WriteOPC sends a command and blocks until the device reports the
// operation complete via *OPC?, polling at a bounded rate.  Used for
// single-shot acquisitions, which finish whenever the trigger does.
func (s *SCPI) WriteOPC(waitUpTo time.Duration, cmds ...string) error {
	err := s.Write(cmds...)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), waitUpTo)
	defer cancel()
	lim := rate.NewLimiter(rate.Limit(opcPollHz), 1)
	for {
		if err := lim.Wait(ctx); err != nil {
			return fmt.Errorf("scpi: operation did not complete within %v", waitUpTo)
		}
		resp, err := s.ReadString("*OPC?")
		if err != nil {
			return err
		}
		if strings.TrimSpace(resp) == "1" {
			return nil
		}
	}
}

// okErrResponse reports whether a SYSTem:ERRor? response indicates no
// error.  Keysight scopes answer "+0,...", Rohde & Schwarz answer "0,...".
func okErrResponse(s string) bool {
	return strings.HasPrefix(s, "+0") || strings.HasPrefix(s, "0,")
}

// Raw sends a command to the scope and returns a response if it was a
// query, else a blank string
func (s *SCPI) Raw(str string) (string, error) {
	prev := s.Handshaking
	s.Handshaking = false
	defer func() { s.Handshaking = prev }()
	if strings.Contains(str, "?") {
		return s.ReadString(str)
	}
	return "", s.Write(str)
}

// PopError gets a single error from the queue on the device
func (s *SCPI) PopError() error {
	str, err := s.ReadString("SYSTem:ERRor?")
	if err != nil {
		return err
	}
	if okErrResponse(str) {
		return nil
	}
	return fmt.Errorf("%s", str)
}

// AllErrors returns all errors from the device as a list
func (s *SCPI) AllErrors() []error {
	var errs []error
	var err error
	for {
		err = s.PopError()
		if err == nil {
			break
		}
		errs = append(errs, err)
	}
	return errs
}

// AllErrorsString is equivalent to AllErrors, but joining by newline.
// if there were no errors, the error return value is nil, otherwise
// it is the first error in the list and has no particular meaning
func (s *SCPI) AllErrorsString() (string, error) {
	errs := s.AllErrors()
	if len(errs) == 0 {
		return "", nil
	}
	strs := make([]string, len(errs))
	for i := 0; i < len(errs); i++ {
		strs[i] = errs[i].Error()
	}
	return strings.Join(strs, "\n"), errs[0]
}
