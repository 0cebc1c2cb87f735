// Package comm provides connection plumbing for talking to bench
// instruments: a reclaiming connection pool, termination and deadline
// wrappers, and connection makers for TCP and RS232 links.
package comm

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"net"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/tarm/serial"
)

// ErrTerminatorNotFound is generated when the termination byte is not
// found in a response
var ErrTerminatorNotFound = errors.New("termination byte not found")

// Terminator wraps a ReadWriter, appending the Tx terminator to every
// write and consuming through the Rx terminator on reads, stripping it
// from the returned data.
type Terminator struct {
	rw     io.ReadWriter
	tx, rx byte
}

// NewTerminator returns a Terminator around rw with the given
// transmit and receive termination bytes.
func NewTerminator(rw io.ReadWriter, tx, rx byte) *Terminator {
	return &Terminator{rw: rw, tx: tx, rx: rx}
}

// Write sends b followed by the Tx terminator.
func (t *Terminator) Write(b []byte) (int, error) {
	n, err := t.rw.Write(append(b, t.tx))
	if n > 0 {
		// do not count the terminator against the caller's buffer
		n--
	}
	return n, err
}

// Read scans the stream through the Rx terminator and copies the
// response, terminator stripped, into b.
func (t *Terminator) Read(b []byte) (int, error) {
	buf, err := bufio.NewReader(t.rw).ReadBytes(t.rx)
	if err != nil {
		return 0, err
	}
	if !bytes.HasSuffix(buf, []byte{t.rx}) {
		return copy(b, buf), ErrTerminatorNotFound
	}
	return copy(b, buf[:len(buf)-1]), nil
}

// Timeout wraps a ReadWriter whose concrete type is deadline-capable
// (a net.Conn), refreshing the read and write deadlines before each
// operation.
type Timeout struct {
	rw      io.ReadWriter
	conn    net.Conn
	timeout time.Duration
}

// NewTimeout wraps rw with per-operation deadlines.  If rw does not
// terminate in a net.Conn the wrapper passes through unchanged, since
// serial ports carry their timeout in their own config.
func NewTimeout(rw io.ReadWriter, timeout time.Duration) (*Timeout, error) {
	t := &Timeout{rw: rw, timeout: timeout}
	if c, ok := rw.(net.Conn); ok {
		t.conn = c
	}
	return t, nil
}

func (t *Timeout) Write(b []byte) (int, error) {
	if t.conn != nil {
		t.conn.SetWriteDeadline(time.Now().Add(t.timeout))
	}
	return t.rw.Write(b)
}

func (t *Timeout) Read(b []byte) (int, error) {
	if t.conn != nil {
		t.conn.SetReadDeadline(time.Now().Add(t.timeout))
	}
	return t.rw.Read(b)
}

// TCPSetup opens a new TCP connection with a timeout on connect.
func TCPSetup(addr string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("tcp", addr, timeout)
}

// BackingOffTCPConnMaker returns a CreationFunc that dials addr with
// exponential backoff.  Some instruments refuse connections while
// digesting a previous session; thrashing them makes it worse.
func BackingOffTCPConnMaker(addr string, timeout time.Duration) CreationFunc {
	return func() (io.ReadWriteCloser, error) {
		var conn net.Conn
		op := func() error {
			var err error
			conn, err = TCPSetup(addr, timeout)
			return err
		}
		err := backoff.Retry(op, &backoff.ExponentialBackOff{
			InitialInterval:     25 * time.Millisecond,
			RandomizationFactor: 0,
			Multiplier:          2,
			MaxInterval:         1 * time.Second,
			MaxElapsedTime:      3 * time.Second,
			Clock:               backoff.SystemClock})
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// SerialConnMaker returns a CreationFunc that opens the serial port
// described by conf.
func SerialConnMaker(conf *serial.Config) CreationFunc {
	return func() (io.ReadWriteCloser, error) {
		return serial.OpenPort(conf)
	}
}
