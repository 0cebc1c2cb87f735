/*Package usbtmc implements datagram encoding and decoding for USB Test
and Measurement Class devices, sized for SCPI traffic to and from a
bench oscilloscope plugged in over USB rather than LAN.

Each write is wrapped in a DEV_DEP_MSG_OUT bulk-out header and padded to
4-byte alignment; each read first posts a REQUEST_DEV_DEP_MSG_IN header
on the out endpoint and then strips the 12-byte reply header from the in
endpoint.  Multi-transfer reads are the caller's loop: Device satisfies
io.ReadWriteCloser, so it plugs into the comm pool and the terminator
wrapper like any TCP connection.
*/
package usbtmc

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/google/gousb"
)

const (
	reserved = 0x00

	// msgDevDepOut and msgReqDevDepIn are the MsgID values from the
	// USBTMC standard, Table 2
	msgDevDepOut   = 0x01
	msgReqDevDepIn = 0x02

	headerLen = 12

	// transferSize is the read buffer we advertise to the device
	transferSize = 1024 * 1024
)

// MXO44 is the USB identity of the R&S MXO44 oscilloscope.
var MXO44 = ID{VID: 0x0AAD, PID: 0x0197}

// ID is a USB vendor/product pair.
type ID struct {
	VID, PID uint16
}

// bTagGen is a concurrent-safe bTag generator.  Tags increment per
// message and skip zero, per standard Table 1.
type bTagGen struct {
	sync.Mutex
	value byte
}

func (b *bTagGen) next() byte {
	b.Lock()
	defer b.Unlock()
	b.value++
	if b.value == 0 {
		b.value = 1
	}
	return b.value
}

// invbTag computes the bitwise inversion of a btag, standard Table 1 offset 2
func invbTag(b byte) byte {
	return b ^ 0xff
}

// encBulkOutHeader creates the header defined in USBTMC standard, Table 3
func encBulkOutHeader(tag byte, datalen int) [headerLen]byte {
	out := [headerLen]byte{}
	out[0] = msgDevDepOut
	out[1] = tag
	out[2] = invbTag(tag)
	out[3] = reserved
	binary.LittleEndian.PutUint32(out[4:8], uint32(datalen))
	out[8] = 0x01 // end of message
	return out
}

// encBulkInHeader creates the header defined in USBTMC standard, Table 4.
// terminator, when non-nil, asks the device to end the datagram on it.
func encBulkInHeader(tag byte, bufsize int, terminator *byte) [headerLen]byte {
	out := [headerLen]byte{}
	out[0] = msgReqDevDepIn
	out[1] = tag
	out[2] = invbTag(tag)
	out[3] = reserved
	binary.LittleEndian.PutUint32(out[4:8], uint32(bufsize))
	if terminator != nil {
		out[8] = 0x02
		out[9] = *terminator
	}
	return out
}

// Device is a USBTMC instrument connection exposing io.ReadWriteCloser.
type Device struct {
	tagger bTagGen
	in     *gousb.InEndpoint
	out    *gousb.OutEndpoint
	device *gousb.Device
	iface  *gousb.Interface
	ctx    *gousb.Context
	closer func()

	// leftover payload from a bulk-in transfer larger than the
	// caller's buffer
	pending []byte
}

// Open connects to the instrument with the given USB identity.
func Open(id ID) (*Device, error) {
	d := &Device{}
	ctx := gousb.NewContext()
	d.ctx = ctx
	var err error
	d.device, err = ctx.OpenDeviceWithVIDPID(gousb.ID(id.VID), gousb.ID(id.PID))
	if err != nil {
		ctx.Close()
		return nil, err
	}
	if d.device == nil {
		ctx.Close()
		return nil, fmt.Errorf("usbtmc: no device %04x:%04x attached", id.VID, id.PID)
	}
	err = d.device.SetAutoDetach(true)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.iface, d.closer, err = d.device.DefaultInterface()
	if err != nil {
		d.Close()
		return nil, err
	}
	d.in, err = d.iface.InEndpoint(2)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.out, err = d.iface.OutEndpoint(2)
	if err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

// Maker returns a comm.CreationFunc-shaped closure for pooling USBTMC
// connections the same way TCP ones are pooled.
func Maker(id ID) func() (io.ReadWriteCloser, error) {
	return func() (io.ReadWriteCloser, error) {
		return Open(id)
	}
}

// Write frames b in a bulk-out header, pads to 4-byte alignment, and
// sends it on the out endpoint.
func (d *Device) Write(b []byte) (int, error) {
	const alignment = 4
	hdr := encBulkOutHeader(d.tagger.next(), len(b))
	msg := append(hdr[:], b...)
	if residual := len(msg) % alignment; residual > 0 {
		msg = append(msg, make([]byte, alignment-residual)...)
	}
	_, err := d.out.Write(msg)
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

// Read requests a device-dependent message and copies its payload into
// b.  Payload beyond len(b) is buffered for the next call, so large
// binary blocks read out across multiple calls like a stream.
func (d *Device) Read(b []byte) (int, error) {
	if len(d.pending) > 0 {
		n := copy(b, d.pending)
		d.pending = d.pending[n:]
		return n, nil
	}
	term := byte('\n')
	hdr := encBulkInHeader(d.tagger.next(), transferSize, &term)
	n, err := d.out.Write(hdr[:])
	if err != nil {
		return 0, err
	}
	if n < headerLen {
		return 0, fmt.Errorf("usbtmc: wrote %d of %d header bytes for read request", n, headerLen)
	}
	buf := make([]byte, transferSize)
	n, err = d.in.Read(buf)
	if err != nil {
		return 0, err
	}
	if n < headerLen {
		return 0, fmt.Errorf("usbtmc: received %d bytes, need at least %d to form a header", n, headerLen)
	}
	// actual payload length lives in the reply header; trailing
	// alignment bytes must not leak to the caller
	payloadLen := int(binary.LittleEndian.Uint32(buf[4:8]))
	payload := buf[headerLen:n]
	if payloadLen < len(payload) {
		payload = payload[:payloadLen]
	}
	copied := copy(b, payload)
	if copied < len(payload) {
		d.pending = append(d.pending[:0], payload[copied:]...)
	}
	return copied, nil
}

// Close releases the interface and the underlying USB context.
func (d *Device) Close() error {
	if d.closer != nil {
		d.closer()
	}
	var err error
	if d.device != nil {
		err = d.device.Close()
	}
	if d.ctx != nil {
		if err2 := d.ctx.Close(); err == nil {
			err = err2
		}
	}
	return err
}
