// Package w5500 drives a WIZnet W5500 hardwired TCP/IP Ethernet controller
// over SPI: chip initialization, the eight-socket allocator, and UDP/TCP/
// MACRAW endpoints built on the chip's own protocol offload.
//
// The package depends only on periph.io/x/periph's conn, conn/gpio and
// conn/physic packages for the SPI transfer, chip-select and clock-speed
// primitives; it owns no
// host-specific SPI or GPIO driver itself, treating the SPI master and the
// chip-select GPIO as external collaborators supplied by the caller.
package w5500

import (
	"periph.io/x/periph/conn"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/physic"
)

// DefaultClockSpeed is the W5500's rated maximum SPI clock, for passing to
// spi.Port.Connect's maxHz parameter (as int64(DefaultClockSpeed/physic.Hertz)).
const DefaultClockSpeed physic.Frequency = 33 * physic.MegaHertz

// Bus frames a logical block+address+payload request onto the SPI wire.
// Two implementations are provided: NewVDMBus (Variable Data Mode, one SPI
// transaction per frame) and NewFDMBus (Fixed Data Mode, data split into
// aligned 4/2/1-byte chunks for boards with a hardwired chip-select).
// Endpoints above the socket-primitive layer never see which is in use.
type Bus interface {
	// ReadFrame issues a read of len(out) bytes from the given block/address
	// and fills out from the chip's response.
	ReadFrame(block byte, address uint16, out []byte) error
	// WriteFrame issues a write of in to the given block/address.
	WriteFrame(block byte, address uint16, in []byte) error
}

// vdmBus implements Variable Data Mode: one SPI transaction carries the
// entire address, control and data phases, bracketed by chip-select
// asserted/deasserted. It builds a single write buffer with the address and
// control-byte prefix and transfers it against a same-length read buffer in
// one conn.Conn.Tx call, keeping each frame one atomic SPI transaction.
type vdmBus struct {
	conn conn.Conn
	cs   gpio.PinOut
}

// NewVDMBus returns a Bus using Variable Data Mode over c, manually
// toggling cs low/high around each frame. c should be connected with
// spi.NoCS so the SPI port itself does not also drive chip-select.
func NewVDMBus(c conn.Conn, cs gpio.PinOut) Bus {
	return &vdmBus{conn: c, cs: cs}
}

func (b *vdmBus) ReadFrame(block byte, address uint16, out []byte) error {
	w := make([]byte, 3+len(out))
	w[0] = byte(address >> 8)
	w[1] = byte(address)
	w[2] = controlByte(block, false, opVariable)
	r := make([]byte, len(w))

	if err := b.cs.Out(gpio.Low); err != nil {
		return wrapTransport(err)
	}
	txErr := b.conn.Tx(w, r)
	csErr := b.cs.Out(gpio.High)
	if txErr != nil {
		return wrapTransport(txErr)
	}
	if csErr != nil {
		return wrapTransport(csErr)
	}
	copy(out, r[3:])
	return nil
}

func (b *vdmBus) WriteFrame(block byte, address uint16, in []byte) error {
	w := make([]byte, 3+len(in))
	w[0] = byte(address >> 8)
	w[1] = byte(address)
	w[2] = controlByte(block, true, opVariable)
	copy(w[3:], in)

	if err := b.cs.Out(gpio.Low); err != nil {
		return wrapTransport(err)
	}
	txErr := b.conn.Tx(w, nil)
	csErr := b.cs.Out(gpio.High)
	if txErr != nil {
		return wrapTransport(txErr)
	}
	if csErr != nil {
		return wrapTransport(csErr)
	}
	return nil
}

// fdmBus implements Fixed Data Mode: no chip-select line is driven by the
// bus at all, since FDM targets boards where CS is hardwired low at the
// chip. The data phase is split into the largest fixed chunk (4, then 2,
// then 1 byte) that fits the remaining payload, replaying the address and
// control phase for each chunk.
type fdmBus struct {
	conn conn.Conn
}

// NewFDMBus returns a Bus using Fixed Data Mode over c. c should be
// connected with spi.NoCS; FDM never asserts a chip-select line.
func NewFDMBus(c conn.Conn) Bus {
	return &fdmBus{conn: c}
}

func (b *fdmBus) ReadFrame(block byte, address uint16, out []byte) error {
	for len(out) > 0 {
		n, op := fdmChunk(len(out))
		w := make([]byte, 3+n)
		w[0] = byte(address >> 8)
		w[1] = byte(address)
		w[2] = controlByte(block, false, op)
		r := make([]byte, len(w))
		if err := b.conn.Tx(w, r); err != nil {
			return wrapTransport(err)
		}
		copy(out[:n], r[3:])
		address += uint16(n)
		out = out[n:]
	}
	return nil
}

func (b *fdmBus) WriteFrame(block byte, address uint16, in []byte) error {
	for len(in) > 0 {
		n, op := fdmChunk(len(in))
		w := make([]byte, 3+n)
		w[0] = byte(address >> 8)
		w[1] = byte(address)
		w[2] = controlByte(block, true, op)
		copy(w[3:], in[:n])
		if err := b.conn.Tx(w, nil); err != nil {
			return wrapTransport(err)
		}
		address += uint16(n)
		in = in[n:]
	}
	return nil
}

// fdmChunk picks the largest fixed chunk length (4, then 2, then 1) that
// fits within remaining, and the opmode bits encoding that length.
func fdmChunk(remaining int) (int, byte) {
	switch {
	case remaining >= 4:
		return 4, opFixed4
	case remaining >= 2:
		return 2, opFixed2
	default:
		return 1, opFixed1
	}
}
