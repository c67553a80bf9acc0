// Package w5500test provides an in-memory fake of a W5500's register file
// and buffers for testing code built on w5500.Bus, mirroring the shape of
// periph.io/x/periph's spitest/i2ctest fakes: a recording, synchronous
// implementation driven entirely by direct memory pokes rather than a real
// SPI transport.
package w5500test

import "sync"

// Frame records one ReadFrame or WriteFrame call observed by a Chip.
type Frame struct {
	Write   bool
	Block   byte
	Address uint16
	Data    []byte
}

// Chip is a fake W5500 implementing w5500.Bus directly against in-memory
// register and buffer storage, addressed the same way the real chip's SPI
// control byte does: a common register file plus eight independent
// register/TX/RX blocks per socket.
type Chip struct {
	mu sync.Mutex

	common [0x3A]byte
	socket [8]struct {
		regs          [0x30]byte
		tx            [0x4000]byte
		rx            [0x4000]byte
		refuseConnect bool
	}

	trace     []Frame
	overrides map[overrideKey][][]byte
}

type overrideKey struct {
	block   byte
	address uint16
}

// Register offsets duplicated from the driver package: w5500test must not
// import w5500 (the driver imports w5500test in its tests), so the handful
// of offsets needed to simulate command/status transitions are repeated
// here rather than shared.
const (
	regSnMR   = 0x0000
	regSnCR   = 0x0001
	regSnIR   = 0x0002
	regSnSR   = 0x0003
	regSnTXRD = 0x0022
	regSnTXWR = 0x0024
)

const (
	cmdOpen    = 0x01
	cmdConnect = 0x04
	cmdDiscon  = 0x08
	cmdClose   = 0x10
	cmdSend    = 0x20
)

const (
	irSendOK = 0x10
)

const (
	statusClosed      = 0x00
	statusInit        = 0x13
	statusEstablished = 0x17
	statusUDP         = 0x22
	statusMACRAW      = 0x42
)

// RefuseConnect makes the next CONNECT command issued on socket index leave
// the socket in CLOSED status rather than ESTABLISHED, simulating an ARP
// timeout, SYN-ACK timeout, or RST.
func (c *Chip) RefuseConnect(index uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.socket[index].refuseConnect = true
}

// applyCommand simulates the chip's reaction to a write to Sn_CR, since a
// real W5500 drives its own socket state machine in response to commands
// that this memory-only fake would otherwise never advance. Callers hold
// c.mu.
func (c *Chip) applyCommand(index byte, cmd byte) {
	s := &c.socket[index]
	switch cmd {
	case cmdOpen:
		switch s.regs[regSnMR] & 0b111 {
		case 0b001:
			s.regs[regSnSR] = statusInit
		case 0b010:
			s.regs[regSnSR] = statusUDP
		case 0b100:
			s.regs[regSnSR] = statusMACRAW
		}
	case cmdConnect:
		if s.refuseConnect {
			s.regs[regSnSR] = statusClosed
			s.refuseConnect = false
		} else {
			s.regs[regSnSR] = statusEstablished
		}
	case cmdDiscon, cmdClose:
		s.regs[regSnSR] = statusClosed
	case cmdSend:
		wr := uint16(s.regs[regSnTXWR])<<8 | uint16(s.regs[regSnTXWR+1])
		s.regs[regSnTXRD] = byte(wr >> 8)
		s.regs[regSnTXRD+1] = byte(wr)
		s.regs[regSnIR] |= irSendOK
	}
}

// NewChip returns a Chip with VERSION pre-set to the real chip's value and
// every socket's STATUS at CLOSED.
func NewChip() *Chip {
	c := &Chip{}
	c.common[0x39] = 0x04
	return c
}

func blockKind(block byte) (socket int, which byte) {
	if block == 0 {
		return -1, 0
	}
	idx := int((block - 1) / 4)
	return idx, (block - 1) % 4
}

// QueueReadOverride makes the next ReadFrame(block, address, ...) call
// return data instead of the backing store's value, one-shot: the override
// is consumed on use and subsequent reads of the same block/address fall
// back to the real storage. Queuing several overrides for the same
// block/address serves them in FIFO order. This exists to script a
// register that changes mid-poll, such as RX_RECEIVED_SIZE reporting an
// in-flux value before settling.
func (c *Chip) QueueReadOverride(block byte, address uint16, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.overrides == nil {
		c.overrides = make(map[overrideKey][][]byte)
	}
	key := overrideKey{block: block, address: address}
	c.overrides[key] = append(c.overrides[key], append([]byte(nil), data...))
}

// ReadFrame implements w5500.Bus.
func (c *Chip) ReadFrame(block byte, address uint16, out []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := overrideKey{block: block, address: address}
	if queue := c.overrides[key]; len(queue) > 0 {
		copy(out, queue[0])
		c.overrides[key] = queue[1:]
		c.trace = append(c.trace, Frame{Write: false, Block: block, Address: address, Data: append([]byte(nil), out...)})
		return nil
	}

	idx, which := blockKind(block)
	switch {
	case block == 0:
		copy(out, c.common[address:])
	case which == 0:
		copy(out, c.socket[idx].regs[address:])
	case which == 1:
		copy(out, c.socket[idx].tx[address:])
	default:
		copy(out, c.socket[idx].rx[address:])
	}

	c.trace = append(c.trace, Frame{Write: false, Block: block, Address: address, Data: append([]byte(nil), out...)})
	return nil
}

// WriteFrame implements w5500.Bus.
func (c *Chip) WriteFrame(block byte, address uint16, in []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx, which := blockKind(block)
	switch {
	case block == 0:
		copy(c.common[address:], in)
		if address == 0x0000 && len(in) > 0 {
			// The real chip self-clears the MODE register's reset bit
			// immediately; mirror that so a reset() poll terminates.
			c.common[0] &^= 1 << 7
		}
	case which == 0:
		ir := c.socket[idx].regs[regSnIR]
		copy(c.socket[idx].regs[address:], in)
		if address <= regSnIR && int(regSnIR-address) < len(in) {
			// Sn_IR is write-1-to-clear on the real chip: bits written as 1
			// are cleared and the others keep their value.
			c.socket[idx].regs[regSnIR] = ir &^ in[regSnIR-address]
		}
		if address == regSnCR && len(in) > 0 {
			c.applyCommand(byte(idx), in[0])
		}
	case which == 1:
		copy(c.socket[idx].tx[address:], in)
	default:
		copy(c.socket[idx].rx[address:], in)
	}

	c.trace = append(c.trace, Frame{Write: true, Block: block, Address: address, Data: append([]byte(nil), in...)})
	return nil
}

// Trace returns every frame observed since the last call to ClearTrace (or
// since construction), in order.
func (c *Chip) Trace() []Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Frame(nil), c.trace...)
}

// ClearTrace discards the recorded frame history.
func (c *Chip) ClearTrace() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trace = nil
}

// SetCommon pokes a value directly into the common register file at
// address, bypassing ReadFrame/WriteFrame tracing.
func (c *Chip) SetCommon(address uint16, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	copy(c.common[address:], data)
}

// CommonRegister returns n bytes from the common register file starting at
// address.
func (c *Chip) CommonRegister(address uint16, n int) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]byte, n)
	copy(out, c.common[address:])
	return out
}

// SetSocketReg pokes a value directly into socket index's register block.
func (c *Chip) SetSocketReg(index uint8, address uint16, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	copy(c.socket[index].regs[address:], data)
}

// SocketReg returns n bytes from socket index's register block starting at
// address.
func (c *Chip) SocketReg(index uint8, address uint16, n int) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]byte, n)
	copy(out, c.socket[index].regs[address:])
	return out
}

// SetRxBuffer pokes data directly into socket index's RX ring buffer
// starting at address, for staging data a test expects a Receive call to
// consume.
func (c *Chip) SetRxBuffer(index uint8, address uint16, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	copy(c.socket[index].rx[address:], data)
}

// TxBuffer returns n bytes from socket index's TX ring buffer starting at
// address, for asserting what a Send call wrote.
func (c *Chip) TxBuffer(index uint8, address uint16, n int) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]byte, n)
	copy(out, c.socket[index].tx[address:])
	return out
}

// SetTxFreeSize sets socket index's TX_FREE_SIZE register, the 2-byte
// big-endian value the driver reads before sizing a write.
func (c *Chip) SetTxFreeSize(index uint8, size uint16) {
	c.SetSocketReg(index, 0x0020, []byte{byte(size >> 8), byte(size)})
}

// SetStatus sets socket index's STATUS register.
func (c *Chip) SetStatus(index uint8, status byte) {
	c.SetSocketReg(index, 0x0003, []byte{status})
}
