package w5500

import "encoding/binary"

// Socket identifies one of the W5500's eight independent protocol engines.
// The zero value is socket 0; callers obtain a Socket from
// Device.TakeSocket, never by constructing one directly.
type Socket struct {
	index uint8
}

// Index returns the socket's number in 0..7.
func (s Socket) Index() uint8 { return s.index }

func (s Socket) regBlock() byte { return socketRegBlock(s.index) }
func (s Socket) txBlock() byte  { return socketTxBlock(s.index) }
func (s Socket) rxBlock() byte  { return socketRxBlock(s.index) }

// Thin register accessors. Each is one ReadFrame/WriteFrame against the
// socket's own register block, following the same shape as
// periph.io/x/periph/conn/mmr.Dev8's ReadUint8/ReadUint16/WriteUint8 pair,
// adapted to the W5500's block+16-bit-address scheme instead of mmr's
// single 8-bit register number.

func (s Socket) readUint8(bus Bus, reg uint16) (uint8, error) {
	var b [1]byte
	if err := bus.ReadFrame(s.regBlock(), reg, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (s Socket) writeUint8(bus Bus, reg uint16, v uint8) error {
	return bus.WriteFrame(s.regBlock(), reg, []byte{v})
}

func (s Socket) readUint16(bus Bus, reg uint16) (uint16, error) {
	var b [2]byte
	if err := bus.ReadFrame(s.regBlock(), reg, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

func (s Socket) writeUint16(bus Bus, reg uint16, v uint16) error {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return bus.WriteFrame(s.regBlock(), reg, b[:])
}

func (s Socket) setMode(bus Bus, p Protocol) error {
	return s.writeUint8(bus, regSnMR, uint8(p))
}

func (s Socket) getStatus(bus Bus) (Status, error) {
	v, err := s.readUint8(bus, regSnSR)
	return Status(v), err
}

func (s Socket) command(bus Bus, c Command) error {
	return s.writeUint8(bus, regSnCR, uint8(c))
}

func (s Socket) resetInterrupt(bus Bus, i Interrupt) error {
	return s.writeUint8(bus, regSnIR, uint8(i))
}

func (s Socket) hasInterrupt(bus Bus, i Interrupt) (bool, error) {
	v, err := s.readUint8(bus, regSnIR)
	if err != nil {
		return false, err
	}
	return v&uint8(i) != 0, nil
}

func (s Socket) setInterruptMask(bus Bus, mask Interrupt) error {
	return s.writeUint8(bus, regSnIMR, uint8(mask))
}

func (s Socket) setSourcePort(bus Bus, port uint16) error {
	return s.writeUint16(bus, regSnPORT, port)
}

func (s Socket) setDestinationIP(bus Bus, ip [4]byte) error {
	return bus.WriteFrame(s.regBlock(), regSnDIPR, ip[:])
}

func (s Socket) getDestinationIP(bus Bus) ([4]byte, error) {
	var ip [4]byte
	err := bus.ReadFrame(s.regBlock(), regSnDIPR, ip[:])
	return ip, err
}

func (s Socket) setDestinationPort(bus Bus, port uint16) error {
	return s.writeUint16(bus, regSnDPORT, port)
}

func (s Socket) getDestinationPort(bus Bus) (uint16, error) {
	return s.readUint16(bus, regSnDPORT)
}

func (s Socket) getTxReadPointer(bus Bus) (uint16, error)  { return s.readUint16(bus, regSnTX_RD) }
func (s Socket) setTxReadPointer(bus Bus, p uint16) error  { return s.writeUint16(bus, regSnTX_RD, p) }
func (s Socket) getTxWritePointer(bus Bus) (uint16, error) { return s.readUint16(bus, regSnTX_WR) }
func (s Socket) setTxWritePointer(bus Bus, p uint16) error { return s.writeUint16(bus, regSnTX_WR, p) }
func (s Socket) getTxFreeSize(bus Bus) (uint16, error)     { return s.readUint16(bus, regSnTX_FSR) }

func (s Socket) getRxReadPointer(bus Bus) (uint16, error) { return s.readUint16(bus, regSnRX_RD) }
func (s Socket) setRxReadPointer(bus Bus, p uint16) error { return s.writeUint16(bus, regSnRX_RD, p) }

// getReceiveSize loops reading the 2-byte RX_RECEIVED_SIZE register until
// two consecutive samples match, since the chip may update it mid-read.
// It does not itself enforce the 8-byte minimum a UDP datagram header
// needs; that belongs to UDPSocket.Receive, which treats a received size
// below 8 bytes as would-block.
func (s Socket) getReceiveSize(bus Bus) (uint16, error) {
	for {
		var a, b [2]byte
		if err := bus.ReadFrame(s.regBlock(), regSnRX_RSR, a[:]); err != nil {
			return 0, err
		}
		if err := bus.ReadFrame(s.regBlock(), regSnRX_RSR, b[:]); err != nil {
			return 0, err
		}
		if a == b {
			return binary.BigEndian.Uint16(a[:]), nil
		}
	}
}

func (s Socket) setRxBufSize(bus Bus, kib uint8) error {
	return s.writeUint8(bus, regSnRXBUF_SIZE, kib)
}

func (s Socket) setTxBufSize(bus Bus, kib uint8) error {
	return s.writeUint8(bus, regSnTXBUF_SIZE, kib)
}
