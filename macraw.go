package w5500

import "encoding/binary"

// RawDevice is a W5500 configured for MACRAW: socket 0 is given the chip's
// entire 16 KiB TX and RX buffer budget and forwards raw Ethernet frames
// bypassing the TCP/IP offload, while sockets 1-7 are reduced to 0 KiB.
type RawDevice struct {
	dev    *Device
	socket Socket
}

// newRawDevice repurposes dev's socket 0 for MACRAW and opens it. It is
// called by UninitializedDevice.InitializeMACRAW once initialization has
// completed; there is no public constructor since the buffer resizing this
// performs is only valid immediately after initialization, before any
// socket has been handed out by TakeSocket.
func newRawDevice(dev *Device) (*RawDevice, error) {
	raw := Socket{index: 0}
	dev.free &^= 1 // socket 0 is no longer available to TakeSocket

	for i := uint8(1); i < 8; i++ {
		s := Socket{index: i}
		if err := s.setRxBufSize(dev.bus, 0); err != nil {
			return nil, wrapTransport(err)
		}
		if err := s.setTxBufSize(dev.bus, 0); err != nil {
			return nil, wrapTransport(err)
		}
	}
	if err := raw.setRxBufSize(dev.bus, 16); err != nil {
		return nil, wrapTransport(err)
	}
	if err := raw.setTxBufSize(dev.bus, 16); err != nil {
		return nil, wrapTransport(err)
	}
	if err := dev.bus.WriteFrame(raw.regBlock(), regSnMR, []byte{byte(ProtocolMACRAW) | macFilterBit}); err != nil {
		return nil, wrapTransport(err)
	}
	if err := raw.command(dev.bus, CommandOpen); err != nil {
		return nil, wrapTransport(err)
	}
	return &RawDevice{dev: dev, socket: raw}, nil
}

// ReadFrame reads one Ethernet frame into buf. If buf is shorter than the
// frame, the remainder is discarded by advancing the read cursor past it.
// It returns (0, nil) if no frame is currently buffered, and otherwise the
// number of frame bytes copied into buf, which is at most len(buf).
func (r *RawDevice) ReadFrame(buf []byte) (int, error) {
	size, err := r.socket.getReceiveSize(r.dev.bus)
	if err != nil {
		return 0, err
	}
	if size == 0 {
		return 0, nil
	}

	readPtr, err := r.socket.getRxReadPointer(r.dev.bus)
	if err != nil {
		return 0, err
	}

	var hdr [2]byte
	if err := r.dev.bus.ReadFrame(r.socket.rxBlock(), readPtr, hdr[:]); err != nil {
		return 0, wrapTransport(err)
	}
	frameSize := binary.BigEndian.Uint16(hdr[:])
	readPtr += 2

	n := int(frameSize) - 2
	if n < 0 {
		n = 0
	}
	toCopy := n
	if toCopy > len(buf) {
		toCopy = len(buf)
	}
	if toCopy > 0 {
		if err := r.dev.bus.ReadFrame(r.socket.rxBlock(), readPtr, buf[:toCopy]); err != nil {
			return 0, wrapTransport(err)
		}
	}
	readPtr += uint16(n)

	if err := r.socket.setRxReadPointer(r.dev.bus, readPtr); err != nil {
		return 0, err
	}
	if err := r.socket.command(r.dev.bus, CommandRecv); err != nil {
		return 0, err
	}
	return toCopy, nil
}

// WriteFrame transmits buf as a single Ethernet frame, truncated to the
// socket's current TX_FREE_SIZE. It blocks until the chip raises SEND_OK.
func (r *RawDevice) WriteFrame(buf []byte) (int, error) {
	if err := r.socket.resetInterrupt(r.dev.bus, InterruptSendOK); err != nil {
		return 0, err
	}

	free, err := r.socket.getTxFreeSize(r.dev.bus)
	if err != nil {
		return 0, err
	}
	n := len(buf)
	if n > int(free) {
		n = int(free)
	}

	writePtr, err := r.socket.getTxWritePointer(r.dev.bus)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		if err := r.dev.bus.WriteFrame(r.socket.txBlock(), writePtr, buf[:n]); err != nil {
			return 0, wrapTransport(err)
		}
	}
	if err := r.socket.setTxWritePointer(r.dev.bus, writePtr+uint16(n)); err != nil {
		return 0, err
	}
	if err := r.socket.command(r.dev.bus, CommandSend); err != nil {
		return 0, err
	}
	for {
		ok, err := r.socket.hasInterrupt(r.dev.bus, InterruptSendOK)
		if err != nil {
			return 0, err
		}
		if ok {
			break
		}
	}
	return n, nil
}

// EnableInterrupts unmasks mask on socket 0 and enables socket 0's bit in
// the chip-wide SOCKET_INTERRUPT_MASK, so a host microcontroller interrupt
// handler wakes on frame arrival.
func (r *RawDevice) EnableInterrupts(mask Interrupt) error {
	if err := r.socket.setInterruptMask(r.dev.bus, mask); err != nil {
		return err
	}
	return wrapTransport(r.dev.bus.WriteFrame(commonBlock, regSocketIntrMask, []byte{1 << r.socket.index}))
}

// DisableInterrupts masks all interrupts on socket 0.
func (r *RawDevice) DisableInterrupts() error {
	if err := r.socket.setInterruptMask(r.dev.bus, 0); err != nil {
		return err
	}
	return wrapTransport(r.dev.bus.WriteFrame(commonBlock, regSocketIntrMask, []byte{0}))
}

// ClearInterrupts clears every pending interrupt on socket 0.
func (r *RawDevice) ClearInterrupts() error {
	return r.socket.resetInterrupt(r.dev.bus, InterruptAll)
}
