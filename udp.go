package w5500

import "encoding/binary"

// RemoteAddr is an IPv4 address and port, used both to target a UDP
// datagram and to report a received datagram's source.
type RemoteAddr struct {
	IP   [4]byte
	Port uint16
}

// UDPSocket is a Socket opened in UDP mode. It caches the destination set
// by SetDestination/SendTo so repeated sends to the same peer don't rewrite
// DEST_IP/DEST_PORT unnecessarily.
type UDPSocket struct {
	dev         *Device
	socket      Socket
	port        uint16
	destination *RemoteAddr
}

// OpenUDP claims a socket from dev and opens it bound to localPort.
func OpenUDP(dev *Device, localPort uint16) (*UDPSocket, error) {
	s, err := dev.TakeSocket()
	if err != nil {
		return nil, err
	}
	u := &UDPSocket{dev: dev, socket: s, port: localPort}
	if err := u.open(); err != nil {
		dev.ReleaseSocket(s)
		return nil, err
	}
	return u, nil
}

func (u *UDPSocket) open() error {
	bus := u.dev.bus
	if err := u.socket.resetInterrupt(bus, InterruptAll); err != nil {
		return err
	}
	if err := u.socket.setSourcePort(bus, u.port); err != nil {
		return err
	}
	if err := u.socket.setMode(bus, ProtocolUDP); err != nil {
		return err
	}
	if err := u.socket.setInterruptMask(bus, InterruptSendOK|InterruptTimeout); err != nil {
		return err
	}
	if err := u.socket.command(bus, CommandOpen); err != nil {
		return err
	}
	for {
		status, err := u.socket.getStatus(bus)
		if err != nil {
			return err
		}
		if status == StatusUDP {
			return nil
		}
	}
}

// SetDestination fixes the peer used by SendAll, skipping the register
// write when it matches what's already cached.
func (u *UDPSocket) SetDestination(remote RemoteAddr) error {
	if u.destination != nil && *u.destination == remote {
		return nil
	}
	if err := u.socket.setDestinationIP(u.dev.bus, remote.IP); err != nil {
		return err
	}
	if err := u.socket.setDestinationPort(u.dev.bus, remote.Port); err != nil {
		return err
	}
	u.destination = &remote
	return nil
}

// SendAll transmits the entirety of buf to the cached destination, looping
// across as many TX_FREE_SIZE-limited chunks as needed.
func (u *UDPSocket) SendAll(buf []byte) error {
	bus := u.dev.bus
	status, err := u.socket.getStatus(bus)
	if err != nil {
		return err
	}
	if status != StatusUDP {
		return newError(ErrSocketNotOpen)
	}
	if u.destination == nil {
		return newError(ErrDestinationNotSet)
	}

	sent := 0
	for sent < len(buf) {
		free, err := u.socket.getTxFreeSize(bus)
		if err != nil {
			return err
		}
		if free == 0 {
			if sent == 0 {
				return newError(ErrBufferFull)
			}
			continue
		}

		n := len(buf) - sent
		if n > int(free) {
			n = int(free)
		}
		chunk := buf[sent : sent+n]

		writePtr, err := u.socket.getTxWritePointer(bus)
		if err != nil {
			return err
		}
		if err := bus.WriteFrame(u.socket.txBlock(), writePtr, chunk); err != nil {
			return wrapTransport(err)
		}
		if err := u.socket.setTxWritePointer(bus, writePtr+uint16(n)); err != nil {
			return err
		}

		if err := u.socket.command(bus, CommandSend); err != nil {
			return err
		}
		for {
			readPtr, err := u.socket.getTxReadPointer(bus)
			if err != nil {
				return err
			}
			curWrite, err := u.socket.getTxWritePointer(bus)
			if err != nil {
				return err
			}
			if readPtr == curWrite {
				break
			}
		}

		timedOut, err := u.socket.hasInterrupt(bus, InterruptTimeout)
		if err != nil {
			return err
		}
		if timedOut {
			if err := u.socket.resetInterrupt(bus, InterruptTimeout); err != nil {
				return err
			}
			return newError(ErrWriteTimeout)
		}
		if err := u.socket.resetInterrupt(bus, InterruptSendOK); err != nil {
			return err
		}

		sent += n
	}
	return nil
}

// SendTo sets remote as the destination and sends buf to it in full.
func (u *UDPSocket) SendTo(remote RemoteAddr, buf []byte) error {
	if err := u.SetDestination(remote); err != nil {
		return err
	}
	return u.SendAll(buf)
}

// Receive copies one datagram's payload into buf, returning the number of
// payload bytes copied and the datagram's source. It returns
// (0, RemoteAddr{}, ErrWouldBlock) if no datagram is currently buffered.
func (u *UDPSocket) Receive(buf []byte) (int, RemoteAddr, error) {
	bus := u.dev.bus
	hasRecv, err := u.socket.hasInterrupt(bus, InterruptReceived)
	if err != nil {
		return 0, RemoteAddr{}, err
	}
	if !hasRecv {
		return 0, RemoteAddr{}, ErrWouldBlock
	}

	size, err := u.socket.getReceiveSize(bus)
	if err != nil {
		return 0, RemoteAddr{}, err
	}
	// A received size below the 8-byte chip-prepended header is treated
	// like an empty buffer.
	if size < 8 {
		return 0, RemoteAddr{}, ErrWouldBlock
	}

	readPtr, err := u.socket.getRxReadPointer(bus)
	if err != nil {
		return 0, RemoteAddr{}, err
	}

	var hdr [8]byte
	if err := bus.ReadFrame(u.socket.rxBlock(), readPtr, hdr[:]); err != nil {
		return 0, RemoteAddr{}, wrapTransport(err)
	}
	var remote RemoteAddr
	copy(remote.IP[:], hdr[0:4])
	remote.Port = binary.BigEndian.Uint16(hdr[4:6])
	payloadLen := binary.BigEndian.Uint16(hdr[6:8])

	if len(buf) == 0 && payloadLen > 0 {
		return 0, RemoteAddr{}, newError(ErrBufferOverflow)
	}

	toCopy := int(payloadLen)
	if toCopy > len(buf) {
		toCopy = len(buf)
	}
	if toCopy > 0 {
		if err := bus.ReadFrame(u.socket.rxBlock(), readPtr+8, buf[:toCopy]); err != nil {
			return 0, RemoteAddr{}, wrapTransport(err)
		}
	}

	if err := u.socket.setRxReadPointer(bus, readPtr+8+payloadLen); err != nil {
		return 0, RemoteAddr{}, err
	}
	if err := u.socket.command(bus, CommandRecv); err != nil {
		return 0, RemoteAddr{}, err
	}
	if err := u.socket.resetInterrupt(bus, InterruptReceived); err != nil {
		return 0, RemoteAddr{}, err
	}
	return toCopy, remote, nil
}

// Close sets the socket back to CLOSED, issues the CLOSE command, and
// releases the underlying Socket back to dev's allocator.
func (u *UDPSocket) Close() error {
	bus := u.dev.bus
	if err := u.socket.setMode(bus, ProtocolClosed); err != nil {
		return err
	}
	if err := u.socket.command(bus, CommandClose); err != nil {
		return err
	}
	u.dev.ReleaseSocket(u.socket)
	return nil
}
