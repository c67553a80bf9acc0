package w5500

// TCPSocket is a Socket opened in TCP client mode. There is no
// server/listen surface: this package covers the client half only.
type TCPSocket struct {
	dev    *Device
	socket Socket
	port   uint16
}

// OpenTCP claims a socket from dev and opens it bound to localPort,
// waiting for STATUS to reach INIT.
func OpenTCP(dev *Device, localPort uint16) (*TCPSocket, error) {
	s, err := dev.TakeSocket()
	if err != nil {
		return nil, err
	}
	t := &TCPSocket{dev: dev, socket: s, port: localPort}
	if err := t.open(); err != nil {
		dev.ReleaseSocket(s)
		return nil, err
	}
	return t, nil
}

func (t *TCPSocket) open() error {
	bus := t.dev.bus
	if err := t.socket.command(bus, CommandClose); err != nil {
		return err
	}
	if err := t.socket.resetInterrupt(bus, InterruptAll); err != nil {
		return err
	}
	if err := t.socket.setSourcePort(bus, t.port); err != nil {
		return err
	}
	if err := t.socket.setMode(bus, ProtocolTCP); err != nil {
		return err
	}
	if err := t.socket.setInterruptMask(bus, InterruptSendOK|InterruptTimeout); err != nil {
		return err
	}
	if err := t.socket.command(bus, CommandOpen); err != nil {
		return err
	}
	for {
		status, err := t.socket.getStatus(bus)
		if err != nil {
			return err
		}
		if status == StatusInit {
			return nil
		}
	}
}

// reopen is open without rewriting the source port: it closes, clears
// interrupts, re-sets MODE=TCP and reissues OPEN.
func (t *TCPSocket) reopen() error {
	bus := t.dev.bus
	if err := t.socket.command(bus, CommandClose); err != nil {
		return err
	}
	if err := t.socket.resetInterrupt(bus, InterruptAll); err != nil {
		return err
	}
	if err := t.socket.setMode(bus, ProtocolTCP); err != nil {
		return err
	}
	if err := t.socket.setInterruptMask(bus, InterruptSendOK|InterruptTimeout); err != nil {
		return err
	}
	return t.socket.command(bus, CommandOpen)
}

func (t *TCPSocket) close() error {
	bus := t.dev.bus
	if err := t.socket.setMode(bus, ProtocolClosed); err != nil {
		return err
	}
	return t.socket.command(bus, CommandClose)
}

// Connect drives the socket from INIT through the chip's CONNECT command to
// ESTABLISHED. If the socket is not in INIT it is closed and reopened
// first; if the chip reports MACRAW or UDP mode the call fails immediately
// with ErrUnsupportedMode rather than silently reopening a socket the
// caller configured for something else.
func (t *TCPSocket) Connect(remote RemoteAddr) error {
	bus := t.dev.bus
	status, err := t.socket.getStatus(bus)
	if err != nil {
		return err
	}
	switch status {
	case StatusInit:
		// ready to connect
	case StatusMACRAW, StatusUDP:
		return newError(ErrUnsupportedMode)
	default:
		if err := t.close(); err != nil {
			return err
		}
		if err := t.reopen(); err != nil {
			return err
		}
	}

	if err := t.socket.setDestinationIP(bus, remote.IP); err != nil {
		return err
	}
	if err := t.socket.setDestinationPort(bus, remote.Port); err != nil {
		return err
	}
	if err := t.socket.command(bus, CommandConnect); err != nil {
		return err
	}

	for {
		status, err := t.socket.getStatus(bus)
		if err != nil {
			return err
		}
		switch status {
		case StatusEstablished:
			return nil
		case StatusClosed:
			if err := t.close(); err != nil {
				return err
			}
			return t.reopen()
		}
	}
}

// IsConnected reports whether STATUS currently reads ESTABLISHED.
func (t *TCPSocket) IsConnected() (bool, error) {
	status, err := t.socket.getStatus(t.dev.bus)
	if err != nil {
		return false, err
	}
	return status == StatusEstablished, nil
}

// Send writes up to len(buf) bytes, clamped to TX_FREE_SIZE, and blocks
// until the chip reports SEND_OK.
func (t *TCPSocket) Send(buf []byte) (int, error) {
	bus := t.dev.bus
	connected, err := t.IsConnected()
	if err != nil {
		return 0, err
	}
	if !connected {
		return 0, newError(ErrNotConnected)
	}

	free, err := t.socket.getTxFreeSize(bus)
	if err != nil {
		return 0, err
	}
	n := len(buf)
	if n > int(free) {
		n = int(free)
	}

	writePtr, err := t.socket.getTxWritePointer(bus)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		if err := bus.WriteFrame(t.socket.txBlock(), writePtr, buf[:n]); err != nil {
			return 0, wrapTransport(err)
		}
	}
	if err := t.socket.setTxWritePointer(bus, writePtr+uint16(n)); err != nil {
		return 0, err
	}
	if err := t.socket.command(bus, CommandSend); err != nil {
		return 0, err
	}
	for {
		ok, err := t.socket.hasInterrupt(bus, InterruptSendOK)
		if err != nil {
			return 0, err
		}
		if ok {
			break
		}
	}
	if err := t.socket.resetInterrupt(bus, InterruptSendOK); err != nil {
		return 0, err
	}
	return n, nil
}

// Receive copies buffered bytes into buf, returning 0 immediately if no
// RECV interrupt is pending.
func (t *TCPSocket) Receive(buf []byte) (int, error) {
	bus := t.dev.bus
	connected, err := t.IsConnected()
	if err != nil {
		return 0, err
	}
	if !connected {
		return 0, newError(ErrNotConnected)
	}

	hasRecv, err := t.socket.hasInterrupt(bus, InterruptReceived)
	if err != nil {
		return 0, err
	}
	if !hasRecv {
		return 0, nil
	}

	size, err := t.socket.getReceiveSize(bus)
	if err != nil {
		return 0, err
	}
	if size == 0 {
		return 0, nil
	}
	if len(buf) == 0 {
		return 0, newError(ErrBufferOverflow)
	}

	n := int(size)
	if n > len(buf) {
		n = len(buf)
	}

	readPtr, err := t.socket.getRxReadPointer(bus)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		if err := bus.ReadFrame(t.socket.rxBlock(), readPtr, buf[:n]); err != nil {
			return 0, wrapTransport(err)
		}
	}
	if err := t.socket.setRxReadPointer(bus, readPtr+uint16(n)); err != nil {
		return 0, err
	}
	if err := t.socket.command(bus, CommandRecv); err != nil {
		return 0, err
	}
	if err := t.socket.resetInterrupt(bus, InterruptReceived); err != nil {
		return 0, err
	}
	return n, nil
}

// Disconnect issues a graceful DISCON, leaving the socket allocated.
func (t *TCPSocket) Disconnect() error {
	return t.socket.command(t.dev.bus, CommandDiscon)
}

// Close sets MODE=CLOSED, issues CLOSE, and releases the socket back to
// dev's allocator.
func (t *TCPSocket) Close() error {
	if err := t.close(); err != nil {
		return err
	}
	t.dev.ReleaseSocket(t.socket)
	return nil
}
