package w5500

import (
	"net"
	"testing"

	"github.com/kellerkindt/w5500/w5500test"
)

func TestTCPConnectReachesEstablished(t *testing.T) {
	chip := w5500test.NewChip()
	u := NewUninitializedDevice(chip)
	dev, err := u.InitializeManual(MACAddress{}, net.IPv4(10, 0, 0, 2), DefaultMode)
	if err != nil {
		t.Fatalf("InitializeManual: %v", err)
	}

	sock, err := OpenTCP(dev, 6000)
	if err != nil {
		t.Fatalf("OpenTCP: %v", err)
	}

	if err := sock.Connect(RemoteAddr{IP: [4]byte{10, 0, 0, 5}, Port: 80}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	connected, err := sock.IsConnected()
	if err != nil {
		t.Fatalf("IsConnected: %v", err)
	}
	if !connected {
		t.Fatalf("IsConnected = false after successful Connect")
	}
}

func TestTCPConnectRefusedReopensSocket(t *testing.T) {
	chip := w5500test.NewChip()
	u := NewUninitializedDevice(chip)
	dev, err := u.InitializeManual(MACAddress{}, net.IPv4(10, 0, 0, 2), DefaultMode)
	if err != nil {
		t.Fatalf("InitializeManual: %v", err)
	}

	sock, err := OpenTCP(dev, 6000)
	if err != nil {
		t.Fatalf("OpenTCP: %v", err)
	}
	chip.RefuseConnect(sock.socket.Index())

	if err := sock.Connect(RemoteAddr{IP: [4]byte{10, 0, 0, 5}, Port: 80}); err != nil {
		t.Fatalf("Connect after refusal = %v, want nil (reopened socket, not an error)", err)
	}
	connected, err := sock.IsConnected()
	if err != nil {
		t.Fatalf("IsConnected: %v", err)
	}
	if connected {
		t.Fatalf("IsConnected = true after a refused connect, want false")
	}
	status, err := sock.socket.getStatus(chip)
	if err != nil {
		t.Fatalf("getStatus: %v", err)
	}
	if status != StatusInit {
		t.Fatalf("status after reopen = %#x, want StatusInit so a retry can proceed", status)
	}
}

func TestTCPSendRequiresEstablished(t *testing.T) {
	chip := w5500test.NewChip()
	u := NewUninitializedDevice(chip)
	dev, err := u.InitializeManual(MACAddress{}, net.IPv4(10, 0, 0, 2), DefaultMode)
	if err != nil {
		t.Fatalf("InitializeManual: %v", err)
	}
	sock, err := OpenTCP(dev, 6000)
	if err != nil {
		t.Fatalf("OpenTCP: %v", err)
	}
	if _, err := sock.Send([]byte("hi")); !IsKind(err, ErrNotConnected) {
		t.Fatalf("Send before Connect = %v, want ErrNotConnected", err)
	}
}

func TestTCPReceiveReportsBufferOverflowOnZeroLengthBuffer(t *testing.T) {
	chip := w5500test.NewChip()
	u := NewUninitializedDevice(chip)
	dev, err := u.InitializeManual(MACAddress{}, net.IPv4(10, 0, 0, 2), DefaultMode)
	if err != nil {
		t.Fatalf("InitializeManual: %v", err)
	}
	sock, err := OpenTCP(dev, 6000)
	if err != nil {
		t.Fatalf("OpenTCP: %v", err)
	}
	if err := sock.Connect(RemoteAddr{IP: [4]byte{10, 0, 0, 5}, Port: 80}); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	idx := sock.socket.Index()
	chip.SetRxBuffer(idx, 0, []byte("hello"))
	chip.SetSocketReg(idx, 0x0026, []byte{0x00, 0x05})
	chip.SetSocketReg(idx, 0x0002, []byte{byte(InterruptReceived)})

	n, err := sock.Receive(nil)
	if !IsKind(err, ErrBufferOverflow) {
		t.Fatalf("Receive with nil buf and pending bytes = %v, want ErrBufferOverflow", err)
	}
	if n != 0 {
		t.Fatalf("n = %d, want 0", n)
	}
}

func TestTCPReceiveCopiesFromRxBuffer(t *testing.T) {
	chip := w5500test.NewChip()
	u := NewUninitializedDevice(chip)
	dev, err := u.InitializeManual(MACAddress{}, net.IPv4(10, 0, 0, 2), DefaultMode)
	if err != nil {
		t.Fatalf("InitializeManual: %v", err)
	}
	sock, err := OpenTCP(dev, 6000)
	if err != nil {
		t.Fatalf("OpenTCP: %v", err)
	}
	if err := sock.Connect(RemoteAddr{IP: [4]byte{10, 0, 0, 5}, Port: 80}); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	idx := sock.socket.Index()
	chip.SetRxBuffer(idx, 0, []byte("hello"))
	chip.SetSocketReg(idx, 0x0026, []byte{0x00, 0x05})
	chip.SetSocketReg(idx, 0x0002, []byte{byte(InterruptReceived)})

	buf := make([]byte, 5)
	n, err := sock.Receive(buf)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if n != 5 || string(buf) != "hello" {
		t.Fatalf("Receive = %d,%q, want 5,\"hello\"", n, buf)
	}
}
