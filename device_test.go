package w5500

import (
	"net"
	"testing"

	"github.com/kellerkindt/w5500/w5500test"
)

func TestUninitializedDeviceVersion(t *testing.T) {
	chip := w5500test.NewChip()
	u := NewUninitializedDevice(chip)

	v, err := u.Version()
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if v != ChipVersion {
		t.Fatalf("version = %#x, want %#x", v, ChipVersion)
	}
}

func TestInitializeFailsOnWrongVersion(t *testing.T) {
	chip := w5500test.NewChip()
	chip.SetCommon(regVersion, []byte{0x01})
	u := NewUninitializedDevice(chip)

	mac := MACAddress{0, 1, 2, 3, 4, 5}
	if _, err := u.Initialize(mac, DefaultMode); !IsKind(err, ErrChipNotConnected) {
		t.Fatalf("Initialize error = %v, want ErrChipNotConnected", err)
	}
}

func TestInitializeManualDerivesGatewayAndSubnet(t *testing.T) {
	chip := w5500test.NewChip()
	u := NewUninitializedDevice(chip)
	mac := MACAddress{0, 1, 2, 3, 4, 5}

	dev, err := u.InitializeManual(mac, net.IPv4(10, 0, 0, 42), DefaultMode)
	if err != nil {
		t.Fatalf("InitializeManual: %v", err)
	}

	gw, err := dev.Gateway()
	if err != nil {
		t.Fatalf("Gateway: %v", err)
	}
	if !gw.Equal(net.IPv4(10, 0, 0, 1)) {
		t.Fatalf("gateway = %v, want 10.0.0.1", gw)
	}
	subnet, err := dev.Subnet()
	if err != nil {
		t.Fatalf("Subnet: %v", err)
	}
	if !subnet.Equal(net.IPv4(255, 255, 255, 0)) {
		t.Fatalf("subnet = %v, want 255.255.255.0", subnet)
	}
}

func TestSocketAllocatorTakeAndRelease(t *testing.T) {
	chip := w5500test.NewChip()
	u := NewUninitializedDevice(chip)
	dev, err := u.InitializeManual(MACAddress{}, net.IPv4(10, 0, 0, 1), DefaultMode)
	if err != nil {
		t.Fatalf("InitializeManual: %v", err)
	}

	taken := make([]Socket, 0, 8)
	for i := 0; i < 8; i++ {
		s, err := dev.TakeSocket()
		if err != nil {
			t.Fatalf("TakeSocket #%d: %v", i, err)
		}
		if s.Index() != uint8(i) {
			t.Fatalf("TakeSocket #%d returned index %d, want lowest-first allocation", i, s.Index())
		}
		taken = append(taken, s)
	}
	if _, err := dev.TakeSocket(); !IsKind(err, ErrNoMoreSockets) {
		t.Fatalf("TakeSocket on exhausted allocator = %v, want ErrNoMoreSockets", err)
	}

	dev.ReleaseSocket(taken[3])
	s, err := dev.TakeSocket()
	if err != nil {
		t.Fatalf("TakeSocket after release: %v", err)
	}
	if s.Index() != 3 {
		t.Fatalf("TakeSocket after releasing index 3 returned %d, want 3", s.Index())
	}
}

func TestResetRequiresAllSocketsReleased(t *testing.T) {
	chip := w5500test.NewChip()
	u := NewUninitializedDevice(chip)
	dev, err := u.InitializeManual(MACAddress{}, net.IPv4(10, 0, 0, 1), DefaultMode)
	if err != nil {
		t.Fatalf("InitializeManual: %v", err)
	}

	if _, err := dev.TakeSocket(); err != nil {
		t.Fatalf("TakeSocket: %v", err)
	}
	if _, err := dev.Reset(); !IsKind(err, ErrSocketsNotReleased) {
		t.Fatalf("Reset with outstanding socket = %v, want ErrSocketsNotReleased", err)
	}
}

func TestNextEphemeralPortIncrementsAndWraps(t *testing.T) {
	chip := w5500test.NewChip()
	u := NewUninitializedDevice(chip)
	dev, err := u.InitializeManual(MACAddress{}, net.IPv4(10, 0, 0, 1), DefaultMode)
	if err != nil {
		t.Fatalf("InitializeManual: %v", err)
	}

	if got := dev.NextEphemeralPort(); got != 49152 {
		t.Fatalf("first NextEphemeralPort = %d, want 49152", got)
	}
	if got := dev.NextEphemeralPort(); got != 49153 {
		t.Fatalf("second NextEphemeralPort = %d, want 49153", got)
	}

	dev.nextPort = 0xFFFF
	if got := dev.NextEphemeralPort(); got != 0xFFFF {
		t.Fatalf("NextEphemeralPort at max = %d, want 0xFFFF", got)
	}
	if got := dev.NextEphemeralPort(); got != 49152 {
		t.Fatalf("NextEphemeralPort after overflow = %d, want wraparound to 49152", got)
	}
}

func TestDeactivateActivatePreservesEphemeralPortCounter(t *testing.T) {
	chip := w5500test.NewChip()
	u := NewUninitializedDevice(chip)
	dev, err := u.InitializeManual(MACAddress{}, net.IPv4(10, 0, 0, 1), DefaultMode)
	if err != nil {
		t.Fatalf("InitializeManual: %v", err)
	}
	dev.NextEphemeralPort()
	dev.NextEphemeralPort()

	resumed := dev.Deactivate().Activate(chip)
	if got := resumed.NextEphemeralPort(); got != 49154 {
		t.Fatalf("NextEphemeralPort after reactivation = %d, want 49154 (counter preserved)", got)
	}
}

func TestDeactivateActivatePreservesAllocator(t *testing.T) {
	chip := w5500test.NewChip()
	u := NewUninitializedDevice(chip)
	dev, err := u.InitializeManual(MACAddress{}, net.IPv4(10, 0, 0, 1), DefaultMode)
	if err != nil {
		t.Fatalf("InitializeManual: %v", err)
	}
	if _, err := dev.TakeSocket(); err != nil {
		t.Fatalf("TakeSocket: %v", err)
	}

	inactive := dev.Deactivate()
	resumed := inactive.Activate(chip)

	if _, err := resumed.TakeSocket(); err != nil {
		t.Fatalf("TakeSocket after reactivation: %v", err)
	}
	s2, err := resumed.TakeSocket()
	if err != nil {
		t.Fatalf("TakeSocket: %v", err)
	}
	if s2.Index() != 2 {
		t.Fatalf("allocator state lost across Deactivate/Activate: got index %d, want 2", s2.Index())
	}
}
