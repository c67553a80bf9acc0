package w5500

import (
	"net"
	"testing"

	"github.com/kellerkindt/w5500/w5500test"
)

func TestManualHostWritesSettingsOnce(t *testing.T) {
	chip := w5500test.NewChip()
	settings := HostSettings{
		MAC:     MACAddress{1, 2, 3, 4, 5, 6},
		IP:      net.IPv4(192, 168, 1, 10),
		Gateway: net.IPv4(192, 168, 1, 1),
		Subnet:  net.IPv4(255, 255, 255, 0),
	}
	host := NewManualHost(settings)

	if err := host.Refresh(chip); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	writesAfterFirst := len(chip.Trace())

	if err := host.Refresh(chip); err != nil {
		t.Fatalf("second Refresh: %v", err)
	}
	if got := len(chip.Trace()); got != writesAfterFirst {
		t.Fatalf("second Refresh issued %d more frames, want 0 (one-shot write)", got-writesAfterFirst)
	}

	mac := chip.CommonRegister(regSourceMAC, 6)
	for i, b := range mac {
		if b != settings.MAC[i] {
			t.Fatalf("source MAC = % x, want % x", mac, settings.MAC)
		}
	}
	ip := chip.CommonRegister(regSourceIP, 4)
	if !net.IP(ip).Equal(settings.IP) {
		t.Fatalf("source IP = %v, want %v", net.IP(ip), settings.IP)
	}
}

func TestDHCPHostRefreshIsNoOp(t *testing.T) {
	chip := w5500test.NewChip()
	host := NewDHCPHost(MACAddress{1, 2, 3, 4, 5, 6})

	if err := host.Refresh(chip); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(chip.Trace()) != 0 {
		t.Fatalf("DHCPHost.Refresh issued %d frames, want 0", len(chip.Trace()))
	}
}
