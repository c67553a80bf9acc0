package w5500

import "net"

// MACAddress is a 6-byte Ethernet hardware address.
type MACAddress [6]byte

func (m MACAddress) String() string {
	return net.HardwareAddr(m[:]).String()
}

// HostSettings is the {MAC, IP, gateway, subnet} tuple written to the
// chip's common registers.
type HostSettings struct {
	MAC     MACAddress
	IP      net.IP
	Gateway net.IP
	Subnet  net.IP
}

// HostConfig applies MAC/IP/gateway/subnet to the chip's common registers.
// Refresh is pluggable so a DHCP client (out of scope for this driver) can
// be substituted for ManualHost.
type HostConfig interface {
	// Refresh compares the desired settings against the shadow of what was
	// last written and writes only the differences.
	Refresh(bus Bus) error
}

// ManualHost is a HostConfig whose values are fixed at construction and
// written once: Refresh diffs the desired settings against a shadow of
// what was last written and only writes the fields that changed.
type ManualHost struct {
	settings HostSettings
	current  HostSettings
	isSetup  bool
}

// NewManualHost returns a HostConfig that writes settings to the chip the
// first time Refresh is called.
func NewManualHost(settings HostSettings) *ManualHost {
	return &ManualHost{settings: settings}
}

func (h *ManualHost) Refresh(bus Bus) error {
	if h.isSetup {
		return nil
	}
	if err := writeHostDiff(bus, &h.current, h.settings); err != nil {
		return err
	}
	h.isSetup = true
	return nil
}

// writeHostDiff writes only the fields of settings that differ from
// current, then updates current to match.
func writeHostDiff(bus Bus, current *HostSettings, settings HostSettings) error {
	if !ipEqual(current.Gateway, settings.Gateway) {
		if err := bus.WriteFrame(commonBlock, regGatewayAddr, to4(settings.Gateway)); err != nil {
			return wrapTransport(err)
		}
		current.Gateway = settings.Gateway
	}
	if !ipEqual(current.Subnet, settings.Subnet) {
		if err := bus.WriteFrame(commonBlock, regSubnetMask, to4(settings.Subnet)); err != nil {
			return wrapTransport(err)
		}
		current.Subnet = settings.Subnet
	}
	if current.MAC != settings.MAC {
		if err := bus.WriteFrame(commonBlock, regSourceMAC, settings.MAC[:]); err != nil {
			return wrapTransport(err)
		}
		current.MAC = settings.MAC
	}
	if !ipEqual(current.IP, settings.IP) {
		if err := bus.WriteFrame(commonBlock, regSourceIP, to4(settings.IP)); err != nil {
			return wrapTransport(err)
		}
		current.IP = settings.IP
	}
	return nil
}

func ipEqual(a, b net.IP) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b)
}

func to4(ip net.IP) []byte {
	if v4 := ip.To4(); v4 != nil {
		return v4
	}
	return make([]byte, 4)
}

// DHCPHost is a placeholder HostConfig: it currently leaves the chip's
// IP/gateway/subnet untouched past accepting a MAC address. A real DHCP
// client belongs to a separate subsystem driving a dedicated UDP socket;
// this type exists so UninitializedDevice.Initialize's signature matches that eventual
// shape without pretending to implement DHCP today.
type DHCPHost struct {
	mac MACAddress
}

// NewDHCPHost returns a placeholder HostConfig for mac. See the DHCPHost
// doc comment: Refresh is currently a no-op.
func NewDHCPHost(mac MACAddress) *DHCPHost {
	return &DHCPHost{mac: mac}
}

func (h *DHCPHost) Refresh(bus Bus) error {
	return nil
}
