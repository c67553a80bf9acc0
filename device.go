package w5500

import (
	"encoding/binary"
	"net"
)

// OnWakeOnLan controls whether the chip raises an interrupt on a Wake-on-LAN
// magic packet.
type OnWakeOnLan bool

// OnWakeOnLan values.
const (
	WakeOnLanInvokeInterrupt OnWakeOnLan = true
	WakeOnLanIgnore          OnWakeOnLan = false
)

// OnPingRequest controls whether the chip answers ICMP echo requests.
type OnPingRequest bool

// OnPingRequest values.
const (
	PingRespond OnPingRequest = false
	PingIgnore  OnPingRequest = true
)

// ConnectionType selects PPPoE framing vs. plain Ethernet.
type ConnectionType bool

// ConnectionType values.
const (
	ConnectionEthernet ConnectionType = false
	ConnectionPPPoE    ConnectionType = true
)

// ArpResponses controls whether the chip caches ARP replies or drops them
// after a single use.
type ArpResponses bool

// ArpResponses values.
const (
	ArpDropAfterUse ArpResponses = false
	ArpCache        ArpResponses = true
)

// Mode is the set of chip-wide flags written to the common MODE register on
// initialization.
type Mode struct {
	WakeOnLan    OnWakeOnLan
	Ping         OnPingRequest
	Connection   ConnectionType
	ArpResponses ArpResponses
}

// DefaultMode matches the chip's power-on defaults.
var DefaultMode = Mode{
	WakeOnLan:    WakeOnLanIgnore,
	Ping:         PingRespond,
	Connection:   ConnectionEthernet,
	ArpResponses: ArpDropAfterUse,
}

func (m Mode) byte() byte {
	var b byte
	if m.WakeOnLan == WakeOnLanInvokeInterrupt {
		b |= 1 << 5
	}
	if m.Ping == PingIgnore {
		b |= 1 << 4
	}
	if m.Connection == ConnectionPPPoE {
		b |= 1 << 3
	}
	if m.ArpResponses == ArpCache {
		b |= 1 << 1
	}
	return b
}

// DefaultRetryTime is RETRY_TIME's power-on default: 200ms, in 100µs units.
const DefaultRetryTime RetryTime = 0x07D0

// DefaultRetryCount is RETRY_COUNT's power-on default.
const DefaultRetryCount byte = 8

// RetryTime is the RETRY_TIME register's value, in units of 100µs.
type RetryTime uint16

// RetryTimeFromMillis converts a millisecond duration to a RetryTime.
func RetryTimeFromMillis(ms uint16) RetryTime { return RetryTime(ms) * 10 }

// Millis returns the retry time in whole milliseconds.
func (t RetryTime) Millis() uint16 { return uint16(t) / 10 }

// UninitializedDevice wraps a Bus before the chip has been brought up. It is
// the entry point for Initialize/InitializeManual/InitializeAdvanced/
// InitializeMACRAW.
type UninitializedDevice struct {
	bus Bus
	// SkipVersionCheck disables the VERSION==0x04 presence check performed
	// by Initialize*, for compatibility with silicon revisions that report
	// a different value.
	SkipVersionCheck bool
}

// NewUninitializedDevice wraps bus for initialization.
func NewUninitializedDevice(bus Bus) *UninitializedDevice {
	return &UninitializedDevice{bus: bus}
}

// Version reads the chip's VERSION register.
func (u *UninitializedDevice) Version() (byte, error) {
	var v [1]byte
	if err := u.bus.ReadFrame(commonBlock, regVersion, v[:]); err != nil {
		return 0, wrapTransport(err)
	}
	return v[0], nil
}

// Initialize brings the chip up with a DHCP-backed HostConfig placeholder;
// see DHCPHost's doc comment for the current no-op scope of DHCP support.
func (u *UninitializedDevice) Initialize(mac MACAddress, mode Mode) (*Device, error) {
	return u.initializeWithHost(NewDHCPHost(mac), mode)
}

// InitializeManual brings the chip up with a fixed IP, deriving a gateway
// from ip with its last octet set to 1 and a /24 subnet.
func (u *UninitializedDevice) InitializeManual(mac MACAddress, ip net.IP, mode Mode) (*Device, error) {
	v4 := ip.To4()
	if v4 == nil {
		return nil, newError(ErrUnsupportedAddress)
	}
	gateway := make(net.IP, 4)
	copy(gateway, v4)
	gateway[3] = 1
	subnet := net.IPv4(255, 255, 255, 0).To4()
	return u.InitializeAdvanced(mac, ip, gateway, subnet, mode)
}

// InitializeAdvanced brings the chip up with an explicit IP, gateway and
// subnet mask.
func (u *UninitializedDevice) InitializeAdvanced(mac MACAddress, ip, gateway, subnet net.IP, mode Mode) (*Device, error) {
	host := NewManualHost(HostSettings{
		MAC:     mac,
		IP:      ip,
		Gateway: gateway,
		Subnet:  subnet,
	})
	return u.initializeWithHost(host, mode)
}

// InitializeMACRAW brings the chip up with socket 0 repurposed for raw
// Ethernet frames and sockets 1-7 reduced to zero buffer. It returns a
// RawDevice rather than a Device since sockets 1-7 cannot be opened for
// UDP/TCP in this configuration.
func (u *UninitializedDevice) InitializeMACRAW(mac MACAddress) (*RawDevice, error) {
	dev, err := u.initializeWithHost(NewDHCPHost(mac), DefaultMode)
	if err != nil {
		return nil, err
	}
	return newRawDevice(dev)
}

// reset writes the chip's reset bit and waits for it to self-clear, since
// the bit is documented to self-clear rather than needing a fixed delay.
func (u *UninitializedDevice) reset() error {
	if err := u.bus.WriteFrame(commonBlock, regMode, []byte{modeResetBit}); err != nil {
		return wrapTransport(err)
	}
	for {
		var m [1]byte
		if err := u.bus.ReadFrame(commonBlock, regMode, m[:]); err != nil {
			return wrapTransport(err)
		}
		if m[0]&modeResetBit == 0 {
			return nil
		}
	}
}

func (u *UninitializedDevice) setMode(mode Mode) error {
	return u.bus.WriteFrame(commonBlock, regMode, []byte{mode.byte()})
}

func (u *UninitializedDevice) initializeWithHost(host HostConfig, mode Mode) (*Device, error) {
	if !u.SkipVersionCheck {
		v, err := u.Version()
		if err != nil {
			return nil, err
		}
		if v != ChipVersion {
			return nil, newError(ErrChipNotConnected)
		}
	}
	if err := u.reset(); err != nil {
		return nil, err
	}
	if err := u.setMode(mode); err != nil {
		return nil, wrapTransport(err)
	}
	if err := host.Refresh(u.bus); err != nil {
		return nil, err
	}
	return &Device{bus: u.bus, host: host, free: 0xFF, nextPort: ephemeralPortBase}, nil
}

// ephemeralPortBase is the first port NextEphemeralPort hands out, and the
// value it wraps back to once the counter passes 65535.
const ephemeralPortBase uint16 = 49152

// Device is a W5500 that has completed initialization. It owns the bus, the
// host-configuration shadow and the eight-socket allocator.
type Device struct {
	bus  Bus
	host HostConfig
	// free is a bitmask over the eight sockets; bit N set means socket N is
	// available for TakeSocket.
	free uint8
	// nextPort is the value NextEphemeralPort will hand out next.
	nextPort uint16
}

// TakeSocket claims and returns the lowest-numbered free socket. It fails
// with ErrNoMoreSockets once all eight are taken.
func (d *Device) TakeSocket() (Socket, error) {
	if d.free == 0 {
		return Socket{}, newError(ErrNoMoreSockets)
	}
	for i := uint8(0); i < 8; i++ {
		bit := uint8(1) << i
		if d.free&bit != 0 {
			d.free &^= bit
			return Socket{index: i}, nil
		}
	}
	return Socket{}, newError(ErrNoMoreSockets)
}

// ReleaseSocket returns s to the allocator. s must have been closed first;
// ReleaseSocket does not itself issue a CLOSE command.
func (d *Device) ReleaseSocket(s Socket) {
	d.free |= 1 << s.index
}

// Reset reinitializes the chip, returning it to the Uninitialized state. It
// fails with ErrSocketsNotReleased unless every socket has been returned via
// ReleaseSocket first.
func (d *Device) Reset() (*UninitializedDevice, error) {
	if d.free != 0xFF {
		return nil, newError(ErrSocketsNotReleased)
	}
	u := &UninitializedDevice{bus: d.bus}
	if err := u.reset(); err != nil {
		return nil, err
	}
	return u, nil
}

// Gateway reads the chip's current gateway address.
func (d *Device) Gateway() (net.IP, error) {
	var b [4]byte
	if err := d.bus.ReadFrame(commonBlock, regGatewayAddr, b[:]); err != nil {
		return nil, wrapTransport(err)
	}
	return net.IP(b[:]).To4(), nil
}

// Subnet reads the chip's current subnet mask.
func (d *Device) Subnet() (net.IP, error) {
	var b [4]byte
	if err := d.bus.ReadFrame(commonBlock, regSubnetMask, b[:]); err != nil {
		return nil, wrapTransport(err)
	}
	return net.IP(b[:]).To4(), nil
}

// MAC reads the chip's current source hardware address.
func (d *Device) MAC() (MACAddress, error) {
	var mac MACAddress
	if err := d.bus.ReadFrame(commonBlock, regSourceMAC, mac[:]); err != nil {
		return mac, wrapTransport(err)
	}
	return mac, nil
}

// IP reads the chip's current source IP address.
func (d *Device) IP() (net.IP, error) {
	var b [4]byte
	if err := d.bus.ReadFrame(commonBlock, regSourceIP, b[:]); err != nil {
		return nil, wrapTransport(err)
	}
	return net.IP(b[:]).To4(), nil
}

// Version reads the chip's VERSION register.
func (d *Device) Version() (byte, error) {
	var v [1]byte
	if err := d.bus.ReadFrame(commonBlock, regVersion, v[:]); err != nil {
		return 0, wrapTransport(err)
	}
	return v[0], nil
}

// SetRetryTimeout writes the common RETRY_TIME register, the interval the
// chip waits before retransmitting an unacknowledged TCP segment or ARP
// request.
func (d *Device) SetRetryTimeout(t RetryTime) error {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(t))
	return wrapTransport(d.bus.WriteFrame(commonBlock, regRetryTime, b[:]))
}

// RetryTimeout reads the common RETRY_TIME register.
func (d *Device) RetryTimeout() (RetryTime, error) {
	var b [2]byte
	if err := d.bus.ReadFrame(commonBlock, regRetryTime, b[:]); err != nil {
		return 0, wrapTransport(err)
	}
	return RetryTime(binary.BigEndian.Uint16(b[:])), nil
}

// SetRetryCount writes the common RETRY_COUNT register, the number of
// retransmissions attempted before a socket reports INTERRUPT_TIMEOUT.
func (d *Device) SetRetryCount(n byte) error {
	return wrapTransport(d.bus.WriteFrame(commonBlock, regRetryCount, []byte{n}))
}

// RetryCount reads the common RETRY_COUNT register.
func (d *Device) RetryCount() (byte, error) {
	var b [1]byte
	if err := d.bus.ReadFrame(commonBlock, regRetryCount, b[:]); err != nil {
		return 0, wrapTransport(err)
	}
	return b[0], nil
}

// PhyConfig reads and decodes the chip's PHY status/configuration register.
func (d *Device) PhyConfig() (PhyConfig, error) {
	var b [1]byte
	if err := d.bus.ReadFrame(commonBlock, regPhyConfig, b[:]); err != nil {
		return 0, wrapTransport(err)
	}
	return PhyConfig(b[0]), nil
}

// NextEphemeralPort hands out the next port in a counter that starts at
// ephemeralPortBase and wraps back to it after 65535, for callers who open
// several sockets from a shared local port pool rather than picking literal
// port numbers themselves.
func (d *Device) NextEphemeralPort() uint16 {
	p := d.nextPort
	if d.nextPort == 0xFFFF {
		d.nextPort = ephemeralPortBase
	} else {
		d.nextPort++
	}
	return p
}

// Deactivate surrenders the bus handle while preserving the host-config
// shadow, the socket allocator bitmap and the ephemeral port counter, so a
// later Activate on a freshly reopened bus resumes exactly where Deactivate
// left off without re-running host configuration.
func (d *Device) Deactivate() *InactiveDevice {
	return &InactiveDevice{host: d.host, free: d.free, nextPort: d.nextPort}
}

// InactiveDevice is a Device whose bus handle has been surrendered via
// Deactivate. It retains the host-configuration shadow and allocator state
// needed to resume via Activate.
type InactiveDevice struct {
	host     HostConfig
	free     uint8
	nextPort uint16
}

// Activate resumes on a newly obtained bus handle without rewriting host
// configuration or resetting the socket allocator.
func (i *InactiveDevice) Activate(bus Bus) *Device {
	return &Device{bus: bus, host: i.host, free: i.free, nextPort: i.nextPort}
}

// PhyConfig decodes the common PHY status/configuration register into its
// link-up, speed, duplex and operation-mode bits.
type PhyConfig byte

// LinkUp reports the PHY's link-status bit.
func (p PhyConfig) LinkUp() bool { return p&(1<<0) != 0 }

// PhySpeed is the negotiated or configured link speed.
type PhySpeed bool

// PhySpeed values.
const (
	Speed10BaseT  PhySpeed = false
	Speed100BaseT PhySpeed = true
)

// Speed reports the PHY's speed bit.
func (p PhyConfig) Speed() PhySpeed { return PhySpeed(p&(1<<1) != 0) }

// PhyDuplex is the negotiated or configured duplex mode.
type PhyDuplex bool

// PhyDuplex values.
const (
	DuplexHalf PhyDuplex = false
	DuplexFull PhyDuplex = true
)

// Duplex reports the PHY's duplex bit.
func (p PhyConfig) Duplex() PhyDuplex { return PhyDuplex(p&(1<<2) != 0) }

// OperationMode reports whether the PHY's operation mode was fixed by
// OPMDC at reset (true) or is being auto-negotiated (false).
func (p PhyConfig) OperationMode() bool { return p&(1<<6) != 0 }
