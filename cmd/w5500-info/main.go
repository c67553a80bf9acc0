// w5500-info connects to a W5500 over SPI and reads its chip version
// (logged with -v). With -ip it also brings the chip up with that fixed IP
// and prints the resulting gateway, subnet and PHY link status.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"net"
	"os"

	"github.com/kellerkindt/w5500"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/conn/pin"
	"periph.io/x/periph/conn/pin/pinreg"
	"periph.io/x/periph/conn/spi"
	"periph.io/x/periph/conn/spi/spireg"
	"periph.io/x/periph/host"
)

func printPin(fn string, p pin.Pin) {
	name, pos := pinreg.Position(p)
	if name != "" {
		log.Printf("  %-4s: %-10s found on header %s, #%d\n", fn, p, name, pos)
	} else {
		log.Printf("  %-4s: %-10s\n", fn, p)
	}
}

func mainImpl() error {
	spiID := flag.String("spi", "", "SPI port to use")
	csName := flag.String("cs", "", "chip-select GPIO pin name (required; the driver drives CS itself)")
	hz := flag.Int("hz", int(w5500.DefaultClockSpeed/physic.Hertz), "SPI clock speed")
	ip := flag.String("ip", "", "bring the chip up with this fixed IPv4 address instead of just reading VERSION")
	mac := flag.String("mac", "de:ad:be:ef:00:01", "MAC address to configure")
	verbose := flag.Bool("v", false, "verbose mode")
	flag.Parse()
	if !*verbose {
		log.SetOutput(ioutil.Discard)
	}
	log.SetFlags(log.Lmicroseconds)
	if flag.NArg() != 0 {
		return errors.New("unexpected argument, try -help")
	}
	if *csName == "" {
		return errors.New("-cs is required")
	}

	if _, err := host.Init(); err != nil {
		return err
	}

	p, err := spireg.Open(*spiID)
	if err != nil {
		return err
	}
	defer p.Close()
	if err := p.LimitSpeed(int64(*hz)); err != nil {
		return err
	}
	if pins, ok := p.(spi.Pins); ok {
		printPin("CLK", pins.CLK())
		printPin("MOSI", pins.MOSI())
		printPin("MISO", pins.MISO())
	}

	cs := gpioreg.ByName(*csName)
	if cs == nil {
		return fmt.Errorf("no such GPIO pin: %s", *csName)
	}
	printPin("CS", cs)

	conn, err := p.Connect(int64(*hz), spi.Mode0|spi.NoCS, 8)
	if err != nil {
		return err
	}

	bus := w5500.NewVDMBus(conn, cs)
	u := w5500.NewUninitializedDevice(bus)

	version, err := u.Version()
	if err != nil {
		return err
	}
	log.Printf("VERSION register: %#02x (expect %#02x)", version, w5500.ChipVersion)

	if *ip == "" {
		return nil
	}
	addr := net.ParseIP(*ip)
	if addr == nil {
		return fmt.Errorf("invalid -ip: %s", *ip)
	}
	hw, err := net.ParseMAC(*mac)
	if err != nil {
		return err
	}
	var macAddr w5500.MACAddress
	copy(macAddr[:], hw)

	dev, err := u.InitializeManual(macAddr, addr, w5500.DefaultMode)
	if err != nil {
		return err
	}
	gw, err := dev.Gateway()
	if err != nil {
		return err
	}
	subnet, err := dev.Subnet()
	if err != nil {
		return err
	}
	phy, err := dev.PhyConfig()
	if err != nil {
		return err
	}
	fmt.Printf("gateway=%s subnet=%s linkUp=%v\n", gw, subnet, phy.LinkUp())
	return nil
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "w5500-info: %s.\n", err)
		os.Exit(1)
	}
}
