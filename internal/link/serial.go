package link

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.bug.st/serial"
)

const DefaultBaudRate = 115200

// SerialDialer opens the serial device a printer is bound to. Addresses that
// aren't in Bindings are used as the port path.
type SerialDialer struct {
	BaudRate int
	// device address (usually a MAC) to port path, e.g. /dev/rfcomm0
	Bindings map[string]string
}

func (d SerialDialer) port(address string) string {
	for addr, path := range d.Bindings {
		if strings.EqualFold(addr, address) {
			return path
		}
	}
	return address
}

func (d SerialDialer) Dial(ctx context.Context, address string) (io.ReadWriteCloser, error) {
	baud := d.BaudRate
	if baud == 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	path := d.port(address)
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("Couldn't open serial port %s:\n%w", path, err)
	}
	return port, nil
}

// SerialPorts lists the serial ports present on the host as devices
type SerialPorts struct{}

func (SerialPorts) Bonded(ctx context.Context) ([]Device, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("Couldn't list serial ports:\n%w", err)
	}
	devices := make([]Device, 0, len(ports))
	for _, p := range ports {
		devices = append(devices, Device{Name: p, Address: p})
	}
	return devices, nil
}
