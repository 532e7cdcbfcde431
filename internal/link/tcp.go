package link

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"
)

const DefaultRawPort = 9100

// TCPDialer connects to network printers on their raw print port
type TCPDialer struct {
	Port    int
	Timeout time.Duration
}

func (d TCPDialer) address(address string) string {
	if _, _, err := net.SplitHostPort(address); err == nil {
		return address
	}
	port := d.Port
	if port == 0 {
		port = DefaultRawPort
	}
	return net.JoinHostPort(address, fmt.Sprint(port))
}

func (d TCPDialer) Dial(ctx context.Context, address string) (io.ReadWriteCloser, error) {
	timeout := d.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	nd := net.Dialer{Timeout: timeout}
	c, err := nd.DialContext(ctx, "tcp", d.address(address))
	if err != nil {
		return nil, fmt.Errorf("Couldn't connect to %s:\n%w", address, err)
	}
	return c, nil
}

// NetworkDirectory treats a fixed list of network printers as bonded and
// accepts any other address that answers on the raw print port
type NetworkDirectory struct {
	Printers []Device
	Dialer   TCPDialer
	// timeout for a single reachability probe
	ProbeTimeout time.Duration
}

func (n NetworkDirectory) Bonded(ctx context.Context) ([]Device, error) {
	out := make([]Device, len(n.Printers))
	copy(out, n.Printers)
	return out, nil
}

func (n NetworkDirectory) Probe(ctx context.Context, address string) (Device, error) {
	timeout := n.ProbeTimeout
	if timeout == 0 {
		timeout = 300 * time.Millisecond
	}
	nd := net.Dialer{Timeout: timeout}
	c, err := nd.DialContext(ctx, "tcp", n.Dialer.address(address))
	if err != nil {
		return Device{}, err
	}
	c.Close()
	return Device{Name: address, Address: address}, nil
}
