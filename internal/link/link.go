// Package link owns the single connection to the paired receipt printer.
// It is built with the assumption that only one printer is in use at a time.
package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	ErrLinkUnavailable = errors.New("printer link unavailable")
	ErrIOFailure       = errors.New("printer i/o failure")
)

type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Faulted
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Faulted:
		return "faulted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Device identifies a printer by its human readable name and the address
// its transport dials: a MAC address, a serial port path or host:port
type Device struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

func (d Device) Matches(address string) bool {
	return strings.EqualFold(strings.TrimSpace(d.Address), strings.TrimSpace(address))
}

// Dialer opens a byte stream to the device at address
type Dialer interface {
	Dial(ctx context.Context, address string) (io.ReadWriteCloser, error)
}

// Radio reports whether the transport's adapter is switched on
type Radio interface {
	Enabled(ctx context.Context) (bool, error)
}

// Directory lists the devices the host is bonded with
type Directory interface {
	Bonded(ctx context.Context) ([]Device, error)
}

// Prober is implemented by directories that can accept devices they
// haven't listed, by checking the address is reachable
type Prober interface {
	Probe(ctx context.Context, address string) (Device, error)
}

// IdentityStore persists the selected printer between runs
type IdentityStore interface {
	LoadPrinter(ctx context.Context) (*Device, error)
	SavePrinter(ctx context.Context, d Device) error
}

// Radio for transports that are always available
type AlwaysOn struct{}

func (AlwaysOn) Enabled(ctx context.Context) (bool, error) {
	return true, nil
}
