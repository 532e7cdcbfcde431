package main

import (
	"fmt"

	"go.uber.org/zap"

	"menuca.ca/restotool/internal/config"
	"menuca.ca/restotool/internal/link"
)

type transport struct {
	dialer    link.Dialer
	radio     link.Radio
	directory link.Directory
	// whether the host has a radio the page should know about
	hasRadio bool
}

func newTransport(cfg config.LinkConfig, log *zap.Logger) (*transport, error) {
	switch cfg.Transport {
	case config.TransportTCP:
		d := link.TCPDialer{Port: cfg.TCPPort, Timeout: cfg.DialTimeout}
		return &transport{
			dialer:    d,
			radio:     link.AlwaysOn{},
			directory: link.NetworkDirectory{Printers: cfg.Printers, Dialer: d},
		}, nil
	case config.TransportSerial:
		return &transport{
			dialer:    link.SerialDialer{BaudRate: cfg.BaudRate, Bindings: cfg.Bindings},
			radio:     link.AlwaysOn{},
			directory: link.SerialPorts{},
		}, nil
	case config.TransportBluetooth:
		// classic Bluetooth printers are reached through their rfcomm binding
		return &transport{
			dialer:    link.SerialDialer{BaudRate: cfg.BaudRate, Bindings: cfg.Bindings},
			radio:     link.BluezRadio{},
			directory: link.BluezDirectory{},
			hasRadio:  true,
		}, nil
	case config.TransportBLE:
		d := link.NewBLEDialer(log)
		d.ScanTimeout = cfg.ScanTimeout
		return &transport{
			dialer:    d,
			radio:     link.BLERadio{Adapter: d.Adapter},
			directory: link.BLEDirectory{Dialer: d, Window: cfg.ScanTimeout},
			hasRadio:  true,
		}, nil
	default:
		return nil, fmt.Errorf("Unknown transport %q", cfg.Transport)
	}
}
