package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"tinygo.org/x/bluetooth"
)

var errNoDevice = errors.New("no matching device found")

// Most BLE receipt printers expose the 18F0 service with a 2AF1 write
// characteristic and a 2AF0 notify characteristic
var (
	DefaultBLEService = bluetooth.New16BitUUID(0x18f0)
	DefaultBLEWriter  = bluetooth.New16BitUUID(0x2af1)
	DefaultBLENotify  = bluetooth.New16BitUUID(0x2af0)
)

const defaultBLEChunk = 180

// BLEDialer connects to printers over Bluetooth Low Energy. Addresses are
// matched against the advertised address or local name.
type BLEDialer struct {
	Adapter     *bluetooth.Adapter
	Service     bluetooth.UUID
	Writer      bluetooth.UUID
	Notify      bluetooth.UUID
	ScanTimeout time.Duration
	// largest single write, bounded by the negotiated MTU
	ChunkSize int
	Log       *zap.Logger
}

func NewBLEDialer(log *zap.Logger) *BLEDialer {
	if log == nil {
		log = zap.NewNop()
	}
	return &BLEDialer{
		Adapter:     bluetooth.DefaultAdapter,
		Service:     DefaultBLEService,
		Writer:      DefaultBLEWriter,
		Notify:      DefaultBLENotify,
		ScanTimeout: 10 * time.Second,
		ChunkSize:   defaultBLEChunk,
		Log:         log,
	}
}

func (d *BLEDialer) scan(ctx context.Context, match func(bluetooth.ScanResult) bool) (bluetooth.ScanResult, error) {
	found := make(chan bluetooth.ScanResult, 1)
	failed := make(chan error, 1)

	go func() {
		err := d.Adapter.Scan(func(a *bluetooth.Adapter, r bluetooth.ScanResult) {
			if match(r) {
				d.Log.Debug("Found device", zap.String("name", r.LocalName()), zap.String("address", r.Address.String()))
				select {
				case found <- r:
				default:
				}
				a.StopScan()
			}
		})
		if err != nil {
			failed <- err
		}
	}()

	timeout := d.ScanTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	select {
	case r := <-found:
		return r, nil
	case err := <-failed:
		return bluetooth.ScanResult{}, fmt.Errorf("Failed to scan for devices:\n%w", err)
	case <-time.After(timeout):
		d.Adapter.StopScan()
		return bluetooth.ScanResult{}, errNoDevice
	case <-ctx.Done():
		d.Adapter.StopScan()
		return bluetooth.ScanResult{}, ctx.Err()
	}
}

func (d *BLEDialer) Dial(ctx context.Context, address string) (io.ReadWriteCloser, error) {
	if err := d.Adapter.Enable(); err != nil {
		return nil, fmt.Errorf("Failed to enable Bluetooth:\n%w", err)
	}

	res, err := d.scan(ctx, func(r bluetooth.ScanResult) bool {
		return strings.EqualFold(r.Address.String(), address) || r.LocalName() == address
	})
	if err != nil {
		return nil, err
	}

	device, err := d.Adapter.Connect(res.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, fmt.Errorf("Failed to connect to device:\n%w", err)
	}

	services, err := device.DiscoverServices([]bluetooth.UUID{d.Service})
	if err != nil || len(services) == 0 {
		device.Disconnect()
		return nil, fmt.Errorf("Failed to discover service %s: %v", d.Service, err)
	}

	chars, err := services[0].DiscoverCharacteristics(nil)
	if err != nil {
		device.Disconnect()
		return nil, fmt.Errorf("Failed to discover characteristics:\n%w", err)
	}

	c := &bleConn{
		device:   device,
		chunk:    d.ChunkSize,
		incoming: make(chan []byte, 16),
		closed:   make(chan struct{}),
	}
	if c.chunk <= 0 {
		c.chunk = defaultBLEChunk
	}
	for _, ch := range chars {
		switch ch.UUID() {
		case d.Writer:
			c.writer = ch
			c.hasWriter = true
		case d.Notify:
			err := ch.EnableNotifications(func(p []byte) {
				buf := append([]byte(nil), p...)
				select {
				case c.incoming <- buf:
				case <-c.closed:
				}
			})
			if err != nil {
				d.Log.Info("Couldn't enable notifications", zap.Error(err))
			}
		}
	}
	if !c.hasWriter {
		device.Disconnect()
		return nil, fmt.Errorf("Device %s has no write characteristic %s", address, d.Writer)
	}
	return c, nil
}

// bleConn adapts a GATT write characteristic and its notifications to a
// byte stream
type bleConn struct {
	device    bluetooth.Device
	writer    bluetooth.DeviceCharacteristic
	hasWriter bool
	chunk     int
	incoming  chan []byte
	pending   []byte
	closed    chan struct{}
	once      sync.Once
}

func (c *bleConn) Read(p []byte) (int, error) {
	if len(c.pending) == 0 {
		select {
		case buf := <-c.incoming:
			c.pending = buf
		case <-c.closed:
			return 0, io.EOF
		}
	}
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

func (c *bleConn) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		select {
		case <-c.closed:
			return written, io.ErrClosedPipe
		default:
		}
		n := min(len(p), c.chunk)
		if _, err := c.writer.WriteWithoutResponse(p[:n]); err != nil {
			return written, err
		}
		written += n
		p = p[n:]
	}
	return written, nil
}

func (c *bleConn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.closed)
		err = c.device.Disconnect()
	})
	return err
}

// BLERadio reports whether the adapter can be enabled
type BLERadio struct {
	Adapter *bluetooth.Adapter
}

func (r BLERadio) Enabled(ctx context.Context) (bool, error) {
	a := r.Adapter
	if a == nil {
		a = bluetooth.DefaultAdapter
	}
	if err := a.Enable(); err != nil {
		return false, nil
	}
	return true, nil
}

// BLEDirectory lists the printers advertising the print service nearby.
// BLE has no bonding step for these printers, so a short scan stands in.
type BLEDirectory struct {
	Dialer *BLEDialer
	Window time.Duration
}

func (b BLEDirectory) Bonded(ctx context.Context) ([]Device, error) {
	d := b.Dialer
	if err := d.Adapter.Enable(); err != nil {
		return nil, fmt.Errorf("Failed to enable Bluetooth:\n%w", err)
	}

	window := b.Window
	if window == 0 {
		window = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	var (
		mu      sync.Mutex
		devices []Device
		seen    = map[string]bool{}
	)
	go func() {
		<-ctx.Done()
		d.Adapter.StopScan()
	}()
	err := d.Adapter.Scan(func(a *bluetooth.Adapter, r bluetooth.ScanResult) {
		if !r.HasServiceUUID(d.Service) {
			return
		}
		addr := r.Address.String()
		mu.Lock()
		defer mu.Unlock()
		if !seen[addr] {
			seen[addr] = true
			devices = append(devices, Device{Name: r.LocalName(), Address: addr})
		}
	})
	if err != nil {
		return nil, fmt.Errorf("Failed to scan for devices:\n%w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	return devices, nil
}
