package link

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"menuca.ca/restotool/internal/escpos"
)

type Config struct {
	// connection attempts made by one EnsureConnection call
	Attempts   int
	RetryDelay time.Duration
	// applied to each frame when the transport supports write deadlines
	WriteTimeout time.Duration
	// Send connects first when the link is down instead of failing
	ReconnectOnSend bool
}

func DefaultConfig() Config {
	return Config{
		Attempts:        1,
		WriteTimeout:    10 * time.Second,
		ReconnectOnSend: true,
	}
}

// Manager holds the printer identity and the one live connection to it.
// Every exported method runs under the same mutex.
type Manager struct {
	mu        sync.Mutex
	cfg       Config
	dialer    Dialer
	radio     Radio
	directory Directory
	store     IdentityStore
	log       *zap.Logger

	state    State
	device   *Device
	conn     *conn
	reader   *reader
	onChange []func(State)
}

func NewManager(cfg Config, dialer Dialer, radio Radio, directory Directory, store IdentityStore, log *zap.Logger) *Manager {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	if radio == nil {
		radio = AlwaysOn{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		cfg:       cfg,
		dialer:    dialer,
		radio:     radio,
		directory: directory,
		store:     store,
		log:       log,
	}
}

// OnStateChange registers fn to be called after every state transition.
// fn runs with the manager locked and must not call back into it.
func (m *Manager) OnStateChange(fn func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = append(m.onChange, fn)
}

func (m *Manager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	m.log.Debug("Link state changed", zap.Stringer("from", m.state), zap.Stringer("to", s))
	m.state = s
	for _, fn := range m.onChange {
		fn(s)
	}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) HasPrinter() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.device != nil
}

// SelectedPrinter returns the current printer identity, if any
func (m *Manager) SelectedPrinter() (Device, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device == nil {
		return Device{}, false
	}
	return *m.device, true
}

// RadioEnabled reports whether the transport's adapter is on
func (m *Manager) RadioEnabled(ctx context.Context) bool {
	enabled, err := m.radio.Enabled(ctx)
	if err != nil {
		m.log.Debug("Couldn't query radio", zap.Error(err))
		return false
	}
	return enabled
}

// Bonded lists the devices the host is paired with
func (m *Manager) Bonded(ctx context.Context) ([]Device, error) {
	if m.directory == nil {
		return nil, nil
	}
	return m.directory.Bonded(ctx)
}

// FindPrinter restores the persisted identity if the device is still bonded.
// It does nothing when a printer is already selected.
func (m *Manager) FindPrinter(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findLocked(ctx)
}

func (m *Manager) findLocked(ctx context.Context) error {
	if m.device != nil || m.store == nil {
		return nil
	}

	saved, err := m.store.LoadPrinter(ctx)
	if err != nil {
		return fmt.Errorf("Couldn't load saved printer:\n%w", err)
	}
	if saved == nil || saved.Address == "" {
		return nil
	}

	d, ok, err := m.lookupLocked(ctx, saved.Address)
	if err != nil {
		return err
	}
	if !ok {
		m.log.Info("Couldn't find previously associated printer", zap.String("address", saved.Address))
		return nil
	}
	if d.Name == "" {
		d.Name = saved.Name
	}
	m.device = &d
	m.log.Info("Found printer", zap.String("name", d.Name), zap.String("address", d.Address))
	return nil
}

func (m *Manager) lookupLocked(ctx context.Context, address string) (Device, bool, error) {
	if m.directory == nil {
		return Device{}, false, nil
	}
	bonded, err := m.directory.Bonded(ctx)
	if err != nil {
		return Device{}, false, fmt.Errorf("Couldn't list bonded devices:\n%w", err)
	}
	for _, d := range bonded {
		if d.Matches(address) {
			return d, true, nil
		}
	}

	if p, ok := m.directory.(Prober); ok {
		d, err := p.Probe(ctx, address)
		if err != nil {
			m.log.Debug("Probe failed", zap.String("address", address), zap.Error(err))
			return Device{}, false, nil
		}
		return d, true, nil
	}
	return Device{}, false, nil
}

// SelectPrinter makes the bonded device at address the current printer and
// persists it. The live connection is dropped if the address changes.
// It reports false when no bonded device has that address.
func (m *Manager) SelectPrinter(ctx context.Context, name, address string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok, err := m.lookupLocked(ctx, address)
	if err != nil || !ok {
		return false, err
	}
	if d.Name == "" {
		d.Name = name
	}

	if m.device != nil && m.device.Matches(d.Address) {
		return true, nil
	}

	m.closeLocked()
	m.device = &d
	if m.store != nil {
		if err := m.store.SavePrinter(ctx, d); err != nil {
			return true, fmt.Errorf("Couldn't save printer:\n%w", err)
		}
	}
	m.log.Info("Selected printer", zap.String("name", d.Name), zap.String("address", d.Address))
	return true, nil
}

// EnsureConnection connects to the selected printer unless already
// connected, making at most Config.Attempts attempts. A fresh connection is
// sent the init command before it is reported usable.
func (m *Manager) EnsureConnection(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensureLocked(ctx)
}

func (m *Manager) ensureLocked(ctx context.Context) error {
	enabled, err := m.radio.Enabled(ctx)
	if err != nil {
		return fmt.Errorf("%w: couldn't query radio: %v", ErrLinkUnavailable, err)
	}
	if !enabled {
		return fmt.Errorf("%w: radio is off", ErrLinkUnavailable)
	}

	if err := m.findLocked(ctx); err != nil {
		m.log.Warn("Couldn't restore printer", zap.Error(err))
	}
	if m.device == nil {
		return fmt.Errorf("%w: no printer selected", ErrLinkUnavailable)
	}
	if m.state == Connected && m.conn != nil {
		return nil
	}

	var lastErr error
	for attempt := 1; attempt <= m.cfg.Attempts; attempt++ {
		if attempt > 1 && m.cfg.RetryDelay > 0 {
			select {
			case <-time.After(m.cfg.RetryDelay):
			case <-ctx.Done():
				m.setStateLocked(Disconnected)
				return fmt.Errorf("%w: %v", ErrLinkUnavailable, ctx.Err())
			}
		}

		if lastErr = m.connectLocked(ctx); lastErr == nil {
			return nil
		}
		m.log.Info("Connection attempt failed",
			zap.Int("attempt", attempt),
			zap.String("address", m.device.Address),
			zap.Error(lastErr),
		)
	}

	m.setStateLocked(Disconnected)
	return fmt.Errorf("%w: %d attempt(s) to %s failed: %v", ErrLinkUnavailable, m.cfg.Attempts, m.device.Address, lastErr)
}

func (m *Manager) connectLocked(ctx context.Context) error {
	m.setStateLocked(Connecting)
	m.stopReaderLocked()
	m.closeConnLocked()

	rw, err := m.dialer.Dial(ctx, m.device.Address)
	if err != nil {
		return err
	}

	c := newConn(rw)
	m.conn = c
	m.startReaderLocked(c)

	if err := c.write(escpos.InitPrinter(), m.cfg.WriteTimeout); err != nil {
		m.stopReaderLocked()
		m.closeConnLocked()
		return fmt.Errorf("Couldn't initialise printer:\n%w", err)
	}

	m.setStateLocked(Connected)
	m.log.Info("Connected to printer", zap.String("address", m.device.Address))
	return nil
}

// Send writes frames in order on the live connection. A write failure tears
// the connection down and leaves the link Faulted.
func (m *Manager) Send(ctx context.Context, frames ...[]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Connected || m.conn == nil {
		if !m.cfg.ReconnectOnSend {
			return fmt.Errorf("%w: not connected", ErrLinkUnavailable)
		}
		if err := m.ensureLocked(ctx); err != nil {
			return err
		}
	}

	for _, f := range frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.conn.write(f, m.cfg.WriteTimeout); err != nil {
			m.log.Error("Couldn't write data", zap.Int("size", len(f)), zap.Error(err))
			m.stopReaderLocked()
			m.closeConnLocked()
			m.setStateLocked(Faulted)
			return fmt.Errorf("%w: %v", ErrIOFailure, err)
		}
		m.log.Debug("Wrote data to device", zap.Int("size", len(f)))
	}
	return nil
}

func (m *Manager) closeConnLocked() {
	if m.conn == nil {
		return
	}
	if err := m.conn.Close(); err != nil {
		m.log.Debug("Failed to close printer connection", zap.Error(err))
	} else {
		m.log.Debug("Connection closed")
	}
	m.conn = nil
}

func (m *Manager) closeLocked() {
	m.stopReaderLocked()
	m.closeConnLocked()
	m.setStateLocked(Disconnected)
}

// Close drops the connection. Closing an already closed link is a no-op.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeLocked()
	return nil
}
