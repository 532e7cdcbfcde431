package link

import (
	"encoding/hex"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// how long a reconnect waits for the previous reader to exit
const readerJoinTimeout = 100 * time.Millisecond

const readBufferSize = 10

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// conn wraps a transport stream so that it is closed at most once
type conn struct {
	rw       io.ReadWriteCloser
	once     sync.Once
	closeErr error
}

func newConn(rw io.ReadWriteCloser) *conn {
	return &conn{rw: rw}
}

func (c *conn) Read(p []byte) (int, error) {
	return c.rw.Read(p)
}

func (c *conn) write(p []byte, timeout time.Duration) error {
	if d, ok := c.rw.(writeDeadliner); ok && timeout > 0 {
		if err := d.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return err
		}
	}
	for len(p) > 0 {
		n, err := c.rw.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}

func (c *conn) Close() error {
	c.once.Do(func() {
		c.closeErr = c.rw.Close()
	})
	return c.closeErr
}

// reader drains whatever the printer sends back and logs it
type reader struct {
	done    chan struct{}
	stopped atomic.Bool
}

func (m *Manager) startReaderLocked(c *conn) {
	r := &reader{done: make(chan struct{})}
	m.reader = r

	go func() {
		defer close(r.done)
		buf := make([]byte, readBufferSize)
		for {
			n, err := c.Read(buf)
			if n > 0 {
				m.log.Debug("Reader: received", zap.String("data", hex.EncodeToString(buf[:n])))
			}
			if err != nil {
				if r.stopped.Load() {
					return
				}
				m.log.Info("Reader: input stream disconnected", zap.Error(err))
				m.readerFailed(c)
				return
			}
		}
	}()
}

// stopReaderLocked closes the current stream, which unblocks the reader, and
// waits briefly for it to exit
func (m *Manager) stopReaderLocked() {
	r := m.reader
	if r == nil {
		return
	}
	m.reader = nil
	r.stopped.Store(true)
	if m.conn != nil {
		m.conn.Close()
	}

	select {
	case <-r.done:
	case <-time.After(readerJoinTimeout):
		m.log.Debug("Reader didn't stop in time")
	}
}

func (m *Manager) readerFailed(c *conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != c {
		return
	}
	// this goroutine is the reader, don't wait for it
	m.reader = nil
	m.closeConnLocked()
	m.setStateLocked(Faulted)
}
