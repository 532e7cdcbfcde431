// Package bridge runs blocking device operations off the caller's goroutine
// and hands back a handle the page can poll or subscribe to.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

var (
	ErrPanic    = errors.New("operation panicked")
	ErrNotFound = errors.New("no such call")
)

// Op is a blocking operation. It returns the value delivered to the page,
// which is still delivered when err is set.
type Op func(ctx context.Context) (any, error)

type Bridge struct {
	pool *Pool
	log  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	last atomic.Int64

	mu    sync.Mutex
	calls map[string]*Call
}

func New(workers int, log *zap.Logger) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		pool:   NewPool(workers),
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		calls:  map[string]*Call{},
	}
	b.last.Store(-1)
	return b
}

func (b *Bridge) nextID() string {
	return "p" + strconv.FormatInt(b.last.Add(1), 10)
}

// Go schedules op and returns its handle immediately. Once the bridge is
// closed the handle completes with ErrClosed straight away.
func (b *Bridge) Go(name string, op Op) *Call {
	c := newCall(b.nextID(), name)

	b.mu.Lock()
	b.calls[c.id] = c
	b.mu.Unlock()

	err := b.pool.Submit(func() {
		c.finish(b.run(c, op))
	})
	if err != nil {
		c.finish(Result{Value: false, Err: err})
	}
	return c
}

func (b *Bridge) run(c *Call, op Op) (r Result) {
	log := b.log.With(zap.String("call", c.id), zap.String("op", c.name))
	defer func() {
		if p := recover(); p != nil {
			log.Error("Operation panicked", zap.Any("panic", p), zap.Stack("stack"))
			r = Result{Value: false, Err: fmt.Errorf("%w: %v", ErrPanic, p)}
		}
	}()

	log.Debug("Running operation")
	v, err := op(b.ctx)
	if err != nil {
		log.Info("Operation failed", zap.Error(err))
	}
	return Result{Value: v, Err: err}
}

func (b *Bridge) Lookup(id string) (*Call, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.calls[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c, nil
}

// Release forgets a call once its result has been consumed
func (b *Bridge) Release(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.calls, id)
}

// Outstanding is the number of calls not yet released
func (b *Bridge) Outstanding() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

// Close cancels the context handed to running operations and waits for the
// queue to drain
func (b *Bridge) Close() {
	b.cancel()
	b.pool.Close()
}
