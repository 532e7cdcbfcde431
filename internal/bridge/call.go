package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
)

// Result is what an operation produced. Err is set when it failed or
// panicked, in which case Value holds the operation's failure value.
type Result struct {
	Value any
	Err   error
}

// Call is the handle of one scheduled operation. It completes exactly once.
type Call struct {
	id   string
	name string

	// token held by whoever has locked the handle
	lock chan struct{}

	done     chan struct{}
	complete atomic.Bool
	result   Result

	listenMu  sync.Mutex
	listeners []func(*Call)
}

func newCall(id, name string) *Call {
	return &Call{
		id:   id,
		name: name,
		lock: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (c *Call) ID() string {
	return c.id
}

// Name of the operation the call runs
func (c *Call) Name() string {
	return c.name
}

func (c *Call) Complete() bool {
	return c.complete.Load()
}

// Lock blocks until the caller holds the handle. While it is held the call
// can't complete, so a caller that sees Complete() false can register for
// the result without missing it.
func (c *Call) Lock() {
	c.lock <- struct{}{}
}

// TryLock is Lock without waiting
func (c *Call) TryLock() bool {
	select {
	case c.lock <- struct{}{}:
		return true
	default:
		return false
	}
}

// Unlock releases the handle. Unlocking a handle that isn't locked is a
// no-op.
func (c *Call) Unlock() {
	select {
	case <-c.lock:
	default:
	}
}

// Result returns the outcome, which is only meaningful once Complete
func (c *Call) Result() Result {
	if !c.Complete() {
		return Result{}
	}
	return c.result
}

// Value is the JSON encoding of the result value, "null" until complete
func (c *Call) Value() string {
	if !c.Complete() {
		return "null"
	}
	out, err := json.Marshal(c.result.Value)
	if err != nil {
		return "null"
	}
	return string(out)
}

func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the call completes or ctx is done
func (c *Call) Wait(ctx context.Context) (Result, error) {
	select {
	case <-c.done:
		return c.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// OnComplete registers fn to run once the call completes. fn runs straight
// away if it already has.
func (c *Call) OnComplete(fn func(*Call)) {
	c.listenMu.Lock()
	if !c.Complete() {
		c.listeners = append(c.listeners, fn)
		c.listenMu.Unlock()
		return
	}
	c.listenMu.Unlock()
	fn(c)
}

func (c *Call) finish(r Result) {
	c.Lock()
	defer c.Unlock()

	c.listenMu.Lock()
	c.result = r
	c.complete.Store(true)
	close(c.done)
	listeners := c.listeners
	c.listeners = nil
	c.listenMu.Unlock()

	for _, fn := range listeners {
		fn(c)
	}
}
