package server

import (
	"context"
	"encoding/json"
	"fmt"

	"menuca.ca/restotool/internal/bridge"
	"menuca.ca/restotool/internal/model"
)

type args []json.RawMessage

func (a args) string(i int) (string, error) {
	if i >= len(a) {
		return "", fmt.Errorf("%w: missing argument %d", errBadArgs, i)
	}
	var s string
	if string(a[i]) == "null" {
		return "", nil
	}
	if err := json.Unmarshal(a[i], &s); err != nil {
		return "", fmt.Errorf("%w: argument %d: %v", errBadArgs, i, err)
	}
	return s, nil
}

// optString is string for arguments the page may pass as null
func (a args) optString(i int) (*string, error) {
	if i < len(a) && string(a[i]) == "null" {
		return nil, nil
	}
	s, err := a.string(i)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (a args) int(i int) (int, error) {
	if i >= len(a) {
		return 0, fmt.Errorf("%w: missing argument %d", errBadArgs, i)
	}
	var n int
	if err := json.Unmarshal(a[i], &n); err != nil {
		return 0, fmt.Errorf("%w: argument %d: %v", errBadArgs, i, err)
	}
	return n, nil
}

func (a args) strings(n int) ([]string, error) {
	out := make([]string, n)
	for i := range n {
		s, err := a.string(i)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// dispatch answers req. A new handle is returned alongside the response so
// its result can be pushed once the response itself has been queued.
func (s *session) dispatch(ctx context.Context, req model.Request) (model.Response, *bridge.Call) {
	res := model.Response{ID: req.ID}
	result, handle, err := s.call(ctx, req.Method, args(req.Args))
	if err != nil {
		res.Error = err.Error()
		return res, nil
	}
	res.Handle = handle
	if c, ok := result.(*bridge.Call); ok {
		return res, c
	}
	res.Result = result
	return res, nil
}

func (s *session) call(ctx context.Context, method string, a args) (any, string, error) {
	api := s.srv.API

	switch method {
	case "hasPrinter":
		return api.HasPrinter(), "", nil
	case "selectPrinter":
		v, err := a.strings(2)
		if err != nil {
			return nil, "", err
		}
		return api.SelectPrinter(ctx, v[0], v[1]), "", nil
	case "getSelectedPrinter":
		return json.RawMessage(api.GetSelectedPrinter()), "", nil
	case "getBTDevices":
		return json.RawMessage(api.GetBTDevices(ctx)), "", nil
	case "hasBluetooth":
		return api.HasBluetooth(), "", nil
	case "isBluetoothEnabled":
		return api.IsBluetoothEnabled(ctx), "", nil
	case "getPreference":
		key, err := a.string(0)
		if err != nil {
			return nil, "", err
		}
		if v := api.GetPreference(ctx, key); v != nil {
			return *v, "", nil
		}
		return json.RawMessage("null"), "", nil
	case "setPreference":
		key, err := a.string(0)
		if err != nil {
			return nil, "", err
		}
		value, err := a.optString(1)
		if err != nil {
			return nil, "", err
		}
		api.SetPreference(ctx, key, value)
		return true, "", nil
	case "version":
		return api.Version(), "", nil
	case "queryPrinterFeature":
		n, err := a.int(0)
		if err != nil {
			return nil, "", err
		}
		return api.QueryPrinterFeature(n), "", nil

	case "ensurePrinterConnection", "ensureConnection":
		return s.track(api.EnsurePrinterConnection())
	case "startPrinterJob", "beginPrint":
		return s.track(api.StartPrinterJob())
	case "endPrinterJob", "endPrint":
		return s.track(api.EndPrinterJob())
	case "selfTest":
		return s.track(api.SelfTest())
	case "asyncTest":
		return s.track(api.AsyncTest())
	case "print":
		v, err := a.strings(3)
		if err != nil {
			return nil, "", err
		}
		return s.track(api.Print(v[0], v[1], v[2]))
	case "resolve":
		host, err := a.string(0)
		if err != nil {
			return nil, "", err
		}
		return s.track(api.Resolve(host))

	case "complete", "getValue", "lock", "unlock", "release":
		return s.handleCall(method, a)
	}
	return nil, "", fmt.Errorf("%w: unknown method %q", errBadArgs, method)
}

// handleCall serves the methods the page calls on a handle
func (s *session) handleCall(method string, a args) (any, string, error) {
	id, err := a.string(0)
	if err != nil {
		return nil, "", err
	}
	c, err := s.handle(id)
	if err != nil {
		return nil, "", err
	}

	switch method {
	case "complete":
		return c.Complete(), id, nil
	case "getValue":
		return status(c), id, nil
	case "lock":
		s.lock(c)
		return true, id, nil
	case "unlock":
		s.unlock(c)
		return true, id, nil
	default:
		s.release(c)
		return true, id, nil
	}
}

func (s *session) lock(c *bridge.Call) {
	s.mu.Lock()
	_, held := s.locked[c.ID()]
	s.mu.Unlock()
	if held {
		return
	}
	c.Lock()
	s.mu.Lock()
	s.locked[c.ID()] = c
	s.mu.Unlock()
}

func (s *session) unlock(c *bridge.Call) {
	s.mu.Lock()
	_, held := s.locked[c.ID()]
	delete(s.locked, c.ID())
	s.mu.Unlock()
	if held {
		c.Unlock()
	}
}

func (s *session) release(c *bridge.Call) {
	s.unlock(c)
	s.mu.Lock()
	delete(s.handles, c.ID())
	s.mu.Unlock()
	s.srv.API.Release(c.ID())
}
