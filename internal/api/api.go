// Package api is the call surface offered to the hosted page. Quick calls
// answer directly; anything that touches the printer link runs on the bridge
// and answers with a handle.
package api

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"menuca.ca/restotool/internal/bridge"
	"menuca.ca/restotool/internal/link"
	"menuca.ca/restotool/internal/model"
	"menuca.ca/restotool/internal/printer"
)

// Version of the call surface reported to the page
const Version = 13

// page preferences live in their own key space
const preferencePrefix = "_wv_"

type Printers interface {
	HasPrinter() bool
	SelectPrinter(ctx context.Context, name, address string) (bool, error)
	SelectedPrinter() (link.Device, bool)
	Bonded(ctx context.Context) ([]link.Device, error)
	RadioEnabled(ctx context.Context) bool
}

type Printing interface {
	EnsureConnection(ctx context.Context) error
	BeginPrint(ctx context.Context) error
	EndPrint(ctx context.Context) error
	SelfTest(ctx context.Context) error
	Print(ctx context.Context, job *printer.Job) error
}

type Preferences interface {
	Preference(ctx context.Context, key string) (string, bool, error)
	SetPreference(ctx context.Context, key, value string) error
	DeletePreference(ctx context.Context, key string) error
}

type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

type Interface struct {
	Printers     Printers
	Printing     Printing
	Preferences  Preferences
	Resolver     Resolver
	Bridge       *bridge.Bridge
	Log          *zap.Logger
	HasRadio     bool
	AsyncTestFor time.Duration
}

func (i *Interface) log() *zap.Logger {
	if i.Log == nil {
		return zap.NewNop()
	}
	return i.Log
}

// boolOp adapts an operation to the page's boolean result, keeping the error
// on the handle
func boolOp(op func(ctx context.Context) error) bridge.Op {
	return func(ctx context.Context) (any, error) {
		if err := op(ctx); err != nil {
			return false, err
		}
		return true, nil
	}
}

func (i *Interface) HasPrinter() bool {
	return i.Printers.HasPrinter()
}

func (i *Interface) SelectPrinter(ctx context.Context, name, address string) bool {
	i.log().Debug("Selecting printer", zap.String("name", name), zap.String("address", address))
	ok, err := i.Printers.SelectPrinter(ctx, name, address)
	if err != nil {
		i.log().Warn("Couldn't select printer", zap.String("address", address), zap.Error(err))
	}
	return ok
}

// GetSelectedPrinter is the JSON {name, address} of the selected printer, or
// {} when there is none
func (i *Interface) GetSelectedPrinter() string {
	d, ok := i.Printers.SelectedPrinter()
	if !ok {
		return "{}"
	}
	return mustJSON(model.FromDevice(d))
}

// GetBTDevices is the JSON array of bonded devices
func (i *Interface) GetBTDevices(ctx context.Context) string {
	devices, err := i.Printers.Bonded(ctx)
	if err != nil {
		i.log().Warn("Couldn't list bonded devices", zap.Error(err))
	}
	return mustJSON(model.FromDevices(devices))
}

func (i *Interface) HasBluetooth() bool {
	return i.HasRadio
}

func (i *Interface) IsBluetoothEnabled(ctx context.Context) bool {
	return i.Printers.RadioEnabled(ctx)
}

func (i *Interface) EnsurePrinterConnection() *bridge.Call {
	return i.Bridge.Go("ensurePrinterConnection", boolOp(i.Printing.EnsureConnection))
}

func (i *Interface) StartPrinterJob() *bridge.Call {
	return i.Bridge.Go("startPrinterJob", boolOp(i.Printing.BeginPrint))
}

func (i *Interface) EndPrinterJob() *bridge.Call {
	return i.Bridge.Go("endPrinterJob", boolOp(i.Printing.EndPrint))
}

func (i *Interface) SelfTest() *bridge.Call {
	return i.Bridge.Go("selfTest", boolOp(i.Printing.SelfTest))
}

// Print parses and prints one job. Option errors are reported through the
// handle like any other failure.
func (i *Interface) Print(kind, target, options string) *bridge.Call {
	return i.Bridge.Go("print", boolOp(func(ctx context.Context) error {
		job, err := printer.ParseJob(kind, target, options)
		if err != nil {
			return err
		}
		return i.Printing.Print(ctx, job)
	}))
}

// Resolve looks host up and delivers its first address, or "" if it has none
func (i *Interface) Resolve(host string) *bridge.Call {
	return i.Bridge.Go("resolve", func(ctx context.Context) (any, error) {
		addrs, err := i.Resolver.LookupHost(ctx, host)
		if err != nil || len(addrs) == 0 {
			return "", err
		}
		return addrs[0], nil
	})
}

// AsyncTest resolves to true after a delay
func (i *Interface) AsyncTest() *bridge.Call {
	delay := i.AsyncTestFor
	if delay == 0 {
		delay = 2 * time.Second
	}
	return i.Bridge.Go("asyncTest", func(ctx context.Context) (any, error) {
		select {
		case <-time.After(delay):
			return true, nil
		case <-ctx.Done():
			return false, ctx.Err()
		}
	})
}

// GetPreference returns nil when key was never set
func (i *Interface) GetPreference(ctx context.Context, key string) *string {
	v, ok, err := i.Preferences.Preference(ctx, preferencePrefix+key)
	if err != nil {
		i.log().Warn("Couldn't read preference", zap.String("key", key), zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	return &v
}

// SetPreference stores value under key. A nil value removes the key.
func (i *Interface) SetPreference(ctx context.Context, key string, value *string) {
	var err error
	if value == nil {
		err = i.Preferences.DeletePreference(ctx, preferencePrefix+key)
	} else {
		err = i.Preferences.SetPreference(ctx, preferencePrefix+key, *value)
	}
	if err != nil {
		i.log().Warn("Couldn't save preference", zap.String("key", key), zap.Error(err))
	}
}

func (i *Interface) Version() int {
	return Version
}

// QueryPrinterFeature reports no optional printer features
func (i *Interface) QueryPrinterFeature(feature int) bool {
	return false
}

func (i *Interface) Call(handle string) (*bridge.Call, error) {
	return i.Bridge.Lookup(handle)
}

// Release forgets a handle whose result the page has consumed
func (i *Interface) Release(handle string) {
	i.Bridge.Release(handle)
}

func mustJSON(v any) string {
	out, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(out)
}
