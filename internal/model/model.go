package model

import (
	"encoding/json"

	"menuca.ca/restotool/internal/link"
)

type PrinterResponse struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

func FromDevice(d link.Device) PrinterResponse {
	return PrinterResponse{
		Name:    d.Name,
		Address: d.Address,
	}
}

func FromDevices(ds []link.Device) []PrinterResponse {
	out := make([]PrinterResponse, 0, len(ds))
	for _, d := range ds {
		out = append(out, FromDevice(d))
	}
	return out
}

// Request is one call from the page. Args are positional, as the page would
// pass them to the native method.
type Request struct {
	ID     int64             `json:"id"`
	Method string            `json:"method"`
	Args   []json.RawMessage `json:"args,omitempty"`
}

// Response answers a Request. Calls that run asynchronously answer with the
// handle id and are resolved later by a ResolveEvent.
type Response struct {
	ID     int64  `json:"id"`
	Result any    `json:"result"`
	Handle string `json:"handle,omitempty"`
	Error  string `json:"error,omitempty"`
}

const (
	EventResolve   = "resolve"
	EventLinkState = "link"
)

// ResolveEvent delivers the result of a completed handle
type ResolveEvent struct {
	Type   string          `json:"type"`
	Handle string          `json:"handle"`
	Value  json.RawMessage `json:"value"`
	Error  string          `json:"error,omitempty"`
	Kind   string          `json:"kind,omitempty"`
}

// HandleStatus answers the polling calls on a handle
type HandleStatus struct {
	Handle   string          `json:"handle"`
	Complete bool            `json:"complete"`
	Value    json.RawMessage `json:"value,omitempty"`
	Error    string          `json:"error,omitempty"`
	Kind     string          `json:"kind,omitempty"`
}

type LinkStateEvent struct {
	Type  string `json:"type"`
	State string `json:"state"`
}
