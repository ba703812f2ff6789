// Package rpc implements the daemon's control plane: a line-delimited
// JSON-RPC 2.0 server bound to a Unix-domain socket (spec §4.J). Every
// CLI, launcher, and panel drives the daemon exclusively through this
// surface; handlers never touch dispatcher state directly — they all
// route through Dispatcher.Submit so side effects stay serialized with
// WM event handling (spec §5).
package rpc

import (
	"encoding/json"
	"errors"

	"github.com/vpittamp/i3pm-daemon/internal/errkind"
)

// request is one line of a line-delimited JSON-RPC 2.0 connection. ID is
// left as json.RawMessage so both numeric and string ids round-trip
// untouched; a nil ID marks a notification, which gets no response.
type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// response is one reply line: exactly one of Result/Error is set.
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// errorResponse maps err to a response, translating an *errkind.Error's
// Kind to its JSON-RPC code and falling back to -32603 (internal error)
// for anything else.
func errorResponse(id json.RawMessage, err error) response {
	code := -32603
	var ke *errkind.Error
	if errors.As(err, &ke) {
		code = ke.Kind.RPCCode()
	}
	return response{
		JSONRPC: "2.0",
		ID:      id,
		Error: &rpcError{
			Code:    code,
			Message: err.Error(),
		},
	}
}

func okResponse(id json.RawMessage, result any) response {
	return response{JSONRPC: "2.0", ID: id, Result: result}
}

// errUnknownMethod builds the -32601 error for a method with no handler.
func errUnknownMethod(method string) error {
	return errkind.New(errkind.NotFound, "unknown method: "+method)
}

// decodeParams unmarshals raw into v, wrapping any failure as a Parse
// (-32602) error — spec §4.J's "invalid params" case.
func decodeParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errkind.Wrap(errkind.Parse, "invalid params", err)
	}
	return nil
}
