package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest is returned before any network activity for an
	// unknown method, a wrong parameter count or unencodable parameters.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrDuplicateID is returned when a request id is already in flight.
	// The existing call is left untouched.
	ErrDuplicateID = errors.New("request id already in flight")
	// ErrProtocolMismatch is returned when a response cannot be correlated
	// with the request or batch that was sent.
	ErrProtocolMismatch = errors.New("response does not match request")
	// ErrTransport is returned when the exchange with the node failed or the
	// node sent something that is not JSON-RPC.
	ErrTransport = errors.New("transport failure")
	// ErrEmptyResponse is returned, wrapped in ErrTransport, when the node
	// answered with an empty body.
	ErrEmptyResponse = errors.New("empty response")
	// ErrDispatcherClosed is returned for calls made after Close.
	ErrDispatcherClosed = errors.New("dispatcher closed")
	// ErrNotFound is returned when the node answered null for a record.
	ErrNotFound = errors.New("result not found")
	// ErrUnexpectedResult is returned when a result does not have the shape
	// of the method that was called.
	ErrUnexpectedResult = errors.New("unexpected result")
)

// NodeError is the error object of a JSON-RPC response.
type NodeError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node error %d: %s", e.Code, e.Message)
}

// transportError makes sure err is classified as ErrTransport.
func transportError(err error) error {
	if err == nil || errors.Is(err, ErrTransport) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}
