package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Version is the JSON-RPC protocol version sent in every request.
const Version = "2.0"

// Request is a single JSON-RPC request. A batch is a JSON array of requests.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  Method `json:"method"`
	// Params are positional. Their count must equal the method's arity.
	Params []any `json:"params"`
	// ID correlates the request with its response.
	ID uint64 `json:"id"`
}

// NewRequest builds a request. It does not check the method; see Validate.
func NewRequest(id uint64, method Method, params ...any) Request {
	if params == nil {
		params = []any{}
	}
	return Request{
		JSONRPC: Version,
		Method:  method,
		Params:  params,
		ID:      id,
	}
}

// Validate checks the method and the parameter count, and that every
// parameter can be encoded.
func (r Request) Validate() error {
	arity, ok := r.Method.Arity()
	if !ok {
		return fmt.Errorf("%w: unknown method %q", ErrInvalidRequest, r.Method)
	}
	if len(r.Params) != arity {
		return fmt.Errorf("%w: %s takes %d params, got %d", ErrInvalidRequest, r.Method, arity, len(r.Params))
	}
	if _, err := json.Marshal(r.Params); err != nil {
		return fmt.Errorf("%w: %s params: %w", ErrInvalidRequest, r.Method, err)
	}
	return nil
}

// Response is a single JSON-RPC response. Exactly one of Result and Error is
// meaningful; a present Error takes precedence.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	// ID is nil when the node could not attribute the response to a request.
	ID     *uint64         `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *NodeError      `json:"error,omitempty"`
}

// NewResponse builds a successful response carrying result.
func NewResponse(id uint64, result any) (Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return Response{}, err
	}
	return Response{JSONRPC: Version, ID: &id, Result: raw}, nil
}

// NewErrorResponse builds a response carrying a node error.
func NewErrorResponse(id uint64, code int, message string) Response {
	return Response{
		JSONRPC: Version,
		ID:      &id,
		Error:   &NodeError{Code: code, Message: message},
	}
}

// IsNull reports whether the result is absent or JSON null.
func (r *Response) IsNull() bool {
	trimmed := bytes.TrimSpace(r.Result)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func (r *Response) hasID(id uint64) bool {
	return r.ID != nil && *r.ID == id
}
