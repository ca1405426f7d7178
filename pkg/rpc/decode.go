package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/citahub/appchain-go/pkg/hex"
	"github.com/citahub/appchain-go/pkg/sign"
	"github.com/citahub/appchain-go/pkg/types"
)

// Decode turns the response of method into the method's result shape:
//
//	quantity        *big.Int
//	data            []byte
//	bool            bool
//	block           *types.Block
//	receipt         *types.TransactionReceipt
//	transaction     *types.TransactionDetails
//	sending result  *types.TransactionSendingResult
//	logs            []types.EventLog
//	filter changes  *types.FilterChanges
//	metadata        *types.MetaData
//	version         *types.Version
//	peers info      *types.PeersInfo
//
// A node error is returned as *NodeError. A null result yields ErrNotFound for
// nullable methods and ErrUnexpectedResult for the others.
func Decode(method Method, resp *Response) (any, error) {
	if method.IsKnown() {
		if err := CheckResult(method, resp); err != nil {
			return nil, err
		}
	}
	switch method.ResultKind() {
	case KindQuantity:
		return DecodeBig(resp)
	case KindData:
		return DecodeBytes(resp)
	case KindBool:
		return DecodeBool(resp)
	case KindBlock:
		return decodeRecord[types.Block](method, resp)
	case KindReceipt:
		return decodeRecord[types.TransactionReceipt](method, resp)
	case KindTransaction:
		return decodeRecord[types.TransactionDetails](method, resp)
	case KindSendingResult:
		return decodeRecord[types.TransactionSendingResult](method, resp)
	case KindLogs:
		return DecodeLogs(resp)
	case KindFilterChanges:
		return decodeRecord[types.FilterChanges](method, resp)
	case KindMetaData:
		return decodeRecord[types.MetaData](method, resp)
	case KindVersion:
		return decodeRecord[types.Version](method, resp)
	case KindPeersInfo:
		return decodeRecord[types.PeersInfo](method, resp)
	default:
		return nil, fmt.Errorf("%w: unknown method %q", ErrInvalidRequest, method)
	}
}

// DecodeInto unmarshals the result of resp into a new T and validates its
// required fields.
func DecodeInto[T any](resp *Response) (T, error) {
	var out T
	raw, err := result(resp)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("%w: %w", ErrUnexpectedResult, err)
	}
	if err := types.Validate(&out); err != nil {
		return out, fmt.Errorf("%w: %w", ErrUnexpectedResult, err)
	}
	return out, nil
}

// CheckResult applies the precedence rules of method to resp: a node error
// wins, then a null result is ErrNotFound when method is nullable and
// ErrUnexpectedResult otherwise.
func CheckResult(method Method, resp *Response) error {
	if resp == nil {
		return fmt.Errorf("%w: no response", ErrProtocolMismatch)
	}
	if resp.Error != nil {
		return resp.Error
	}
	if resp.IsNull() {
		if method.Nullable() {
			return fmt.Errorf("%w: %s", ErrNotFound, method)
		}
		return fmt.Errorf("%w: %s returned null", ErrUnexpectedResult, method)
	}
	return nil
}

func decodeRecord[T any](method Method, resp *Response) (*T, error) {
	v, err := DecodeInto[T](resp)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// DecodeBig decodes a quantity given as a hex string or a JSON number.
func DecodeBig(resp *Response) (*big.Int, error) {
	v, err := DecodeInto[hex.Big](resp)
	if err != nil {
		return nil, err
	}
	return v.ToInt(), nil
}

// DecodeUint64 decodes a quantity that must fit in 64 bits.
func DecodeUint64(resp *Response) (uint64, error) {
	v, err := DecodeInto[hex.Uint64](resp)
	return uint64(v), err
}

// DecodeBool decodes a boolean.
func DecodeBool(resp *Response) (bool, error) {
	return DecodeInto[bool](resp)
}

// DecodeString decodes a plain string.
func DecodeString(resp *Response) (string, error) {
	return DecodeInto[string](resp)
}

// DecodeBytes decodes hex data.
func DecodeBytes(resp *Response) ([]byte, error) {
	v, err := DecodeInto[hex.Bytes](resp)
	if err != nil {
		return nil, err
	}
	if v == nil {
		v = hex.Bytes{}
	}
	return v, nil
}

// DecodeAddress decodes an account address.
func DecodeAddress(resp *Response) (sign.Address, error) {
	return DecodeInto[sign.Address](resp)
}

// DecodeBigs decodes a list of quantities.
func DecodeBigs(resp *Response) ([]*big.Int, error) {
	vs, err := DecodeInto[[]*hex.Big](resp)
	if err != nil {
		return nil, err
	}
	out := make([]*big.Int, len(vs))
	for i, v := range vs {
		if v == nil {
			return nil, fmt.Errorf("%w: null quantity at %d", ErrUnexpectedResult, i)
		}
		out[i] = v.ToInt()
	}
	return out, nil
}

// DecodeBytesList decodes a list of hex data.
func DecodeBytesList(resp *Response) ([][]byte, error) {
	vs, err := DecodeInto[[]hex.Bytes](resp)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out, nil
}

// DecodeAddresses decodes a list of account addresses.
func DecodeAddresses(resp *Response) ([]sign.Address, error) {
	return DecodeInto[[]sign.Address](resp)
}

// DecodeLogs decodes a list of event logs.
func DecodeLogs(resp *Response) ([]types.EventLog, error) {
	logs, err := DecodeInto[[]types.EventLog](resp)
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []types.EventLog{}
	}
	return logs, nil
}

// result applies the precedence rules shared by the typed decoders, which do
// not know the method: a node error wins, then a null result is ErrNotFound.
func result(resp *Response) (json.RawMessage, error) {
	if resp == nil {
		return nil, fmt.Errorf("%w: no response", ErrProtocolMismatch)
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	if resp.IsNull() {
		return nil, ErrNotFound
	}
	return resp.Result, nil
}
