package hex

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
)

var null = []byte("null")

// Bytes is a byte slice that marshals as 0x-prefixed hex and unmarshals
// leniently from the forms a node emits ("", "0x", odd length).
// A JSON null leaves the slice nil.
type Bytes []byte

// MarshalText implements encoding.TextMarshaler.
func (b Bytes) MarshalText() ([]byte, error) {
	return []byte(Encode(b)), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *Bytes) UnmarshalJSON(input []byte) error {
	if bytes.Equal(input, null) {
		return nil
	}
	var s string
	if err := json.Unmarshal(input, &s); err != nil {
		return fmt.Errorf("%w: expected string, got %s", ErrInvalidHex, input)
	}
	v, err := Decode(s)
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// String returns the hex form.
func (b Bytes) String() string {
	return Encode(b)
}

// Big is an unsigned big integer that marshals as a hex quantity and
// unmarshals from either a hex string or a JSON number.
type Big big.Int

// NewBig wraps v.
func NewBig(v *big.Int) *Big {
	return (*Big)(v)
}

// ToInt returns the underlying big.Int.
func (b *Big) ToInt() *big.Int {
	return (*big.Int)(b)
}

// MarshalText implements encoding.TextMarshaler.
func (b *Big) MarshalText() ([]byte, error) {
	return []byte(EncodeBig(b.ToInt())), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *Big) UnmarshalJSON(input []byte) error {
	if bytes.Equal(input, null) {
		return nil
	}

	var v *big.Int
	if len(input) > 0 && input[0] == '"' {
		var s string
		if err := json.Unmarshal(input, &s); err != nil {
			return err
		}
		parsed, err := DecodeBig(s)
		if err != nil {
			return err
		}
		v = parsed
	} else {
		parsed, ok := new(big.Int).SetString(string(input), 10)
		if !ok || parsed.Sign() < 0 {
			return fmt.Errorf("%w: %s", ErrInvalidHex, input)
		}
		v = parsed
	}

	b.ToInt().Set(v)
	return nil
}

// String returns the decimal form.
func (b *Big) String() string {
	return b.ToInt().String()
}

// Uint64 is a uint64 that marshals as a hex quantity and unmarshals from
// either a hex string or a JSON number.
type Uint64 uint64

// MarshalText implements encoding.TextMarshaler.
func (u Uint64) MarshalText() ([]byte, error) {
	return []byte(EncodeUint64(uint64(u))), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (u *Uint64) UnmarshalJSON(input []byte) error {
	if bytes.Equal(input, null) {
		return nil
	}

	if len(input) > 0 && input[0] == '"' {
		var s string
		if err := json.Unmarshal(input, &s); err != nil {
			return err
		}
		v, err := DecodeUint64(s)
		if err != nil {
			return err
		}
		*u = Uint64(v)
		return nil
	}

	v, err := strconv.ParseUint(string(input), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUint64Overflow, input)
	}
	*u = Uint64(v)
	return nil
}
