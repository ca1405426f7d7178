package hex

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// Uint256Size is the width in bytes of a 256-bit protocol field.
const Uint256Size = 32

var (
	// ErrInvalidHex is returned when a string contains non-hex characters.
	ErrInvalidHex = errors.New("invalid hex string")
	// ErrTooLong is returned when a byte sequence does not fit the requested width.
	ErrTooLong = errors.New("byte sequence exceeds target width")
	// ErrNegative is returned when a negative integer is given where an unsigned one is required.
	ErrNegative = errors.New("negative value")
	// ErrUint256Overflow is returned when an integer does not fit in 256 bits.
	ErrUint256Overflow = errors.New("value exceeds 256 bits")
	// ErrUint64Overflow is returned when an integer does not fit in 64 bits.
	ErrUint64Overflow = errors.New("value exceeds 64 bits")
)

// Has0xPrefix reports whether s starts with "0x" or "0X".
func Has0xPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

// Strip0x removes a leading "0x" or "0X" if present.
func Strip0x(s string) string {
	if Has0xPrefix(s) {
		return s[2:]
	}
	return s
}

// Add0x prefixes s with "0x" unless it already carries a prefix.
func Add0x(s string) string {
	if Has0xPrefix(s) {
		return s
	}
	return "0x" + s
}

// Encode returns the 0x-prefixed lowercase hex form of b.
// Encode(nil) returns "0x".
func Encode(b []byte) string {
	return hexutil.Encode(b)
}

// Decode parses hex text into bytes. The 0x prefix is optional and an odd
// number of digits is accepted by assuming a leading zero nibble.
// An empty string or a bare "0x" decodes to an empty, non-nil slice.
func Decode(s string) ([]byte, error) {
	digits := Strip0x(strings.TrimSpace(s))
	if digits == "" {
		return []byte{}, nil
	}
	if len(digits)%2 == 1 {
		digits = "0" + digits
	}

	b, err := hexutil.Decode("0x" + digits)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHex, s)
	}
	return b, nil
}

// MustDecode is like Decode but panics on malformed input.
// It is intended for constants and test fixtures.
func MustDecode(s string) []byte {
	b, err := Decode(s)
	if err != nil {
		panic(err)
	}
	return b
}

// DecodeBig parses an unsigned hex quantity. Leading zeros are tolerated and
// "0x" alone is zero.
func DecodeBig(s string) (*big.Int, error) {
	digits := Strip0x(strings.TrimSpace(s))
	if digits == "" {
		return new(big.Int), nil
	}
	if digits[0] == '-' || digits[0] == '+' {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHex, s)
	}

	v, ok := new(big.Int).SetString(digits, 16)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHex, s)
	}
	return v, nil
}

// EncodeBig returns the 0x-prefixed hex quantity form of v without leading zeros.
// A nil value encodes as "0x0".
func EncodeBig(v *big.Int) string {
	if v == nil {
		return "0x0"
	}
	return hexutil.EncodeBig(v)
}

// DecodeUint64 parses a hex quantity that must fit in 64 bits.
func DecodeUint64(s string) (uint64, error) {
	v, err := DecodeBig(s)
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("%w: %q", ErrUint64Overflow, s)
	}
	return v.Uint64(), nil
}

// EncodeUint64 returns the 0x-prefixed hex quantity form of v.
func EncodeUint64(v uint64) string {
	return hexutil.EncodeUint64(v)
}

// PadLeft left-pads b with zeros to exactly width bytes.
// It never truncates; a longer input yields ErrTooLong.
func PadLeft(b []byte, width int) ([]byte, error) {
	if len(b) > width {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooLong, len(b), width)
	}
	out := make([]byte, width)
	copy(out[width-len(b):], b)
	return out, nil
}

// Uint256Bytes encodes v as a 32-byte big-endian field. A nil value is zero.
// Values that do not fit in 256 bits are rejected with ErrUint256Overflow,
// never clamped.
func Uint256Bytes(v *big.Int) ([]byte, error) {
	if v == nil {
		return make([]byte, Uint256Size), nil
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNegative, v)
	}

	u, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("%w: %s", ErrUint256Overflow, v)
	}
	b := u.Bytes32()
	return b[:], nil
}

// BigFromUint256Bytes interprets up to 32 big-endian bytes as an unsigned integer.
// An empty input is zero.
func BigFromUint256Bytes(b []byte) (*big.Int, error) {
	if len(b) > Uint256Size {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooLong, len(b), Uint256Size)
	}
	return new(uint256.Int).SetBytes(b).ToBig(), nil
}
