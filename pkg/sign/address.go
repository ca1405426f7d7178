package sign

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/citahub/appchain-go/pkg/hex"
)

// AddressLength is the size of an account address in bytes.
const AddressLength = common.AddressLength

// ErrInvalidAddress is returned for address text that is not 20 bytes of hex.
var ErrInvalidAddress = errors.New("invalid address")

// Address is a 20-byte account address. Its text form is lowercase hex with a
// 0x prefix, and parsing ignores case, so two addresses that differ only in
// letter case compare equal.
type Address struct{ common.Address }

// ParseAddress parses a 40-digit hex address with or without the 0x prefix.
func ParseAddress(s string) (Address, error) {
	digits := hex.Strip0x(strings.TrimSpace(s))
	if len(digits) != 2*AddressLength {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	b, err := hex.Decode(digits)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return BytesToAddress(b), nil
}

// MustParseAddress is like ParseAddress but panics on malformed input.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// IsValidAddress reports whether s parses as an address.
func IsValidAddress(s string) bool {
	_, err := ParseAddress(s)
	return err == nil
}

// BytesToAddress converts b to an address, keeping the low 20 bytes.
func BytesToAddress(b []byte) Address {
	return Address{common.BytesToAddress(b)}
}

// String returns the canonical lowercase form.
func (a Address) String() string {
	return hex.Encode(a.Address[:])
}

// Bytes returns a copy of the raw address bytes.
func (a Address) Bytes() []byte {
	return a.Address.Bytes()
}

// Equals reports whether both addresses have the same normalized form.
func (a Address) Equals(other Address) bool {
	return a.Address == other.Address
}

// IsZero reports whether the address is all zeros.
func (a Address) IsZero() bool {
	return a.Address == common.Address{}
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(input []byte) error {
	parsed, err := ParseAddress(string(input))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// UnmarshalJSON implements json.Unmarshaler. It shadows the stricter decoder
// of the embedded common.Address so unprefixed and mixed-case text is accepted.
// A JSON null leaves the address unchanged.
func (a *Address) UnmarshalJSON(input []byte) error {
	if string(input) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(input, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAddress, input)
	}
	return a.UnmarshalText([]byte(s))
}
