package sign

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/citahub/appchain-go/pkg/hex"
)

const (
	// HashLength is the size of the digest that is signed.
	HashLength = 32
	// PrivateKeyLength is the size of a raw secp256k1 private key.
	PrivateKeyLength = 32
	// SignatureLength is the size of a compact recoverable signature, r || s || v.
	SignatureLength = 65
	// RecoveryIDOffset is the index of the recovery id inside a Signature.
	RecoveryIDOffset = 64
)

var (
	// ErrInvalidPrivateKey is returned when a key is not a valid secp256k1 scalar.
	ErrInvalidPrivateKey = errors.New("invalid private key")
	// ErrInvalidHash is returned when the digest to sign is not 32 bytes.
	ErrInvalidHash = errors.New("invalid hash length")
	// ErrSigningFailed is returned when a produced signature does not recover
	// to the signer's own public key.
	ErrSigningFailed = errors.New("signing failed")
	// ErrSignatureCorrupted is returned for malformed signatures or recovery ids.
	ErrSignatureCorrupted = errors.New("signature corrupted")
	// ErrCannotRecoverPublicKey is returned when public key recovery fails on the curve.
	ErrCannotRecoverPublicKey = errors.New("cannot recover public key")
	// ErrInvalidPublicKey is returned for public keys of unknown length or off the curve.
	ErrInvalidPublicKey = errors.New("invalid public key")
)

// Signer produces recoverable signatures over 32-byte hashes.
type Signer interface {
	PublicKey() PublicKey                // Public key associated with this signer.
	Sign(hash []byte) (Signature, error) // Sign signs a precomputed hash.
}

// PublicKey is a secp256k1 public key.
type PublicKey struct {
	key *ecdsa.PublicKey
}

// NewPublicKey wraps an ECDSA public key.
func NewPublicKey(pub *ecdsa.PublicKey) PublicKey {
	return PublicKey{key: pub}
}

// ParsePublicKey accepts a 33-byte compressed, 64-byte raw or 65-byte
// uncompressed public key.
func ParsePublicKey(b []byte) (PublicKey, error) {
	var (
		pub *ecdsa.PublicKey
		err error
	)
	switch len(b) {
	case 33:
		pub, err = ethcrypto.DecompressPubkey(b)
	case 64:
		pub, err = ethcrypto.UnmarshalPubkey(append([]byte{0x04}, b...))
	case 65:
		pub, err = ethcrypto.UnmarshalPubkey(b)
	default:
		return PublicKey{}, fmt.Errorf("%w: unexpected length %d", ErrInvalidPublicKey, len(b))
	}
	if err != nil {
		return PublicKey{}, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return PublicKey{key: pub}, nil
}

// Address derives the 20-byte account address of the key.
func (p PublicKey) Address() Address {
	return Address{ethcrypto.PubkeyToAddress(*p.key)}
}

// Bytes returns the 65-byte uncompressed encoding (0x04 || X || Y).
func (p PublicKey) Bytes() []byte {
	return ethcrypto.FromECDSAPub(p.key)
}

// Compressed returns the 33-byte compressed encoding.
func (p PublicKey) Compressed() []byte {
	return ethcrypto.CompressPubkey(p.key)
}

// String returns the uncompressed key without the format byte, as hex.
func (p PublicKey) String() string {
	return hex.Encode(p.Bytes()[1:])
}

// Signature is a 65-byte compact recoverable signature laid out as r || s || v
// where v is the raw recovery id in {0,1,2,3}.
type Signature []byte

// R returns the r component.
func (s Signature) R() []byte { return s[:32] }

// S returns the s component.
func (s Signature) S() []byte { return s[32:64] }

// RecoveryID returns the recovery id byte.
func (s Signature) RecoveryID() byte { return s[RecoveryIDOffset] }

// Compact returns the 64-byte r || s part.
func (s Signature) Compact() []byte { return s[:RecoveryIDOffset] }

// MarshalJSON encodes the signature as a hex string.
func (s Signature) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (s *Signature) UnmarshalJSON(data []byte) error {
	var hexStr string
	if err := json.Unmarshal(data, &hexStr); err != nil {
		return err
	}
	decoded, err := hex.Decode(hexStr)
	if err != nil {
		return err
	}
	if len(decoded) != SignatureLength {
		return fmt.Errorf("%w: length %d", ErrSignatureCorrupted, len(decoded))
	}
	*s = decoded
	return nil
}

// String implements the fmt.Stringer interface
func (s Signature) String() string {
	return hex.Encode(s)
}
