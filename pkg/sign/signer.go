package sign

import (
	"fmt"

	"github.com/citahub/appchain-go/pkg/hex"
)

// Ensure our types implement the interfaces at compile time.
var _ Signer = (*Secp256k1Signer)(nil)

// Secp256k1Signer signs hashes with an in-memory private key.
type Secp256k1Signer struct {
	privateKey      []byte
	publicKey       PublicKey
	useExtraEntropy bool
}

// SignerOption customises a Secp256k1Signer.
type SignerOption func(*Secp256k1Signer)

// WithExtraEntropy mixes fresh randomness into every signing nonce.
func WithExtraEntropy(enabled bool) SignerOption {
	return func(s *Secp256k1Signer) {
		s.useExtraEntropy = enabled
	}
}

// NewSecp256k1Signer creates a signer from a hex-encoded 32-byte private key.
// The 0x prefix is optional.
func NewSecp256k1Signer(privateKeyHex string, opts ...SignerOption) (*Secp256k1Signer, error) {
	raw, err := hex.Decode(privateKeyHex)
	if err != nil || len(raw) != PrivateKeyLength {
		return nil, fmt.Errorf("%w: could not parse private key", ErrInvalidPrivateKey)
	}
	return NewSecp256k1SignerFromBytes(raw, opts...)
}

// NewSecp256k1SignerFromBytes creates a signer from a raw 32-byte private key.
func NewSecp256k1SignerFromBytes(privateKey []byte, opts ...SignerOption) (*Secp256k1Signer, error) {
	pub, err := PrivateKeyToPublicKey(privateKey)
	if err != nil {
		return nil, err
	}
	s := &Secp256k1Signer{
		privateKey: append([]byte(nil), privateKey...),
		publicKey:  pub,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// PublicKey returns the signer's public key.
func (s *Secp256k1Signer) PublicKey() PublicKey { return s.publicKey }

// Address returns the signer's account address.
func (s *Secp256k1Signer) Address() Address { return s.publicKey.Address() }

// Sign expects the input to be a 32-byte hash (e.g. Keccak-256).
func (s *Secp256k1Signer) Sign(hash []byte) (Signature, error) {
	return SignRecoverable(hash, s.privateKey, s.useExtraEntropy)
}
