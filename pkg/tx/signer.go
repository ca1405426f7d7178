package tx

import (
	"errors"
	"fmt"

	"github.com/citahub/appchain-go/pkg/hex"
	"github.com/citahub/appchain-go/pkg/sign"
)

// Sender identifies who signed an envelope.
type Sender struct {
	Address sign.Address
	// PublicKey is the 65-byte uncompressed key.
	PublicKey []byte
}

// Unsigned is the result of opening a signed envelope.
type Unsigned struct {
	Transaction *Transaction
	Sender      Sender
	Signature   sign.Signature
	Crypto      Crypto
}

type signOptions struct {
	extraEntropy bool
}

// SignOption customises Sign.
type SignOption func(*signOptions)

// WithExtraEntropy mixes fresh randomness into the signature nonce.
func WithExtraEntropy() SignOption {
	return func(o *signOptions) {
		o.extraEntropy = true
	}
}

// Sign encodes tx, signs its Keccak-256 hash with the hex private key and
// returns the 0x-prefixed envelope ready for sendRawTransaction.
// The key is only held for the duration of the call.
func Sign(tx *Transaction, privateKeyHex string, opts ...SignOption) (string, error) {
	var o signOptions
	for _, opt := range opts {
		opt(&o)
	}

	signer, err := sign.NewSecp256k1Signer(privateKeyHex, sign.WithExtraEntropy(o.extraEntropy))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPrivateKeyInvalid, err)
	}
	return SignWith(tx, signer)
}

// SignWith is like Sign but delegates the signature to signer.
// A failed signature is reported and never retried, so the caller always
// knows which signature was produced.
func SignWith(tx *Transaction, signer sign.Signer) (string, error) {
	body, err := tx.Marshal()
	if err != nil {
		return "", err
	}

	sig, err := signer.Sign(sign.Keccak256(body))
	if err != nil {
		if errors.Is(err, sign.ErrInvalidPrivateKey) {
			return "", fmt.Errorf("%w: %w", ErrPrivateKeyInvalid, err)
		}
		return "", fmt.Errorf("%w: %w", ErrSignatureFailed, err)
	}
	if len(sig) != sign.SignatureLength {
		return "", fmt.Errorf("%w: signature is %d bytes", ErrSignatureFailed, len(sig))
	}

	env := envelope{
		transaction: body,
		signature:   sig,
		crypto:      CryptoSecp256k1,
	}
	return hex.Encode(env.marshal()), nil
}

// Unsign parses a signed envelope, recovers the sender from the signature over
// the re-encoded transaction and rebuilds the transaction fields.
func Unsign(envelopeHex string) (*Unsigned, error) {
	raw, err := hex.Decode(envelopeHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSignatureIncorrect, err)
	}

	var env envelope
	if err := env.unmarshal(raw); err != nil {
		return nil, fmt.Errorf("%w: malformed envelope: %w", ErrSignatureIncorrect, err)
	}
	if env.crypto != CryptoSecp256k1 {
		return nil, fmt.Errorf("%w: unsupported crypto %s", ErrSignatureIncorrect, env.crypto)
	}
	if len(env.signature) != sign.SignatureLength {
		return nil, fmt.Errorf("%w: signature is %d bytes", ErrSignatureIncorrect, len(env.signature))
	}

	var msg txMessage
	if err := msg.unmarshal(env.transaction); err != nil {
		return nil, fmt.Errorf("%w: malformed transaction: %w", ErrSignatureIncorrect, err)
	}

	sig := sign.Signature(env.signature)
	hash := sign.Keccak256(msg.marshal())
	pub, err := sign.RecoverPublicKey(hash, sig.Compact(), sig.RecoveryID())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSignatureIncorrect, err)
	}
	addr, err := sign.PublicKeyToAddress(pub)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSignatureIncorrect, err)
	}

	tx, err := msg.transaction()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSignatureIncorrect, err)
	}

	return &Unsigned{
		Transaction: tx,
		Sender:      Sender{Address: addr, PublicKey: pub},
		Signature:   sig,
		Crypto:      env.crypto,
	}, nil
}

// Hash returns the on-chain hash of a signed envelope, which is the
// Keccak-256 of the envelope bytes.
func Hash(envelopeHex string) (string, error) {
	raw, err := hex.Decode(envelopeHex)
	if err != nil {
		return "", err
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("%w: empty envelope", ErrSignatureIncorrect)
	}
	return hex.Encode(sign.Keccak256(raw)), nil
}
