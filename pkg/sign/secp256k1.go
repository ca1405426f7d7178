package sign

import (
	"bytes"
	"crypto/rand"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// SignRecoverable signs a 32-byte hash with a raw private key and returns a
// 65-byte r || s || v signature with v in {0,1,2,3}.
//
// Nonces follow RFC 6979. With useExtraEntropy set, 32 fresh random bytes are
// added to the nonce derivation so that repeated signing of the same hash
// produces distinct, equally valid signatures.
//
// Every signature is recovered once more and compared against the key derived
// from privateKey; a mismatch yields ErrSigningFailed.
func SignRecoverable(hash, privateKey []byte, useExtraEntropy bool) (Signature, error) {
	if len(hash) != HashLength {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHash, len(hash))
	}
	key, err := ethcrypto.ToECDSA(privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}

	var extra []byte
	if useExtraEntropy {
		extra = make([]byte, 32)
		if _, err := rand.Read(extra); err != nil {
			return nil, fmt.Errorf("%w: reading entropy: %v", ErrSigningFailed, err)
		}
	}

	sig := signRFC6979(privateKey, hash, extra)

	recovered, err := ethcrypto.Ecrecover(hash, sig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}
	if !bytes.Equal(recovered, ethcrypto.FromECDSAPub(&key.PublicKey)) {
		return nil, ErrSigningFailed
	}
	return sig, nil
}

// signRFC6979 computes a low-S ECDSA signature and its recovery code.
// extra may be nil or 32 bytes of additional nonce input.
func signRFC6979(privateKey, hash, extra []byte) Signature {
	var d, e secp256k1.ModNScalar
	d.SetByteSlice(privateKey)
	e.SetByteSlice(hash)
	defer d.Zero()

	for iteration := uint32(0); ; iteration++ {
		k := secp256k1.NonceRFC6979(privateKey, hash, extra, nil, iteration)

		var kG secp256k1.JacobianPoint
		secp256k1.ScalarBaseMultNonConst(k, &kG)
		kG.ToAffine()

		var xBytes [32]byte
		kG.X.PutBytes(&xBytes)
		var r secp256k1.ModNScalar
		overflow := r.SetBytes(&xBytes)
		if r.IsZero() {
			k.Zero()
			continue
		}
		recoveryID := byte(overflow<<1) | byte(kG.Y.IsOddBit())

		kinv := new(secp256k1.ModNScalar).InverseValNonConst(k)
		k.Zero()
		s := new(secp256k1.ModNScalar).Mul2(&d, &r).Add(&e).Mul(kinv)
		if s.IsZero() {
			continue
		}
		if s.IsOverHalfOrder() {
			s.Negate()
			recoveryID ^= 0x01
		}

		rb, sb := r.Bytes(), s.Bytes()
		sig := make(Signature, SignatureLength)
		copy(sig[:32], rb[:])
		copy(sig[32:64], sb[:])
		sig[RecoveryIDOffset] = recoveryID
		return sig
	}
}

// RecoverPublicKey recovers the 65-byte uncompressed public key that produced
// the 64-byte compact signature over hash. Recovery ids in the 27.. range are
// accepted and normalized.
func RecoverPublicKey(hash, compact []byte, recoveryID byte) ([]byte, error) {
	if len(hash) != HashLength {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHash, len(hash))
	}
	if len(compact) != RecoveryIDOffset {
		return nil, fmt.Errorf("%w: compact length %d", ErrSignatureCorrupted, len(compact))
	}
	if recoveryID >= 27 {
		recoveryID -= 27
	}
	if recoveryID > 3 {
		return nil, fmt.Errorf("%w: recovery id %d", ErrSignatureCorrupted, recoveryID)
	}

	sig := make([]byte, SignatureLength)
	copy(sig, compact)
	sig[RecoveryIDOffset] = recoveryID

	pub, err := ethcrypto.Ecrecover(hash, sig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCannotRecoverPublicKey, err)
	}
	return pub, nil
}

// RecoverAddress recovers the signer address of a 65-byte signature over hash.
func RecoverAddress(hash []byte, sig Signature) (Address, error) {
	if len(sig) != SignatureLength {
		return Address{}, fmt.Errorf("%w: length %d", ErrSignatureCorrupted, len(sig))
	}
	pub, err := RecoverPublicKey(hash, sig.Compact(), sig.RecoveryID())
	if err != nil {
		return Address{}, err
	}
	return PublicKeyToAddress(pub)
}

// PublicKeyToAddress hashes the 64-byte X || Y coordinates of pub with
// Keccak-256 and keeps the low 20 bytes. Compressed keys are decompressed first.
func PublicKeyToAddress(pub []byte) (Address, error) {
	key, err := ParsePublicKey(pub)
	if err != nil {
		return Address{}, err
	}
	return key.Address(), nil
}

// PrivateKeyToPublicKey derives the public key of a raw private key.
func PrivateKeyToPublicKey(privateKey []byte) (PublicKey, error) {
	key, err := ethcrypto.ToECDSA(privateKey)
	if err != nil {
		return PublicKey{}, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	return NewPublicKey(&key.PublicKey), nil
}

// AddressFromPrivateKey derives the account address of a raw private key.
func AddressFromPrivateKey(privateKey []byte) (Address, error) {
	pub, err := PrivateKeyToPublicKey(privateKey)
	if err != nil {
		return Address{}, err
	}
	return pub.Address(), nil
}

// Keccak256 hashes the concatenation of data.
func Keccak256(data ...[]byte) []byte {
	return ethcrypto.Keccak256(data...)
}
