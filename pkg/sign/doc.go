// Package sign implements secp256k1 recoverable signatures and account
// address derivation.
//
// The engine is stateless. A private key is supplied for each signing call
// and is never persisted by the package.
//
// # Signing
//
// SignRecoverable returns a 65-byte r || s || v signature. Nonces follow
// RFC 6979, optionally with 32 bytes of extra entropy. After signing, the
// public key is recovered from the fresh signature and compared with the
// public key derived from the private key. A mismatch is reported as
// ErrSigningFailed instead of returning an unverifiable signature.
//
// # Addresses
//
// An Address is the low 20 bytes of the Keccak-256 of the uncompressed public
// key coordinates. Its text form is lowercase hex, and ParseAddress accepts
// any letter case.
//
// Usage
//
//	signer, err := sign.NewSecp256k1Signer(privateKeyHex)
//	if err != nil {
//	    return err
//	}
//	sig, err := signer.Sign(sign.Keccak256(payload))
//	if err != nil {
//	    return err
//	}
//	from, err := sign.RecoverAddress(sign.Keccak256(payload), sig)
package sign
