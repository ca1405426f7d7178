package sign

import (
	"bytes"
	"fmt"
	"strconv"
)

const personalMessagePrefix = "\x19Ethereum Signed Message:\n"

// HashPersonalMessage returns the Keccak-256 of msg framed with the personal
// message prefix and its length. Messages that already carry the prefix are
// hashed as is.
func HashPersonalMessage(msg []byte) []byte {
	return Keccak256(withPersonalPrefix(msg))
}

func withPersonalPrefix(msg []byte) []byte {
	prefix := []byte(personalMessagePrefix + strconv.Itoa(len(msg)))
	if bytes.HasPrefix(msg, prefix) {
		return msg
	}
	return append(prefix, msg...)
}

// SignPersonalMessage signs msg as a personal message. The returned signature
// carries v in the 27/28 form expected by wallets.
func SignPersonalMessage(signer Signer, msg []byte) (Signature, error) {
	sig, err := signer.Sign(HashPersonalMessage(msg))
	if err != nil {
		return nil, err
	}
	sig[RecoveryIDOffset] += 27
	return sig, nil
}

// RecoverPersonalMessageSigner returns the address that produced sig over msg.
func RecoverPersonalMessageSigner(msg []byte, sig Signature) (Address, error) {
	addr, err := RecoverAddress(HashPersonalMessage(msg), sig)
	if err != nil {
		return Address{}, fmt.Errorf("recovering message signer: %w", err)
	}
	return addr, nil
}
