// Package tx encodes, signs and opens chain transactions.
//
// A Transaction is serialized into the protobuf layout the node expects, the
// Keccak-256 of that encoding is signed, and the encoding, the 65-byte
// signature and a crypto tag are wrapped into an envelope that is submitted
// as 0x-prefixed hex. Unsign is the inverse: it recovers the sender from the
// envelope and rebuilds the transaction fields.
//
// Version 0 transactions carry a 32-bit chain id and a hex recipient string.
// Later versions carry a 32-byte chain id and the raw 20 recipient bytes.
// Contract creation leaves the recipient empty in both layouts.
package tx
