// Package hex converts between 0x-prefixed hex text, raw bytes and unsigned
// big integers, and carries the lenient JSON forms a node uses for quantities
// and data.
//
// Fixed-width encoding never truncates. A value wider than its destination
// field is reported with ErrTooLong or ErrUint256Overflow instead of being
// clamped.
package hex
