package tx

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the Transaction message.
const (
	fieldTo              protowire.Number = 1
	fieldNonce           protowire.Number = 2
	fieldQuota           protowire.Number = 3
	fieldValidUntilBlock protowire.Number = 4
	fieldData            protowire.Number = 5
	fieldValue           protowire.Number = 6
	fieldChainID         protowire.Number = 7
	fieldVersion         protowire.Number = 8
	fieldToV1            protowire.Number = 9
	fieldChainIDV1       protowire.Number = 10
)

// Field numbers of the UnverifiedTransaction message.
const (
	fieldTransaction protowire.Number = 1
	fieldSignature   protowire.Number = 2
	fieldCrypto      protowire.Number = 3
)

var errWireType = errors.New("unexpected wire type")

// txMessage mirrors the Transaction protobuf message field by field.
// Fields that hold their zero value are not written, and unrecognised
// fields survive a decode/encode cycle.
type txMessage struct {
	to              string
	nonce           string
	quota           uint64
	validUntilBlock uint64
	data            []byte
	value           []byte
	chainID         uint32
	version         uint32
	toV1            []byte
	chainIDV1       []byte

	unknown []byte
}

func (m *txMessage) marshal() []byte {
	var b []byte
	b = appendString(b, fieldTo, m.to)
	b = appendString(b, fieldNonce, m.nonce)
	b = appendVarint(b, fieldQuota, m.quota)
	b = appendVarint(b, fieldValidUntilBlock, m.validUntilBlock)
	b = appendBytes(b, fieldData, m.data)
	b = appendBytes(b, fieldValue, m.value)
	b = appendVarint(b, fieldChainID, uint64(m.chainID))
	b = appendVarint(b, fieldVersion, uint64(m.version))
	b = appendBytes(b, fieldToV1, m.toV1)
	b = appendBytes(b, fieldChainIDV1, m.chainIDV1)
	return append(b, m.unknown...)
}

func (m *txMessage) unmarshal(b []byte) error {
	*m = txMessage{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		field := b[:n]
		b = b[n:]

		var err error
		switch num {
		case fieldTo:
			m.to, n, err = consumeString(typ, b)
		case fieldNonce:
			m.nonce, n, err = consumeString(typ, b)
		case fieldQuota:
			m.quota, n, err = consumeVarint(typ, b)
		case fieldValidUntilBlock:
			m.validUntilBlock, n, err = consumeVarint(typ, b)
		case fieldData:
			m.data, n, err = consumeBytes(typ, b)
		case fieldValue:
			m.value, n, err = consumeBytes(typ, b)
		case fieldChainID:
			var v uint64
			v, n, err = consumeVarint(typ, b)
			m.chainID = uint32(v)
		case fieldVersion:
			var v uint64
			v, n, err = consumeVarint(typ, b)
			m.version = uint32(v)
		case fieldToV1:
			m.toV1, n, err = consumeBytes(typ, b)
		case fieldChainIDV1:
			m.chainIDV1, n, err = consumeBytes(typ, b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.unknown = append(m.unknown, field...)
			m.unknown = append(m.unknown, b[:n]...)
		}
		if err != nil {
			return fmt.Errorf("field %d: %w", num, err)
		}
		b = b[n:]
	}
	return nil
}

// envelope mirrors the UnverifiedTransaction protobuf message.
type envelope struct {
	transaction []byte
	signature   []byte
	crypto      Crypto
}

func (e *envelope) marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldTransaction, protowire.BytesType)
	b = protowire.AppendBytes(b, e.transaction)
	b = appendBytes(b, fieldSignature, e.signature)
	b = appendVarint(b, fieldCrypto, uint64(e.crypto))
	return b
}

func (e *envelope) unmarshal(b []byte) error {
	*e = envelope{}
	seenTransaction := false
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		var err error
		switch num {
		case fieldTransaction:
			e.transaction, n, err = consumeBytes(typ, b)
			seenTransaction = true
		case fieldSignature:
			e.signature, n, err = consumeBytes(typ, b)
		case fieldCrypto:
			var v uint64
			v, n, err = consumeVarint(typ, b)
			e.crypto = Crypto(v)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
		}
		if err != nil {
			return fmt.Errorf("field %d: %w", num, err)
		}
		b = b[n:]
	}
	if !seenTransaction {
		return errors.New("missing transaction")
	}
	return nil
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func consumeString(typ protowire.Type, b []byte) (string, int, error) {
	v, n, err := consumeBytes(typ, b)
	return string(v), n, err
}

func consumeBytes(typ protowire.Type, b []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, errWireType
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, protowire.ParseError(n)
	}
	return append([]byte(nil), v...), n, nil
}

func consumeVarint(typ protowire.Type, b []byte) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, errWireType
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, protowire.ParseError(n)
	}
	return v, n, nil
}
