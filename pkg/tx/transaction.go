package tx

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/google/uuid"

	"github.com/citahub/appchain-go/pkg/hex"
	"github.com/citahub/appchain-go/pkg/sign"
)

var (
	// ErrValueOverflow is returned when a transaction value does not fit in 256 bits.
	ErrValueOverflow = errors.New("transaction value overflow")
	// ErrChainIDOverflow is returned when a chain id does not fit the field of
	// the selected version: 32 bits for version 0, 256 bits otherwise.
	ErrChainIDOverflow = errors.New("chain id overflow")
	// ErrPrivateKeyInvalid is returned when the signing key cannot be used.
	ErrPrivateKeyInvalid = errors.New("private key invalid")
	// ErrSignatureFailed is returned when the signature engine fails.
	ErrSignatureFailed = errors.New("signature failed")
	// ErrSignatureIncorrect is returned when an envelope cannot be parsed or
	// its sender cannot be recovered.
	ErrSignatureIncorrect = errors.New("signature incorrect")
)

// Crypto tags the signature scheme carried by an envelope.
type Crypto uint32

const (
	// CryptoSecp256k1 is the default scheme and is omitted on the wire.
	CryptoSecp256k1 Crypto = 0
	// CryptoReserved is reserved for an alternative scheme and cannot be unsigned.
	CryptoReserved Crypto = 1
)

func (c Crypto) String() string {
	switch c {
	case CryptoSecp256k1:
		return "secp256k1"
	case CryptoReserved:
		return "reserved"
	default:
		return fmt.Sprintf("crypto(%d)", uint32(c))
	}
}

// Transaction is a chain transaction before signing.
type Transaction struct {
	// To is the recipient. Nil denotes contract creation.
	To              *sign.Address
	Nonce           string
	Quota           uint64
	ValidUntilBlock uint64
	Data            []byte
	// Value is an unsigned 256-bit amount. Nil is zero.
	Value *big.Int
	// ChainID must fit in 32 bits for version 0 and in 256 bits otherwise.
	ChainID *big.Int
	// Version 0 selects the legacy layout with a numeric chain id and a hex
	// recipient; any later version uses a 32-byte chain id and raw recipient bytes.
	Version uint32
}

// NewNonce returns a random transaction nonce.
func NewNonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// IsContractCreation reports whether the transaction deploys a contract.
func (tx *Transaction) IsContractCreation() bool {
	return tx.To == nil
}

// Marshal returns the canonical byte encoding that is hashed and signed.
func (tx *Transaction) Marshal() ([]byte, error) {
	m, err := tx.message()
	if err != nil {
		return nil, err
	}
	return m.marshal(), nil
}

// Hash returns the Keccak-256 of the canonical encoding.
func (tx *Transaction) Hash() ([]byte, error) {
	body, err := tx.Marshal()
	if err != nil {
		return nil, err
	}
	return sign.Keccak256(body), nil
}

func (tx *Transaction) message() (*txMessage, error) {
	value, err := hex.Uint256Bytes(tx.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValueOverflow, err)
	}

	m := &txMessage{
		nonce:           tx.Nonce,
		quota:           tx.Quota,
		validUntilBlock: tx.ValidUntilBlock,
		data:            tx.Data,
		value:           value,
		version:         tx.Version,
	}

	if tx.Version == 0 {
		if tx.To != nil {
			m.to = hex.Strip0x(tx.To.String())
		}
		chainID, err := legacyChainID(tx.ChainID)
		if err != nil {
			return nil, err
		}
		m.chainID = chainID
		return m, nil
	}

	if tx.To != nil {
		m.toV1 = tx.To.Bytes()
	}
	m.chainIDV1, err = hex.Uint256Bytes(tx.ChainID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrChainIDOverflow, err)
	}
	return m, nil
}

func legacyChainID(v *big.Int) (uint32, error) {
	if v == nil {
		return 0, nil
	}
	if v.Sign() < 0 || !v.IsUint64() || v.Uint64() > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %s does not fit in 32 bits", ErrChainIDOverflow, v)
	}
	return uint32(v.Uint64()), nil
}

// transaction rebuilds a Transaction from its decoded wire form.
func (m *txMessage) transaction() (*Transaction, error) {
	value, err := hex.BigFromUint256Bytes(m.value)
	if err != nil {
		return nil, fmt.Errorf("value: %w", err)
	}

	tx := &Transaction{
		Nonce:           m.nonce,
		Quota:           m.quota,
		ValidUntilBlock: m.validUntilBlock,
		Data:            m.data,
		Value:           value,
		Version:         m.version,
	}

	if m.version == 0 {
		if m.to != "" {
			to, err := sign.ParseAddress(m.to)
			if err != nil {
				return nil, err
			}
			tx.To = &to
		}
		tx.ChainID = new(big.Int).SetUint64(uint64(m.chainID))
		return tx, nil
	}

	if len(m.toV1) > 0 {
		if len(m.toV1) != sign.AddressLength {
			return nil, fmt.Errorf("%w: recipient is %d bytes", sign.ErrInvalidAddress, len(m.toV1))
		}
		to := sign.BytesToAddress(m.toV1)
		tx.To = &to
	}
	tx.ChainID, err = hex.BigFromUint256Bytes(m.chainIDV1)
	if err != nil {
		return nil, fmt.Errorf("chain id: %w", err)
	}
	return tx, nil
}
