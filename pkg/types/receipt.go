package types

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/citahub/appchain-go/pkg/hex"
	"github.com/citahub/appchain-go/pkg/sign"
)

// BloomLength is the size of a logs bloom filter in bytes.
const BloomLength = 256

// Bloom is a 2048-bit logs bloom filter.
type Bloom [BloomLength]byte

// MarshalText implements encoding.TextMarshaler.
func (b Bloom) MarshalText() ([]byte, error) {
	return []byte(hex.Encode(b[:])), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Shorter input is left
// padded with zeros.
func (b *Bloom) UnmarshalText(input []byte) error {
	raw, err := hex.Decode(string(input))
	if err != nil {
		return err
	}
	padded, err := hex.PadLeft(raw, BloomLength)
	if err != nil {
		return fmt.Errorf("bloom: %w", err)
	}
	copy(b[:], padded)
	return nil
}

// TransactionReceipt is the result of getTransactionReceipt.
type TransactionReceipt struct {
	TransactionHash     hex.Bytes     `json:"transactionHash" validate:"required"`
	TransactionIndex    *hex.Big      `json:"transactionIndex" validate:"required"`
	BlockHash           hex.Bytes     `json:"blockHash" validate:"required"`
	BlockNumber         *hex.Big      `json:"blockNumber" validate:"required"`
	CumulativeQuotaUsed *hex.Big      `json:"cumulativeQuotaUsed" validate:"required"`
	QuotaUsed           *hex.Big      `json:"quotaUsed" validate:"required"`
	ContractAddress     *sign.Address `json:"contractAddress"`
	Logs                []EventLog    `json:"logs" validate:"required,dive"`
	LogsBloom           *Bloom        `json:"logsBloom,omitempty"`
	Root                *string       `json:"root"`
	ErrorMessage        *string       `json:"errorMessage"`
}

// UnmarshalJSON accepts the quota keys and the gas keys of version 0 nodes.
func (r *TransactionReceipt) UnmarshalJSON(input []byte) error {
	type plain TransactionReceipt
	aux := struct {
		*plain
		CumulativeGasUsed *hex.Big `json:"cumulativeGasUsed"`
		GasUsed           *hex.Big `json:"gasUsed"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(input, &aux); err != nil {
		return err
	}
	if r.CumulativeQuotaUsed == nil {
		r.CumulativeQuotaUsed = aux.CumulativeGasUsed
	}
	if r.QuotaUsed == nil {
		r.QuotaUsed = aux.GasUsed
	}
	return nil
}

// Failed reports whether the node attached an execution error.
func (r *TransactionReceipt) Failed() bool {
	return r.ErrorMessage != nil && *r.ErrorMessage != ""
}

// EventLog is a log entry emitted by a contract.
type EventLog struct {
	Address             sign.Address `json:"address"`
	Topics              []hex.Bytes  `json:"topics" validate:"required"`
	Data                hex.Bytes    `json:"data" validate:"required"`
	BlockHash           hex.Bytes    `json:"blockHash" validate:"required"`
	BlockNumber         *hex.Big     `json:"blockNumber" validate:"required"`
	TransactionHash     hex.Bytes    `json:"transactionHash" validate:"required"`
	TransactionIndex    *hex.Big     `json:"transactionIndex" validate:"required"`
	LogIndex            *hex.Big     `json:"logIndex" validate:"required"`
	TransactionLogIndex *hex.Big     `json:"transactionLogIndex,omitempty"`
	Removed             Flag         `json:"removed"`
}

// Flag is a boolean that some nodes encode as a hex quantity.
type Flag bool

// UnmarshalJSON accepts true, false, null and hex quantities such as "0x1".
func (f *Flag) UnmarshalJSON(input []byte) error {
	switch string(bytes.TrimSpace(input)) {
	case "null":
		return nil
	case "true":
		*f = true
		return nil
	case "false":
		*f = false
		return nil
	}

	var s string
	if err := json.Unmarshal(input, &s); err != nil {
		return fmt.Errorf("flag: unexpected %s", input)
	}
	v, err := hex.DecodeUint64(s)
	if err != nil {
		return fmt.Errorf("flag: %w", err)
	}
	*f = v != 0
	return nil
}
