package types

import (
	"bytes"
	"encoding/json"
	"math/big"

	"github.com/citahub/appchain-go/pkg/hex"
	"github.com/citahub/appchain-go/pkg/tx"
)

// Block is the result of getBlockByHash and getBlockByNumber.
type Block struct {
	Version hex.Uint64  `json:"version"`
	Hash    hex.Bytes   `json:"hash" validate:"required"`
	Header  BlockHeader `json:"header"`
	Body    BlockBody   `json:"body"`
}

// BlockHeader carries the consensus fields of a block.
type BlockHeader struct {
	Timestamp        *hex.Big  `json:"timestamp" validate:"required"`
	PrevHash         hex.Bytes `json:"prevHash" validate:"required"`
	Proof            *Proof    `json:"proof,omitempty"`
	StateRoot        hex.Bytes `json:"stateRoot" validate:"required"`
	TransactionsRoot hex.Bytes `json:"transactionsRoot" validate:"required"`
	ReceiptsRoot     hex.Bytes `json:"receiptsRoot" validate:"required"`
	QuotaUsed        *hex.Big  `json:"quotaUsed" validate:"required"`
	Number           *hex.Big  `json:"number" validate:"required"`
	Proposer         hex.Bytes `json:"proposer" validate:"required"`
}

// UnmarshalJSON accepts both quotaUsed and the older gasUsed key.
func (h *BlockHeader) UnmarshalJSON(input []byte) error {
	type plain BlockHeader
	aux := struct {
		*plain
		GasUsed *hex.Big `json:"gasUsed"`
	}{plain: (*plain)(h)}
	if err := json.Unmarshal(input, &aux); err != nil {
		return err
	}
	if h.QuotaUsed == nil {
		h.QuotaUsed = aux.GasUsed
	}
	return nil
}

// Proof wraps the consensus proof of a block. Only BFT proofs are produced
// by current nodes.
type Proof struct {
	Bft *BftProof `json:"Bft,omitempty"`
}

// BftProof is the commit certificate of a block.
type BftProof struct {
	Proposal hex.Bytes            `json:"proposal"`
	Height   *hex.Big             `json:"height"`
	Round    *hex.Big             `json:"round"`
	Commits  map[string]hex.Bytes `json:"commits"`
}

// BlockBody lists the transactions of a block.
type BlockBody struct {
	Transactions []BlockTransaction `json:"transactions"`
}

// BlockTransaction is either a bare hash (when the block was requested
// without full transactions) or a hash with the signed envelope.
type BlockTransaction struct {
	Hash    hex.Bytes `json:"hash"`
	Content hex.Bytes `json:"content,omitempty"`
}

// UnmarshalJSON accepts a hash string or a {hash, content} object.
func (t *BlockTransaction) UnmarshalJSON(input []byte) error {
	input = bytes.TrimSpace(input)
	if len(input) > 0 && input[0] == '"' {
		return json.Unmarshal(input, &t.Hash)
	}

	type plain BlockTransaction
	return json.Unmarshal(input, (*plain)(t))
}

// IsHashOnly reports whether the node sent only the transaction hash.
func (t BlockTransaction) IsHashOnly() bool {
	return t.Content == nil
}

// Unsign decodes the envelope carried in Content.
func (t BlockTransaction) Unsign() (*tx.Unsigned, error) {
	return tx.Unsign(hex.Encode(t.Content))
}

// NumberUint64 returns the block height, or 0 when it does not fit.
func (h BlockHeader) NumberUint64() uint64 {
	if h.Number == nil || !h.Number.ToInt().IsUint64() {
		return 0
	}
	return h.Number.ToInt().Uint64()
}

// Height returns a copy of the block height.
func (b *Block) Height() *big.Int {
	if b.Header.Number == nil {
		return nil
	}
	return new(big.Int).Set(b.Header.Number.ToInt())
}
