package types

import (
	"github.com/citahub/appchain-go/pkg/hex"
	"github.com/citahub/appchain-go/pkg/sign"
	"github.com/citahub/appchain-go/pkg/tx"
)

// TransactionDetails is the result of getTransaction.
type TransactionDetails struct {
	Hash        hex.Bytes     `json:"hash" validate:"required"`
	Content     hex.Bytes     `json:"content" validate:"required"`
	From        *sign.Address `json:"from,omitempty"`
	BlockHash   hex.Bytes     `json:"blockHash"`
	BlockNumber *hex.Big      `json:"blockNumber"`
	Index       *hex.Big      `json:"index"`
}

// IsPending reports whether the transaction is not yet in a block.
func (d *TransactionDetails) IsPending() bool {
	return d.BlockNumber == nil
}

// Unsign decodes the signed envelope and recovers its sender.
func (d *TransactionDetails) Unsign() (*tx.Unsigned, error) {
	return tx.Unsign(hex.Encode(d.Content))
}

// TransactionSendingResult is the result of sendRawTransaction.
type TransactionSendingResult struct {
	Status string    `json:"status" validate:"required"`
	Hash   hex.Bytes `json:"hash" validate:"required"`
}

// StatusOK is the status a node reports for an accepted transaction.
const StatusOK = "OK"

// Accepted reports whether the node queued the transaction.
func (r *TransactionSendingResult) Accepted() bool {
	return r.Status == StatusOK
}
