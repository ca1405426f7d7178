package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/citahub/appchain-go/pkg/hex"
	"github.com/citahub/appchain-go/pkg/sign"
)

// BlockTag selects a block by height or by one of the named positions.
type BlockTag string

const (
	Latest   BlockTag = "latest"
	Earliest BlockTag = "earliest"
	Pending  BlockTag = "pending"
)

// BlockNumber returns the tag of the block at height n.
func BlockNumber(n uint64) BlockTag {
	return BlockTag(hex.EncodeUint64(n))
}

// BlockNumberBig returns the tag of the block at height n.
func BlockNumberBig(n *big.Int) BlockTag {
	return BlockTag(hex.EncodeBig(n))
}

// ParseBlockTag accepts a named tag, a hex height or a decimal height.
func ParseBlockTag(s string) (BlockTag, error) {
	switch BlockTag(s) {
	case Latest, Earliest, Pending:
		return BlockTag(s), nil
	}
	if hex.Has0xPrefix(s) {
		n, err := hex.DecodeBig(s)
		if err != nil {
			return "", fmt.Errorf("block tag %q: %w", s, err)
		}
		return BlockNumberBig(n), nil
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return "", fmt.Errorf("block tag %q: %w", s, hex.ErrInvalidHex)
	}
	return BlockNumberBig(n), nil
}

// CallRequest is the message of a read-only contract call.
type CallRequest struct {
	From *sign.Address `json:"from,omitempty"`
	To   sign.Address  `json:"to"`
	Data hex.Bytes     `json:"data,omitempty"`
}

// Filter selects event logs. A nil inner topic list matches any topic in
// that position.
type Filter struct {
	FromBlock BlockTag       `json:"fromBlock,omitempty"`
	ToBlock   BlockTag       `json:"toBlock,omitempty"`
	Address   []sign.Address `json:"address,omitempty"`
	Topics    [][]hex.Bytes  `json:"topics,omitempty"`
}

// FilterChanges is the result of getFilterChanges. A block filter yields
// block hashes and a log filter yields logs; at most one list is set.
type FilterChanges struct {
	Hashes []hex.Bytes
	Logs   []EventLog `validate:"dive"`
}

// UnmarshalJSON tells hashes from logs by the kind of the first element.
func (c *FilterChanges) UnmarshalJSON(input []byte) error {
	var items []json.RawMessage
	if err := json.Unmarshal(input, &items); err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	if first := bytes.TrimSpace(items[0]); len(first) > 0 && first[0] == '"' {
		return json.Unmarshal(input, &c.Hashes)
	}
	return json.Unmarshal(input, &c.Logs)
}

// MarshalJSON writes whichever list is set, or an empty array.
func (c FilterChanges) MarshalJSON() ([]byte, error) {
	switch {
	case c.Logs != nil:
		return json.Marshal(c.Logs)
	case c.Hashes != nil:
		return json.Marshal(c.Hashes)
	default:
		return []byte("[]"), nil
	}
}

// Len returns the number of entries in the set list.
func (c *FilterChanges) Len() int {
	return len(c.Hashes) + len(c.Logs)
}
