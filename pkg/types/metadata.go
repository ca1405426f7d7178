package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/citahub/appchain-go/pkg/hex"
	"github.com/citahub/appchain-go/pkg/sign"
)

// ErrChainIDMissing is returned when metadata carries no chain id for its version.
var ErrChainIDMissing = errors.New("metadata: chain id missing")

// MetaData is the result of getMetaData.
type MetaData struct {
	ChainID          *big.Int       `json:"-"`
	ChainName        string         `json:"chainName"`
	Operator         string         `json:"operator"`
	Website          string         `json:"website"`
	GenesisTimestamp *hex.Big       `json:"genesisTimestamp" validate:"required"`
	Validators       []sign.Address `json:"validators"`
	BlockInterval    *hex.Big       `json:"blockInterval" validate:"required"`
	TokenName        string         `json:"tokenName"`
	TokenSymbol      string         `json:"tokenSymbol"`
	TokenAvatar      string         `json:"tokenAvatar"`
	Version          uint32         `json:"version"`
	EconomicalModel  hex.Uint64     `json:"economicalModel"`
}

// UnmarshalJSON reads the numeric chainId of version 0 chains and the hex
// chainIdV1 of later versions.
func (m *MetaData) UnmarshalJSON(input []byte) error {
	type plain MetaData
	aux := struct {
		*plain
		ChainID   *hex.Big `json:"chainId"`
		ChainIDV1 *hex.Big `json:"chainIdV1"`
	}{plain: (*plain)(m)}
	if err := json.Unmarshal(input, &aux); err != nil {
		return err
	}

	id := aux.ChainIDV1
	if m.Version == 0 {
		id = aux.ChainID
	}
	if id == nil {
		return fmt.Errorf("%w (version %d)", ErrChainIDMissing, m.Version)
	}
	m.ChainID = new(big.Int).Set(id.ToInt())
	return nil
}

// MarshalJSON writes the chain id under the key that matches Version.
func (m MetaData) MarshalJSON() ([]byte, error) {
	type plain MetaData
	aux := struct {
		plain
		ChainID   *hex.Big `json:"chainId,omitempty"`
		ChainIDV1 *hex.Big `json:"chainIdV1,omitempty"`
	}{plain: plain(m)}

	if m.ChainID != nil {
		if m.Version == 0 {
			aux.ChainID = hex.NewBig(m.ChainID)
		} else {
			aux.ChainIDV1 = hex.NewBig(m.ChainID)
		}
	}
	return json.Marshal(aux)
}

// PeersInfo is the result of peersInfo.
type PeersInfo struct {
	Amount       hex.Uint64        `json:"amount"`
	Peers        map[string]string `json:"peers"`
	ErrorMessage *string           `json:"errorMessage"`
}

// Version is the result of getVersion.
type Version struct {
	SoftwareVersion string `json:"softwareVersion" validate:"required"`
}
