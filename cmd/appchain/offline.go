package main

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/citahub/appchain-go/pkg/hex"
	"github.com/citahub/appchain-go/pkg/sign"
	"github.com/citahub/appchain-go/pkg/tx"
)

const envPrivateKey = "APPCHAIN_PRIVATE_KEY"

func addressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "address <private-key>",
		Short: "Print the address of a private key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			signer, err := sign.NewSecp256k1Signer(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), signer.Address())
			return nil
		},
	}
}

type txFlags struct {
	key          string
	to           string
	nonce        string
	quota        uint64
	validUntil   uint64
	data         string
	value        string
	chainID      string
	version      uint32
	extraEntropy bool
}

func (f *txFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.key, "key", "", "private key, defaults to $"+envPrivateKey)
	cmd.Flags().StringVar(&f.to, "to", "", "recipient address, empty to create a contract")
	cmd.Flags().StringVar(&f.nonce, "nonce", "", "transaction nonce, random when empty")
	cmd.Flags().Uint64Var(&f.quota, "quota", 1_000_000, "quota limit")
	cmd.Flags().Uint64Var(&f.validUntil, "valid-until", 0, "last block the transaction is valid in")
	cmd.Flags().StringVar(&f.data, "data", "", "hex call data")
	cmd.Flags().StringVar(&f.value, "value", "0", "value, decimal or 0x hex")
	cmd.Flags().StringVar(&f.chainID, "chain-id", "", "chain id, decimal or 0x hex")
	cmd.Flags().Uint32Var(&f.version, "version", 2, "transaction version")
	cmd.Flags().BoolVar(&f.extraEntropy, "extra-entropy", false, "mix fresh randomness into the signature nonce")
}

func (f *txFlags) privateKey() (string, error) {
	key := f.key
	if key == "" {
		key = os.Getenv(envPrivateKey)
	}
	if key == "" {
		return "", fmt.Errorf("no private key: pass --key or set %s", envPrivateKey)
	}
	return key, nil
}

func (f *txFlags) signOptions() []tx.SignOption {
	if f.extraEntropy {
		return []tx.SignOption{tx.WithExtraEntropy()}
	}
	return nil
}

// transaction builds the transaction described by the flags. Fields the
// node can fill in are left zero when requireAll is false.
func (f *txFlags) transaction(requireAll bool) (*tx.Transaction, error) {
	t := &tx.Transaction{
		Nonce:           f.nonce,
		Quota:           f.quota,
		ValidUntilBlock: f.validUntil,
		Version:         f.version,
	}
	if t.Nonce == "" {
		t.Nonce = tx.NewNonce()
	}

	if f.to != "" {
		to, err := sign.ParseAddress(f.to)
		if err != nil {
			return nil, err
		}
		t.To = &to
	}

	if f.data != "" {
		data, err := hex.Decode(f.data)
		if err != nil {
			return nil, fmt.Errorf("data: %w", err)
		}
		t.Data = data
	}

	value, err := parseBig(f.value)
	if err != nil {
		return nil, fmt.Errorf("value: %w", err)
	}
	t.Value = value

	if f.chainID != "" {
		t.ChainID, err = parseBig(f.chainID)
		if err != nil {
			return nil, fmt.Errorf("chain id: %w", err)
		}
	}

	if requireAll {
		if t.ChainID == nil {
			return nil, errors.New("--chain-id is required")
		}
		if t.ValidUntilBlock == 0 {
			return nil, errors.New("--valid-until is required")
		}
	}
	return t, nil
}

// parseBig accepts a decimal or a 0x-prefixed hex integer.
func parseBig(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if hex.Has0xPrefix(s) {
		return hex.DecodeBig(s)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return v, nil
}

func signCmd() *cobra.Command {
	var flags txFlags
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a transaction offline and print the envelope",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := flags.privateKey()
			if err != nil {
				return err
			}
			t, err := flags.transaction(true)
			if err != nil {
				return err
			}
			signed, err := tx.Sign(t, key, flags.signOptions()...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), signed)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

type unsignedOutput struct {
	Hash            string        `json:"hash"`
	Sender          sign.Address  `json:"sender"`
	PublicKey       hex.Bytes     `json:"publicKey"`
	Crypto          string        `json:"crypto"`
	To              *sign.Address `json:"to"`
	Nonce           string        `json:"nonce"`
	Quota           uint64        `json:"quota"`
	ValidUntilBlock uint64        `json:"validUntilBlock"`
	Data            hex.Bytes     `json:"data"`
	Value           string        `json:"value"`
	ChainID         string        `json:"chainId"`
	Version         uint32        `json:"version"`
}

func unsignCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unsign <envelope>",
		Short: "Decode a signed envelope and recover its sender",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := tx.Unsign(args[0])
			if err != nil {
				return err
			}
			hash, err := tx.Hash(args[0])
			if err != nil {
				return err
			}

			t := u.Transaction
			out := unsignedOutput{
				Hash:            hash,
				Sender:          u.Sender.Address,
				PublicKey:       u.Sender.PublicKey,
				Crypto:          u.Crypto.String(),
				To:              t.To,
				Nonce:           t.Nonce,
				Quota:           t.Quota,
				ValidUntilBlock: t.ValidUntilBlock,
				Data:            t.Data,
				Value:           bigString(t.Value),
				ChainID:         bigString(t.ChainID),
				Version:         t.Version,
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
