package tx_test

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citahub/appchain-go/pkg/hex"
	"github.com/citahub/appchain-go/pkg/sign"
	"github.com/citahub/appchain-go/pkg/tx"
)

const (
	testPrivateKey = "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"
	testSender     = "0x46a23e25df9a0f6c18729dda9ad1af3b6a131160"

	// A contract deployment signed with testPrivateKey on chain 1.
	deployCode     = "0x6060604052341561000f57600080fd5b60d38061001d6000396000f3006060604052600436106049576000357c0100000000000000000000000000000000000000000000000000000000900463ffffffff16806360fe47b114604e5780636d4ce63c14606e575b600080fd5b3415605857600080fd5b606c60048080359060200190919050506094565b005b3415607857600080fd5b607e609e565b6040518082815260200191505060405180910390f35b8060008190555050565b600080549050905600a165627a7a723058202d9a0979adf6bf48461f24200e635bc19cd1786efbcfc0608eb1d76114d405860029"
	deployEnvelope = "0x0ac1021220353761343535383934386562343232626162333666316361306630333534653718c0843d20e9df592af0016060604052341561000f57600080fd5b60d38061001d6000396000f3006060604052600436106049576000357c0100000000000000000000000000000000000000000000000000000000900463ffffffff16806360fe47b114604e5780636d4ce63c14606e575b600080fd5b3415605857600080fd5b606c60048080359060200190919050506094565b005b3415607857600080fd5b607e609e565b6040518082815260200191505060405180910390f35b8060008190555050565b600080549050905600a165627a7a723058202d9a0979adf6bf48461f24200e635bc19cd1786efbcfc0608eb1d76114d40586002932200000000000000000000000000000000000000000000000000000000000000000380112410167c108d0919a02a43219e3a52fe3cddbe0ac8b9d2271f429c2b09cdad481536596976aa166e66d2b30451a54e1a405bfbc5780538abf0caedbddd4dcbf732200"
	deployHash     = "0xa3b741737121628b98e683948202dcd8392caa1431707a7c47425e6c3b86f630"
)

func deployTransaction() *tx.Transaction {
	return &tx.Transaction{
		Nonce:           "57a4558948eb422bab36f1ca0f0354e7",
		Quota:           1_000_000,
		ValidUntilBlock: 1_470_441,
		Data:            hex.MustDecode(deployCode),
		Value:           big.NewInt(0),
		ChainID:         big.NewInt(1),
		Version:         0,
	}
}

func TestUnsignKnownEnvelope(t *testing.T) {
	t.Parallel()

	unsigned, err := tx.Unsign(deployEnvelope)
	require.NoError(t, err)

	assert.Equal(t, testSender, unsigned.Sender.Address.String())
	assert.Len(t, unsigned.Sender.PublicKey, 65)
	assert.Equal(t, tx.CryptoSecp256k1, unsigned.Crypto)

	got := unsigned.Transaction
	assert.Nil(t, got.To)
	assert.True(t, got.IsContractCreation())
	assert.Equal(t, "57a4558948eb422bab36f1ca0f0354e7", got.Nonce)
	assert.Equal(t, uint64(1_000_000), got.Quota)
	assert.Equal(t, uint64(1_470_441), got.ValidUntilBlock)
	assert.Equal(t, hex.MustDecode(deployCode), got.Data)
	assert.Zero(t, got.Value.Sign())
	assert.Equal(t, int64(1), got.ChainID.Int64())
	assert.Equal(t, uint32(0), got.Version)
}

func TestSignKnownEnvelope(t *testing.T) {
	t.Parallel()

	signed, err := tx.Sign(deployTransaction(), testPrivateKey)
	require.NoError(t, err)
	assert.Equal(t, deployEnvelope, signed)

	hash, err := tx.Hash(signed)
	require.NoError(t, err)
	assert.Equal(t, deployHash, hash)
}

func TestSignUnsignRoundTrip(t *testing.T) {
	t.Parallel()

	to := sign.MustParseAddress("0x627306090abaB3A6e1400e9345bC60c78a8BEf57")
	maxValue := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	wideChainID, ok := new(big.Int).SetString("1234567890abcdef1234567890abcdef", 16)
	require.True(t, ok)

	tcs := []struct {
		name string
		tx   *tx.Transaction
		opts []tx.SignOption
	}{
		{
			name: "version 0 transfer",
			tx: &tx.Transaction{
				To: &to, Nonce: tx.NewNonce(), Quota: 21_000, ValidUntilBlock: 99,
				Value: big.NewInt(1_000_000_000), ChainID: big.NewInt(1),
			},
		},
		{
			name: "version 0 nil value",
			tx: &tx.Transaction{
				To: &to, Nonce: "n", Quota: 1, ValidUntilBlock: 1, ChainID: big.NewInt(7),
			},
		},
		{
			name: "version 1 transfer",
			tx: &tx.Transaction{
				To: &to, Nonce: tx.NewNonce(), Quota: 30_000, ValidUntilBlock: 500,
				Data: []byte{0xca, 0xfe}, Value: maxValue, ChainID: wideChainID, Version: 1,
			},
			opts: []tx.SignOption{tx.WithExtraEntropy()},
		},
		{
			name: "version 2 contract creation",
			tx: &tx.Transaction{
				Nonce: tx.NewNonce(), Quota: 5_000_000, ValidUntilBlock: 88,
				Data: hex.MustDecode(deployCode), ChainID: big.NewInt(1), Version: 2,
			},
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			signed, err := tx.Sign(tc.tx, testPrivateKey, tc.opts...)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(signed, "0x"))

			unsigned, err := tx.Unsign(signed)
			require.NoError(t, err)
			assert.Equal(t, testSender, unsigned.Sender.Address.String())

			got := unsigned.Transaction
			if tc.tx.To == nil {
				assert.Nil(t, got.To)
			} else {
				require.NotNil(t, got.To)
				assert.True(t, tc.tx.To.Equals(*got.To))
			}
			assert.Equal(t, tc.tx.Nonce, got.Nonce)
			assert.Equal(t, tc.tx.Quota, got.Quota)
			assert.Equal(t, tc.tx.ValidUntilBlock, got.ValidUntilBlock)
			assert.Equal(t, len(tc.tx.Data), len(got.Data))
			if len(tc.tx.Data) > 0 {
				assert.Equal(t, tc.tx.Data, got.Data)
			}
			wantValue := tc.tx.Value
			if wantValue == nil {
				wantValue = new(big.Int)
			}
			assert.Zero(t, wantValue.Cmp(got.Value))
			assert.Zero(t, tc.tx.ChainID.Cmp(got.ChainID))
			assert.Equal(t, tc.tx.Version, got.Version)

			resigned, err := tx.Sign(got, testPrivateKey)
			require.NoError(t, err)
			again, err := tx.Unsign(resigned)
			require.NoError(t, err)
			assert.Equal(t, got, again.Transaction)
		})
	}
}

func TestContractCreationHasEmptyRecipient(t *testing.T) {
	t.Parallel()

	for _, version := range []uint32{0, 1} {
		deploy := &tx.Transaction{Nonce: "1", Quota: 1, ChainID: big.NewInt(1), Version: version}
		body, err := deploy.Marshal()
		require.NoError(t, err)

		zero := sign.Address{}
		withZero := *deploy
		withZero.To = &zero
		zeroBody, err := withZero.Marshal()
		require.NoError(t, err)

		assert.NotEqual(t, body, zeroBody, "version %d", version)
		assert.Less(t, len(body), len(zeroBody), "version %d", version)
	}
}

func TestSignErrors(t *testing.T) {
	t.Parallel()

	tooBig := new(big.Int).Lsh(big.NewInt(1), 256)

	_, err := tx.Sign(&tx.Transaction{Nonce: "1", Value: tooBig}, testPrivateKey)
	require.ErrorIs(t, err, tx.ErrValueOverflow)

	_, err = tx.Sign(&tx.Transaction{Nonce: "1", ChainID: big.NewInt(1 << 33)}, testPrivateKey)
	require.ErrorIs(t, err, tx.ErrChainIDOverflow)

	_, err = tx.Sign(&tx.Transaction{Nonce: "1", ChainID: tooBig, Version: 1}, testPrivateKey)
	require.ErrorIs(t, err, tx.ErrChainIDOverflow)

	for _, key := range []string{"", "0x1234", "0x" + strings.Repeat("00", 32), "not hex"} {
		_, err = tx.Sign(deployTransaction(), key)
		assert.ErrorIs(t, err, tx.ErrPrivateKeyInvalid, key)
	}
}

type failingSigner struct{ sign.Signer }

func (failingSigner) Sign([]byte) (sign.Signature, error) { return nil, sign.ErrSigningFailed }

func TestSignWithFailingSigner(t *testing.T) {
	t.Parallel()

	_, err := tx.SignWith(deployTransaction(), failingSigner{})
	require.ErrorIs(t, err, tx.ErrSignatureFailed)
	require.ErrorIs(t, err, sign.ErrSigningFailed)
}

func TestUnsignErrors(t *testing.T) {
	t.Parallel()

	signed, err := tx.Sign(deployTransaction(), testPrivateKey)
	require.NoError(t, err)
	raw := hex.MustDecode(signed)

	corruptRecovery := append([]byte(nil), raw...)
	corruptRecovery[len(corruptRecovery)-1] = 9

	tcs := map[string]string{
		"not hex":          "oh no",
		"empty":            "0x",
		"truncated":        hex.Encode(raw[:len(raw)-10]),
		"bad recovery id":  hex.Encode(corruptRecovery),
		"reserved crypto":  hex.Encode(append(append([]byte(nil), raw...), 0x18, 0x01)),
		"signature absent": hex.Encode(raw[:len(raw)-67]),
	}
	for name, input := range tcs {
		t.Run(name, func(t *testing.T) {
			_, err := tx.Unsign(input)
			require.ErrorIs(t, err, tx.ErrSignatureIncorrect)
		})
	}
}

func TestNewNonce(t *testing.T) {
	t.Parallel()

	a, b := tx.NewNonce(), tx.NewNonce()
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}
