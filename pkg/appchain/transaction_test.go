package appchain_test

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citahub/appchain-go/pkg/appchain"
	"github.com/citahub/appchain-go/pkg/hex"
	"github.com/citahub/appchain-go/pkg/journal"
	"github.com/citahub/appchain-go/pkg/rpc"
	"github.com/citahub/appchain-go/pkg/sign"
	"github.com/citahub/appchain-go/pkg/tx"
)

var testKey = "0x" + strings.Repeat("ee", 32)

func senderAddress(t *testing.T) sign.Address {
	addr, err := sign.AddressFromPrivateKey(hex.MustDecode(testKey))
	require.NoError(t, err)
	return addr
}

// acceptingNode answers sendRawTransaction like a node that queues every
// valid envelope, and serves the lookups Prepare needs.
func acceptingNode(t *testing.T) *fakeNode {
	node := newFakeNode(t)
	sender := senderAddress(t)

	node.handle(rpc.MethodBlockNumber, func([]json.RawMessage) (any, *rpc.NodeError) { return "0x64", nil })
	node.handle(rpc.MethodGetMetaData, func([]json.RawMessage) (any, *rpc.NodeError) {
		return json.RawMessage(metaDataResult), nil
	})
	node.handle(rpc.MethodSendRawTransaction, func(p []json.RawMessage) (any, *rpc.NodeError) {
		signed := param[string](t, p[0])
		unsigned, err := tx.Unsign(signed)
		if !assert.NoError(t, err) {
			return nil, &rpc.NodeError{Code: -32006, Message: "invalid signature"}
		}
		assert.True(t, unsigned.Sender.Address.Equals(sender))

		hash, err := tx.Hash(signed)
		require.NoError(t, err)
		return map[string]string{"status": "OK", "hash": hash}, nil
	})
	return node
}

func openJournal(t *testing.T) *journal.Journal {
	j, err := journal.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestPrepareFillsChainFields(t *testing.T) {
	node := acceptingNode(t)
	c := node.client(t, rpc.Batch(8))

	to := sign.MustParseAddress("0x9dcd6b234e2772c5451fd4ccf7582f4283140697")
	transaction := &tx.Transaction{To: &to, Quota: 21000}
	require.NoError(t, c.Prepare(context.Background(), transaction))

	assert.Len(t, transaction.Nonce, 32)
	assert.Equal(t, big.NewInt(1), transaction.ChainID)
	assert.EqualValues(t, 1, transaction.Version)
	assert.EqualValues(t, 100+appchain.DefaultValidUntilOffset, transaction.ValidUntilBlock)

	node.mu.Lock()
	defer node.mu.Unlock()
	require.Len(t, node.batches, 1, "both lookups share one round trip")
	assert.ElementsMatch(t, []rpc.Method{rpc.MethodBlockNumber, rpc.MethodGetMetaData}, node.batches[0])
}

func TestPrepareKeepsSetFields(t *testing.T) {
	node := acceptingNode(t)
	c := node.client(t, rpc.NoBatching())

	transaction := &tx.Transaction{Nonce: "n", ChainID: big.NewInt(7), ValidUntilBlock: 5}
	require.NoError(t, c.Prepare(context.Background(), transaction))
	assert.Equal(t, "n", transaction.Nonce)
	assert.Equal(t, big.NewInt(7), transaction.ChainID)
	assert.EqualValues(t, 5, transaction.ValidUntilBlock)
	assert.Zero(t, node.callCount(rpc.MethodGetMetaData))
}

func TestSendTransactionJournaled(t *testing.T) {
	ctx := context.Background()
	node := acceptingNode(t)
	j := openJournal(t)
	c := node.client(t, rpc.Batch(8), appchain.WithJournal(j))

	to := sign.MustParseAddress("0x9dcd6b234e2772c5451fd4ccf7582f4283140697")
	transaction := &tx.Transaction{To: &to, Quota: 21000, Value: big.NewInt(1)}
	res, err := c.SendTransaction(ctx, transaction, testKey)
	require.NoError(t, err)
	assert.True(t, res.Accepted())

	hash := hex.Encode(res.Hash)
	s, err := j.Get(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, journal.StatusAccepted, s.Status)
	assert.Equal(t, hash, s.NodeHash)

	_, err = c.SendRawTransaction(ctx, s.Envelope)
	assert.ErrorIs(t, err, journal.ErrAlreadySubmitted)
	assert.Equal(t, 1, node.callCount(rpc.MethodSendRawTransaction))

	_, err = c.SendRawTransaction(ctx, s.Envelope, appchain.Force())
	require.NoError(t, err)
	assert.Equal(t, 2, node.callCount(rpc.MethodSendRawTransaction))
}

func TestSendRawTransactionOutcomes(t *testing.T) {
	transaction := &tx.Transaction{Nonce: "1", Quota: 21000, ValidUntilBlock: 10, ChainID: big.NewInt(1)}
	signed, err := tx.Sign(transaction, testKey)
	require.NoError(t, err)
	hash, err := tx.Hash(signed)
	require.NoError(t, err)

	tests := []struct {
		name    string
		setup   func(n *fakeNode)
		wantErr func(t *testing.T, err error)
		want    journal.Status
	}{
		{
			name: "node error",
			setup: func(n *fakeNode) {
				n.handle(rpc.MethodSendRawTransaction, func([]json.RawMessage) (any, *rpc.NodeError) {
					return nil, &rpc.NodeError{Code: -32003, Message: "Dup"}
				})
			},
			wantErr: func(t *testing.T, err error) {
				var nodeErr *rpc.NodeError
				assert.ErrorAs(t, err, &nodeErr)
			},
			want: journal.StatusRejected,
		},
		{
			name: "status not ok",
			setup: func(n *fakeNode) {
				n.handle(rpc.MethodSendRawTransaction, func([]json.RawMessage) (any, *rpc.NodeError) {
					return map[string]string{"status": "InvalidNonce", "hash": hash}, nil
				})
			},
			wantErr: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, appchain.ErrTransactionRejected)
			},
			want: journal.StatusRejected,
		},
		{
			name: "transport failure",
			setup: func(n *fakeNode) {
				n.status = http.StatusBadGateway
			},
			wantErr: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, rpc.ErrTransport)
			},
			want: journal.StatusUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			node := newFakeNode(t)
			tt.setup(node)
			j := openJournal(t)
			c := node.client(t, rpc.NoBatching(), appchain.WithJournal(j))

			_, err := c.SendRawTransaction(ctx, signed)
			require.Error(t, err)
			tt.wantErr(t, err)

			s, err := j.Get(ctx, hash)
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Status)
			assert.NotEmpty(t, s.LastError)
		})
	}
}

func TestSendRawTransactionRejectsGarbage(t *testing.T) {
	node := newFakeNode(t)
	c := node.client(t, rpc.NoBatching())

	_, err := c.SendRawTransaction(context.Background(), "not hex")
	assert.Error(t, err)
	assert.Zero(t, node.callCount(rpc.MethodSendRawTransaction))
}

func TestSignTransaction(t *testing.T) {
	c := appchain.New(rpc.NewDispatcher(nil, rpc.DefaultDispatcherConfig))

	transaction := &tx.Transaction{Nonce: "1", Quota: 21000, ValidUntilBlock: 10, ChainID: big.NewInt(1)}
	signed, err := c.SignTransaction(transaction, testKey)
	require.NoError(t, err)

	unsigned, err := tx.Unsign(signed)
	require.NoError(t, err)
	assert.True(t, unsigned.Sender.Address.Equals(senderAddress(t)))
	assert.True(t, unsigned.Transaction.IsContractCreation())
}
