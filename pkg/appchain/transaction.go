package appchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/sync/errgroup"

	"github.com/citahub/appchain-go/pkg/hex"
	"github.com/citahub/appchain-go/pkg/rpc"
	"github.com/citahub/appchain-go/pkg/sign"
	"github.com/citahub/appchain-go/pkg/tx"
	"github.com/citahub/appchain-go/pkg/types"
)

// DefaultValidUntilOffset is how many blocks past the current height a
// prepared transaction stays valid. Nodes refuse offsets above 100.
const DefaultValidUntilOffset = 88

var (
	// ErrTransactionRejected is returned when the node answered a submission
	// with a status other than OK.
	ErrTransactionRejected = errors.New("transaction rejected")

	// PriceManagementAddress is the system contract holding the quota price.
	PriceManagementAddress = sign.MustParseAddress("0xffffffffffffffffffffffffffffffffff020010")
	// quotaPriceSelector is the selector of getQuotaPrice().
	quotaPriceSelector = hex.MustDecode("0x6bacc53f")
)

// SendOption configures a submission.
type SendOption func(*sendOptions)

type sendOptions struct {
	force bool
	sign  []tx.SignOption
}

// Force sends even if the journal already holds the envelope.
func Force() SendOption {
	return func(o *sendOptions) { o.force = true }
}

// WithSignOptions passes opts to tx.Sign.
func WithSignOptions(opts ...tx.SignOption) SendOption {
	return func(o *sendOptions) { o.sign = append(o.sign, opts...) }
}

// ChainInfo returns the chain id and protocol version a transaction for this
// chain must carry.
func (c *Client) ChainInfo(ctx context.Context) (*big.Int, uint32, error) {
	meta, err := c.GetMetaData(ctx, types.Latest)
	if err != nil {
		return nil, 0, err
	}
	return meta.ChainID, meta.Version, nil
}

// QuotaPrice reads the price of one unit of quota from the price management
// contract.
func (c *Client) QuotaPrice(ctx context.Context) (*big.Int, error) {
	out, err := c.Call(ctx, types.CallRequest{To: PriceManagementAddress, Data: quotaPriceSelector}, types.Latest)
	if err != nil {
		return nil, err
	}
	price, err := hex.BigFromUint256Bytes(out)
	if err != nil {
		return nil, fmt.Errorf("%w: quota price: %w", rpc.ErrUnexpectedResult, err)
	}
	return price, nil
}

// Prepare fills the fields of t that depend on the chain: a fresh nonce when
// Nonce is empty, the chain id and version when ChainID is nil, and a
// ValidUntilBlock DefaultValidUntilOffset blocks ahead when it is zero. The
// lookups are issued concurrently and share one round trip when batching.
func (c *Client) Prepare(ctx context.Context, t *tx.Transaction) error {
	if t.Nonce == "" {
		t.Nonce = tx.NewNonce()
	}

	var (
		chainID *big.Int
		version uint32
		height  uint64
	)
	g, gctx := errgroup.WithContext(ctx)
	if t.ChainID == nil {
		g.Go(func() error {
			var err error
			chainID, version, err = c.ChainInfo(gctx)
			return err
		})
	}
	if t.ValidUntilBlock == 0 {
		g.Go(func() error {
			var err error
			height, err = c.BlockNumber(gctx)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if t.ChainID == nil {
		t.ChainID = chainID
		t.Version = version
	}
	if t.ValidUntilBlock == 0 {
		t.ValidUntilBlock = height + DefaultValidUntilOffset
	}
	return nil
}

// SignTransaction signs t with the hex private key and returns the envelope.
func (c *Client) SignTransaction(t *tx.Transaction, privateKeyHex string, opts ...tx.SignOption) (string, error) {
	return tx.Sign(t, privateKeyHex, opts...)
}

// SendTransaction prepares t, signs it and submits the envelope.
func (c *Client) SendTransaction(ctx context.Context, t *tx.Transaction, privateKeyHex string, opts ...SendOption) (*types.TransactionSendingResult, error) {
	o := applySendOptions(opts)
	if err := c.Prepare(ctx, t); err != nil {
		return nil, fmt.Errorf("prepare transaction: %w", err)
	}
	signed, err := tx.Sign(t, privateKeyHex, o.sign...)
	if err != nil {
		return nil, err
	}
	return c.SendRawTransaction(ctx, signed, opts...)
}

// SendRawTransaction submits a signed envelope. With a journal the envelope
// is recorded before it is sent and its outcome afterwards: accepted,
// rejected when the node refused it, or unknown when the exchange failed.
func (c *Client) SendRawTransaction(ctx context.Context, signed string, opts ...SendOption) (*types.TransactionSendingResult, error) {
	o := applySendOptions(opts)
	hash, err := tx.Hash(signed)
	if err != nil {
		return nil, err
	}
	lg := c.lg.WithKV("hash", hash)

	if c.journal != nil {
		if err := c.journal.Reserve(ctx, hash, signed, o.force); err != nil {
			return nil, err
		}
	}

	res, err := c.sendRaw(ctx, signed)
	if c.journal != nil {
		c.settle(context.WithoutCancel(ctx), hash, res, err)
	}
	if err != nil {
		lg.Warn("transaction not sent", "error", err)
		return nil, err
	}
	lg.Info("transaction sent", "status", res.Status)
	return res, nil
}

func (c *Client) sendRaw(ctx context.Context, signed string) (*types.TransactionSendingResult, error) {
	res, err := callRecord[types.TransactionSendingResult](ctx, c, rpc.MethodSendRawTransaction, signed)
	if err != nil {
		return nil, err
	}
	if !res.Accepted() {
		return res, fmt.Errorf("%w: status %s", ErrTransactionRejected, res.Status)
	}
	return res, nil
}

// settle records the outcome of a submission. A node error or a non-OK
// status is a rejection; anything else leaves the outcome unknown.
func (c *Client) settle(ctx context.Context, hash string, res *types.TransactionSendingResult, sendErr error) {
	var (
		nodeErr *rpc.NodeError
		err     error
	)
	switch {
	case sendErr == nil:
		err = c.journal.MarkAccepted(ctx, hash, hex.Encode(res.Hash))
	case errors.As(sendErr, &nodeErr), errors.Is(sendErr, ErrTransactionRejected):
		err = c.journal.MarkRejected(ctx, hash, sendErr)
	default:
		err = c.journal.MarkUnknown(ctx, hash, sendErr)
	}
	if err != nil {
		c.lg.Error("journal update failed", "hash", hash, "error", err)
	}
}

func applySendOptions(opts []SendOption) sendOptions {
	var o sendOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
