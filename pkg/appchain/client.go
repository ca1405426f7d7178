package appchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/citahub/appchain-go/pkg/hex"
	"github.com/citahub/appchain-go/pkg/log"
	"github.com/citahub/appchain-go/pkg/rpc"
	"github.com/citahub/appchain-go/pkg/sign"
	"github.com/citahub/appchain-go/pkg/types"
)

// HashLength is the size of block and transaction hashes.
const HashLength = 32

// ErrInvalidHash is returned for a hash argument that is not 32 bytes of hex.
var ErrInvalidHash = errors.New("invalid hash")

// Journal records submissions. *journal.Journal implements it.
type Journal interface {
	Reserve(ctx context.Context, hash, envelope string, force bool) error
	MarkAccepted(ctx context.Context, hash, nodeHash string) error
	MarkRejected(ctx context.Context, hash string, cause error) error
	MarkUnknown(ctx context.Context, hash string, cause error) error
}

// Option configures a Client.
type Option func(*Client)

// WithJournal records every submission in j.
func WithJournal(j Journal) Option {
	return func(c *Client) { c.journal = j }
}

// WithLogger sets the logger of the client.
func WithLogger(lg log.Logger) Option {
	return func(c *Client) {
		if lg != nil {
			c.lg = lg.WithName("client")
		}
	}
}

// Client is the typed API of one node.
type Client struct {
	d       *rpc.Dispatcher
	journal Journal
	lg      log.Logger
}

// New returns a client sending through d.
func New(d *rpc.Dispatcher, opts ...Option) *Client {
	c := &Client{
		d:  d,
		lg: log.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewHTTPClient returns a client talking to the node at url over HTTP.
func NewHTTPClient(url string, cfg rpc.DispatcherConfig, opts ...Option) (*Client, error) {
	transport, err := rpc.NewHTTPTransport(rpc.HTTPTransportConfig{URL: url})
	if err != nil {
		return nil, err
	}
	return New(rpc.NewDispatcher(transport, cfg), opts...), nil
}

// Dispatcher returns the dispatcher the client sends through.
func (c *Client) Dispatcher() *rpc.Dispatcher {
	return c.d
}

// Close flushes pending calls and rejects new ones.
func (c *Client) Close() error {
	return c.d.Close()
}

// PeerCount returns the number of connected peers.
func (c *Client) PeerCount(ctx context.Context) (*big.Int, error) {
	return callBig(ctx, c, rpc.MethodPeerCount)
}

// BlockNumber returns the height of the latest block.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	resp, err := c.call(ctx, rpc.MethodBlockNumber)
	if err != nil {
		return 0, err
	}
	return rpc.DecodeUint64(resp)
}

// GetBlockByHash returns the block with the given hash. With full set the
// block body carries signed envelopes rather than hashes.
func (c *Client) GetBlockByHash(ctx context.Context, hash string, full bool) (*types.Block, error) {
	h, err := hashParam(hash)
	if err != nil {
		return nil, err
	}
	return callRecord[types.Block](ctx, c, rpc.MethodGetBlockByHash, h, full)
}

// GetBlockByNumber returns the block at tag.
func (c *Client) GetBlockByNumber(ctx context.Context, tag types.BlockTag, full bool) (*types.Block, error) {
	return callRecord[types.Block](ctx, c, rpc.MethodGetBlockByNumber, tag, full)
}

// GetTransactionReceipt returns the receipt of a transaction, or
// rpc.ErrNotFound while it is not yet in a block.
func (c *Client) GetTransactionReceipt(ctx context.Context, hash string) (*types.TransactionReceipt, error) {
	h, err := hashParam(hash)
	if err != nil {
		return nil, err
	}
	return callRecord[types.TransactionReceipt](ctx, c, rpc.MethodGetTransactionReceipt, h)
}

// GetLogs returns the logs matching filter.
func (c *Client) GetLogs(ctx context.Context, filter types.Filter) ([]types.EventLog, error) {
	resp, err := c.call(ctx, rpc.MethodGetLogs, filter)
	if err != nil {
		return nil, err
	}
	return rpc.DecodeLogs(resp)
}

// Call runs a read-only message call at tag and returns its output.
func (c *Client) Call(ctx context.Context, req types.CallRequest, tag types.BlockTag) ([]byte, error) {
	return callBytes(ctx, c, rpc.MethodCall, req, tag)
}

// GetTransaction returns a transaction by hash, or rpc.ErrNotFound.
func (c *Client) GetTransaction(ctx context.Context, hash string) (*types.TransactionDetails, error) {
	h, err := hashParam(hash)
	if err != nil {
		return nil, err
	}
	return callRecord[types.TransactionDetails](ctx, c, rpc.MethodGetTransaction, h)
}

// GetTransactionCount returns the number of transactions sent from addr.
func (c *Client) GetTransactionCount(ctx context.Context, addr sign.Address, tag types.BlockTag) (*big.Int, error) {
	return callBig(ctx, c, rpc.MethodGetTransactionCount, addr, tag)
}

// GetCode returns the code of the contract at addr.
func (c *Client) GetCode(ctx context.Context, addr sign.Address, tag types.BlockTag) ([]byte, error) {
	return callBytes(ctx, c, rpc.MethodGetCode, addr, tag)
}

// GetAbi returns the ABI stored for the contract at addr.
func (c *Client) GetAbi(ctx context.Context, addr sign.Address, tag types.BlockTag) ([]byte, error) {
	return callBytes(ctx, c, rpc.MethodGetAbi, addr, tag)
}

// GetBalance returns the balance of addr.
func (c *Client) GetBalance(ctx context.Context, addr sign.Address, tag types.BlockTag) (*big.Int, error) {
	return callBig(ctx, c, rpc.MethodGetBalance, addr, tag)
}

// NewFilter installs a log filter and returns its id.
func (c *Client) NewFilter(ctx context.Context, filter types.Filter) (*big.Int, error) {
	return callBig(ctx, c, rpc.MethodNewFilter, filter)
}

// NewBlockFilter installs a filter for new blocks and returns its id.
func (c *Client) NewBlockFilter(ctx context.Context) (*big.Int, error) {
	return callBig(ctx, c, rpc.MethodNewBlockFilter)
}

// UninstallFilter removes a filter and reports whether it existed.
func (c *Client) UninstallFilter(ctx context.Context, id *big.Int) (bool, error) {
	resp, err := c.call(ctx, rpc.MethodUninstallFilter, hex.EncodeBig(id))
	if err != nil {
		return false, err
	}
	return rpc.DecodeBool(resp)
}

// GetFilterChanges returns what a filter collected since the last poll.
func (c *Client) GetFilterChanges(ctx context.Context, id *big.Int) (*types.FilterChanges, error) {
	return callRecord[types.FilterChanges](ctx, c, rpc.MethodGetFilterChanges, hex.EncodeBig(id))
}

// GetFilterLogs returns every log matching a log filter.
func (c *Client) GetFilterLogs(ctx context.Context, id *big.Int) ([]types.EventLog, error) {
	resp, err := c.call(ctx, rpc.MethodGetFilterLogs, hex.EncodeBig(id))
	if err != nil {
		return nil, err
	}
	return rpc.DecodeLogs(resp)
}

// GetTransactionProof returns the inclusion proof of a transaction.
func (c *Client) GetTransactionProof(ctx context.Context, hash string) ([]byte, error) {
	h, err := hashParam(hash)
	if err != nil {
		return nil, err
	}
	return callBytes(ctx, c, rpc.MethodGetTransactionProof, h)
}

// GetMetaData returns the chain metadata at tag.
func (c *Client) GetMetaData(ctx context.Context, tag types.BlockTag) (*types.MetaData, error) {
	return callRecord[types.MetaData](ctx, c, rpc.MethodGetMetaData, tag)
}

// GetBlockHeader returns the encoded header of the block at tag.
func (c *Client) GetBlockHeader(ctx context.Context, tag types.BlockTag) ([]byte, error) {
	return callBytes(ctx, c, rpc.MethodGetBlockHeader, tag)
}

// GetStateProof returns the proof of the storage slot key of addr at tag.
func (c *Client) GetStateProof(ctx context.Context, addr sign.Address, key string, tag types.BlockTag) ([]byte, error) {
	k, err := hashParam(key)
	if err != nil {
		return nil, err
	}
	return callBytes(ctx, c, rpc.MethodGetStateProof, addr, k, tag)
}

// GetVersion returns the node software version.
func (c *Client) GetVersion(ctx context.Context) (*types.Version, error) {
	return callRecord[types.Version](ctx, c, rpc.MethodGetVersion)
}

// PeersInfo returns the peers of the node.
func (c *Client) PeersInfo(ctx context.Context) (*types.PeersInfo, error) {
	return callRecord[types.PeersInfo](ctx, c, rpc.MethodPeersInfo)
}

// call sends method and rejects a null result the method does not allow.
func (c *Client) call(ctx context.Context, method rpc.Method, params ...any) (*rpc.Response, error) {
	resp, err := c.d.Call(ctx, method, params...)
	if err != nil {
		return nil, err
	}
	if err := rpc.CheckResult(method, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func callBig(ctx context.Context, c *Client, method rpc.Method, params ...any) (*big.Int, error) {
	resp, err := c.call(ctx, method, params...)
	if err != nil {
		return nil, err
	}
	return rpc.DecodeBig(resp)
}

func callBytes(ctx context.Context, c *Client, method rpc.Method, params ...any) ([]byte, error) {
	resp, err := c.call(ctx, method, params...)
	if err != nil {
		return nil, err
	}
	return rpc.DecodeBytes(resp)
}

func callRecord[T any](ctx context.Context, c *Client, method rpc.Method, params ...any) (*T, error) {
	resp, err := c.call(ctx, method, params...)
	if err != nil {
		return nil, err
	}
	v, err := rpc.Decode(method, resp)
	if err != nil {
		return nil, err
	}
	out, ok := v.(*T)
	if !ok {
		return nil, fmt.Errorf("%w: %s decoded to %T", rpc.ErrUnexpectedResult, method, v)
	}
	return out, nil
}

// hashParam normalizes a 32-byte hash to lowercase 0x hex.
func hashParam(s string) (string, error) {
	b, err := hex.Decode(s)
	if err != nil || len(b) != HashLength {
		return "", fmt.Errorf("%w: %q", ErrInvalidHash, s)
	}
	return hex.Encode(b), nil
}
