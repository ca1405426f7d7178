package rpc_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/citahub/appchain-go/pkg/rpc"
)

func batchConfig(capacity int, maxWait time.Duration) rpc.DispatcherConfig {
	return rpc.DispatcherConfig{Policy: rpc.Batch(capacity), MaxWait: maxWait}
}

func TestDispatcherBatchesConcurrentCalls(t *testing.T) {
	const callers = 32
	transport := newFakeTransport(t, echo(t))
	d := rpc.NewDispatcher(transport, batchConfig(callers, time.Minute))

	g, ctx := errgroup.WithContext(context.Background())
	for i := range callers {
		g.Go(func() error {
			addr := fmt.Sprintf("0x%040x", i)
			resp, err := d.Call(ctx, rpc.MethodGetBalance, addr, "latest")
			if err != nil {
				return err
			}
			got, err := rpc.DecodeString(resp)
			if err != nil {
				return err
			}
			if got != addr {
				return fmt.Errorf("caller %d got %s", i, got)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	posts := transport.received()
	require.Len(t, posts, 1)
	assert.True(t, posts[0].batched)
	assert.Len(t, posts[0].requests, callers)
}

func TestDispatcherSplitsAtCapacity(t *testing.T) {
	transport := newFakeTransport(t, echo(t))
	d := rpc.NewDispatcher(transport, batchConfig(4, time.Minute))

	var g errgroup.Group
	for range 8 {
		g.Go(func() error {
			_, err := d.Call(context.Background(), rpc.MethodBlockNumber)
			return err
		})
	}
	require.NoError(t, g.Wait())

	posts := transport.received()
	require.Len(t, posts, 2)
	for _, p := range posts {
		assert.Len(t, p.requests, 4)
	}
}

func TestDispatcherTimerSendsPartialBatch(t *testing.T) {
	transport := newFakeTransport(t, echo(t))
	d := rpc.NewDispatcher(transport, batchConfig(32, 200*time.Millisecond))

	start := time.Now()
	var g errgroup.Group
	for range 3 {
		g.Go(func() error {
			_, err := d.Call(context.Background(), rpc.MethodPeerCount)
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
	posts := transport.received()
	require.Len(t, posts, 1)
	assert.Len(t, posts[0].requests, 3)
}

func TestDispatcherProtocolViolations(t *testing.T) {
	tests := []struct {
		name   string
		mangle func([]rpc.Response) []rpc.Response
	}{
		{
			name:   "missing id",
			mangle: func(r []rpc.Response) []rpc.Response { return r[:1] },
		},
		{
			name: "unknown id",
			mangle: func(r []rpc.Response) []rpc.Response {
				unknown := uint64(9999)
				r[1].ID = &unknown
				return r
			},
		},
		{
			name: "duplicate id",
			mangle: func(r []rpc.Response) []rpc.Response {
				r[1].ID = r[0].ID
				return r
			},
		},
		{
			name:   "extra response",
			mangle: func(r []rpc.Response) []rpc.Response { return append(r, r[0]) },
		},
		{
			name: "null id",
			mangle: func(r []rpc.Response) []rpc.Response {
				r[0].ID = nil
				return r
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := newFakeTransport(t, func(_ context.Context, p post) ([]byte, error) {
				return json.Marshal(tt.mangle(echoResponses(t, p.requests)))
			})
			d := rpc.NewDispatcher(transport, batchConfig(2, time.Minute))

			errs := make(chan error, 2)
			for range 2 {
				go func() {
					_, err := d.Call(context.Background(), rpc.MethodBlockNumber)
					errs <- err
				}()
			}
			for range 2 {
				assert.ErrorIs(t, <-errs, rpc.ErrProtocolMismatch)
			}
		})
	}
}

func TestDispatcherFailsWholeBatch(t *testing.T) {
	tests := []struct {
		name    string
		reply   []byte
		err     error
		wantErr error
	}{
		{name: "transport error", err: errors.New("connection reset"), wantErr: rpc.ErrTransport},
		{name: "malformed json", reply: []byte(`[{"jsonrpc":`), wantErr: rpc.ErrTransport},
		{name: "not an array", reply: []byte(`"ok"`), wantErr: rpc.ErrTransport},
		{
			name:    "batch rejected",
			reply:   []byte(`{"jsonrpc":"2.0","id":null,"error":{"code":-32600,"message":"invalid request"}}`),
			wantErr: rpc.ErrProtocolMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := newFakeTransport(t, func(context.Context, post) ([]byte, error) {
				return tt.reply, tt.err
			})
			d := rpc.NewDispatcher(transport, batchConfig(3, time.Minute))

			errs := make(chan error, 3)
			for range 3 {
				go func() {
					_, err := d.Call(context.Background(), rpc.MethodBlockNumber)
					errs <- err
				}()
			}
			for range 3 {
				assert.ErrorIs(t, <-errs, tt.wantErr)
			}
			assert.Len(t, transport.received(), 1)
		})
	}
}

func TestDispatcherBatchRejectedCarriesNodeError(t *testing.T) {
	transport := newFakeTransport(t, func(context.Context, post) ([]byte, error) {
		return []byte(`{"jsonrpc":"2.0","id":null,"error":{"code":-32600,"message":"invalid request"}}`), nil
	})
	d := rpc.NewDispatcher(transport, batchConfig(1, time.Minute))

	_, err := d.Call(context.Background(), rpc.MethodBlockNumber)
	var nodeErr *rpc.NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, -32600, nodeErr.Code)
}

func TestDispatcherNoBatching(t *testing.T) {
	transport := newFakeTransport(t, echo(t))
	d := rpc.NewDispatcher(transport, rpc.DispatcherConfig{Policy: rpc.NoBatching()})

	for i := range 3 {
		resp, err := d.Call(context.Background(), rpc.MethodGetBlockByNumber, fmt.Sprintf("0x%x", i), false)
		require.NoError(t, err)
		got, err := rpc.DecodeString(resp)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("0x%x", i), got)
	}

	posts := transport.received()
	require.Len(t, posts, 3)
	for _, p := range posts {
		assert.False(t, p.batched)
	}
	assert.Equal(t, "none", d.Policy().String())
}

func TestDispatcherNoBatchingIDMismatch(t *testing.T) {
	transport := newFakeTransport(t, func(_ context.Context, p post) ([]byte, error) {
		resp, err := rpc.NewResponse(p.requests[0].ID+1, "0x1")
		require.NoError(t, err)
		return json.Marshal(resp)
	})
	d := rpc.NewDispatcher(transport, rpc.DispatcherConfig{Policy: rpc.NoBatching()})

	_, err := d.Call(context.Background(), rpc.MethodBlockNumber)
	assert.ErrorIs(t, err, rpc.ErrProtocolMismatch)
}

func TestDispatcherRejectsInvalidRequestsLocally(t *testing.T) {
	transport := newFakeTransport(t, echo(t))
	d := rpc.NewDispatcher(transport, rpc.DefaultDispatcherConfig)

	_, err := d.Call(context.Background(), rpc.MethodGetBalance, "0x01")
	assert.ErrorIs(t, err, rpc.ErrInvalidRequest)
	_, err = d.Call(context.Background(), rpc.Method("eth_call"))
	assert.ErrorIs(t, err, rpc.ErrInvalidRequest)

	d.Flush()
	assert.Empty(t, transport.received())
}

func TestDispatcherCancelOpenBatch(t *testing.T) {
	transport := newFakeTransport(t, echo(t))
	d := rpc.NewDispatcher(transport, batchConfig(32, 100*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	var g errgroup.Group
	g.Go(func() error {
		_, err := d.Call(ctx, rpc.MethodPeerCount)
		if !errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("cancelled call: %v", err)
		}
		return nil
	})
	g.Go(func() error {
		_, err := d.Call(context.Background(), rpc.MethodBlockNumber)
		return err
	})
	require.NoError(t, g.Wait())

	posts := transport.received()
	require.Len(t, posts, 1)
	require.Len(t, posts[0].requests, 1)
	assert.Equal(t, rpc.MethodBlockNumber, posts[0].requests[0].Method)
}

func TestDispatcherEmptiedBatchIsNotSent(t *testing.T) {
	transport := newFakeTransport(t, echo(t))
	d := rpc.NewDispatcher(transport, batchConfig(32, 50*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err := d.Call(ctx, rpc.MethodPeerCount)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, transport.received())
}

func TestDispatcherCancelSentBatch(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	transport := newFakeTransport(t, func(ctx context.Context, p post) ([]byte, error) {
		close(entered)
		<-release
		return echo(t)(ctx, p)
	})
	d := rpc.NewDispatcher(transport, batchConfig(2, time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	cancelled := make(chan error, 1)
	go func() {
		_, err := d.Call(ctx, rpc.MethodPeerCount)
		cancelled <- err
	}()
	kept := make(chan *rpc.Response, 1)
	go func() {
		resp, err := d.Call(context.Background(), rpc.MethodBlockNumber)
		assert.NoError(t, err)
		kept <- resp
	}()

	<-entered
	cancel()
	assert.ErrorIs(t, <-cancelled, context.Canceled)

	close(release)
	resp := <-kept
	require.NotNil(t, resp)
	got, err := rpc.DecodeString(resp)
	require.NoError(t, err)
	assert.Equal(t, "blockNumber", got)
}

func TestDispatcherFlushAndClose(t *testing.T) {
	transport := newFakeTransport(t, echo(t))
	d := rpc.NewDispatcher(transport, batchConfig(32, time.Hour))

	done := make(chan error, 1)
	go func() {
		_, err := d.Call(context.Background(), rpc.MethodBlockNumber)
		done <- err
	}()

	var callErr error
	require.Eventually(t, func() bool {
		d.Flush()
		select {
		case callErr = <-done:
			return true
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, callErr)

	require.NoError(t, d.Close())
	_, err := d.Call(context.Background(), rpc.MethodBlockNumber)
	assert.ErrorIs(t, err, rpc.ErrDispatcherClosed)
}

func TestDispatcherMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := rpc.NewMetricsWithRegistry(registry)

	transport := newFakeTransport(t, echo(t))
	d := rpc.NewDispatcher(transport, batchConfig(2, time.Minute), rpc.WithMetrics(metrics))

	var g errgroup.Group
	g.Go(func() error {
		_, err := d.Call(context.Background(), rpc.MethodBlockNumber)
		return err
	})
	g.Go(func() error {
		_, err := d.Call(context.Background(), rpc.MethodPeerCount)
		return err
	})
	require.NoError(t, g.Wait())

	_, err := d.Call(context.Background(), rpc.MethodGetBalance)
	require.ErrorIs(t, err, rpc.ErrInvalidRequest)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.BatchesSent))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Calls.WithLabelValues("blockNumber")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Calls.WithLabelValues("peerCount")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CallFailures.WithLabelValues(rpc.FailureInvalidRequest)))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.BatchSize))
}
