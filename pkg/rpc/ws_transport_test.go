package rpc_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/citahub/appchain-go/pkg/rpc"
)

// wsNode serves JSON-RPC over websocket. When dropAfter is positive the
// server closes each connection after that many replies.
func wsNode(t *testing.T, dropAfter int, conns *atomic.Int32) *httptest.Server {
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if conns != nil {
			conns.Add(1)
		}

		for served := 0; dropAfter <= 0 || served < dropAfter; served++ {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			reply, err := echo(t)(r.Context(), decodePost(t, msg))
			if err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, reply); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebsocketTransportDispatch(t *testing.T) {
	srv := wsNode(t, 0, nil)
	defer srv.Close()

	transport, err := rpc.DialWebsocket(context.Background(), rpc.WebsocketTransportConfig{URL: wsURL(srv)})
	require.NoError(t, err)
	defer transport.Close()

	d := rpc.NewDispatcher(transport, batchConfig(4, 10*time.Millisecond))

	var g errgroup.Group
	for i := range 16 {
		g.Go(func() error {
			want := "0x" + strings.Repeat("0", 39) + string(rune('a'+i%6))
			resp, err := d.Call(context.Background(), rpc.MethodGetCode, want, "latest")
			if err != nil {
				return err
			}
			got, err := rpc.DecodeString(resp)
			if err != nil {
				return err
			}
			assert.Equal(t, want, got)
			return nil
		})
	}
	require.NoError(t, g.Wait())
}

func TestWebsocketTransportRedials(t *testing.T) {
	var conns atomic.Int32
	srv := wsNode(t, 1, &conns)
	defer srv.Close()

	transport := rpc.NewWebsocketTransport(rpc.WebsocketTransportConfig{URL: wsURL(srv)})
	defer transport.Close()
	d := rpc.NewDispatcher(transport, rpc.DispatcherConfig{Policy: rpc.NoBatching()})

	_, err := d.Call(context.Background(), rpc.MethodBlockNumber)
	require.NoError(t, err)

	// The server hung up after one reply; the next call fails and drops the
	// connection, and the one after that dials again.
	require.Eventually(t, func() bool {
		_, err := d.Call(context.Background(), rpc.MethodBlockNumber)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, conns.Load(), int32(2))
}

func TestWebsocketTransportDialFailure(t *testing.T) {
	_, err := rpc.DialWebsocket(context.Background(), rpc.WebsocketTransportConfig{URL: "ws://127.0.0.1:1"})
	assert.ErrorIs(t, err, rpc.ErrTransport)
}

func TestWebsocketTransportContextCancel(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	transport := rpc.NewWebsocketTransport(rpc.WebsocketTransportConfig{URL: wsURL(srv)})
	defer transport.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := transport.Post(ctx, []byte(`{}`))
	assert.ErrorIs(t, err, rpc.ErrTransport)
	assert.ErrorIs(t, err, context.Canceled)
}
