package rpc_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/citahub/appchain-go/pkg/rpc"
)

// nodeHandler answers JSON-RPC requests and batches with echoResponses.
func nodeHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		reply, err := echo(t)(r.Context(), decodePost(t, body))
		require.NoError(t, err)
		w.Header().Set("Content-Type", "application/json")
		w.Write(reply)
	}
}

func TestNewHTTPTransportRejectsBadURL(t *testing.T) {
	for _, u := range []string{"", "localhost:1337", "ftp://node", "http://"} {
		_, err := rpc.NewHTTPTransport(rpc.HTTPTransportConfig{URL: u})
		assert.ErrorIs(t, err, rpc.ErrInvalidRequest, u)
	}
}

func TestHTTPTransportPost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		body, _ := io.ReadAll(r.Body)
		w.Write(body)
	}))
	defer srv.Close()

	transport, err := rpc.NewHTTPTransport(rpc.HTTPTransportConfig{
		URL:    srv.URL,
		Header: http.Header{"X-Api-Key": []string{"secret"}},
	})
	require.NoError(t, err)

	reply, err := transport.Post(context.Background(), []byte(`{"ping":1}`))
	require.NoError(t, err)
	assert.Equal(t, `{"ping":1}`, string(reply))
}

func TestHTTPTransportFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			wantErr: rpc.ErrTransport,
		},
		{
			name:    "empty body",
			handler: func(http.ResponseWriter, *http.Request) {},
			wantErr: rpc.ErrEmptyResponse,
		},
		{
			name: "too large",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Write(make([]byte, 2048))
			},
			wantErr: rpc.ErrTransport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			transport, err := rpc.NewHTTPTransport(rpc.HTTPTransportConfig{URL: srv.URL, MaxResponseSize: 1024})
			require.NoError(t, err)

			_, err = transport.Post(context.Background(), []byte(`{}`))
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, rpc.ErrTransport)
		})
	}
}

func TestHTTPTransportHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	transport, err := rpc.NewHTTPTransport(rpc.HTTPTransportConfig{URL: srv.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = transport.Post(ctx, []byte(`{}`))
	assert.ErrorIs(t, err, rpc.ErrTransport)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDispatcherOverHTTP(t *testing.T) {
	srv := httptest.NewServer(nodeHandler(t))
	defer srv.Close()

	transport, err := rpc.NewHTTPTransport(rpc.HTTPTransportConfig{URL: srv.URL})
	require.NoError(t, err)
	d := rpc.NewDispatcher(transport, batchConfig(8, 20*time.Millisecond))

	var g errgroup.Group
	for i := range 20 {
		g.Go(func() error {
			resp, err := d.Call(context.Background(), rpc.MethodGetBlockHeader, i)
			if err != nil {
				return err
			}
			var got int
			if err := json.Unmarshal(resp.Result, &got); err != nil {
				return err
			}
			assert.Equal(t, i, got)
			return nil
		})
	}
	require.NoError(t, g.Wait())
}
