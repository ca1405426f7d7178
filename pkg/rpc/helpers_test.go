package rpc_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/citahub/appchain-go/pkg/rpc"
)

// post is one body received by a fakeTransport.
type post struct {
	requests []rpc.Request
	batched  bool
}

// fakeTransport records every body and answers with reply.
type fakeTransport struct {
	t     *testing.T
	reply func(ctx context.Context, p post) ([]byte, error)

	mu    sync.Mutex
	posts []post
}

func newFakeTransport(t *testing.T, reply func(ctx context.Context, p post) ([]byte, error)) *fakeTransport {
	return &fakeTransport{t: t, reply: reply}
}

func (f *fakeTransport) Post(ctx context.Context, body []byte) ([]byte, error) {
	p := decodePost(f.t, body)

	f.mu.Lock()
	f.posts = append(f.posts, p)
	f.mu.Unlock()

	return f.reply(ctx, p)
}

func (f *fakeTransport) received() []post {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]post(nil), f.posts...)
}

func decodePost(t *testing.T, body []byte) post {
	if len(body) > 0 && body[0] == '[' {
		var reqs []rpc.Request
		require.NoError(t, json.Unmarshal(body, &reqs))
		return post{requests: reqs, batched: true}
	}
	var req rpc.Request
	require.NoError(t, json.Unmarshal(body, &req))
	return post{requests: []rpc.Request{req}}
}

// echoResponses answers every request with its first parameter, or with
// its method name when it has none.
func echoResponses(t *testing.T, reqs []rpc.Request) []rpc.Response {
	out := make([]rpc.Response, 0, len(reqs))
	for _, req := range reqs {
		var result any = req.Method.String()
		if len(req.Params) > 0 {
			result = req.Params[0]
		}
		resp, err := rpc.NewResponse(req.ID, result)
		require.NoError(t, err)
		out = append(out, resp)
	}
	return out
}

// echo replies like a well-behaved node, in reverse order for batches.
func echo(t *testing.T) func(context.Context, post) ([]byte, error) {
	return func(_ context.Context, p post) ([]byte, error) {
		resps := echoResponses(t, p.requests)
		if !p.batched {
			return json.Marshal(resps[0])
		}
		for i, j := 0, len(resps)-1; i < j; i, j = i+1, j-1 {
			resps[i], resps[j] = resps[j], resps[i]
		}
		return json.Marshal(resps)
	}
}

func mustMarshal(t *testing.T, v any) []byte {
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
