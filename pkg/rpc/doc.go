// Package rpc implements the JSON-RPC 2.0 client side of an AppChain node:
// the method table, the wire messages, HTTP and websocket transports, a
// batching dispatcher and the decoder that turns results into typed values.
//
// A Dispatcher multiplexes concurrent calls onto round trips:
//
//	t, _ := rpc.NewHTTPTransport(rpc.HTTPTransportConfig{URL: "http://127.0.0.1:1337"})
//	d := rpc.NewDispatcher(t, rpc.DefaultDispatcherConfig)
//	resp, err := d.Call(ctx, rpc.MethodBlockNumber)
//	height, err := rpc.DecodeUint64(resp)
//
// Under a batching policy, calls join an open batch that is sent when it
// reaches capacity or when its timer expires, whichever comes first. Every
// call is resolved exactly once: with its own response, matched by id, or
// with the error that failed the whole batch. A reply that omits, repeats or
// invents an id fails every call of the batch with ErrProtocolMismatch.
//
// Errors fall into three groups: ErrInvalidRequest and ErrDuplicateID are
// returned before anything is sent; ErrTransport covers failed exchanges and
// replies that are not JSON-RPC; ErrProtocolMismatch and *NodeError come from
// replies that were understood but are wrong or negative.
package rpc
