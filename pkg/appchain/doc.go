// Package appchain is the typed API of an AppChain node. Every RPC method
// has a Client method that validates its arguments, sends the call through
// an rpc.Dispatcher and decodes the result.
//
// Submitting transactions goes through an optional Journal, which records
// each envelope before it is sent and refuses to send it again while its
// outcome is pending, accepted or unknown.
package appchain
