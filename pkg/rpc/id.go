package rpc

import "sync/atomic"

// IDGenerator hands out request ids. It is safe for concurrent use. Each
// dispatcher owns its own generator.
type IDGenerator struct {
	last atomic.Uint64
}

// NewIDGenerator returns a generator whose first id is start+1.
func NewIDGenerator(start uint64) *IDGenerator {
	g := &IDGenerator{}
	g.last.Store(start)
	return g
}

// Next returns a fresh id.
func (g *IDGenerator) Next() uint64 {
	return g.last.Add(1)
}
